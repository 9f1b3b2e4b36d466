// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/preview"
	"github.com/joinhub/console/internal/review"
	"github.com/joinhub/console/internal/session"
	"github.com/joinhub/console/internal/storage"
	"github.com/joinhub/console/internal/tracker"
	"github.com/joinhub/console/internal/unlock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Downloads     export.Sink
	Sessions      *session.Manager
	Tracker       *tracker.Tracker
	Board         *review.Board
	Exporter      *export.Exporter
	Converter     *convert.Manager
	Previewer     *preview.Previewer
	Unlock        *unlock.Counter
	RequireUnlock bool
	BackendURL    string
	Version       string
	Logger        *zap.Logger
	// WebSocketMaxMessageSize limits client frames, in bytes
	WebSocketMaxMessageSize int64
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Wizard   WizardHandler
	Projects ProjectHandler
	Review   ReviewHandler
	Convert  ConvertHandler
	Unlock   UnlockHandler
	Hub      *ProjectHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := NewProjectHub(deps.Tracker, logger.Named("ws"), deps.WebSocketMaxMessageSize)
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.BackendURL, hub),
		Wizard:   NewWizardHandler(deps.Store, deps.Sessions, deps.Previewer, logger.Named("wizard")),
		Projects: NewProjectHandler(deps.Tracker, deps.Exporter, logger.Named("projects")),
		Review:   NewReviewHandler(deps.Board, deps.Unlock, deps.RequireUnlock, logger.Named("review")),
		Convert:  NewConvertHandler(deps.Store, deps.Converter, deps.Exporter, deps.Downloads, logger.Named("convert")),
		Unlock:   NewUnlockHandler(deps.Unlock, logger.Named("unlock")),
		Hub:      hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Project creation wizard
	wizardGroup := api.Group("/wizard")
	wizardGroup.POST("", handlers.Wizard.HandleCreateWizard)
	wizardGroup.GET("/:id", handlers.Wizard.HandleGetWizard)
	wizardGroup.DELETE("/:id", handlers.Wizard.HandleDeleteWizard)
	wizardGroup.POST("/:id/files", handlers.Wizard.HandleAddFiles)
	wizardGroup.DELETE("/:id/files/:index", handlers.Wizard.HandleRemoveFile)
	wizardGroup.GET("/:id/files/:index/preview", handlers.Wizard.HandlePreviewFile)
	wizardGroup.POST("/:id/next", handlers.Wizard.HandleNext)
	wizardGroup.POST("/:id/prev", handlers.Wizard.HandlePrev)
	wizardGroup.PUT("/:id/name", handlers.Wizard.HandleSetName)
	wizardGroup.POST("/:id/candidates", handlers.Wizard.HandleFindCandidates)
	wizardGroup.POST("/:id/submit", handlers.Wizard.HandleSubmit)

	// Project status
	projectGroup := api.Group("/projects")
	projectGroup.GET("", handlers.Projects.HandleListProjects)
	projectGroup.GET("/msgpack", handlers.Projects.HandleListProjectsMsgpack)
	projectGroup.GET("/counts", handlers.Projects.HandleCounts)
	projectGroup.GET("/selected", handlers.Projects.HandleGetSelected)
	projectGroup.DELETE("/selected", handlers.Projects.HandleClearSelected)
	projectGroup.GET("/:id", handlers.Projects.HandleGetProject)
	projectGroup.POST("/:id/ci", handlers.Projects.HandleCreateCI)
	projectGroup.POST("/:id/join", handlers.Projects.HandleJoin)
	projectGroup.GET("/:id/result", handlers.Projects.HandleResult)
	projectGroup.GET("/:id/files/:name/preview", handlers.Projects.HandleFilePreview)

	// Document conversion
	convertGroup := api.Group("/convert")
	convertGroup.POST("", handlers.Convert.HandleStartConvert)
	convertGroup.GET("/:jobId", handlers.Convert.HandleGetJob)
	convertGroup.POST("/:jobId/export", handlers.Convert.HandleExport)

	// Admin unlock gesture
	api.GET("/console/unlock", handlers.Unlock.HandleStatus)
	api.POST("/console/unlock", handlers.Unlock.HandleTap)
	api.DELETE("/console/unlock", handlers.Unlock.HandleLock)

	// Moderation
	adminGroup := api.Group("/admin", handlers.Review.RequireUnlock)
	adminGroup.GET("/requests", handlers.Review.HandleListRequests)
	adminGroup.PATCH("/requests/:id", handlers.Review.HandleSetStatus)
	adminGroup.GET("/requests/:id/result", handlers.Review.HandleResult)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/projects", handlers.Hub.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, logger *zap.Logger, exposeDetails bool) {
	// Use custom error handler
	e.HTTPErrorHandler = NewErrorHandler(logger, exposeDetails)
}
