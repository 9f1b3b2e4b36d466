// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WizardHandler drives project creation wizards
type WizardHandler interface {
	HandleCreateWizard(c echo.Context) error
	HandleGetWizard(c echo.Context) error
	HandleDeleteWizard(c echo.Context) error
	HandleAddFiles(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
	HandlePreviewFile(c echo.Context) error
	HandleNext(c echo.Context) error
	HandlePrev(c echo.Context) error
	HandleSetName(c echo.Context) error
	HandleFindCandidates(c echo.Context) error
	HandleSubmit(c echo.Context) error
}

// ProjectHandler handles project status operations
type ProjectHandler interface {
	HandleListProjects(c echo.Context) error
	HandleListProjectsMsgpack(c echo.Context) error
	HandleCounts(c echo.Context) error
	HandleGetProject(c echo.Context) error
	HandleGetSelected(c echo.Context) error
	HandleClearSelected(c echo.Context) error
	HandleCreateCI(c echo.Context) error
	HandleJoin(c echo.Context) error
	HandleResult(c echo.Context) error
	HandleFilePreview(c echo.Context) error
}

// ReviewHandler handles join request moderation
type ReviewHandler interface {
	RequireUnlock(next echo.HandlerFunc) echo.HandlerFunc
	HandleListRequests(c echo.Context) error
	HandleSetStatus(c echo.Context) error
	HandleResult(c echo.Context) error
}

// ConvertHandler handles document conversion batches
type ConvertHandler interface {
	HandleStartConvert(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleExport(c echo.Context) error
}

// UnlockHandler handles the admin unlock gesture
type UnlockHandler interface {
	HandleTap(c echo.Context) error
	HandleStatus(c echo.Context) error
	HandleLock(c echo.Context) error
}
