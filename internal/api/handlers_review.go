// handlers_review.go - Join request moderation handlers
package api

import (
	"fmt"
	"net/http"

	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/review"
	"github.com/joinhub/console/internal/unlock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ReviewHandlerImpl implements the ReviewHandler interface
type ReviewHandlerImpl struct {
	board         *review.Board
	counter       *unlock.Counter
	requireUnlock bool
	logger        *zap.Logger
}

// NewReviewHandler creates a new review handler instance. When requireUnlock
// is set the admin routes answer 403 until counter has fired.
func NewReviewHandler(board *review.Board, counter *unlock.Counter, requireUnlock bool, logger *zap.Logger) ReviewHandler {
	return &ReviewHandlerImpl{
		board:         board,
		counter:       counter,
		requireUnlock: requireUnlock,
		logger:        logger,
	}
}

type reviewListResponse struct {
	Filter   models.ReviewStatus  `json:"filter"`
	Projects []models.ReviewEntry `json:"projects"`
}

type setStatusRequest struct {
	ReviewStatus string `json:"reviewStatus" validate:"required,oneof=pending approved rejected"`
}

// RequireUnlock guards the admin routes
func (h *ReviewHandlerImpl) RequireUnlock(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.requireUnlock && !h.counter.Unlocked() {
			return NewForbiddenError("admin area is locked")
		}
		return next(c)
	}
}

// HandleListRequests loads the moderation queue. Without a status parameter
// the board's active filter is reused; "all" lists every entry.
func (h *ReviewHandlerImpl) HandleListRequests(c echo.Context) error {
	filter := h.board.Filter()
	if c.QueryParams().Has("status") {
		var ok bool
		if filter, ok = models.ParseReviewFilter(c.QueryParam("status")); !ok {
			return NewValidationError("status")
		}
	}

	entries, err := h.board.List(c.Request().Context(), filter)
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, reviewListResponse{Filter: filter, Projects: entries})
}

// HandleSetStatus records a moderation decision and returns the reloaded queue
func (h *ReviewHandlerImpl) HandleSetStatus(c echo.Context) error {
	id := c.Param("id")
	var req setStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	target := models.ReviewStatus(req.ReviewStatus)

	if entry, ok := h.find(id); ok && !review.CanSet(entry, target) {
		return NewConflictError(fmt.Sprintf("join request %s is already %s", id, target))
	}

	entries, err := h.board.SetStatus(c.Request().Context(), id, target)
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, reviewListResponse{Filter: h.board.Filter(), Projects: entries})
}

// HandleResult downloads the joined result of a listed request
func (h *ReviewHandlerImpl) HandleResult(c echo.Context) error {
	id := c.Param("id")
	entry, ok := h.find(id)
	if !ok {
		return NewNotFoundError("join request", id)
	}

	d, err := h.board.Result(c.Request().Context(), entry)
	if err != nil {
		return backendError(err)
	}
	h.logger.Info("admin result downloaded", zap.String("id", id), zap.String("file", d.FileName))
	return sendDownload(c, d)
}

func (h *ReviewHandlerImpl) find(id string) (models.ReviewEntry, bool) {
	for _, e := range h.board.Entries() {
		if e.ID == id {
			return e, true
		}
	}
	return models.ReviewEntry{}, false
}
