// handlers_unlock.go - Admin unlock gesture handlers
package api

import (
	"net/http"

	"github.com/joinhub/console/internal/unlock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UnlockHandlerImpl implements the UnlockHandler interface
type UnlockHandlerImpl struct {
	counter *unlock.Counter
	logger  *zap.Logger
}

// NewUnlockHandler creates a new unlock handler instance
func NewUnlockHandler(counter *unlock.Counter, logger *zap.Logger) UnlockHandler {
	return &UnlockHandlerImpl{counter: counter, logger: logger}
}

type unlockResponse struct {
	Count    int  `json:"count"`
	Unlocked bool `json:"unlocked"`
	// JustUnlocked is set on the tap that completed the gesture.
	JustUnlocked bool `json:"justUnlocked,omitempty"`
}

// HandleTap counts one tap
func (h *UnlockHandlerImpl) HandleTap(c echo.Context) error {
	fired := h.counter.Tap()
	if fired {
		h.logger.Info("admin area unlocked", zap.String("remote", c.RealIP()))
	}
	return c.JSON(http.StatusOK, unlockResponse{
		Count:        h.counter.Count(),
		Unlocked:     h.counter.Unlocked(),
		JustUnlocked: fired,
	})
}

// HandleStatus reports whether the admin area is unlocked
func (h *UnlockHandlerImpl) HandleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, unlockResponse{
		Count:    h.counter.Count(),
		Unlocked: h.counter.Unlocked(),
	})
}

// HandleLock locks the admin area again
func (h *UnlockHandlerImpl) HandleLock(c echo.Context) error {
	h.counter.Reset()
	return c.NoContent(http.StatusNoContent)
}
