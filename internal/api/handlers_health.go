// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ClientCounter reports how many live-update clients are connected.
type ClientCounter interface {
	Clients() int
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	backendURL string
	clients    ClientCounter
}

// NewHealthHandler creates a new health handler. clients may be nil.
func NewHealthHandler(version, backendURL string, clients ClientCounter) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		backendURL: backendURL,
		clients:    clients,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	connected := 0
	if h.clients != nil {
		connected = h.clients.Clients()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"backend": h.backendURL,
		"clients": connected,
	})
}
