// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const backendHealthTimeout = 3 * time.Second

// BackendHealth is the analysis backend part of the health response.
type BackendHealth struct {
	Reachable         bool   `json:"reachable"`
	Status            string `json:"status,omitempty"`
	OrchestratorReady bool   `json:"orchestratorReady"`
	Error             string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Backend BackendHealth `json:"backend"`
}

// HandleHealth returns console health and the readiness of the analysis
// backend. The console itself is healthy even when the backend is down.
func (h *Handler) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), backendHealthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Version: h.version}
	bh, err := h.backend.Health(ctx)
	if err != nil {
		resp.Backend.Error = err.Error()
	} else {
		resp.Backend = BackendHealth{
			Reachable:         true,
			Status:            bh.Status,
			OrchestratorReady: bh.OrchestratorReady,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
