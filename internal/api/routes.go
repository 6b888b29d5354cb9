// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", h.HandleHealth)
	apiGroup.GET("/session", h.HandleGetSession)

	// File selection
	apiGroup.GET("/files", h.HandleListFiles)
	apiGroup.POST("/files", h.HandleAddFiles)
	apiGroup.DELETE("/files/:index", h.HandleRemoveFile)

	// Job lifecycle
	apiGroup.POST("/submit", h.HandleSubmit)
	apiGroup.POST("/cancel", h.HandleCancel)
	apiGroup.POST("/clear", h.HandleClear)
	apiGroup.POST("/notice/dismiss", h.HandleDismissNotice)

	// Results
	apiGroup.GET("/results", h.HandleGetResults)
	apiGroup.GET("/results/:component", h.HandleGetComponent)
	apiGroup.GET("/agents", h.HandleGetAgents)
	apiGroup.GET("/export/:format", h.HandleExport)
	e.GET("/report", h.HandleReport)

	if ws != nil {
		apiGroup.GET("/ws", ws.HandleWebSocket)
	}
}
