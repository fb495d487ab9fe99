package siteconfig

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the site config routes. The public branding
// endpoint is open; the admin config endpoints require an admin session.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAdmin echo.MiddlewareFunc) {
	e.GET("/api/site", h.GetPublic)

	admin := e.Group("/admin/api", requireAdmin)
	admin.GET("/config", h.GetConfig)
	admin.PUT("/config", h.UpdateConfig)
}
