package content

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the content routes. Reading content requires a
// site session; the repository test lives in the admin trust domain.
func RegisterRoutes(e *echo.Echo, h *Handler, requireSession, requireAdmin echo.MiddlewareFunc) {
	gh := e.Group("/api/github", requireSession)
	gh.GET("/files", h.GetFiles)
	gh.GET("/content", h.GetContent)

	e.GET("/admin/api/github/test", h.TestRepo, requireAdmin)
}
