package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the auth routes for both trust domains. Admin
// routes live under /admin so the /admin-scoped cookie reaches them --
// mounting them under /api/admin would put them outside the cookie's path.
//
// Login endpoints are public by necessity; the per-IP limiter inside the
// handler is what throttles brute-force attempts.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	// Site visitor trust domain.
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/logout", h.Logout)
	e.GET("/api/auth/check", h.Check)

	// Admin trust domain.
	e.POST("/admin/api/login", h.AdminLogin)
	e.POST("/admin/api/logout", h.AdminLogout)
	e.GET("/admin/api/check", h.AdminCheck)
}
