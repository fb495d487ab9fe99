package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders returns middleware that sets security-related HTTP headers
// on every response. These headers protect against common web attacks even
// if application-level vulnerabilities exist.
//
// Librarium serves untrusted markdown fetched from GitHub, so the browser-
// side headers matter: frame embedding is denied, MIME sniffing is off, and
// referrer data is limited.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// X-Frame-Options: prevent clickjacking. The embedded chat iframe
			// points outward; nothing embeds Librarium.
			h.Set("X-Frame-Options", "DENY")

			// X-Content-Type-Options: prevent MIME type sniffing.
			h.Set("X-Content-Type-Options", "nosniff")

			// Referrer-Policy: limit referrer information leaked to external sites.
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// X-XSS-Protection: legacy header for older browsers. Modern browsers
			// use CSP instead, but this doesn't hurt.
			h.Set("X-XSS-Protection", "1; mode=block")

			// Strict-Transport-Security: enforce HTTPS for 1 year including
			// subdomains. TLS terminates at the reverse proxy.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			return next(c)
		}
	}
}
