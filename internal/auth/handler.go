package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/librarium/internal/apperror"
)

// CredentialSource supplies the stored password hashes. The site config
// service implements this; the auth core never touches storage directly.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Handler handles HTTP requests for authentication in both trust domains:
// site visitor login/logout/check and their admin counterparts. Handlers
// are thin: bind the request, consult the limiter and credential source,
// and render the response.
type Handler struct {
	creds   CredentialSource
	limiter *Limiter

	// secure marks cookies Secure. True in production (TLS at the proxy).
	secure bool
}

// NewHandler creates a new auth handler with the given dependencies.
func NewHandler(creds CredentialSource, limiter *Limiter, secure bool) *Handler {
	return &Handler{creds: creds, limiter: limiter, secure: secure}
}

// Login processes a site visitor login (POST /api/auth/login).
func (h *Handler) Login(c echo.Context) error {
	return h.login(c, false)
}

// AdminLogin processes an admin login (POST /admin/api/login). Same flow
// as Login but verified against the admin hash and scoped to the admin
// cookie. Both domains share one rate limiter: an attacker probing both
// endpoints from one IP spends one quota.
func (h *Handler) AdminLogin(c echo.Context) error {
	return h.login(c, true)
}

// login is the shared login flow: rate limit, validate, verify, mint
// session, set cookie.
func (h *Handler) login(c echo.Context, admin bool) error {
	clientIP := c.RealIP()

	// Consume a rate-limit attempt. This is the single consume point per
	// login request; everything after a 429 is skipped, including the
	// expensive bcrypt verification.
	limit := h.limiter.Consume(clientIP)
	if !limit.Allowed {
		retryAfter := int(time.Until(limit.ResetTime).Seconds()) + 1
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error":     apperror.CodeRateLimited,
			"message":   "Too many attempts. Please try again later.",
			"resetTime": limit.ResetTime.UnixMilli(),
		})
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("Password is required")
	}

	if validation := ValidatePassword(req.Password); !validation.IsValid {
		return apperror.NewValidation(validation.Errors[0])
	}

	creds, err := h.creds.Credentials(c.Request().Context())
	if err != nil {
		slog.Error("loading credentials for login",
			slog.Bool("admin", admin),
			slog.Any("error", err),
		)
		return apperror.NewConfiguration(err)
	}

	hash := creds.SitePasswordHash
	if admin {
		hash = creds.AdminPasswordHash
	}

	if !VerifyPassword(req.Password, hash) {
		slog.Warn("invalid login attempt",
			slog.Bool("admin", admin),
			slog.String("client_ip", clientIP),
			slog.Int("remaining_attempts", limit.RemainingAttempts),
		)
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error":             apperror.CodeInvalidCredentials,
			"message":           "Invalid password",
			"remainingAttempts": limit.RemainingAttempts,
		})
	}

	// Successful authentication restores the identifier's full quota.
	h.limiter.Reset(clientIP)

	session := NewSession(admin)
	if admin {
		c.SetCookie(AdminSessionCookie(session, h.secure))
	} else {
		c.SetCookie(SiteSessionCookie(session, h.secure))
	}

	slog.Info("login successful",
		slog.Bool("admin", admin),
		slog.String("client_ip", clientIP),
	)

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Login successful",
		"expiresAt": session.ExpiresAt,
	})
}

// Logout clears both session cookies (POST /api/auth/logout). Tokens are
// stateless, so logout is purely client-side: a copied cookie value stays
// usable until its natural expiry.
func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(LogoutCookie(SiteCookieName, h.secure))
	c.SetCookie(LogoutCookie(AdminCookieName, h.secure))

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// AdminLogout clears the admin cookie (POST /admin/api/logout).
func (h *Handler) AdminLogout(c echo.Context) error {
	c.SetCookie(LogoutCookie(AdminCookieName, h.secure))

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Check reports whether the request carries a valid site session
// (GET /api/auth/check). Always 200: an absent or invalid session is
// isAuthenticated=false, not an error.
func (h *Handler) Check(c echo.Context) error {
	session := sessionFromCookie(c, SiteCookieName)
	valid := IsValidSession(session)

	resp := map[string]any{"isAuthenticated": valid}
	if valid {
		resp["expiresAt"] = session.ExpiresAt
	}
	return c.JSON(http.StatusOK, resp)
}

// AdminCheck reports whether the request carries a valid admin session
// (GET /admin/api/check).
func (h *Handler) AdminCheck(c echo.Context) error {
	session := sessionFromCookie(c, AdminCookieName)
	valid := IsAdminSession(session)

	resp := map[string]any{
		"isAuthenticated": valid,
		"isAdmin":         valid,
	}
	if valid {
		resp["expiresAt"] = session.ExpiresAt
	}
	return c.JSON(http.StatusOK, resp)
}

// sessionFromCookie reads and decodes the named session cookie. Returns
// nil if the cookie is absent or doesn't decode; expiry is NOT checked
// here -- callers use IsValidSession / IsAdminSession.
func sessionFromCookie(c echo.Context, name string) *Session {
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return DecodeSession(cookie.Value)
}
