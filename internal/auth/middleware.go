package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/librarium/internal/apperror"
)

// Context key for storing the decoded session in the Echo context.
const contextKeySession = "auth_session"

// RequireSession returns middleware that validates the site session cookie
// and injects the session into the request context. Requests without a
// valid session get 401 UNAUTHORIZED; a present-but-expired session gets
// 401 SESSION_EXPIRED so the client can distinguish "log in" from "log in
// again".
func RequireSession() echo.MiddlewareFunc {
	return requireCookie(SiteCookieName, IsValidSession)
}

// RequireAdminSession returns middleware for the admin trust domain: the
// /admin-scoped cookie must decode to a valid session carrying the admin
// flag.
func RequireAdminSession() echo.MiddlewareFunc {
	return requireCookie(AdminCookieName, IsAdminSession)
}

// requireCookie builds session-gate middleware over the named cookie and
// validity predicate.
func requireCookie(name string, valid func(*Session) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := sessionFromCookie(c, name)
			if session == nil {
				return apperror.NewUnauthorized()
			}
			if !valid(session) {
				// Decoded but expired (or site session on an admin gate).
				if session.IsAuthenticated && nowMillis() >= session.ExpiresAt {
					return apperror.NewSessionExpired()
				}
				return apperror.NewUnauthorized()
			}

			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// SessionFromContext retrieves the session stored by RequireSession /
// RequireAdminSession. Returns nil if the middleware was not applied.
func SessionFromContext(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}
