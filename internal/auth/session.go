package auth

import "time"

// SessionDuration is how long a session lives from creation. Fixed policy.
const SessionDuration = 24 * time.Hour

// nowMillis is the session clock in epoch milliseconds. Overridable in
// tests to pin expiry boundaries exactly.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// NewSession creates an authenticated session expiring SessionDuration from
// now. isAdmin marks the admin trust domain; nothing else distinguishes the
// two session kinds structurally -- cookie path scoping does the rest.
func NewSession(isAdmin bool) Session {
	return Session{
		IsAuthenticated: true,
		IsAdmin:         isAdmin,
		ExpiresAt:       nowMillis() + SessionDuration.Milliseconds(),
	}
}

// IsValidSession reports whether the session exists, is authenticated, and
// has not expired. Expiry is checked lazily on every read; there is no
// background sweep and no server-side revocation.
func IsValidSession(s *Session) bool {
	if s == nil {
		return false
	}
	return s.IsAuthenticated && nowMillis() < s.ExpiresAt
}

// IsAdminSession reports whether the session is valid AND carries the admin
// flag. A non-admin session never satisfies this, even while valid.
func IsAdminSession(s *Session) bool {
	return IsValidSession(s) && s.IsAdmin
}

// ExtendSession returns a copy of the session with expiry refreshed to
// SessionDuration from now. Sliding expiration is a capability, not a
// default: nothing calls this automatically.
func ExtendSession(s Session) Session {
	s.ExpiresAt = nowMillis() + SessionDuration.Milliseconds()
	return s
}
