// Package auth implements the authentication core for Librarium: bcrypt
// password hashing, per-IP login rate limiting, stateless cookie sessions
// for the two trust domains (site visitor and admin), and input validation
// for the values the admin panel accepts.
//
// Sessions are self-contained bearer tokens carried entirely inside the
// client's cookie. The server keeps no session table, which means a session
// cannot be revoked before its natural expiry -- logout only clears the
// browser-held cookie. This is a deliberate tradeoff, not an oversight.
package auth

// Session represents a granted authorization. It is created on successful
// password verification, encoded into a cookie, and validated lazily on
// every read. Never mutated in place; renewal produces a new value.
//
// The JSON field names are part of the cookie wire format.
type Session struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	IsAdmin         bool `json:"isAdmin"`

	// ExpiresAt is epoch milliseconds. A session is valid iff
	// IsAuthenticated is true and the current time is strictly before it.
	ExpiresAt int64 `json:"expiresAt"`
}

// Credentials is the auth-relevant subset of the site configuration. The
// core only ever sees the stored hashes, never plaintext passwords.
type Credentials struct {
	SitePasswordHash  string
	AdminPasswordHash string
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the data submitted by the login form. Both the site
// and admin login endpoints accept the same shape.
type LoginRequest struct {
	Password string `json:"password" form:"password"`
}
