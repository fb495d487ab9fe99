package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// Cookie names for the two trust domains. The path scoping below -- "/" for
// site, "/admin" for admin -- is the mechanism that keeps the domains
// separate: a site cookie is never sent to admin routes and vice versa.
const (
	SiteCookieName  = "site_session"
	AdminCookieName = "admin_session"
)

// cookieMaxAge matches SessionDuration, in seconds.
const cookieMaxAge = int(SessionDuration / time.Second)

// EncodeSession serializes a session to the opaque cookie value:
// base64 over the JSON form. The encoding is reversible and round-trips
// exactly; it is NOT encryption -- the cookie's integrity rests on the
// httpOnly/secure/sameSite attributes and the fact that forging a session
// gains nothing a stolen one wouldn't.
func EncodeSession(s Session) string {
	data, err := json.Marshal(s)
	if err != nil {
		// Session has no unmarshalable fields; this cannot happen.
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeSession reverses EncodeSession. Returns nil -- never an error -- on
// any parse failure. It does NOT check expiry; callers must run the result
// through IsValidSession separately.
func DecodeSession(value string) *Session {
	if value == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

// SiteSessionCookie builds the site-scope session cookie: path "/",
// httpOnly, strict same-site, secure when running behind TLS in production.
func SiteSessionCookie(s Session, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SiteCookieName,
		Value:    EncodeSession(s),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   cookieMaxAge,
	}
}

// AdminSessionCookie builds the admin-scope session cookie. Identical
// attributes except the path is restricted to /admin, so browsers only
// present it to the admin subtree.
func AdminSessionCookie(s Session, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AdminCookieName,
		Value:    EncodeSession(s),
		Path:     "/admin",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   cookieMaxAge,
	}
}

// LogoutCookie builds a cookie that clears the named session cookie: empty
// value, immediate expiry, same path scoping as the original.
func LogoutCookie(name string, secure bool) *http.Cookie {
	path := "/"
	if name == AdminCookieName {
		path = "/admin"
	}
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	}
}
