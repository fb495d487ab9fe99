package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/librarium/internal/apperror"
)

// --- Mock Credential Source ---

// mockCredentialSource implements CredentialSource for testing.
type mockCredentialSource struct {
	credentialsFn func(ctx context.Context) (Credentials, error)
}

func (m *mockCredentialSource) Credentials(ctx context.Context) (Credentials, error) {
	if m.credentialsFn != nil {
		return m.credentialsFn(ctx)
	}
	return Credentials{}, errors.New("no credentials configured")
}

// --- Test Helpers ---

// testCredentials returns a source whose site and admin passwords are
// "site-password-1" and "admin-password-1". Hashing at cost 12 is slow, so
// the hashes are computed once.
var testCreds = func() Credentials {
	siteHash, err := HashPassword("site-password-1")
	if err != nil {
		panic(err)
	}
	adminHash, err := HashPassword("admin-password-1")
	if err != nil {
		panic(err)
	}
	return Credentials{SitePasswordHash: siteHash, AdminPasswordHash: adminHash}
}()

func newTestHandler() *Handler {
	source := &mockCredentialSource{
		credentialsFn: func(ctx context.Context) (Credentials, error) {
			return testCreds, nil
		},
	}
	return NewHandler(source, NewLimiter(), false)
}

// postLogin performs a login request against the handler and returns the
// recorder and decoded body.
func postLogin(t *testing.T, h *Handler, admin bool, password string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	e := echo.New()
	body := `{"password":` + mustJSON(t, password) + `}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var err error
	if admin {
		err = h.AdminLogin(c)
	} else {
		err = h.Login(c)
	}
	if err != nil {
		// Domain errors surface through the error handler in production;
		// here we synthesize the equivalent response for assertions.
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("unexpected non-domain error: %v", err)
		}
		rec = httptest.NewRecorder()
		c2 := e.NewContext(req, rec)
		if jsonErr := c2.JSON(appErr.Status, appErr); jsonErr != nil {
			t.Fatalf("writing error response: %v", jsonErr)
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return rec, decoded
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling %v: %v", v, err)
	}
	return string(b)
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	h := newTestHandler()

	rec, body := postLogin(t, h, false, "site-password-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Error("expected success=true")
	}
	if _, ok := body["expiresAt"].(float64); !ok {
		t.Error("expected numeric expiresAt in response")
	}

	cookie := sessionCookie(rec, SiteCookieName)
	if cookie == nil {
		t.Fatal("expected site session cookie to be set")
	}
	session := DecodeSession(cookie.Value)
	if session == nil || !session.IsAuthenticated || session.IsAdmin {
		t.Errorf("expected authenticated non-admin session, got %+v", session)
	}
	if cookie.Path != "/" {
		t.Errorf("expected cookie path /, got %q", cookie.Path)
	}
}

func TestAdminLogin_Success(t *testing.T) {
	h := newTestHandler()

	rec, _ := postLogin(t, h, true, "admin-password-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := sessionCookie(rec, AdminCookieName)
	if cookie == nil {
		t.Fatal("expected admin session cookie to be set")
	}
	session := DecodeSession(cookie.Value)
	if session == nil || !session.IsAdmin {
		t.Errorf("expected admin session, got %+v", session)
	}
	if cookie.Path != "/admin" {
		t.Errorf("expected cookie path /admin, got %q", cookie.Path)
	}
}

// The site password must not open the admin door.
func TestAdminLogin_SitePasswordRejected(t *testing.T) {
	h := newTestHandler()

	rec, body := postLogin(t, h, true, "site-password-1")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["error"] != apperror.CodeInvalidCredentials {
		t.Errorf("expected %s, got %v", apperror.CodeInvalidCredentials, body["error"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newTestHandler()

	rec, body := postLogin(t, h, false, "wrong-password-1")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["error"] != apperror.CodeInvalidCredentials {
		t.Errorf("expected %s, got %v", apperror.CodeInvalidCredentials, body["error"])
	}
	if got, ok := body["remainingAttempts"].(float64); !ok || int(got) != maxAttempts-1 {
		t.Errorf("expected %d remaining attempts, got %v", maxAttempts-1, body["remainingAttempts"])
	}
}

func TestLogin_ValidationError(t *testing.T) {
	h := newTestHandler()

	rec, body := postLogin(t, h, false, "short")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] != apperror.CodeValidationError {
		t.Errorf("expected %s, got %v", apperror.CodeValidationError, body["error"])
	}
}

func TestLogin_RateLimitedAfterExhaustion(t *testing.T) {
	h := newTestHandler()

	for i := 0; i < maxAttempts; i++ {
		rec, _ := postLogin(t, h, false, "wrong-password-1")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec, body := postLogin(t, h, false, "wrong-password-1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhaustion, got %d", rec.Code)
	}
	if body["error"] != apperror.CodeRateLimited {
		t.Errorf("expected %s, got %v", apperror.CodeRateLimited, body["error"])
	}
	if _, ok := body["resetTime"].(float64); !ok {
		t.Error("expected numeric resetTime in 429 body")
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}

	// Even the correct password is refused while blocked.
	rec, _ = postLogin(t, h, false, "site-password-1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for correct password while blocked, got %d", rec.Code)
	}
}

func TestLogin_SuccessResetsLimiter(t *testing.T) {
	h := newTestHandler()

	for i := 0; i < maxAttempts-1; i++ {
		postLogin(t, h, false, "wrong-password-1")
	}
	rec, _ := postLogin(t, h, false, "site-password-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected successful login on final attempt, got %d", rec.Code)
	}

	// Quota is fully restored, so another bad run gets all five attempts.
	for i := 0; i < maxAttempts; i++ {
		rec, _ := postLogin(t, h, false, "wrong-password-1")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("post-reset attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
}

func TestLogin_CredentialSourceFailure(t *testing.T) {
	source := &mockCredentialSource{
		credentialsFn: func(ctx context.Context) (Credentials, error) {
			return Credentials{}, errors.New("database is down")
		},
	}
	h := NewHandler(source, NewLimiter(), false)

	rec, body := postLogin(t, h, false, "site-password-1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["error"] != apperror.CodeConfiguration {
		t.Errorf("expected %s, got %v", apperror.CodeConfiguration, body["error"])
	}
	if msg, _ := body["message"].(string); strings.Contains(msg, "database") {
		t.Errorf("internal detail leaked to client: %q", msg)
	}
}

// --- Logout Tests ---

func TestLogout_ClearsBothCookies(t *testing.T) {
	h := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	site := sessionCookie(rec, SiteCookieName)
	admin := sessionCookie(rec, AdminCookieName)
	if site == nil || admin == nil {
		t.Fatal("expected both cookies in the logout response")
	}
	for _, cookie := range []*http.Cookie{site, admin} {
		if cookie.Value != "" || cookie.MaxAge != -1 {
			t.Errorf("expected %s to be cleared, got value=%q maxAge=%d", cookie.Name, cookie.Value, cookie.MaxAge)
		}
	}
}

// --- Check Tests ---

func TestCheck_States(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	check := func(cookie *http.Cookie) map[string]any {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		if err := h.Check(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("check must always return 200, got %d", rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		return body
	}

	// No cookie.
	if body := check(nil); body["isAuthenticated"] != false {
		t.Error("expected isAuthenticated=false without a cookie")
	}

	// Garbage cookie.
	garbage := &http.Cookie{Name: SiteCookieName, Value: "not-a-session"}
	if body := check(garbage); body["isAuthenticated"] != false {
		t.Error("expected isAuthenticated=false for a garbage cookie")
	}

	// Valid session.
	valid := SiteSessionCookie(NewSession(false), false)
	body := check(valid)
	if body["isAuthenticated"] != true {
		t.Error("expected isAuthenticated=true for a valid session")
	}
	if _, ok := body["expiresAt"].(float64); !ok {
		t.Error("expected expiresAt alongside a valid session")
	}

	// Expired session.
	expired := Session{IsAuthenticated: true, ExpiresAt: 1}
	cookie := &http.Cookie{Name: SiteCookieName, Value: EncodeSession(expired)}
	if body := check(cookie); body["isAuthenticated"] != false {
		t.Error("expected isAuthenticated=false for an expired session")
	}
}

func TestAdminCheck_SiteSessionIsNotAdmin(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	// A site session presented on the admin check must not read as admin.
	req := httptest.NewRequest(http.MethodGet, "/admin/api/check", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: EncodeSession(NewSession(false))})
	rec := httptest.NewRecorder()
	if err := h.AdminCheck(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["isAuthenticated"] != false || body["isAdmin"] != false {
		t.Errorf("expected non-admin result, got %v", body)
	}
}
