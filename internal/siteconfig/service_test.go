package siteconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/auth"
)

// --- Mock Repository ---

// mockRepo implements Repository for testing.
type mockRepo struct {
	getFn           func(ctx context.Context) (*SiteConfig, error)
	createFn        func(ctx context.Context, cfg *SiteConfig) error
	updateFn        func(ctx context.Context, cfg *SiteConfig) error
	touchLastSyncFn func(ctx context.Context, id string) error
}

func (m *mockRepo) Get(ctx context.Context) (*SiteConfig, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return nil, ErrNotConfigured
}

func (m *mockRepo) Create(ctx context.Context, cfg *SiteConfig) error {
	if m.createFn != nil {
		return m.createFn(ctx, cfg)
	}
	return nil
}

func (m *mockRepo) Update(ctx context.Context, cfg *SiteConfig) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, cfg)
	}
	return nil
}

func (m *mockRepo) TouchLastSync(ctx context.Context, id string) error {
	if m.touchLastSyncFn != nil {
		return m.touchLastSyncFn(ctx, id)
	}
	return nil
}

// --- Test Helpers ---

func storedConfig() *SiteConfig {
	return &SiteConfig{
		ID:                     "cfg-1",
		Title:                  "Docs",
		GitHubRepo:             "https://github.com/acme/docs",
		Branch:                 "main",
		Folders:                []string{"docs"},
		RefreshIntervalMinutes: 30,
		SitePasswordHash:       "$2a$12$existingsitehash",
		AdminPasswordHash:      "$2a$12$existingadminhash",
	}
}

func repoWithConfig(cfg *SiteConfig) *mockRepo {
	return &mockRepo{
		getFn: func(ctx context.Context) (*SiteConfig, error) {
			return cfg, nil
		},
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %s, got %s (message: %s)", code, appErr.Code, appErr.Message)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// --- Update Tests ---

func TestUpdate_PartialPatch(t *testing.T) {
	stored := storedConfig()
	var saved *SiteConfig
	repo := repoWithConfig(stored)
	repo.updateFn = func(ctx context.Context, cfg *SiteConfig) error {
		saved = cfg
		return nil
	}

	svc := NewService(repo)
	updated, err := svc.Update(context.Background(), UpdateInput{
		Title: strPtr("New Title"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil {
		t.Fatal("expected repository update to be called")
	}
	if updated.Title != "New Title" {
		t.Errorf("expected patched title, got %q", updated.Title)
	}
	// Untouched fields survive the patch.
	if updated.GitHubRepo != stored.GitHubRepo || updated.Branch != "main" {
		t.Error("expected unpatched fields to be preserved")
	}
	if updated.RefreshIntervalMinutes != 30 {
		t.Errorf("expected refresh interval to be preserved, got %d", updated.RefreshIntervalMinutes)
	}
}

// The critical invariant: omitted or empty password fields never erase the
// stored hashes.
func TestUpdate_EmptyPasswordsKeepHashes(t *testing.T) {
	stored := storedConfig()
	svc := NewService(repoWithConfig(stored))

	updated, err := svc.Update(context.Background(), UpdateInput{
		Title:         strPtr("Renamed"),
		SitePassword:  strPtr(""),
		AdminPassword: nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.SitePasswordHash != "$2a$12$existingsitehash" {
		t.Error("empty site password must not overwrite the stored hash")
	}
	if updated.AdminPasswordHash != "$2a$12$existingadminhash" {
		t.Error("absent admin password must not overwrite the stored hash")
	}
}

func TestUpdate_PasswordChangeRehashes(t *testing.T) {
	stored := storedConfig()
	svc := NewService(repoWithConfig(stored))

	updated, err := svc.Update(context.Background(), UpdateInput{
		SitePassword: strPtr("brand-new-password"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.SitePasswordHash == "$2a$12$existingsitehash" {
		t.Fatal("expected site hash to change")
	}
	if !auth.VerifyPassword("brand-new-password", updated.SitePasswordHash) {
		t.Error("expected new hash to verify the new password")
	}
	if updated.AdminPasswordHash != "$2a$12$existingadminhash" {
		t.Error("admin hash must be untouched by a site password change")
	}
}

func TestUpdate_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		input UpdateInput
	}{
		{"bad repo url", UpdateInput{GitHubRepo: strPtr("https://gitlab.com/a/b")}},
		{"empty folders", UpdateInput{Folders: &[]string{}}},
		{"traversal folder", UpdateInput{Folders: &[]string{"../etc"}}},
		{"short site password", UpdateInput{SitePassword: strPtr("short")}},
		{"common admin password", UpdateInput{AdminPassword: strPtr("password")}},
		{"interval too low", UpdateInput{RefreshIntervalMinutes: intPtr(1)}},
		{"interval too high", UpdateInput{RefreshIntervalMinutes: intPtr(10000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(repoWithConfig(storedConfig()))
			_, err := svc.Update(context.Background(), tc.input)
			assertAppErrorCode(t, err, apperror.CodeValidationError)
		})
	}
}

func TestUpdate_SanitizesDisplayFields(t *testing.T) {
	svc := NewService(repoWithConfig(storedConfig()))

	updated, err := svc.Update(context.Background(), UpdateInput{
		Title:  strPtr("  <b>Docs</b>  "),
		Slogan: strPtr(`Read "everything"`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "bDocs/b" {
		t.Errorf("expected sanitized title, got %q", updated.Title)
	}
	if updated.Slogan != "Read everything" {
		t.Errorf("expected sanitized slogan, got %q", updated.Slogan)
	}
}

func TestUpdate_NotConfigured(t *testing.T) {
	svc := NewService(&mockRepo{})
	_, err := svc.Update(context.Background(), UpdateInput{Title: strPtr("x")})
	assertAppErrorCode(t, err, apperror.CodeConfiguration)
}

// --- Credentials Tests ---

func TestCredentials(t *testing.T) {
	svc := NewService(repoWithConfig(storedConfig()))

	creds, err := svc.Credentials(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.SitePasswordHash != "$2a$12$existingsitehash" {
		t.Errorf("unexpected site hash: %q", creds.SitePasswordHash)
	}
	if creds.AdminPasswordHash != "$2a$12$existingadminhash" {
		t.Errorf("unexpected admin hash: %q", creds.AdminPasswordHash)
	}
}

func TestCredentials_NotConfigured(t *testing.T) {
	svc := NewService(&mockRepo{})
	_, err := svc.Credentials(context.Background())
	assertAppErrorCode(t, err, apperror.CodeConfiguration)
}

// --- EnsureDefault Tests ---

func TestEnsureDefault_SeedsOnFirstBoot(t *testing.T) {
	var created *SiteConfig
	repo := &mockRepo{
		createFn: func(ctx context.Context, cfg *SiteConfig) error {
			created = cfg
			return nil
		},
	}

	svc := NewService(repo)
	if err := svc.EnsureDefault(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected a config row to be created")
	}
	if created.Branch != "main" || len(created.Folders) == 0 {
		t.Errorf("unexpected seed config: %+v", created)
	}
	if !auth.VerifyPassword("TempSite2024!", created.SitePasswordHash) {
		t.Error("expected seed site hash to verify the temporary site password")
	}
	if !auth.VerifyPassword("TempAdmin2024!", created.AdminPasswordHash) {
		t.Error("expected seed admin hash to verify the temporary admin password")
	}
}

func TestEnsureDefault_ExistingConfigUntouched(t *testing.T) {
	repo := repoWithConfig(storedConfig())
	repo.createFn = func(ctx context.Context, cfg *SiteConfig) error {
		t.Fatal("must not create over an existing config")
		return nil
	}

	if err := NewService(repo).EnsureDefault(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Public Tests ---

func TestPublic_Configured(t *testing.T) {
	stored := storedConfig()
	stored.Slogan = "All the docs"
	svc := NewService(repoWithConfig(stored))

	site, err := svc.Public(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !site.Configured || site.Title != "Docs" || site.Slogan != "All the docs" {
		t.Errorf("unexpected public site: %+v", site)
	}
}

func TestPublic_Unconfigured(t *testing.T) {
	svc := NewService(&mockRepo{})

	site, err := svc.Public(context.Background())
	if err != nil {
		t.Fatalf("missing config is not an error for the public endpoint: %v", err)
	}
	if site.Configured {
		t.Error("expected configured=false")
	}
}
