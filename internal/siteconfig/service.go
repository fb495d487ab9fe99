package siteconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/auth"
)

// Field length caps applied before persisting admin input.
const (
	maxTitleLength    = 200
	maxSloganLength   = 300
	maxHelpTextLength = 2000
	maxURLLength      = 500
)

// Refresh interval bounds in minutes.
const (
	minRefreshInterval = 5
	maxRefreshInterval = 1440
)

// Service wraps the repository with validation, password hashing, and the
// partial-update merge. It also serves the auth core's credential lookups.
type Service struct {
	repo Repository
}

// NewService creates a site config service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the full configuration. Hashes never reach the client because
// they are excluded from the model's JSON encoding.
func (s *Service) Get(ctx context.Context) (*SiteConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return nil, apperror.NewConfiguration(err)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Public returns the unauthenticated branding subset. A missing config row
// is not an error here; the login page just renders defaults.
func (s *Service) Public(ctx context.Context) (*PublicSite, error) {
	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return &PublicSite{Configured: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &PublicSite{
		Title:      cfg.Title,
		LogoURL:    cfg.LogoURL,
		Slogan:     cfg.Slogan,
		HelpText:   cfg.HelpText,
		IframeURL:  cfg.IframeURL,
		Configured: true,
	}, nil
}

// Credentials implements auth.CredentialSource by reading the stored hashes.
func (s *Service) Credentials(ctx context.Context) (auth.Credentials, error) {
	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return auth.Credentials{}, apperror.NewConfiguration(err)
	}
	if err != nil {
		return auth.Credentials{}, err
	}
	return auth.Credentials{
		SitePasswordHash:  cfg.SitePasswordHash,
		AdminPasswordHash: cfg.AdminPasswordHash,
	}, nil
}

// Update applies a partial patch to the configuration. Only non-nil input
// fields are touched. Password fields are validated, hashed, and stored;
// nil or empty password fields leave the existing hashes untouched.
func (s *Service) Update(ctx context.Context, input UpdateInput) (*SiteConfig, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	cfg, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return nil, apperror.NewConfiguration(err)
	}
	if err != nil {
		return nil, err
	}

	applyPatch(cfg, input)

	if input.SitePassword != nil && *input.SitePassword != "" {
		hash, err := auth.HashPassword(*input.SitePassword)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing site password: %w", err))
		}
		cfg.SitePasswordHash = hash
	}
	if input.AdminPassword != nil && *input.AdminPassword != "" {
		hash, err := auth.HashPassword(*input.AdminPassword)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing admin password: %w", err))
		}
		cfg.AdminPasswordHash = hash
	}

	if err := s.repo.Update(ctx, cfg); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, apperror.NewConfiguration(err)
		}
		return nil, err
	}

	slog.Info("site config updated",
		"sitePasswordChanged", input.SitePassword != nil && *input.SitePassword != "",
		"adminPasswordChanged", input.AdminPassword != nil && *input.AdminPassword != "",
	)
	return cfg, nil
}

// Temporary first-boot credentials. They exist so the deployment is
// reachable before any password has been set; the admin panel prompts
// the operator to change both.
const (
	defaultSitePassword  = "TempSite2024!"
	defaultAdminPassword = "TempAdmin2024!"
)

// EnsureDefault creates the initial configuration row on first boot. A
// row that already exists is left alone.
func (s *Service) EnsureDefault(ctx context.Context) error {
	_, err := s.repo.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return err
	}

	siteHash, err := auth.HashPassword(defaultSitePassword)
	if err != nil {
		return fmt.Errorf("hashing default site password: %w", err)
	}
	adminHash, err := auth.HashPassword(defaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing default admin password: %w", err)
	}

	cfg := &SiteConfig{
		Title:                  "Documentation",
		Slogan:                 "Your documentation, beautifully organized",
		HelpText:               "Welcome! Configure this site in the admin panel.",
		Branch:                 "main",
		Folders:                []string{"docs"},
		AutoRefreshEnabled:     true,
		RefreshIntervalMinutes: 15,
		SitePasswordHash:       siteHash,
		AdminPasswordHash:      adminHash,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return err
	}
	slog.Warn("created default site config; change both temporary passwords in the admin panel")
	return nil
}

// TouchLastSync stamps the last content sync time on the config row.
func (s *Service) TouchLastSync(ctx context.Context) error {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return apperror.NewConfiguration(err)
		}
		return err
	}
	return s.repo.TouchLastSync(ctx, cfg.ID)
}

// applyPatch copies the non-nil, non-password fields of input onto cfg,
// sanitizing free-text fields along the way.
func applyPatch(cfg *SiteConfig, input UpdateInput) {
	if input.Title != nil {
		cfg.Title = auth.SanitizeString(*input.Title, maxTitleLength)
	}
	if input.LogoURL != nil {
		cfg.LogoURL = strings.TrimSpace(*input.LogoURL)
	}
	if input.Slogan != nil {
		cfg.Slogan = auth.SanitizeString(*input.Slogan, maxSloganLength)
	}
	if input.HelpText != nil {
		cfg.HelpText = auth.SanitizeString(*input.HelpText, maxHelpTextLength)
	}
	if input.GitHubRepo != nil {
		cfg.GitHubRepo = strings.TrimSpace(*input.GitHubRepo)
	}
	if input.Branch != nil {
		cfg.Branch = strings.TrimSpace(*input.Branch)
	}
	if input.Folders != nil {
		cfg.Folders = *input.Folders
	}
	if input.IframeURL != nil {
		cfg.IframeURL = strings.TrimSpace(*input.IframeURL)
	}
	if input.AutoRefreshEnabled != nil {
		cfg.AutoRefreshEnabled = *input.AutoRefreshEnabled
	}
	if input.RefreshIntervalMinutes != nil {
		cfg.RefreshIntervalMinutes = *input.RefreshIntervalMinutes
	}
}

// validateInput checks every provided field and reports the first violation.
func validateInput(input UpdateInput) error {
	if input.GitHubRepo != nil && *input.GitHubRepo != "" {
		if ok, msg := auth.ValidateGitHubRepo(strings.TrimSpace(*input.GitHubRepo)); !ok {
			return apperror.NewValidation(msg)
		}
	}
	if input.Folders != nil {
		if v := auth.ValidateFolders(*input.Folders); !v.IsValid {
			return apperror.NewValidation(v.Errors[0])
		}
	}
	if input.SitePassword != nil && *input.SitePassword != "" {
		if v := auth.ValidatePassword(*input.SitePassword); !v.IsValid {
			return apperror.NewValidation("Site password: " + v.Errors[0])
		}
	}
	if input.AdminPassword != nil && *input.AdminPassword != "" {
		if v := auth.ValidatePassword(*input.AdminPassword); !v.IsValid {
			return apperror.NewValidation("Admin password: " + v.Errors[0])
		}
	}
	if input.RefreshIntervalMinutes != nil {
		if *input.RefreshIntervalMinutes < minRefreshInterval || *input.RefreshIntervalMinutes > maxRefreshInterval {
			return apperror.NewValidation(fmt.Sprintf(
				"Refresh interval must be between %d and %d minutes", minRefreshInterval, maxRefreshInterval))
		}
	}
	if input.LogoURL != nil && len(*input.LogoURL) > maxURLLength {
		return apperror.NewValidation("Logo URL is too long")
	}
	if input.IframeURL != nil && len(*input.IframeURL) > maxURLLength {
		return apperror.NewValidation("Iframe URL is too long")
	}
	return nil
}
