package siteconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyxmakerx/librarium/internal/apperror"
)

// ErrNotConfigured is returned when the site_config table has no row yet,
// i.e. first boot before the initial setup has run.
var ErrNotConfigured = errors.New("site not configured")

// Repository defines the data access contract for the site configuration.
type Repository interface {
	// Get retrieves the configuration row. Returns ErrNotConfigured if none exists.
	Get(ctx context.Context) (*SiteConfig, error)

	// Create inserts the initial configuration row.
	Create(ctx context.Context, cfg *SiteConfig) error

	// Update persists the full configuration row identified by cfg.ID.
	Update(ctx context.Context, cfg *SiteConfig) error

	// TouchLastSync stamps last_sync_at with the current time.
	TouchLastSync(ctx context.Context, id string) error
}

// repository implements Repository using MariaDB.
type repository struct {
	db *sql.DB
}

// NewRepository creates a site config repository backed by MariaDB.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Get retrieves the single configuration row.
func (r *repository) Get(ctx context.Context) (*SiteConfig, error) {
	query := `SELECT id, title, logo_url, slogan, help_text, github_repo, branch,
	                 folders, iframe_url, auto_refresh_enabled, refresh_interval_minutes,
	                 last_sync_at, site_password_hash, admin_password_hash,
	                 created_at, updated_at
	          FROM site_config LIMIT 1`

	var cfg SiteConfig
	var foldersJSON []byte
	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.ID, &cfg.Title, &cfg.LogoURL, &cfg.Slogan, &cfg.HelpText,
		&cfg.GitHubRepo, &cfg.Branch, &foldersJSON, &cfg.IframeURL,
		&cfg.AutoRefreshEnabled, &cfg.RefreshIntervalMinutes, &cfg.LastSyncAt,
		&cfg.SitePasswordHash, &cfg.AdminPasswordHash,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("querying site config: %w", err))
	}

	if len(foldersJSON) > 0 {
		if err := json.Unmarshal(foldersJSON, &cfg.Folders); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("decoding folders column: %w", err))
		}
	}
	return &cfg, nil
}

// Create inserts the initial configuration row, assigning a UUID if none set.
func (r *repository) Create(ctx context.Context, cfg *SiteConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	foldersJSON, err := json.Marshal(cfg.Folders)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encoding folders column: %w", err))
	}

	query := `INSERT INTO site_config
	              (id, title, logo_url, slogan, help_text, github_repo, branch,
	               folders, iframe_url, auto_refresh_enabled, refresh_interval_minutes,
	               site_password_hash, admin_password_hash)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		cfg.ID, cfg.Title, cfg.LogoURL, cfg.Slogan, cfg.HelpText,
		cfg.GitHubRepo, cfg.Branch, foldersJSON, cfg.IframeURL,
		cfg.AutoRefreshEnabled, cfg.RefreshIntervalMinutes,
		cfg.SitePasswordHash, cfg.AdminPasswordHash,
	)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("inserting site config: %w", err))
	}
	return nil
}

// Update persists the full row. The service merges partial input into the
// current row first, so a plain full-column UPDATE keeps the SQL simple.
func (r *repository) Update(ctx context.Context, cfg *SiteConfig) error {
	foldersJSON, err := json.Marshal(cfg.Folders)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encoding folders column: %w", err))
	}

	query := `UPDATE site_config SET
	              title = ?, logo_url = ?, slogan = ?, help_text = ?,
	              github_repo = ?, branch = ?, folders = ?, iframe_url = ?,
	              auto_refresh_enabled = ?, refresh_interval_minutes = ?,
	              site_password_hash = ?, admin_password_hash = ?
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		cfg.Title, cfg.LogoURL, cfg.Slogan, cfg.HelpText,
		cfg.GitHubRepo, cfg.Branch, foldersJSON, cfg.IframeURL,
		cfg.AutoRefreshEnabled, cfg.RefreshIntervalMinutes,
		cfg.SitePasswordHash, cfg.AdminPasswordHash,
		cfg.ID,
	)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("updating site config: %w", err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// RowsAffected is also 0 when nothing changed, so double-check
		// the row actually exists before reporting it missing.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM site_config WHERE id = ?`, cfg.ID).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return ErrNotConfigured
		}
	}
	return nil
}

// TouchLastSync stamps last_sync_at with NOW().
func (r *repository) TouchLastSync(ctx context.Context, id string) error {
	query := `UPDATE site_config SET last_sync_at = NOW() WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return apperror.NewInternal(fmt.Errorf("stamping last sync: %w", err))
	}
	return nil
}
