// Package siteconfig manages the single-row site configuration: branding,
// the mirrored GitHub repository, refresh behavior, and the two password
// hashes that gate the site and the admin panel.
package siteconfig

import "time"

// SiteConfig is the full configuration row. There is exactly one per
// deployment. The password hashes are excluded from JSON so they can never
// leak through an API response.
type SiteConfig struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	LogoURL                string     `json:"logoUrl"`
	Slogan                 string     `json:"slogan"`
	HelpText               string     `json:"helpText"`
	GitHubRepo             string     `json:"githubRepo"`
	Branch                 string     `json:"branch"`
	Folders                []string   `json:"folders"`
	IframeURL              string     `json:"iframeUrl"`
	AutoRefreshEnabled     bool       `json:"autoRefreshEnabled"`
	RefreshIntervalMinutes int        `json:"refreshIntervalMinutes"`
	LastSyncAt             *time.Time `json:"lastSyncAt"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`

	SitePasswordHash  string `json:"-"`
	AdminPasswordHash string `json:"-"`
}

// PublicSite is the branding subset exposed without authentication, so the
// login page can show the site's title and logo before any password entry.
type PublicSite struct {
	Title      string `json:"title"`
	LogoURL    string `json:"logoUrl"`
	Slogan     string `json:"slogan"`
	HelpText   string `json:"helpText"`
	IframeURL  string `json:"iframeUrl"`
	Configured bool   `json:"configured"`
}

// UpdateInput is the admin panel's partial update. Nil fields are left
// untouched. Passwords arrive as plaintext here and are hashed by the
// service; an empty password string is treated as "keep the current one",
// never as an erase.
type UpdateInput struct {
	Title                  *string   `json:"title"`
	LogoURL                *string   `json:"logoUrl"`
	Slogan                 *string   `json:"slogan"`
	HelpText               *string   `json:"helpText"`
	GitHubRepo             *string   `json:"githubRepo"`
	Branch                 *string   `json:"branch"`
	Folders                *[]string `json:"folders"`
	IframeURL              *string   `json:"iframeUrl"`
	AutoRefreshEnabled     *bool     `json:"autoRefreshEnabled"`
	RefreshIntervalMinutes *int      `json:"refreshIntervalMinutes"`
	SitePassword           *string   `json:"sitePassword"`
	AdminPassword          *string   `json:"adminPassword"`
}
