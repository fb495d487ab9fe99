// Package github is a minimal REST client for the GitHub contents API. It
// covers exactly what the viewer needs: repository metadata, directory
// listings, raw file content, and a recursive markdown-only file tree.
//
// Every request passes through a 1 req/s rate limiter and a circuit
// breaker, so a misbehaving or rate-limiting upstream degrades the viewer
// instead of hammering GitHub harder.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/config"
)

var (
	repoURLPattern  = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)
	markdownPattern = regexp.MustCompile(`(?i)\.(md|markdown)$`)
)

// ParseRepoURL extracts the owner and repository name from a GitHub URL.
// A trailing ".git" on the repository name is stripped.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	match := repoURLPattern.FindStringSubmatch(repoURL)
	if match == nil {
		return "", "", apperror.NewValidation("Invalid GitHub repository URL")
	}
	repo = strings.TrimSuffix(strings.TrimSuffix(match[2], "/"), ".git")
	return match[1], repo, nil
}

// IsMarkdownFile reports whether the filename has a markdown extension.
func IsMarkdownFile(name string) bool {
	return markdownPattern.MatchString(name)
}

// File is one entry from a contents API directory listing.
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" or "dir"
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// TreeItem is one node of the markdown file tree served to the sidebar.
type TreeItem struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     string     `json:"type"` // "file" or "folder"
	SHA      string     `json:"sha,omitempty"`
	Size     int64      `json:"size,omitempty"`
	Children []TreeItem `json:"children,omitempty"`
}

// RepoInfo is the repository metadata subset the admin panel shows.
type RepoInfo struct {
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	Description   string `json:"description"`
	Private       bool   `json:"isPrivate"`
	DefaultBranch string `json:"defaultBranch"`
	UpdatedAt     string `json:"lastUpdated"`
}

// Client talks to the GitHub REST API for a single owner/repo/branch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	owner  string
	repo   string
	branch string

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a client for the given repository URL and branch. An
// empty branch defaults to "main". The token is optional for public repos.
func NewClient(cfg config.GitHubConfig, repoURL, branch string) (*Client, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = "main"
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "github-api",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
		// A 404 or quota 429 is GitHub answering normally, not an outage.
		// Only transport errors and 5xx-class responses count as failures,
		// otherwise a few stale sidebar links would open the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var appErr *apperror.AppError
			return errors.As(err, &appErr) &&
				(appErr.Status == http.StatusNotFound || appErr.Status == http.StatusTooManyRequests)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("github circuit breaker state change",
				"from", from.String(), "to", to.String())
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		token:      cfg.Token,
		owner:      owner,
		repo:       repo,
		branch:     branch,
		// GitHub allows 5000 req/h authenticated but only 60 unauthenticated.
		// One per second keeps a busy viewer inside both budgets.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		breaker: breaker,
	}, nil
}

// Repo returns the "owner/name" slug this client is bound to.
func (c *Client) Repo() string {
	return c.owner + "/" + c.repo
}

// Branch returns the branch this client reads from.
func (c *Client) Branch() string {
	return c.branch
}

// get performs a rate-limited, breaker-guarded GET and returns the body.
func (c *Client) get(ctx context.Context, apiPath string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("waiting for github rate limit: %w", err))
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doGet(ctx, apiPath, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperror.NewGitHubFetch(http.StatusServiceUnavailable,
			"GitHub is temporarily unavailable. Please try again shortly.", err)
	}
	return body, err
}

func (c *Client) doGet(ctx context.Context, apiPath string, query url.Values) ([]byte, error) {
	u := c.baseURL + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("building github request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "librarium")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.NewGitHubFetch(0, "Failed to reach GitHub", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, apperror.NewGitHubFetch(0, "Failed to read GitHub response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperror.NewGitHubFetch(http.StatusNotFound,
			"File not found in repository", fmt.Errorf("github returned 404 for %s", apiPath))
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return nil, apperror.NewGitHubFetch(http.StatusTooManyRequests,
			"GitHub API rate limit exceeded. Please try again later.",
			fmt.Errorf("github rate limit exhausted"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperror.NewGitHubFetch(http.StatusBadGateway,
			"GitHub denied access to the repository",
			fmt.Errorf("github returned %d for %s", resp.StatusCode, apiPath))
	default:
		return nil, apperror.NewGitHubFetch(http.StatusBadGateway,
			"GitHub request failed",
			fmt.Errorf("github returned %d for %s", resp.StatusCode, apiPath))
	}
}

// contentEntry is the contents API response for a single file.
type contentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	HTMLURL     string `json:"html_url"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
}

func (c *Client) contentsPath(repoPath string) string {
	escaped := ""
	for i, seg := range strings.Split(repoPath, "/") {
		if i > 0 {
			escaped += "/"
		}
		escaped += url.PathEscape(seg)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, escaped)
}

// FetchFileContent returns the decoded UTF-8 content of a file.
func (c *Client) FetchFileContent(ctx context.Context, path string) (string, error) {
	body, err := c.get(ctx, c.contentsPath(path), url.Values{"ref": {c.branch}})
	if err != nil {
		return "", err
	}

	var entry contentEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		// A JSON array here means the path is a directory.
		return "", apperror.NewGitHubFetch(http.StatusBadGateway,
			"Expected a file, got a directory", fmt.Errorf("decoding content for %s: %w", path, err))
	}
	if entry.Type != "file" {
		return "", apperror.NewFileNotFound(path)
	}

	// The contents API wraps base64 at 60 columns.
	raw := strings.ReplaceAll(entry.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", apperror.NewGitHubFetch(http.StatusBadGateway,
			"Failed to decode file content", fmt.Errorf("decoding base64 for %s: %w", path, err))
	}
	return string(decoded), nil
}

// ListDirectory returns the entries of a directory in the repository.
func (c *Client) ListDirectory(ctx context.Context, path string) ([]File, error) {
	body, err := c.get(ctx, c.contentsPath(path), url.Values{"ref": {c.branch}})
	if err != nil {
		return nil, err
	}

	var entries []contentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, apperror.NewGitHubFetch(http.StatusBadGateway,
			"Expected a directory, got a file", fmt.Errorf("decoding listing for %s: %w", path, err))
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		files = append(files, File{
			Name:        e.Name,
			Path:        e.Path,
			Type:        e.Type,
			SHA:         e.SHA,
			Size:        e.Size,
			URL:         e.HTMLURL,
			DownloadURL: e.DownloadURL,
		})
	}
	return files, nil
}

// MarkdownTree builds the sidebar tree: one root node per configured
// folder, recursed depth-first, keeping only markdown files and the
// directories that (transitively) contain them.
func (c *Client) MarkdownTree(ctx context.Context, folders []string) ([]TreeItem, error) {
	tree := make([]TreeItem, 0, len(folders))
	for _, folder := range folders {
		children, err := c.markdownTreeRecursive(ctx, folder)
		if err != nil {
			// One broken folder should not blank the whole sidebar.
			slog.Warn("skipping unreadable folder", "folder", folder, "error", err)
			children = []TreeItem{}
		}
		tree = append(tree, TreeItem{
			Name:     folder,
			Path:     folder,
			Type:     "folder",
			Children: children,
		})
	}
	return tree, nil
}

func (c *Client) markdownTreeRecursive(ctx context.Context, path string) ([]TreeItem, error) {
	contents, err := c.ListDirectory(ctx, path)
	if err != nil {
		return nil, err
	}

	items := make([]TreeItem, 0, len(contents))
	for _, entry := range contents {
		switch {
		case entry.Type == "dir":
			children, err := c.markdownTreeRecursive(ctx, entry.Path)
			if err != nil {
				slog.Warn("skipping unreadable subdirectory", "path", entry.Path, "error", err)
				continue
			}
			if len(children) > 0 {
				items = append(items, TreeItem{
					Name:     entry.Name,
					Path:     entry.Path,
					Type:     "folder",
					Children: children,
				})
			}
		case entry.Type == "file" && IsMarkdownFile(entry.Name):
			items = append(items, TreeItem{
				Name: entry.Name,
				Path: entry.Path,
				Type: "file",
				SHA:  entry.SHA,
				Size: entry.Size,
			})
		}
	}
	return items, nil
}

// GetRepoInfo returns metadata for the bound repository.
func (c *Client) GetRepoInfo(ctx context.Context) (*RepoInfo, error) {
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", c.owner, c.repo), nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Name          string `json:"name"`
		FullName      string `json:"full_name"`
		Description   string `json:"description"`
		Private       bool   `json:"private"`
		DefaultBranch string `json:"default_branch"`
		UpdatedAt     string `json:"updated_at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.NewGitHubFetch(http.StatusBadGateway,
			"Failed to decode repository metadata", err)
	}
	return &RepoInfo{
		Name:          raw.Name,
		FullName:      raw.FullName,
		Description:   raw.Description,
		Private:       raw.Private,
		DefaultBranch: raw.DefaultBranch,
		UpdatedAt:     raw.UpdatedAt,
	}, nil
}

// ChangeSet describes the drift between a cached file list and the
// repository's current state.
type ChangeSet struct {
	HasChanges   bool     `json:"hasChanges"`
	ChangedFiles []string `json:"changedFiles"`
	NewFiles     []string `json:"newFiles"`
	DeletedFiles []string `json:"deletedFiles"`
}

// FileRef is a path plus the blob SHA it had when last seen.
type FileRef struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
}

// DetectChanges compares the current markdown tree of the given folders
// against a cached file list for the auto-refresh poller.
func (c *Client) DetectChanges(ctx context.Context, folders []string, cached []FileRef) (*ChangeSet, error) {
	tree, err := c.MarkdownTree(ctx, folders)
	if err != nil {
		return nil, err
	}
	current := FlattenTree(tree)

	currentByPath := make(map[string]string, len(current))
	for _, f := range current {
		currentByPath[f.Path] = f.SHA
	}
	cachedByPath := make(map[string]string, len(cached))
	for _, f := range cached {
		cachedByPath[f.Path] = f.SHA
	}

	result := &ChangeSet{
		ChangedFiles: []string{},
		NewFiles:     []string{},
		DeletedFiles: []string{},
	}
	for _, f := range current {
		prev, seen := cachedByPath[f.Path]
		switch {
		case !seen:
			result.NewFiles = append(result.NewFiles, f.Path)
		case prev != f.SHA:
			result.ChangedFiles = append(result.ChangedFiles, f.Path)
		}
	}
	for _, f := range cached {
		if _, ok := currentByPath[f.Path]; !ok {
			result.DeletedFiles = append(result.DeletedFiles, f.Path)
		}
	}
	result.HasChanges = len(result.NewFiles)+len(result.ChangedFiles)+len(result.DeletedFiles) > 0
	return result, nil
}

// FlattenTree collects every file node of a tree into a flat path+SHA list.
func FlattenTree(tree []TreeItem) []FileRef {
	var files []FileRef
	var walk func(items []TreeItem)
	walk = func(items []TreeItem) {
		for _, item := range items {
			if item.Type == "file" {
				files = append(files, FileRef{Path: item.Path, SHA: item.SHA})
			} else {
				walk(item.Children)
			}
		}
	}
	walk(tree)
	return files
}
