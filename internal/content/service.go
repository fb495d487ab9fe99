package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/config"
	"github.com/keyxmakerx/librarium/internal/github"
	"github.com/keyxmakerx/librarium/internal/sanitize"
	"github.com/keyxmakerx/librarium/internal/siteconfig"
)

// Cache TTLs. Content is cheap to hold a little stale; the tree drives the
// sidebar and refreshes faster.
const (
	contentCacheTTL = 10 * time.Minute
	treeCacheTTL    = 5 * time.Minute
)

// Document is a validated, sanitized markdown file ready to serve.
type Document struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	ReadingTime int            `json:"readingTime"`
	Frontmatter map[string]any `json:"frontmatter"`
	Content     string         `json:"content"`
	HTML        string         `json:"html,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Service fetches documents from the mirrored repository, validates them,
// and caches the results in Redis.
type Service struct {
	githubCfg config.GitHubConfig
	site      *siteconfig.Service
	cache     *redis.Client
	renderer  goldmark.Markdown

	// The client carries a rate limiter and circuit breaker, so it is
	// reused until the admin points the site at a different repo/branch.
	mu     sync.Mutex
	client *github.Client
	bound  string
}

// NewService creates a content service.
func NewService(githubCfg config.GitHubConfig, site *siteconfig.Service, cache *redis.Client) *Service {
	return &Service{
		githubCfg: githubCfg,
		site:      site,
		cache:     cache,
		// Raw HTML passes through the renderer untouched; the bluemonday
		// pass afterwards is what strips anything dangerous.
		renderer: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
	}
}

// clientFor returns a GitHub client bound to the currently configured
// repository, rebuilding it only when the repo or branch changed.
func (s *Service) clientFor(ctx context.Context) (*github.Client, *siteconfig.SiteConfig, error) {
	cfg, err := s.site.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cfg.GitHubRepo == "" {
		return nil, nil, apperror.NewConfiguration(errors.New("no repository configured"))
	}

	key := cfg.GitHubRepo + "#" + cfg.Branch

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.bound != key {
		client, err := github.NewClient(s.githubCfg, cfg.GitHubRepo, cfg.Branch)
		if err != nil {
			return nil, nil, err
		}
		// Repointing the site at a different repo or branch orphans
		// everything cached under the old binding.
		if s.client != nil {
			s.InvalidateCache(ctx)
		}
		s.client = client
		s.bound = key
	}
	return s.client, cfg, nil
}

// GetDocument fetches, validates, and returns a document. With renderHTML
// the sanitized markdown is also rendered to sanitized HTML.
func (s *Service) GetDocument(ctx context.Context, path string, renderHTML bool) (*Document, error) {
	client, cfg, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePath(path, cfg.Folders); err != nil {
		return nil, err
	}

	cacheKey := "content:" + path
	if renderHTML {
		cacheKey += ":html"
	}
	if doc := s.cachedDocument(ctx, cacheKey); doc != nil {
		return doc, nil
	}

	raw, err := client.FetchFileContent(ctx, path)
	if err != nil {
		return nil, err
	}

	result := Validate(raw, fileNameOf(path))
	if !result.IsValid {
		slog.Warn("document failed validation", "path", path, "errors", result.Errors)
		return nil, apperror.NewContentValidation(result.Errors[0])
	}

	doc := &Document{
		Path:        path,
		Title:       ExtractTitle(raw, fileNameOf(path)),
		Description: ExtractDescription(raw, 0),
		Tags:        ExtractTags(raw),
		ReadingTime: ReadingTime(raw),
		Frontmatter: result.Frontmatter,
		Content:     result.SanitizedContent,
		Warnings:    result.Warnings,
	}

	if renderHTML {
		html, err := s.renderHTML(result.SanitizedContent)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("rendering %s: %w", path, err))
		}
		doc.HTML = html
	}

	s.storeCached(ctx, cacheKey, doc, contentCacheTTL)
	return doc, nil
}

// GetTree returns the markdown file tree for the configured folders and
// stamps the config's last sync time on a cache miss.
func (s *Service) GetTree(ctx context.Context) ([]github.TreeItem, error) {
	client, cfg, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	if len(cfg.Folders) == 0 {
		return []github.TreeItem{}, nil
	}

	cacheKey := "tree:" + cfg.GitHubRepo + "#" + cfg.Branch
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var tree []github.TreeItem
			if json.Unmarshal(cached, &tree) == nil {
				return tree, nil
			}
		}
	}

	tree, err := client.MarkdownTree(ctx, cfg.Folders)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(tree); err == nil {
			if err := s.cache.Set(ctx, cacheKey, encoded, treeCacheTTL).Err(); err != nil {
				slog.Warn("caching file tree failed", "error", err)
			}
		}
	}
	if err := s.site.TouchLastSync(ctx); err != nil {
		slog.Warn("stamping last sync failed", "error", err)
	}
	return tree, nil
}

// RefreshIfChanged polls the repository for drift since the last snapshot
// and evicts cached entries for files that changed or disappeared. The
// first run only records a snapshot. Returns the detected changes so the
// caller can log them.
func (s *Service) RefreshIfChanged(ctx context.Context) (*github.ChangeSet, error) {
	client, cfg, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache == nil || len(cfg.Folders) == 0 {
		return &github.ChangeSet{}, nil
	}

	refsKey := "treerefs:" + cfg.GitHubRepo + "#" + cfg.Branch

	snapshot, err := s.cache.Get(ctx, refsKey).Bytes()
	if err != nil {
		tree, err := client.MarkdownTree(ctx, cfg.Folders)
		if err != nil {
			return nil, err
		}
		s.storeRefs(ctx, refsKey, github.FlattenTree(tree))
		return &github.ChangeSet{}, nil
	}

	var cached []github.FileRef
	if err := json.Unmarshal(snapshot, &cached); err != nil {
		cached = nil
	}

	changes, err := client.DetectChanges(ctx, cfg.Folders, cached)
	if err != nil {
		return nil, err
	}
	if !changes.HasChanges {
		return changes, nil
	}

	// The tree cache is always stale after a change; content entries only
	// for the files that moved.
	s.deleteKey(ctx, "tree:"+cfg.GitHubRepo+"#"+cfg.Branch)
	for _, path := range append(changes.ChangedFiles, changes.DeletedFiles...) {
		s.deleteKey(ctx, "content:"+path)
		s.deleteKey(ctx, "content:"+path+":html")
	}

	tree, err := client.MarkdownTree(ctx, cfg.Folders)
	if err != nil {
		return changes, nil
	}
	s.storeRefs(ctx, refsKey, github.FlattenTree(tree))
	if err := s.site.TouchLastSync(ctx); err != nil {
		slog.Warn("stamping last sync failed", "error", err)
	}
	return changes, nil
}

func (s *Service) storeRefs(ctx context.Context, key string, refs []github.FileRef) {
	encoded, err := json.Marshal(refs)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, encoded, 0).Err(); err != nil {
		slog.Warn("storing tree snapshot failed", "error", err)
	}
}

func (s *Service) deleteKey(ctx context.Context, key string) {
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache eviction failed", "key", key, "error", err)
	}
}

// CheckRepoAccess reports whether the configured repository is reachable.
func (s *Service) CheckRepoAccess(ctx context.Context) (*github.RepoInfo, error) {
	client, _, err := s.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetRepoInfo(ctx)
}

// InvalidateCache drops cached content after the admin changes the
// repository settings. Redis being down just means a slow next request.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"content:*", "tree:*", "treerefs:*"} {
		iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
				slog.Warn("cache invalidation failed", "key", iter.Val(), "error", err)
			}
		}
	}
}

func (s *Service) renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.renderer.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return sanitize.HTML(buf.String()), nil
}

func (s *Service) cachedDocument(ctx context.Context, key string) *Document {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return &doc
}

func (s *Service) storeCached(ctx context.Context, key string, doc *Document, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, encoded, ttl).Err(); err != nil {
		slog.Warn("caching document failed", "key", key, "error", err)
	}
}

// validatePath rejects traversal attempts and anything outside the
// configured folders before a path ever reaches the GitHub API.
func validatePath(path string, folders []string) error {
	if path == "" {
		return apperror.NewValidation("File path is required")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return apperror.NewValidation("Invalid file path")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return apperror.NewValidation("Invalid file path")
		}
	}
	if !github.IsMarkdownFile(path) {
		return apperror.NewValidation("Only markdown files can be viewed")
	}

	for _, folder := range folders {
		if path == folder || strings.HasPrefix(path, folder+"/") {
			return nil
		}
	}
	return apperror.NewValidation("File is outside the configured folders")
}

func fileNameOf(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
