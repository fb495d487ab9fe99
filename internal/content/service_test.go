package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/config"
	"github.com/keyxmakerx/librarium/internal/siteconfig"
)

// --- Mock Site Config Repository ---

// mockConfigRepo implements siteconfig.Repository for testing.
type mockConfigRepo struct {
	getFn           func(ctx context.Context) (*siteconfig.SiteConfig, error)
	touchLastSyncFn func(ctx context.Context, id string) error
}

func (m *mockConfigRepo) Get(ctx context.Context) (*siteconfig.SiteConfig, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return nil, siteconfig.ErrNotConfigured
}

func (m *mockConfigRepo) Create(ctx context.Context, cfg *siteconfig.SiteConfig) error {
	return nil
}

func (m *mockConfigRepo) Update(ctx context.Context, cfg *siteconfig.SiteConfig) error {
	return nil
}

func (m *mockConfigRepo) TouchLastSync(ctx context.Context, id string) error {
	if m.touchLastSyncFn != nil {
		return m.touchLastSyncFn(ctx, id)
	}
	return nil
}

// --- Test Helpers ---

// fakeGitHub serves the contents API for a map of path -> file content.
// Directory listings are derived from the file paths.
func fakeGitHub(t *testing.T, files map[string]string, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return fakeGitHubDynamic(t, func() map[string]string { return files }, requests)
}

// fakeGitHubDynamic is fakeGitHub over a mutable file set. Entry SHAs
// track content length so change detection sees edits.
func fakeGitHubDynamic(t *testing.T, snapshot func() map[string]string, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	fileSHA := func(path, content string) string {
		return fmt.Sprintf("sha-%s-%d", path, len(content))
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		const prefix = "/repos/acme/docs/contents/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, prefix)
		files := snapshot()

		if content, ok := files[path]; ok {
			entry := map[string]any{
				"name":     path[strings.LastIndex(path, "/")+1:],
				"path":     path,
				"type":     "file",
				"sha":      fileSHA(path, content),
				"size":     len(content),
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
				"encoding": "base64",
			}
			if err := json.NewEncoder(w).Encode(entry); err != nil {
				t.Errorf("encoding file entry: %v", err)
			}
			return
		}

		// Directory listing: direct children of the requested path.
		var listing []map[string]any
		seen := map[string]bool{}
		for filePath := range files {
			if !strings.HasPrefix(filePath, path+"/") {
				continue
			}
			rest := strings.TrimPrefix(filePath, path+"/")
			if idx := strings.Index(rest, "/"); idx >= 0 {
				dir := path + "/" + rest[:idx]
				if !seen[dir] {
					seen[dir] = true
					listing = append(listing, map[string]any{
						"name": rest[:idx], "path": dir, "type": "dir", "sha": "sha-" + dir,
					})
				}
			} else {
				listing = append(listing, map[string]any{
					"name": rest, "path": filePath, "type": "file",
					"sha": fileSHA(filePath, files[filePath]), "size": len(files[filePath]),
				})
			}
		}
		if listing == nil {
			http.NotFound(w, r)
			return
		}
		if err := json.NewEncoder(w).Encode(listing); err != nil {
			t.Errorf("encoding listing: %v", err)
		}
	}))
}

// newTestService wires a content service against a fake GitHub server and
// a miniredis cache.
func newTestService(t *testing.T, serverURL string) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := &mockConfigRepo{
		getFn: func(ctx context.Context) (*siteconfig.SiteConfig, error) {
			return &siteconfig.SiteConfig{
				ID:         "cfg-1",
				GitHubRepo: "https://github.com/acme/docs",
				Branch:     "main",
				Folders:    []string{"docs"},
			}, nil
		},
	}

	githubCfg := config.GitHubConfig{
		APIBaseURL:     serverURL,
		RequestTimeout: 5 * time.Second,
	}
	return NewService(githubCfg, siteconfig.NewService(repo), rdb)
}

// --- Document Tests ---

func TestGetDocument_FetchValidateCache(t *testing.T) {
	var requests atomic.Int64
	server := fakeGitHub(t, map[string]string{
		"docs/intro.md": "---\ntitle: Intro\ntags:\n  - start\n---\n# Intro\n\nWelcome aboard.\n",
	}, &requests)
	defer server.Close()

	svc := newTestService(t, server.URL)
	ctx := context.Background()

	doc, err := svc.GetDocument(ctx, "docs/intro.md", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Intro" {
		t.Errorf("expected title Intro, got %q", doc.Title)
	}
	if len(doc.Tags) != 1 || doc.Tags[0] != "start" {
		t.Errorf("expected tags [start], got %v", doc.Tags)
	}
	if doc.ReadingTime < 1 {
		t.Error("expected a reading time")
	}
	if !strings.Contains(doc.Content, "Welcome aboard.") {
		t.Errorf("expected body in content, got %q", doc.Content)
	}

	// Second read comes from the cache.
	if _, err := svc.GetDocument(ctx, "docs/intro.md", false); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 upstream request, got %d", got)
	}
}

func TestGetDocument_RenderHTML(t *testing.T) {
	server := fakeGitHub(t, map[string]string{
		"docs/guide.md": "# Guide\n\nSome **bold** text.\n",
	}, nil)
	defer server.Close()

	svc := newTestService(t, server.URL)

	doc, err := svc.GetDocument(context.Background(), "docs/guide.md", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.HTML, "<h1") || !strings.Contains(doc.HTML, "<strong>bold</strong>") {
		t.Errorf("expected rendered HTML, got %q", doc.HTML)
	}
}

func TestGetDocument_InvalidContentRejected(t *testing.T) {
	server := fakeGitHub(t, map[string]string{
		"docs/evil.md": "hello <script>alert(1)</script>",
	}, nil)
	defer server.Close()

	svc := newTestService(t, server.URL)

	_, err := svc.GetDocument(context.Background(), "docs/evil.md", false)
	if err == nil {
		t.Fatal("expected content validation error")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperror.CodeContentValidation {
		t.Errorf("expected CONTENT_VALIDATION_ERROR, got %v", err)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	server := fakeGitHub(t, map[string]string{}, nil)
	defer server.Close()

	svc := newTestService(t, server.URL)

	_, err := svc.GetDocument(context.Background(), "docs/missing.md", false)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

// --- Tree Tests ---

func TestGetTree(t *testing.T) {
	server := fakeGitHub(t, map[string]string{
		"docs/intro.md":        "# Intro",
		"docs/notes.txt":       "not markdown",
		"docs/deep/nested.md":  "# Nested",
		"docs/empty/ignore.go": "package ignore",
	}, nil)
	defer server.Close()

	svc := newTestService(t, server.URL)

	tree, err := svc.GetTree(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree) != 1 || tree[0].Name != "docs" {
		t.Fatalf("expected single docs root, got %+v", tree)
	}

	names := map[string]bool{}
	for _, child := range tree[0].Children {
		names[child.Name] = true
	}
	if !names["intro.md"] || !names["deep"] {
		t.Errorf("expected intro.md and deep in tree, got %v", names)
	}
	if names["notes.txt"] {
		t.Error("non-markdown file leaked into the tree")
	}
	if names["empty"] {
		t.Error("directory without markdown leaked into the tree")
	}
}

// --- Refresh Tests ---

func TestRefreshIfChanged(t *testing.T) {
	var mu sync.Mutex
	files := map[string]string{
		"docs/a.md": "# One\n",
		"docs/b.md": "# Two\n",
	}
	server := fakeGitHubDynamic(t, func() map[string]string {
		mu.Lock()
		defer mu.Unlock()
		copied := make(map[string]string, len(files))
		for k, v := range files {
			copied[k] = v
		}
		return copied
	}, nil)
	defer server.Close()

	svc := newTestService(t, server.URL)
	ctx := context.Background()

	// First run only records the snapshot.
	changes, err := svc.RefreshIfChanged(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changes.HasChanges {
		t.Fatalf("first run must not report changes, got %+v", changes)
	}

	// Prime the document cache so eviction is observable.
	doc, err := svc.GetDocument(ctx, "docs/a.md", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Content, "One") {
		t.Fatalf("unexpected content: %q", doc.Content)
	}

	mu.Lock()
	files["docs/a.md"] = "# One, revised\n"
	delete(files, "docs/b.md")
	mu.Unlock()

	changes, err = svc.RefreshIfChanged(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changes.HasChanges {
		t.Fatal("expected changes after the edit")
	}
	if len(changes.ChangedFiles) != 1 || changes.ChangedFiles[0] != "docs/a.md" {
		t.Errorf("expected docs/a.md changed, got %v", changes.ChangedFiles)
	}
	if len(changes.DeletedFiles) != 1 || changes.DeletedFiles[0] != "docs/b.md" {
		t.Errorf("expected docs/b.md deleted, got %v", changes.DeletedFiles)
	}

	// The stale cache entry was evicted, so the next read sees the edit.
	doc, err = svc.GetDocument(ctx, "docs/a.md", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Content, "revised") {
		t.Errorf("expected refreshed content, got %q", doc.Content)
	}

	// A quiet repository reports nothing.
	changes, err = svc.RefreshIfChanged(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changes.HasChanges {
		t.Errorf("expected no changes on a quiet run, got %+v", changes)
	}
}

// --- Path Validation Tests ---

func TestValidatePath(t *testing.T) {
	folders := []string{"docs", "guides"}
	cases := []struct {
		name  string
		path  string
		valid bool
	}{
		{"in folder", "docs/intro.md", true},
		{"nested", "guides/deep/setup.markdown", true},
		{"empty", "", false},
		{"absolute", "/etc/passwd", false},
		{"traversal", "docs/../secrets.md", false},
		{"dot segment", "docs/./intro.md", false},
		{"backslash", `docs\intro.md`, false},
		{"outside folders", "private/intro.md", false},
		{"not markdown", "docs/script.sh", false},
		{"folder prefix trick", "docsx/intro.md", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePath(tc.path, folders)
			if tc.valid && err != nil {
				t.Errorf("expected %q to be accepted, got %v", tc.path, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("expected %q to be rejected", tc.path)
			}
		})
	}
}
