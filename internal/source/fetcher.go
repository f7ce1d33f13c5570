package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vibe/internal/config"
)

// ErrFetch marks a source that could not be retrieved.
var ErrFetch = errors.New("fetch failed")

// Snapshot is a read-only checkout of a source. Cleanup releases whatever
// the fetcher created and is safe to call more than once.
type Snapshot struct {
	Dir     string
	Cleanup func()
}

func (s Snapshot) Close() {
	if s.Cleanup != nil {
		s.Cleanup()
	}
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (Snapshot, error) {
	return f(ctx, url)
}

func fetchError(url string, err error) error {
	return fmt.Errorf("SRC_FETCH: %s: %w: %w", url, ErrFetch, err)
}

// Manager routes a source URL to the git or local-directory fetcher.
type Manager struct {
	host   string
	git    Fetcher
	dir    Fetcher
	logger *zap.Logger
}

func NewManager(cfg config.SourceConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		host:   cfg.Host,
		git:    &gitFetcher{depth: cfg.Depth, logger: logger},
		dir:    dirFetcher{},
		logger: logger,
	}
}

// Resolve turns a user-supplied repository reference into a source URL.
func (m *Manager) Resolve(ref string) string {
	return ResolveRepoURL(m.host, ref)
}

func (m *Manager) Fetch(ctx context.Context, url string) (Snapshot, error) {
	if IsLocal(url) {
		m.logger.Debug("fetching local source", zap.String("source", url))
		return m.dir.Fetch(ctx, url)
	}
	m.logger.Debug("cloning source", zap.String("source", url))
	return m.git.Fetch(ctx, url)
}

// IsLocal reports whether ref names a directory on this machine.
func IsLocal(ref string) bool {
	if strings.HasPrefix(ref, "file://") {
		return true
	}
	return filepath.IsAbs(ref) || ref == "." || ref == ".." ||
		strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../")
}

// ResolveRepoURL expands "owner/repo" into a clone URL on host. Full URLs,
// scp-style remotes and local paths are returned unchanged.
func ResolveRepoURL(host, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || IsLocal(ref) || strings.Contains(ref, "://") || strings.HasPrefix(ref, "git@") {
		return ref
	}
	parts := strings.Split(strings.TrimSuffix(ref, ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ref
	}
	if host == "" {
		host = config.DefaultConfig().Source.Host
	}
	return strings.TrimRight(host, "/") + "/" + parts[0] + "/" + parts[1] + ".git"
}

// dirFetcher serves a local directory in place.
type dirFetcher struct{}

func (dirFetcher) Fetch(ctx context.Context, url string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fetchError(url, err)
	}
	dir := strings.TrimPrefix(url, "file://")
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Snapshot{}, fetchError(url, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Snapshot{}, fetchError(url, err)
	}
	if !info.IsDir() {
		return Snapshot{}, fetchError(url, fmt.Errorf("%s is not a directory", abs))
	}
	return Snapshot{Dir: abs, Cleanup: func() {}}, nil
}
