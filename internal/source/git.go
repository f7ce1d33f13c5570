package source

import (
	"context"
	"os"
	"sync"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// gitFetcher shallow-clones a remote into a fresh temp directory.
type gitFetcher struct {
	depth   int
	tempDir string
	logger  *zap.Logger
}

func (f *gitFetcher) Fetch(ctx context.Context, url string) (Snapshot, error) {
	dir, err := os.MkdirTemp(f.tempDir, "vibe-src-*")
	if err != nil {
		return Snapshot{}, fetchError(url, err)
	}
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := os.RemoveAll(dir); err != nil {
				f.log().Warn("temp checkout not removed", zap.String("dir", dir), zap.Error(err))
			}
		})
	}

	opts := &git.CloneOptions{
		URL:          url,
		Depth:        f.depth,
		SingleBranch: f.depth > 0,
		Tags:         git.NoTags,
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		cleanup()
		return Snapshot{}, fetchError(url, err)
	}
	return Snapshot{Dir: dir, Cleanup: cleanup}, nil
}

func (f *gitFetcher) log() *zap.Logger {
	if f.logger == nil {
		return zap.NewNop()
	}
	return f.logger
}
