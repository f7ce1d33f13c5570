package source

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tool", "fmt.ts"), "export default {}\n")
	writeFile(t, filepath.Join(dir, "tool", "fmt.py"), "print('x')\n")
	writeFile(t, filepath.Join(dir, "tool", "lint.ts"), "export default {}\n")
	writeFile(t, filepath.Join(dir, "tool", "README.md"), "docs\n")
	writeFile(t, filepath.Join(dir, "rules", "common", "base.md"), "# base\n")
	writeFile(t, filepath.Join(dir, "rules", "go", "style.md"), "# go\n")
	writeFile(t, filepath.Join(dir, "rules", "vue", "style.md"), "# vue\n")
	writeFile(t, filepath.Join(dir, "rules", "stray.md"), "x\n")
	return dir
}

func TestResolveRepoURL(t *testing.T) {
	cases := []struct{ host, in, want string }{
		{"https://github.com", "owner/repo", "https://github.com/owner/repo.git"},
		{"https://git.example.com/", "owner/repo.git", "https://git.example.com/owner/repo.git"},
		{"", "owner/repo", "https://github.com/owner/repo.git"},
		{"https://github.com", "https://gitlab.com/a/b.git", "https://gitlab.com/a/b.git"},
		{"https://github.com", "git@github.com:a/b.git", "git@github.com:a/b.git"},
		{"https://github.com", "./local/src", "./local/src"},
		{"https://github.com", "/abs/src", "/abs/src"},
		{"https://github.com", "file:///abs/src", "file:///abs/src"},
		{"https://github.com", "too/many/parts", "too/many/parts"},
		{"https://github.com", "single", "single"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveRepoURL(tc.host, tc.in), "input %q", tc.in)
	}
}

func TestScanListsToolsAndCategories(t *testing.T) {
	cat, err := Scan(sampleSource(t), config.DefaultConfig().Artifacts)
	require.NoError(t, err)
	assert.Equal(t, []string{"fmt", "lint"}, cat.Tools)
	assert.Equal(t, []string{"go", "vue"}, cat.Rules)
	assert.True(t, cat.HasTool("fmt"))
	assert.False(t, cat.HasTool("README"))
	assert.True(t, cat.HasRule("vue"))
	assert.False(t, cat.HasRule("common"))
}

func TestScanEmptySnapshot(t *testing.T) {
	cat, err := Scan(t.TempDir(), config.DefaultConfig().Artifacts)
	require.NoError(t, err)
	assert.True(t, cat.Empty())
}

func TestManagerServesLocalDirectories(t *testing.T) {
	dir := sampleSource(t)
	m := NewManager(config.DefaultConfig().Source, nil)

	for _, url := range []string{dir, "file://" + dir} {
		snap, err := m.Fetch(context.Background(), url)
		require.NoError(t, err)
		assert.Equal(t, dir, snap.Dir)
		snap.Close()
		assert.DirExists(t, dir, "local sources are never removed")
	}
}

func TestManagerLocalMissingIsFetchError(t *testing.T) {
	m := NewManager(config.DefaultConfig().Source, nil)
	_, err := m.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Contains(t, err.Error(), "SRC_FETCH")
}

func TestGitFetcherFailureRemovesTempDir(t *testing.T) {
	tmp := t.TempDir()
	f := &gitFetcher{depth: 1, tempDir: tmp}
	_, err := f.Fetch(context.Background(), "file://"+filepath.Join(tmp, "missing-repo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGitFetcherHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &gitFetcher{depth: 1, tempDir: t.TempDir()}
	_, err := f.Fetch(ctx, "https://github.com/example/never-reached.git")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
}

func TestGitFetcherClonesLocalRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available for the file transport")
	}
	repoDir := sampleSource(t)
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddGlob("."))
	_, err = wt.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	f := &gitFetcher{depth: 1, tempDir: t.TempDir()}
	snap, err := f.Fetch(context.Background(), "file://"+repoDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(snap.Dir, "tool", "fmt.ts"))

	snap.Close()
	snap.Close()
	assert.NoDirExists(t, snap.Dir)
}
