package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vibe/internal/runtime"
	"vibe/internal/source"
	storepkg "vibe/internal/store"
	"vibe/internal/ui"
)

type fakeSkills struct {
	calls []string
	err   error
}

func (f *fakeSkills) Add(_ context.Context, repo string) error {
	f.calls = append(f.calls, "add "+repo)
	return f.err
}

func (f *fakeSkills) List(context.Context) error {
	f.calls = append(f.calls, "ls")
	return f.err
}

func (f *fakeSkills) Update(context.Context) error {
	f.calls = append(f.calls, "update")
	return f.err
}

func (f *fakeSkills) Remove(_ context.Context, names []string) error {
	f.calls = append(f.calls, "remove")
	return f.err
}

type fakePython struct {
	checkErr  error
	ensureErr error
	ensured   []string
}

func (f *fakePython) Check(context.Context) (runtime.Interpreter, error) {
	return runtime.Interpreter{Path: "python3", Version: "3.12.0"}, f.checkErr
}

func (f *fakePython) Ensure(_ context.Context, root string, _ runtime.Interpreter) error {
	f.ensured = append(f.ensured, root)
	return f.ensureErr
}

func (f *fakePython) ActivationHint() string { return "source .venv/bin/activate" }

type fakeBun struct {
	err error
}

func (f fakeBun) Ensure(context.Context) (bool, error) { return false, f.err }
func (f fakeBun) Available() bool                     { return f.err == nil }

type scriptedPrompter struct {
	answers [][]string
	confirm bool
}

func (p *scriptedPrompter) MultiSelect(string, []ui.Option) ([]string, error) {
	if len(p.answers) == 0 {
		return nil, ui.ErrCancelled
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	return next, nil
}

func (p *scriptedPrompter) Confirm(string) (bool, error) { return p.confirm, nil }

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tool", "fmt.ts"), "fmt\n")
	writeFile(t, filepath.Join(dir, "tool", "fmt.py"), "fmt\n")
	writeFile(t, filepath.Join(dir, "tool", "lint.ts"), "lint\n")
	writeFile(t, filepath.Join(dir, "rules", "common", "base.md"), "base\n")
	writeFile(t, filepath.Join(dir, "rules", "go", "style.md"), "go\n")
	return dir
}

type harness struct {
	svc    *Service
	skills *fakeSkills
	python *fakePython
	prompt *scriptedPrompter
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{skills: &fakeSkills{}, python: &fakePython{}, prompt: &scriptedPrompter{confirm: true}}
	opts.Dir = t.TempDir()
	opts.ConfigPath = filepath.Join(t.TempDir(), "config.toml")
	opts.Logger = zap.NewNop()
	opts.Skills = h.skills
	opts.Python = h.python
	if opts.Bun == nil {
		opts.Bun = fakeBun{}
	}
	if opts.Prompter == nil {
		opts.Prompter = h.prompt
	}
	opts.Now = func() time.Time { return testNow }
	svc, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	h.svc = svc
	return h
}

func TestAddRequiresRepository(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.Add(context.Background(), AddRequest{})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestAddInstallsSelectionFromFlags(t *testing.T) {
	h := newHarness(t, Options{})
	repo := sourceRepo(t)

	res, err := h.svc.Add(context.Background(), AddRequest{Repo: repo, Tools: []string{"fmt"}, Rules: []string{"go"}})
	require.NoError(t, err)
	assert.Equal(t, repo, res.Source)
	assert.Equal(t, []string{"fmt", "lint"}, res.Catalog.Tools)
	assert.True(t, res.Installed.RequiresSecondaryRuntime)
	assert.Equal(t, "source .venv/bin/activate", res.ActivationHint)
	assert.Equal(t, []string{h.svc.Layout.Root}, h.python.ensured)
	assert.Equal(t, []string{"add " + repo}, h.skills.calls)

	lock := h.svc.Store.Load().Lock
	item, ok := lock.Get(storepkg.KindTool, "fmt")
	require.True(t, ok)
	assert.Equal(t, repo, item.Source)
	assert.True(t, item.InstalledAt.Equal(testNow))
}

func TestAddRejectsUnknownSelection(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t), Tools: []string{"nope"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "tool nope")
}

func TestAddInteractiveSelection(t *testing.T) {
	h := newHarness(t, Options{})
	h.prompt.answers = [][]string{{"lint"}, {}}

	res, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t)})
	require.NoError(t, err)
	assert.Equal(t, []string{"lint"}, res.Installed.Tools)
	assert.False(t, res.Installed.RequiresSecondaryRuntime)
	assert.Empty(t, h.python.ensured)
}

func TestAddCancelledSelectionInstallsNothing(t *testing.T) {
	h := newHarness(t, Options{})
	res, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t)})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.NoFileExists(t, h.svc.Layout.LockFile)
}

func TestAddFetchFailureIsFatal(t *testing.T) {
	h := newHarness(t, Options{Fetcher: source.FetcherFunc(func(ctx context.Context, url string) (source.Snapshot, error) {
		return source.Snapshot{}, errors.Join(source.ErrFetch, errors.New("unreachable"))
	})})
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: "acme/kit", All: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrFetch))
}

func TestAddMissingPythonIsEnvironmentError(t *testing.T) {
	h := newHarness(t, Options{})
	h.python.checkErr = runtime.ErrEnvironment
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t), All: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, runtime.ErrEnvironment))
	assert.NoFileExists(t, h.svc.Layout.LockFile)
}

func TestAddMissingBunIsEnvironmentError(t *testing.T) {
	h := newHarness(t, Options{Bun: fakeBun{err: runtime.ErrEnvironment}})
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t), All: true})
	assert.True(t, errors.Is(err, runtime.ErrEnvironment))
	assert.Empty(t, h.skills.calls)
}

func TestAddSkillsAndPythonFailuresAreWarnings(t *testing.T) {
	h := newHarness(t, Options{})
	h.skills.err = errors.New("pnpx missing")
	h.python.ensureErr = errors.New("pip failed")

	res, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t), All: true})
	require.NoError(t, err)
	codes := map[string]Severity{}
	for _, n := range res.Notices {
		codes[n.Code] = n.Severity
	}
	assert.Equal(t, SeverityWarn, codes["SKILLS_ADD"])
	assert.Equal(t, SeverityWarn, codes["RUNTIME_PYTHON_SETUP"])
	lock := h.svc.Store.Load().Lock
	assert.Equal(t, []string{"fmt", "lint"}, lock.Names(storepkg.KindTool))
}

func TestUpdateRemoveAndList(t *testing.T) {
	h := newHarness(t, Options{})
	repo := sourceRepo(t)
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: repo, All: true})
	require.NoError(t, err)

	writeFile(t, filepath.Join(repo, "tool", "lint.ts"), "lint v2\n")
	up, err := h.svc.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, up.Report.Succeeded)
	data, err := os.ReadFile(filepath.Join(h.svc.Layout.ToolDir, "lint.ts"))
	require.NoError(t, err)
	assert.Equal(t, "lint v2\n", string(data))

	rm, err := h.svc.Remove(context.Background(), []string{"lint", "owner/skill"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"lint"}, rm.Removed.Tools)
	require.Len(t, rm.Notices, 1)
	assert.Equal(t, "APP_NOT_FOUND", rm.Notices[0].Code)

	list, err := h.svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, storepkg.StatusLoaded, list.LockStatus)
	require.Len(t, list.Tools, 1)
	assert.Equal(t, "fmt", list.Tools[0].Name)
	require.Len(t, list.Rules, 1)
	assert.Equal(t, "go", list.Rules[0].Name)
	assert.Equal(t, []string{"add " + repo, "update", "remove", "ls"}, h.skills.calls)
}

func TestUpdatePartialFailureIsNotAnError(t *testing.T) {
	h := newHarness(t, Options{})
	good := sourceRepo(t)
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: good, Tools: []string{"lint"}})
	require.NoError(t, err)

	lock := h.svc.Store.Load().Lock
	lock.Upsert(storepkg.KindTool, "orphan", storepkg.InstalledItem{Source: filepath.Join(t.TempDir(), "gone"), InstalledAt: testNow})
	require.NoError(t, h.svc.Store.Save(lock))

	up, err := h.svc.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, up.Report.Succeeded)
	require.Len(t, up.Report.Failed(), 1)
}

func TestRemoveWithoutPromptNeedsNames(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.Add(context.Background(), AddRequest{Repo: sourceRepo(t), Tools: []string{"lint"}})
	require.NoError(t, err)
	h.svc.Prompter = nil

	_, err = h.svc.Remove(context.Background(), nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRunDoctorOnFreshWorkspace(t *testing.T) {
	h := newHarness(t, Options{})
	report := h.svc.RunDoctor(context.Background())
	assert.True(t, report.Healthy)
}
