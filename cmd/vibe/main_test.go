package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"vibe/internal/app"
	"vibe/internal/config"
	"vibe/internal/runtime"
	"vibe/internal/source"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// run executes the root command against an isolated project and settings
// file with the skills installer switched off.
func run(t *testing.T, project string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("VIBE_SKILLS_ENABLED", "false")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	// A pipe is never a terminal, so no prompts are offered.
	in, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	_ = w.Close()
	defer in.Close()
	cmd.SetIn(in)
	settings := filepath.Join(filepath.Dir(project), "settings.toml")
	cmd.SetArgs(append([]string{"--dir", project, "--config", settings, "--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), err
}

func sourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tool", "lint.ts"), "export default {}\n")
	writeFile(t, filepath.Join(dir, "rules", "common", "base.md"), "# base\n")
	writeFile(t, filepath.Join(dir, "rules", "go", "style.md"), "# go\n")
	return dir
}

func projectDir(t *testing.T) string {
	t.Helper()
	project := filepath.Join(t.TempDir(), "project")
	if err := os.MkdirAll(project, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return project
}

func TestNewRootCmdIncludesCoreCommands(t *testing.T) {
	cmd := newRootCmd()
	got := map[string]*cobra.Command{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = c
	}
	for _, want := range []string{"add", "update", "remove", "list", "doctor", "config", "version"} {
		if got[want] == nil {
			t.Fatalf("expected command %q", want)
		}
	}
	aliases := map[string]string{"add": "a", "update": "up", "remove": "rm", "list": "ls"}
	for name, alias := range aliases {
		if !got[name].HasAlias(alias) {
			t.Fatalf("expected %q to have alias %q", name, alias)
		}
	}
}

func TestClassifyMapsErrorClassesToExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("APP_ADD: bad: %w", app.ErrValidation), exitValidation},
		{fmt.Errorf("RUNTIME_BUN: missing: %w", runtime.ErrEnvironment), exitEnvironment},
		{fmt.Errorf("SRC_FETCH: x: %w", source.ErrFetch), exitFetch},
		{errors.New("boom"), exitUnexpected},
		{&exitError{code: 7, msg: "custom"}, 7},
	}
	for _, tc := range cases {
		var ex ExitCoder
		if !errors.As(classify(tc.err), &ex) {
			t.Fatalf("classify(%v) did not produce an ExitCoder", tc.err)
		}
		if ex.ExitCode() != tc.code {
			t.Fatalf("classify(%v) = %d, want %d", tc.err, ex.ExitCode(), tc.code)
		}
	}
}

func TestVersionCommandPrintsBuildInfo(t *testing.T) {
	out, err := run(t, projectDir(t), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "vibe "+config.Version) {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = run(t, projectDir(t), "--json", "version")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if info["commit"] != config.Commit {
		t.Fatalf("unexpected commit %q", info["commit"])
	}
}

func TestAddWithoutRepoIsValidationError(t *testing.T) {
	_, err := run(t, projectDir(t), "add")
	if !errors.Is(err, app.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddWithoutSelectionOrTerminalIsValidationError(t *testing.T) {
	_, err := run(t, projectDir(t), "add", sourceDir(t))
	if !errors.Is(err, app.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddUnknownLocalSourceIsFetchError(t *testing.T) {
	_, err := run(t, projectDir(t), "add", filepath.Join(t.TempDir(), "missing"), "--all")
	if !errors.Is(err, source.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var ex ExitCoder
	if !errors.As(classify(err), &ex) || ex.ExitCode() != exitFetch {
		t.Fatalf("expected exit code %d", exitFetch)
	}
}

func TestAddListRemoveFlow(t *testing.T) {
	project := projectDir(t)
	src := sourceDir(t)

	out, err := run(t, project, "add", src, "--all")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "tool  lint") || !strings.Contains(out, "rules go") {
		t.Fatalf("unexpected add output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(project, ".opencode", "tool", "lint.ts")); err != nil {
		t.Fatalf("tool not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project, ".opencode", "vibe-lock.json")); err != nil {
		t.Fatalf("lock not written: %v", err)
	}

	out, err = run(t, project, "--json", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed app.ListResult
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(listed.Tools) != 1 || listed.Tools[0].Name != "lint" || listed.Tools[0].Source != src {
		t.Fatalf("unexpected tools %+v", listed.Tools)
	}
	if len(listed.Rules) != 1 || listed.Rules[0].Name != "go" {
		t.Fatalf("expected only the go category tracked, got %+v", listed.Rules)
	}
	if _, err := os.Stat(filepath.Join(project, ".opencode", "rules", "common", "base.md")); err != nil {
		t.Fatalf("common baseline not copied: %v", err)
	}

	out, err = run(t, project, "remove", "lint", "--yes")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out, "removed tool lint") {
		t.Fatalf("unexpected remove output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(project, ".opencode", "tool", "lint.ts")); !os.IsNotExist(err) {
		t.Fatalf("expected tool file removed, got %v", err)
	}

	out, err = run(t, project, "list", "--no-skills")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "tools (") || !strings.Contains(out, "none installed yet") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
}

func TestDoctorReportsMissingWorkspace(t *testing.T) {
	out, err := run(t, projectDir(t), "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(out, "DOC_WORKSPACE_MISSING") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	project := projectDir(t)
	if _, err := run(t, project, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	settings := filepath.Join(filepath.Dir(project), "settings.toml")
	if _, err := os.Stat(settings); err != nil {
		t.Fatalf("settings not written: %v", err)
	}
	if _, err := run(t, project, "config", "init"); !errors.Is(err, app.ErrValidation) {
		t.Fatalf("expected validation error on second init, got %v", err)
	}
	if _, err := run(t, project, "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	out, err := run(t, project, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[workspace]") {
		t.Fatalf("unexpected settings output:\n%s", out)
	}
}
