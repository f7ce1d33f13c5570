package doctor

import (
	"context"
	"path/filepath"
	"strings"

	"vibe/internal/agentconfig"
	"vibe/internal/fsutil"
	"vibe/internal/installer"
	"vibe/internal/runtime"
	"vibe/internal/store"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
	Tools    int       `json:"tools"`
	Rules    int       `json:"rules"`
}

type PythonChecker interface {
	Check(ctx context.Context) (runtime.Interpreter, error)
}

type BunChecker interface {
	Available() bool
}

type Service struct {
	Copier  installer.Copier
	Store   *store.Store
	Patcher *agentconfig.Patcher
	Python  PythonChecker
	Bun     BunChecker
}

func (s *Service) Run(ctx context.Context) Report {
	findings := []Finding{}
	add := func(code, level, msg string) {
		findings = append(findings, Finding{Code: code, Level: level, Message: msg})
	}
	layout := s.Copier.Layout

	if !fsutil.IsDir(layout.Dir) {
		add("DOC_WORKSPACE_MISSING", "info", layout.Dir+" does not exist yet; run 'vibe add' to create it")
	}

	loaded := s.Store.Load()
	lock := loaded.Lock
	switch loaded.Status {
	case store.StatusMissing:
		add("DOC_LOCK_MISSING", "info", "no lock file at "+layout.LockFile)
	case store.StatusRecovered:
		add("DOC_LOCK_RECOVERED", "error", "lock file unreadable and ignored: "+loaded.Problem.Error())
	}

	for _, name := range lock.Names(store.KindTool) {
		if _, ok := lock.Get(store.KindRule, name); ok {
			add("DOC_NAME_CONFLICT", "error", name+" is tracked as both a tool and a rule category")
		}
	}

	needsPython := false
	for _, name := range lock.Names(store.KindTool) {
		primary, secondary := s.Copier.ToolFiles(name)
		if !fsutil.Exists(primary) {
			add("DOC_TOOL_FILE_MISSING", "error", "tool "+name+" is tracked but "+primary+" is missing")
		}
		if secondary != "" && fsutil.Exists(secondary) {
			needsPython = true
		}
		if item, _ := lock.Get(store.KindTool, name); item.Source == "" {
			add("DOC_ITEM_NO_SOURCE", "warn", "tool "+name+" has no source and is skipped by update")
		}
	}
	for _, name := range lock.Names(store.KindRule) {
		if !fsutil.IsDir(filepath.Join(layout.RulesDir, name)) {
			add("DOC_RULE_DIR_MISSING", "error", "rule category "+name+" is tracked but its directory is missing")
		}
		if item, _ := lock.Get(store.KindRule, name); item.Source == "" {
			add("DOC_ITEM_NO_SOURCE", "warn", "rule category "+name+" has no source and is skipped by update")
		}
	}

	if s.Patcher != nil {
		doc, err := s.Patcher.Read()
		switch {
		case err != nil:
			add("DOC_CONFIG_INVALID", "error", err.Error())
		case doc == nil:
			if !lock.Empty() {
				add("DOC_CONFIG_MISSING", "warn", layout.ConfigFile+" is missing; tracked items are not registered with the agent")
			}
		default:
			for _, name := range lock.Names(store.KindTool) {
				if enabled, _ := doc.Tool(name); !enabled {
					add("DOC_TOOL_DISABLED", "warn", "tool "+name+" is installed but not enabled in "+filepath.Base(layout.ConfigFile))
				}
			}
			prefix := "./" + layout.RulesRef + "/"
			for _, p := range doc.Instructions() {
				if !strings.HasPrefix(p, prefix) {
					continue
				}
				rel := filepath.FromSlash(strings.TrimPrefix(p, "./"))
				if !fsutil.Exists(filepath.Join(layout.Dir, rel)) {
					add("DOC_INSTRUCTION_DANGLING", "warn", "instruction "+p+" points to a missing file")
				}
			}
		}
	}

	if s.Bun != nil && len(lock.Tools) > 0 && !s.Bun.Available() {
		add("DOC_BUN_MISSING", "warn", "bun is not on PATH; installed tools cannot run")
	}
	if s.Python != nil && needsPython {
		if _, err := s.Python.Check(ctx); err != nil {
			add("DOC_PYTHON_MISSING", "warn", err.Error())
		}
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Findings: findings, Tools: len(lock.Tools), Rules: len(lock.Rules)}
}
