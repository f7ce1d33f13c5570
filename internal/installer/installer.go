package installer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vibe/internal/agentconfig"
	"vibe/internal/audit"
	"vibe/internal/store"
)

// ErrNameConflict marks a name that would be tracked as both a tool and a
// rule category.
var ErrNameConflict = errors.New("name already tracked under another kind")

type Service struct {
	Copier  Copier
	Store   *store.Store
	Patcher *agentconfig.Patcher
	Audit   *audit.Logger
	Logger  *zap.Logger
	Now     func() time.Time
}

// Request is one install selection taken from a fetched snapshot.
type Request struct {
	Source      string
	SnapshotDir string
	Tools       []string
	Rules       []string
}

type Result struct {
	Tools                    []string `json:"tools"`
	Rules                    []string `json:"rules"`
	RulePaths                []string `json:"rulePaths"`
	RequiresSecondaryRuntime bool     `json:"requiresSecondaryRuntime"`
	ScaffoldCreated          bool     `json:"scaffoldCreated"`
	ConfigUpdated            bool     `json:"configUpdated"`
	// ConfigWarning is set when the config document could not be patched.
	// The install itself still succeeded.
	ConfigWarning error `json:"-"`
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) audit(ev audit.Event) {
	if err := s.Audit.Log(ev); err != nil {
		s.logger().Debug("audit write failed", zap.Error(err))
	}
}

// Install copies the selection into the workspace, patches the config
// document and records every item in the lock, in that order.
func (s *Service) Install(_ context.Context, req Request) (Result, error) {
	tools := dedupe(req.Tools)
	rules := dedupe(req.Rules)
	if len(tools) == 0 && len(rules) == 0 {
		return Result{}, nil
	}
	s.audit(audit.Event{Operation: "install", Phase: "start", Status: "ok", Source: req.Source, Items: append(append([]string(nil), tools...), rules...)})

	lock := s.Store.Load().Lock
	if err := checkConflicts(lock, tools, rules); err != nil {
		s.audit(audit.Event{Operation: "install", Phase: "validate", Status: "error", Code: "INS_NAME_CONFLICT", Source: req.Source, Message: err.Error()})
		return Result{}, err
	}

	res := Result{Tools: tools, Rules: rules}
	created, err := s.Patcher.Ensure()
	if err != nil {
		return Result{}, err
	}
	res.ScaffoldCreated = created

	for _, name := range tools {
		secondary, err := s.Copier.CopyTool(req.SnapshotDir, name)
		if err != nil {
			s.audit(audit.Event{Operation: "install", Phase: "copy", Status: "error", Code: "INS_TOOL_COPY", Source: req.Source, Items: []string{name}, Message: err.Error()})
			return Result{}, err
		}
		res.RequiresSecondaryRuntime = res.RequiresSecondaryRuntime || secondary
		s.logger().Debug("tool copied", zap.String("tool", name), zap.Bool("secondary", secondary))
	}
	if len(rules) > 0 {
		paths, err := s.Copier.CopyRules(req.SnapshotDir, rules)
		if err != nil {
			s.audit(audit.Event{Operation: "install", Phase: "copy", Status: "error", Code: "INS_RULE_COPY", Source: req.Source, Items: rules, Message: err.Error()})
			return Result{}, err
		}
		res.RulePaths = paths
	}

	changed, err := s.Patcher.Apply(agentconfig.Patch{AddTools: tools, AddInstructions: res.RulePaths})
	if err != nil {
		res.ConfigWarning = err
		s.logger().Warn("config document not updated", zap.String("path", s.Patcher.Path()), zap.Error(err))
	}
	res.ConfigUpdated = changed

	at := s.now()
	for _, name := range tools {
		lock.Upsert(store.KindTool, name, store.InstalledItem{Source: req.Source, InstalledAt: at})
	}
	for _, name := range rules {
		lock.Upsert(store.KindRule, name, store.InstalledItem{Source: req.Source, InstalledAt: at})
	}
	if err := s.Store.Save(lock); err != nil {
		return Result{}, fmt.Errorf("INS_LOCK_SAVE: %w", err)
	}
	s.audit(audit.Event{Operation: "install", Phase: "commit", Status: "ok", Source: req.Source,
		Message: fmt.Sprintf("tools=%d rules=%d", len(tools), len(rules))})
	return res, nil
}

func checkConflicts(lock store.Lock, tools, rules []string) error {
	for _, name := range tools {
		if _, ok := lock.Get(store.KindRule, name); ok || contains(rules, name) {
			return fmt.Errorf("INS_NAME_CONFLICT: %q is a rule category: %w", name, ErrNameConflict)
		}
	}
	for _, name := range rules {
		if _, ok := lock.Get(store.KindTool, name); ok {
			return fmt.Errorf("INS_NAME_CONFLICT: %q is a tool: %w", name, ErrNameConflict)
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
