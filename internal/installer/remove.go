package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vibe/internal/agentconfig"
	"vibe/internal/audit"
	"vibe/internal/store"
	"vibe/internal/ui"
)

// ErrNoPrompt marks a removal that needs a prompt when none is available.
var ErrNoPrompt = errors.New("interactive prompt unavailable")

// Prompter asks the user to pick tracked items and to confirm a removal.
type Prompter interface {
	MultiSelect(title string, options []ui.Option) ([]string, error)
	Confirm(prompt string) (bool, error)
}

type RemoveRequest struct {
	Names []string
	// Yes skips the confirmation prompt.
	Yes bool
}

type RemoveResult struct {
	Tools     []string `json:"tools"`
	Rules     []string `json:"rules"`
	NotFound  []string `json:"notFound,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
	// ConfigWarning is set when the config document could not be pruned.
	ConfigWarning error `json:"-"`
}

type target struct {
	kind store.Kind
	name string
}

// Remove deletes tracked tools and rule categories. Names that are not
// tracked are reported in NotFound and skipped. The first failing item
// stops the run; items removed before it are still committed.
func (s *Service) Remove(_ context.Context, req RemoveRequest, prompt Prompter) (RemoveResult, error) {
	lock := s.Store.Load().Lock
	var res RemoveResult

	names := dedupeKeepOrder(req.Names)
	if len(names) == 0 {
		picked, err := s.pick(lock, prompt)
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				res.Cancelled = true
				return res, nil
			}
			return res, err
		}
		names = picked
	}

	var targets []target
	for _, name := range names {
		switch {
		case has(lock, store.KindTool, name):
			targets = append(targets, target{store.KindTool, name})
		case has(lock, store.KindRule, name):
			targets = append(targets, target{store.KindRule, name})
		default:
			res.NotFound = append(res.NotFound, name)
		}
	}
	if len(targets) == 0 {
		return res, nil
	}

	if !req.Yes {
		if prompt == nil {
			return res, fmt.Errorf("INS_REMOVE_CONFIRM: confirmation required, pass --yes to skip: %w", ErrNoPrompt)
		}
		ok, err := prompt.Confirm(fmt.Sprintf("Remove %s?", describe(targets)))
		if err != nil && !errors.Is(err, ui.ErrCancelled) {
			return res, err
		}
		if !ok {
			res.Cancelled = true
			return res, nil
		}
	}

	s.audit(audit.Event{Operation: "remove", Phase: "start", Status: "ok", Items: targetNames(targets)})
	var failure error
	var prefixes []string
	for _, tg := range targets {
		var err error
		if tg.kind == store.KindTool {
			err = s.Copier.RemoveTool(tg.name)
		} else {
			err = s.Copier.RemoveCategory(tg.name)
		}
		if err != nil {
			failure = fmt.Errorf("INS_REMOVE: %s: %w", tg.name, err)
			s.audit(audit.Event{Operation: "remove", Phase: "delete", Status: "error", Code: "INS_REMOVE", Items: []string{tg.name}, Message: err.Error()})
			break
		}
		lock.Remove(tg.kind, tg.name)
		if tg.kind == store.KindTool {
			res.Tools = append(res.Tools, tg.name)
		} else {
			res.Rules = append(res.Rules, tg.name)
			prefixes = append(prefixes, s.Copier.Layout.InstructionPrefix(tg.name))
		}
	}

	if len(res.Tools) > 0 || len(res.Rules) > 0 {
		if _, err := s.Patcher.Apply(agentconfig.Patch{RemoveTools: res.Tools, RemoveInstructionPrefixes: prefixes}); err != nil {
			res.ConfigWarning = err
			s.logger().Warn("config document not pruned", zap.String("path", s.Patcher.Path()), zap.Error(err))
		}
		if err := s.Store.Save(lock); err != nil {
			return res, fmt.Errorf("INS_LOCK_SAVE: %w", err)
		}
	}
	if failure != nil {
		return res, failure
	}
	s.audit(audit.Event{Operation: "remove", Phase: "commit", Status: "ok",
		Message: fmt.Sprintf("tools=%d rules=%d", len(res.Tools), len(res.Rules))})
	return res, nil
}

func (s *Service) pick(lock store.Lock, prompt Prompter) ([]string, error) {
	var options []ui.Option
	for _, name := range lock.Names(store.KindTool) {
		options = append(options, ui.Option{Value: name, Label: name, Hint: "tool"})
	}
	for _, name := range lock.Names(store.KindRule) {
		options = append(options, ui.Option{Value: name, Label: name, Hint: "rules"})
	}
	if len(options) == 0 {
		return nil, nil
	}
	if prompt == nil {
		return nil, fmt.Errorf("INS_REMOVE_SELECT: no names given and no terminal to choose from: %w", ErrNoPrompt)
	}
	return prompt.MultiSelect("Select local tools and rules to remove", options)
}

func has(lock store.Lock, kind store.Kind, name string) bool {
	_, ok := lock.Get(kind, name)
	return ok
}

func describe(targets []target) string {
	var tools, rules []string
	for _, tg := range targets {
		if tg.kind == store.KindTool {
			tools = append(tools, tg.name)
		} else {
			rules = append(rules, tg.name)
		}
	}
	var parts []string
	if len(tools) > 0 {
		parts = append(parts, "tools "+strings.Join(tools, ", "))
	}
	if len(rules) > 0 {
		parts = append(parts, "rules "+strings.Join(rules, ", "))
	}
	return strings.Join(parts, " and ")
}

func targetNames(targets []target) []string {
	out := make([]string, 0, len(targets))
	for _, tg := range targets {
		out = append(out, tg.name)
	}
	return out
}

func dedupeKeepOrder(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
