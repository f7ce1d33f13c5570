package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"vibe/internal/fsutil"
	"vibe/internal/installer"
	"vibe/internal/runtime"
	"vibe/internal/source"
	"vibe/internal/ui"
)

type AddRequest struct {
	// Repo is "owner/repo", a clone URL or a local directory.
	Repo  string
	Tools []string
	Rules []string
	// All selects everything the source offers.
	All bool
}

type AddResult struct {
	Source         string           `json:"source"`
	Catalog        source.Catalog   `json:"available"`
	Installed      installer.Result `json:"installed"`
	Cancelled      bool             `json:"cancelled,omitempty"`
	ActivationHint string           `json:"activationHint,omitempty"`
	Notices        []Notice         `json:"notices,omitempty"`
}

// Add installs tools and rule categories from one source.
func (s *Service) Add(ctx context.Context, req AddRequest) (AddResult, error) {
	repo := strings.TrimSpace(req.Repo)
	if repo == "" {
		return AddResult{}, fmt.Errorf("APP_ADD: repository is required: %w", ErrValidation)
	}
	n := s.newNotices()

	// bun only backs the skills installer.
	if s.Config.Skills.Enabled {
		if installed, err := s.Bun.Ensure(ctx); err != nil {
			return AddResult{}, err
		} else if installed {
			n.info("BUN_INSTALLED", "bun installed globally via npm")
		}
	}

	if err := s.Skills.Add(ctx, repo); err != nil {
		n.warn("SKILLS_ADD", "skills installer finished with warnings", err)
	}

	url := s.Sources.Resolve(repo)
	if source.IsLocal(url) && !strings.HasPrefix(url, "file://") && !filepath.IsAbs(url) {
		url = filepath.Join(s.Layout.Root, url)
	}
	res := AddResult{Source: url}
	s.Logger.Info("fetching source", zap.String("source", url))
	snap, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		return withNotices(res, n), err
	}
	defer snap.Close()

	catalog, err := source.Scan(snap.Dir, s.Config.Artifacts)
	if err != nil {
		return withNotices(res, n), err
	}
	res.Catalog = catalog
	if catalog.Empty() {
		n.warn("APP_EMPTY_SOURCE", "neither tools nor rule categories found in "+url, nil)
		return withNotices(res, n), nil
	}

	tools, rules, err := s.selectItems(req, catalog)
	if err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			res.Cancelled = true
			n.info("APP_CANCELLED", "installation cancelled")
			return withNotices(res, n), nil
		}
		return withNotices(res, n), err
	}
	if len(tools) == 0 && len(rules) == 0 {
		res.Cancelled = true
		n.info("APP_NOTHING_SELECTED", "no tools or rules selected")
		return withNotices(res, n), nil
	}

	var interp runtime.Interpreter
	needsPython := s.needsSecondaryRuntime(snap.Dir, tools)
	if needsPython {
		if interp, err = s.Python.Check(ctx); err != nil {
			return withNotices(res, n), err
		}
	}

	installed, err := s.Installer.Install(ctx, installer.Request{
		Source:      url,
		SnapshotDir: snap.Dir,
		Tools:       tools,
		Rules:       rules,
	})
	if err != nil {
		return withNotices(res, n), err
	}
	res.Installed = installed
	if installed.ConfigWarning != nil {
		n.warn("CFGDOC_PATCH", "config document not updated", installed.ConfigWarning)
	}

	if installed.RequiresSecondaryRuntime {
		if err := s.Python.Ensure(ctx, s.Layout.Root, interp); err != nil {
			n.warn("RUNTIME_PYTHON_SETUP", "python environment not initialized, manual setup required", err)
		}
		res.ActivationHint = s.Python.ActivationHint()
	}
	return withNotices(res, n), nil
}

func (s *Service) selectItems(req AddRequest, catalog source.Catalog) ([]string, []string, error) {
	if req.All {
		return catalog.Tools, catalog.Rules, nil
	}
	if len(req.Tools) > 0 || len(req.Rules) > 0 {
		var unknown []string
		for _, t := range req.Tools {
			if !catalog.HasTool(t) {
				unknown = append(unknown, "tool "+t)
			}
		}
		for _, r := range req.Rules {
			if !catalog.HasRule(r) {
				unknown = append(unknown, "rule category "+r)
			}
		}
		if len(unknown) > 0 {
			return nil, nil, fmt.Errorf("APP_SELECT: not offered by source: %s: %w", strings.Join(unknown, ", "), ErrValidation)
		}
		return req.Tools, req.Rules, nil
	}
	if s.Prompter == nil {
		return nil, nil, fmt.Errorf("APP_SELECT: nothing selected, pass --tool, --rule or --all: %w", ErrValidation)
	}

	var tools, rules []string
	var err error
	if len(catalog.Tools) > 0 {
		tools, err = s.Prompter.MultiSelect("Select tools to install", options(catalog.Tools, "tool"))
		if err != nil {
			return nil, nil, err
		}
	}
	if len(catalog.Rules) > 0 {
		rules, err = s.Prompter.MultiSelect("Select rule categories to install", options(catalog.Rules, "rules"))
		if err != nil {
			return nil, nil, err
		}
	}
	return tools, rules, nil
}

func (s *Service) needsSecondaryRuntime(snapshotDir string, tools []string) bool {
	ext := s.Config.Artifacts.SecondaryExt
	if ext == "" {
		return false
	}
	for _, t := range tools {
		if fsutil.Exists(filepath.Join(snapshotDir, "tool", t+ext)) {
			return true
		}
	}
	return false
}

func options(values []string, hint string) []ui.Option {
	out := make([]ui.Option, 0, len(values))
	for _, v := range values {
		out = append(out, ui.Option{Value: v, Label: v, Hint: hint})
	}
	return out
}

func withNotices(res AddResult, n *notices) AddResult {
	res.Notices = n.list
	return res
}
