package app

import (
	"context"
	"errors"
	"fmt"

	"vibe/internal/installer"
	storepkg "vibe/internal/store"
	syncsvc "vibe/internal/sync"
)

type UpdateResult struct {
	Report  syncsvc.Report `json:"report"`
	Notices []Notice       `json:"notices,omitempty"`
}

// Update refreshes the skills catalog, then every tracked tool and rule
// category. Failed sources are reported, never returned as an error.
func (s *Service) Update(ctx context.Context) (UpdateResult, error) {
	n := s.newNotices()
	if err := s.Skills.Update(ctx); err != nil {
		n.warn("SKILLS_UPDATE", "failed to update standard skills", err)
	}
	report, err := s.Sync.Run(ctx)
	if err != nil {
		return UpdateResult{Report: report, Notices: n.list}, err
	}
	if len(report.Sources) == 0 {
		n.info("APP_NOTHING_TRACKED", "no local items to update")
	}
	for _, src := range report.Failed() {
		n.warn("SYNC_SOURCE", "failed to fetch from "+src.Source, src.Err)
	}
	for _, src := range report.Sources {
		for _, item := range src.Items {
			n.add(SeverityWarn, "SYNC_ITEM", string(item.Kind)+" "+item.Name+" not refreshed from "+src.Source+": "+item.Error, nil)
		}
	}
	if report.ConfigWarning != nil {
		n.warn("CFGDOC_PATCH", "config document not updated", report.ConfigWarning)
	}
	return UpdateResult{Report: report, Notices: n.list}, nil
}

type RemoveResult struct {
	Removed installer.RemoveResult `json:"removed"`
	Notices []Notice               `json:"notices,omitempty"`
}

// Remove forwards names to the skills installer, then removes the matching
// local tools and rule categories.
func (s *Service) Remove(ctx context.Context, names []string, yes bool) (RemoveResult, error) {
	n := s.newNotices()
	if err := s.Skills.Remove(ctx, names); err != nil {
		n.warn("SKILLS_REMOVE", "skills remover finished with warnings or nothing to remove", err)
	}
	lock := s.Store.Load().Lock
	if lock.Empty() {
		n.info("APP_NOTHING_TRACKED", "no local tools or rules found in "+s.Layout.Dir)
		return RemoveResult{Notices: n.list}, nil
	}
	var prompt installer.Prompter
	if s.Prompter != nil {
		prompt = s.Prompter
	}
	res, err := s.Installer.Remove(ctx, installer.RemoveRequest{Names: names, Yes: yes}, prompt)
	for _, name := range res.NotFound {
		n.info("APP_NOT_FOUND", "local item '"+name+"' not found, skipping local cleanup")
	}
	if res.Cancelled {
		n.info("APP_CANCELLED", "operation cancelled")
	}
	if res.ConfigWarning != nil {
		n.warn("CFGDOC_PATCH", "config document not pruned", res.ConfigWarning)
	}
	if errors.Is(err, installer.ErrNoPrompt) {
		err = fmt.Errorf("%w: %w", err, ErrValidation)
	}
	return RemoveResult{Removed: res, Notices: n.list}, err
}

type ListedItem struct {
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	InstalledAt string `json:"installedAt"`
}

type ListResult struct {
	LockStatus storepkg.LoadStatus `json:"lockStatus"`
	Tools      []ListedItem        `json:"tools"`
	Rules      []ListedItem        `json:"rules"`
	Notices    []Notice            `json:"notices,omitempty"`
}

// List reports the tracked items. The skills installer prints its own list
// when listSkills is set.
func (s *Service) List(ctx context.Context, listSkills bool) (ListResult, error) {
	n := s.newNotices()
	loaded := s.Store.Load()
	res := ListResult{
		LockStatus: loaded.Status,
		Tools:      listed(loaded.Lock, storepkg.KindTool),
		Rules:      listed(loaded.Lock, storepkg.KindRule),
	}
	if listSkills {
		if err := s.Skills.List(ctx); err != nil {
			n.warn("SKILLS_LIST", "no standard skills found or failed to fetch", err)
		}
	}
	res.Notices = n.list
	return res, nil
}

func listed(lock storepkg.Lock, kind storepkg.Kind) []ListedItem {
	names := lock.Names(kind)
	out := make([]ListedItem, 0, len(names))
	for _, name := range names {
		item, _ := lock.Get(kind, name)
		out = append(out, ListedItem{Name: name, Source: item.Source, InstalledAt: item.Stamp()})
	}
	return out
}
