package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vibe/internal/agentconfig"
	"vibe/internal/audit"
	"vibe/internal/logging"
	"vibe/internal/source"
	"vibe/internal/store"
)

const defaultTimeout = 2 * time.Minute

// ArtifactCopier re-copies tracked items out of a fetched snapshot.
// installer.Copier is the production implementation.
type ArtifactCopier interface {
	CopyTool(snapshotDir, name string) (bool, error)
	CopyCommon(snapshotDir string) ([]string, error)
	CopyCategory(snapshotDir, category string) ([]string, error)
}

type Service struct {
	Fetcher source.Fetcher
	Copier  ArtifactCopier
	Store   *store.Store
	Patcher *agentconfig.Patcher
	Audit   *audit.Logger
	Logger  *zap.Logger
	// Timeout bounds the fetch and copy of one source.
	Timeout time.Duration
	Now     func() time.Time
}

// ItemFailure is a tracked item that could not be refreshed from a source
// that was otherwise fetched.
type ItemFailure struct {
	Kind  store.Kind `json:"kind"`
	Name  string     `json:"name"`
	Error string     `json:"error"`
}

type SourceResult struct {
	Source string        `json:"source"`
	Tools  []string      `json:"tools,omitempty"`
	Rules  []string      `json:"rules,omitempty"`
	Items  []ItemFailure `json:"failedItems,omitempty"`
	Error  string        `json:"error,omitempty"`
	Err    error         `json:"-"`
}

func (r SourceResult) OK() bool {
	return r.Err == nil
}

type Report struct {
	// Succeeded counts refreshed items across every source.
	Succeeded     int            `json:"succeeded"`
	Sources       []SourceResult `json:"sources"`
	ConfigUpdated bool           `json:"configUpdated"`
	ConfigWarning error          `json:"-"`
}

// Failed lists the sources whose task failed as a whole.
func (r Report) Failed() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// delta is what one source task produced. Tasks never touch the lock.
type delta struct {
	source    string
	at        time.Time
	tools     []string
	rules     []string
	rulePaths []string
	failures  []ItemFailure
	err       error
}

// Run refreshes every tracked item from its source. Sources are fetched
// concurrently and fail independently; the lock is saved once at the end.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s.Fetcher == nil || s.Copier == nil || s.Store == nil {
		return Report{}, fmt.Errorf("SYNC_SETUP: sync dependencies not configured")
	}
	log := logging.OrNop(s.Logger)
	lock := s.Store.Load().Lock
	groups := GroupBySource(lock)
	if len(groups) == 0 {
		return Report{Sources: []SourceResult{}}, nil
	}
	s.audit(audit.Event{Operation: "update", Phase: "start", Status: "ok", Message: fmt.Sprintf("sources=%d", len(groups))})
	log.Info("updating sources", zap.Int("sources", len(groups)))

	deltas := make([]delta, len(groups))
	var g errgroup.Group
	for i, grp := range groups {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					deltas[i] = delta{source: grp.Source, err: fmt.Errorf("SYNC_PANIC: %v", r)}
				}
			}()
			deltas[i] = s.refresh(ctx, grp)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Sources: make([]SourceResult, 0, len(deltas))}
	var rulePaths []string
	for _, d := range deltas {
		res := SourceResult{Source: d.source, Items: d.failures, Err: d.err}
		if d.err != nil {
			res.Error = d.err.Error()
			log.Warn("source update failed", zap.String("source", d.source), zap.Error(d.err))
			s.audit(audit.Event{Operation: "update", Phase: "fetch", Status: "error", Code: "SYNC_SOURCE", Source: d.source, Message: d.err.Error()})
		}
		// A source that timed out mid-copy still commits what it refreshed.
		for _, name := range d.tools {
			if lock.Touch(store.KindTool, name, d.at) {
				res.Tools = append(res.Tools, name)
			}
		}
		for _, name := range d.rules {
			if lock.Touch(store.KindRule, name, d.at) {
				res.Rules = append(res.Rules, name)
			}
		}
		for _, f := range d.failures {
			log.Warn("item not refreshed", zap.String("source", d.source), zap.String("name", f.Name), zap.String("error", f.Error))
		}
		report.Succeeded += len(res.Tools) + len(res.Rules)
		rulePaths = append(rulePaths, d.rulePaths...)
		report.Sources = append(report.Sources, res)
	}

	if len(rulePaths) > 0 && s.Patcher != nil {
		changed, err := s.Patcher.Apply(agentconfig.Patch{AddInstructions: rulePaths})
		if err != nil {
			report.ConfigWarning = err
			log.Warn("config document not updated", zap.String("path", s.Patcher.Path()), zap.Error(err))
		}
		report.ConfigUpdated = changed
	}
	if err := s.Store.Save(lock); err != nil {
		return report, fmt.Errorf("SYNC_LOCK_SAVE: %w", err)
	}
	s.audit(audit.Event{Operation: "update", Phase: "commit", Status: "ok",
		Message: fmt.Sprintf("succeeded=%d failedSources=%d", report.Succeeded, len(report.Failed()))})
	return report, nil
}

func (s *Service) refresh(parent context.Context, grp Group) delta {
	d := delta{source: grp.Source}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	snap, err := s.Fetcher.Fetch(ctx, grp.Source)
	if err != nil {
		d.err = err
		return d
	}
	defer snap.Close()

	for i, name := range grp.Tools {
		if err := ctx.Err(); err != nil {
			d.expire(err, grp.Tools[i:], grp.Rules)
			d.at = s.now()
			return d
		}
		if _, err := s.Copier.CopyTool(snap.Dir, name); err != nil {
			d.failures = append(d.failures, ItemFailure{Kind: store.KindTool, Name: name, Error: err.Error()})
			continue
		}
		d.tools = append(d.tools, name)
	}
	if len(grp.Rules) > 0 {
		common, err := s.Copier.CopyCommon(snap.Dir)
		if err != nil {
			for _, name := range grp.Rules {
				d.failures = append(d.failures, ItemFailure{Kind: store.KindRule, Name: name, Error: err.Error()})
			}
			grp.Rules = nil
		}
		d.rulePaths = append(d.rulePaths, common...)
		for i, name := range grp.Rules {
			if err := ctx.Err(); err != nil {
				d.expire(err, nil, grp.Rules[i:])
				d.at = s.now()
				return d
			}
			paths, err := s.Copier.CopyCategory(snap.Dir, name)
			if err != nil {
				d.failures = append(d.failures, ItemFailure{Kind: store.KindRule, Name: name, Error: err.Error()})
				continue
			}
			d.rules = append(d.rules, name)
			d.rulePaths = append(d.rulePaths, paths...)
		}
	}
	d.at = s.now()
	return d
}

// expire marks the source as timed out and reports every item it did not
// reach. Items refreshed before the deadline stay in the delta.
func (d *delta) expire(cause error, tools, rules []string) {
	d.err = fmt.Errorf("SYNC_TIMEOUT: %s: %w", d.source, cause)
	for _, name := range tools {
		d.failures = append(d.failures, ItemFailure{Kind: store.KindTool, Name: name, Error: d.err.Error()})
	}
	for _, name := range rules {
		d.failures = append(d.failures, ItemFailure{Kind: store.KindRule, Name: name, Error: d.err.Error()})
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) audit(ev audit.Event) {
	_ = s.Audit.Log(ev)
}
