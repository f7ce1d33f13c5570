package store

import (
	"encoding/json"
	"sort"
	"time"
)

const LockVersion = 1

// Kind is the category an installed item was selected as.
type Kind string

const (
	KindTool Kind = "tool"
	KindRule Kind = "rule-category"
)

// Lock is the persisted record of installed items. A name is a key of at
// most one of Tools and Rules.
type Lock struct {
	Version int                      `json:"version"`
	Tools   map[string]InstalledItem `json:"tools"`
	Rules   map[string]InstalledItem `json:"rules"`
}

type InstalledItem struct {
	Source      string
	InstalledAt time.Time
	// rawInstalledAt keeps an installedAt value that is not RFC 3339 so it
	// is written back unchanged.
	rawInstalledAt string
}

type itemJSON struct {
	Source      string `json:"source"`
	InstalledAt string `json:"installedAt"`
}

// Stamp is the installedAt value as stored in the lock file.
func (it InstalledItem) Stamp() string {
	if it.InstalledAt.IsZero() && it.rawInstalledAt != "" {
		return it.rawInstalledAt
	}
	return it.InstalledAt.Format(time.RFC3339Nano)
}

func (it InstalledItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{Source: it.Source, InstalledAt: it.Stamp()})
}

// UnmarshalJSON accepts any installedAt string. Values that are not
// RFC 3339 leave InstalledAt zero and survive a later save.
func (it *InstalledItem) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = InstalledItem{Source: raw.Source}
	if at, err := time.Parse(time.RFC3339Nano, raw.InstalledAt); err == nil {
		it.InstalledAt = at
	} else {
		it.rawInstalledAt = raw.InstalledAt
	}
	return nil
}

func NewLock() Lock {
	return Lock{Version: LockVersion, Tools: map[string]InstalledItem{}, Rules: map[string]InstalledItem{}}
}

func (l *Lock) items(kind Kind) map[string]InstalledItem {
	switch kind {
	case KindTool:
		if l.Tools == nil {
			l.Tools = map[string]InstalledItem{}
		}
		return l.Tools
	case KindRule:
		if l.Rules == nil {
			l.Rules = map[string]InstalledItem{}
		}
		return l.Rules
	default:
		return nil
	}
}

// Upsert records or overwrites name under kind.
func (l *Lock) Upsert(kind Kind, name string, item InstalledItem) {
	if m := l.items(kind); m != nil {
		m[name] = item
	}
}

// Touch refreshes InstalledAt of an existing entry. It reports false when
// the entry is not tracked.
func (l *Lock) Touch(kind Kind, name string, at time.Time) bool {
	m := l.items(kind)
	item, ok := m[name]
	if !ok {
		return false
	}
	item.InstalledAt = at
	item.rawInstalledAt = ""
	m[name] = item
	return true
}

func (l *Lock) Remove(kind Kind, name string) bool {
	m := l.items(kind)
	if _, ok := m[name]; !ok {
		return false
	}
	delete(m, name)
	return true
}

func (l *Lock) Get(kind Kind, name string) (InstalledItem, bool) {
	item, ok := l.items(kind)[name]
	return item, ok
}

// Names returns the tracked names of kind in sorted order.
func (l *Lock) Names(kind Kind) []string {
	m := l.items(kind)
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *Lock) Empty() bool {
	return len(l.Tools) == 0 && len(l.Rules) == 0
}
