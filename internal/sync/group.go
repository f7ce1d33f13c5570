package sync

import (
	"sort"

	"vibe/internal/store"
)

// Group is the set of tracked items that came from one source.
type Group struct {
	Source string
	Tools  []string
	Rules  []string
}

func (g Group) Size() int {
	return len(g.Tools) + len(g.Rules)
}

// GroupBySource partitions the tracked items by source. Items with an empty
// source are left out. Groups and their members are sorted.
func GroupBySource(lock store.Lock) []Group {
	bySource := map[string]*Group{}
	get := func(src string) *Group {
		g, ok := bySource[src]
		if !ok {
			g = &Group{Source: src}
			bySource[src] = g
		}
		return g
	}
	for _, name := range lock.Names(store.KindTool) {
		if item := lock.Tools[name]; item.Source != "" {
			g := get(item.Source)
			g.Tools = append(g.Tools, name)
		}
	}
	for _, name := range lock.Names(store.KindRule) {
		if item := lock.Rules[name]; item.Source != "" {
			g := get(item.Source)
			g.Rules = append(g.Rules, name)
		}
	}
	out := make([]Group, 0, len(bySource))
	for _, g := range bySource {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
