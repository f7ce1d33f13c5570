package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vibe/internal/config"
)

// Catalog lists what a snapshot offers for installation.
type Catalog struct {
	Tools []string `json:"tools"`
	Rules []string `json:"rules"`
}

// Scan lists tools (tool/<name><primaryExt>) and rule categories
// (directories under rules/ other than the common baseline). Missing
// directories yield empty lists.
func Scan(dir string, art config.ArtifactsConfig) (Catalog, error) {
	var cat Catalog
	toolEntries, err := readDirIfExists(filepath.Join(dir, "tool"))
	if err != nil {
		return Catalog{}, err
	}
	for _, e := range toolEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), art.PrimaryExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), art.PrimaryExt)
		if name != "" {
			cat.Tools = append(cat.Tools, name)
		}
	}

	ruleEntries, err := readDirIfExists(filepath.Join(dir, "rules"))
	if err != nil {
		return Catalog{}, err
	}
	for _, e := range ruleEntries {
		if !e.IsDir() || e.Name() == art.CommonCategory || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cat.Rules = append(cat.Rules, e.Name())
	}
	sort.Strings(cat.Tools)
	sort.Strings(cat.Rules)
	return cat, nil
}

func (c Catalog) HasTool(name string) bool {
	return contains(c.Tools, name)
}

func (c Catalog) HasRule(name string) bool {
	return contains(c.Rules, name)
}

func (c Catalog) Empty() bool {
	return len(c.Tools) == 0 && len(c.Rules) == 0
}

func contains(list []string, v string) bool {
	i := sort.SearchStrings(list, v)
	return i < len(list) && list[i] == v
}

func readDirIfExists(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("SRC_SCAN: %w", err)
	}
	return entries, nil
}
