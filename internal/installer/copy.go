package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vibe/internal/config"
	"vibe/internal/fsutil"
	"vibe/internal/store"
)

// ErrArtifactMissing marks a selected item the snapshot does not carry.
var ErrArtifactMissing = errors.New("artifact missing from source")

// Copier moves tool and rule artifacts between a snapshot and the workspace.
type Copier struct {
	Layout    store.Layout
	Artifacts config.ArtifactsConfig
}

// ValidName rejects names that would escape the tool or rules directory.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// CopyTool copies tool/<name><primary> and, when present, its secondary
// companion. It reports whether the companion was copied.
func (c Copier) CopyTool(snapshotDir, name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("INS_TOOL_NAME: invalid tool name %q", name)
	}
	srcDir := filepath.Join(snapshotDir, "tool")
	primary := name + c.Artifacts.PrimaryExt
	src := filepath.Join(srcDir, primary)
	if !fsutil.Exists(src) {
		return false, fmt.Errorf("INS_TOOL_COPY: %s: %w", primary, ErrArtifactMissing)
	}
	if err := fsutil.CopyFile(src, filepath.Join(c.Layout.ToolDir, primary)); err != nil {
		return false, fmt.Errorf("INS_TOOL_COPY: %s: %w", primary, err)
	}
	if c.Artifacts.SecondaryExt == "" {
		return false, nil
	}
	secondary := name + c.Artifacts.SecondaryExt
	src = filepath.Join(srcDir, secondary)
	if !fsutil.Exists(src) {
		return false, nil
	}
	if err := fsutil.CopyFile(src, filepath.Join(c.Layout.ToolDir, secondary)); err != nil {
		return false, fmt.Errorf("INS_TOOL_COPY: %s: %w", secondary, err)
	}
	return true, nil
}

// CopyCommon copies the baseline category. A snapshot without one is fine.
func (c Copier) CopyCommon(snapshotDir string) ([]string, error) {
	if c.Artifacts.CommonCategory == "" {
		return nil, nil
	}
	if !fsutil.IsDir(filepath.Join(snapshotDir, "rules", c.Artifacts.CommonCategory)) {
		return nil, nil
	}
	return c.copyCategory(snapshotDir, c.Artifacts.CommonCategory)
}

// CopyCategory copies the rule files of one category and returns their
// instruction paths.
func (c Copier) CopyCategory(snapshotDir, category string) ([]string, error) {
	if !ValidName(category) {
		return nil, fmt.Errorf("INS_RULE_NAME: invalid rule category %q", category)
	}
	if !fsutil.IsDir(filepath.Join(snapshotDir, "rules", category)) {
		return nil, fmt.Errorf("INS_RULE_COPY: rules/%s: %w", category, ErrArtifactMissing)
	}
	return c.copyCategory(snapshotDir, category)
}

// CopyRules copies the baseline plus every category, baseline paths first.
func (c Copier) CopyRules(snapshotDir string, categories []string) ([]string, error) {
	paths, err := c.CopyCommon(snapshotDir)
	if err != nil {
		return nil, err
	}
	for _, category := range categories {
		got, err := c.CopyCategory(snapshotDir, category)
		if err != nil {
			return nil, err
		}
		paths = append(paths, got...)
	}
	return paths, nil
}

func (c Copier) copyCategory(snapshotDir, category string) ([]string, error) {
	srcDir := filepath.Join(snapshotDir, "rules", category)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("INS_RULE_COPY: %w", err)
	}
	dstDir := filepath.Join(c.Layout.RulesDir, category)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("INS_RULE_COPY: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !c.isRuleFile(e.Name()) {
			continue
		}
		if err := fsutil.CopyFile(filepath.Join(srcDir, e.Name()), filepath.Join(dstDir, e.Name())); err != nil {
			return nil, fmt.Errorf("INS_RULE_COPY: %s/%s: %w", category, e.Name(), err)
		}
		paths = append(paths, c.Layout.InstructionPath(category, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (c Copier) isRuleFile(name string) bool {
	for _, ext := range c.Artifacts.RuleExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// RemoveTool deletes both artifacts of a tool. Absent files are ignored.
func (c Copier) RemoveTool(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("INS_TOOL_NAME: invalid tool name %q", name)
	}
	for _, ext := range []string{c.Artifacts.PrimaryExt, c.Artifacts.SecondaryExt} {
		if ext == "" {
			continue
		}
		if err := os.Remove(filepath.Join(c.Layout.ToolDir, name+ext)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("INS_TOOL_REMOVE: %w", err)
		}
	}
	return nil
}

// RemoveCategory deletes a rule category subtree.
func (c Copier) RemoveCategory(category string) error {
	if !ValidName(category) {
		return fmt.Errorf("INS_RULE_NAME: invalid rule category %q", category)
	}
	if err := os.RemoveAll(filepath.Join(c.Layout.RulesDir, category)); err != nil {
		return fmt.Errorf("INS_RULE_REMOVE: %w", err)
	}
	return nil
}

// ToolFiles lists the workspace paths a tracked tool may occupy.
func (c Copier) ToolFiles(name string) (primary, secondary string) {
	primary = filepath.Join(c.Layout.ToolDir, name+c.Artifacts.PrimaryExt)
	if c.Artifacts.SecondaryExt != "" {
		secondary = filepath.Join(c.Layout.ToolDir, name+c.Artifacts.SecondaryExt)
	}
	return primary, secondary
}
