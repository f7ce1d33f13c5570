package agentconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"vibe/internal/fsutil"
)

// Patch is a set of edits applied to the managed sections in one write.
type Patch struct {
	AddTools                  []string
	AddInstructions           []string
	RemoveTools               []string
	RemoveInstructionPrefixes []string
}

func (p Patch) Empty() bool {
	return len(p.AddTools) == 0 && len(p.AddInstructions) == 0 &&
		len(p.RemoveTools) == 0 && len(p.RemoveInstructionPrefixes) == 0
}

type Patcher struct {
	path   string
	logger *zap.Logger
}

func NewPatcher(path string, logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{path: path, logger: logger}
}

func (p *Patcher) Path() string {
	return p.path
}

// Ensure writes the scaffold document when none exists. It reports whether
// a file was created.
func (p *Patcher) Ensure() (bool, error) {
	if _, err := os.Stat(p.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("CFGDOC_STAT: %w", err)
	}
	if err := fsutil.AtomicWrite(p.path, Scaffold(), 0o644); err != nil {
		return false, fmt.Errorf("CFGDOC_WRITE: %w", err)
	}
	p.logger.Debug("config scaffold created", zap.String("path", p.path))
	return true, nil
}

// Read parses the current document. A missing file yields (nil, nil).
func (p *Patcher) Read() (*Document, error) {
	src, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("CFGDOC_READ: %w", err)
	}
	doc, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("CFGDOC_PARSE %s: %w", p.path, err)
	}
	return doc, nil
}

// Apply reads the document, applies patch and writes it back only when
// something changed. A missing document is left alone.
func (p *Patcher) Apply(patch Patch) (bool, error) {
	if patch.Empty() {
		return false, nil
	}
	doc, err := p.Read()
	if err != nil || doc == nil {
		return false, err
	}
	changed := doc.RemoveTools(patch.RemoveTools)
	changed = doc.RemoveInstructionsWithPrefix(patch.RemoveInstructionPrefixes) || changed
	changed = doc.AddTools(patch.AddTools) || changed
	changed = doc.AddInstructions(patch.AddInstructions) || changed
	if !changed {
		return false, nil
	}
	out, err := doc.Bytes()
	if err != nil {
		return false, fmt.Errorf("CFGDOC_ENCODE: %w", err)
	}
	if err := fsutil.AtomicWrite(p.path, out, 0o644); err != nil {
		return false, fmt.Errorf("CFGDOC_WRITE: %w", err)
	}
	p.logger.Debug("config document patched",
		zap.String("path", p.path),
		zap.Strings("addTools", patch.AddTools),
		zap.Int("addInstructions", len(patch.AddInstructions)),
		zap.Strings("removeTools", patch.RemoveTools),
	)
	return true, nil
}
