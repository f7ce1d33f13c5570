package runtime

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"vibe/internal/config"
)

// Bun makes sure the bun runtime is on PATH, installing it through npm when
// allowed.
type Bun struct {
	bootstrap bool
	exec      execFunc
	lookPath  lookPathFunc
	logger    *zap.Logger
}

func NewBun(cfg config.RuntimeConfig, logger *zap.Logger) *Bun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bun{bootstrap: cfg.BootstrapBun, exec: defaultExec, lookPath: exec.LookPath, logger: logger}
}

// Available reports whether bun is already on PATH.
func (b *Bun) Available() bool {
	_, err := b.lookPath("bun")
	return err == nil
}

// Ensure reports whether bun had to be installed.
func (b *Bun) Ensure(ctx context.Context) (bool, error) {
	if b.Available() {
		return false, nil
	}
	if !b.bootstrap {
		return false, fmt.Errorf("RUNTIME_BUN: bun not found, install it from https://bun.sh/: %w", ErrEnvironment)
	}
	b.logger.Warn("bun runtime not found, installing via npm")
	npm, err := b.lookPath("npm")
	if err != nil {
		return false, fmt.Errorf("RUNTIME_BUN: bun not found and npm unavailable, install it from https://bun.sh/: %w", ErrEnvironment)
	}
	if _, err := b.exec(ctx, "", npm, "install", "-g", "bun"); err != nil {
		return false, fmt.Errorf("RUNTIME_BUN: could not install bun automatically (%v), install it from https://bun.sh/: %w", err, ErrEnvironment)
	}
	return true, nil
}
