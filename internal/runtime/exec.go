// Package runtime checks and bootstraps the interpreters installed tools
// need: bun for the primary .ts artifacts and a python virtualenv for the
// optional .py companions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrEnvironment marks a missing or unusable system runtime.
var ErrEnvironment = errors.New("required runtime unavailable")

type execFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

type lookPathFunc func(file string) (string, error)

func defaultExec(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
