// Package skills drives the external skills installer (by default
// `pnpx skills`) that vibe runs next to its own tool and rule handling.
package skills

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"vibe/internal/config"
)

var errNoCommand = errors.New("SKILLS_COMMAND: no skills command configured")

// Streams are the terminals the subprocess is attached to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type runFunc func(ctx context.Context, streams Streams, name string, args ...string) error

func defaultRun(ctx context.Context, streams Streams, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = streams.In
	cmd.Stdout = streams.Out
	cmd.Stderr = streams.Err
	return cmd.Run()
}

type Runner struct {
	enabled bool
	command []string
	agent   string
	streams Streams
	run     runFunc
	logger  *zap.Logger
}

func NewRunner(cfg config.SkillsConfig, streams Streams, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streams.In == nil {
		streams.In = os.Stdin
	}
	if streams.Out == nil {
		streams.Out = os.Stdout
	}
	if streams.Err == nil {
		streams.Err = os.Stderr
	}
	return &Runner{
		enabled: cfg.Enabled,
		command: append([]string(nil), cfg.Command...),
		agent:   cfg.Agent,
		streams: streams,
		run:     defaultRun,
		logger:  logger,
	}
}

func (r *Runner) Enabled() bool {
	return r != nil && r.enabled
}

// Add installs the skills published by repo for the configured agent.
func (r *Runner) Add(ctx context.Context, repo string) error {
	args := []string{"add", repo}
	if r.agent != "" {
		args = append(args, "--agent", r.agent)
	}
	return r.invoke(ctx, args...)
}

func (r *Runner) List(ctx context.Context) error {
	return r.invoke(ctx, "ls")
}

func (r *Runner) Update(ctx context.Context) error {
	return r.invoke(ctx, "update")
}

// Remove forwards names untouched; with no names the installer prompts.
func (r *Runner) Remove(ctx context.Context, names []string) error {
	return r.invoke(ctx, append([]string{"remove"}, names...)...)
}

func (r *Runner) invoke(ctx context.Context, args ...string) error {
	if !r.Enabled() {
		return nil
	}
	if len(r.command) == 0 {
		return errNoCommand
	}
	argv := append(append([]string(nil), r.command[1:]...), args...)
	r.logger.Debug("running skills installer", zap.String("command", r.command[0]), zap.Strings("args", argv))
	if err := r.run(ctx, r.streams, r.command[0], argv...); err != nil {
		return fmt.Errorf("SKILLS_EXEC: %s %s: %w", r.command[0], strings.Join(argv, " "), err)
	}
	return nil
}
