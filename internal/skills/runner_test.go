package skills

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibe/internal/config"
)

func recordingRunner(cfg config.SkillsConfig, fail error) (*Runner, *[]string) {
	var calls []string
	r := NewRunner(cfg, Streams{}, nil)
	r.run = func(_ context.Context, _ Streams, name string, args ...string) error {
		calls = append(calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
		return fail
	}
	return r, &calls
}

func TestRunnerBuildsCommands(t *testing.T) {
	r, calls := recordingRunner(config.DefaultConfig().Skills, nil)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "owner/repo"))
	require.NoError(t, r.List(ctx))
	require.NoError(t, r.Update(ctx))
	require.NoError(t, r.Remove(ctx, []string{"a", "b"}))
	require.NoError(t, r.Remove(ctx, nil))

	assert.Equal(t, []string{
		"pnpx skills add owner/repo --agent opencode",
		"pnpx skills ls",
		"pnpx skills update",
		"pnpx skills remove a b",
		"pnpx skills remove",
	}, *calls)
}

func TestRunnerDisabledIsNoop(t *testing.T) {
	cfg := config.DefaultConfig().Skills
	cfg.Enabled = false
	r, calls := recordingRunner(cfg, nil)
	require.NoError(t, r.Update(context.Background()))
	assert.Empty(t, *calls)
}

func TestRunnerWrapsFailures(t *testing.T) {
	r, _ := recordingRunner(config.DefaultConfig().Skills, errors.New("exit status 1"))
	err := r.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SKILLS_EXEC: pnpx skills ls")

	r = NewRunner(config.SkillsConfig{Enabled: true}, Streams{}, nil)
	assert.ErrorIs(t, r.List(context.Background()), errNoCommand)
}
