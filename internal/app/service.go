package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"vibe/internal/agentconfig"
	"vibe/internal/audit"
	"vibe/internal/config"
	"vibe/internal/doctor"
	"vibe/internal/installer"
	"vibe/internal/logging"
	"vibe/internal/runtime"
	"vibe/internal/skills"
	"vibe/internal/source"
	storepkg "vibe/internal/store"
	syncsvc "vibe/internal/sync"
	"vibe/internal/ui"
)

type Options struct {
	// Dir is the project root; the working directory when empty.
	Dir        string
	ConfigPath string
	LogLevel   string
	LogFormat  string

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Overrides for tests and embedding. Nil means the real implementation.
	Logger   *zap.Logger
	Fetcher  source.Fetcher
	Prompter Prompter
	Skills   SkillsRunner
	Python   PythonEnv
	Bun      BunEnv
	Now      func() time.Time
}

// Prompter is the interactive selection and confirmation surface.
type Prompter interface {
	MultiSelect(title string, options []ui.Option) ([]string, error)
	Confirm(prompt string) (bool, error)
}

type SkillsRunner interface {
	Add(ctx context.Context, repo string) error
	List(ctx context.Context) error
	Update(ctx context.Context) error
	Remove(ctx context.Context, names []string) error
}

type PythonEnv interface {
	Check(ctx context.Context) (runtime.Interpreter, error)
	Ensure(ctx context.Context, rootDir string, interp runtime.Interpreter) error
	ActivationHint() string
}

type BunEnv interface {
	Ensure(ctx context.Context) (bool, error)
	Available() bool
}

type Service struct {
	ConfigPath string
	Config     config.Config
	Layout     storepkg.Layout
	Logger     *zap.Logger

	Store     *storepkg.Store
	Patcher   *agentconfig.Patcher
	Audit     *audit.Logger
	Sources   *source.Manager
	Fetcher   source.Fetcher
	Installer *installer.Service
	Sync      *syncsvc.Service
	Doctor    *doctor.Service
	Skills    SkillsRunner
	Python    PythonEnv
	Bun       BunEnv
	Prompter  Prompter
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}

	logger := opts.Logger
	if logger == nil {
		w := opts.Err
		if w == nil {
			w = os.Stderr
		}
		logger, err = logging.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, w)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	root := opts.Dir
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("APP_WORKDIR: %w", err)
		}
	}
	if root, err = filepath.Abs(root); err != nil {
		return nil, fmt.Errorf("APP_WORKDIR: %w", err)
	}
	timeout, err := config.FetchTimeout(cfg)
	if err != nil {
		return nil, err
	}

	layout := storepkg.NewLayout(root, cfg.Workspace)
	lockStore := storepkg.New(layout.LockFile, logger)
	patcher := agentconfig.NewPatcher(layout.ConfigFile, logger)
	auditLog := audit.New(layout.AuditFile)
	copier := installer.Copier{Layout: layout, Artifacts: cfg.Artifacts}
	sources := source.NewManager(cfg.Source, logger)

	var fetcher source.Fetcher = sources
	if opts.Fetcher != nil {
		fetcher = opts.Fetcher
	}
	var skillsRunner SkillsRunner = skills.NewRunner(cfg.Skills, skills.Streams{In: opts.In, Out: opts.Out, Err: opts.Err}, logger)
	if opts.Skills != nil {
		skillsRunner = opts.Skills
	}
	python := opts.Python
	if python == nil {
		python = runtime.NewPython(cfg.Runtime, logger)
	}
	bun := opts.Bun
	if bun == nil {
		bun = runtime.NewBun(cfg.Runtime, logger)
	}
	prompter := opts.Prompter
	if prompter == nil && opts.In != nil {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		prompter = ui.NewPrompter(opts.In, out)
	}

	return &Service{
		ConfigPath: configPath,
		Config:     cfg,
		Layout:     layout,
		Logger:     logger,
		Store:      lockStore,
		Patcher:    patcher,
		Audit:      auditLog,
		Sources:    sources,
		Fetcher:    fetcher,
		Installer: &installer.Service{
			Copier:  copier,
			Store:   lockStore,
			Patcher: patcher,
			Audit:   auditLog,
			Logger:  logger,
			Now:     opts.Now,
		},
		Sync: &syncsvc.Service{
			Fetcher: fetcher,
			Copier:  copier,
			Store:   lockStore,
			Patcher: patcher,
			Audit:   auditLog,
			Logger:  logger,
			Timeout: timeout,
			Now:     opts.Now,
		},
		Doctor: &doctor.Service{
			Copier:  copier,
			Store:   lockStore,
			Patcher: patcher,
			Python:  python,
			Bun:     bun,
		},
		Skills:   skillsRunner,
		Python:   python,
		Bun:      bun,
		Prompter: prompter,
	}, nil
}

// Close flushes the audit journal and the logger.
func (s *Service) Close() error {
	_ = s.Logger.Sync()
	return s.Audit.Close()
}

func (s *Service) newNotices() *notices {
	return &notices{logger: s.Logger}
}
