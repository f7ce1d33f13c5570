package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("CFG_VERSION: unsupported version %d", cfg.Version)
	}
	for name, v := range map[string]string{
		"workspace.tool_dir":    cfg.Workspace.ToolDir,
		"workspace.rules_dir":   cfg.Workspace.RulesDir,
		"workspace.lock_file":   cfg.Workspace.LockFile,
		"workspace.config_file": cfg.Workspace.ConfigFile,
		"workspace.audit_file":  cfg.Workspace.AuditFile,
	} {
		if v == "" {
			return fmt.Errorf("CFG_WORKSPACE: %s is required", name)
		}
		if filepath.IsAbs(v) || strings.HasPrefix(filepath.Clean(v), "..") {
			return fmt.Errorf("CFG_WORKSPACE: %s must stay inside the workspace dir, got %q", name, v)
		}
	}
	if cfg.Workspace.Dir == "" {
		return fmt.Errorf("CFG_WORKSPACE: workspace.dir is required")
	}
	if _, err := FetchTimeout(cfg); err != nil {
		return err
	}
	if cfg.Artifacts.PrimaryExt == cfg.Artifacts.SecondaryExt {
		return fmt.Errorf("CFG_ARTIFACTS: primary and secondary extensions must differ (%q)", cfg.Artifacts.PrimaryExt)
	}
	if strings.ContainsAny(cfg.Artifacts.CommonCategory, `/\`) {
		return fmt.Errorf("CFG_ARTIFACTS: common category %q must be a plain name", cfg.Artifacts.CommonCategory)
	}
	if !semver.IsValid("v" + cfg.Runtime.PythonMinVersion) {
		return fmt.Errorf("CFG_RUNTIME: invalid python_min_version %q", cfg.Runtime.PythonMinVersion)
	}
	if cfg.Skills.Enabled && len(cfg.Skills.Command) == 0 {
		return fmt.Errorf("CFG_SKILLS: skills.command is required when skills are enabled")
	}
	if _, ok := allowedLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("CFG_LOGGING: unsupported log level %q", cfg.Logging.Level)
	}
	if _, ok := allowedLogFormats[cfg.Logging.Format]; !ok {
		return fmt.Errorf("CFG_LOGGING: unsupported log format %q", cfg.Logging.Format)
	}
	return nil
}

// FetchTimeout parses source.fetch_timeout. Zero disables the per-source timeout.
func FetchTimeout(cfg Config) (time.Duration, error) {
	d, err := time.ParseDuration(cfg.Source.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("CFG_SOURCE: invalid fetch_timeout %q: %w", cfg.Source.FetchTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("CFG_SOURCE: fetch_timeout must not be negative")
	}
	return d, nil
}
