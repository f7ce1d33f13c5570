package config

import "time"

const (
	SchemaVersion = 1

	defaultFetchTimeout = 2 * time.Minute
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Workspace: WorkspaceConfig{
			Dir:        ".opencode",
			ToolDir:    "tool",
			RulesDir:   "rules",
			LockFile:   "vibe-lock.json",
			ConfigFile: "opencode.jsonc",
			AuditFile:  "vibe-audit.log",
		},
		Source: SourceConfig{
			Host:         "https://github.com",
			FetchTimeout: defaultFetchTimeout.String(),
			Depth:        1,
		},
		Artifacts: ArtifactsConfig{
			PrimaryExt:     ".ts",
			SecondaryExt:   ".py",
			RuleExts:       []string{".md"},
			CommonCategory: "common",
		},
		Runtime: RuntimeConfig{
			Python:           []string{"python3", "python"},
			PythonMinVersion: "3.8",
			Requirements:     []string{"requests>=2.28.0", "urllib3>=1.26.0", "python-dotenv>=0.19.0"},
			BootstrapBun:     true,
		},
		Skills: SkillsConfig{
			Enabled: true,
			Command: []string{"pnpx", "skills"},
			Agent:   "opencode",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
