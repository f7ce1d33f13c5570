package config

// Config is the v1 settings schema for the vibe CLI.
type Config struct {
	Version   int             `toml:"version" mapstructure:"version"`
	Workspace WorkspaceConfig `toml:"workspace" mapstructure:"workspace"`
	Source    SourceConfig    `toml:"source" mapstructure:"source"`
	Artifacts ArtifactsConfig `toml:"artifacts" mapstructure:"artifacts"`
	Runtime   RuntimeConfig   `toml:"runtime" mapstructure:"runtime"`
	Skills    SkillsConfig    `toml:"skills" mapstructure:"skills"`
	Logging   LoggingConfig   `toml:"logging" mapstructure:"logging"`
}

// WorkspaceConfig names the host agent directory and the files vibe manages
// inside it. All paths except Dir are relative to Dir.
type WorkspaceConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir" json:"dir"`
	ToolDir    string `toml:"tool_dir" mapstructure:"tool_dir" json:"toolDir"`
	RulesDir   string `toml:"rules_dir" mapstructure:"rules_dir" json:"rulesDir"`
	LockFile   string `toml:"lock_file" mapstructure:"lock_file" json:"lockFile"`
	ConfigFile string `toml:"config_file" mapstructure:"config_file" json:"configFile"`
	AuditFile  string `toml:"audit_file" mapstructure:"audit_file" json:"auditFile"`
}

type SourceConfig struct {
	Host         string `toml:"host" mapstructure:"host" json:"host"`
	FetchTimeout string `toml:"fetch_timeout" mapstructure:"fetch_timeout" json:"fetchTimeout"`
	Depth        int    `toml:"depth" mapstructure:"depth" json:"depth"`
}

type ArtifactsConfig struct {
	PrimaryExt     string   `toml:"primary_ext" mapstructure:"primary_ext" json:"primaryExt"`
	SecondaryExt   string   `toml:"secondary_ext" mapstructure:"secondary_ext" json:"secondaryExt"`
	RuleExts       []string `toml:"rule_exts" mapstructure:"rule_exts" json:"ruleExts"`
	CommonCategory string   `toml:"common_category" mapstructure:"common_category" json:"commonCategory"`
}

type RuntimeConfig struct {
	Python           []string `toml:"python" mapstructure:"python" json:"python"`
	PythonMinVersion string   `toml:"python_min_version" mapstructure:"python_min_version" json:"pythonMinVersion"`
	Requirements     []string `toml:"requirements" mapstructure:"requirements" json:"requirements"`
	BootstrapBun     bool     `toml:"bootstrap_bun" mapstructure:"bootstrap_bun" json:"bootstrapBun"`
}

// SkillsConfig controls the external skills installer that runs alongside
// every add/list/update/remove.
type SkillsConfig struct {
	Enabled bool     `toml:"enabled" mapstructure:"enabled" json:"enabled"`
	Command []string `toml:"command" mapstructure:"command" json:"command"`
	Agent   string   `toml:"agent" mapstructure:"agent" json:"agent"`
}

type LoggingConfig struct {
	Level  string `toml:"level" mapstructure:"level" json:"level"`
	Format string `toml:"format" mapstructure:"format" json:"format"`
}
