package config

import "strings"

func Normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	fill := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	fill(&cfg.Workspace.Dir, def.Workspace.Dir)
	fill(&cfg.Workspace.ToolDir, def.Workspace.ToolDir)
	fill(&cfg.Workspace.RulesDir, def.Workspace.RulesDir)
	fill(&cfg.Workspace.LockFile, def.Workspace.LockFile)
	fill(&cfg.Workspace.ConfigFile, def.Workspace.ConfigFile)
	fill(&cfg.Workspace.AuditFile, def.Workspace.AuditFile)
	fill(&cfg.Source.Host, def.Source.Host)
	fill(&cfg.Source.FetchTimeout, def.Source.FetchTimeout)
	if cfg.Source.Depth < 0 {
		cfg.Source.Depth = 0
	}
	fill(&cfg.Artifacts.PrimaryExt, def.Artifacts.PrimaryExt)
	fill(&cfg.Artifacts.SecondaryExt, def.Artifacts.SecondaryExt)
	fill(&cfg.Artifacts.CommonCategory, def.Artifacts.CommonCategory)
	cfg.Artifacts.PrimaryExt = dotted(cfg.Artifacts.PrimaryExt)
	cfg.Artifacts.SecondaryExt = dotted(cfg.Artifacts.SecondaryExt)
	if len(cfg.Artifacts.RuleExts) == 0 {
		cfg.Artifacts.RuleExts = def.Artifacts.RuleExts
	}
	for i := range cfg.Artifacts.RuleExts {
		cfg.Artifacts.RuleExts[i] = dotted(cfg.Artifacts.RuleExts[i])
	}
	if len(cfg.Runtime.Python) == 0 {
		cfg.Runtime.Python = def.Runtime.Python
	}
	fill(&cfg.Runtime.PythonMinVersion, def.Runtime.PythonMinVersion)
	if len(cfg.Skills.Command) == 0 {
		cfg.Skills.Command = def.Skills.Command
	}
	fill(&cfg.Skills.Agent, def.Skills.Agent)
	fill(&cfg.Logging.Level, def.Logging.Level)
	fill(&cfg.Logging.Format, def.Logging.Format)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.Source.Host = strings.TrimRight(cfg.Source.Host, "/")
	return cfg
}

func dotted(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
