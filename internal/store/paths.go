package store

import (
	"path/filepath"

	"vibe/internal/config"
)

// Layout is the set of paths vibe manages inside one project workspace.
type Layout struct {
	Root       string
	Dir        string
	ToolDir    string
	RulesDir   string
	LockFile   string
	ConfigFile string
	AuditFile  string

	// RulesRef is the rules directory as written in instruction paths,
	// relative to Dir and slash-separated.
	RulesRef string
}

func NewLayout(root string, ws config.WorkspaceConfig) Layout {
	dir := filepath.Join(root, ws.Dir)
	return Layout{
		Root:       root,
		Dir:        dir,
		ToolDir:    filepath.Join(dir, ws.ToolDir),
		RulesDir:   filepath.Join(dir, ws.RulesDir),
		LockFile:   filepath.Join(dir, ws.LockFile),
		ConfigFile: filepath.Join(dir, ws.ConfigFile),
		AuditFile:  filepath.Join(dir, ws.AuditFile),
		RulesRef:   filepath.ToSlash(filepath.Clean(ws.RulesDir)),
	}
}

// InstructionPath is the config-document reference for a rule file.
func (l Layout) InstructionPath(category, file string) string {
	return "./" + l.RulesRef + "/" + category + "/" + file
}

// InstructionPrefix is the prefix shared by every instruction path of category.
func (l Layout) InstructionPrefix(category string) string {
	return "./" + l.RulesRef + "/" + category + "/"
}
