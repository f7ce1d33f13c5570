package agentconfig

const scaffold = `{
  "$schema": "https://opencode.ai/config.json",
  "theme": "one-dark",
  "instructions": [],
  "mcp": {
    "shadcnVue": { "type": "local", "enabled": true, "command": ["npx", "shadcn-vue@latest", "mcp"] },
    "context7": { "type": "remote", "url": "https://mcp.context7.com/mcp" }
  },
  "tools": {},
  "permission": { "edit": "ask", "skill": { "*": "allow" } }
}
`

// Scaffold returns the document written for a fresh workspace.
func Scaffold() []byte {
	return []byte(scaffold)
}
