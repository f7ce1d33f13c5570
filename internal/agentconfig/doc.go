// Package agentconfig edits the host agent's opencode.jsonc document.
//
// The document is JSON with line and block comments and trailing commas.
// Only two sections are managed: the "tools" map and the "instructions"
// list. Every other top-level key is carried through untouched and in its
// original order. Comments are not preserved once a patch changes the
// document; a patch that changes nothing leaves the file byte-identical.
package agentconfig
