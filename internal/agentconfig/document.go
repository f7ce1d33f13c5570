package agentconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrParse marks a config document that cannot be read as a JSON object.
var ErrParse = errors.New("config document unreadable")

const (
	toolsKey        = "tools"
	instructionsKey = "instructions"
)

// ToolEntry is one member of the "tools" map. Value is kept raw so entries
// that are not plain booleans survive a rewrite.
type ToolEntry struct {
	Name  string
	Value json.RawMessage
}

// Enabled reports whether the entry is truthy: anything except false, null,
// a zero number and the empty string. Nested values count as enabled.
func (e ToolEntry) Enabled() bool {
	var v any
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// Document is a parsed config document: the managed sections are typed,
// everything else is a passthrough bag of raw values.
type Document struct {
	keys         []string
	passthrough  map[string]json.RawMessage
	tools        []ToolEntry
	instructions []string
}

// Parse reads a JSON-with-comments document.
func Parse(src []byte) (*Document, error) {
	fields, keys, err := decodeObject(Standardize(src))
	if err != nil {
		return nil, err
	}
	doc := &Document{keys: keys, passthrough: map[string]json.RawMessage{}}
	for _, key := range keys {
		raw := fields[key]
		switch key {
		case toolsKey:
			tools, err := decodeTools(raw)
			if err != nil {
				return nil, err
			}
			doc.tools = tools
		case instructionsKey:
			if isNull(raw) {
				continue
			}
			if err := json.Unmarshal(raw, &doc.instructions); err != nil {
				return nil, fmt.Errorf("%w: instructions must be a list of strings: %v", ErrParse, err)
			}
		default:
			doc.passthrough[key] = raw
		}
	}
	return doc, nil
}

// decodeObject splits a JSON object into raw members, keeping first-seen
// key order. A repeated key keeps its first position and its last value.
func decodeObject(data []byte) (map[string]json.RawMessage, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("%w: expected a JSON object", ErrParse)
	}
	fields := map[string]json.RawMessage{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: expected an object key", ErrParse)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("%w: value of %q: %v", ErrParse, key, err)
		}
		if _, seen := fields[key]; !seen {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, fmt.Errorf("%w: unexpected data after the top-level object", ErrParse)
	}
	return fields, keys, nil
}

func decodeTools(raw json.RawMessage) ([]ToolEntry, error) {
	if isNull(raw) {
		return nil, nil
	}
	fields, keys, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("tools must be an object: %w", err)
	}
	out := make([]ToolEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, ToolEntry{Name: k, Value: fields[k]})
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Passthrough returns the raw value of an unmanaged key.
func (d *Document) Passthrough(key string) (json.RawMessage, bool) {
	raw, ok := d.passthrough[key]
	return raw, ok
}

func (d *Document) Tools() []ToolEntry {
	return append([]ToolEntry(nil), d.tools...)
}

// Tool reports whether name is present in tools and whether it is enabled.
func (d *Document) Tool(name string) (enabled, present bool) {
	if i := d.toolIndex(name); i >= 0 {
		return d.tools[i].Enabled(), true
	}
	return false, false
}

func (d *Document) Instructions() []string {
	return append([]string(nil), d.instructions...)
}

func (d *Document) toolIndex(name string) int {
	for i, t := range d.tools {
		if t.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) ensureKey(key string) {
	for _, k := range d.keys {
		if k == key {
			return
		}
	}
	d.keys = append(d.keys, key)
}

// AddTools enables each name that is absent or not enabled. Other entries
// are left as they are.
func (d *Document) AddTools(names []string) bool {
	changed := false
	for _, name := range names {
		if name == "" {
			continue
		}
		i := d.toolIndex(name)
		switch {
		case i < 0:
			d.tools = append(d.tools, ToolEntry{Name: name, Value: json.RawMessage("true")})
			changed = true
		case !d.tools[i].Enabled():
			d.tools[i].Value = json.RawMessage("true")
			changed = true
		}
	}
	if changed {
		d.ensureKey(toolsKey)
	}
	return changed
}

// AddInstructions appends each path not already listed, keeping order.
func (d *Document) AddInstructions(paths []string) bool {
	seen := make(map[string]struct{}, len(d.instructions))
	for _, p := range d.instructions {
		seen[p] = struct{}{}
	}
	changed := false
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		d.instructions = append(d.instructions, p)
		changed = true
	}
	if changed {
		d.ensureKey(instructionsKey)
	}
	return changed
}

// RemoveTools deletes each named key from tools.
func (d *Document) RemoveTools(names []string) bool {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := d.tools[:0:0]
	for _, t := range d.tools {
		if _, ok := drop[t.Name]; ok {
			continue
		}
		kept = append(kept, t)
	}
	changed := len(kept) != len(d.tools)
	d.tools = kept
	return changed
}

// RemoveInstructionsWithPrefix deletes every instruction starting with one
// of prefixes.
func (d *Document) RemoveInstructionsWithPrefix(prefixes []string) bool {
	if len(prefixes) == 0 {
		return false
	}
	kept := make([]string, 0, len(d.instructions))
	for _, p := range d.instructions {
		if hasAnyPrefix(p, prefixes) {
			continue
		}
		kept = append(kept, p)
	}
	changed := len(kept) != len(d.instructions)
	d.instructions = kept
	return changed
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Bytes renders the document as two-space indented JSON.
func (d *Document) Bytes() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			compact.WriteByte(',')
		}
		if err := writeString(&compact, key); err != nil {
			return nil, err
		}
		compact.WriteByte(':')
		var err error
		switch key {
		case toolsKey:
			err = d.writeTools(&compact)
		case instructionsKey:
			err = d.writeInstructions(&compact)
		default:
			err = json.Compact(&compact, d.passthrough[key])
		}
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (d *Document) writeTools(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, t := range d.tools {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, t.Name); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := json.Compact(buf, t.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (d *Document) writeInstructions(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for i, p := range d.instructions {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, p); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// RemoveInstructionsUnder deletes instructions that live under
// ./<rulesDir>/<category>/ for any of categories.
func (d *Document) RemoveInstructionsUnder(rulesDir string, categories []string) bool {
	prefixes := make([]string, 0, len(categories))
	for _, c := range categories {
		if c == "" {
			continue
		}
		prefixes = append(prefixes, "./"+strings.Trim(rulesDir, "/")+"/"+c+"/")
	}
	return d.RemoveInstructionsWithPrefix(prefixes)
}
