// ABOUTME: Parameter file persistence as one JSON object of named numbers
// ABOUTME: Files are validated against an embedded JSON Schema before use

package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "basestation://params.schema.json"

const schemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "robot parameters",
  "type": "object",
  "propertyNames": {"pattern": "^\\S+$"},
  "additionalProperties": {"type": "number"}
}`

var schema = jsonschema.MustCompileString(schemaURL, schemaSource)

// Decode parses and validates a parameter document.
func Decode(data []byte) (Set, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing parameters: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating parameters: %w", err)
	}

	obj, _ := doc.(map[string]any)
	out := make(Set, len(obj))
	for name, raw := range obj {
		n, _ := raw.(json.Number)
		v, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Encode renders s as an indented JSON object in Keys order.
func Encode(s Set) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, name := range s.Keys() {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "\n    %s: %s", key, FormatValue(s[name]))
	}
	if len(s) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Load reads a parameter file from path.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	return Decode(data)
}

// Save writes s to path, creating parent directories as needed.
func Save(path string, s Set) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating parameter directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	return nil
}

// ApplyKnown copies values from loaded into target for names target already
// has. Unknown names are returned, sorted, and left out.
func ApplyKnown(target, loaded Set) (ignored []string) {
	for name, v := range loaded {
		if _, ok := target[name]; !ok {
			ignored = append(ignored, name)
			continue
		}
		target[name] = v
	}
	slices.Sort(ignored)
	return ignored
}
