// Package queryfmt parses the two surface dialects of a query document
// (§6.2) into internal/query's data model: JSON-with-comments, and a plain
// YAML mapping. Both dialects decode into the same map[string]any tree
// before validation, following
// original_source/engine/web_engine/parsers/{json5_parser,yaml_parser}.py's
// split.
package queryfmt

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/drwebengine/drwe/internal/query"
)

// Dialect tags which surface syntax a document is written in.
type Dialect int

const (
	DialectJSON Dialect = iota
	DialectYAML
)

// Parse decodes raw into a query.Query according to dialect.
func Parse(raw []byte, dialect Dialect) (*query.Query, error) {
	tree, err := decode(raw, dialect)
	if err != nil {
		return nil, err
	}
	return buildQuery(tree)
}

func decode(raw []byte, dialect Dialect) (map[string]any, error) {
	switch dialect {
	case DialectJSON:
		standardized, err := hujson.Standardize(raw)
		if err != nil {
			return nil, &SchemaError{Message: "malformed JSON document", Err: err}
		}
		var tree map[string]any
		if err := json.Unmarshal(standardized, &tree); err != nil {
			return nil, &SchemaError{Message: "malformed JSON document", Err: err}
		}
		return tree, nil
	case DialectYAML:
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, &SchemaError{Message: "malformed YAML document", Err: err}
		}
		return normalizeYAMLMap(tree), nil
	}
	return nil, fmt.Errorf("unknown dialect %d", dialect)
}

// SchemaError is returned for any structurally invalid document (§7).
type SchemaError struct {
	Message string
	Err     error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("%s: %v", e.Message, e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// UnknownKeyError is returned when a document object carries a key the
// schema doesn't recognize (§6.2).
type UnknownKeyError struct {
	Key  string
	Path string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown key %q at %s", e.Key, e.Path)
}

// normalizeYAMLMap recursively converts map[any]any (what some YAML nodes
// decode to for nested mappings) into map[string]any so the rest of the
// pipeline only ever deals with one tree shape.
func normalizeYAMLMap(v any) map[string]any {
	out, _ := normalizeYAMLValue(v).(map[string]any)
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAMLValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAMLValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	default:
		return v
	}
}
