// Package declarative reads semantic layers and queries from JSON or YAML
// files and watches them for changes.
package declarative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"semsql/internal/domain"
)

// LoadOptions configures decoding behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadSemanticLayer reads a semantic layer definition.
func LoadSemanticLayer(path string) (*domain.SemanticLayer, error) {
	var layer domain.SemanticLayer
	if err := loadFile(path, KindNameSemanticLayer, &layer, LoadOptions{}); err != nil {
		return nil, err
	}
	return &layer, nil
}

// LoadQuerySpec reads a bare query.
func LoadQuerySpec(path string) (*domain.QuerySpec, error) {
	var q domain.QuerySpec
	if err := loadFile(path, KindNameQuery, &q, LoadOptions{}); err != nil {
		return nil, err
	}
	return &q, nil
}

// LoadGeneratedQuery reads a query_json/semantic_layer_json document.
func LoadGeneratedQuery(path string) (*domain.GeneratedQuery, error) {
	var gq domain.GeneratedQuery
	if err := loadFile(path, KindNameGeneratedQuery, &gq, LoadOptions{}); err != nil {
		return nil, err
	}
	return &gq, nil
}

// LoadQueryFile reads queryPath as a generated query document or, when it
// holds a bare query, pairs it with the semantic layer at layerPath. A
// non-empty layerPath always replaces any embedded semantic layer.
func LoadQueryFile(queryPath, layerPath string) (*domain.GeneratedQuery, error) {
	body, kind, err := readDocument(queryPath)
	if err != nil {
		return nil, err
	}

	var gq domain.GeneratedQuery
	isGenerated := kind == KindNameGeneratedQuery
	if kind == "" {
		if m, ok := body.(map[string]any); ok {
			_, isGenerated = m["query_json"]
		}
	}

	if isGenerated {
		if err := decodeInto(queryPath, body, &gq, LoadOptions{}); err != nil {
			return nil, err
		}
	} else {
		if kind != "" && kind != KindNameQuery {
			return nil, fmt.Errorf("%s: unexpected kind %q (expected %q or %q)", queryPath, kind, KindNameQuery, KindNameGeneratedQuery)
		}
		if err := decodeInto(queryPath, body, &gq.Query, LoadOptions{}); err != nil {
			return nil, err
		}
		if layerPath == "" {
			return nil, fmt.Errorf("%s: bare query requires a semantic layer file", queryPath)
		}
	}

	if layerPath != "" {
		layer, err := LoadSemanticLayer(layerPath)
		if err != nil {
			return nil, err
		}
		gq.SemanticLayer = *layer
	}
	return &gq, nil
}

func loadFile(path, expectedKind string, target any, opts LoadOptions) error {
	body, kind, err := readDocument(path)
	if err != nil {
		return err
	}
	if kind != "" && kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return decodeInto(path, body, target, opts)
}

// readDocument parses path into a generic tree and unwraps the envelope if
// present. kind is empty for bare documents.
func readDocument(path string) (any, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified definition files
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}

	var tree any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&tree); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
		tree, err = nodeToValue(&node)
		if err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, "", fmt.Errorf("%s: unsupported file extension %q (want .json, .yaml or .yml)", path, filepath.Ext(path))
	}

	m, ok := tree.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%s: top-level value must be an object", path)
	}
	if _, enveloped := m["apiVersion"]; !enveloped {
		return m, "", nil
	}

	apiVersion, _ := m["apiVersion"].(string)
	kind, _ := m["kind"].(string)
	if err := validateDocument(path, apiVersion, kind); err != nil {
		return nil, "", err
	}
	spec, ok := m["spec"]
	if !ok {
		return nil, "", fmt.Errorf("%s: spec is required", path)
	}
	return spec, kind, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path, apiVersion, kind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	switch kind {
	case KindNameSemanticLayer, KindNameQuery, KindNameGeneratedQuery:
		return nil
	default:
		return fmt.Errorf("%s: unknown kind %q", path, kind)
	}
}

// decodeInto re-encodes the generic tree as JSON so every format shares the
// JSON decoding rules of the domain types.
func decodeInto(path string, body, target any, opts LoadOptions) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if !opts.AllowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// nodeToValue converts a YAML node into JSON-compatible values. Numeric
// scalars keep their source text so decimal values are not rounded.
func nodeToValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeToValue(n.Content[0])
	case yaml.AliasNode:
		return nodeToValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: mapping key: %w", n.Content[i].Line, err)
			}
			v, err := nodeToValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			if json.Valid([]byte(n.Value)) {
				return json.Number(n.Value), nil
			}
		case "!!str":
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}
