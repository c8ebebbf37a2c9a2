// Package config loads and validates extension manifests: YAML documents
// naming the extension libraries to load and the component types each one
// provides. Manifests are validated against a JSON schema before use so a
// malformed file is rejected with field-level errors instead of surfacing
// later as a missing type.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/weftworks/weft/errors"
)

// ComponentEntry declares one component type an extension provides.
type ComponentEntry struct {
	TypeName string `yaml:"type_name" json:"type_name"`
	// ID is the optional fixed type id, formatted as two hex halves
	// joined by a dash. Empty requests a generated id.
	ID          string `yaml:"id,omitempty" json:"id,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ExtensionEntry declares one extension to load.
type ExtensionEntry struct {
	Name string `yaml:"name" json:"name"`
	// Path locates the extension library, resolved against the manifest's
	// base directory when relative.
	Path       string           `yaml:"path" json:"path"`
	Version    string           `yaml:"version,omitempty" json:"version,omitempty"`
	Components []ComponentEntry `yaml:"components,omitempty" json:"components,omitempty"`
}

// Manifest is a parsed extension manifest.
type Manifest struct {
	Version    string           `yaml:"version" json:"version"`
	Extensions []ExtensionEntry `yaml:"extensions" json:"extensions"`
}

// manifestSchema is the JSON schema every manifest must satisfy.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "extensions"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "extensions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "path"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "path": {"type": "string", "minLength": 1},
          "version": {"type": "string"},
          "components": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type_name"],
              "properties": {
                "type_name": {"type": "string", "minLength": 1},
                "id": {"type": "string", "pattern": "^[0-9a-fA-F]{1,16}-[0-9a-fA-F]{1,16}$"},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// LoadManifest reads, parses, and validates one manifest file. Relative
// extension paths are resolved against baseDir, or against the manifest's
// own directory when baseDir is empty.
func LoadManifest(path, baseDir string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfig(err, "Manifest", "LoadManifest", "file read")
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.WrapConfig(err, "Manifest", "LoadManifest", "yaml parse")
	}

	if err := validateManifest(&m); err != nil {
		return nil, errors.WrapConfig(err, "Manifest", "LoadManifest", "schema validation")
	}

	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}
	for i := range m.Extensions {
		ext := &m.Extensions[i]
		if !filepath.IsAbs(ext.Path) {
			ext.Path = filepath.Join(baseDir, ext.Path)
		}
	}
	return &m, nil
}

// LoadManifests loads several manifest files, concatenating their extension
// entries in file order.
func LoadManifests(paths []string, baseDir string) (*Manifest, error) {
	merged := &Manifest{Version: "1"}
	for _, path := range paths {
		m, err := LoadManifest(path, baseDir)
		if err != nil {
			return nil, err
		}
		merged.Extensions = append(merged.Extensions, m.Extensions...)
	}
	return merged, nil
}

// validateManifest checks the parsed manifest against the schema. YAML has
// no validator of its own, so the document round-trips through JSON first.
func validateManifest(m *Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(manifestSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		b.WriteString("manifest invalid:")
		for _, desc := range result.Errors() {
			fmt.Fprintf(&b, " %s: %s;", desc.Field(), desc.Description())
		}
		return errors.New(strings.TrimSuffix(b.String(), ";"))
	}
	return nil
}
