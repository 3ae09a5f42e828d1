// Package config parses and serializes the ams-compose manifest and
// lockfile. Both are YAML; unknown fields are rejected on the manifest and
// ignored on the lockfile, for forward compatibility.
//
// The raw-then-validated decode shape is adapted from golang-dep's
// manifest.go/lock.go, which decode into an unexported raw*/possibleProps
// wire type before converting into the public type. Here that indirection
// also lets us preserve manifest import order (yaml.v3 does not preserve
// map key order on decode into a Go map), which the orchestrator needs for
// its "manifest order" planning and lockfile-serialization guarantees.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/amscompose/ams-compose/internal/errs"
)

// ManifestName is the manifest's fixed filename at the project root.
const ManifestName = "ams-compose.yaml"

// DefaultLibraryRoot is used when the manifest omits library_root.
const DefaultLibraryRoot = "designs/libs"

// ProjectIgnoreFileName is the project-global ignore file's fixed filename
// at the project root (filter tier 2, spec.md §4.3/§6). Its absence is not
// an error: internal/filter degrades gracefully when it can't find it.
const ProjectIgnoreFileName = ".ams-compose-ignore"

var libraryNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ImportSpec is one manifest entry, keyed by library name.
type ImportSpec struct {
	Repo           string   `yaml:"repo"`
	Ref            string   `yaml:"ref"`
	SourcePath     string   `yaml:"source_path"`
	LocalPath      string   `yaml:"local_path,omitempty"`
	Checkin        bool     `yaml:"checkin"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`
	License        string   `yaml:"license,omitempty"`
}

// Manifest is the parsed ams-compose.yaml.
type Manifest struct {
	LibraryRoot string
	// ImportOrder preserves the order libraries appeared in the manifest,
	// which the orchestrator uses to plan and to keep lockfile output
	// reproducible.
	ImportOrder []string
	Imports     map[string]ImportSpec
}

// rawManifest is the wire shape, decoded with known top-level keys only; any
// other top-level key is a ConfigError.
type rawManifest struct {
	LibraryRoot string                     `yaml:"library_root"`
	Imports     map[string]rawImportFields `yaml:"imports"`
}

type rawImportFields struct {
	Repo           string   `yaml:"repo"`
	Ref            string   `yaml:"ref"`
	SourcePath     string   `yaml:"source_path"`
	LocalPath      string   `yaml:"local_path"`
	Checkin        *bool    `yaml:"checkin"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	License        string   `yaml:"license"`
}

var allowedManifestKeys = map[string]bool{"library_root": true, "imports": true}
var allowedImportKeys = map[string]bool{
	"repo": true, "ref": true, "source_path": true, "local_path": true,
	"checkin": true, "ignore_patterns": true, "license": true,
}

// LoadManifest reads and validates the manifest at path. Any failure, read
// or parse, is reported as an *errs.ConfigError: the orchestrator cannot
// plan without a valid manifest, so this is always a fatal, user-facing
// configuration problem rather than an internal one.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	return m, nil
}

// ParseManifest validates schema (required fields, no unknown top-level or
// per-import keys) and returns the Manifest with import order preserved.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing manifest yaml")
	}
	if len(doc.Content) == 0 {
		return &Manifest{LibraryRoot: DefaultLibraryRoot, Imports: map[string]ImportSpec{}}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("manifest must be a YAML mapping")
	}
	if err := rejectUnknownKeys(root, allowedManifestKeys, "manifest"); err != nil {
		return nil, err
	}

	var raw rawManifest
	if err := doc.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}

	order, importsNode, err := mappingOrder(root, "imports")
	if err != nil {
		return nil, err
	}
	for _, item := range importsNode {
		if err := rejectUnknownKeys(item.value, allowedImportKeys, fmt.Sprintf("imports.%s", item.key)); err != nil {
			return nil, err
		}
	}

	m := &Manifest{
		LibraryRoot: raw.LibraryRoot,
		ImportOrder: order,
		Imports:     make(map[string]ImportSpec, len(raw.Imports)),
	}
	if m.LibraryRoot == "" {
		m.LibraryRoot = DefaultLibraryRoot
	}

	for name, rf := range raw.Imports {
		if !libraryNamePattern.MatchString(name) {
			return nil, errors.Errorf("invalid library name %q: must match %s", name, libraryNamePattern.String())
		}
		if rf.Repo == "" {
			return nil, errors.Errorf("library %q: repo is required", name)
		}
		if rf.Ref == "" {
			return nil, errors.Errorf("library %q: ref is required", name)
		}
		if rf.SourcePath == "" {
			return nil, errors.Errorf("library %q: source_path is required", name)
		}
		checkin := true
		if rf.Checkin != nil {
			checkin = *rf.Checkin
		}
		m.Imports[name] = ImportSpec{
			Repo:           rf.Repo,
			Ref:            rf.Ref,
			SourcePath:     rf.SourcePath,
			LocalPath:      rf.LocalPath,
			Checkin:        checkin,
			IgnorePatterns: rf.IgnorePatterns,
			License:        rf.License,
		}
	}

	return m, nil
}

// Marshal serializes the manifest back to YAML, in ImportOrder (falling
// back to sorted name order for any import not present in ImportOrder, e.g.
// one newly added programmatically by `init`).
func (m *Manifest) Marshal() ([]byte, error) {
	raw := rawManifestOut{LibraryRoot: m.LibraryRoot, Imports: yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
	for _, name := range m.orderedNames() {
		spec := m.Imports[name]
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		var valNode yaml.Node
		if err := valNode.Encode(toRawImportFields(spec)); err != nil {
			return nil, err
		}
		raw.Imports.Content = append(raw.Imports.Content, keyNode, &valNode)
	}
	return yaml.Marshal(&raw)
}

func (m *Manifest) orderedNames() []string {
	seen := make(map[string]bool, len(m.Imports))
	var names []string
	for _, n := range m.ImportOrder {
		if _, ok := m.Imports[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range m.Imports {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

type rawManifestOut struct {
	LibraryRoot string   `yaml:"library_root"`
	Imports     yaml.Node `yaml:"imports"`
}

func toRawImportFields(s ImportSpec) rawImportFields {
	checkin := s.Checkin
	return rawImportFields{
		Repo: s.Repo, Ref: s.Ref, SourcePath: s.SourcePath, LocalPath: s.LocalPath,
		Checkin: &checkin, IgnorePatterns: s.IgnorePatterns, License: s.License,
	}
}

type orderedItem struct {
	key   string
	value *yaml.Node
}

// mappingOrder returns the key order of a top-level mapping field plus the
// (key, value-node) pairs for per-entry validation.
func mappingOrder(root *yaml.Node, field string) ([]string, []orderedItem, error) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != field {
			continue
		}
		val := root.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return nil, nil, errors.Errorf("%q must be a mapping", field)
		}
		var order []string
		var items []orderedItem
		for j := 0; j+1 < len(val.Content); j += 2 {
			k := val.Content[j]
			order = append(order, k.Value)
			items = append(items, orderedItem{key: k.Value, value: val.Content[j+1]})
		}
		return order, items, nil
	}
	return nil, nil, nil
}

func rejectUnknownKeys(mapping *yaml.Node, allowed map[string]bool, context string) error {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if !allowed[key] {
			return errors.Errorf("%s: unknown field %q", context, key)
		}
	}
	return nil
}
