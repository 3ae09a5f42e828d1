package config

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/amscompose/ams-compose/internal/errs"
)

// LockName is the lockfile's fixed filename at the project root.
const LockName = ".ams-compose.lock"

// LockEntry is the lockfile's per-library record: the ImportSpec actually
// installed, plus the provenance and status the orchestrator records at
// install time.
type LockEntry struct {
	ImportSpec `yaml:",inline"`

	Commit      string `yaml:"commit"`
	Checksum    string `yaml:"checksum"`
	InstalledAt string `yaml:"installed_at"`
	UpdatedAt   string `yaml:"updated_at"`

	DetectedLicense string `yaml:"detected_license,omitempty"`
	LicenseFile     string `yaml:"license_file,omitempty"`

	// InstallStatus and ValidationStatus are always populated (never
	// omitted): a missing value here is itself meaningful to `validate`
	// and `list`, so there is no omitempty.
	InstallStatus    string `yaml:"install_status"`
	ValidationStatus string `yaml:"validation_status"`

	LicenseChange  string `yaml:"license_change,omitempty"`
	LicenseWarning string `yaml:"license_warning,omitempty"`
}

// Lockfile is the parsed .ams-compose.lock.
type Lockfile struct {
	LibraryRoot string
	LockOrder   []string
	Libraries   map[string]LockEntry

	// extra holds any top-level key this version of the tool doesn't know
	// about, preserved verbatim so that round-tripping a lockfile written by
	// a newer tool version doesn't silently drop its fields.
	extra []orderedItem
}

var knownLockfileKeys = map[string]bool{"library_root": true, "libraries": true}

// rawLockfile tolerates unknown top-level keys for forward compatibility:
// unlike the manifest, a lockfile written by a newer tool version should
// still be readable by an older one.
type rawLockfile struct {
	LibraryRoot string               `yaml:"library_root"`
	Libraries   map[string]LockEntry `yaml:"libraries"`
}

// LoadLockfile reads the lockfile at path. A missing file is not an error:
// it returns an empty Lockfile, matching a project that has never run
// install. Any other read or parse failure is reported as an
// *errs.ConfigError.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Lockfile{Libraries: map[string]LockEntry{}}, nil
	}
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	lf, err := ParseLockfile(data)
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	return lf, nil
}

// ParseLockfile decodes a lockfile, preserving library order for stable
// re-serialization.
func ParseLockfile(data []byte) (*Lockfile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing lockfile yaml")
	}

	var raw rawLockfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding lockfile")
	}

	lf := &Lockfile{
		LibraryRoot: raw.LibraryRoot,
		Libraries:   raw.Libraries,
	}
	if lf.Libraries == nil {
		lf.Libraries = map[string]LockEntry{}
	}
	if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
		root := doc.Content[0]
		if order, _, err := mappingOrder(root, "libraries"); err == nil {
			lf.LockOrder = order
		}
		lf.extra = unknownTopLevelItems(root, knownLockfileKeys)
	}

	return lf, nil
}

// unknownTopLevelItems returns every top-level (key, value-node) pair of
// root whose key is not in known, in document order.
func unknownTopLevelItems(root *yaml.Node, known map[string]bool) []orderedItem {
	var items []orderedItem
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if known[key.Value] {
			continue
		}
		items = append(items, orderedItem{key: key.Value, value: root.Content[i+1]})
	}
	return items
}

// Marshal serializes the lockfile, in LockOrder with any unordered entries
// appended in sorted name order so output is reproducible byte-for-byte
// given the same contents. Unknown top-level keys captured by ParseLockfile
// are re-emitted after library_root/libraries, so a lockfile round-tripped
// through a version of the tool that doesn't recognize some field doesn't
// lose it.
func (l *Lockfile) Marshal() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	var libraryRootVal yaml.Node
	if err := libraryRootVal.Encode(l.LibraryRoot); err != nil {
		return nil, err
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "library_root"}, &libraryRootVal)

	librariesVal := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range l.orderedNames() {
		entry := l.Libraries[name]
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		var valNode yaml.Node
		if err := valNode.Encode(entry); err != nil {
			return nil, err
		}
		librariesVal.Content = append(librariesVal.Content, keyNode, &valNode)
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "libraries"}, librariesVal)

	for _, item := range l.extra {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item.key}, item.value)
	}

	return yaml.Marshal(root)
}

func (l *Lockfile) orderedNames() []string {
	seen := make(map[string]bool, len(l.Libraries))
	var names []string
	for _, n := range l.LockOrder {
		if _, ok := l.Libraries[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range l.Libraries {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Equivalent reports whether two lockfiles describe the same installed set:
// same libraries, each with the same repo, ref, commit and checksum. Timestamps and
// status fields are allowed to differ, mirroring golang-dep's
// locksAreEquivalent, which compares solver inputs rather than raw bytes so
// that re-running install without a manifest change is a no-op write.
func (l *Lockfile) Equivalent(other *Lockfile) bool {
	if other == nil {
		return len(l.Libraries) == 0
	}
	if len(l.Libraries) != len(other.Libraries) {
		return false
	}
	for name, entry := range l.Libraries {
		o, ok := other.Libraries[name]
		if !ok {
			return false
		}
		if entry.Commit != o.Commit || entry.Checksum != o.Checksum || entry.Repo != o.Repo || entry.Ref != o.Ref {
			return false
		}
	}
	return true
}

// Timestamp formats t the way InstalledAt/UpdatedAt are stored: RFC3339 in
// UTC, so lockfiles are diff-stable across machine timezones.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
