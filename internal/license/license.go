// Package license finds and classifies a license file inside a directory,
// and emits compatibility advisories for license types that warrant one.
//
// Adapted from golang-pkgsite's license detector: same candidate file list
// and google/licensecheck-based classification, generalized from "classify
// a module zip" to "classify an extracted library directory." Uses the
// licensecheck v0.3.x API (Scan/Coverage/Match.ID), not the older
// Cover/Options shape.
package license

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/licensecheck"
)

// Type is the advisory SPDX-ish classification of a detected license file.
type Type string

const (
	MIT          Type = "MIT"
	Apache20     Type = "Apache-2.0"
	GPL30        Type = "GPL-3.0"
	GPL20        Type = "GPL-2.0"
	BSD3Clause   Type = "BSD-3-Clause"
	BSD2Clause   Type = "BSD-2-Clause"
	ISC          Type = "ISC"
	MPL20        Type = "MPL-2.0"
	LGPL30       Type = "LGPL-3.0"
	LGPL21       Type = "LGPL-2.1"
	Unknown Type = "Unknown"
	None    Type = "None"
)

// coverageThreshold mirrors golang-pkgsite's license detector: the minimum
// percentage of the file that must be covered by recognized license text
// before a match is trusted at all.
const coverageThreshold = 90

// candidateNames is the ordered list of basenames searched for, case
// insensitively; first match wins.
var candidateNames = []string{
	"LICENSE", "LICENSE.txt", "LICENSE.md", "LICENSE.rst",
	"LICENCE", "COPYING", "COPYRIGHT",
}

// Detection is the result of searching a directory for a license file.
type Detection struct {
	FilePath string // absolute path to the detected file, "" if none
	Type     Type
	Snippet  string
}

// CandidateNames returns the ordered license-filename candidate list, for
// callers (the extractor's filter setup) that need to preserve these names
// regardless of ignore patterns.
func CandidateNames() []string {
	out := make([]string, len(candidateNames))
	copy(out, candidateNames)
	return out
}

// Detect searches dir for a license file by the candidate name list
// (case-insensitive, first match wins) and classifies it.
func Detect(dir string) Detection {
	path := findCandidate(dir)
	if path == "" {
		return Detection{Type: None}
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return Detection{Type: None}
	}

	return Detection{
		FilePath: path,
		Type:     classify(contents),
		Snippet:  contentSnippet(contents),
	}
}

func findCandidate(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names[strings.ToLower(e.Name())] = e.Name()
	}
	for _, cand := range candidateNames {
		if actual, ok := names[strings.ToLower(cand)]; ok {
			return filepath.Join(dir, actual)
		}
	}
	return ""
}

func classify(contents []byte) Type {
	cov := licensecheck.Scan(contents)
	if cov == nil || cov.Percent < coverageThreshold || len(cov.Match) == 0 {
		return Unknown
	}

	// licensecheck.Match carries no per-match confidence, only the text span
	// it covers; take the match with the widest span as the dominant license.
	best := cov.Match[0]
	for _, m := range cov.Match[1:] {
		if (m.End - m.Start) > (best.End - best.Start) {
			best = m
		}
	}
	if t, ok := knownTypes[best.ID]; ok {
		return t
	}
	return Unknown
}

// knownTypes maps licensecheck's match IDs onto the classification table in
// the spec. licensecheck's identifiers are already SPDX-shaped, so this is
// mostly a closed allow-list rather than a translation.
var knownTypes = map[string]Type{
	"MIT":          MIT,
	"Apache-2.0":   Apache20,
	"GPL-3.0":      GPL30,
	"GPL-2.0":      GPL20,
	"BSD-3-Clause": BSD3Clause,
	"BSD-2-Clause": BSD2Clause,
	"ISC":          ISC,
	"MPL-2.0":      MPL20,
	"LGPL-3.0":     LGPL30,
	"LGPL-2.1":     LGPL21,
}

// contentSnippet returns the first three non-blank, non-decorative lines of
// contents (skipping rule-of-equals/asterisk banner lines).
func contentSnippet(contents []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	var lines []string
	for scanner.Scan() && len(lines) < 3 {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isDecorative(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func isDecorative(line string) bool {
	trimmed := strings.TrimFunc(line, func(r rune) bool {
		return r == '=' || r == '*' || r == '-' || r == '#'
	})
	return trimmed == ""
}

// CompatibilityWarning returns a short advisory for copyleft and
// unclassified licenses; permissive licenses return "".
func CompatibilityWarning(t Type) string {
	switch t {
	case GPL30, GPL20, LGPL30, LGPL21:
		return "copyleft license " + string(t) + " may impose redistribution obligations on the consuming project"
	case Unknown:
		return "license file present but could not be classified; review manually"
	case None:
		return "no license file found; upstream terms are unknown"
	default:
		return ""
	}
}
