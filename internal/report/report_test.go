package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/amscompose/ams-compose/internal/config"
)

func TestWriteEntriesFormatsColumnsAndWarnings(t *testing.T) {
	entries := map[string]config.LockEntry{
		"opamp": {
			ImportSpec:       config.ImportSpec{Ref: "main"},
			Commit:           "0123456789abcdef0123456789abcdef01234567",
			DetectedLicense:  "GPL-3.0",
			InstallStatus:    "installed",
			ValidationStatus: "valid",
			LicenseWarning:   "copyleft license GPL-3.0 may impose redistribution obligations on the consuming project",
			LicenseChange:    "MIT -> GPL-3.0",
		},
	}

	var buf bytes.Buffer
	WriteEntries(&buf, entries)
	out := buf.String()

	if !strings.Contains(out, "opamp") || !strings.Contains(out, "commit:01234567") {
		t.Fatalf("expected a truncated commit column, got %q", out)
	}
	if !strings.Contains(out, "ref:main") || !strings.Contains(out, "license:GPL-3.0") || !strings.Contains(out, "status:valid") {
		t.Fatalf("missing expected columns: %q", out)
	}
	if !strings.Contains(out, "⚠") {
		t.Fatalf("expected a warning line prefixed with the warning glyph: %q", out)
	}
	if !strings.Contains(out, "↳") {
		t.Fatalf("expected a license-change line: %q", out)
	}
}

func TestWriteEntriesDefaultsLicenseToNone(t *testing.T) {
	entries := map[string]config.LockEntry{
		"pdk": {InstallStatus: "installed", ValidationStatus: "valid"},
	}
	var buf bytes.Buffer
	WriteEntries(&buf, entries)
	if !strings.Contains(buf.String(), "license:None") {
		t.Fatalf("expected license:None for an entry with no detected license, got %q", buf.String())
	}
}
