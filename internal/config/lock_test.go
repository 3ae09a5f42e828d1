package config

import (
	"testing"
)

const sampleLock = `
library_root: designs/libs
libraries:
  opamp:
    repo: https://github.com/example/analog-libs.git
    ref: main
    source_path: cells/opamp
    checkin: true
    commit: abc123
    checksum: deadbeef
    installed_at: "2026-01-01T00:00:00Z"
    updated_at: "2026-01-01T00:00:00Z"
    install_status: installed
    validation_status: valid
  bandgap:
    repo: https://github.com/example/analog-libs.git
    ref: v2.0.0
    source_path: cells/bandgap
    checkin: false
    commit: def456
    checksum: cafebabe
    installed_at: "2026-01-01T00:00:00Z"
    updated_at: "2026-01-01T00:00:00Z"
    install_status: installed
    validation_status: valid
`

func TestParseLockfilePreservesOrder(t *testing.T) {
	lf, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	if len(lf.LockOrder) != 2 || lf.LockOrder[0] != "opamp" || lf.LockOrder[1] != "bandgap" {
		t.Fatalf("unexpected lock order: %v", lf.LockOrder)
	}
	if lf.Libraries["opamp"].Commit != "abc123" {
		t.Fatalf("commit = %q", lf.Libraries["opamp"].Commit)
	}
}

func TestParseLockfileToleratesUnknownTopLevelKey(t *testing.T) {
	_, err := ParseLockfile([]byte(`
library_root: designs/libs
some_future_field: 42
libraries: {}
`))
	if err != nil {
		t.Fatalf("lockfile parsing should tolerate unknown keys, got %v", err)
	}
}

func TestLoadLockfileMissingIsEmptyNotError(t *testing.T) {
	lf, err := LoadLockfile("/nonexistent/path/.ams-compose.lock")
	if err != nil {
		t.Fatalf("expected no error for missing lockfile, got %v", err)
	}
	if len(lf.Libraries) != 0 {
		t.Fatalf("expected empty lockfile, got %d entries", len(lf.Libraries))
	}
}

func TestLockfileMarshalRoundTrips(t *testing.T) {
	lf, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	out, err := lf.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	rt, err := ParseLockfile(out)
	if err != nil {
		t.Fatal(err)
	}
	if rt.Libraries["bandgap"].Commit != "def456" {
		t.Fatalf("commit not preserved: %q", rt.Libraries["bandgap"].Commit)
	}
	if rt.LockOrder[0] != "opamp" {
		t.Fatalf("order not preserved: %v", rt.LockOrder)
	}
}

func TestLockfileEquivalent(t *testing.T) {
	a, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equivalent(b) {
		t.Fatal("expected identical lockfiles to be equivalent")
	}

	entry := b.Libraries["opamp"]
	entry.Commit = "different"
	b.Libraries["opamp"] = entry
	if a.Equivalent(b) {
		t.Fatal("expected differing commit to break equivalence")
	}
}

func TestLockfileEquivalentIgnoresTimestampsAndStatus(t *testing.T) {
	a, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseLockfile([]byte(sampleLock))
	if err != nil {
		t.Fatal(err)
	}
	entry := b.Libraries["opamp"]
	entry.UpdatedAt = "2030-01-01T00:00:00Z"
	entry.ValidationStatus = "stale"
	b.Libraries["opamp"] = entry

	if !a.Equivalent(b) {
		t.Fatal("expected timestamp/status differences to not break equivalence")
	}
}
