package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinTierAlwaysApplies(t *testing.T) {
	f := New(Options{})
	if !f.Ignore(".git", ".git", true) {
		t.Fatal("expected .git to be ignored by the built-in tier")
	}
	if !f.Ignore("node_modules", "node_modules", true) {
		t.Fatal("expected node_modules to be ignored")
	}
	if f.Ignore("schematic.sch", "schematic.sch", false) {
		t.Fatal("did not expect an ordinary file to be ignored")
	}
}

func TestProjectTierFromFile(t *testing.T) {
	dir := t.TempDir()
	ignorePath := filepath.Join(dir, ".ams-compose-ignore")
	if err := os.WriteFile(ignorePath, []byte("*.bak\nbuild/\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := New(Options{ProjectIgnoreFile: ignorePath})

	if !f.Ignore("foo.bak", "foo.bak", false) {
		t.Fatal("expected *.bak to be ignored by project tier")
	}
	if !f.Ignore("build", "build", true) {
		t.Fatal("expected build/ to be ignored by project tier")
	}
	if f.Ignore("foo.txt", "foo.txt", false) {
		t.Fatal("did not expect foo.txt to be ignored")
	}
}

func TestLibraryTier(t *testing.T) {
	f := New(Options{LibraryPatterns: []string{"*.log"}})
	if !f.Ignore("run.log", "run.log", false) {
		t.Fatal("expected *.log to be ignored by library tier")
	}
}

func TestMissingProjectIgnoreFileDegradesGracefully(t *testing.T) {
	f := New(Options{ProjectIgnoreFile: filepath.Join(t.TempDir(), "does-not-exist")})
	if f.Ignore("anything.txt", "anything.txt", false) {
		t.Fatal("expected no ignore rules to apply when the project ignore file is absent")
	}
}

func TestLicensePreservationOverridesIgnoreTiers(t *testing.T) {
	f := New(Options{
		LibraryPatterns:      []string{"LICENSE"},
		PreserveLicenseNames: []string{"LICENSE"},
	})
	if f.Ignore("LICENSE", "LICENSE", false) {
		t.Fatal("expected license preservation to override an explicit ignore pattern")
	}
}
