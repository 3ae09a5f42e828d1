package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// newFixtureRepo is the same throwaway git-fixture pattern used by
// internal/mirror and internal/orchestrator's tests, reused here to drive
// the CLI end-to-end through a real (if tiny) clone.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", "main")
	if err := os.MkdirAll(filepath.Join(dir, "cells", "opamp"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cells", "opamp", "opamp.sch"), []byte("* schematic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")

	t.Setenv("AMS_COMPOSE_TEST_MODE", "true")
	return "file://" + dir
}

func writeManifest(t *testing.T, projectRoot, url string) {
	t.Helper()
	content := "library_root: designs/libs\n" +
		"imports:\n" +
		"  opamp:\n" +
		"    repo: " + url + "\n" +
		"    ref: v1.0.0\n" +
		"    source_path: cells/opamp\n" +
		"    checkin: true\n"
	if err := os.WriteFile(filepath.Join(projectRoot, "ams-compose.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunInitScaffoldsManifest(t *testing.T) {
	projectRoot := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run([]string{"ams-compose", "init"}, projectRoot, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("expected exitSuccess, got %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(projectRoot, "ams-compose.yaml")); err != nil {
		t.Fatalf("expected a manifest to be written: %v", err)
	}

	// a second init without -force must fail
	stdout.Reset()
	stderr.Reset()
	code = run([]string{"ams-compose", "init"}, projectRoot, &stdout, &stderr)
	if code == exitSuccess {
		t.Fatal("expected init to refuse to overwrite an existing manifest without -force")
	}
}

func TestRunInstallListValidateClean(t *testing.T) {
	url := newFixtureRepo(t)
	projectRoot := t.TempDir()
	writeManifest(t, projectRoot, url)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"ams-compose", "install"}, projectRoot, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("install failed (%d): %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(projectRoot, "designs", "libs", "opamp", "opamp.sch")); err != nil {
		t.Fatalf("expected extracted file on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectRoot, ".ams-compose.lock")); err != nil {
		t.Fatalf("expected a lockfile to be written: %v", err)
	}

	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"ams-compose", "list"}, projectRoot, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("list failed (%d): %s", code, stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("opamp")) {
		t.Fatalf("expected opamp in list output, got %q", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"ams-compose", "validate"}, projectRoot, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("validate failed (%d): %s", code, stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("status:valid")) {
		t.Fatalf("expected a valid status, got %q", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"ams-compose", "clean"}, projectRoot, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("clean failed (%d): %s", code, stderr.String())
	}
}

func TestRunValidateFailsOnModifiedLibrary(t *testing.T) {
	url := newFixtureRepo(t)
	projectRoot := t.TempDir()
	writeManifest(t, projectRoot, url)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"ams-compose", "install"}, projectRoot, &stdout, &stderr); code != exitSuccess {
		t.Fatalf("install failed (%d): %s", code, stderr.String())
	}

	tampered := filepath.Join(projectRoot, "designs", "libs", "opamp", "opamp.sch")
	if err := os.WriteFile(tampered, []byte("* tampered\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout.Reset()
	stderr.Reset()
	code := run([]string{"ams-compose", "validate"}, projectRoot, &stdout, &stderr)
	if code != exitValidationError {
		t.Fatalf("expected exitValidationError for a tampered library, got %d: %s", code, stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"ams-compose", "bogus"}, t.TempDir(), &stdout, &stderr)
	if code != exitConfigError {
		t.Fatalf("expected exitConfigError for an unknown command, got %d", code)
	}
}
