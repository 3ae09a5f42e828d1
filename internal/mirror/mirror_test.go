package mirror

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/amscompose/ams-compose/internal/amslog"
)

// newFixtureRepo creates a throwaway git repository on disk with a main
// branch and a tag, returning its file:// URL.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
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
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	run("init", "-b", "main")
	if err := os.MkdirAll(filepath.Join(dir, "cells"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cells", "opamp.sch"), []byte("* schematic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")

	t.Setenv("AMS_COMPOSE_TEST_MODE", "true")
	return "file://" + dir
}

func TestUpdateMirrorFreshClone(t *testing.T) {
	url := newFixtureRepo(t)
	root := t.TempDir()
	store, err := New(root, amslog.New(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}

	st, err := store.UpdateMirror(context.Background(), url, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(st.ResolvedCommit) != 40 {
		t.Fatalf("resolved commit = %q, want 40 hex chars", st.ResolvedCommit)
	}
	if !store.Exists(url) {
		t.Fatal("expected mirror to exist after clone")
	}
}

func TestUpdateMirrorIdempotentOnSecondCall(t *testing.T) {
	url := newFixtureRepo(t)
	root := t.TempDir()
	store, err := New(root, amslog.New(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.UpdateMirror(context.Background(), url, "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.UpdateMirror(context.Background(), url, "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if first.ResolvedCommit != second.ResolvedCommit {
		t.Fatalf("resolved commit changed across idempotent calls: %s != %s", first.ResolvedCommit, second.ResolvedCommit)
	}
}

func TestUpdateMirrorRejectsInvalidURL(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, amslog.New(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.UpdateMirror(context.Background(), "https://example.com/libs.git; rm -rf /", "main")
	if err == nil {
		t.Fatal("expected invalid URL to be rejected before any I/O")
	}
}

func TestUpdateMirrorUnknownRefFails(t *testing.T) {
	url := newFixtureRepo(t)
	root := t.TempDir()
	store, err := New(root, amslog.New(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateMirror(context.Background(), url, "does-not-exist"); err == nil {
		t.Fatal("expected an unresolvable ref to fail")
	}
}

func TestListAndRemoveMirror(t *testing.T) {
	url := newFixtureRepo(t)
	root := t.TempDir()
	store, err := New(root, amslog.New(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateMirror(context.Background(), url, "main"); err != nil {
		t.Fatal(err)
	}

	mirrors, err := store.ListMirrors()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mirrors[url]; !ok {
		t.Fatalf("expected %s in mirror list, got %v", url, mirrors)
	}

	removed, err := store.RemoveMirror(url)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("expected RemoveMirror to report removal")
	}
	if store.Exists(url) {
		t.Fatal("expected mirror to be gone after removal")
	}
}
