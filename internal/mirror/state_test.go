package mirror

import "testing"

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if st, err := readState(dir); err != nil || st != nil {
		t.Fatalf("expected nil state for a directory with no sidecar, got %v, %v", st, err)
	}

	want := &MirrorState{
		RepoURL:        "https://example.com/libs.git",
		RepoHash:       "0123456789abcdef",
		CurrentRef:     "main",
		ResolvedCommit: "abc123",
		CreatedAt:      "2026-01-01T00:00:00Z",
		UpdatedAt:      "2026-01-01T00:00:00Z",
	}
	if err := writeState(dir, want); err != nil {
		t.Fatal(err)
	}

	got, err := readState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
