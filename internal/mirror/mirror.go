// Package mirror implements the content-addressed clone cache: one full
// working-tree clone per normalized repository URL, reused across every
// library that references it, updated in place on each reference.
//
// Grounded on golang-dep's vcs_repo.go (gitRepo wrapping Masterminds/vcs)
// and vcs_source.go's submodule defense, generalized from "GOPATH source
// cache" to "named mirror cache keyed by repo_hash."
package mirror

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	flock "github.com/theckman/go-flock"

	"github.com/amscompose/ams-compose/internal/amslog"
	"github.com/amscompose/ams-compose/internal/checksum"
	"github.com/amscompose/ams-compose/internal/errs"
)

const (
	fetchTimeout = 60 * time.Second
	cloneTimeout = 10 * time.Minute
)

// Store manages the on-disk mirror cache rooted at Root.
type Store struct {
	Root   string
	Logger *amslog.Logger
}

// New constructs a Store, creating Root if it does not exist.
func New(root string, logger *amslog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating mirror root %s", root)
	}
	if logger == nil {
		logger = amslog.New(os.Stderr)
	}
	return &Store{Root: root, Logger: logger}, nil
}

// Path is a pure function of the normalized URL's hash.
func (s *Store) Path(repoURL string) string {
	return filepath.Join(s.Root, checksum.RepoHash(repoURL))
}

// Exists reports whether a mirror directory for url exists and looks like a
// valid git repository (has a .git directory).
func (s *Store) Exists(repoURL string) bool {
	dir := s.Path(repoURL)
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info != nil
}

// GetState reads the sidecar metadata for url's mirror, if present.
func (s *Store) GetState(repoURL string) (*MirrorState, error) {
	return readState(s.Path(repoURL))
}

// RemoveMirror deletes a mirror directory entirely. Returns false if nothing
// was there to remove.
func (s *Store) RemoveMirror(repoURL string) (bool, error) {
	dir := s.Path(repoURL)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	lock := s.lockFor(repoURL)
	if err := lock.Lock(); err != nil {
		return false, errors.Wrapf(err, "locking mirror %s for removal", repoURL)
	}
	defer lock.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return false, errors.Wrapf(err, "removing mirror %s", dir)
	}
	return true, nil
}

// ListMirrors enumerates every mirror directory under Root with valid
// sidecar state, keyed by the URL recorded in that state.
func (s *Store) ListMirrors() (map[string]MirrorState, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "listing mirror root %s", s.Root)
	}
	out := make(map[string]MirrorState)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st, err := readState(filepath.Join(s.Root, e.Name()))
		if err != nil || st == nil {
			continue
		}
		out[st.RepoURL] = *st
	}
	return out, nil
}

// CleanupInvalid removes every mirror directory that fails basic repository
// or sidecar validation (no .git directory, or unreadable/missing sidecar),
// returning the count removed.
func (s *Store) CleanupInvalid() (int, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return 0, errors.Wrapf(err, "listing mirror root %s", s.Root)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.Root, e.Name())
		valid := true
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			valid = false
		}
		if st, err := readState(dir); err != nil || st == nil {
			valid = false
		}
		if !valid {
			if err := os.RemoveAll(dir); err != nil {
				return removed, errors.Wrapf(err, "removing invalid mirror %s", dir)
			}
			removed++
		}
	}
	return removed, nil
}

// UpdateMirror is the idempotent entry point: it leaves the mirror for url
// checked out at ref, cloning fresh if absent and fast-forwarding or
// fetching as needed if present, per §4.4's update_mirror contract.
func (s *Store) UpdateMirror(ctx context.Context, repoURL, ref string) (*MirrorState, error) {
	if err := validateRepoURL(repoURL); err != nil {
		return nil, err
	}

	lock := s.lockFor(repoURL)
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrapf(err, "locking mirror for %s", repoURL)
	}
	defer lock.Unlock()

	dir := s.Path(repoURL)

	if !s.Exists(repoURL) {
		return s.freshClone(ctx, repoURL, ref, dir)
	}

	st, err := s.updateExisting(ctx, repoURL, ref, dir)
	if err != nil {
		s.Logger.Logfln("mirror %s update failed (%v), falling back to fresh clone", repoURL, err)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, errors.Wrapf(rmErr, "removing corrupt mirror %s before recovery clone", dir)
		}
		return s.freshClone(ctx, repoURL, ref, dir)
	}
	return st, nil
}

func (s *Store) freshClone(ctx context.Context, repoURL, ref, dir string) (*MirrorState, error) {
	tmp, err := os.MkdirTemp(s.Root, "clone-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating temp clone directory")
	}
	defer os.RemoveAll(tmp)

	repo, err := vcs.NewGitRepo(repoURL, tmp)
	if err != nil {
		return nil, errors.Wrapf(err, "initializing git repo for %s", repoURL)
	}

	if err := s.runTimed(ctx, "clone", cloneTimeout, repo, "git", "clone", "--recursive", repoURL, tmp); err != nil {
		return nil, errors.Wrapf(err, "cloning %s", repoURL)
	}

	// Re-anchor the repo handle at tmp now that it exists on disk.
	repo, err = vcs.NewGitRepo(repoURL, tmp)
	if err != nil {
		return nil, errors.Wrapf(err, "reopening cloned repo for %s", repoURL)
	}

	commit, err := s.checkoutRef(ctx, repo, ref)
	if err != nil {
		return nil, err
	}

	if err := s.updateSubmodules(ctx, repo); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp, dir); err != nil {
		return nil, errors.Wrapf(err, "moving clone into place at %s", dir)
	}

	now := nowStamp()
	st := &MirrorState{
		RepoURL:        repoURL,
		RepoHash:       checksum.RepoHash(repoURL),
		CurrentRef:     ref,
		ResolvedCommit: commit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := writeState(dir, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) updateExisting(ctx context.Context, repoURL, ref, dir string) (*MirrorState, error) {
	repo, err := vcs.NewGitRepo(repoURL, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "opening existing mirror %s", dir)
	}

	prior, _ := readState(dir)

	// Try a local resolution first (fast-forward checkout without a
	// network round trip); only fetch if that fails.
	commit, checkoutErr := s.checkoutRef(ctx, repo, ref)
	if checkoutErr != nil {
		if err := s.runTimed(ctx, "fetch", fetchTimeout, repo, "git", "fetch", "--tags", "origin"); err != nil {
			return nil, errors.Wrapf(err, "fetching %s", repoURL)
		}
		commit, checkoutErr = s.checkoutRef(ctx, repo, ref)
		if checkoutErr != nil {
			return nil, &errs.RefNotFoundError{URL: repoURL, Ref: ref}
		}
	}

	if err := s.updateSubmodules(ctx, repo); err != nil {
		return nil, err
	}

	createdAt := nowStamp()
	if prior != nil && prior.CreatedAt != "" {
		createdAt = prior.CreatedAt
	}
	st := &MirrorState{
		RepoURL:        repoURL,
		RepoHash:       checksum.RepoHash(repoURL),
		CurrentRef:     ref,
		ResolvedCommit: commit,
		CreatedAt:      createdAt,
		UpdatedAt:      nowStamp(),
	}
	if err := writeState(dir, st); err != nil {
		return nil, err
	}
	return st, nil
}

// checkoutRef checks out ref in repo and returns the resolved 40-char commit
// hash, or an error if ref cannot be resolved locally.
func (s *Store) checkoutRef(ctx context.Context, repo *vcs.GitRepo, ref string) (string, error) {
	if !repo.IsReference(ref) {
		return "", errors.Errorf("ref %q not resolvable locally", ref)
	}
	if err := s.runTimed(ctx, "checkout", fetchTimeout, repo, "git", "checkout", ref); err != nil {
		return "", err
	}
	out, err := repo.RunFromDir("git", "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "resolving checked out commit")
	}
	return trimHex(out), nil
}

// updateSubmodules recurses into submodules after checkout and defensively
// cleans derelict submodule directories, following golang-dep's
// defendAgainstSubmodules in vcs_repo.go almost verbatim — IC libraries
// commonly vendor shared cells via submodules.
func (s *Store) updateSubmodules(ctx context.Context, repo *vcs.GitRepo) error {
	if err := s.runTimed(ctx, "submodule-update", fetchTimeout, repo, "git", "submodule", "update", "--init", "--recursive"); err != nil {
		return errors.Wrap(err, "updating submodules")
	}
	if err := s.runTimed(ctx, "submodule-clean", fetchTimeout, repo, "git", "submodule", "foreach", "--recursive", "git", "clean", "-x", "-d", "-f", "-f"); err != nil {
		return errors.Wrap(err, "cleaning submodules")
	}
	return nil
}

// runTimed runs a git subprocess inside repo's directory under a context
// composed from ctx and a per-operation timeout (constext.Cons), killing
// the process if either fires first.
func (s *Store) runTimed(ctx context.Context, op string, timeout time.Duration, repo *vcs.GitRepo, name string, args ...string) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	combined, cancelCombined := constext.Cons(ctx, timeoutCtx)
	defer cancelCombined()

	cmd := repo.CmdFromDir(name, args...)
	mc := newMonitoredCmd(combined, op, cmd, timeout)
	_, err := mc.combinedOutput()
	return err
}

func (s *Store) lockFor(repoURL string) *flock.Flock {
	return flock.NewFlock(filepath.Join(s.Root, checksum.RepoHash(repoURL)+".lock"))
}

func trimHex(out []byte) string {
	s := string(out)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
