package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amscompose/ams-compose/internal/checksum"
	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/errs"
	"github.com/amscompose/ams-compose/internal/extract"
	"github.com/amscompose/ams-compose/internal/license"
	"github.com/amscompose/ams-compose/internal/mirror"
)

// maxConcurrentInstalls bounds the worker pool install_all fans out over.
// Libraries that share a repository still run one at a time regardless of
// this limit: InstallAll holds a per-URL lock across each library's mirror
// update and extraction.
const maxConcurrentInstalls = 4

// InstallOptions configures install_all.
type InstallOptions struct {
	PlanOptions
	ProjectRoot       string
	ProjectIgnoreFile string
}

// InstallResult is install_all's return value: every attempted library,
// decorated with its outcome, split into changed vs. up-to-date per §4.7.
type InstallResult struct {
	Changed  map[string]config.LockEntry
	UpToDate map[string]config.LockEntry
	Lockfile *config.Lockfile
}

// InstallAll runs the planner, then fans out mirror+extract per non-Skip
// step over a bounded worker pool, serialized per normalized repo URL, and
// finally builds the resulting lockfile, which the caller writes once with
// WriteLockfile. Per-library failures are collected rather than aborting
// the batch; if any occurred, the returned error is an
// *errs.InstallationError wrapping all of them, but the returned lockfile
// still reflects every successful entry.
func InstallAll(ctx context.Context, store *mirror.Store, manifest *config.Manifest, lock *config.Lockfile, opts InstallOptions) (*InstallResult, error) {
	libraryRoot := manifest.LibraryRoot
	if libraryRoot == "" {
		libraryRoot = config.DefaultLibraryRoot
	}

	steps := plan(manifest, lock, opts.ProjectRoot, opts.PlanOptions)

	result := &InstallResult{
		Changed:  map[string]config.LockEntry{},
		UpToDate: map[string]config.LockEntry{},
		Lockfile: &config.Lockfile{LibraryRoot: libraryRoot, Libraries: map[string]config.LockEntry{}},
	}

	var (
		mu       sync.Mutex
		failures []errs.LibraryFailure
	)

	// One mutex per normalized repo URL, created before the fan-out so the
	// workers only read the map.
	urlLocks := make(map[string]*sync.Mutex)
	for _, st := range steps {
		key := checksum.NormalizeRepoURL(st.Spec.Repo)
		if urlLocks[key] == nil {
			urlLocks[key] = &sync.Mutex{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentInstalls)

	for _, st := range steps {
		st := st
		if st.Action == ActionSkip {
			entry := *st.Prior
			entry.InstallStatus = installStatus[ActionSkip]
			mu.Lock()
			result.UpToDate[st.Name] = entry
			result.Lockfile.Libraries[st.Name] = entry
			result.Lockfile.LockOrder = append(result.Lockfile.LockOrder, st.Name)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			urlLock := urlLocks[checksum.NormalizeRepoURL(st.Spec.Repo)]
			urlLock.Lock()
			entry, resolved, err := installOne(gctx, store, libraryRoot, opts.ProjectRoot, opts.ProjectIgnoreFile, st)
			urlLock.Unlock()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, errs.LibraryFailure{Library: st.Name, Err: err})
				return nil // batch continues; error aggregated separately
			}
			if resolved == ActionSkip {
				result.UpToDate[st.Name] = *entry
			} else {
				result.Changed[st.Name] = *entry
			}
			result.Lockfile.Libraries[st.Name] = *entry
			result.Lockfile.LockOrder = append(result.Lockfile.LockOrder, st.Name)
			return nil
		})
	}

	_ = g.Wait() // never returns non-nil: per-library errors are aggregated above

	result.Lockfile.LockOrder = manifestOrderSubset(manifest.ImportOrder, result.Lockfile.Libraries)

	if len(failures) > 0 {
		return result, &errs.InstallationError{Failures: failures}
	}
	return result, nil
}

func manifestOrderSubset(order []string, present map[string]config.LockEntry) []string {
	var out []string
	for _, n := range order {
		if _, ok := present[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// installOne executes one plan step, returning both the resulting lock
// entry and the action it actually resolved to — only ActionCheckRemote
// steps can resolve to something other than their planned action, once the
// mirror refresh reveals whether the upstream ref actually moved.
func installOne(ctx context.Context, store *mirror.Store, libraryRoot, projectRoot, ignoreFile string, st step) (*config.LockEntry, Action, error) {
	state, err := store.UpdateMirror(ctx, st.Spec.Repo, st.Spec.Ref)
	if err != nil {
		return nil, st.Action, err
	}

	resolved := st.Action
	if st.Action == ActionCheckRemote {
		if st.Prior != nil && state.ResolvedCommit == st.Prior.Commit {
			entry := *st.Prior
			entry.InstallStatus = installStatus[ActionSkip]
			return &entry, ActionSkip, nil
		}
		resolved = ActionUpdate
	}

	res, err := extract.Extract(extract.Params{
		LibraryName:       st.Name,
		Spec:              st.Spec,
		MirrorPath:        store.Path(st.Spec.Repo),
		ProjectRoot:       projectRoot,
		LibraryRoot:       libraryRoot,
		ResolvedCommit:    state.ResolvedCommit,
		ProjectIgnoreFile: ignoreFile,
	})
	if err != nil {
		return nil, resolved, err
	}

	now := config.Timestamp(time.Now())
	installedAt := now
	if st.Prior != nil && st.Prior.InstalledAt != "" {
		installedAt = st.Prior.InstalledAt
	}

	entry := config.LockEntry{
		ImportSpec:       st.Spec,
		Commit:           state.ResolvedCommit,
		Checksum:         res.Checksum,
		InstalledAt:      installedAt,
		UpdatedAt:        now,
		DetectedLicense:  res.DetectedLicense,
		LicenseFile:      res.LicenseFile,
		InstallStatus:    installStatus[resolved],
		ValidationStatus: "valid",
	}
	if st.Prior != nil && st.Prior.DetectedLicense != "" && st.Prior.DetectedLicense != res.DetectedLicense {
		entry.LicenseChange = st.Prior.DetectedLicense + " -> " + res.DetectedLicense
	}
	entry.LicenseWarning = license.CompatibilityWarning(license.Type(res.DetectedLicense))

	return &entry, resolved, nil
}
