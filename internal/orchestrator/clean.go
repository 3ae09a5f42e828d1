package orchestrator

import (
	"github.com/amscompose/ams-compose/internal/checksum"
	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/mirror"
)

// CleanResult reports what clean() removed, plus the post-cleanup
// validation snapshot per spec.md §4.7.
type CleanResult struct {
	RemovedMirrors   []string
	DroppedLibraries []string
	Lockfile         *config.Lockfile
	Validation       map[string]config.LockEntry
}

// Clean removes mirrors no longer referenced by the lockfile, drops
// lockfile entries whose library is no longer in the manifest, and returns
// the post-cleanup validation snapshot. The caller is responsible for
// persisting the returned lockfile.
func Clean(store *mirror.Store, manifest *config.Manifest, lock *config.Lockfile, projectRoot string) (*CleanResult, error) {
	result := &CleanResult{Lockfile: &config.Lockfile{LibraryRoot: lock.LibraryRoot, Libraries: map[string]config.LockEntry{}}}

	referenced := make(map[string]bool, len(lock.Libraries))
	for name, entry := range lock.Libraries {
		if _, ok := manifest.Imports[name]; !ok {
			result.DroppedLibraries = append(result.DroppedLibraries, name)
			continue
		}
		referenced[checksum.NormalizeRepoURL(entry.Repo)] = true
		result.Lockfile.Libraries[name] = entry
		result.Lockfile.LockOrder = append(result.Lockfile.LockOrder, name)
	}
	result.Lockfile.LockOrder = manifestOrderSubset(manifest.ImportOrder, result.Lockfile.Libraries)

	mirrors, err := store.ListMirrors()
	if err != nil {
		return nil, err
	}
	for url := range mirrors {
		if referenced[checksum.NormalizeRepoURL(url)] {
			continue
		}
		if removed, err := store.RemoveMirror(url); err != nil {
			return nil, err
		} else if removed {
			result.RemovedMirrors = append(result.RemovedMirrors, url)
		}
	}

	result.Validation = ValidateInstallation(manifest, result.Lockfile, projectRoot)
	return result, nil
}
