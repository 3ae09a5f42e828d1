package orchestrator

import (
	"os"

	"github.com/amscompose/ams-compose/internal/checksum"
	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/pathsafe"
)

// Validation statuses, per spec.md §4.7.
const (
	StatusValid    = "valid"
	StatusModified = "modified"
	StatusMissing  = "missing"
	StatusError    = "error"
	StatusOrphaned = "orphaned"
)

// ValidateInstallation recomputes every lockfile entry's checksum against
// its current on-disk contents and reports a status per library. It never
// mutates manifest, lockfile, or the filesystem.
func ValidateInstallation(manifest *config.Manifest, lock *config.Lockfile, projectRoot string) map[string]config.LockEntry {
	libraryRoot := lock.LibraryRoot
	if libraryRoot == "" {
		libraryRoot = manifest.LibraryRoot
	}
	if libraryRoot == "" {
		libraryRoot = config.DefaultLibraryRoot
	}

	out := make(map[string]config.LockEntry, len(lock.Libraries))
	for name, entry := range lock.Libraries {
		out[name] = validateOne(manifest, name, entry, projectRoot, libraryRoot)
	}
	return out
}

func validateOne(manifest *config.Manifest, name string, entry config.LockEntry, projectRoot, libraryRoot string) config.LockEntry {
	if _, ok := manifest.Imports[name]; !ok {
		entry.ValidationStatus = StatusOrphaned
		return entry
	}

	dest, err := pathsafe.Resolve(projectRoot, libraryRoot, name, entry.LocalPath)
	if err != nil {
		entry.ValidationStatus = StatusError
		return entry
	}

	if _, err := os.Stat(dest); os.IsNotExist(err) {
		entry.ValidationStatus = StatusMissing
		return entry
	} else if err != nil {
		entry.ValidationStatus = StatusError
		return entry
	}

	sum := checksum.DirectoryChecksum(dest)
	if sum == "" {
		entry.ValidationStatus = StatusError
		return entry
	}

	if sum != entry.Checksum {
		entry.ValidationStatus = StatusModified
		return entry
	}

	entry.ValidationStatus = StatusValid
	return entry
}
