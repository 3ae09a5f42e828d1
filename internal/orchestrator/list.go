package orchestrator

import "github.com/amscompose/ams-compose/internal/config"

// ListInstalled returns the lockfile's library map unchanged, per
// spec.md §4.7 ("returns the lockfile map unchanged").
func ListInstalled(lock *config.Lockfile) map[string]config.LockEntry {
	return lock.Libraries
}
