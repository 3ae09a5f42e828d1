// Package orchestrator implements the planner/executor that ties the mirror
// cache and extractor together into install/validate/clean/list operations,
// writing the lockfile exactly once per invocation.
//
// Grounded on golang-dep's top-level Project/solve flow (plan a set of
// changes against the manifest and existing lock, execute, then write
// through txn_writer.go's SafeWriter) generalized from "resolve a dependency
// graph" to "mirror + extract a flat set of named imports."
package orchestrator

import (
	"os"

	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/pathsafe"
)

// Action is the planning decision for a single library.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUpdate    Action = "update"
	ActionReinstall Action = "reinstall"
	ActionSkip      Action = "skip"
	// ActionCheckRemote marks a step that looks up to date locally but must
	// still touch the network (--check-remote-updates) to find out whether
	// its ref has moved upstream; the executor resolves it into either
	// ActionUpdate or ActionSkip once the mirror has been refreshed.
	ActionCheckRemote Action = "check-remote"
)

// installStatus is the value recorded into LockEntry.InstallStatus for a
// given Action, per §4.7's install_status vocabulary.
var installStatus = map[Action]string{
	ActionInstall:   "installed",
	ActionUpdate:    "updated",
	ActionReinstall: "reinstalled",
	ActionSkip:      "up-to-date",
	// ActionCheckRemote never reaches installStatus directly: the executor
	// resolves it to ActionUpdate or ActionSkip first.
}

// step is one planned unit of work.
type step struct {
	Name   string
	Spec   config.ImportSpec
	Action Action
	// Prior is the existing lock entry, if any, for a Skip/Update decision
	// to carry forward unchanged fields (e.g. InstalledAt).
	Prior *config.LockEntry
}

// PlanOptions configures install_all's planning pass.
type PlanOptions struct {
	// Names restricts planning to this subset of the manifest, in manifest
	// order. Empty means "every imported library."
	Names []string
	Force bool
	// CheckRemote, when true, has the executor re-resolve a library's ref
	// against the upstream mirror even when it would otherwise be Skip, and
	// promote it to Update if the resolved commit has moved past lock.commit.
	CheckRemote bool
}

// plan builds the (library, action) list in manifest order, per spec.md
// §4.7's rules, applied top to bottom; the first matching rule wins.
func plan(manifest *config.Manifest, lock *config.Lockfile, projectRoot string, opts PlanOptions) []step {
	names := manifest.ImportOrder
	if len(opts.Names) > 0 {
		wanted := make(map[string]bool, len(opts.Names))
		for _, n := range opts.Names {
			wanted[n] = true
		}
		names = nil
		for _, n := range manifest.ImportOrder {
			if wanted[n] {
				names = append(names, n)
			}
		}
	}
	libraryRoot := manifest.LibraryRoot
	if libraryRoot == "" {
		libraryRoot = config.DefaultLibraryRoot
	}

	var steps []step
	for _, name := range names {
		spec, ok := manifest.Imports[name]
		if !ok {
			continue
		}
		var prior *config.LockEntry
		if e, ok := lock.Libraries[name]; ok {
			entry := e
			prior = &entry
		}
		steps = append(steps, step{
			Name:   name,
			Spec:   spec,
			Action: decide(name, spec, libraryRoot, projectRoot, prior, opts),
			Prior:  prior,
		})
	}
	return steps
}

func decide(name string, spec config.ImportSpec, libraryRoot, projectRoot string, prior *config.LockEntry, opts PlanOptions) Action {
	if opts.Force {
		return ActionReinstall
	}

	if prior == nil {
		return ActionInstall
	}

	if spec.Repo != prior.Repo || spec.Ref != prior.Ref || spec.SourcePath != prior.SourcePath {
		return ActionReinstall
	}

	if !destinationExists(projectRoot, libraryRoot, name, spec.LocalPath) {
		return ActionReinstall
	}

	if opts.CheckRemote {
		return ActionCheckRemote
	}

	return ActionSkip
}

func destinationExists(projectRoot, libraryRoot, name, localPath string) bool {
	dest, err := pathsafe.Resolve(projectRoot, libraryRoot, name, localPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(dest)
	return err == nil
}
