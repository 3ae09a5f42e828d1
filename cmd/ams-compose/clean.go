package main

import (
	"flag"

	"github.com/amscompose/ams-compose/internal/amslog"
	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/mirror"
	"github.com/amscompose/ams-compose/internal/orchestrator"
	"github.com/amscompose/ams-compose/internal/report"
)

const cleanShortHelp = `Drop orphaned lockfile entries and unreferenced mirrors`
const cleanLongHelp = `
Removes lockfile entries for libraries no longer in the manifest, and
mirror-cache directories no library references anymore. It never deletes
an extracted library directory from disk; that is left for the user to
remove by hand (or to re-add to the manifest).
`

type cleanCommand struct{}

func (cmd *cleanCommand) Name() string      { return "clean" }
func (cmd *cleanCommand) Args() string      { return "" }
func (cmd *cleanCommand) ShortHelp() string { return cleanShortHelp }
func (cmd *cleanCommand) LongHelp() string  { return cleanLongHelp }

func (cmd *cleanCommand) Register(fs *flag.FlagSet) {}

func (cmd *cleanCommand) Run(ctx *appContext, args []string) int {
	if len(args) > 0 {
		ctx.Err.Printf("ams-compose clean: too many arguments (%d)\n", len(args))
		return exitConfigError
	}

	manifest, err := config.LoadManifest(manifestPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose clean: %s\n", err)
		return exitConfigError
	}
	lock, err := config.LoadLockfile(lockPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose clean: %s\n", err)
		return exitConfigError
	}

	logger := amslog.New(discardWriter{})
	if ctx.Verbose {
		logger = amslog.New(ctx.Err.Writer())
	}
	store, err := mirror.New(mirrorRoot(ctx.ProjectRoot), logger)
	if err != nil {
		ctx.Err.Printf("ams-compose clean: %s\n", err)
		return exitConfigError
	}

	result, err := orchestrator.Clean(store, manifest, lock, ctx.ProjectRoot)
	if err != nil {
		ctx.Err.Printf("ams-compose clean: %s\n", err)
		return exitConfigError
	}

	if err := orchestrator.WriteLockfile(ctx.ProjectRoot, result.Lockfile); err != nil {
		ctx.Err.Printf("ams-compose clean: writing lockfile: %s\n", err)
		return exitConfigError
	}

	for _, name := range result.DroppedLibraries {
		ctx.Out.Printf("dropped %s (no longer in manifest)\n", name)
	}
	for _, url := range result.RemovedMirrors {
		ctx.Out.Printf("removed mirror %s\n", url)
	}
	report.WriteEntries(ctx.Out.Writer(), result.Validation)
	return exitSuccess
}
