package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/amscompose/ams-compose/internal/amslog"
	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/mirror"
	"github.com/amscompose/ams-compose/internal/orchestrator"
	"github.com/amscompose/ams-compose/internal/report"
)

const installShortHelp = `Mirror, extract, and lock the libraries declared in ams-compose.yaml`
const installLongHelp = `
Installs every library in ams-compose.yaml, or only the named ones if any
are given. A library already at its locked commit is left alone unless
-force requires a full reinstall or -check-remote-updates asks the tool to
look upstream for a moved ref. The resulting lockfile is written once, after
every library in the batch has been attempted; a per-library failure does
not stop the rest of the batch, but the command exits nonzero if any
library failed.
`

type installCommand struct {
	force              bool
	checkRemoteUpdates bool
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "[name...]" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.force, "force", false, "reinstall every selected library regardless of lock state")
	fs.BoolVar(&cmd.checkRemoteUpdates, "check-remote-updates", false, "check upstream for a moved ref even when the lock looks current")
}

func (cmd *installCommand) Run(ctx *appContext, args []string) int {
	manifest, err := config.LoadManifest(manifestPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose install: %s\n", err)
		return exitConfigError
	}
	lock, err := config.LoadLockfile(lockPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose install: %s\n", err)
		return exitConfigError
	}

	logger := amslog.New(discardWriter{})
	if ctx.Verbose {
		logger = amslog.New(ctx.Err.Writer())
	}
	store, err := mirror.New(mirrorRoot(ctx.ProjectRoot), logger)
	if err != nil {
		ctx.Err.Printf("ams-compose install: %s\n", err)
		return exitConfigError
	}

	opts := orchestrator.InstallOptions{
		PlanOptions: orchestrator.PlanOptions{
			Names:       args,
			Force:       cmd.force,
			CheckRemote: cmd.checkRemoteUpdates,
		},
		ProjectRoot:       ctx.ProjectRoot,
		ProjectIgnoreFile: filepath.Join(ctx.ProjectRoot, config.ProjectIgnoreFileName),
	}

	result, installErr := orchestrator.InstallAll(context.Background(), store, manifest, lock, opts)
	if result != nil {
		if err := orchestrator.WriteLockfile(ctx.ProjectRoot, result.Lockfile); err != nil {
			ctx.Err.Printf("ams-compose install: writing lockfile: %s\n", err)
			return exitConfigError
		}
		merged := make(map[string]config.LockEntry, len(result.Changed)+len(result.UpToDate))
		for n, e := range result.Changed {
			merged[n] = e
		}
		for n, e := range result.UpToDate {
			merged[n] = e
		}
		report.WriteEntries(ctx.Out.Writer(), merged)
	}

	if installErr != nil {
		ctx.Err.Printf("ams-compose install: %s\n", installErr)
		return exitInstallError
	}
	return exitSuccess
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
