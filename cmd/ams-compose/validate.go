package main

import (
	"flag"

	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/orchestrator"
	"github.com/amscompose/ams-compose/internal/report"
)

const validateShortHelp = `Check installed libraries against the lockfile`
const validateLongHelp = `
Recomputes each locked library's directory checksum and compares it against
the lockfile, without mirroring or extracting anything. Reports
valid/modified/missing/error/orphaned per library and exits nonzero if any
library is not valid or orphaned.
`

type validateCommand struct{}

func (cmd *validateCommand) Name() string      { return "validate" }
func (cmd *validateCommand) Args() string      { return "" }
func (cmd *validateCommand) ShortHelp() string { return validateShortHelp }
func (cmd *validateCommand) LongHelp() string  { return validateLongHelp }

func (cmd *validateCommand) Register(fs *flag.FlagSet) {}

func (cmd *validateCommand) Run(ctx *appContext, args []string) int {
	if len(args) > 0 {
		ctx.Err.Printf("ams-compose validate: too many arguments (%d)\n", len(args))
		return exitConfigError
	}

	manifest, err := config.LoadManifest(manifestPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose validate: %s\n", err)
		return exitConfigError
	}
	lock, err := config.LoadLockfile(lockPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose validate: %s\n", err)
		return exitConfigError
	}

	validated := orchestrator.ValidateInstallation(manifest, lock, ctx.ProjectRoot)
	report.WriteEntries(ctx.Out.Writer(), validated)

	for _, entry := range validated {
		switch entry.ValidationStatus {
		case orchestrator.StatusValid, orchestrator.StatusOrphaned:
		default:
			return exitValidationError
		}
	}
	return exitSuccess
}
