package main

import (
	"flag"

	"github.com/amscompose/ams-compose/internal/config"
	"github.com/amscompose/ams-compose/internal/orchestrator"
	"github.com/amscompose/ams-compose/internal/report"
)

const listShortHelp = `List the libraries recorded in the lockfile`
const listLongHelp = `
Prints one row per locked library: commit, ref, detected license, and
status. Reads the lockfile as-is; it does not touch the filesystem beyond
that or contact any remote, so it never changes install/validation status.
`

type listCommand struct{}

func (cmd *listCommand) Name() string      { return "list" }
func (cmd *listCommand) Args() string      { return "" }
func (cmd *listCommand) ShortHelp() string { return listShortHelp }
func (cmd *listCommand) LongHelp() string  { return listLongHelp }

func (cmd *listCommand) Register(fs *flag.FlagSet) {}

func (cmd *listCommand) Run(ctx *appContext, args []string) int {
	if len(args) > 0 {
		ctx.Err.Printf("ams-compose list: too many arguments (%d)\n", len(args))
		return exitConfigError
	}

	lock, err := config.LoadLockfile(lockPath(ctx.ProjectRoot))
	if err != nil {
		ctx.Err.Printf("ams-compose list: %s\n", err)
		return exitConfigError
	}

	report.WriteEntries(ctx.Out.Writer(), orchestrator.ListInstalled(lock))
	return exitSuccess
}
