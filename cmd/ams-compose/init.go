package main

import (
	"flag"
	"os"

	"github.com/amscompose/ams-compose/internal/config"
)

const initShortHelp = `Scaffold a new ams-compose.yaml manifest`
const initLongHelp = `
Writes an empty manifest at the project root, with library_root set to its
default (designs/libs) unless -library-root overrides it. Fails if a
manifest already exists, unless -force is given.
`

type initCommand struct {
	libraryRoot string
	force       bool
}

func (cmd *initCommand) Name() string      { return "init" }
func (cmd *initCommand) Args() string      { return "" }
func (cmd *initCommand) ShortHelp() string { return initShortHelp }
func (cmd *initCommand) LongHelp() string  { return initLongHelp }

func (cmd *initCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.libraryRoot, "library-root", "", "directory imported libraries are extracted under (default: designs/libs)")
	fs.BoolVar(&cmd.force, "force", false, "overwrite an existing manifest")
}

func (cmd *initCommand) Run(ctx *appContext, args []string) int {
	if len(args) > 0 {
		ctx.Err.Printf("ams-compose init: too many arguments (%d)\n", len(args))
		return exitConfigError
	}

	path := manifestPath(ctx.ProjectRoot)
	if _, err := os.Stat(path); err == nil && !cmd.force {
		ctx.Err.Printf("ams-compose init: %s already exists (use -force to overwrite)\n", path)
		return exitConfigError
	} else if err != nil && !os.IsNotExist(err) {
		ctx.Err.Printf("ams-compose init: %s\n", err)
		return exitConfigError
	}

	m := &config.Manifest{
		LibraryRoot: cmd.libraryRoot,
		Imports:     map[string]config.ImportSpec{},
	}
	if m.LibraryRoot == "" {
		m.LibraryRoot = config.DefaultLibraryRoot
	}

	data, err := m.Marshal()
	if err != nil {
		ctx.Err.Printf("ams-compose init: %s\n", err)
		return exitConfigError
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		ctx.Err.Printf("ams-compose init: writing %s: %s\n", path, err)
		return exitConfigError
	}

	ctx.Out.Printf("wrote %s\n", path)
	return exitSuccess
}
