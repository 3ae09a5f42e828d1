// Command ams-compose mirrors, extracts, and tracks analog/mixed-signal IC
// design libraries declared in a project's ams-compose.yaml manifest.
//
// Grounded on golang-dep/cmd/dep's main.go: a testable run function taking
// the process's args, working directory and std streams, a small command
// interface (Name/Args/Register/Run), and a single dispatch loop with
// per-command flag sets.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/amscompose/ams-compose/internal/config"
)

// Exit codes, per spec.md §6.
const (
	exitSuccess         = 0
	exitConfigError     = 1
	exitInstallError    = 2
	exitValidationError = 3
)

type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Run(*appContext, []string) int
}

// appContext bundles the inputs a command needs, mirroring golang-dep's
// *dep.Ctx but scoped to this tool's simpler surface (no GOPATH).
type appContext struct {
	ProjectRoot string
	Out, Err    *log.Logger
	Verbose     bool
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory:", err)
		os.Exit(exitConfigError)
	}
	os.Exit(run(os.Args, wd, os.Stdout, os.Stderr))
}

func run(args []string, workingDir string, stdout, stderr io.Writer) int {
	commands := []command{
		&initCommand{},
		&installCommand{},
		&listCommand{},
		&validateCommand{},
		&cleanCommand{},
	}

	outLogger := log.New(stdout, "", 0)
	errLogger := log.New(stderr, "", 0)

	usage := func() {
		errLogger.Println("ams-compose manages analog/mixed-signal IC design library imports")
		errLogger.Println()
		errLogger.Println("Usage: ams-compose <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		w := tabwriter.NewWriter(stderr, 0, 4, 2, ' ', 0)
		for _, c := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", c.Name(), c.ShortHelp())
		}
		w.Flush()
	}

	cmdName, printHelp, exit := parseArgs(args)
	if exit {
		usage()
		return exitConfigError
	}

	for _, c := range commands {
		if c.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(stderr)
		verbose := fs.Bool("v", false, "enable verbose logging")
		c.Register(fs)
		resetUsage(errLogger, fs, cmdName, c.Args(), c.LongHelp())

		if printHelp {
			fs.Usage()
			return exitConfigError
		}
		if err := fs.Parse(args[2:]); err != nil {
			return exitConfigError
		}

		appCtx := &appContext{ProjectRoot: workingDir, Out: outLogger, Err: errLogger, Verbose: *verbose}
		return c.Run(appCtx, fs.Args())
	}

	errLogger.Printf("ams-compose: %s: no such command\n", cmdName)
	usage()
	return exitConfigError
}

func resetUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		defValue := f.DefValue
		if defValue == "" {
			defValue = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, defValue)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: ams-compose %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		if hasFlags {
			logger.Println()
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}

func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	isHelpArg := func() bool {
		return strings.Contains(strings.ToLower(args[1]), "help") || strings.ToLower(args[1]) == "-h"
	}
	switch len(args) {
	case 0, 1:
		exit = true
	case 2:
		if isHelpArg() {
			exit = true
		}
		cmdName = args[1]
	default:
		if isHelpArg() {
			cmdName = args[2]
			printCmdUsage = true
		} else {
			cmdName = args[1]
		}
	}
	return cmdName, printCmdUsage, exit
}

func manifestPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.ManifestName)
}

func lockPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.LockName)
}

// mirrorRoot is where the content-addressed mirror cache lives. It is not
// part of the manifest/lockfile schema, so unlike those two it has no
// config.*Name constant; it lives alongside them as a project-local dotdir
// so distinct checkouts of the same project don't share mutable git state.
func mirrorRoot(projectRoot string) string {
	return filepath.Join(projectRoot, ".ams-compose-cache")
}
