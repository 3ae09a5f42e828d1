// Package amslog is a minimal io.Writer-backed logger used across the
// mirror cache and orchestrator for verbose/trace output.
package amslog

import (
	"fmt"
	"io"
)

// Logger wraps an io.Writer with a couple of convenience methods. It carries
// no level filtering: verbosity is decided by the writer the caller hands it
// (cmd/ams-compose passes a discarding writer unless -v is given).
type Logger struct {
	io.Writer
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string without a trailing newline.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

// Logfln logs a formatted line, prefixed with "ams-compose: ".
func (l *Logger) Logfln(format string, args ...interface{}) {
	fmt.Fprintf(l, "ams-compose: "+format+"\n", args...)
}
