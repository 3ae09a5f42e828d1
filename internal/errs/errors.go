// Package errs defines the error kind taxonomy shared by the mirror cache,
// extractor, and orchestrator. Each kind is its own type so that callers can
// branch on kind with errors.As instead of matching on message text.
package errs

import "fmt"

// ConfigError wraps a manifest or lockfile parse/validation failure. It is
// always fatal: the orchestrator cannot plan without a valid manifest.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InvalidURLError is raised by the mirror cache's URL validator, before any
// I/O, when a repo URL has a disallowed scheme or contains shell
// metacharacters.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid repository URL %q: %s", e.URL, e.Reason)
}

// RefNotFoundError is raised when a ref cannot be resolved locally or after
// a fetch from origin.
type RefNotFoundError struct {
	URL string
	Ref string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("ref %q not found in %s", e.Ref, e.URL)
}

// OperationTimeoutError is raised when a clone/fetch/checkout exceeds its
// allotted timeout.
type OperationTimeoutError struct {
	Op      string
	Timeout string
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// PathEscapeError is raised by the path-safety resolver when a library's
// resolved local_path falls outside the project root. It is always a hard,
// fatal error for the affected library: never retried, never coerced.
type PathEscapeError struct {
	Library string
	Path    string
	Root    string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("library %q resolves to %s, which escapes project root %s", e.Library, e.Path, e.Root)
}

// SourceMissingError is raised when the declared source_path does not exist
// inside the mirror at the resolved commit.
type SourceMissingError struct {
	Library    string
	SourcePath string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("source path %q not found for library %q", e.SourcePath, e.Library)
}

// ExtractionIOError wraps a filesystem failure during extraction steps 3-8.
// Its presence signals that the destination directory has already been (or
// is about to be) cleaned up by the caller.
type ExtractionIOError struct {
	Library string
	Err     error
}

func (e *ExtractionIOError) Error() string {
	return fmt.Sprintf("extraction of %q failed: %s", e.Library, e.Err)
}

func (e *ExtractionIOError) Unwrap() error { return e.Err }

// LibraryFailure pairs a library name with the error that occurred while
// installing it, for aggregation into an InstallationError.
type LibraryFailure struct {
	Library string
	Err     error
}

func (f LibraryFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Library, f.Err)
}

// InstallationError aggregates one or more per-library failures from a
// single install_all batch. The batch continues past individual failures;
// this error is only raised once, after the whole batch completes.
type InstallationError struct {
	Failures []LibraryFailure
}

func (e *InstallationError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("installation failed: %s", e.Failures[0])
	}
	msg := fmt.Sprintf("installation failed for %d libraries:", len(e.Failures))
	for _, f := range e.Failures {
		msg += fmt.Sprintf("\n  - %s", f)
	}
	return msg
}
