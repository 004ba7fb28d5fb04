package sysops

import (
	"errors"
	"fmt"
)

// FailureKind is a stable classification of an account-tool failure,
// derived from known stderr substrings. UIs key messaging off the kind and
// fall back to the raw stderr for FailureUnknown.
type FailureKind string

const (
	FailureAuth       FailureKind = "authentication"
	FailureExists     FailureKind = "already-exists"
	FailureNotFound   FailureKind = "not-found"
	FailurePermission FailureKind = "permission"
	FailureBusy       FailureKind = "in-use"
	FailureUnknown    FailureKind = "unknown"
)

// CommandError reports a privileged command that ran and failed. The stderr
// text is preserved verbatim for display; it never contains secrets because
// secret input goes to the child's stdin only.
type CommandError struct {
	Program  string
	Kind     FailureKind
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed with status %d", e.Program, e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %s", e.Program, e.Stderr)
}

// ValidationError rejects an intent before any command is built. The
// message is shown inline on the originating modal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var (
	// ErrTimeout means the child process exceeded its deadline and was
	// terminated.
	ErrTimeout = errors.New("command timed out")

	// ErrAuthRequired means elevation was needed but no credentials were
	// configured. Raised before any process spawn so the UI can prompt.
	ErrAuthRequired = errors.New("authentication required")

	// ErrStaleState means data captured when a modal opened no longer
	// matches the latest snapshot; the action is aborted, never retried
	// against the newer state.
	ErrStaleState = errors.New("state changed since the dialog opened")
)
