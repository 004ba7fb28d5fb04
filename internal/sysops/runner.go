package sysops

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every privileged command. Account tools finish in
// milliseconds; anything near this limit is wedged.
const DefaultTimeout = 15 * time.Second

// Outcome captures what a finished child process produced.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes one command as a child process. The two production
// variants are selected at startup: NewRunner when running as root,
// NewSudoRunner otherwise. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Outcome, error)
}

type execRunner struct {
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewRunner returns the direct runner: commands run as the current user
// with no elevation wrapper. timeout <= 0 selects DefaultTimeout.
func NewRunner(timeout time.Duration, log logrus.FieldLogger) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &execRunner{timeout: timeout, log: log}
}

// Run executes cmd with a bounded deadline. There is no shell layer: the
// argument vector goes to the kernel as-is.
func (r *execRunner) Run(ctx context.Context, cmd Command) (Outcome, error) {
	return r.run(ctx, cmd.Program, cmd.Args, cmd.Stdin, cmd.Redacted())
}

func (r *execRunner) run(ctx context.Context, program string, args []string, stdin, redacted string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	child := exec.CommandContext(ctx, program, args...)
	if stdin != "" {
		child.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr strings.Builder
	child.Stdout = &stdout
	child.Stderr = &stderr

	if r.log != nil {
		r.log.WithField("command", redacted).Debug("running privileged command")
	}
	err := child.Run()

	out := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctx.Err() == context.DeadlineExceeded {
		return out, ErrTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		// The process never ran: missing binary, permission on the
		// executable, and the like.
		return out, err
	}
	return out, nil
}

type sudoRunner struct {
	inner    execRunner
	password string
}

// NewSudoRunner returns the elevating runner. Each call validates the sudo
// timestamp first with the password on a dedicated stdin, then runs the
// target command under "sudo -n" with its own stdin intact, so the sudo
// password and command input never share a stream.
func NewSudoRunner(password string, timeout time.Duration, log logrus.FieldLogger) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &sudoRunner{
		inner:    execRunner{timeout: timeout, log: log},
		password: password,
	}
}

func (r *sudoRunner) Run(ctx context.Context, cmd Command) (Outcome, error) {
	if r.password == "" {
		return Outcome{}, ErrAuthRequired
	}

	// Step 1: refresh the sudo timestamp. The prompt is blanked so the
	// password prompt cannot leak into stderr classification.
	validate, err := r.inner.run(ctx, "sudo", []string{"-S", "-p", "", "-v"}, r.password+"\n", "sudo -S -v")
	if err != nil {
		return validate, err
	}
	if validate.ExitCode != 0 {
		return validate, &CommandError{
			Program:  "sudo",
			Kind:     FailureAuth,
			ExitCode: validate.ExitCode,
			Stderr:   strings.TrimSpace(validate.Stderr),
		}
	}

	// Step 2: run the target non-interactively; -n guarantees sudo never
	// reads the command's stdin looking for a password.
	args := append([]string{"-n", cmd.Program}, cmd.Args...)
	return r.inner.run(ctx, "sudo", args, cmd.Stdin, "sudo -n "+cmd.Redacted())
}

// failureSubstrings maps known stderr fragments of the shadow-utils tools
// (and sudo) to stable failure kinds.
var failureSubstrings = []struct {
	fragment string
	kind     FailureKind
}{
	{"incorrect password", FailureAuth},
	{"authentication failure", FailureAuth},
	{"sorry, try again", FailureAuth},
	{"not in the sudoers", FailureAuth},
	{"a password is required", FailureAuth},
	{"already exists", FailureExists},
	{"already a member", FailureExists},
	{"does not exist", FailureNotFound},
	{"not found", FailureNotFound},
	{"unknown user", FailureNotFound},
	{"unknown group", FailureNotFound},
	{"is not a member", FailureNotFound},
	{"permission denied", FailurePermission},
	{"may not remove", FailurePermission},
	{"cannot lock", FailureBusy},
	{"currently used by process", FailureBusy},
	{"currently logged in", FailureBusy},
}

// Classify turns an outcome into nil on success or a *CommandError. A zero
// exit with non-empty stderr still counts as failure: the account tools
// are silent on success, so stderr output means something went wrong even
// when the status code says otherwise.
func Classify(program string, out Outcome) error {
	stderr := strings.TrimSpace(out.Stderr)
	if out.ExitCode == 0 && stderr == "" {
		return nil
	}
	kind := FailureUnknown
	lower := strings.ToLower(stderr)
	for _, f := range failureSubstrings {
		if strings.Contains(lower, f.fragment) {
			kind = f.kind
			break
		}
	}
	return &CommandError{
		Program:  program,
		Kind:     kind,
		ExitCode: out.ExitCode,
		Stderr:   stderr,
	}
}
