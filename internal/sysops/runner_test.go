package sysops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySuccess(t *testing.T) {
	assert.NoError(t, Classify("useradd", Outcome{ExitCode: 0}))
}

func TestClassifyStderrOnZeroExitIsFailure(t *testing.T) {
	err := Classify("useradd", Outcome{ExitCode: 0, Stderr: "useradd: warning something broke"})
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, FailureUnknown, cmdErr.Kind)
	assert.Equal(t, 0, cmdErr.ExitCode)
}

func TestClassifyKinds(t *testing.T) {
	cases := []struct {
		stderr string
		kind   FailureKind
	}{
		{"sudo: Sorry, try again.", FailureAuth},
		{"user alice is not in the sudoers file.", FailureAuth},
		{"useradd: user 'alice' already exists", FailureExists},
		{"gpasswd: user bob is already a member of wheel", FailureExists},
		{"userdel: user 'ghost' does not exist", FailureNotFound},
		{"gpasswd: user dave is not a member of wheel", FailureNotFound},
		{"userdel: Permission denied.", FailurePermission},
		{"userdel: user alice is currently used by process 4242", FailureBusy},
		{"groupadd: cannot lock /etc/group; try again later.", FailureBusy},
		{"something entirely novel", FailureUnknown},
	}
	for _, tc := range cases {
		err := Classify("tool", Outcome{ExitCode: 1, Stderr: tc.stderr})
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr, tc.stderr)
		assert.Equal(t, tc.kind, cmdErr.Kind, tc.stderr)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	withStderr := &CommandError{Program: "useradd", ExitCode: 9, Stderr: "useradd: user exists"}
	assert.Contains(t, withStderr.Error(), "useradd: user exists")

	silent := &CommandError{Program: "useradd", ExitCode: 9}
	assert.Contains(t, silent.Error(), "status 9")
}

func TestSudoRunnerRequiresPassword(t *testing.T) {
	r := NewSudoRunner("", time.Second, nil)

	_, err := r.Run(context.Background(), Command{Program: "groupadd", Args: []string{"testers"}})
	assert.ErrorIs(t, err, ErrAuthRequired, "no process may spawn without credentials")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewRunner(time.Second, nil)

	_, err := r.Run(context.Background(), Command{Program: "definitely-not-a-real-binary-zz"})
	assert.Error(t, err)
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := NewRunner(5*time.Second, nil)

	out, err := r.Run(context.Background(), Command{Program: "sh", Args: []string{"-c", "echo out; echo err >&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "out\n", out.Stdout)
	assert.Equal(t, "err\n", out.Stderr)
}

func TestExecRunnerStdin(t *testing.T) {
	r := NewRunner(5*time.Second, nil)

	out, err := r.Run(context.Background(), Command{Program: "cat", Stdin: "alice:secret\n", Secret: true})
	require.NoError(t, err)
	assert.Equal(t, "alice:secret\n", out.Stdout)
}

func TestExecRunnerTimeout(t *testing.T) {
	r := NewRunner(50*time.Millisecond, nil)

	_, err := r.Run(context.Background(), Command{Program: "sleep", Args: []string{"5"}})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRedactedElidesStdin(t *testing.T) {
	cmd := Command{Program: "chpasswd", Stdin: "alice:hunter2\n", Secret: true}
	assert.Equal(t, "chpasswd", cmd.Redacted())
}
