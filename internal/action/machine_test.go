package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usrgrp/internal/directory"
	"usrgrp/internal/search"
	"usrgrp/internal/sysops"
)

// fakeRunner records every command instead of spawning processes. onRun
// lets a test mutate the backing source, standing in for the command's
// real effect on the system files.
type fakeRunner struct {
	ran   []sysops.Command
	out   sysops.Outcome
	onRun func(cmd sysops.Command)
}

func (f *fakeRunner) Run(_ context.Context, cmd sysops.Command) (sysops.Outcome, error) {
	f.ran = append(f.ran, cmd)
	if f.onRun != nil {
		f.onRun(cmd)
	}
	return f.out, nil
}

func machineFixture(t *testing.T) (*Machine, *fakeRunner, directory.MapSource) {
	t.Helper()
	src := directory.MapSource{
		"/etc/passwd": "root:x:0:0:root:/root:/bin/bash\nalice:x:1001:1001:Alice:/home/alice:/bin/bash\nbob:x:1002:1002::/home/bob:/bin/bash\n",
		"/etc/group":  "root:x:0:\nwheel:x:10:alice\nalice:x:1001:\nbob:x:1002:\n",
		"/etc/shells": "/bin/sh\n/bin/bash\n/bin/zsh\n",
	}
	loader := directory.NewLoader(src, directory.DefaultPaths(), nil)
	loader.SetHomeCheck(func(string) bool { return true })

	runner := &fakeRunner{}
	m, err := NewMachine(loader, runner, nil)
	require.NoError(t, err)
	return m, runner, src
}

func TestNewMachineStartsBrowsing(t *testing.T) {
	m, _, _ := machineFixture(t)

	assert.Equal(t, Browsing, m.Phase())
	assert.Nil(t, m.Pending())
	assert.Len(t, m.View().Users, 3)
	assert.Len(t, m.View().Groups, 4)
}

func TestCreateGroupWorkflow(t *testing.T) {
	m, runner, src := machineFixture(t)
	runner.onRun = func(cmd sysops.Command) {
		if cmd.Program == "groupadd" {
			src["/etc/group"] += "testers:x:1003:\n"
		}
	}

	require.NoError(t, m.Open(sysops.CreateGroup{}, "", KindGroup))
	assert.Equal(t, ModalOpen, m.Phase())

	require.NoError(t, m.Submit(sysops.CreateGroup{Name: "testers"}))
	assert.Equal(t, Validating, m.Phase(), "non-destructive actions skip confirmation")

	msg, err := m.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Created group 'testers'", msg)
	assert.Equal(t, Browsing, m.Phase())
	assert.Nil(t, m.Pending())

	require.Len(t, runner.ran, 1)
	assert.Equal(t, "groupadd", runner.ran[0].Program)
	assert.Equal(t, []string{"testers"}, runner.ran[0].Args)

	// Reconciliation picked up the new group: it is in the snapshot and,
	// with no filter active, in the view.
	_, ok := m.Snapshot().Group("testers")
	assert.True(t, ok)
	assert.Len(t, m.View().Groups, 5)
}

func TestDestructiveRequiresConfirmation(t *testing.T) {
	m, runner, _ := machineFixture(t)

	require.NoError(t, m.Open(sysops.DeleteGroup{Name: "bob"}, "bob", KindGroup))
	require.NoError(t, m.Submit(sysops.DeleteGroup{Name: "bob"}))
	assert.Equal(t, Confirming, m.Phase())

	_, err := m.Execute(context.Background())
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Empty(t, runner.ran, "nothing may run before confirmation")

	require.NoError(t, m.Confirm())
	_, err = m.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.ran, 1)
	assert.Equal(t, "groupdel", runner.ran[0].Program)
}

func TestCancelLeavesStateUntouched(t *testing.T) {
	m, runner, _ := machineFixture(t)
	before := m.Snapshot()

	require.NoError(t, m.Open(sysops.DeleteUser{Username: "bob"}, "bob", KindUser))
	require.NoError(t, m.Submit(sysops.DeleteUser{Username: "bob", DeleteHome: true}))
	require.NoError(t, m.Cancel())

	assert.Equal(t, Browsing, m.Phase())
	assert.Nil(t, m.Pending())
	assert.Empty(t, runner.ran)
	assert.Same(t, before, m.Snapshot(), "cancel must not touch the snapshot")
}

func TestSelfDeletionRefused(t *testing.T) {
	m, runner, _ := machineFixture(t)
	m.SetCurrentUser("alice")

	require.NoError(t, m.Open(sysops.DeleteUser{Username: "alice"}, "alice", KindUser))
	err := m.Submit(sysops.DeleteUser{Username: "alice"})
	require.Error(t, err)

	var verr *sysops.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, ModalOpen, m.Phase(), "the dialog stays open on validation failure")
	assert.Empty(t, runner.ran)
}

func TestHostileInputNeverReachesRunner(t *testing.T) {
	m, runner, _ := machineFixture(t)

	require.NoError(t, m.Open(sysops.CreateUser{}, "", KindUser))
	err := m.Submit(sysops.CreateUser{Username: "; rm -rf /"})
	require.Error(t, err)

	var verr *sysops.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, ModalOpen, m.Phase())
	assert.Empty(t, runner.ran, "rejected input must never spawn a process")
}

func TestShellUnregisteredAfterDialogOpens(t *testing.T) {
	m, runner, src := machineFixture(t)

	require.NoError(t, m.Open(sysops.ChangeShell{Username: "alice"}, "alice", KindUser))
	require.NoError(t, m.Submit(sysops.ChangeShell{Username: "alice", Shell: "/bin/zsh"}))

	// Another administrator removes zsh from the registry while the
	// dialog is open.
	src["/etc/shells"] = "/bin/sh\n/bin/bash\n"

	_, err := m.Execute(context.Background())
	assert.ErrorIs(t, err, sysops.ErrStaleState)
	assert.Equal(t, Browsing, m.Phase())
	assert.Empty(t, runner.ran, "an invalidated action must never spawn a process")
	assert.False(t, m.Snapshot().Shells.Contains("/bin/zsh"), "the abort publishes the snapshot that invalidated the action")
}

func TestTargetDeletedExternallyAborts(t *testing.T) {
	m, runner, src := machineFixture(t)

	require.NoError(t, m.Open(sysops.DeleteUser{Username: "bob"}, "bob", KindUser))
	require.NoError(t, m.Submit(sysops.DeleteUser{Username: "bob"}))
	require.NoError(t, m.Confirm())

	// bob is deleted out from under the open confirmation dialog.
	src["/etc/passwd"] = "root:x:0:0:root:/root:/bin/bash\nalice:x:1001:1001:Alice:/home/alice:/bin/bash\n"

	_, err := m.Execute(context.Background())
	assert.ErrorIs(t, err, ErrTargetVanished)
	assert.Equal(t, Browsing, m.Phase())
	assert.Empty(t, runner.ran)
	_, ok := m.Snapshot().User("bob")
	assert.False(t, ok)
}

func TestTargetVanishedAborts(t *testing.T) {
	m, runner, _ := machineFixture(t)

	require.NoError(t, m.Open(sysops.DeleteUser{Username: "ghost"}, "ghost", KindUser))
	require.NoError(t, m.Submit(sysops.DeleteUser{Username: "ghost"}))
	require.NoError(t, m.Confirm())

	_, err := m.Execute(context.Background())
	assert.ErrorIs(t, err, ErrTargetVanished)
	assert.Equal(t, Browsing, m.Phase(), "abort returns to browsing")
	assert.Nil(t, m.Pending())
	assert.Empty(t, runner.ran, "no command may be issued for a vanished target")
}

func TestExecutionStopsAtFirstFailure(t *testing.T) {
	m, runner, _ := machineFixture(t)
	runner.out = sysops.Outcome{ExitCode: 1, Stderr: "gpasswd: user alice is already a member of root"}

	require.NoError(t, m.Open(sysops.AddToGroups{Username: "alice"}, "alice", KindUser))
	require.NoError(t, m.Submit(sysops.AddToGroups{Username: "alice", Groups: []string{"root", "bob"}}))

	_, err := m.Execute(context.Background())
	require.Error(t, err)

	var cmdErr *sysops.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, sysops.FailureExists, cmdErr.Kind)
	assert.Len(t, runner.ran, 1, "the second command must not run after a failure")
	assert.Equal(t, Browsing, m.Phase(), "a failed execution still reconciles back to browsing")
}

func TestPhaseGuards(t *testing.T) {
	m, _, _ := machineFixture(t)

	assert.ErrorIs(t, m.Submit(sysops.CreateGroup{Name: "x"}), ErrBadPhase)
	assert.ErrorIs(t, m.Confirm(), ErrBadPhase)
	_, err := m.Begin()
	assert.ErrorIs(t, err, ErrBadPhase)

	require.NoError(t, m.Open(sysops.CreateGroup{}, "", KindGroup))
	assert.ErrorIs(t, m.Refresh(), ErrBadPhase)
	assert.ErrorIs(t, m.Open(sysops.CreateGroup{}, "", KindGroup), ErrBadPhase, "no nested dialogs")
}

func TestSetRunnerRejectedWhileExecuting(t *testing.T) {
	m, runner, _ := machineFixture(t)

	require.NoError(t, m.Open(sysops.CreateGroup{}, "", KindGroup))
	require.NoError(t, m.Submit(sysops.CreateGroup{Name: "testers"}))
	job, err := m.Begin()
	require.NoError(t, err)
	assert.Equal(t, Executing, m.Phase())

	assert.ErrorIs(t, m.SetRunner(runner), ErrBadPhase)

	_, err = m.Finish(job.Run(context.Background()))
	require.NoError(t, err)
	assert.NoError(t, m.SetRunner(runner))
}

func TestSetQueryResetsSelection(t *testing.T) {
	m, _, _ := machineFixture(t)

	m.MoveSelection(KindUser, 2)
	assert.Equal(t, 2, m.Selection(KindUser))

	m.SetQuery(search.Query{Text: "alice"})
	assert.Equal(t, 0, m.Selection(KindUser))
	require.Len(t, m.View().Users, 1)

	u, ok := m.SelectedUser()
	require.True(t, ok)
	assert.Equal(t, "alice", u.Name)
}

func TestMoveSelectionClamps(t *testing.T) {
	m, _, _ := machineFixture(t)

	m.MoveSelection(KindUser, -5)
	assert.Equal(t, 0, m.Selection(KindUser))
	m.MoveSelection(KindUser, 99)
	assert.Equal(t, 2, m.Selection(KindUser), "clamped to the last row")
}

func TestReconcileKeepsSnapshotOnLoadFailure(t *testing.T) {
	m, runner, src := machineFixture(t)
	runner.onRun = func(sysops.Command) {
		delete(src, "/etc/passwd")
	}

	require.NoError(t, m.Open(sysops.CreateGroup{}, "", KindGroup))
	require.NoError(t, m.Submit(sysops.CreateGroup{Name: "testers"}))
	job, err := m.Begin()
	require.NoError(t, err)
	during := m.Snapshot()

	_, err = m.Finish(job.Run(context.Background()))
	require.NoError(t, err, "the command itself succeeded")

	assert.Equal(t, Browsing, m.Phase())
	assert.Same(t, during, m.Snapshot(), "failed reload keeps the previous snapshot")
}

func TestRefresh(t *testing.T) {
	m, _, src := machineFixture(t)
	src["/etc/passwd"] += "carol:x:1003:1003::/home/carol:/bin/bash\n"

	require.NoError(t, m.Refresh())
	assert.Len(t, m.View().Users, 4)

	delete(src, "/etc/passwd")
	assert.Error(t, m.Refresh())
	assert.Len(t, m.Snapshot().Users, 4, "previous data retained")
}
