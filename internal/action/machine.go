// Package action owns the interactive write workflow: selection, modal
// input, validation, confirmation, execution, and reconciliation. It is the
// only package that builds and runs privileged commands; the terminal layer
// feeds it intents and renders its state.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"usrgrp/internal/directory"
	"usrgrp/internal/search"
	"usrgrp/internal/sysops"
)

// Phase is the machine's position in the action workflow. Transitions are
// guarded: every mutating method checks the phase it is valid in and
// returns ErrBadPhase otherwise.
type Phase int

const (
	// Browsing: no action in flight; navigation and search are live.
	Browsing Phase = iota
	// ModalOpen: a dialog is collecting input for a captured target.
	ModalOpen
	// Validating: input accepted; a non-destructive action may execute.
	Validating
	// Confirming: input accepted for a destructive action; an explicit
	// confirmation is required before execution.
	Confirming
	// Executing: commands are running; input is ignored until they finish.
	Executing
	// Reconciling: commands finished; a fresh snapshot is being loaded.
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Browsing:
		return "browsing"
	case ModalOpen:
		return "modal-open"
	case Validating:
		return "validating"
	case Confirming:
		return "confirming"
	case Executing:
		return "executing"
	case Reconciling:
		return "reconciling"
	}
	return "unknown"
}

// EntityKind says what kind of entity a pending action targets.
type EntityKind int

const (
	KindUser EntityKind = iota
	KindGroup
)

var (
	// ErrBadPhase rejects a workflow call made from the wrong phase.
	ErrBadPhase = errors.New("not permitted in the current phase")

	// ErrTargetVanished means the captured target no longer exists in the
	// latest snapshot; the action is aborted before any command is issued.
	ErrTargetVanished = errors.New("target no longer exists")

	// ErrNotConfirmed rejects executing a destructive action without the
	// explicit confirmation step.
	ErrNotConfirmed = errors.New("destructive action requires confirmation")
)

// Pending is the one in-flight intent. The target is captured by name when
// the dialog opens, so a snapshot refresh can never redirect the action to
// a different row.
type Pending struct {
	Intent          sysops.Intent
	Target          string
	Kind            EntityKind
	SnapshotVersion uint64

	armed bool
}

// Result carries what an execution produced back into the machine.
type Result struct {
	Outcomes []sysops.Outcome
	Err      error
}

// Machine sequences the workflow over an exclusively-owned snapshot. All
// methods must be called from the single control thread; the only work
// that may happen elsewhere is Job.Run, which touches no machine state.
type Machine struct {
	loader *directory.Loader
	runner sysops.Runner
	log    logrus.FieldLogger

	currentUser string

	phase   Phase
	snap    *directory.Snapshot
	pending *Pending

	query    search.Query
	view     search.View
	userSel  int
	groupSel int
}

// NewMachine loads the initial snapshot and returns a machine in Browsing.
func NewMachine(loader *directory.Loader, runner sysops.Runner, log logrus.FieldLogger) (*Machine, error) {
	snap, err := loader.Load()
	if err != nil {
		return nil, err
	}
	m := &Machine{
		loader: loader,
		runner: runner,
		log:    log,
		phase:  Browsing,
		snap:   snap,
	}
	m.view = search.Apply(snap, m.query)
	return m, nil
}

// SetCurrentUser names the operator's own account, which the machine
// refuses to delete.
func (m *Machine) SetCurrentUser(name string) { m.currentUser = name }

// SetRunner swaps the command runner. Used when sudo credentials arrive
// after startup; rejected while an action is executing.
func (m *Machine) SetRunner(r sysops.Runner) error {
	if m.phase == Executing || m.phase == Reconciling {
		return ErrBadPhase
	}
	m.runner = r
	return nil
}

// Phase returns the current workflow phase.
func (m *Machine) Phase() Phase { return m.phase }

// Snapshot returns the current snapshot. Callers hold it read-only; it is
// replaced wholesale on reconcile.
func (m *Machine) Snapshot() *directory.Snapshot { return m.snap }

// Pending returns the in-flight action, or nil while browsing.
func (m *Machine) Pending() *Pending { return m.pending }

// Query returns the active search query.
func (m *Machine) Query() search.Query { return m.query }

// View returns the current filtered view of the snapshot.
func (m *Machine) View() search.View { return m.view }

// SetQuery replaces the search query, recomputes the view, and resets both
// selections to the first position.
func (m *Machine) SetQuery(q search.Query) {
	m.query = q
	m.view = search.Apply(m.snap, q)
	m.userSel = 0
	m.groupSel = 0
}

// Selection returns the selection index for the given entity kind.
func (m *Machine) Selection(kind EntityKind) int {
	if kind == KindUser {
		return m.userSel
	}
	return m.groupSel
}

// MoveSelection shifts a selection by delta, clamped to the view bounds.
func (m *Machine) MoveSelection(kind EntityKind, delta int) {
	if kind == KindUser {
		m.userSel = search.Clamp(m.userSel+delta, len(m.view.Users))
		return
	}
	m.groupSel = search.Clamp(m.groupSel+delta, len(m.view.Groups))
}

// SelectedUser resolves the users-list selection against the snapshot.
func (m *Machine) SelectedUser() (directory.User, bool) {
	if len(m.view.Users) == 0 {
		return directory.User{}, false
	}
	idx := search.Clamp(m.userSel, len(m.view.Users))
	return m.snap.Users[m.view.Users[idx]], true
}

// SelectedGroup resolves the groups-list selection against the snapshot.
func (m *Machine) SelectedGroup() (directory.Group, bool) {
	if len(m.view.Groups) == 0 {
		return directory.Group{}, false
	}
	idx := search.Clamp(m.groupSel, len(m.view.Groups))
	return m.snap.Groups[m.view.Groups[idx]], true
}

// Open starts an action dialog for the named target, capturing the target
// and the snapshot version. Valid only while browsing.
func (m *Machine) Open(in sysops.Intent, target string, kind EntityKind) error {
	if m.phase != Browsing {
		return fmt.Errorf("%w: open from %s", ErrBadPhase, m.phase)
	}
	m.pending = &Pending{
		Intent:          in,
		Target:          target,
		Kind:            kind,
		SnapshotVersion: m.snap.Version,
	}
	m.phase = ModalOpen
	return nil
}

// Submit replaces the pending intent with the dialog's final input and
// validates it against the snapshot captured at open time. On success the
// machine moves to Validating, or directly to Confirming for destructive
// actions. A validation failure keeps the dialog open.
func (m *Machine) Submit(in sysops.Intent) error {
	if m.phase != ModalOpen {
		return fmt.Errorf("%w: submit from %s", ErrBadPhase, m.phase)
	}
	if del, ok := in.(sysops.DeleteUser); ok && m.currentUser != "" && del.Username == m.currentUser {
		return &sysops.ValidationError{Field: "user name", Reason: "refusing to delete the current user"}
	}
	if err := sysops.Validate(in, m.snap); err != nil {
		return err
	}
	m.pending.Intent = in
	if in.Destructive() {
		m.phase = Confirming
	} else {
		m.phase = Validating
	}
	return nil
}

// Confirm records the explicit affirmative for a destructive action.
func (m *Machine) Confirm() error {
	if m.phase != Confirming {
		return fmt.Errorf("%w: confirm from %s", ErrBadPhase, m.phase)
	}
	m.pending.armed = true
	return nil
}

// Cancel abandons the in-flight action and returns to browsing. Allowed in
// any phase up to and including Confirming; once execution has begun the
// command runs to completion.
func (m *Machine) Cancel() error {
	switch m.phase {
	case Executing, Reconciling:
		return fmt.Errorf("%w: cancel from %s", ErrBadPhase, m.phase)
	}
	m.pending = nil
	m.phase = Browsing
	return nil
}

// Job is one armed execution: the built commands plus the runner to feed
// them to. Run is safe to call off the control thread.
type Job struct {
	commands []sysops.Command
	runner   sysops.Runner
	log      logrus.FieldLogger
}

// Begin guards the transition into Executing: it reloads the directory,
// re-checks that the captured target still exists in it, and re-validates
// the intent by building the command sequence against it. Any failure
// aborts the action and returns the machine to Browsing, with the snapshot
// that invalidated the action already published.
func (m *Machine) Begin() (*Job, error) {
	switch m.phase {
	case Validating:
		// Non-destructive actions execute straight from Validating.
	case Confirming:
		if !m.pending.armed {
			return nil, ErrNotConfirmed
		}
	default:
		return nil, fmt.Errorf("%w: execute from %s", ErrBadPhase, m.phase)
	}

	// The snapshot is frozen for the whole modal lifetime; an external
	// edit since Open is only caught if the guards below run against the
	// directory as it is now. A failed reload keeps the captured snapshot
	// and the guards run against that.
	m.reconcile()

	p := m.pending
	if !m.targetExists(p) {
		m.abort()
		return nil, fmt.Errorf("%w: %s", ErrTargetVanished, p.Target)
	}

	commands, err := sysops.Build(p.Intent, m.snap)
	if err != nil {
		// The intent validated when submitted; failing now means the
		// directory moved underneath the dialog.
		m.abort()
		if p.SnapshotVersion != m.snap.Version {
			return nil, fmt.Errorf("%w: %v", sysops.ErrStaleState, err)
		}
		return nil, err
	}

	m.phase = Executing
	return &Job{commands: commands, runner: m.runner, log: m.log}, nil
}

// Run executes the job's commands in order, stopping at the first failure.
// Privileged commands are never retried and never run concurrently.
func (j *Job) Run(ctx context.Context) Result {
	var res Result
	for _, cmd := range j.commands {
		out, err := j.runner.Run(ctx, cmd)
		if err == nil {
			err = sysops.Classify(cmd.Program, out)
		}
		res.Outcomes = append(res.Outcomes, out)
		if err != nil {
			if j.log != nil {
				j.log.WithField("command", cmd.Redacted()).WithError(err).Warn("privileged command failed")
			}
			res.Err = err
			return res
		}
		if j.log != nil {
			j.log.WithField("command", cmd.Redacted()).Info("privileged command succeeded")
		}
	}
	return res
}

// Finish consumes an execution result: it reconciles against a fresh
// snapshot and returns the machine to Browsing. The returned message
// summarizes the outcome for the status line; res.Err is passed back for
// the caller's error display.
func (m *Machine) Finish(res Result) (string, error) {
	if m.phase != Executing {
		return "", fmt.Errorf("%w: finish from %s", ErrBadPhase, m.phase)
	}
	intent := m.pending.Intent
	m.phase = Reconciling
	m.reconcile()
	m.pending = nil
	m.phase = Browsing

	if res.Err != nil {
		return "", res.Err
	}
	return successMessage(intent), nil
}

// Execute runs the whole tail of the workflow synchronously: Begin, Run,
// Finish. The interactive layer splits these to keep the child-process
// wait off the input loop; tests and one-shot callers use this.
func (m *Machine) Execute(ctx context.Context) (string, error) {
	job, err := m.Begin()
	if err != nil {
		return "", err
	}
	return m.Finish(job.Run(ctx))
}

// abort drops the pending action and returns to Browsing. Begin has
// already published the snapshot that invalidated the action, so the
// operator sees the state that caused the abort.
func (m *Machine) abort() {
	m.pending = nil
	m.phase = Browsing
}

// reconcile loads a fresh snapshot and remaps the derived view onto it.
// Selections are clamped, not reset, so the cursor stays near its row when
// the list shrinks. A failed load keeps the previous snapshot.
func (m *Machine) reconcile() {
	snap, err := m.loader.Load()
	if err != nil {
		if m.log != nil {
			m.log.WithError(err).Error("snapshot refresh failed, keeping previous snapshot")
		}
		return
	}
	m.snap = snap
	m.view = search.Apply(snap, m.query)
	m.userSel = search.Clamp(m.userSel, len(m.view.Users))
	m.groupSel = search.Clamp(m.groupSel, len(m.view.Groups))
}

// Refresh reloads the snapshot outside of an action, for the manual
// refresh key. Valid only while browsing.
func (m *Machine) Refresh() error {
	if m.phase != Browsing {
		return fmt.Errorf("%w: refresh from %s", ErrBadPhase, m.phase)
	}
	prev := m.snap
	m.reconcile()
	if m.snap == prev {
		return errors.New("refresh failed, previous data retained")
	}
	return nil
}

func (m *Machine) targetExists(p *Pending) bool {
	// Create actions have no pre-existing target; duplicate names are
	// caught by validation instead.
	if p.Target == "" {
		return true
	}
	if p.Kind == KindUser {
		_, ok := m.snap.User(p.Target)
		return ok
	}
	_, ok := m.snap.Group(p.Target)
	return ok
}

// successMessage renders the post-execution status line for an intent.
func successMessage(in sysops.Intent) string {
	switch a := in.(type) {
	case sysops.AddToGroups:
		return fmt.Sprintf("Added '%s' to %d group(s)", a.Username, len(a.Groups))
	case sysops.RemoveFromGroups:
		return fmt.Sprintf("Removed '%s' from %d group(s)", a.Username, len(a.Groups))
	case sysops.AddMembers:
		return fmt.Sprintf("Added %d user(s) to '%s'", len(a.Usernames), a.Group)
	case sysops.RemoveMembers:
		return fmt.Sprintf("Removed %d user(s) from '%s'", len(a.Usernames), a.Group)
	case sysops.ChangeShell:
		return fmt.Sprintf("Changed shell to '%s'", a.Shell)
	case sysops.ChangeFullName:
		return fmt.Sprintf("Updated full name of '%s'", a.Username)
	case sysops.RenameUser:
		return fmt.Sprintf("Renamed user to '%s'", a.NewName)
	case sysops.CreateUser:
		msg := fmt.Sprintf("Created user '%s'", a.Username)
		if a.CreateHome {
			msg += " with home"
		}
		if a.Password != "" {
			msg += " with password"
		}
		if a.Admin {
			msg += " and " + sysops.AdminGroup()
		}
		return msg
	case sysops.DeleteUser:
		if a.DeleteHome {
			return fmt.Sprintf("Deleted user '%s' and home", a.Username)
		}
		return fmt.Sprintf("Deleted user '%s'", a.Username)
	case sysops.CreateGroup:
		return fmt.Sprintf("Created group '%s'", a.Name)
	case sysops.DeleteGroup:
		return fmt.Sprintf("Deleted group '%s'", a.Name)
	case sysops.RenameGroup:
		return fmt.Sprintf("Renamed group to '%s'", a.NewName)
	case sysops.SetPassword:
		if a.MustChange {
			return "Password set, must change at next login"
		}
		return "Password set"
	case sysops.ExpirePassword:
		return "Password expired, must change at next login"
	}
	return "Done"
}
