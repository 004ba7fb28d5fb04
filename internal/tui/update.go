package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"usrgrp/internal/action"
	"usrgrp/internal/config"
	"usrgrp/internal/search"
	"usrgrp/internal/sysops"
)

// execDoneMsg delivers a finished execution back to the update loop.
type execDoneMsg struct {
	res action.Result
}

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = clampMin(msg.Width-8, 20)
		m.help.Height = clampMin(msg.Height-8, 5)
		return m, nil

	case execDoneMsg:
		return m.finishExecution(msg.res)

	case tea.KeyMsg:
		// While commands run, input is dropped; the machine returns to
		// browsing via execDoneMsg.
		if m.machine.Phase() == action.Executing {
			return m, nil
		}
		if m.modal != nil {
			return m.updateModal(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", m.keymap.Quit:
		m.saveFilters()
		return m, tea.Quit
	case m.keymap.Search:
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case m.keymap.NextTab:
		if m.tab == TabUsers {
			m.tab = TabGroups
		} else {
			m.tab = TabUsers
		}
		m.memberPane = false
		m.memberSel = 0
		return m, nil
	case "up", m.keymap.Up:
		if m.memberPane {
			m.memberSel = search.Clamp(m.memberSel-1, m.memberCount())
		} else {
			m.machine.MoveSelection(m.activeKind(), -1)
			m.memberSel = 0
		}
		return m, nil
	case "down", m.keymap.Down:
		if m.memberPane {
			m.memberSel = search.Clamp(m.memberSel+1, m.memberCount())
		} else {
			m.machine.MoveSelection(m.activeKind(), +1)
			m.memberSel = 0
		}
		return m, nil
	case m.keymap.FocusPane:
		m.memberPane = !m.memberPane
		m.memberSel = 0
		return m, nil
	case m.keymap.Actions:
		m.openActionsMenu()
		return m, nil
	case m.keymap.Filter:
		m.openFilterMenu()
		return m, nil
	case m.keymap.Refresh:
		if err := m.machine.Refresh(); err != nil {
			m.setStatus(err.Error(), true)
		} else {
			m.setStatus("Refreshed", false)
		}
		return m, nil
	case m.keymap.Help:
		m.openHelp()
		return m, nil
	case "esc":
		if m.query().Text != "" {
			q := m.query()
			q.Text = ""
			m.searchInput.SetValue("")
			m.machine.SetQuery(q)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		q := m.query()
		q.Text = ""
		m.machine.SetQuery(q)
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	q := m.query()
	q.Text = m.searchInput.Value()
	m.machine.SetQuery(q)
	return m, cmd
}

// updateModal routes keys into the open dialog.
func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	md := m.modal
	key := msg.String()

	switch md.kind {
	case modalInfo:
		m.modal = nil
		return m, nil

	case modalHelp:
		switch key {
		case "esc", "q", m.keymap.Help:
			m.modal = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd

	case modalMenu, modalFilter:
		switch key {
		case "esc":
			m.closeModal()
			return m, nil
		case "up", "k":
			if md.sel > 0 {
				md.sel--
			}
			return m, nil
		case "down", "j":
			if md.sel < len(md.items)-1 {
				md.sel++
			}
			return m, nil
		case "enter", " ":
			if len(md.items) == 0 {
				return m, nil
			}
			cmd := md.items[md.sel].do(&m)
			return m, cmd
		}
		return m, nil

	case modalPick:
		switch key {
		case "esc":
			m.closeModal()
			return m, nil
		case "up", "k":
			if md.sel > 0 {
				md.sel--
			}
			return m, nil
		case "down", "j":
			if md.sel < len(md.list)-1 {
				md.sel++
			}
			return m, nil
		case " ":
			if md.multi && len(md.list) > 0 {
				md.marked[md.sel] = !md.marked[md.sel]
			}
			return m, nil
		case "enter":
			if len(md.list) == 0 {
				m.closeModal()
				return m, nil
			}
			cmd := md.submit(&m)
			return m, cmd
		}
		return m, nil

	case modalConfirm:
		switch key {
		case "esc", "n":
			m.closeModal()
			return m, nil
		case " ":
			if len(md.toggles) > 0 {
				md.toggles[0].on = !md.toggles[0].on
			}
			return m, nil
		case "enter", "y":
			cmd := md.submit(&m)
			return m, cmd
		}
		return m, nil

	case modalInput, modalPassword, modalSudo:
		switch key {
		case "esc":
			m.closeModal()
			return m, nil
		case "tab", "down":
			md.cycleFocus(+1)
			return m, nil
		case "shift+tab", "up":
			md.cycleFocus(-1)
			return m, nil
		case "enter":
			cmd := md.submit(&m)
			return m, cmd
		case " ":
			if md.inputSel >= len(md.inputs) {
				i := md.inputSel - len(md.inputs)
				md.toggles[i].on = !md.toggles[i].on
				return m, nil
			}
		}
		if md.inputSel < len(md.inputs) {
			var cmd tea.Cmd
			md.inputs[md.inputSel], cmd = md.inputs[md.inputSel].Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

// cycleFocus moves the input/toggle focus by delta, wrapping.
func (md *modal) cycleFocus(delta int) {
	total := len(md.inputs) + len(md.toggles)
	if total == 0 {
		return
	}
	if md.inputSel < len(md.inputs) {
		md.inputs[md.inputSel].Blur()
	}
	md.inputSel = (md.inputSel + delta + total) % total
	if md.inputSel < len(md.inputs) {
		md.inputs[md.inputSel].Focus()
	}
}

// closeModal cancels the in-flight action (if any) and drops the dialog.
func (m *Model) closeModal() {
	switch m.machine.Phase() {
	case action.ModalOpen, action.Validating, action.Confirming:
		_ = m.machine.Cancel()
	}
	m.modal = nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) saveFilters() {
	f := config.FiltersFromQuery(m.query())
	_ = f.Save(config.Resolve("filter.conf"))
}

func (m *Model) memberCount() int {
	snap := m.machine.Snapshot()
	if m.tab == TabUsers {
		if u, ok := m.machine.SelectedUser(); ok {
			return len(snap.GroupsOf(u.Name))
		}
		return 0
	}
	if g, ok := m.machine.SelectedGroup(); ok {
		return len(g.Members)
	}
	return 0
}

// submitIntent pushes the dialog's final intent into the machine. A
// validation failure keeps the dialog open with the reason inline. When
// the machine demands confirmation, a confirm dialog was either the
// submitting dialog itself (delete and expire flows, where pressing y is
// the affirmative) or it is opened now, so every destructive action gets
// an explicit yes before anything runs.
func (m *Model) submitIntent(in sysops.Intent) tea.Cmd {
	if err := m.machine.Submit(in); err != nil {
		var verr *sysops.ValidationError
		if errors.As(err, &verr) {
			m.modal.errText = verr.Error()
		} else {
			m.modal.errText = err.Error()
		}
		return nil
	}
	if m.machine.Phase() == action.Confirming {
		if m.modal == nil || m.modal.kind != modalConfirm {
			m.openConfirmDialog(confirmMessage(in))
			return nil
		}
		if err := m.machine.Confirm(); err != nil {
			m.modal.errText = err.Error()
			return nil
		}
	}
	return m.startExecution()
}

// openConfirmDialog replaces the current dialog with the explicit
// confirmation step for an already-submitted destructive action.
func (m *Model) openConfirmDialog(message string) {
	m.modal = &modal{
		kind:    modalConfirm,
		title:   "Are you sure?",
		message: message,
		danger:  true,
		submit: func(m *Model) tea.Cmd {
			if err := m.machine.Confirm(); err != nil {
				m.modal.errText = err.Error()
				return nil
			}
			return m.startExecution()
		},
	}
}

func confirmMessage(in sysops.Intent) string {
	switch a := in.(type) {
	case sysops.RemoveFromGroups:
		return fmt.Sprintf("Remove '%s' from %d group(s)?", a.Username, len(a.Groups))
	case sysops.RemoveMembers:
		return fmt.Sprintf("Remove %d user(s) from '%s'?", len(a.Usernames), a.Group)
	}
	return "Run this destructive action?"
}

// startExecution moves the machine into Executing and runs the job off the
// update loop. If elevation is needed and no credentials are set yet, the
// sudo prompt takes over first; the machine stays validated and armed.
func (m *Model) startExecution() tea.Cmd {
	if m.needsSudo && !m.sudoSet {
		m.openSudoPrompt()
		return nil
	}
	job, err := m.machine.Begin()
	if err != nil {
		m.modal = &modal{kind: modalInfo, title: "Error", message: err.Error(), danger: true}
		m.setStatus(err.Error(), true)
		return nil
	}
	m.modal = &modal{kind: modalInfo, title: "Working", message: "Running privileged command..."}
	return func() tea.Msg {
		return execDoneMsg{res: job.Run(context.Background())}
	}
}

// finishExecution folds the command result back into the machine and shows
// the outcome.
func (m Model) finishExecution(res action.Result) (tea.Model, tea.Cmd) {
	text, err := m.machine.Finish(res)
	if err != nil {
		var cmdErr *sysops.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Kind == sysops.FailureAuth {
			// Bad sudo password: force a fresh prompt next time.
			m.sudoSet = false
		}
		m.modal = &modal{kind: modalInfo, title: "Error", message: err.Error(), danger: true}
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.modal = &modal{kind: modalInfo, title: "Done", message: text}
	m.setStatus(text, false)
	return m, nil
}

// openSudoPrompt collects the sudo password. On submit the machine gets
// the elevating runner and the armed action continues into execution.
func (m *Model) openSudoPrompt() {
	pw := newPasswordInput("sudo password")
	pw.Focus()
	m.modal = &modal{
		kind:   modalSudo,
		title:  "Authentication required",
		inputs: []textinput.Model{pw},
		submit: func(m *Model) tea.Cmd {
			password := m.modal.inputs[0].Value()
			if password == "" {
				m.modal.errText = "password must not be empty"
				return nil
			}
			if err := m.machine.SetRunner(sysops.NewSudoRunner(password, 0, m.log)); err != nil {
				m.modal.errText = err.Error()
				return nil
			}
			m.sudoSet = true
			return m.startExecution()
		},
	}
}

func newPasswordInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 128
	ti.Width = 28
	return ti
}

func newTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	ti.Width = 28
	return ti
}

func clampMin(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
