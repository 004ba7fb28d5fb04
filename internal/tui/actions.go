package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"usrgrp/internal/action"
	"usrgrp/internal/directory"
	"usrgrp/internal/search"
	"usrgrp/internal/sysops"
)

// openActionsMenu shows the actions available for the current tab and
// selection. The machine stays in browsing until a row is chosen; only then
// does the action workflow open with the captured target.
func (m *Model) openActionsMenu() {
	var items []menuItem
	if m.tab == TabUsers {
		if u, ok := m.machine.SelectedUser(); ok {
			items = append(items,
				menuItem{"Add to groups", func(m *Model) tea.Cmd { m.openAddToGroups(u); return nil }},
				menuItem{"Remove from groups", func(m *Model) tea.Cmd { m.openRemoveFromGroups(u); return nil }},
				menuItem{"Change shell", func(m *Model) tea.Cmd { m.openChangeShell(u); return nil }},
				menuItem{"Change full name", func(m *Model) tea.Cmd { m.openChangeFullName(u); return nil }},
				menuItem{"Rename user", func(m *Model) tea.Cmd { m.openRenameUser(u); return nil }},
				menuItem{"Set password", func(m *Model) tea.Cmd { m.openSetPassword(u); return nil }},
				menuItem{"Expire password", func(m *Model) tea.Cmd { m.openExpirePassword(u); return nil }},
				menuItem{"Delete user", func(m *Model) tea.Cmd { m.openDeleteUser(u); return nil }},
			)
		}
		items = append(items, menuItem{"Create user", func(m *Model) tea.Cmd { m.openCreateUser(); return nil }})
	} else {
		if g, ok := m.machine.SelectedGroup(); ok {
			items = append(items,
				menuItem{"Add members", func(m *Model) tea.Cmd { m.openAddMembers(g); return nil }},
				menuItem{"Remove members", func(m *Model) tea.Cmd { m.openRemoveMembers(g); return nil }},
				menuItem{"Rename group", func(m *Model) tea.Cmd { m.openRenameGroup(g); return nil }},
				menuItem{"Delete group", func(m *Model) tea.Cmd { m.openDeleteGroup(g); return nil }},
			)
		}
		items = append(items, menuItem{"Create group", func(m *Model) tea.Cmd { m.openCreateGroup(); return nil }})
	}
	m.modal = &modal{kind: modalMenu, title: "Actions", items: items}
}

// open starts the machine workflow for a dialog; any phase error surfaces
// as an info dialog instead of a broken modal.
func (m *Model) open(seed sysops.Intent, target string, kind action.EntityKind, md *modal) {
	if err := m.machine.Open(seed, target, kind); err != nil {
		m.modal = &modal{kind: modalInfo, title: "Error", message: err.Error(), danger: true}
		return
	}
	m.modal = md
}

func (m *Model) openAddToGroups(u directory.User) {
	snap := m.machine.Snapshot()
	var candidates []string
	for _, g := range snap.Groups {
		if g.GID == u.GID || g.HasMember(u.Name) {
			continue
		}
		candidates = append(candidates, g.Name)
	}
	if len(candidates) == 0 {
		m.modal = &modal{kind: modalInfo, title: "Add to groups", message: "No groups left to join."}
		return
	}
	m.open(sysops.AddToGroups{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:   modalPick,
		title:  fmt.Sprintf("Add %s to groups", u.Name),
		list:   candidates,
		multi:  true,
		marked: map[int]bool{},
		submit: func(m *Model) tea.Cmd {
			names := m.modal.pickedNames()
			if len(names) == 0 {
				m.modal.errText = "mark at least one group"
				return nil
			}
			return m.submitIntent(sysops.AddToGroups{Username: u.Name, Groups: names})
		},
	})
}

func (m *Model) openRemoveFromGroups(u directory.User) {
	snap := m.machine.Snapshot()
	var supplementary []string
	for _, g := range snap.GroupsOf(u.Name) {
		if g.GID == u.GID {
			continue
		}
		supplementary = append(supplementary, g.Name)
	}
	if len(supplementary) == 0 {
		m.modal = &modal{kind: modalInfo, title: "Remove from groups", message: "No supplementary groups to leave."}
		return
	}
	m.open(sysops.RemoveFromGroups{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:   modalPick,
		title:  fmt.Sprintf("Remove %s from groups", u.Name),
		list:   supplementary,
		multi:  true,
		marked: map[int]bool{},
		danger: true,
		submit: func(m *Model) tea.Cmd {
			names := m.modal.pickedNames()
			if len(names) == 0 {
				m.modal.errText = "mark at least one group"
				return nil
			}
			return m.submitIntent(sysops.RemoveFromGroups{Username: u.Name, Groups: names})
		},
	})
}

func (m *Model) openChangeShell(u directory.User) {
	shells := m.machine.Snapshot().Shells.Paths()
	if len(shells) == 0 {
		m.modal = &modal{kind: modalInfo, title: "Change shell", message: "The shell registry is empty."}
		return
	}
	md := &modal{
		kind:  modalPick,
		title: fmt.Sprintf("Shell for %s", u.Name),
		list:  shells,
		submit: func(m *Model) tea.Cmd {
			shell := m.modal.list[m.modal.sel]
			return m.submitIntent(sysops.ChangeShell{Username: u.Name, Shell: shell})
		},
	}
	for i, s := range shells {
		if s == u.Shell {
			md.sel = i
			break
		}
	}
	m.open(sysops.ChangeShell{Username: u.Name}, u.Name, action.KindUser, md)
}

func (m *Model) openChangeFullName(u directory.User) {
	in := newTextInput("full name")
	in.SetValue(u.FullName)
	in.Focus()
	m.open(sysops.ChangeFullName{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:   modalInput,
		title:  fmt.Sprintf("Full name for %s", u.Name),
		inputs: []textinput.Model{in},
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.ChangeFullName{Username: u.Name, FullName: m.modal.inputs[0].Value()})
		},
	})
}

func (m *Model) openRenameUser(u directory.User) {
	in := newTextInput("new login name")
	in.SetValue(u.Name)
	in.Focus()
	m.open(sysops.RenameUser{OldName: u.Name}, u.Name, action.KindUser, &modal{
		kind:   modalInput,
		title:  fmt.Sprintf("Rename %s", u.Name),
		inputs: []textinput.Model{in},
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.RenameUser{OldName: u.Name, NewName: m.modal.inputs[0].Value()})
		},
	})
}

func (m *Model) openSetPassword(u directory.User) {
	pw := newPasswordInput("new password")
	pw.Focus()
	confirm := newPasswordInput("repeat password")
	m.open(sysops.SetPassword{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:    modalPassword,
		title:   fmt.Sprintf("Password for %s", u.Name),
		inputs:  []textinput.Model{pw, confirm},
		toggles: []toggle{{label: "Require change at next login"}},
		submit: func(m *Model) tea.Cmd {
			md := m.modal
			if md.inputs[0].Value() != md.inputs[1].Value() {
				md.errText = "passwords do not match"
				return nil
			}
			return m.submitIntent(sysops.SetPassword{
				Username:   u.Name,
				Password:   md.inputs[0].Value(),
				MustChange: md.toggles[0].on,
			})
		},
	})
}

func (m *Model) openExpirePassword(u directory.User) {
	m.open(sysops.ExpirePassword{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:    modalConfirm,
		title:   "Expire password",
		message: fmt.Sprintf("Expire the password of %s? They must set a new one at next login.", u.Name),
		danger:  true,
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.ExpirePassword{Username: u.Name})
		},
	})
}

func (m *Model) openCreateUser() {
	name := newTextInput("login name")
	name.Focus()
	pw := newPasswordInput("password (optional)")
	confirm := newPasswordInput("repeat password")
	m.open(sysops.CreateUser{}, "", action.KindUser, &modal{
		kind:   modalInput,
		title:  "Create user",
		inputs: []textinput.Model{name, pw, confirm},
		toggles: []toggle{
			{label: "Create home directory", on: true},
			{label: "Admin (" + sysops.AdminGroup() + ")"},
		},
		submit: func(m *Model) tea.Cmd {
			md := m.modal
			if md.inputs[1].Value() != md.inputs[2].Value() {
				md.errText = "passwords do not match"
				return nil
			}
			return m.submitIntent(sysops.CreateUser{
				Username:   md.inputs[0].Value(),
				Password:   md.inputs[1].Value(),
				CreateHome: md.toggles[0].on,
				Admin:      md.toggles[1].on,
			})
		},
	})
}

func (m *Model) openDeleteUser(u directory.User) {
	m.open(sysops.DeleteUser{Username: u.Name}, u.Name, action.KindUser, &modal{
		kind:    modalConfirm,
		title:   "Delete user",
		message: fmt.Sprintf("Delete user %s? This cannot be undone.", u.Name),
		toggles: []toggle{{label: "Also delete home directory"}},
		danger:  true,
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.DeleteUser{Username: u.Name, DeleteHome: m.modal.toggles[0].on})
		},
	})
}

func (m *Model) openAddMembers(g directory.Group) {
	snap := m.machine.Snapshot()
	var candidates []string
	for _, u := range snap.Users {
		if u.GID == g.GID || g.HasMember(u.Name) {
			continue
		}
		candidates = append(candidates, u.Name)
	}
	if len(candidates) == 0 {
		m.modal = &modal{kind: modalInfo, title: "Add members", message: "Every user is already a member."}
		return
	}
	m.open(sysops.AddMembers{Group: g.Name}, g.Name, action.KindGroup, &modal{
		kind:   modalPick,
		title:  fmt.Sprintf("Add members to %s", g.Name),
		list:   candidates,
		multi:  true,
		marked: map[int]bool{},
		submit: func(m *Model) tea.Cmd {
			names := m.modal.pickedNames()
			if len(names) == 0 {
				m.modal.errText = "mark at least one user"
				return nil
			}
			return m.submitIntent(sysops.AddMembers{Group: g.Name, Usernames: names})
		},
	})
}

func (m *Model) openRemoveMembers(g directory.Group) {
	if len(g.Members) == 0 {
		m.modal = &modal{kind: modalInfo, title: "Remove members", message: "The group has no members."}
		return
	}
	m.open(sysops.RemoveMembers{Group: g.Name}, g.Name, action.KindGroup, &modal{
		kind:   modalPick,
		title:  fmt.Sprintf("Remove members from %s", g.Name),
		list:   append([]string(nil), g.Members...),
		multi:  true,
		marked: map[int]bool{},
		danger: true,
		submit: func(m *Model) tea.Cmd {
			names := m.modal.pickedNames()
			if len(names) == 0 {
				m.modal.errText = "mark at least one user"
				return nil
			}
			return m.submitIntent(sysops.RemoveMembers{Group: g.Name, Usernames: names})
		},
	})
}

func (m *Model) openRenameGroup(g directory.Group) {
	in := newTextInput("new group name")
	in.SetValue(g.Name)
	in.Focus()
	m.open(sysops.RenameGroup{OldName: g.Name}, g.Name, action.KindGroup, &modal{
		kind:   modalInput,
		title:  fmt.Sprintf("Rename %s", g.Name),
		inputs: []textinput.Model{in},
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.RenameGroup{OldName: g.Name, NewName: m.modal.inputs[0].Value()})
		},
	})
}

func (m *Model) openCreateGroup() {
	in := newTextInput("group name")
	in.Focus()
	m.open(sysops.CreateGroup{}, "", action.KindGroup, &modal{
		kind:   modalInput,
		title:  "Create group",
		inputs: []textinput.Model{in},
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.CreateGroup{Name: m.modal.inputs[0].Value()})
		},
	})
}

func (m *Model) openDeleteGroup(g directory.Group) {
	m.open(sysops.DeleteGroup{Name: g.Name}, g.Name, action.KindGroup, &modal{
		kind:    modalConfirm,
		title:   "Delete group",
		message: fmt.Sprintf("Delete group %s?", g.Name),
		danger:  true,
		submit: func(m *Model) tea.Cmd {
			return m.submitIntent(sysops.DeleteGroup{Name: g.Name})
		},
	})
}

// pickedNames returns the marked entries of a multi pick list.
func (md *modal) pickedNames() []string {
	var names []string
	for i, name := range md.list {
		if md.marked[i] {
			names = append(names, name)
		}
	}
	return names
}

// openFilterMenu shows the structural filters. Every change applies to the
// view immediately and is persisted, so the next start restores it.
func (m *Model) openFilterMenu() {
	m.modal = &modal{kind: modalFilter, title: "Filters", items: m.filterRows(), sel: m.filterSel()}
}

// filterSel preserves the cursor across rebuilds of the filter menu.
func (m *Model) filterSel() int {
	if m.modal != nil && m.modal.kind == modalFilter {
		return m.modal.sel
	}
	return 0
}

func (m *Model) filterRows() []menuItem {
	q := m.query()
	scopeName := func(users search.UsersScope, groups search.GroupsScope, forUsers bool) string {
		var v int
		if forUsers {
			v = int(users)
		} else {
			v = int(groups)
		}
		switch v {
		case 1:
			return "human"
		case 2:
			return "system"
		default:
			return "all"
		}
	}
	chip := func(label string, on bool, set func(q *search.Query, on bool)) menuItem {
		mark := "[ ]"
		if on {
			mark = "[x]"
		}
		return menuItem{
			label: fmt.Sprintf("%s %s", mark, label),
			do: func(m *Model) tea.Cmd {
				q := m.query()
				set(&q, !on)
				m.applyFilters(q)
				return nil
			},
		}
	}
	return []menuItem{
		{
			label: "Users: " + scopeName(q.UsersScope, q.GroupsScope, true),
			do: func(m *Model) tea.Cmd {
				q := m.query()
				q.UsersScope = (q.UsersScope + 1) % 3
				m.applyFilters(q)
				return nil
			},
		},
		{
			label: "Groups: " + scopeName(q.UsersScope, q.GroupsScope, false),
			do: func(m *Model) tea.Cmd {
				q := m.query()
				q.GroupsScope = (q.GroupsScope + 1) % 3
				m.applyFilters(q)
				return nil
			},
		},
		chip("Inactive shell", q.Chips.Inactive, func(q *search.Query, on bool) { q.Chips.Inactive = on }),
		chip("Missing home", q.Chips.NoHome, func(q *search.Query, on bool) { q.Chips.NoHome = on }),
		chip("Locked", q.Chips.Locked, func(q *search.Query, on bool) { q.Chips.Locked = on }),
		chip("No password", q.Chips.NoPassword, func(q *search.Query, on bool) { q.Chips.NoPassword = on }),
		chip("Expired password", q.Chips.Expired, func(q *search.Query, on bool) { q.Chips.Expired = on }),
	}
}

func (m *Model) applyFilters(q search.Query) {
	m.machine.SetQuery(q)
	m.saveFilters()
	m.openFilterMenu()
}

func (m *Model) openHelp() {
	vp := viewport.New(clampMin(m.width-8, 20), clampMin(m.height-8, 5))
	vp.SetContent(helpText(m.keymap))
	m.help = vp
	m.modal = &modal{kind: modalHelp, title: "Help"}
}
