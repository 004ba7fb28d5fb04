package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"usrgrp/internal/config"
	"usrgrp/internal/directory"
)

// styles derives the lipgloss styles from the loaded theme once, at model
// construction.
type styles struct {
	title    lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	header   lipgloss.Style
	row      lipgloss.Style
	rowOn    lipgloss.Style
	muted    lipgloss.Style
	danger   lipgloss.Style
	pane     lipgloss.Style
	paneOn   lipgloss.Style
	status   lipgloss.Style
	statusEr lipgloss.Style
	dialog   lipgloss.Style
	dialogEr lipgloss.Style
	badge    lipgloss.Style
}

func newStyles(t config.Theme) styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(t.Title)),
		tab: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color(t.Muted)),
		tabOn: lipgloss.NewStyle().Padding(0, 1).Bold(true).
			Foreground(lipgloss.Color(t.HeaderFG)).
			Background(lipgloss.Color(t.HeaderBG)),
		header: lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(t.HeaderFG)),
		row: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),
		rowOn: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.HighlightFG)).
			Background(lipgloss.Color(t.HighlightBG)),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
		danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)),
		pane: lipgloss.NewStyle().Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)),
		paneOn: lipgloss.NewStyle().Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Title)),
		status: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.Color(t.StatusFG)).
			Background(lipgloss.Color(t.StatusBG)),
		statusEr: lipgloss.NewStyle().Padding(0, 1).Bold(true).
			Foreground(lipgloss.Color(t.Danger)).
			Background(lipgloss.Color(t.StatusBG)),
		dialog: lipgloss.NewStyle().Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)),
		dialogEr: lipgloss.NewStyle().Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Danger)),
		badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.HighlightFG)),
	}
}

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.modal != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderModal())
	}

	header := m.renderHeader()
	search := m.renderSearch()
	status := m.renderStatus()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(search) - lipgloss.Height(status)
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	body := m.renderBody(bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left, header, search, body, status)
}

func (m Model) renderHeader() string {
	title := m.styles.title.Render("usrgrp " + m.version)
	users := m.styles.tab.Render("Users")
	groups := m.styles.tab.Render("Groups")
	if m.tab == TabUsers {
		users = m.styles.tabOn.Render("Users")
	} else {
		groups = m.styles.tabOn.Render("Groups")
	}
	view := m.machine.View()
	snap := m.machine.Snapshot()
	counts := m.styles.muted.Render(fmt.Sprintf("  %d/%d users  %d/%d groups",
		len(view.Users), len(snap.Users), len(view.Groups), len(snap.Groups)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", users, groups, counts)
}

func (m Model) renderSearch() string {
	if m.searching {
		return "/" + m.searchInput.View()
	}
	if q := m.query().Text; q != "" {
		return m.styles.muted.Render("/" + q + "  (esc clears)")
	}
	return m.styles.muted.Render("press " + m.keymap.Search + " to search, " + m.keymap.Help + " for help")
}

func (m Model) renderStatus() string {
	text := m.status
	if text == "" {
		text = fmt.Sprintf("%s actions · %s filter · %s refresh · %s quit",
			m.keymap.Actions, m.keymap.Filter, m.keymap.Refresh, m.keymap.Quit)
	}
	style := m.styles.status
	if m.statusErr {
		style = m.styles.statusEr
	}
	return style.Width(m.width).Render(text)
}

func (m Model) renderBody(height int) string {
	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth
	interior := height - 2 // pane borders

	listPane := m.styles.pane
	detailPane := m.styles.pane
	if m.memberPane {
		detailPane = m.styles.paneOn
	} else {
		listPane = m.styles.paneOn
	}

	var list, detail string
	if m.tab == TabUsers {
		list = m.renderUserList(interior, leftWidth-4)
		detail = m.renderUserDetail(interior)
	} else {
		list = m.renderGroupList(interior, leftWidth-4)
		detail = m.renderGroupDetail(interior)
	}

	left := listPane.Width(leftWidth - 2).Height(interior).Render(list)
	right := detailPane.Width(rightWidth - 2).Height(interior).Render(detail)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// window returns the slice bounds that keep sel visible in a list of n rows
// shown h at a time.
func window(sel, n, h int) (int, int) {
	if h <= 0 || n <= h {
		return 0, n
	}
	start := sel - h/2
	if start < 0 {
		start = 0
	}
	if start+h > n {
		start = n - h
	}
	return start, start + h
}

func (m Model) renderUserList(height, width int) string {
	snap := m.machine.Snapshot()
	view := m.machine.View()
	var b strings.Builder
	b.WriteString(m.styles.header.Render(pad("NAME", 16) + pad("UID", 7) + "SHELL"))
	b.WriteString("\n")
	if len(view.Users) == 0 {
		b.WriteString(m.styles.muted.Render("no matching users"))
		return b.String()
	}
	sel := m.machine.Selection(m.activeKind())
	start, end := window(sel, len(view.Users), height-1)
	for i := start; i < end; i++ {
		u := snap.Users[view.Users[i]]
		line := truncate(pad(u.Name, 16)+pad(fmt.Sprintf("%d", u.UID), 7)+u.Shell, width)
		switch {
		case i == sel:
			b.WriteString(m.styles.rowOn.Render(line))
		case u.IsSystem():
			b.WriteString(m.styles.muted.Render(line))
		default:
			b.WriteString(m.styles.row.Render(line))
		}
		if i != end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderGroupList(height, width int) string {
	snap := m.machine.Snapshot()
	view := m.machine.View()
	var b strings.Builder
	b.WriteString(m.styles.header.Render(pad("NAME", 16) + pad("GID", 7) + "MEMBERS"))
	b.WriteString("\n")
	if len(view.Groups) == 0 {
		b.WriteString(m.styles.muted.Render("no matching groups"))
		return b.String()
	}
	sel := m.machine.Selection(m.activeKind())
	start, end := window(sel, len(view.Groups), height-1)
	for i := start; i < end; i++ {
		g := snap.Groups[view.Groups[i]]
		line := truncate(pad(g.Name, 16)+pad(fmt.Sprintf("%d", g.GID), 7)+fmt.Sprintf("%d", len(g.Members)), width)
		switch {
		case i == sel:
			b.WriteString(m.styles.rowOn.Render(line))
		case g.IsSystem():
			b.WriteString(m.styles.muted.Render(line))
		default:
			b.WriteString(m.styles.row.Render(line))
		}
		if i != end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderUserDetail(height int) string {
	u, ok := m.machine.SelectedUser()
	if !ok {
		return m.styles.muted.Render("nothing selected")
	}
	snap := m.machine.Snapshot()
	var b strings.Builder
	b.WriteString(m.styles.header.Render(u.Name))
	if badges := userBadges(u); badges != "" {
		b.WriteString("  " + m.styles.badge.Render(badges))
	}
	b.WriteString("\n\n")
	field := func(k, v string) {
		b.WriteString(m.styles.muted.Render(pad(k, 11)) + v + "\n")
	}
	field("uid", fmt.Sprintf("%d", u.UID))
	field("gid", fmt.Sprintf("%d", u.GID))
	if u.FullName != "" {
		field("full name", u.FullName)
	}
	home := u.Home
	if u.HomeMissing {
		home += m.styles.danger.Render("  (missing)")
	}
	field("home", home)
	shell := u.Shell
	if u.Inactive() {
		shell += m.styles.muted.Render("  (inactive)")
	}
	field("shell", shell)

	groups := snap.GroupsOf(u.Name)
	b.WriteString("\n" + m.styles.header.Render(fmt.Sprintf("Member of (%d)", len(groups))) + "\n")
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
		if g.GID == u.GID {
			names[i] += " (primary)"
		}
	}
	b.WriteString(m.renderMemberList(names, height-10))
	return b.String()
}

func (m Model) renderGroupDetail(height int) string {
	g, ok := m.machine.SelectedGroup()
	if !ok {
		return m.styles.muted.Render("nothing selected")
	}
	var b strings.Builder
	b.WriteString(m.styles.header.Render(g.Name))
	b.WriteString("\n\n")
	b.WriteString(m.styles.muted.Render(pad("gid", 11)) + fmt.Sprintf("%d", g.GID) + "\n")
	b.WriteString("\n" + m.styles.header.Render(fmt.Sprintf("Members (%d)", len(g.Members))) + "\n")
	b.WriteString(m.renderMemberList(g.Members, height-6))
	return b.String()
}

// renderMemberList renders the right-hand membership pane; when the pane
// has focus its cursor row is highlighted.
func (m Model) renderMemberList(names []string, height int) string {
	if len(names) == 0 {
		return m.styles.muted.Render("none")
	}
	var b strings.Builder
	start, end := window(m.memberSel, len(names), height)
	for i := start; i < end; i++ {
		if m.memberPane && i == m.memberSel {
			b.WriteString(m.styles.rowOn.Render(names[i]))
		} else {
			b.WriteString(m.styles.row.Render(names[i]))
		}
		if i != end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderModal() string {
	md := m.modal
	frame := m.styles.dialog
	if md.danger {
		frame = m.styles.dialogEr
	}

	var b strings.Builder
	title := m.styles.title.Render(md.title)
	if md.danger {
		title = m.styles.danger.Render(md.title)
	}
	b.WriteString(title + "\n\n")

	switch md.kind {
	case modalHelp:
		b.WriteString(m.help.View())
		b.WriteString("\n\n" + m.styles.muted.Render("esc closes"))

	case modalInfo:
		b.WriteString(md.message)
		b.WriteString("\n\n" + m.styles.muted.Render("any key closes"))

	case modalMenu, modalFilter:
		for i, item := range md.items {
			if i == md.sel {
				b.WriteString(m.styles.rowOn.Render("> " + item.label))
			} else {
				b.WriteString(m.styles.row.Render("  " + item.label))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n" + m.styles.muted.Render("enter selects · esc closes"))

	case modalPick:
		start, end := window(md.sel, len(md.list), 12)
		for i := start; i < end; i++ {
			mark := ""
			if md.multi {
				mark = "[ ] "
				if md.marked[i] {
					mark = "[x] "
				}
			}
			if i == md.sel {
				b.WriteString(m.styles.rowOn.Render("> " + mark + md.list[i]))
			} else {
				b.WriteString(m.styles.row.Render("  " + mark + md.list[i]))
			}
			b.WriteString("\n")
		}
		hint := "enter selects · esc cancels"
		if md.multi {
			hint = "space marks · enter applies · esc cancels"
		}
		b.WriteString("\n" + m.styles.muted.Render(hint))

	case modalConfirm:
		b.WriteString(md.message + "\n")
		for _, t := range md.toggles {
			b.WriteString("\n" + renderToggle(m.styles, t, false))
		}
		b.WriteString("\n\n" + m.styles.muted.Render("y confirms · n cancels · space toggles"))

	case modalInput, modalPassword, modalSudo:
		for i := range md.inputs {
			cursor := "  "
			if i == md.inputSel {
				cursor = "> "
			}
			b.WriteString(cursor + md.inputs[i].View() + "\n")
		}
		for i, t := range md.toggles {
			b.WriteString(renderToggle(m.styles, t, md.inputSel == len(md.inputs)+i) + "\n")
		}
		b.WriteString("\n" + m.styles.muted.Render("tab moves · space toggles · enter submits · esc cancels"))
	}

	if md.errText != "" {
		b.WriteString("\n" + m.styles.danger.Render(md.errText))
	}
	return frame.Render(b.String())
}

func renderToggle(s styles, t toggle, focused bool) string {
	mark := "[ ] "
	if t.on {
		mark = "[x] "
	}
	line := mark + t.label
	if focused {
		return s.rowOn.Render("> " + line)
	}
	return s.row.Render("  " + line)
}

func userBadges(u directory.User) string {
	var badges []string
	if u.Locked {
		badges = append(badges, "locked")
	}
	if u.NoPassword {
		badges = append(badges, "no-password")
	}
	if u.Expired {
		badges = append(badges, "expired")
	}
	return strings.Join(badges, " ")
}

func helpText(km config.Keymap) string {
	row := func(key, what string) string { return pad(key, 10) + what }
	return strings.Join([]string{
		row(km.Search, "search users and groups"),
		row(km.NextTab, "switch between users and groups"),
		row(km.Up+"/"+km.Down, "move selection (arrow keys work too)"),
		row(km.FocusPane, "focus the membership pane"),
		row(km.Actions, "open the actions menu"),
		row(km.Filter, "open the filter menu"),
		row(km.Refresh, "reload the account database"),
		row(km.Help, "this help"),
		row(km.Quit, "quit"),
		"",
		"Numeric searches match uid/gid exactly; text searches match",
		"names, full names, homes, shells and group membership.",
		"",
		"Destructive actions always ask for confirmation. When not",
		"running as root, the first action prompts for your sudo",
		"password; it is held in memory only and never logged.",
	}, "\n")
}

// pad and truncate measure display cells, not bytes, so wide and
// multi-byte names keep the columns aligned.
func pad(s string, n int) string {
	if runewidth.StringWidth(s) >= n {
		return s + " "
	}
	return runewidth.FillRight(s, n)
}

func truncate(s string, n int) string {
	if n > 3 && runewidth.StringWidth(s) > n {
		return runewidth.Truncate(s, n, "…")
	}
	return s
}
