// Package tui renders the interactive interface and translates key input
// into intents for the action machine. It never touches the system
// directly: every read goes through the machine's snapshot and every write
// through the machine's workflow.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"usrgrp/internal/action"
	"usrgrp/internal/config"
	"usrgrp/internal/search"
)

// Tab selects the major view.
type Tab int

const (
	TabUsers Tab = iota
	TabGroups
)

// modalKind discriminates the dialog currently on screen. modalNone means
// the lists have focus.
type modalKind int

const (
	modalNone modalKind = iota
	modalMenu
	modalFilter
	modalInput
	modalPick
	modalConfirm
	modalPassword
	modalSudo
	modalInfo
	modalHelp
)

// menuItem is one row of an action or filter menu.
type menuItem struct {
	label string
	do    func(m *Model) tea.Cmd
}

// toggle is a boolean row in a dialog.
type toggle struct {
	label string
	on    bool
}

// modal holds the state of whichever dialog is open. One struct covers all
// kinds; the fields a kind does not use stay zero.
type modal struct {
	kind  modalKind
	title string

	// menu / filter rows
	items []menuItem
	sel   int

	// pick lists (shells, groups, members); multi allows space-marking
	list   []string
	multi  bool
	marked map[int]bool

	// text inputs, cycled with tab; toggles follow the inputs
	inputs   []textinput.Model
	inputSel int
	toggles  []toggle

	// confirm / info
	message string
	danger  bool

	// inline validation error shown under the inputs
	errText string

	// submit consumes the dialog state and drives the machine
	submit func(m *Model) tea.Cmd
}

// Model is the bubbletea model. The action machine owns all identity data;
// the model owns only presentation state.
type Model struct {
	machine *action.Machine
	theme   config.Theme
	keymap  config.Keymap
	log     logrus.FieldLogger
	styles  styles

	version   string
	needsSudo bool
	sudoSet   bool

	tab           Tab
	width, height int
	memberPane    bool // focus on the member-of / members pane
	memberSel     int

	searching   bool
	searchInput textinput.Model

	modal *modal
	help  viewport.Model

	status    string
	statusErr bool
}

// Options configures NewModel.
type Options struct {
	Machine   *action.Machine
	Theme     config.Theme
	Keymap    config.Keymap
	Filters   config.Filters
	Log       logrus.FieldLogger
	Version   string
	NeedsSudo bool
}

// NewModel builds the initial interface state and seeds the machine's view
// with the persisted filters.
func NewModel(opts Options) Model {
	si := textinput.New()
	si.Placeholder = "search"
	si.CharLimit = 64
	si.Width = 28

	opts.Machine.SetQuery(opts.Filters.Query())

	m := Model{
		machine:     opts.Machine,
		theme:       opts.Theme,
		keymap:      opts.Keymap,
		log:         opts.Log,
		version:     opts.Version,
		needsSudo:   opts.NeedsSudo,
		searchInput: si,
	}
	m.styles = newStyles(opts.Theme)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// query returns the machine's active query.
func (m *Model) query() search.Query {
	return m.machine.Query()
}

// activeKind maps the current tab to an entity kind.
func (m *Model) activeKind() action.EntityKind {
	if m.tab == TabUsers {
		return action.KindUser
	}
	return action.KindGroup
}
