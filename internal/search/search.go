// Package search derives filtered views over a directory snapshot. A View
// holds indices into the snapshot's record slices, so applying a query never
// copies or mutates the snapshot itself and is cheap enough to rerun on
// every keystroke.
package search

import (
	"strconv"
	"strings"

	"usrgrp/internal/directory"
)

// UsersScope narrows the users list before text matching.
type UsersScope int

const (
	UsersAll UsersScope = iota
	UsersHumanOnly
	UsersSystemOnly
)

// GroupsScope narrows the groups list before text matching.
type GroupsScope int

const (
	GroupsAll GroupsScope = iota
	GroupsHumanOnly
	GroupsSystemOnly
)

// Chips are combinable refinements for the users list. Unlike scopes,
// several chips can be active at once; each active chip must hold.
type Chips struct {
	Inactive   bool
	NoHome     bool
	Locked     bool
	NoPassword bool
	Expired    bool
}

// Query is everything that shapes a view: free text plus structural filters.
type Query struct {
	Text        string
	UsersScope  UsersScope
	GroupsScope GroupsScope
	Chips       Chips
}

// View holds the matching entries of one snapshot, as indices into
// Snapshot.Users and Snapshot.Groups in snapshot order.
type View struct {
	Users  []int
	Groups []int
}

// Apply derives the view of snap selected by q. An empty query text keeps
// every entry that passes the structural filters, in snapshot order.
//
// Text matching is case-insensitive substring over name, full name, home,
// and shell, plus the names of groups a user belongs to; groups match on
// name and member usernames. A wholly numeric query additionally matches
// exact uid/gid equality, so "10" finds uid 10 but not uid 1000.
func Apply(snap *directory.Snapshot, q Query) View {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	numeric := isNumeric(text)

	var view View
	for i, u := range snap.Users {
		if !inUsersScope(u, q.UsersScope) || !chipsMatch(u, q.Chips) {
			continue
		}
		if text != "" && !userMatches(snap, u, text, numeric) {
			continue
		}
		view.Users = append(view.Users, i)
	}
	for i, g := range snap.Groups {
		if !inGroupsScope(g, q.GroupsScope) {
			continue
		}
		if text != "" && !groupMatches(g, text, numeric) {
			continue
		}
		view.Groups = append(view.Groups, i)
	}
	return view
}

func inUsersScope(u directory.User, s UsersScope) bool {
	switch s {
	case UsersHumanOnly:
		return !u.IsSystem()
	case UsersSystemOnly:
		return u.IsSystem()
	}
	return true
}

func inGroupsScope(g directory.Group, s GroupsScope) bool {
	switch s {
	case GroupsHumanOnly:
		return !g.IsSystem()
	case GroupsSystemOnly:
		return g.IsSystem()
	}
	return true
}

func chipsMatch(u directory.User, c Chips) bool {
	if c.Inactive && !u.Inactive() {
		return false
	}
	if c.NoHome && !u.HomeMissing {
		return false
	}
	if c.Locked && !u.Locked {
		return false
	}
	if c.NoPassword && !u.NoPassword {
		return false
	}
	if c.Expired && !u.Expired {
		return false
	}
	return true
}

func userMatches(snap *directory.Snapshot, u directory.User, text string, numeric bool) bool {
	if numeric {
		if strconv.FormatUint(uint64(u.UID), 10) == text ||
			strconv.FormatUint(uint64(u.GID), 10) == text {
			return true
		}
	}
	if strings.Contains(strings.ToLower(u.Name), text) ||
		strings.Contains(strings.ToLower(u.FullName), text) ||
		strings.Contains(strings.ToLower(u.Home), text) ||
		strings.Contains(strings.ToLower(u.Shell), text) {
		return true
	}
	for _, g := range snap.GroupsOf(u.Name) {
		if strings.Contains(strings.ToLower(g.Name), text) {
			return true
		}
	}
	return false
}

func groupMatches(g directory.Group, text string, numeric bool) bool {
	if numeric && strconv.FormatUint(uint64(g.GID), 10) == text {
		return true
	}
	if strings.Contains(strings.ToLower(g.Name), text) {
		return true
	}
	for _, m := range g.Members {
		if strings.Contains(strings.ToLower(m), text) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Clamp bounds a selection index to [0, n): never negative, never past the
// end, and 0 for an empty list.
func Clamp(idx, n int) int {
	if n <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
