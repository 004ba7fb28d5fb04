package sysops

import (
	"fmt"
	"os"
	"strings"
)

// Intent is one validated-to-be request to change identity state. Each
// variant carries its target entity by name, captured when the originating
// dialog opened, so a snapshot refresh cannot redirect it.
//
// Destructive reports whether the intent removes accounts, memberships, or
// working credentials; destructive intents demand an explicit confirmation
// step before execution.
type Intent interface {
	// Describe returns a short human-readable summary, safe to log.
	Describe() string
	Destructive() bool
}

// AdminGroup returns the group granting administrative rights, "wheel"
// unless overridden via USRGRP_ADMIN_GROUP.
func AdminGroup() string {
	if g := strings.TrimSpace(os.Getenv("USRGRP_ADMIN_GROUP")); g != "" {
		return g
	}
	return "wheel"
}

// AddToGroups adds a user to one or more supplementary groups.
type AddToGroups struct {
	Username string
	Groups   []string
}

func (a AddToGroups) Describe() string {
	return fmt.Sprintf("add user %q to %s", a.Username, joinQuoted(a.Groups))
}
func (AddToGroups) Destructive() bool { return false }

// RemoveFromGroups removes a user from one or more supplementary groups.
type RemoveFromGroups struct {
	Username string
	Groups   []string
}

func (a RemoveFromGroups) Describe() string {
	return fmt.Sprintf("remove user %q from %s", a.Username, joinQuoted(a.Groups))
}
func (RemoveFromGroups) Destructive() bool { return true }

// AddMembers adds one or more users to a group.
type AddMembers struct {
	Group     string
	Usernames []string
}

func (a AddMembers) Describe() string {
	return fmt.Sprintf("add %s to group %q", joinQuoted(a.Usernames), a.Group)
}
func (AddMembers) Destructive() bool { return false }

// RemoveMembers removes one or more users from a group.
type RemoveMembers struct {
	Group     string
	Usernames []string
}

func (a RemoveMembers) Describe() string {
	return fmt.Sprintf("remove %s from group %q", joinQuoted(a.Usernames), a.Group)
}
func (RemoveMembers) Destructive() bool { return true }

// ChangeShell sets a user's login shell. The shell must be present in the
// shell registry of the snapshot the dialog was opened against.
type ChangeShell struct {
	Username string
	Shell    string
}

func (a ChangeShell) Describe() string {
	return fmt.Sprintf("change shell of %q to %s", a.Username, a.Shell)
}
func (ChangeShell) Destructive() bool { return false }

// ChangeFullName sets a user's GECOS full-name field.
type ChangeFullName struct {
	Username string
	FullName string
}

func (a ChangeFullName) Describe() string {
	return fmt.Sprintf("change full name of %q", a.Username)
}
func (ChangeFullName) Destructive() bool { return false }

// RenameUser changes a login name.
type RenameUser struct {
	OldName string
	NewName string
}

func (a RenameUser) Describe() string {
	return fmt.Sprintf("rename user %q to %q", a.OldName, a.NewName)
}
func (RenameUser) Destructive() bool { return false }

// CreateUser creates an account, optionally with a home directory, an
// initial password, and membership in the admin group. The password is a
// secret: it is delivered to chpasswd on stdin and never logged.
type CreateUser struct {
	Username   string
	Password   string
	CreateHome bool
	Admin      bool
}

func (a CreateUser) Describe() string {
	return fmt.Sprintf("create user %q", a.Username)
}
func (CreateUser) Destructive() bool { return false }

// DeleteUser removes an account and optionally its home directory.
type DeleteUser struct {
	Username   string
	DeleteHome bool
}

func (a DeleteUser) Describe() string {
	return fmt.Sprintf("delete user %q", a.Username)
}
func (DeleteUser) Destructive() bool { return true }

// CreateGroup creates a group.
type CreateGroup struct {
	Name string
}

func (a CreateGroup) Describe() string {
	return fmt.Sprintf("create group %q", a.Name)
}
func (CreateGroup) Destructive() bool { return false }

// DeleteGroup removes a group.
type DeleteGroup struct {
	Name string
}

func (a DeleteGroup) Describe() string {
	return fmt.Sprintf("delete group %q", a.Name)
}
func (DeleteGroup) Destructive() bool { return true }

// RenameGroup changes a group name.
type RenameGroup struct {
	OldName string
	NewName string
}

func (a RenameGroup) Describe() string {
	return fmt.Sprintf("rename group %q to %q", a.OldName, a.NewName)
}
func (RenameGroup) Destructive() bool { return false }

// SetPassword sets a user's password, optionally forcing a change at next
// login. An empty password is rejected at validation; expiring a password
// without setting one is the separate ExpirePassword intent.
type SetPassword struct {
	Username   string
	Password   string
	MustChange bool
}

func (a SetPassword) Describe() string {
	return fmt.Sprintf("set password of %q", a.Username)
}
func (SetPassword) Destructive() bool { return false }

// ExpirePassword expires a user's password immediately, forcing a reset at
// next login.
type ExpirePassword struct {
	Username string
}

func (a ExpirePassword) Describe() string {
	return fmt.Sprintf("expire password of %q", a.Username)
}
func (ExpirePassword) Destructive() bool { return true }

func joinQuoted(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
