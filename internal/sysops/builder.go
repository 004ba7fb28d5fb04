package sysops

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"usrgrp/internal/directory"
)

// Command is one argument vector for an external account tool, plus
// optional secret input delivered on the child's stdin. Arguments are
// always passed as discrete elements; nothing here is ever joined into a
// shell string, which is why validation rejects rather than escapes.
type Command struct {
	Program string
	Args    []string

	// Stdin is written to the child process and closed. When Secret is
	// set the content must never appear in argv, logs, or captured output.
	Stdin  string
	Secret bool
}

// Redacted renders the command for logging. Stdin is always elided.
func (c Command) Redacted() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// namePattern is the conservative shape shadow-utils accepts for user and
// group names. Anything outside it — path separators, whitespace, shell
// metacharacters — is rejected outright.
var namePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

const maxNameLen = 32

// ValidateName checks a user or group name against the allowed shape.
// field names the input in the returned error.
func ValidateName(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(name) > maxNameLen {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("longer than %d characters", maxNameLen)}
	}
	if !namePattern.MatchString(name) {
		return &ValidationError{Field: field, Reason: "may contain only lowercase letters, digits, '-' and '_', and must not start with a digit"}
	}
	return nil
}

// ValidateID checks a user-supplied uid/gid string: a non-negative integer
// within the 32-bit id range. Out-of-range values are rejected, never
// truncated.
func ValidateID(field, value string) (uint32, error) {
	var id uint64
	if value == "" {
		return 0, &ValidationError{Field: field, Reason: "must not be empty"}
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, &ValidationError{Field: field, Reason: "must be a non-negative integer"}
		}
		id = id*10 + uint64(r-'0')
		if id > math.MaxUint32 {
			return 0, &ValidationError{Field: field, Reason: "exceeds the id range"}
		}
	}
	return uint32(id), nil
}

// validateFullName checks a GECOS value: colons would corrupt the record
// separator and control characters have no business in it.
func validateFullName(value string) error {
	if strings.ContainsRune(value, ':') {
		return &ValidationError{Field: "full name", Reason: "must not contain ':'"}
	}
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			return &ValidationError{Field: "full name", Reason: "must not contain control characters"}
		}
	}
	return nil
}

// Validate checks an intent's input shape against the given snapshot. It
// runs both when a dialog's input is submitted and again, against the
// latest snapshot, immediately before execution; the caller treats a
// pass-then-fail sequence as stale state.
func Validate(in Intent, snap *directory.Snapshot) error {
	switch a := in.(type) {
	case AddToGroups:
		return validateUserAndGroups(a.Username, a.Groups)
	case RemoveFromGroups:
		return validateUserAndGroups(a.Username, a.Groups)
	case AddMembers:
		return validateGroupAndUsers(a.Group, a.Usernames)
	case RemoveMembers:
		return validateGroupAndUsers(a.Group, a.Usernames)
	case ChangeShell:
		if err := ValidateName("user name", a.Username); err != nil {
			return err
		}
		if !snap.Shells.Contains(a.Shell) {
			return &ValidationError{Field: "shell", Reason: fmt.Sprintf("%s is not a registered login shell", a.Shell)}
		}
		return nil
	case ChangeFullName:
		if err := ValidateName("user name", a.Username); err != nil {
			return err
		}
		return validateFullName(a.FullName)
	case RenameUser:
		if err := ValidateName("current name", a.OldName); err != nil {
			return err
		}
		return ValidateName("new name", a.NewName)
	case CreateUser:
		if err := ValidateName("user name", a.Username); err != nil {
			return err
		}
		if _, exists := snap.User(a.Username); exists {
			return &ValidationError{Field: "user name", Reason: "already exists"}
		}
		return nil
	case DeleteUser:
		return ValidateName("user name", a.Username)
	case CreateGroup:
		if err := ValidateName("group name", a.Name); err != nil {
			return err
		}
		if _, exists := snap.Group(a.Name); exists {
			return &ValidationError{Field: "group name", Reason: "already exists"}
		}
		return nil
	case DeleteGroup:
		return ValidateName("group name", a.Name)
	case RenameGroup:
		if err := ValidateName("current name", a.OldName); err != nil {
			return err
		}
		return ValidateName("new name", a.NewName)
	case SetPassword:
		if err := ValidateName("user name", a.Username); err != nil {
			return err
		}
		if a.Password == "" {
			return &ValidationError{Field: "password", Reason: "must not be empty; use the expire action to force a reset"}
		}
		return nil
	case ExpirePassword:
		return ValidateName("user name", a.Username)
	default:
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unsupported intent %T", in)}
	}
}

func validateUserAndGroups(username string, groups []string) error {
	if err := ValidateName("user name", username); err != nil {
		return err
	}
	if len(groups) == 0 {
		return &ValidationError{Field: "groups", Reason: "select at least one group"}
	}
	for _, g := range groups {
		if err := ValidateName("group name", g); err != nil {
			return err
		}
	}
	return nil
}

func validateGroupAndUsers(group string, users []string) error {
	if err := ValidateName("group name", group); err != nil {
		return err
	}
	if len(users) == 0 {
		return &ValidationError{Field: "members", Reason: "select at least one user"}
	}
	for _, u := range users {
		if err := ValidateName("user name", u); err != nil {
			return err
		}
	}
	return nil
}

// Build maps a validated intent to the command sequence that realizes it.
// The mapping to programs and flags is a fixed contract with the host's
// shadow-utils tooling. Build re-runs Validate against snap, so a command
// can never be produced from input that no longer validates.
func Build(in Intent, snap *directory.Snapshot) ([]Command, error) {
	if err := Validate(in, snap); err != nil {
		return nil, err
	}

	switch a := in.(type) {
	case AddToGroups:
		var cmds []Command
		for _, g := range a.Groups {
			cmds = append(cmds, Command{Program: "gpasswd", Args: []string{"-a", a.Username, g}})
		}
		return cmds, nil
	case RemoveFromGroups:
		var cmds []Command
		for _, g := range a.Groups {
			cmds = append(cmds, Command{Program: "gpasswd", Args: []string{"-d", a.Username, g}})
		}
		return cmds, nil
	case AddMembers:
		var cmds []Command
		for _, u := range a.Usernames {
			cmds = append(cmds, Command{Program: "gpasswd", Args: []string{"-a", u, a.Group}})
		}
		return cmds, nil
	case RemoveMembers:
		var cmds []Command
		for _, u := range a.Usernames {
			cmds = append(cmds, Command{Program: "gpasswd", Args: []string{"-d", u, a.Group}})
		}
		return cmds, nil
	case ChangeShell:
		return []Command{{Program: "usermod", Args: []string{"-s", a.Shell, a.Username}}}, nil
	case ChangeFullName:
		return []Command{{Program: "usermod", Args: []string{"-c", a.FullName, a.Username}}}, nil
	case RenameUser:
		return []Command{{Program: "usermod", Args: []string{"-l", a.NewName, a.OldName}}}, nil
	case CreateUser:
		args := []string{}
		if a.CreateHome {
			args = append(args, "-m")
		}
		args = append(args, a.Username)
		cmds := []Command{{Program: "useradd", Args: args}}
		if a.Password != "" {
			cmds = append(cmds, passwordCommand(a.Username, a.Password))
		}
		if a.Admin {
			cmds = append(cmds, Command{Program: "gpasswd", Args: []string{"-a", a.Username, AdminGroup()}})
		}
		return cmds, nil
	case DeleteUser:
		args := []string{}
		if a.DeleteHome {
			args = append(args, "-r")
		}
		args = append(args, a.Username)
		return []Command{{Program: "userdel", Args: args}}, nil
	case CreateGroup:
		return []Command{{Program: "groupadd", Args: []string{a.Name}}}, nil
	case DeleteGroup:
		return []Command{{Program: "groupdel", Args: []string{a.Name}}}, nil
	case RenameGroup:
		return []Command{{Program: "groupmod", Args: []string{"-n", a.NewName, a.OldName}}}, nil
	case SetPassword:
		cmds := []Command{passwordCommand(a.Username, a.Password)}
		if a.MustChange {
			cmds = append(cmds, Command{Program: "chage", Args: []string{"-d", "0", a.Username}})
		}
		return cmds, nil
	case ExpirePassword:
		return []Command{{Program: "chage", Args: []string{"-d", "0", a.Username}}}, nil
	}
	return nil, &ValidationError{Field: "action", Reason: fmt.Sprintf("unsupported intent %T", in)}
}

// passwordCommand feeds chpasswd its "user:password" line on stdin. The
// password never becomes an argument, so it cannot leak through process
// listings or logs.
func passwordCommand(username, password string) Command {
	return Command{
		Program: "chpasswd",
		Stdin:   username + ":" + password + "\n",
		Secret:  true,
	}
}
