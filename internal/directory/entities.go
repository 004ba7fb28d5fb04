package directory

import (
	"strings"
	"time"
)

// HumanIDThreshold separates system accounts from human accounts. Login.defs
// calls this UID_MIN; 1000 is the default on every mainstream distribution.
const HumanIDThreshold = 1000

// User is one record from the passwd database, plus flags derived from the
// shadow database and the filesystem at load time. Values are immutable once
// a snapshot is built; a refresh produces new ones.
type User struct {
	Name     string `json:"name"`
	UID      uint32 `json:"uid"`
	GID      uint32 `json:"gid"`
	FullName string `json:"fullName,omitempty"`
	Home     string `json:"home"`
	Shell    string `json:"shell"`

	// Derived from /etc/shadow when readable; all false otherwise.
	Locked     bool `json:"locked,omitempty"`
	NoPassword bool `json:"noPassword,omitempty"`
	Expired    bool `json:"expired,omitempty"`

	// Derived from a home directory check at load time.
	HomeMissing bool `json:"homeMissing,omitempty"`
}

// IsSystem reports whether the account is a system account (UID below the
// human threshold).
func (u User) IsSystem() bool {
	return u.UID < HumanIDThreshold
}

// Inactive reports whether the account's shell disallows interactive login.
func (u User) Inactive() bool {
	return strings.HasSuffix(u.Shell, "nologin") || strings.HasSuffix(u.Shell, "/false")
}

// Group is one record from the group database. Members holds usernames in
// file order with duplicates collapsed.
type Group struct {
	Name    string   `json:"name"`
	GID     uint32   `json:"gid"`
	Members []string `json:"members"`
}

// IsSystem reports whether the group is a system group.
func (g Group) IsSystem() bool {
	return g.GID < HumanIDThreshold
}

// HasMember reports whether name appears in the supplementary member list.
// Primary membership via the user's GID is not considered here.
func (g Group) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}

// ShellRegistry is the set of permitted login shells from the shells list,
// in file order. It exists only to validate shell-change requests.
type ShellRegistry struct {
	paths []string
}

// NewShellRegistry builds a registry from paths, dropping duplicates.
func NewShellRegistry(paths []string) ShellRegistry {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return ShellRegistry{paths: out}
}

// Paths returns the registered shell paths in file order.
func (r ShellRegistry) Paths() []string {
	return r.paths
}

// Contains reports whether path is a registered login shell.
func (r ShellRegistry) Contains(path string) bool {
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

// Len returns the number of registered shells.
func (r ShellRegistry) Len() int {
	return len(r.paths)
}

// Snapshot is a point-in-time view of the identity databases. It is built
// whole by the Loader and never mutated afterwards; readers hold indices
// into Users and Groups, never copies.
type Snapshot struct {
	Users    []User        `json:"users"`
	Groups   []Group       `json:"groups"`
	Shells   ShellRegistry `json:"-"`
	LoadedAt time.Time     `json:"loadedAt"`
	Version  uint64        `json:"version"`

	userIdx  map[string]int
	groupIdx map[string]int
}

// index builds the name lookup maps. Called once by the Loader after the
// record slices are final.
func (s *Snapshot) index() {
	s.userIdx = make(map[string]int, len(s.Users))
	for i, u := range s.Users {
		s.userIdx[u.Name] = i
	}
	s.groupIdx = make(map[string]int, len(s.Groups))
	for i, g := range s.Groups {
		s.groupIdx[g.Name] = i
	}
}

// User looks up a user by name.
func (s *Snapshot) User(name string) (User, bool) {
	i, ok := s.userIdx[name]
	if !ok {
		return User{}, false
	}
	return s.Users[i], true
}

// Group looks up a group by name.
func (s *Snapshot) Group(name string) (Group, bool) {
	i, ok := s.groupIdx[name]
	if !ok {
		return Group{}, false
	}
	return s.Groups[i], true
}

// GroupByGID looks up a group by numeric id. A dangling primary GID on a
// user resolves to not-found; callers render those as "unknown".
func (s *Snapshot) GroupByGID(gid uint32) (Group, bool) {
	for _, g := range s.Groups {
		if g.GID == gid {
			return g, true
		}
	}
	return Group{}, false
}

// GroupsOf returns the groups the named user belongs to: the group matching
// the user's primary GID, then every group listing the user as a member.
func (s *Snapshot) GroupsOf(name string) []Group {
	u, ok := s.User(name)
	var out []Group
	for _, g := range s.Groups {
		if ok && g.GID == u.GID {
			out = append(out, g)
			continue
		}
		if g.HasMember(name) {
			out = append(out, g)
		}
	}
	return out
}
