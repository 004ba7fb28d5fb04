package directory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSourceUnavailable means the passwd database itself could not be read.
// A refresh that fails this way keeps the previous snapshot in place.
var ErrSourceUnavailable = errors.New("identity database unavailable")

// Source is the read capability the Loader depends on. Production code uses
// FileSource; tests substitute an in-memory map.
type Source interface {
	ReadFile(path string) ([]byte, error)
}

// FileSource reads from the local filesystem.
type FileSource struct{}

func (FileSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapSource serves file contents from memory. Missing paths report
// os.ErrNotExist, mirroring the filesystem.
type MapSource map[string]string

func (m MapSource) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return []byte(s), nil
}

// Paths names the identity database files a Loader reads.
type Paths struct {
	Passwd string
	Group  string
	Shells string
	Shadow string
}

// DefaultPaths returns the standard file locations.
func DefaultPaths() Paths {
	return Paths{
		Passwd: "/etc/passwd",
		Group:  "/etc/group",
		Shells: "/etc/shells",
		Shadow: "/etc/shadow",
	}
}

// Loader builds snapshots from a Source. Each Load produces a fresh,
// fully-assembled Snapshot with a monotonically increasing version; the
// caller publishes it by replacing its own reference.
type Loader struct {
	src   Source
	paths Paths
	log   logrus.FieldLogger

	// homeExists is swappable for tests; nil means os.Stat.
	homeExists func(path string) bool

	version uint64
}

// NewLoader returns a Loader reading the given paths through src.
func NewLoader(src Source, paths Paths, log logrus.FieldLogger) *Loader {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Loader{src: src, paths: paths, log: log}
}

// SetHomeCheck overrides the home directory existence probe.
func (l *Loader) SetHomeCheck(fn func(path string) bool) {
	l.homeExists = fn
}

// Load reads the passwd, group, shells, and shadow sources and assembles a
// Snapshot. Only an unreadable passwd file is fatal; the group database
// degrades to an empty list with a logged warning, and the shells and
// shadow sources are optional by design (shadow is root-only).
func (l *Loader) Load() (*Snapshot, error) {
	passwdRaw, err := l.src.ReadFile(l.paths.Passwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, l.paths.Passwd, err)
	}
	users, userStats := ParsePasswd(bytes.NewReader(passwdRaw))
	if userStats.Skipped > 0 {
		l.log.WithField("skipped", userStats.Skipped).Warn("malformed passwd lines skipped")
	}
	if userStats.Err != nil {
		l.log.WithError(userStats.Err).Warn("passwd parse ended early, remainder of file ignored")
	}

	var groups []Group
	if groupRaw, err := l.src.ReadFile(l.paths.Group); err != nil {
		l.log.WithError(err).Warn("group database unreadable, continuing without groups")
	} else {
		var groupStats ParseStats
		groups, groupStats = ParseGroup(bytes.NewReader(groupRaw))
		if groupStats.Skipped > 0 {
			l.log.WithField("skipped", groupStats.Skipped).Warn("malformed group lines skipped")
		}
		if groupStats.Err != nil {
			l.log.WithError(groupStats.Err).Warn("group parse ended early, remainder of file ignored")
		}
	}

	var shells []string
	if shellsRaw, err := l.src.ReadFile(l.paths.Shells); err == nil {
		shells = ParseShells(bytes.NewReader(shellsRaw))
	}

	shadow := map[string]ShadowState{}
	if shadowRaw, err := l.src.ReadFile(l.paths.Shadow); err == nil {
		shadow = ParseShadow(bytes.NewReader(shadowRaw))
	}

	exists := l.homeExists
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	for i := range users {
		if st, ok := shadow[users[i].Name]; ok {
			users[i].Locked = st.Locked
			users[i].NoPassword = st.NoPassword
			users[i].Expired = st.Expired
		}
		users[i].HomeMissing = users[i].Home != "" && !exists(users[i].Home)
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].GID < groups[j].GID })

	l.version++
	snap := &Snapshot{
		Users:    users,
		Groups:   groups,
		Shells:   NewShellRegistry(shells),
		LoadedAt: time.Now(),
		Version:  l.version,
	}
	snap.index()

	l.log.WithFields(logrus.Fields{
		"users":   len(users),
		"groups":  len(groups),
		"shells":  snap.Shells.Len(),
		"version": snap.Version,
	}).Debug("snapshot loaded")
	return snap, nil
}
