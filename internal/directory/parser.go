package directory

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseStats reports what a parse pass dropped. Skipped counts lines that
// did not have enough fields to form a record; blank lines are not counted.
// Err is the scanner error that ended the pass early, if any; the records
// parsed before it are still returned.
type ParseStats struct {
	Skipped int
	Err     error
}

// maxLine bounds scanner buffers. Identity database lines are short, but a
// corrupted file must not abort the parse.
const maxLine = 1024 * 1024

// ParsePasswd reads passwd-format records from r. Parsing never fails:
// lines with fewer than seven colon-separated fields are skipped and
// counted, non-numeric uid/gid fields coerce to 0, and invalid UTF-8 is
// replaced rather than rejected.
func ParsePasswd(r io.Reader) ([]User, ParseStats) {
	var users []User
	var stats ParseStats
	stats.Err = scanLines(r, func(line string) {
		parts := strings.Split(line, ":")
		if len(parts) < 7 {
			stats.Skipped++
			return
		}
		users = append(users, User{
			Name:     parts[0],
			UID:      parseID(parts[2]),
			GID:      parseID(parts[3]),
			FullName: parts[4],
			Home:     parts[5],
			Shell:    parts[6],
		})
	})
	return users, stats
}

// ParseGroup reads group-format records from r. Lines with fewer than three
// fields are skipped and counted. The member field splits on commas; empty
// and duplicate member names are dropped.
func ParseGroup(r io.Reader) ([]Group, ParseStats) {
	var groups []Group
	var stats ParseStats
	stats.Err = scanLines(r, func(line string) {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			stats.Skipped++
			return
		}
		var members []string
		if len(parts) >= 4 && parts[3] != "" {
			seen := make(map[string]struct{})
			for _, m := range strings.Split(parts[3], ",") {
				if m == "" {
					continue
				}
				if _, dup := seen[m]; dup {
					continue
				}
				seen[m] = struct{}{}
				members = append(members, m)
			}
		}
		groups = append(groups, Group{
			Name:    parts[0],
			GID:     parseID(parts[2]),
			Members: members,
		})
	})
	return groups, stats
}

// ParseShells reads a shells list from r: one absolute path per line, blank
// lines and comment lines ignored.
func ParseShells(r io.Reader) []string {
	var shells []string
	scanLines(r, func(line string) {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			return
		}
		shells = append(shells, t)
	})
	return shells
}

// ShadowState carries the password-state flags derived from one shadow
// record.
type ShadowState struct {
	Locked     bool
	NoPassword bool
	Expired    bool
}

// ParseShadow reads shadow-format records from r and derives password-state
// flags per username. A hash starting with "!" is locked ("*" also counts:
// it permits no password login), an empty hash is a no-password account, and
// a last-change field of 0 marks the password expired.
func ParseShadow(r io.Reader) map[string]ShadowState {
	states := make(map[string]ShadowState)
	scanLines(r, func(line string) {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			return
		}
		hash := parts[1]
		states[parts[0]] = ShadowState{
			Locked:     strings.HasPrefix(hash, "!") || hash == "*",
			NoPassword: hash == "",
			Expired:    parts[2] == "0",
		}
	})
	return states
}

// scanLines feeds each non-blank line of r to fn, sanitized to valid UTF-8.
// Passwd and group files have no comment convention, so comment stripping is
// left to the callers that want it. A scanner error (for example a single
// line beyond maxLine) ends the pass early and is returned; whatever parsed
// so far is kept.
func scanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

// parseID parses a uid/gid field. Non-numeric or out-of-range values coerce
// to 0 so a damaged record still loads; callers that accept user input must
// validate ranges themselves instead of relying on this.
func parseID(s string) uint32 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}
