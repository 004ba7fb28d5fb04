package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usrgrp/internal/directory"
)

func testSnapshot(t *testing.T) *directory.Snapshot {
	t.Helper()
	src := directory.MapSource{
		"/etc/passwd": strings.Join([]string{
			"root:x:0:0:root:/root:/bin/bash",
			"daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin",
			"alice:x:1001:1001:Alice Aster:/home/alice:/bin/bash",
			"bob:x:1002:1002:Bob Builder:/home/bob:/bin/zsh",
			"carol:x:1100:1100::/home/carol:/usr/sbin/nologin",
		}, "\n"),
		"/etc/group": strings.Join([]string{
			"root:x:0:",
			"docker:x:999:alice",
			"alice:x:1001:",
			"bob:x:1002:",
			"carol:x:1100:",
		}, "\n"),
		"/etc/shadow": "alice:!$6$x:19000:0:99999:7:::\n",
	}
	loader := directory.NewLoader(src, directory.DefaultPaths(), nil)
	loader.SetHomeCheck(func(path string) bool { return path != "/home/carol" })
	snap, err := loader.Load()
	require.NoError(t, err)
	return snap
}

func userNames(snap *directory.Snapshot, v View) []string {
	names := make([]string, len(v.Users))
	for i, idx := range v.Users {
		names[i] = snap.Users[idx].Name
	}
	return names
}

func TestApplyEmptyQuery(t *testing.T) {
	snap := testSnapshot(t)

	v := Apply(snap, Query{})
	assert.Len(t, v.Users, len(snap.Users), "empty query keeps everything")
	assert.Len(t, v.Groups, len(snap.Groups))
	// Snapshot order is preserved.
	assert.Equal(t, []string{"root", "daemon", "alice", "bob", "carol"}, userNames(snap, v))
}

func TestApplyTextMatch(t *testing.T) {
	snap := testSnapshot(t)

	v := Apply(snap, Query{Text: "ALICE"})
	assert.Equal(t, []string{"alice"}, userNames(snap, v))

	// Full name matches too.
	v = Apply(snap, Query{Text: "builder"})
	assert.Equal(t, []string{"bob"}, userNames(snap, v))

	// Group-name membership matches the user.
	v = Apply(snap, Query{Text: "docker"})
	assert.Equal(t, []string{"alice"}, userNames(snap, v))
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "docker", snap.Groups[v.Groups[0]].Name)
}

func TestApplyNumericIsExact(t *testing.T) {
	snap := testSnapshot(t)

	v := Apply(snap, Query{Text: "1001"})
	assert.Equal(t, []string{"alice"}, userNames(snap, v))

	// "100" must not substring-match uid 1001 or 1100.
	v = Apply(snap, Query{Text: "100"})
	assert.Empty(t, v.Users)
}

func TestApplyScopes(t *testing.T) {
	snap := testSnapshot(t)

	v := Apply(snap, Query{UsersScope: UsersHumanOnly})
	assert.Equal(t, []string{"alice", "bob", "carol"}, userNames(snap, v))

	v = Apply(snap, Query{UsersScope: UsersSystemOnly})
	assert.Equal(t, []string{"root", "daemon"}, userNames(snap, v))

	v = Apply(snap, Query{GroupsScope: GroupsSystemOnly})
	require.Len(t, v.Groups, 2)
}

func TestApplyChips(t *testing.T) {
	snap := testSnapshot(t)

	v := Apply(snap, Query{Chips: Chips{Locked: true}})
	assert.Equal(t, []string{"alice"}, userNames(snap, v))

	v = Apply(snap, Query{Chips: Chips{NoHome: true}})
	assert.Equal(t, []string{"carol"}, userNames(snap, v))

	v = Apply(snap, Query{Chips: Chips{Inactive: true}})
	assert.Equal(t, []string{"daemon", "carol"}, userNames(snap, v))

	// Chips combine with AND.
	v = Apply(snap, Query{Chips: Chips{Inactive: true, NoHome: true}})
	assert.Equal(t, []string{"carol"}, userNames(snap, v))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 5))
	assert.Equal(t, 2, Clamp(2, 5))
	assert.Equal(t, 4, Clamp(9, 5))
	assert.Equal(t, 0, Clamp(3, 0))
}
