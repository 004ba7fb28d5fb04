package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPasswd = `root:x:0:0:root:/root:/bin/bash
alice:x:1001:1001:Alice A:/home/alice:/bin/bash
bob:x:1002:1002::/home/bob:/usr/sbin/nologin
`

const testGroup = `root:x:0:
alice:x:1001:
wheel:x:10:alice
docker:x:999:alice,bob
`

func testSource() MapSource {
	return MapSource{
		"/etc/passwd": testPasswd,
		"/etc/group":  testGroup,
		"/etc/shells": "/bin/sh\n/bin/bash\n",
		"/etc/shadow": "alice:!$6$x:19000:0:99999:7:::\n",
	}
}

func newTestLoader(src MapSource) *Loader {
	l := NewLoader(src, DefaultPaths(), nil)
	l.SetHomeCheck(func(string) bool { return true })
	return l
}

func TestLoaderLoad(t *testing.T) {
	loader := newTestLoader(testSource())

	snap, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, snap.Users, 3)
	require.Len(t, snap.Groups, 4)
	assert.Equal(t, uint64(1), snap.Version)

	// Sorted by uid/gid.
	assert.Equal(t, "root", snap.Users[0].Name)
	assert.Equal(t, "alice", snap.Users[1].Name)
	assert.Equal(t, uint32(0), snap.Groups[0].GID)
	assert.Equal(t, uint32(1001), snap.Groups[3].GID)

	alice, ok := snap.User("alice")
	require.True(t, ok)
	assert.True(t, alice.Locked, "shadow flags applied")

	groups := snap.GroupsOf("alice")
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	assert.ElementsMatch(t, []string{"alice", "wheel", "docker"}, names)

	assert.True(t, snap.Shells.Contains("/bin/bash"))
}

func TestLoaderVersionIncreases(t *testing.T) {
	loader := newTestLoader(testSource())

	first, err := loader.Load()
	require.NoError(t, err)
	second, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, first.Version+1, second.Version)
}

func TestLoaderMissingPasswdIsFatal(t *testing.T) {
	loader := newTestLoader(MapSource{})

	_, err := loader.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoaderDegradesWithoutOptionalSources(t *testing.T) {
	loader := newTestLoader(MapSource{"/etc/passwd": testPasswd})

	snap, err := loader.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Users, 3)
	assert.Empty(t, snap.Groups)
	assert.Equal(t, 0, snap.Shells.Len())

	// No shadow data means no password-state flags.
	alice, ok := snap.User("alice")
	require.True(t, ok)
	assert.False(t, alice.Locked)
}

func TestLoaderHomeMissing(t *testing.T) {
	loader := NewLoader(testSource(), DefaultPaths(), nil)
	loader.SetHomeCheck(func(path string) bool { return path == "/root" })

	snap, err := loader.Load()
	require.NoError(t, err)

	root, _ := snap.User("root")
	alice, _ := snap.User("alice")
	assert.False(t, root.HomeMissing)
	assert.True(t, alice.HomeMissing)
}
