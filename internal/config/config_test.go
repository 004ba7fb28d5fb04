package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usrgrp/internal/search"
)

func TestThemeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.conf")

	theme := DefaultTheme()
	theme.Danger = "#ff0000"
	require.NoError(t, theme.Save(path))

	loaded := LoadTheme(path)
	assert.Equal(t, theme, loaded)
}

func TestLoadThemePartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.conf")
	// Hex colors must be quoted in hand-written files: a bare # starts an
	// ini comment. Save always quotes them.
	require.NoError(t, os.WriteFile(path, []byte("title = \"#123456\"\n"), 0o644))

	theme := LoadTheme(path)
	assert.Equal(t, "#123456", theme.Title)
	assert.Equal(t, DefaultTheme().Danger, theme.Danger, "absent keys keep defaults")
}

func TestLoadThemeMissingFile(t *testing.T) {
	theme := LoadTheme(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Equal(t, DefaultTheme(), theme)
}

func TestFiltersQueryRoundTrip(t *testing.T) {
	q := search.Query{
		UsersScope:  search.UsersHumanOnly,
		GroupsScope: search.GroupsSystemOnly,
		Chips:       search.Chips{Locked: true, NoHome: true},
	}

	back := FiltersFromQuery(q).Query()
	assert.Equal(t, q, back, "text is not persisted, everything else survives")
}

func TestFiltersFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.conf")

	f := Filters{UsersScope: "human", GroupsScope: "all", Expired: true}
	require.NoError(t, f.Save(path))

	loaded := LoadFilters(path)
	assert.Equal(t, f, loaded)
}

func TestLoadFiltersUnknownScopeReadsAsAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.conf")
	require.NoError(t, os.WriteFile(path, []byte("users_scope = bogus\n"), 0o644))

	q := LoadFilters(path).Query()
	assert.Equal(t, search.UsersAll, q.UsersScope)
}

func TestKeymapRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybinds.yaml")

	km := DefaultKeymap()
	km.Actions = "enter"
	require.NoError(t, km.Save(path))

	assert.Equal(t, km, LoadKeymap(path))
}

func TestLoadKeymapInvalidYAMLFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0o644))

	assert.Equal(t, DefaultKeymap(), LoadKeymap(path))
}

func TestLoadOrInitCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.conf")

	f := LoadOrInitFilters(path)
	assert.Equal(t, DefaultFilters(), f)

	_, err := os.Stat(path)
	assert.NoError(t, err, "first load writes the defaults")
}
