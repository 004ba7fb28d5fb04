package config

import (
	"os"

	"gopkg.in/ini.v1"

	"usrgrp/internal/search"
)

// Filters is the persisted form of the structural list filters. Scope
// values are "all", "human", or "system"; unknown values read as "all".
type Filters struct {
	UsersScope  string `ini:"users_scope"`
	GroupsScope string `ini:"groups_scope"`
	Inactive    bool   `ini:"inactive"`
	NoHome      bool   `ini:"no_home"`
	Locked      bool   `ini:"locked"`
	NoPassword  bool   `ini:"no_password"`
	Expired     bool   `ini:"expired"`
}

// DefaultFilters has everything off.
func DefaultFilters() Filters {
	return Filters{UsersScope: "all", GroupsScope: "all"}
}

// Query converts the persisted filters into a search query with empty text.
func (f Filters) Query() search.Query {
	q := search.Query{
		Chips: search.Chips{
			Inactive:   f.Inactive,
			NoHome:     f.NoHome,
			Locked:     f.Locked,
			NoPassword: f.NoPassword,
			Expired:    f.Expired,
		},
	}
	switch f.UsersScope {
	case "human":
		q.UsersScope = search.UsersHumanOnly
	case "system":
		q.UsersScope = search.UsersSystemOnly
	}
	switch f.GroupsScope {
	case "human":
		q.GroupsScope = search.GroupsHumanOnly
	case "system":
		q.GroupsScope = search.GroupsSystemOnly
	}
	return q
}

// FiltersFromQuery captures the persistable part of a query.
func FiltersFromQuery(q search.Query) Filters {
	f := Filters{UsersScope: "all", GroupsScope: "all"}
	switch q.UsersScope {
	case search.UsersHumanOnly:
		f.UsersScope = "human"
	case search.UsersSystemOnly:
		f.UsersScope = "system"
	}
	switch q.GroupsScope {
	case search.GroupsHumanOnly:
		f.GroupsScope = "human"
	case search.GroupsSystemOnly:
		f.GroupsScope = "system"
	}
	f.Inactive = q.Chips.Inactive
	f.NoHome = q.Chips.NoHome
	f.Locked = q.Chips.Locked
	f.NoPassword = q.Chips.NoPassword
	f.Expired = q.Chips.Expired
	return f
}

// LoadFilters reads a filter file, falling back to defaults on any error.
func LoadFilters(path string) Filters {
	f := DefaultFilters()
	cfg, err := ini.Load(path)
	if err != nil {
		return f
	}
	_ = cfg.MapTo(&f)
	return f
}

// Save writes the filters in key=value form.
func (f Filters) Save(path string) error {
	cfg := ini.Empty()
	if err := ini.ReflectFrom(cfg, &f); err != nil {
		return err
	}
	return cfg.SaveTo(path)
}

// LoadOrInitFilters loads the filter file, writing defaults first if it
// does not exist.
func LoadOrInitFilters(path string) Filters {
	if _, err := os.Stat(path); err != nil {
		f := DefaultFilters()
		_ = f.Save(path)
		return f
	}
	return LoadFilters(path)
}
