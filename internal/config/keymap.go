package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Keymap maps actions to bubbletea key names. Escape always cancels and
// arrow keys always navigate; these bindings come on top.
type Keymap struct {
	Quit      string `yaml:"quit"`
	Search    string `yaml:"search"`
	NextTab   string `yaml:"next_tab"`
	Up        string `yaml:"up"`
	Down      string `yaml:"down"`
	Actions   string `yaml:"actions"`
	Filter    string `yaml:"filter"`
	Refresh   string `yaml:"refresh"`
	Help      string `yaml:"help"`
	FocusPane string `yaml:"focus_pane"`
}

// DefaultKeymap returns the vi-flavored defaults.
func DefaultKeymap() Keymap {
	return Keymap{
		Quit:      "q",
		Search:    "/",
		NextTab:   "tab",
		Up:        "k",
		Down:      "j",
		Actions:   "a",
		Filter:    "f",
		Refresh:   "r",
		Help:      "?",
		FocusPane: "m",
	}
}

// LoadKeymap reads a keymap file. Unset keys keep their defaults; an
// unreadable or invalid file yields the default keymap.
func LoadKeymap(path string) Keymap {
	km := DefaultKeymap()
	raw, err := os.ReadFile(path)
	if err != nil {
		return km
	}
	if err := yaml.Unmarshal(raw, &km); err != nil {
		return DefaultKeymap()
	}
	return km
}

// Save writes the keymap as yaml.
func (k Keymap) Save(path string) error {
	raw, err := yaml.Marshal(k)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadOrInitKeymap loads the keymap file, writing defaults first if it
// does not exist.
func LoadOrInitKeymap(path string) Keymap {
	if _, err := os.Stat(path); err != nil {
		k := DefaultKeymap()
		_ = k.Save(path)
		return k
	}
	return LoadKeymap(path)
}
