package config

import (
	"os"

	"gopkg.in/ini.v1"
)

// Theme holds the interface colors as hex strings understood by lipgloss.
// An empty value means "terminal default".
type Theme struct {
	Text        string `ini:"text"`
	Muted       string `ini:"muted"`
	Title       string `ini:"title"`
	Border      string `ini:"border"`
	HeaderBG    string `ini:"header_bg"`
	HeaderFG    string `ini:"header_fg"`
	StatusBG    string `ini:"status_bg"`
	StatusFG    string `ini:"status_fg"`
	HighlightFG string `ini:"highlight_fg"`
	HighlightBG string `ini:"highlight_bg"`
	Danger      string `ini:"danger"`
}

// DefaultTheme is the Catppuccin Mocha palette.
func DefaultTheme() Theme {
	return Theme{
		Text:        "#cdd6f4",
		Muted:       "#7f849c",
		Title:       "#cba6f7",
		Border:      "#585b70",
		HeaderBG:    "#313244",
		HeaderFG:    "#b4befe",
		StatusBG:    "#45475a",
		StatusFG:    "#cdd6f4",
		HighlightFG: "#f9e2af",
		HighlightBG: "#45475a",
		Danger:      "#f38ba8",
	}
}

// LoadTheme reads a theme file. Keys that are missing keep their defaults;
// a file that cannot be read or parsed yields the default theme.
func LoadTheme(path string) Theme {
	theme := DefaultTheme()
	cfg, err := ini.Load(path)
	if err != nil {
		return theme
	}
	// MapTo leaves fields untouched for absent keys.
	_ = cfg.MapTo(&theme)
	return theme
}

// Save writes the theme in key=value form.
func (t Theme) Save(path string) error {
	cfg := ini.Empty()
	if err := ini.ReflectFrom(cfg, &t); err != nil {
		return err
	}
	return cfg.SaveTo(path)
}

// LoadOrInitTheme loads the theme file, writing one with defaults first if
// it does not exist.
func LoadOrInitTheme(path string) Theme {
	if _, err := os.Stat(path); err != nil {
		t := DefaultTheme()
		_ = t.Save(path)
		return t
	}
	return LoadTheme(path)
}
