// Package config handles the on-disk configuration files: theme and filter
// settings in ini format, keybindings in yaml. Files live under an
// XDG-style directory and are created with defaults on first run; a file
// that fails to parse falls back to defaults rather than blocking startup.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "usrgrp"

// roots returns candidate config directories in priority order.
func roots() []string {
	var out []string
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		out = append(out, filepath.Join(xdg, appDir))
	}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", appDir))
		out = append(out, filepath.Join(home, appDir))
	}
	return out
}

// ReadPath resolves an existing config file by name, highest priority root
// first.
func ReadPath(name string) (string, bool) {
	for _, root := range roots() {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// WritePath resolves where a config file should be written, creating the
// directory. Falls back to the bare name in the working directory when no
// root is resolvable.
func WritePath(name string) string {
	rs := roots()
	if len(rs) == 0 {
		return name
	}
	_ = os.MkdirAll(rs[0], 0o755)
	return filepath.Join(rs[0], name)
}

// Resolve returns the path to read a config file from, or the path it
// should be written to if it does not exist yet.
func Resolve(name string) string {
	if p, ok := ReadPath(name); ok {
		return p
	}
	return WritePath(name)
}
