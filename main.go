package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"golang.org/x/term"

	"usrgrp/internal/action"
	"usrgrp/internal/config"
	"usrgrp/internal/directory"
	"usrgrp/internal/sysops"
	"usrgrp/internal/tui"
)

const version = "1.0.0"

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "usrgrp",
		Repository: "usrgrp",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\nA new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("Download it from https://github.com/usrgrp/usrgrp/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: usrgrp [options]\n\n")
		fmt.Fprintf(os.Stderr, "usrgrp is an interactive manager for local users and groups.\n")
		fmt.Fprintf(os.Stderr, "It browses /etc/passwd, /etc/group and /etc/shells, and applies\n")
		fmt.Fprintf(os.Stderr, "changes through the standard shadow-utils commands.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  usrgrp                  # Start the interactive interface\n")
		fmt.Fprintf(os.Stderr, "  usrgrp --dump-json      # Print the account database as JSON\n")
		fmt.Fprintf(os.Stderr, "  usrgrp --log usrgrp.log --debug\n")
	}

	dumpFlag := pflag.BoolP("dump-json", "j", false, "Print the loaded account database as JSON and exit")
	logFlag := pflag.StringP("log", "l", "", "Write a log to the specified file")
	debugFlag := pflag.BoolP("debug", "d", false, "Log at debug level (combined with --log)")
	usersFile := pflag.String("users-file", "", "Read users from this file instead of /etc/passwd")
	groupsFile := pflag.String("groups-file", "", "Read groups from this file instead of /etc/group")
	shellsFile := pflag.String("shells-file", "", "Read shells from this file instead of /etc/shells")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for the latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("usrgrp version %s\n", version)
		return
	}

	if *updateFlag {
		checkUpdate(version)
		return
	}

	logger := newLogger(*logFlag, *debugFlag)

	paths := directory.DefaultPaths()
	if *usersFile != "" {
		paths.Passwd = *usersFile
		paths.Shadow = "" // shadow data only pairs with the real passwd
	}
	if *groupsFile != "" {
		paths.Group = *groupsFile
	}
	if *shellsFile != "" {
		paths.Shells = *shellsFile
	}
	loader := directory.NewLoader(directory.FileSource{}, paths, logger)

	if *dumpFlag {
		runDumpMode(loader)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "usrgrp is interactive and needs a terminal (use --dump-json for scripting)")
		os.Exit(1)
	}

	runTuiMode(loader, logger)
}

// newLogger builds the file logger. The interface owns the terminal, so
// without --log everything is discarded.
func newLogger(path string, debug bool) *logrus.Logger {
	logger := logrus.New()
	if path == "" {
		logger.SetOutput(io.Discard)
		return logger
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", path, err)
		os.Exit(1)
	}
	logger.SetOutput(f)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func runDumpMode(loader *directory.Loader) {
	snap, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading account database: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(snap)
}

func runTuiMode(loader *directory.Loader, logger *logrus.Logger) {
	needsSudo := os.Geteuid() != 0
	var runner sysops.Runner
	if needsSudo {
		// Placeholder until the interface collects a sudo password.
		runner = sysops.NewSudoRunner("", 0, logger)
	} else {
		runner = sysops.NewRunner(0, logger)
	}

	machine, err := action.NewMachine(loader, runner, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading account database: %v\n", err)
		os.Exit(1)
	}
	if current, err := user.Current(); err == nil {
		machine.SetCurrentUser(current.Username)
	}

	m := tui.NewModel(tui.Options{
		Machine:   machine,
		Theme:     config.LoadOrInitTheme(config.Resolve("theme.conf")),
		Keymap:    config.LoadOrInitKeymap(config.Resolve("keybinds.yaml")),
		Filters:   config.LoadOrInitFilters(config.Resolve("filter.conf")),
		Log:       logger,
		Version:   version,
		NeedsSudo: needsSudo,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
