// Copyright 2026 The Repoforge Authors
// SPDX-License-Identifier: Apache-2.0

// Command repoforge generates package-repository metadata: the three
// XML streams (primary, filelists, other), optional SQLite mirrors,
// and the repomd.xml index, from a directory tree of RPM artifacts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/repoforge/repoforge/cmd/repoforge/cli"
	"github.com/repoforge/repoforge/lib/version"
)

func main() {
	root := &cli.Command{
		Name:    "repoforge",
		Summary: "package repository metadata generator",
		Description: "repoforge scans a directory tree of RPM artifacts and emits the\n" +
			"repository metadata consumers expect: primary, filelists and other\n" +
			"XML streams, optional SQLite mirrors, and the repomd.xml index.",
		Subcommands: []*cli.Command{
			createCommand(),
			versionCommand(),
		},
	}

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger creates the standard repoforge logger: a JSON handler
// writing to stderr. It also sets the default slog logger so
// third-party code using slog.Info etc. gets the same handler.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// versionCommand prints the build identity.
func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Printf("repoforge %s\n", version.Info())
			return nil
		},
	}
}
