// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the crewkit command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	appName    = "crewkit"
	appVersion = "0.1.0"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	noColor    bool
}

// Execute runs the CLI application
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Linked list reversal, string duplicates and a sequential code-tool crew",
		Long: `crewkit reverses singly linked lists in place, counts duplicate strings,
lists (id, name) rows from a database table, and runs a sequential crew of
code tools (generate, save, execute, test).`,
		Example: `  crewkit reverse 1 2 3 4 5
  crewkit reverse --cases cases.csv
  crewkit duplicates apple banana apple
  crewkit crew run --var topic="reverse a list"
  crewkit crew show <run-id>
  crewkit records --table your_table
  crewkit serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newReverseCommand(opts),
		newDuplicatesCommand(opts),
		newCrewCommand(opts),
		newRecordsCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}
