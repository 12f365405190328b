// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noldarim/crewkit/internal/cases"
	"github.com/noldarim/crewkit/pkg/linkedlist"
)

// defaultChain is reversed when no values are given
var defaultChain = []string{"1", "2", "3", "4", "5"}

func newReverseCommand(root *rootOptions) *cobra.Command {
	var casesPath string

	cmd := &cobra.Command{
		Use:   "reverse [values...]",
		Short: "Reverse a singly linked list built from the given values",
		Long: `Builds a singly linked list from the values (1 2 3 4 5 when none are given),
reverses it in place and prints the result as "5 -> 4 -> 3 -> 2 -> 1 -> None".

With --cases, runs every row of a CSV case file (name,input,expected) instead
and fails when any case does not match.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if casesPath != "" {
				if len(args) > 0 {
					return fmt.Errorf("values and --cases are mutually exclusive")
				}
				return runCases(cmd, root, casesPath)
			}

			values := args
			if len(values) == 0 {
				values = defaultChain
			}
			head := linkedlist.Reverse(linkedlist.FromSlice(values))
			fmt.Fprintln(cmd.OutOrStdout(), linkedlist.Format(head))
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "", "CSV case file to run (name,input,expected)")
	return cmd
}

func runCases(cmd *cobra.Command, root *rootOptions, path string) error {
	loaded, err := cases.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load cases: %w", err)
	}

	out := cmd.OutOrStdout()
	st := newStyles(out, root.noColor)
	results := cases.Run(loaded)
	for _, r := range results {
		if r.Passed {
			fmt.Fprintf(out, "%s %s\n", st.pass.Render("PASS"), r.Case.Name)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", st.fail.Render("FAIL"), r.Case.Name)
		fmt.Fprintf(out, "     %s %v\n", st.dim.Render("expected:"), r.Case.Expected)
		fmt.Fprintf(out, "     %s %v\n", st.dim.Render("got:     "), r.Got)
	}

	passed, total := cases.Summary(results)
	fmt.Fprintf(out, "\n%s\n", st.header.Render(fmt.Sprintf("%d/%d cases passed", passed, total)))
	if passed != total {
		return fmt.Errorf("%d of %d cases failed", total-passed, total)
	}
	return nil
}
