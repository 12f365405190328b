// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noldarim/crewkit/internal/dupes"
)

// defaultStrings are counted when no values are given
var defaultStrings = []string{"apple", "banana", "apple", "orange", "banana", "apple"}

func newDuplicatesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates [values...]",
		Short: "Print the values that occur more than once, with their counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			values := args
			if len(values) == 0 {
				values = defaultStrings
			}

			out := cmd.OutOrStdout()
			st := newStyles(out, root.noColor)
			fmt.Fprintln(out, st.header.Render("Duplicate strings:"))
			for _, e := range dupes.Find(values) {
				fmt.Fprintf(out, "%s: %d\n", e.Value, e.Count)
			}
			return nil
		},
	}
}
