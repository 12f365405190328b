// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noldarim/crewkit/internal/database"
	"github.com/noldarim/crewkit/internal/records"
)

func newRecordsCommand(root *rootOptions) *cobra.Command {
	var (
		table string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print the id and name columns of a table in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()

			// no migration: the table belongs to someone else
			db, err := database.NewGormDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			rows, err := records.NewLister(db.DB()).List(ctx, table, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No rows in %s.\n", table)
				return nil
			}
			fmt.Fprintf(out, "%-10s  %s\n", "ID", "NAME")
			fmt.Fprintln(out, strings.Repeat("─", 10)+"  "+strings.Repeat("─", 30))
			for _, r := range rows {
				fmt.Fprintf(out, "%-10d  %s\n", r.ID, r.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "your_table", "Table to read")
	cmd.Flags().IntVarP(&limit, "limit", "n", records.DefaultLimit, "Maximum number of rows")
	return cmd
}
