// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/crew"
	"github.com/noldarim/crewkit/internal/database"
	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/models"
	"github.com/noldarim/crewkit/internal/protocol"
	"github.com/noldarim/crewkit/internal/telemetry"
)

func newCrewCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "Run the code-tool crew and inspect past runs",
	}
	cmd.AddCommand(
		newCrewRunCommand(root),
		newCrewRunsCommand(root),
		newCrewShowCommand(root),
		newCrewToolsCommand(root),
	)
	return cmd
}

// buildCrew assembles a crew from configuration. store and sink may be nil.
func buildCrew(cfg *config.AppConfig, definitionPath string, store crew.RunStore, sink crew.EventSink) (*crew.Crew, error) {
	def, err := loadDefinition(cfg, definitionPath)
	if err != nil {
		return nil, err
	}

	opts := []crew.Option{crew.WithStepTimeout(cfg.Crew.StepTimeout)}
	if store != nil {
		opts = append(opts, crew.WithStore(store))
	}
	if sink != nil {
		opts = append(opts, crew.WithSink(sink))
	}
	return crew.New(def, crew.NewDefaultRegistry(&cfg.Crew), opts...)
}

// parseVars turns repeated key=value flags into a map
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid var %q, use key=value", p)
		}
		vars[strings.TrimSpace(key)] = value
	}
	return vars, nil
}

// progressPrinter writes one line per lifecycle event
type progressPrinter struct {
	out io.Writer
	st  styles
}

func (p *progressPrinter) Publish(event protocol.Event) {
	e, ok := event.(protocol.CrewLifecycleEvent)
	if !ok {
		return
	}
	switch e.Type {
	case protocol.RunStarted:
		fmt.Fprintf(p.out, "%s %s %s\n", p.st.header.Render("Crew"), e.CrewName, p.st.dim.Render(e.RunID))
	case protocol.StepStarted:
		fmt.Fprintf(p.out, "  %s %s %s\n", p.st.dim.Render("→"), e.Step.TaskName, p.st.label.Render("("+e.Step.ToolName+")"))
	case protocol.StepCompleted, protocol.StepFailed, protocol.StepSkipped:
		line := fmt.Sprintf("  %s %s", p.st.stepStatus(e.Step.Status), e.Step.TaskName)
		if e.Step.Status == models.StepStatusCompleted {
			line += " " + p.st.dim.Render(e.Step.Duration().Round(time.Millisecond).String())
		}
		if e.Error != "" {
			line += "\n    " + p.st.fail.Render(firstLine(e.Error))
		}
		fmt.Fprintln(p.out, line)
	}
}

func newCrewRunCommand(root *rootOptions) *cobra.Command {
	var (
		definitionPath string
		varPairs       []string
		quiet          bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every task of the crew in order",
		Example: `  crewkit crew run
  crewkit crew run --definition crew.yaml --var topic="merge two lists" --var filename=merge.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(varPairs)
			if err != nil {
				return err
			}

			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.Setup(ctx, &cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					log := logger.GetCLILogger()
					log.Warn().Err(err).Msg("Failed to flush traces")
				}
			}()

			var store crew.RunStore
			if cfg.Crew.PersistRuns {
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				store = db
			}

			out := cmd.OutOrStdout()
			st := newStyles(out, root.noColor)
			var sink crew.EventSink
			if !quiet {
				sink = &progressPrinter{out: out, st: st}
			}

			c, err := buildCrew(cfg, definitionPath, store, sink)
			if err != nil {
				return err
			}

			run, err := c.Kickoff(ctx, vars)
			if run == nil {
				return err
			}
			fmt.Fprintf(out, "\n%s %s\n", st.header.Render("Status:"), st.runStatus(run.Status))
			if run.FinalOutput != "" {
				fmt.Fprintf(out, "%s\n%s\n", st.header.Render("Final output:"), strings.TrimRight(run.FinalOutput, "\n"))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&definitionPath, "definition", "d", "", "Crew definition YAML (default: crew.definition_path, else the built-in crew)")
	cmd.Flags().StringArrayVar(&varPairs, "var", nil, "Set variable (key=value), can be repeated")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final status")
	return cmd
}

func newCrewRunsCommand(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent crew runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runs, err := db.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to load runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				fmt.Fprintln(out, "\nStart one with:")
				fmt.Fprintf(out, "  %s crew run\n", appName)
				return nil
			}

			st := newStyles(out, root.noColor)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%-36s  %-20s  %-10s  %s\n", "ID", "CREW", "STATUS", "CREATED")
			fmt.Fprintln(out, strings.Repeat("─", 36)+"  "+strings.Repeat("─", 20)+"  "+strings.Repeat("─", 10)+"  "+strings.Repeat("─", 19))
			for _, r := range runs {
				status := st.runStatus(r.Status) + strings.Repeat(" ", max(0, 10-len(r.Status.String())))
				fmt.Fprintf(out, "%-36s  %-20s  %s  %s\n", r.ID, truncate(r.CrewName, 20), status, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func newCrewShowCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a crew run with the output of every task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			run, err := db.GetRun(ctx, args[0])
			if err != nil {
				if errors.Is(err, database.ErrRunNotFound) {
					return fmt.Errorf("no run with ID %s", args[0])
				}
				return err
			}

			printRun(cmd.OutOrStdout(), newStyles(cmd.OutOrStdout(), root.noColor), run)
			return nil
		},
	}
}

func printRun(out io.Writer, st styles, run *models.Run) {
	fmt.Fprintf(out, "%s %s\n", st.label.Render("Run:   "), run.ID)
	fmt.Fprintf(out, "%s %s\n", st.label.Render("Crew:  "), run.CrewName)
	fmt.Fprintf(out, "%s %s\n", st.label.Render("Status:"), st.runStatus(run.Status))
	if len(run.Variables) > 0 {
		keys := make([]string, 0, len(run.Variables))
		for k := range run.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, st.label.Render("Variables:"))
		for _, k := range keys {
			fmt.Fprintf(out, "  %s=%s\n", k, truncate(firstLine(run.Variables[k]), 60))
		}
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "%s %s\n", st.label.Render("Error: "), st.fail.Render(firstLine(run.ErrorMessage)))
	}

	fmt.Fprintln(out)
	for _, step := range run.StepResults {
		fmt.Fprintf(out, "%s %d. %s %s\n", st.stepStatus(step.Status), step.StepIndex+1, st.header.Render(step.TaskName),
			st.dim.Render(fmt.Sprintf("[%s via %s]", step.AgentName, step.ToolName)))
		body := step.Output
		if step.ErrorMessage != "" {
			body = step.ErrorMessage
		}
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(out, "     %s\n", line)
			}
		}
	}
}

func newCrewToolsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to crew tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			st := newStyles(out, root.noColor)
			reg := crew.NewDefaultRegistry(&cfg.Crew)
			for _, name := range reg.Names() {
				tool, err := reg.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-16s %s\n", st.label.Render(name), tool.Description())
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
