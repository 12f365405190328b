// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noldarim/crewkit/internal/crew"
	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/protocol"
	"github.com/noldarim/crewkit/internal/records"
	"github.com/noldarim/crewkit/internal/server"
	"github.com/noldarim/crewkit/internal/telemetry"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		definitionPath string
		host           string
		port           int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST + WebSocket API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer cleanup()
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			log := logger.GetCLILogger()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			shutdownTracing, err := telemetry.Setup(ctx, &cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(flushCtx)
			}()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			eventChan := make(chan protocol.Event, 256)
			var store crew.RunStore
			if cfg.Crew.PersistRuns {
				store = db
			}
			c, err := buildCrew(cfg, definitionPath, store, server.NewChannelSink(eventChan))
			if err != nil {
				return err
			}

			srv := server.New(&cfg.Server, eventChan,
				server.NewHandlers(c, db, records.NewLister(db.DB())))

			serverErrChan := make(chan error, 1)
			go func() {
				serverErrChan <- srv.Run(ctx)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "%s API listening on http://%s\n", appName, srv.Addr())

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				log.Info().Msgf("Received signal %v, shutting down...", sig)
			case err := <-serverErrChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			}

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			log.Info().Msg("API server stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&definitionPath, "definition", "d", "", "Crew definition YAML (default: crew.definition_path, else the built-in crew)")
	cmd.Flags().StringVar(&host, "host", "", "Override server.host")
	cmd.Flags().IntVar(&port, "port", 0, "Override server.port")
	return cmd
}
