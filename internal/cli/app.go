// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/crew"
	"github.com/noldarim/crewkit/internal/database"
	"github.com/noldarim/crewkit/internal/logger"
)

// loadConfig reads the configuration and initializes logging. The returned
// cleanup flushes the log files.
func loadConfig(opts *rootOptions) (*config.AppConfig, func(), error) {
	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// to file only by default, keeping the terminal clean
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, func() { _ = logger.CloseGlobal() }, nil
}

// openDatabase connects and migrates the run store
func openDatabase(cfg *config.AppConfig) (*database.GormDB, error) {
	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// loadDefinition returns the crew definition at path, the configured one, or
// the built-in default crew.
func loadDefinition(cfg *config.AppConfig, path string) (*crew.Definition, error) {
	if path == "" {
		path = cfg.Crew.DefinitionPath
	}
	if path == "" {
		return crew.DefaultDefinition(), nil
	}
	return crew.LoadDefinition(path)
}
