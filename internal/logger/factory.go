// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetCrewLogger returns a logger for the crew pipeline controller
func GetCrewLogger() zerolog.Logger {
	return GetLogger("crew")
}

// GetToolLogger returns a logger for tool invocations
func GetToolLogger() zerolog.Logger {
	return GetLogger("tool")
}

// GetDatabaseLogger returns a logger for database operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetCLILogger returns a logger for CLI commands
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}

// GetTelemetryLogger returns a logger for tracing setup and export errors
func GetTelemetryLogger() zerolog.Logger {
	return GetLogger("telemetry")
}
