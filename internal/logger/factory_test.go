// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/crewkit/internal/config"
)

func TestStaticLoggerGetters(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
		Levels: map[string]string{
			"crew":     "debug",
			"database": "warn",
		},
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	original := globalManager
	globalManager = m
	defer func() { globalManager = original }()

	tests := []struct {
		name          string
		getterFunc    func() zerolog.Logger
		expectedLevel zerolog.Level
	}{
		{"crew", GetCrewLogger, zerolog.DebugLevel},
		{"tool", GetToolLogger, zerolog.InfoLevel},
		{"database", GetDatabaseLogger, zerolog.WarnLevel},
		{"api", GetAPILogger, zerolog.InfoLevel},
		{"cli", GetCLILogger, zerolog.InfoLevel},
		{"telemetry", GetTelemetryLogger, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := tt.getterFunc()
			assert.Equal(t, tt.expectedLevel, logger.GetLevel())

			// cached: the static getter and GetLogger agree
			assert.Equal(t, logger.GetLevel(), GetLogger(tt.name).GetLevel())
		})
	}
}

func BenchmarkStaticLoggerGetters(b *testing.B) {
	m, err := NewManager(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
	})
	if err != nil {
		b.Fatalf("failed to create manager: %v", err)
	}
	original := globalManager
	globalManager = m
	defer func() { globalManager = original }()

	b.Run("GetCrewLogger", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = GetCrewLogger()
		}
	})

	b.Run("Direct_GetLogger", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = GetLogger("crew")
		}
	})
}
