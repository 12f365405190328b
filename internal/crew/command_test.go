// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCommand(t *testing.T) {
	tests := []struct {
		name     string
		spec     CommandSpec
		expected []string
		errorMsg string
	}{
		{
			name:     "plain command",
			spec:     CommandSpec{Shell: "sh", Template: "pytest -q"},
			expected: []string{"sh", "-c", "pytest -q"},
		},
		{
			name: "templated command",
			spec: CommandSpec{
				Shell:     "bash",
				Template:  "cd {{.dir}} && python3 -m pytest {{.file}}",
				Variables: map[string]string{"dir": "/tmp/out", "file": "/tmp/out/test_x.py"},
			},
			expected: []string{"bash", "-c", "cd /tmp/out && python3 -m pytest /tmp/out/test_x.py"},
		},
		{
			name:     "missing shell",
			spec:     CommandSpec{Template: "ls"},
			errorMsg: "shell is required",
		},
		{
			name:     "missing template",
			spec:     CommandSpec{Shell: "sh"},
			errorMsg: "command template is required",
		},
		{
			name:     "undefined variable",
			spec:     CommandSpec{Shell: "sh", Template: "run {{.nope}}", Variables: map[string]string{}},
			errorMsg: "failed to render command template",
		},
		{
			name:     "bad template syntax",
			spec:     CommandSpec{Shell: "sh", Template: "run {{.dir"},
			errorMsg: "failed to parse template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argv, err := PrepareCommand(tt.spec)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, argv)
		})
	}
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	out, err := runCommand(ctx, []string{"sh", "-c", "echo hello; echo oops >&2"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "oops")

	dir := t.TempDir()
	out, err = runCommand(ctx, []string{"sh", "-c", "pwd; echo $CREWKIT_TEST"}, dir, "CREWKIT_TEST=set")
	require.NoError(t, err)
	assert.Contains(t, out, dir)
	assert.Contains(t, out, "set")

	out, err = runCommand(ctx, []string{"sh", "-c", "echo failing; exit 3"}, "")
	require.Error(t, err)
	assert.Contains(t, out, "failing")

	_, err = runCommand(ctx, nil, "")
	assert.EqualError(t, err, "empty command")
}

func TestRunCommand_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runCommand(ctx, []string{"sh", "-c", "sleep 5"}, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
