// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"text/template"
)

// CommandSpec describes a shell command whose text is a Go template
type CommandSpec struct {
	Shell     string            // e.g. "sh"; invoked as: <shell> -c <rendered>
	Template  string            // command text, may contain {{.variables}}
	Variables map[string]string // values substituted into Template
}

// Validate checks if the command spec is usable
func (cs *CommandSpec) Validate() error {
	if cs.Shell == "" {
		return fmt.Errorf("shell is required")
	}
	if cs.Template == "" {
		return fmt.Errorf("command template is required")
	}
	return nil
}

// PrepareCommand renders the template and returns the argv that runs it
// through the configured shell.
func PrepareCommand(spec CommandSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	rendered, err := renderTemplate("command", spec.Template, spec.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to render command template: %w", err)
	}

	return shellArgv(spec.Shell, rendered), nil
}

func shellArgv(shell, command string) []string {
	return []string{shell, "-c", command}
}

// renderTemplate renders text with data. Referencing a variable that is not
// set is an error rather than an empty string.
func renderTemplate(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// runCommand executes argv and returns its combined stdout and stderr.
// extraEnv entries are appended to the current environment.
func runCommand(ctx context.Context, argv []string, dir string, extraEnv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}
	return string(out), err
}
