// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/logger"
)

// Built-in tool names
const (
	ToolPlaceholder    = "placeholder"
	ToolSetup          = "setup"
	ToolFileGeneration = "file_generation"
	ToolCodeGeneration = "code_generation"
	ToolCodeSaving     = "code_saving"
	ToolCodeExecution  = "code_execution"
	ToolCodeTesting    = "code_testing"
)

// PlaceholderOutput is what the placeholder tool always returns
const PlaceholderOutput = "this is an example of a tool output, ignore it and move along."

// ErrUnsafePath is returned for file names that would land outside the output directory
var ErrUnsafePath = errors.New("file name escapes output directory")

// NewDefaultRegistry registers every built-in tool configured from cfg
func NewDefaultRegistry(cfg *config.CrewConfig) *Registry {
	return NewRegistry(
		PlaceholderTool{},
		&SetupTool{Shell: cfg.Shell},
		&FileGenerationTool{OutputDir: cfg.OutputDir},
		CodeGenerationTool{},
		&CodeSavingTool{OutputDir: cfg.OutputDir},
		&CodeExecutionTool{Interpreter: cfg.Interpreter},
		&CodeTestingTool{Shell: cfg.Shell, TestCommand: cfg.TestCommand, OutputDir: cfg.OutputDir},
	)
}

// PlaceholderTool returns a fixed string and does nothing else
type PlaceholderTool struct{}

func (PlaceholderTool) Name() string { return ToolPlaceholder }

func (PlaceholderTool) Description() string {
	return "Returns a fixed example output. Useful for wiring up a new crew."
}

func (PlaceholderTool) Run(context.Context, Args) (string, error) {
	return PlaceholderOutput, nil
}

// SetupTool runs a shell command such as a dependency install.
// Args: command.
type SetupTool struct {
	Shell string
}

func (t *SetupTool) Name() string { return ToolSetup }

func (t *SetupTool) Description() string {
	return "Runs a setup shell command like installing dependencies (e.g., pip install)."
}

func (t *SetupTool) Run(ctx context.Context, args Args) (string, error) {
	vals, err := args.Require("command")
	if err != nil {
		return "", err
	}

	out, err := runCommand(ctx, shellArgv(t.Shell, vals[0]), "")
	if err != nil {
		return "", fmt.Errorf("command failed: %w\n%s", err, out)
	}
	return "Command executed:\n" + out, nil
}

// FileGenerationTool creates an empty file in the output directory. An
// existing file is left untouched.
// Args: filename.
type FileGenerationTool struct {
	OutputDir string
}

func (t *FileGenerationTool) Name() string { return ToolFileGeneration }

func (t *FileGenerationTool) Description() string {
	return "Generates a file with the specified name and extension."
}

func (t *FileGenerationTool) Run(_ context.Context, args Args) (string, error) {
	vals, err := args.Require("filename")
	if err != nil {
		return "", err
	}

	path, err := resolveOutputPath(t.OutputDir, vals[0])
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return "Generated file: " + vals[0], nil
}

// CodeGenerationTool echoes the prompt. No generator is wired in; a crew
// supplies the code through its variables instead.
// Args: prompt.
type CodeGenerationTool struct{}

func (CodeGenerationTool) Name() string { return ToolCodeGeneration }

func (CodeGenerationTool) Description() string {
	return "Generates code based on the provided prompt."
}

func (CodeGenerationTool) Run(_ context.Context, args Args) (string, error) {
	vals, err := args.Require("prompt")
	if err != nil {
		return "", err
	}
	return "Generated code based on prompt: " + vals[0], nil
}

// CodeSavingTool writes code to a file in the output directory.
// Args: filename, code.
type CodeSavingTool struct {
	OutputDir string
}

func (t *CodeSavingTool) Name() string { return ToolCodeSaving }

func (t *CodeSavingTool) Description() string {
	return "Saves the provided code to the specified file."
}

func (t *CodeSavingTool) Run(_ context.Context, args Args) (string, error) {
	vals, err := args.Require("filename", "code")
	if err != nil {
		return "", err
	}
	filename, code := vals[0], vals[1]

	path, err := resolveOutputPath(t.OutputDir, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to save code: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("failed to save code: %w", err)
	}

	toolLog := logger.GetToolLogger()
	toolLog.Debug().Str("path", path).Int("bytes", len(code)).Msg("Saved code")
	return fmt.Sprintf("Code saved to '%s'", filename), nil
}

// CodeExecutionTool runs code with an interpreter: <interpreter> -c <code>.
// Args: code.
type CodeExecutionTool struct {
	Interpreter string
}

func (t *CodeExecutionTool) Name() string { return ToolCodeExecution }

func (t *CodeExecutionTool) Description() string {
	return "Executes the provided code."
}

func (t *CodeExecutionTool) Run(ctx context.Context, args Args) (string, error) {
	vals, err := args.Require("code")
	if err != nil {
		return "", err
	}

	out, err := runCommand(ctx, []string{t.Interpreter, "-c", vals[0]}, "")
	if err != nil {
		return "", fmt.Errorf("code execution failed: %w\n%s", err, out)
	}
	return "Code executed successfully:\n" + out, nil
}

// CodeTestingTool runs the configured test command against saved code. The
// command is a template over {{.dir}}, {{.file}} and {{.filename}} and runs in
// the output directory with CREWKIT_CODE set to the code under test. Without a
// test command it only reports what it was given.
// Args: code, filename (optional).
type CodeTestingTool struct {
	Shell       string
	TestCommand string
	OutputDir   string
}

func (t *CodeTestingTool) Name() string { return ToolCodeTesting }

func (t *CodeTestingTool) Description() string {
	return "Runs tests on the provided code."
}

func (t *CodeTestingTool) Run(ctx context.Context, args Args) (string, error) {
	vals, err := args.Require("code")
	if err != nil {
		return "", err
	}
	code := vals[0]

	if t.TestCommand == "" {
		return "Running tests on the following code:\n" + code, nil
	}

	vars := map[string]string{"dir": t.OutputDir, "filename": args["filename"], "file": ""}
	if args["filename"] != "" {
		path, err := resolveOutputPath(t.OutputDir, args["filename"])
		if err != nil {
			return "", err
		}
		vars["file"] = path
	}

	argv, err := PrepareCommand(CommandSpec{Shell: t.Shell, Template: t.TestCommand, Variables: vars})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := runCommand(ctx, argv, t.OutputDir, "CREWKIT_CODE="+code)
	if err != nil {
		return "", fmt.Errorf("tests failed: %w\n%s", err, out)
	}
	return "Tests passed:\n" + out, nil
}

// resolveOutputPath joins name onto dir, rejecting absolute names and names
// that climb out of dir.
func resolveOutputPath(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	clean := filepath.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}
