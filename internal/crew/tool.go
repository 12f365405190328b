// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrUnknownTool is returned when a tool name is not registered
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingArgument is returned when a tool is invoked without a required argument
	ErrMissingArgument = errors.New("missing required argument")
)

// Args are the named string arguments passed to a tool invocation
type Args map[string]string

// Require returns the values of the named arguments, failing on the first
// one that is absent or blank.
func (a Args) Require(names ...string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := a[name]
		if !ok || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
		out = append(out, v)
	}
	return out, nil
}

// Tool is a single capability an agent can invoke. Implementations must be
// safe for concurrent use.
type Tool interface {
	// Name is the stable identifier referenced from crew definitions
	Name() string
	// Description explains what the tool is useful for
	Description() string
	// Run invokes the tool and returns its textual output
	Run(ctx context.Context, args Args) (string, error)
}

// Registry maps tool names to tools
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownTool, name, strings.Join(r.namesLocked(), ", "))
	}
	return t, nil
}

// Names returns the registered tool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := lo.Keys(r.tools)
	sort.Strings(names)
	return names
}
