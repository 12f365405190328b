// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/noldarim/crewkit/internal/models"
)

type styles struct {
	header lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	skip   lipgloss.Style
	dim    lipgloss.Style
	label  lipgloss.Style
}

// newStyles builds styles bound to w. Color is only emitted when w is a
// terminal and noColor is false.
func newStyles(w io.Writer, noColor bool) styles {
	var r *lipgloss.Renderer
	if noColor {
		r = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	} else {
		r = lipgloss.NewRenderer(w)
	}

	return styles{
		header: r.NewStyle().Bold(true),
		pass:   r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		fail:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		skip:   r.NewStyle().Foreground(lipgloss.Color("11")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("8")),
		label:  r.NewStyle().Foreground(lipgloss.Color("12")),
	}
}

func (s styles) runStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusCompleted:
		return s.pass.Render(status.String())
	case models.RunStatusFailed:
		return s.fail.Render(status.String())
	default:
		return s.dim.Render(status.String())
	}
}

func (s styles) stepStatus(status models.StepStatus) string {
	switch status {
	case models.StepStatusCompleted:
		return s.pass.Render("✓")
	case models.StepStatusFailed:
		return s.fail.Render("✗")
	case models.StepStatusSkipped:
		return s.skip.Render("-")
	default:
		return s.dim.Render("·")
	}
}
