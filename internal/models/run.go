// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunStatus represents the status of a crew run
type RunStatus int

const (
	RunStatusPending RunStatus = iota
	RunStatusRunning
	RunStatusCompleted
	RunStatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusPending:
		return "pending"
	case RunStatusRunning:
		return "running"
	case RunStatusCompleted:
		return "completed"
	case RunStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s RunStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunStatus) UnmarshalText(text []byte) error {
	for c := RunStatusPending; c <= RunStatusFailed; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown run status %q", text)
}

// StepStatus represents the status of a single step
type StepStatus int

const (
	StepStatusPending StepStatus = iota
	StepStatusRunning
	StepStatusCompleted
	StepStatusFailed
	StepStatusSkipped // a previous step failed
)

func (s StepStatus) String() string {
	switch s {
	case StepStatusPending:
		return "pending"
	case StepStatusRunning:
		return "running"
	case StepStatusCompleted:
		return "completed"
	case StepStatusFailed:
		return "failed"
	case StepStatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StepStatus) UnmarshalText(text []byte) error {
	for c := StepStatusPending; c <= StepStatusSkipped; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// Variables is a JSON-serializable string map stored in a text column
type Variables map[string]string

func (v *Variables) Scan(value any) error {
	*v = Variables{}
	if value == nil {
		return nil
	}
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, v)
	case string:
		return json.Unmarshal([]byte(raw), v)
	default:
		return errors.New("cannot scan Variables from non-string/[]byte value")
	}
}

func (v Variables) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Run represents one sequential execution of a crew
type Run struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CrewName  string    `gorm:"type:text;index" json:"crew_name"`
	Status    RunStatus `gorm:"not null;default:0" json:"status"`
	Variables Variables `gorm:"type:text" json:"variables"`

	// Output of the last completed step
	FinalOutput  string `gorm:"type:text" json:"final_output"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	StepResults []StepResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"step_results,omitempty"`
}

func (Run) TableName() string {
	return "crew_runs"
}

// Failed reports whether the run ended in failure
func (r *Run) Failed() bool {
	return r.Status == RunStatusFailed
}

// StepResult represents the result of executing a single task of a run
type StepResult struct {
	ID        string     `gorm:"primaryKey;type:text" json:"id"`
	RunID     string     `gorm:"type:text;index;not null" json:"run_id"`
	StepIndex int        `gorm:"type:integer" json:"step_index"` // Order of execution (0, 1, 2...)
	TaskName  string     `gorm:"type:text;not null" json:"task_name"`
	AgentName string     `gorm:"type:text" json:"agent_name"`
	ToolName  string     `gorm:"type:text" json:"tool_name"`
	Status    StepStatus `gorm:"not null;default:0" json:"status"`

	Output       string `gorm:"type:text" json:"output"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (StepResult) TableName() string {
	return "crew_step_results"
}

// Duration returns how long the step ran, zero if it never finished
func (s *StepResult) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}
