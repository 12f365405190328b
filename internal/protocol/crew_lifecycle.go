// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"fmt"

	"github.com/noldarim/crewkit/internal/models"
)

// CrewLifecycleType defines the type of crew lifecycle event
type CrewLifecycleType string

const (
	// RunStarted - run has been created and is about to execute its first task
	RunStarted CrewLifecycleType = "run_started"
	// StepStarted - a task's tool invocation has started
	StepStarted CrewLifecycleType = "step_started"
	// StepCompleted - a task's tool returned successfully
	StepCompleted CrewLifecycleType = "step_completed"
	// StepFailed - a task's tool returned an error or timed out
	StepFailed CrewLifecycleType = "step_failed"
	// StepSkipped - a task was not run because an earlier task failed
	StepSkipped CrewLifecycleType = "step_skipped"
	// RunFinished - every task completed
	RunFinished CrewLifecycleType = "run_finished"
	// RunFailed - the run stopped at a failed task
	RunFailed CrewLifecycleType = "run_failed"
)

// CrewLifecycleEvent represents any crew run state change.
type CrewLifecycleEvent struct {
	Metadata
	Type     CrewLifecycleType  `json:"type"`
	CrewName string             `json:"crew_name"`
	Status   models.RunStatus   `json:"status"`
	Step     *models.StepResult `json:"step,omitempty"` // populated for step events
	Error    string             `json:"error,omitempty"`
}

func (e CrewLifecycleEvent) GetMetadata() Metadata {
	return e.Metadata
}

// GetRunID scopes the event to its run for subscription filters
func (e CrewLifecycleEvent) GetRunID() string {
	return e.RunID
}

// NewCrewLifecycleEvent builds an event for run, stamping the protocol version
// and an idempotency key unique per run, type and step.
func NewCrewLifecycleEvent(eventType CrewLifecycleType, run *models.Run, step *models.StepResult) CrewLifecycleEvent {
	key := fmt.Sprintf("%s:%s", run.ID, eventType)
	if step != nil {
		key = fmt.Sprintf("%s:%d", key, step.StepIndex)
	}

	event := CrewLifecycleEvent{
		Metadata: Metadata{
			RunID:          run.ID,
			IdempotencyKey: key,
			Version:        CurrentProtocolVersion,
		},
		Type:     eventType,
		CrewName: run.CrewName,
		Status:   run.Status,
		Error:    run.ErrorMessage,
	}
	if step != nil {
		snapshot := *step
		event.Step = &snapshot
		event.Error = step.ErrorMessage
	}
	return event
}
