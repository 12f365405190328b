// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package crew runs a crew definition: agents owning tools, and tasks that
// invoke those tools one after another.
package crew

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/models"
	"github.com/noldarim/crewkit/internal/protocol"
	"github.com/noldarim/crewkit/internal/telemetry"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetCrewLogger()
		log = &l
	})
	return log
}

// RunStore persists runs as they progress
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) error
}

// EventSink receives lifecycle events. Publish must not block for long.
type EventSink interface {
	Publish(event protocol.Event)
}

// Option configures a Crew
type Option func(*Crew)

// WithStore persists every state change of a run
func WithStore(store RunStore) Option {
	return func(c *Crew) { c.store = store }
}

// WithSink publishes lifecycle events
func WithSink(sink EventSink) Option {
	return func(c *Crew) { c.sink = sink }
}

// WithTracer overrides the tracer used for run and step spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Crew) { c.tracer = tracer }
}

// WithStepTimeout bounds each tool invocation. Zero means no limit.
func WithStepTimeout(d time.Duration) Option {
	return func(c *Crew) { c.stepTimeout = d }
}

// Crew executes a validated definition against a tool registry
type Crew struct {
	def         *Definition
	registry    *Registry
	store       RunStore
	sink        EventSink
	tracer      trace.Tracer
	stepTimeout time.Duration
}

// New validates def against reg and returns a crew ready to kick off
func New(def *Definition, reg *Registry, opts ...Option) (*Crew, error) {
	if err := def.Validate(reg); err != nil {
		return nil, fmt.Errorf("invalid crew definition: %w", err)
	}

	c := &Crew{def: def, registry: reg}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = telemetry.Tracer()
	}
	return c, nil
}

// Definition returns the crew definition
func (c *Crew) Definition() *Definition {
	return c.def
}

// Kickoff runs every task in order. vars override the definition's default
// variables. The first failing task fails the run and the remaining tasks
// are marked skipped. The run is returned together with the error on failure.
func (c *Crew) Kickoff(ctx context.Context, vars map[string]string) (*models.Run, error) {
	merged := c.def.MergeVariables(vars)
	if err := c.def.CheckVariables(merged); err != nil {
		return nil, err
	}

	now := time.Now()
	run := &models.Run{
		ID:          uuid.New().String(),
		CrewName:    c.def.Name,
		Status:      models.RunStatusRunning,
		Variables:   models.Variables(merged),
		StartedAt:   &now,
		StepResults: make([]models.StepResult, len(c.def.Tasks)),
	}
	for i, task := range c.def.Tasks {
		run.StepResults[i] = models.StepResult{
			ID:        uuid.New().String(),
			RunID:     run.ID,
			StepIndex: i,
			TaskName:  task.Name,
			AgentName: task.Agent,
			ToolName:  task.Tool,
			Status:    models.StepStatusPending,
		}
	}

	runLog := getLog().With().Str("run_id", run.ID).Str("crew", run.CrewName).Logger()
	ctx, span := c.tracer.Start(ctx, "crew.run", trace.WithAttributes(
		attribute.String("crew.name", run.CrewName),
		attribute.String("crew.run_id", run.ID),
		attribute.Int("crew.tasks", len(c.def.Tasks)),
	))
	defer span.End()

	runLog.Info().Int("tasks", len(c.def.Tasks)).Msg("Crew run started")
	c.save(ctx, run)
	c.publish(protocol.RunStarted, run, nil)

	var runErr error
	previous := ""
	for i := range c.def.Tasks {
		step := &run.StepResults[i]
		if runErr != nil {
			step.Status = models.StepStatusSkipped
			c.publish(protocol.StepSkipped, run, step)
			continue
		}
		if err := ctx.Err(); err != nil {
			c.cancelStep(ctx, run, step, err)
			runErr = fmt.Errorf("task %s failed: %w", step.TaskName, err)
			continue
		}

		output, err := c.runStep(ctx, runLog, run, i, previous)
		if err != nil {
			runErr = fmt.Errorf("task %s failed: %w", step.TaskName, err)
			continue
		}
		previous = output
		run.FinalOutput = output
	}

	completed := time.Now()
	run.CompletedAt = &completed
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		runLog.Error().Err(runErr).Dur("duration", completed.Sub(now)).Msg("Crew run failed")
	} else {
		run.Status = models.RunStatusCompleted
		runLog.Info().Dur("duration", completed.Sub(now)).Msg("Crew run completed")
	}
	span.SetAttributes(attribute.String("crew.status", run.Status.String()))

	c.save(ctx, run)
	if runErr != nil {
		c.publish(protocol.RunFailed, run, nil)
	} else {
		c.publish(protocol.RunFinished, run, nil)
	}
	return run, runErr
}

// runStep executes task i of run and records the outcome on its step result
func (c *Crew) runStep(ctx context.Context, runLog zerolog.Logger, run *models.Run, i int, previous string) (string, error) {
	task := c.def.Tasks[i]
	step := &run.StepResults[i]
	stepLog := runLog.With().Int("step", i).Str("task", task.Name).Str("tool", task.Tool).Logger()

	ctx, span := c.tracer.Start(ctx, "crew.step "+task.Name, trace.WithAttributes(
		attribute.Int("crew.step_index", i),
		attribute.String("crew.task", task.Name),
		attribute.String("crew.agent", task.Agent),
		attribute.String("crew.tool", task.Tool),
	))
	defer span.End()

	started := time.Now()
	step.StartedAt = &started
	step.Status = models.StepStatusRunning
	c.save(ctx, run)
	c.publish(protocol.StepStarted, run, step)
	stepLog.Debug().Msg("Step started")

	output, err := c.invoke(ctx, task, run, i, previous)

	completed := time.Now()
	step.CompletedAt = &completed
	if err != nil {
		step.Status = models.StepStatusFailed
		step.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		stepLog.Warn().Err(err).Dur("duration", step.Duration()).Msg("Step failed")
		c.save(ctx, run)
		c.publish(protocol.StepFailed, run, step)
		return "", err
	}

	step.Status = models.StepStatusCompleted
	step.Output = output
	stepLog.Info().Dur("duration", step.Duration()).Int("output_bytes", len(output)).Msg("Step completed")
	c.save(ctx, run)
	c.publish(protocol.StepCompleted, run, step)
	return output, nil
}

// cancelStep fails a step that never started because ctx was done
func (c *Crew) cancelStep(ctx context.Context, run *models.Run, step *models.StepResult, cause error) {
	now := time.Now()
	step.StartedAt = &now
	step.CompletedAt = &now
	step.Status = models.StepStatusFailed
	step.ErrorMessage = fmt.Sprintf("cancelled before start: %v", cause)
	c.save(ctx, run)
	c.publish(protocol.StepFailed, run, step)
}

func (c *Crew) invoke(ctx context.Context, task TaskSpec, run *models.Run, i int, previous string) (string, error) {
	tool, err := c.registry.Get(task.Tool)
	if err != nil {
		return "", err
	}

	data := make(map[string]string, len(run.Variables)+len(runtimeVars))
	for k, v := range run.Variables {
		data[k] = v
	}
	data["run_id"] = run.ID
	data["step_index"] = strconv.Itoa(i)
	data["previous"] = previous

	args := make(Args, len(task.Args))
	for _, key := range sortedKeys(task.Args) {
		rendered, err := renderTemplate(task.Name+"."+key, task.Args[key], data)
		if err != nil {
			return "", fmt.Errorf("arg %s: %w", key, err)
		}
		args[key] = rendered
	}

	if c.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stepTimeout)
		defer cancel()
	}

	output, err := tool.Run(ctx, args)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("step timed out after %s: %w", c.stepTimeout, err)
	}
	return output, err
}

// save persists run when a store is configured. Store failures are logged;
// they do not fail the run.
func (c *Crew) save(ctx context.Context, run *models.Run) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		getLog().Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist run")
	}
}

func (c *Crew) publish(eventType protocol.CrewLifecycleType, run *models.Run, step *models.StepResult) {
	if c.sink == nil {
		return
	}
	c.sink.Publish(protocol.NewCrewLifecycleEvent(eventType, run, step))
}
