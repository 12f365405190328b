// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/models"
	"github.com/noldarim/crewkit/internal/protocol"
)

// stubTool records its arguments and returns a canned result
type stubTool struct {
	name   string
	output string
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls []Args
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }

func (s *stubTool) Run(ctx context.Context, args Args) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.output, s.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []protocol.CrewLifecycleEvent
}

func (r *recordingSink) Publish(event protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(protocol.CrewLifecycleEvent))
}

func (r *recordingSink) types() []protocol.CrewLifecycleType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.CrewLifecycleType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// memoryStore keeps the last saved snapshot of each run
type memoryStore struct {
	mu    sync.Mutex
	saves int
	runs  map[string]models.Run
	err   error
}

func (m *memoryStore) SaveRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	if m.runs == nil {
		m.runs = make(map[string]models.Run)
	}
	snapshot := *run
	snapshot.StepResults = append([]models.StepResult(nil), run.StepResults...)
	m.runs[run.ID] = snapshot
	return nil
}

func threeStepDefinition(tools ...string) *Definition {
	return &Definition{
		Name:      "pipeline",
		Variables: map[string]string{"topic": "lists"},
		Agents:    []AgentSpec{{Name: "worker", Tools: tools}},
		Tasks: []TaskSpec{
			{Name: "first", Agent: "worker", Tool: tools[0], Args: map[string]string{"prompt": "{{.topic}}"}},
			{Name: "second", Agent: "worker", Tool: tools[1], Args: map[string]string{"input": "{{.previous}}", "index": "{{.step_index}}"}},
			{Name: "third", Agent: "worker", Tool: tools[2], Args: map[string]string{"run": "{{.run_id}}"}},
		},
	}
}

func TestNew_InvalidDefinition(t *testing.T) {
	def := threeStepDefinition("a", "b", "c")
	_, err := New(def, NewRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestKickoff_Success(t *testing.T) {
	a := &stubTool{name: "a", output: "out-a"}
	b := &stubTool{name: "b", output: "out-b"}
	c := &stubTool{name: "c", output: "out-c"}
	sink := &recordingSink{}
	store := &memoryStore{}
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	cr, err := New(threeStepDefinition("a", "b", "c"), NewRegistry(a, b, c),
		WithSink(sink), WithStore(store), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), map[string]string{"topic": "trees"})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "pipeline", run.CrewName)
	assert.Equal(t, "out-c", run.FinalOutput)
	assert.Equal(t, models.Variables{"topic": "trees"}, run.Variables)
	require.NotNil(t, run.CompletedAt)
	require.Len(t, run.StepResults, 3)
	for i, step := range run.StepResults {
		assert.Equal(t, i, step.StepIndex)
		assert.Equal(t, run.ID, step.RunID)
		assert.Equal(t, models.StepStatusCompleted, step.Status)
		assert.Equal(t, "worker", step.AgentName)
		assert.NotNil(t, step.StartedAt)
		assert.NotNil(t, step.CompletedAt)
	}

	// args are rendered from variables and runtime values
	assert.Equal(t, Args{"prompt": "trees"}, a.calls[0])
	assert.Equal(t, Args{"input": "out-a", "index": "1"}, b.calls[0])
	assert.Equal(t, Args{"run": run.ID}, c.calls[0])

	assert.Equal(t, []protocol.CrewLifecycleType{
		protocol.RunStarted,
		protocol.StepStarted, protocol.StepCompleted,
		protocol.StepStarted, protocol.StepCompleted,
		protocol.StepStarted, protocol.StepCompleted,
		protocol.RunFinished,
	}, sink.types())

	saved, ok := store.runs[run.ID]
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, saved.Status)
	assert.Equal(t, 8, store.saves, "start, two per step, finish")

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "crew.step first", spans[0].Name())
	assert.Equal(t, "crew.run", spans[3].Name())
	assert.Equal(t, spans[3].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestKickoff_FailureSkipsRemaining(t *testing.T) {
	a := &stubTool{name: "a", output: "out-a"}
	b := &stubTool{name: "b", err: errors.New("interpreter crashed")}
	c := &stubTool{name: "c", output: "out-c"}
	sink := &recordingSink{}

	cr, err := New(threeStepDefinition("a", "b", "c"), NewRegistry(a, b, c), WithSink(sink))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), nil)
	require.Error(t, err)
	require.NotNil(t, run, "the failed run is still returned")
	assert.Contains(t, err.Error(), "task second failed: interpreter crashed")

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.True(t, run.Failed())
	assert.Equal(t, err.Error(), run.ErrorMessage)
	assert.Equal(t, "out-a", run.FinalOutput)
	assert.Equal(t, models.StepStatusCompleted, run.StepResults[0].Status)
	assert.Equal(t, models.StepStatusFailed, run.StepResults[1].Status)
	assert.Equal(t, "interpreter crashed", run.StepResults[1].ErrorMessage)
	assert.Equal(t, models.StepStatusSkipped, run.StepResults[2].Status)
	assert.Nil(t, run.StepResults[2].StartedAt)
	assert.Empty(t, c.calls, "skipped tool never runs")

	assert.Equal(t, []protocol.CrewLifecycleType{
		protocol.RunStarted,
		protocol.StepStarted, protocol.StepCompleted,
		protocol.StepStarted, protocol.StepFailed,
		protocol.StepSkipped,
		protocol.RunFailed,
	}, sink.types())
}

func TestKickoff_StepTimeout(t *testing.T) {
	a := &stubTool{name: "a", delay: time.Second}
	b := &stubTool{name: "b"}
	c := &stubTool{name: "c"}

	cr, err := New(threeStepDefinition("a", "b", "c"), NewRegistry(a, b, c), WithStepTimeout(20*time.Millisecond))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "step timed out after 20ms")
	assert.Equal(t, models.StepStatusSkipped, run.StepResults[1].Status)
}

// cancelTool cancels the run's context and still reports success
type cancelTool struct {
	cancel context.CancelFunc
}

func (cancelTool) Name() string        { return "cancel" }
func (cancelTool) Description() string { return "cancels the caller" }

func (c cancelTool) Run(context.Context, Args) (string, error) {
	c.cancel()
	return "done", nil
}

func TestKickoff_Cancelled(t *testing.T) {
	t.Run("before first step", func(t *testing.T) {
		a := &stubTool{name: "a", output: "out-a"}
		b := &stubTool{name: "b"}
		c := &stubTool{name: "c"}
		sink := &recordingSink{}
		cr, err := New(threeStepDefinition("a", "b", "c"), NewRegistry(a, b, c), WithSink(sink))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		run, err := cr.Kickoff(ctx, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, run)
		assert.Equal(t, models.RunStatusFailed, run.Status)
		assert.Equal(t, models.StepStatusFailed, run.StepResults[0].Status)
		assert.Contains(t, run.StepResults[0].ErrorMessage, "cancelled before start")
		assert.Equal(t, models.StepStatusSkipped, run.StepResults[1].Status)
		assert.Equal(t, models.StepStatusSkipped, run.StepResults[2].Status)
		assert.Empty(t, a.calls)

		assert.Equal(t, []protocol.CrewLifecycleType{
			protocol.RunStarted,
			protocol.StepFailed,
			protocol.StepSkipped, protocol.StepSkipped,
			protocol.RunFailed,
		}, sink.types())
	})

	t.Run("between steps", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b := &stubTool{name: "b"}
		c := &stubTool{name: "c"}
		cr, err := New(threeStepDefinition("cancel", "b", "c"), NewRegistry(cancelTool{cancel: cancel}, b, c))
		require.NoError(t, err)

		run, err := cr.Kickoff(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task second failed")
		assert.Equal(t, models.RunStatusFailed, run.Status)
		assert.Equal(t, models.StepStatusCompleted, run.StepResults[0].Status)
		assert.Equal(t, models.StepStatusFailed, run.StepResults[1].Status)
		assert.Equal(t, models.StepStatusSkipped, run.StepResults[2].Status)
		assert.Empty(t, b.calls)
		assert.Empty(t, c.calls)
	})
}

func TestKickoff_UndefinedVariable(t *testing.T) {
	def := threeStepDefinition("a", "b", "c")
	def.Variables = nil
	cr, err := New(def, NewRegistry(&stubTool{name: "a"}, &stubTool{name: "b"}, &stubTool{name: "c"}))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "undefined template variables: topic")
}

func TestKickoff_StoreErrorDoesNotFailRun(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	cr, err := New(threeStepDefinition("a", "b", "c"),
		NewRegistry(&stubTool{name: "a"}, &stubTool{name: "b"}, &stubTool{name: "c"}), WithStore(store))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Positive(t, store.saves)
}

func TestKickoff_DefaultCrewWithShell(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.CrewConfig{Shell: "sh", Interpreter: "sh", OutputDir: dir}
	cr, err := New(DefaultDefinition(), NewDefaultRegistry(cfg))
	require.NoError(t, err)

	run, err := cr.Kickoff(context.Background(), map[string]string{
		"filename": "reverse.sh",
		"code":     "echo '5 -> 4 -> 3 -> 2 -> 1 -> None'",
	})
	require.NoError(t, err)

	assert.Equal(t, "Generated code based on prompt: reverse a singly linked list", run.StepResults[0].Output)
	assert.Equal(t, "Code saved to 'reverse.sh'", run.StepResults[1].Output)
	assert.Equal(t, "Code executed successfully:\n5 -> 4 -> 3 -> 2 -> 1 -> None\n", run.StepResults[2].Output)
	assert.Equal(t, "Running tests on the following code:\necho '5 -> 4 -> 3 -> 2 -> 1 -> None'", run.FinalOutput)

	data, err := os.ReadFile(filepath.Join(dir, "reverse.sh"))
	require.NoError(t, err)
	assert.Equal(t, "echo '5 -> 4 -> 3 -> 2 -> 1 -> None'", string(data))
}
