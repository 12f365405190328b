// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noldarim/crewkit/internal/protocol"
)

func TestSuperviseBroadcaster_ClosedChannelNotRestarted(t *testing.T) {
	eventChan := make(chan protocol.Event)
	close(eventChan)
	broadcaster := NewEventBroadcaster(eventChan, NewClientRegistry())

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		superviseBroadcaster(context.Background(), func(ctx context.Context) {
			calls.Add(1)
			broadcaster.Run(ctx)
		}, time.Hour)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after the channel closed")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSuperviseBroadcaster_RestartsAfterPanic(t *testing.T) {
	var calls atomic.Int32
	superviseBroadcaster(context.Background(), func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, time.Millisecond)

	assert.Equal(t, int32(2), calls.Load())
}

func TestSuperviseBroadcaster_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	superviseBroadcaster(context.Background(), func(context.Context) {
		calls.Add(1)
		panic("always")
	}, time.Millisecond)

	assert.Equal(t, int32(maxBroadcasterRetries), calls.Load())
}
