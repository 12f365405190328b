// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the REST + WebSocket API. Handlers call the crew,
// run store and record lister directly, and crew lifecycle events are fanned
// out to connected WebSocket clients.
package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noldarim/crewkit/internal/logger"
	"github.com/noldarim/crewkit/internal/protocol"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// ChannelSink publishes crew events onto a channel without blocking. Events
// are dropped when the channel is full.
type ChannelSink struct {
	ch chan<- protocol.Event
}

// NewChannelSink creates a sink feeding ch
func NewChannelSink(ch chan<- protocol.Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

// Publish implements crew.EventSink
func (s *ChannelSink) Publish(event protocol.Event) {
	select {
	case s.ch <- event:
	default:
		getLog().Warn().Str("idempotency_key", protocol.GetIdempotencyKey(event)).Msg("Event channel full, dropping event")
	}
}

// EventBroadcaster reads every event from the crew's event channel and
// fans them out to all connected WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan protocol.Event
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster that fans out events from eventChan
func NewEventBroadcaster(eventChan <-chan protocol.Event, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event protocol.Event) {
	if b.clients != nil {
		b.clients.Broadcast(event)
	}
}
