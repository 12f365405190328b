// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noldarim/crewkit/internal/config"
	"github.com/noldarim/crewkit/internal/protocol"
)

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
	clients     *ClientRegistry
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that. eventChan carries the crew's lifecycle events.
func New(cfg *config.ServerConfig, eventChan <-chan protocol.Event, handlers *Handlers) *Server {
	clients := NewClientRegistry()
	broadcaster := NewEventBroadcaster(eventChan, clients)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           NewRouter(cfg, handlers, clients),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// runs execute inside the request
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		broadcaster: broadcaster,
		clients:     clients,
	}
}

// NewRouter builds the chi router with middleware and every route
func NewRouter(cfg *config.ServerConfig, handlers *Handlers, clients *ClientRegistry) chi.Router {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(maxBody))

	r.Get("/healthz", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("crewkit.api"))

		r.Post("/reverse", handlers.Reverse)
		r.Post("/duplicates", handlers.Duplicates)

		r.Post("/runs", handlers.StartRun)
		r.Get("/runs", handlers.ListRuns)
		r.Get("/runs/{id}", handlers.GetRun)

		r.Get("/records", handlers.ListRecords)
	})

	r.Get("/ws", HandleWebSocket(clients, cfg.AllowedOrigins))

	return r
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down.
func (s *Server) Run(ctx context.Context) error {
	go superviseBroadcaster(ctx, s.broadcaster.Run, time.Second)

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

const maxBroadcasterRetries = 3

// superviseBroadcaster runs run until it returns normally, restarting it
// after a panic up to maxBroadcasterRetries times.
func superviseBroadcaster(ctx context.Context, run func(context.Context), retryDelay time.Duration) {
	for attempt := 1; attempt <= maxBroadcasterRetries; attempt++ {
		panicked := func() (panicked bool) {
			defer func() {
				if r := recover(); r != nil {
					getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					panicked = true
				}
			}()
			run(ctx)
			return false
		}()

		// normal return: context cancelled or channel closed
		if !panicked || ctx.Err() != nil {
			return
		}

		if attempt < maxBroadcasterRetries {
			getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
	getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
