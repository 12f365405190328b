// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/noldarim/crewkit/internal/protocol"
)

const (
	maxMessageSize = 4096
	maxFilters     = 50
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	maxClients     = 1000
	sendBuffer     = 64
)

// newUpgrader accepts any origin when allowedOrigins is empty, otherwise
// only the listed ones.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := lo.SliceToMap(allowedOrigins, func(o string) (string, struct{}) {
		return o, struct{}{}
	})

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// SubscriptionFilter determines which events a WebSocket client receives.
// Empty fields match anything.
type SubscriptionFilter struct {
	RunID    string `json:"run_id,omitempty"`
	CrewName string `json:"crew_name,omitempty"`
}

func (f SubscriptionFilter) matches(runID, crewName string) bool {
	if f.RunID != "" && f.RunID != runID {
		return false
	}
	if f.CrewName != "" && f.CrewName != crewName {
		return false
	}
	return true
}

// wsClient represents a single connected WebSocket client.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	filters []SubscriptionFilter
	mu      sync.RWMutex
}

// ClientRegistry manages all connected WebSocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewClientRegistry creates a new client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*wsClient]struct{}),
	}
}

// Len returns the number of connected clients
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast sends an event to all clients whose filters match.
func (r *ClientRegistry) Broadcast(event protocol.Event) {
	data, err := marshalEvent(event)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal event for WebSocket broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if !c.matchesAny(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			getLog().Warn().Msg("Dropping event for slow WebSocket client")
		}
	}
}

func (r *ClientRegistry) add(c *wsClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= maxClients {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *ClientRegistry) remove(c *wsClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// matchesAny reports whether the event matches any filter. A client with no
// filters receives everything.
func (c *wsClient) matchesAny(event protocol.Event) bool {
	c.mu.RLock()
	filters := append([]SubscriptionFilter(nil), c.filters...)
	c.mu.RUnlock()
	if len(filters) == 0 {
		return true
	}

	runID, crewName := extractEventScope(event)
	return lo.SomeBy(filters, func(f SubscriptionFilter) bool {
		return f.matches(runID, crewName)
	})
}

func extractEventScope(event protocol.Event) (runID, crewName string) {
	runID = event.GetMetadata().RunID
	if e, ok := event.(protocol.CrewLifecycleEvent); ok {
		crewName = e.CrewName
	}
	return runID, crewName
}

// wsMessage is the envelope for client → server WebSocket messages.
type wsMessage struct {
	Type    string             `json:"type"` // "subscribe" or "unsubscribe"
	Filters SubscriptionFilter `json:"filters"`
}

// wsOutMessage is the envelope for server → client WebSocket messages.
type wsOutMessage struct {
	Type      string `json:"type"`                 // "event" or "error"
	EventType string `json:"event_type,omitempty"` // lifecycle type, e.g. step_completed
	Payload   any    `json:"payload,omitempty"`
	Message   string `json:"message,omitempty"`
}

func marshalEvent(event protocol.Event) ([]byte, error) {
	out := wsOutMessage{Type: "event", Payload: event}
	if e, ok := event.(protocol.CrewLifecycleEvent); ok {
		out.EventType = string(e.Type)
	}
	return json.Marshal(out)
}

// HandleWebSocket upgrades an HTTP connection and manages the client
// lifecycle. A run_id query parameter installs an initial filter.
func HandleWebSocket(registry *ClientRegistry, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		if runID := r.URL.Query().Get("run_id"); runID != "" {
			client.filters = []SubscriptionFilter{{RunID: runID}}
		}
		if !registry.add(client) {
			getLog().Warn().Msg("WebSocket connection limit reached")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
			conn.Close()
			return
		}
		getLog().Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

		go client.writePump()
		client.readPump(registry)
	}
}

func (c *wsClient) readPump(registry *ClientRegistry) {
	defer func() {
		registry.remove(c)
		close(c.send) // writePump exits on close
		c.conn.Close()
		getLog().Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			getLog().Warn().Err(err).Msg("Invalid WebSocket message")
			continue
		}

		c.mu.Lock()
		switch msg.Type {
		case "subscribe":
			if len(c.filters) >= maxFilters {
				getLog().Warn().Msg("WebSocket client hit max filter limit")
				break
			}
			c.filters = append(c.filters, msg.Filters)
			getLog().Debug().
				Str("run_id", msg.Filters.RunID).
				Str("crew_name", msg.Filters.CrewName).
				Msg("WebSocket client subscribed")
		case "unsubscribe":
			c.filters = lo.Reject(c.filters, func(f SubscriptionFilter, _ int) bool {
				return f == msg.Filters
			})
			getLog().Debug().Msg("WebSocket client unsubscribed")
		}
		c.mu.Unlock()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
