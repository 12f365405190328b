// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/crewkit/internal/models"
	"github.com/noldarim/crewkit/internal/protocol"
)

func lifecycleEvent(runID, crewName string, eventType protocol.CrewLifecycleType) protocol.CrewLifecycleEvent {
	return protocol.NewCrewLifecycleEvent(eventType, &models.Run{ID: runID, CrewName: crewName, Status: models.RunStatusRunning}, nil)
}

func TestSubscriptionFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter SubscriptionFilter
		want   bool
	}{
		{"empty", SubscriptionFilter{}, true},
		{"run match", SubscriptionFilter{RunID: "r1"}, true},
		{"run mismatch", SubscriptionFilter{RunID: "r2"}, false},
		{"crew match", SubscriptionFilter{CrewName: "code-crew"}, true},
		{"both, crew mismatch", SubscriptionFilter{RunID: "r1", CrewName: "other"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.matches("r1", "code-crew"))
		})
	}
}

func TestWsClient_MatchesAny(t *testing.T) {
	event := lifecycleEvent("r1", "code-crew", protocol.RunStarted)

	c := &wsClient{}
	assert.True(t, c.matchesAny(event), "no filters receives everything")

	c.filters = []SubscriptionFilter{{RunID: "r2"}}
	assert.False(t, c.matchesAny(event))

	c.filters = append(c.filters, SubscriptionFilter{CrewName: "code-crew"})
	assert.True(t, c.matchesAny(event))
}

func TestMarshalEvent(t *testing.T) {
	data, err := marshalEvent(lifecycleEvent("r1", "code-crew", protocol.StepSkipped))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "event", out["type"])
	assert.Equal(t, "step_skipped", out["event_type"])
	payload := out["payload"].(map[string]any)
	assert.Equal(t, "r1", payload["run_id"])
	assert.Equal(t, "running", payload["status"])
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	ch := make(chan protocol.Event, 1)
	sink := NewChannelSink(ch)

	sink.Publish(lifecycleEvent("r1", "c", protocol.RunStarted))
	sink.Publish(lifecycleEvent("r1", "c", protocol.RunFinished)) // dropped

	require.Len(t, ch, 1)
	got := (<-ch).(protocol.CrewLifecycleEvent)
	assert.Equal(t, protocol.RunStarted, got.Type)
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_BroadcastFiltered(t *testing.T) {
	clients := NewClientRegistry()
	events := make(chan protocol.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewEventBroadcaster(events, clients).Run(ctx)

	srv := httptest.NewServer(HandleWebSocket(clients, nil))
	defer srv.Close()

	all := dialWS(t, srv, "")
	scoped := dialWS(t, srv, "?run_id=wanted")
	require.Eventually(t, func() bool { return clients.Len() == 2 }, time.Second, 10*time.Millisecond)

	events <- lifecycleEvent("other", "code-crew", protocol.RunStarted)
	events <- lifecycleEvent("wanted", "code-crew", protocol.RunFinished)

	readType := func(conn *websocket.Conn) string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg wsOutMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg.EventType
	}

	assert.Equal(t, "run_started", readType(all))
	assert.Equal(t, "run_finished", readType(all))
	assert.Equal(t, "run_finished", readType(scoped), "scoped client skips other runs")
}

func TestWebSocket_SubscribeMessage(t *testing.T) {
	clients := NewClientRegistry()
	srv := httptest.NewServer(HandleWebSocket(clients, nil))
	defer srv.Close()

	conn := dialWS(t, srv, "")
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", Filters: SubscriptionFilter{CrewName: "code-crew"}}))

	require.Eventually(t, func() bool {
		clients.mu.RLock()
		defer clients.mu.RUnlock()
		for c := range clients.clients {
			c.mu.RLock()
			n := len(c.filters)
			c.mu.RUnlock()
			if n == 1 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	clients.Broadcast(lifecycleEvent("r1", "other-crew", protocol.RunStarted))
	clients.Broadcast(lifecycleEvent("r2", "code-crew", protocol.RunStarted))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsOutMessage
	require.NoError(t, conn.ReadJSON(&msg))
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, "r2", payload["run_id"])
}

func TestWebSocket_OriginCheck(t *testing.T) {
	srv := httptest.NewServer(HandleWebSocket(NewClientRegistry(), []string{"http://allowed.example"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, map[string][]string{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
