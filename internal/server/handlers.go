// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/crewkit/internal/database"
	"github.com/noldarim/crewkit/internal/dupes"
	"github.com/noldarim/crewkit/internal/models"
	"github.com/noldarim/crewkit/internal/records"
	"github.com/noldarim/crewkit/pkg/linkedlist"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// CrewRunner starts a crew run and waits for it to finish
type CrewRunner interface {
	Kickoff(ctx context.Context, vars map[string]string) (*models.Run, error)
}

// RunReader reads persisted runs
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// RecordLister lists (id, name) rows of a table
type RecordLister interface {
	List(ctx context.Context, table string, limit int) ([]models.Record, error)
}

// Handlers holds dependencies for HTTP handlers. Any of them may be nil, in
// which case the matching routes answer 503.
type Handlers struct {
	crew    CrewRunner
	runs    RunReader
	records RecordLister
}

// NewHandlers creates the handler set.
func NewHandlers(crew CrewRunner, runs RunReader, lister RecordLister) *Handlers {
	return &Handlers{crew: crew, runs: runs, records: lister}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["context"] = err.Error()
	}
	writeJSON(w, status, body)
}

// decodeJSON keeps numbers as json.Number so they round-trip unchanged
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, max)
		}
	}
	return limit
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// valuesRequest is the JSON body for the list endpoints.
type valuesRequest struct {
	Values []any `json:"values"`
}

type reverseResponse struct {
	Values   []any  `json:"values"`
	Rendered string `json:"rendered"`
}

// Reverse handles POST /api/v1/reverse
func (h *Handlers) Reverse(w http.ResponseWriter, r *http.Request) {
	var body valuesRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	head := linkedlist.Reverse(linkedlist.FromSlice(body.Values))
	writeJSON(w, http.StatusOK, reverseResponse{
		Values:   linkedlist.Values(head),
		Rendered: linkedlist.Format(head),
	})
}

type duplicatesRequest struct {
	Values []string `json:"values"`
}

type duplicatesResponse struct {
	Duplicates []dupes.Entry `json:"duplicates"`
}

// Duplicates handles POST /api/v1/duplicates
func (h *Handlers) Duplicates(w http.ResponseWriter, r *http.Request) {
	var body duplicatesRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	found := dupes.Find(body.Values)
	if found == nil {
		found = []dupes.Entry{}
	}
	writeJSON(w, http.StatusOK, duplicatesResponse{Duplicates: found})
}

type startRunRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// StartRun handles POST /api/v1/runs. The run executes synchronously; a run
// that failed at a task is still created and returned with status failed.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	if h.crew == nil {
		writeError(w, http.StatusServiceUnavailable, "Crew is not configured", nil)
		return
	}
	var body startRunRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &body) {
			return
		}
	}

	run, err := h.crew.Kickoff(r.Context(), body.Variables)
	if run == nil {
		writeError(w, http.StatusBadRequest, "Failed to start run", err)
		return
	}
	if err != nil {
		getLog().Warn().Err(err).Str("run_id", run.ID).Msg("Crew run failed")
	}
	writeJSON(w, http.StatusCreated, run)
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "Run store is not configured", nil)
		return
	}
	runs, err := h.runs.ListRuns(r.Context(), parseLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /api/v1/runs/{id}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "Run store is not configured", nil)
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRecords handles GET /api/v1/records?table=&limit=
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeError(w, http.StatusServiceUnavailable, "Record lister is not configured", nil)
		return
	}
	table := r.URL.Query().Get("table")
	if table == "" {
		writeError(w, http.StatusBadRequest, "table is required", nil)
		return
	}

	rows, err := h.records.List(r.Context(), table, parseLimit(r, records.DefaultLimit, maxListLimit))
	if err != nil {
		if errors.Is(err, records.ErrInvalidTable) {
			writeError(w, http.StatusBadRequest, "Invalid table name", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "records": rows})
}
