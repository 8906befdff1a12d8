// Package handlers provides the HTTP surface over the world model: ingest,
// query, statistics, consistency review, and the change event stream.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scoutdb/scoutdb/internal/changelog"
	"github.com/scoutdb/scoutdb/internal/worldmodel"
	"github.com/scoutdb/scoutdb/pkg/types"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// API bundles the handlers over one world model.
type API struct {
	model *worldmodel.WorldModel
	hub   *Hub
}

// NewAPI creates the handler set. hub may be nil when the event stream is not
// served.
func NewAPI(model *worldmodel.WorldModel, hub *Hub) *API {
	a := &API{model: model, hub: hub}
	if hub != nil {
		model.OnChange(func(e *types.ChangeEvent) { hub.Broadcast(e) })
	}
	return a
}

// Routes registers all endpoints on a new mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest", a.Ingest)
	mux.HandleFunc("/api/query", a.Query)
	mux.HandleFunc("/api/statistics", a.Statistics)
	mux.HandleFunc("/api/inconsistencies", a.Inconsistencies)
	mux.HandleFunc("/api/inconsistencies/check", a.CheckConsistency)
	mux.HandleFunc("/api/inconsistencies/resolve", a.ResolveInconsistency)
	mux.HandleFunc("/api/events", a.Events)
	mux.HandleFunc("/api/context", a.Context)
	mux.HandleFunc("/api/health", a.Health)
	if a.hub != nil {
		mux.Handle("/ws/events", a.hub)
	}
	return mux
}

// Ingest handles POST /api/ingest - feeds one scraped episode into the model.
func (a *API) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var data types.ScrapedData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if data.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required", nil)
		return
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}

	res, err := a.model.Ingest(&data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "ingest failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Query handles POST /api/query - structured reads including traversal.
func (a *API) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var q types.WorldModelQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	respondJSON(w, http.StatusOK, a.model.Query(&q))
}

// Statistics handles GET /api/statistics.
func (a *API) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	respondJSON(w, http.StatusOK, a.model.Statistics())
}

// Inconsistencies handles GET /api/inconsistencies. With ?resolved=true the
// response includes resolved findings.
func (a *API) Inconsistencies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	includeResolved := r.URL.Query().Get("resolved") == "true"
	findings := a.model.Inconsistencies(includeResolved)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"inconsistencies": findings,
		"count":           len(findings),
	})
}

// CheckConsistency handles POST /api/inconsistencies/check - runs the audit
// rules now (subject to the rate limit) and returns the unresolved set.
func (a *API) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	findings := a.model.CheckConsistency()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"inconsistencies": findings,
		"count":           len(findings),
	})
}

// ResolveInconsistency handles POST /api/inconsistencies/resolve.
func (a *API) ResolveInconsistency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	var req struct {
		ID         string `json:"id"`
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	if !a.model.ResolveInconsistency(req.ID, req.Resolution) {
		respondError(w, http.StatusNotFound, "unknown inconsistency id", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// Events handles GET /api/events. Supported query parameters: types
// (comma-separated), record_id, session_id, from, to (RFC3339), limit, offset.
func (a *API) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	q := r.URL.Query()
	filter := changelog.EventFilter{
		RecordID:  q.Get("record_id"),
		SessionID: q.Get("session_id"),
	}
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			filter.Types = append(filter.Types, types.EventType(strings.TrimSpace(t)))
		}
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC3339", err)
			return
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC3339", err)
			return
		}
		filter.To = to
	}
	filter.Limit = queryInt(q.Get("limit"), 100)
	filter.Offset = queryInt(q.Get("offset"), 0)

	events := a.model.GetEvents(filter)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// Context handles GET /api/context?domain=...&goal=... - assembles a text
// knowledge block for an external planner.
func (a *API) Context(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	domain := r.URL.Query().Get("domain")
	goal := r.URL.Query().Get("goal")
	out, err := a.model.BuildContext(r.Context(), domain, goal)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to build context", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"context": out})
}

// Health handles GET /api/health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	stats := a.model.Statistics()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"entities": stats.Store.EntityCount,
		"events":   stats.Events,
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// respondJSON writes data as a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent, nothing to do but note it.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
