package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutdb/scoutdb/internal/worldmodel"
	"github.com/scoutdb/scoutdb/pkg/types"
)

func testAPI() (*API, *worldmodel.WorldModel) {
	wm := worldmodel.NewWithConfig(worldmodel.Config{CacheTTL: -1, AuditInterval: -1})
	return NewAPI(wm, nil), wm
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func scrapedPayload() *types.ScrapedData {
	return &types.ScrapedData{
		URL:       "https://flowers.example.com/roses",
		Domain:    "flowers.example.com",
		Timestamp: time.Now(),
		Extracted: []types.Observation{
			{Key: "name", Value: "Rose Bouquet"},
			{Key: "price", Value: "$29.99"},
			{Key: "vendor", Value: "Acme Flowers"},
		},
		Confidence: 0.9,
	}
}

func TestIngestEndpoint(t *testing.T) {
	api, wm := testAPI()

	rec := postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	var res worldmodel.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.EntitiesCreated)
	assert.NotEmpty(t, res.SessionID)

	assert.Equal(t, 3, wm.Statistics().Store.EntityCount)
}

func TestIngestEndpointRejectsBadInput(t *testing.T) {
	api, _ := testAPI()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	api.Ingest(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, api.Ingest, "/api/ingest", &types.ScrapedData{Domain: "x.example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ingest", nil)
	rec = httptest.NewRecorder()
	api.Ingest(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	api, _ := testAPI()
	postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())

	rec := postJSON(t, api.Query, "/api/query", &types.WorldModelQuery{
		Entities: &types.EntityFilter{Type: types.EntityProduct},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.WorldModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "Rose Bouquet", resp.Entities[0].Name)
}

func TestStatisticsEndpoint(t *testing.T) {
	api, _ := testAPI()
	postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())

	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	rec := httptest.NewRecorder()
	api.Statistics(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats worldmodel.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Store.EntityCount)
	assert.Equal(t, 8, stats.Events)
}

func TestInconsistencyEndpoints(t *testing.T) {
	api, wm := testAPI()

	wm.UpsertEntity(&types.Entity{ID: "a1", Type: types.EntityProduct, Name: "Rose Bouquet", Confidence: 0.9}, "")
	wm.UpsertEntity(&types.Entity{ID: "a2", Type: types.EntityProduct, Name: "rose bouquet", Confidence: 0.9}, "")

	rec := postJSON(t, api.CheckConsistency, "/api/inconsistencies/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var checked struct {
		Inconsistencies []*types.Inconsistency `json:"inconsistencies"`
		Count           int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checked))
	require.Equal(t, 1, checked.Count)
	finding := checked.Inconsistencies[0]
	assert.Equal(t, types.InconsistencyDuplicateEntity, finding.Type)

	// Resolve it, then the unresolved listing is empty.
	rec = postJSON(t, api.ResolveInconsistency, "/api/inconsistencies/resolve", map[string]string{
		"id":         finding.ID,
		"resolution": "merged",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/inconsistencies", nil)
	rec = httptest.NewRecorder()
	api.Inconsistencies(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checked))
	assert.Equal(t, 0, checked.Count)

	// Resolved findings stay visible with ?resolved=true.
	req = httptest.NewRequest(http.MethodGet, "/api/inconsistencies?resolved=true", nil)
	rec = httptest.NewRecorder()
	api.Inconsistencies(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checked))
	assert.Equal(t, 1, checked.Count)

	rec = postJSON(t, api.ResolveInconsistency, "/api/inconsistencies/resolve", map[string]string{
		"id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	api, _ := testAPI()
	rec := postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())
	var res worldmodel.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodGet, "/api/events?session_id="+res.SessionID, nil)
	rec2 := httptest.NewRecorder()
	api.Events(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	var got struct {
		Events []*types.ChangeEvent `json:"events"`
		Count  int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &got))
	// 3 entities + 2 relationships + 3 facts.
	assert.Equal(t, 8, got.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/events?types=entity_created&limit=2", nil)
	rec2 = httptest.NewRecorder()
	api.Events(rec2, req)
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	for _, e := range got.Events {
		assert.Equal(t, types.EventEntityCreated, e.Type)
	}
}

func TestEventsEndpointTimeRange(t *testing.T) {
	api, _ := testAPI()
	postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())

	var got struct {
		Events []*types.ChangeEvent `json:"events"`
		Count  int                  `json:"count"`
	}

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, "/api/events?from="+past, nil)
	rec := httptest.NewRecorder()
	api.Events(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 8, got.Count)

	// A window that closed before the ingest matches nothing.
	req = httptest.NewRequest(http.MethodGet, "/api/events?to="+past, nil)
	rec = httptest.NewRecorder()
	api.Events(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 0, got.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/events?from=yesterday", nil)
	rec = httptest.NewRecorder()
	api.Events(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextEndpoint(t *testing.T) {
	api, _ := testAPI()
	postJSON(t, api.Ingest, "/api/ingest", scrapedPayload())

	req := httptest.NewRequest(http.MethodGet, "/api/context?domain=flowers.example.com&goal=rose", nil)
	rec := httptest.NewRecorder()
	api.Context(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got["context"], "Rose Bouquet")
}

func TestHealthEndpoint(t *testing.T) {
	api, _ := testAPI()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	api.Health(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRoutes(t *testing.T) {
	api, _ := testAPI()
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/health", srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
