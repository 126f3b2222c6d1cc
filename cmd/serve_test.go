package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddtlab/distance-cli/internal/geocache"
	"github.com/ddtlab/distance-cli/internal/model"
	"github.com/ddtlab/distance-cli/internal/session"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "distance.db")
	cache, err := geocache.Open(path)
	require.NoError(t, err)
	sessions, err := session.Open(path)
	require.NoError(t, err)
	e := &env{Cache: cache, Sessions: sessions}
	t.Cleanup(e.Close)
	return e
}

func seedSession(t *testing.T, e *env, id string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.Sessions.Create(ctx, id, 100, 50)
	require.NoError(t, err)
	km := 102.5
	require.NoError(t, e.Sessions.CommitBatch(ctx, model.BatchRecord{
		SessionID: id,
		Index:     0,
		Rows: []model.RowResult{{
			Pair:       model.AddressPair{Row: 0, Origin: "PARIS", Destination: "LYON"},
			Verdict:    model.VerdictAveraged,
			DistanceKM: &km,
		}},
	}))
}

func doRequest(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServe_Health(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := doRequest(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_Sessions(t *testing.T) {
	e := newTestEnv(t)
	seedSession(t, e, "sess-1")
	mux := newServeMux(e)

	rec := doRequest(t, mux, "/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []model.SessionManifest `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "sess-1", body.Sessions[0].SessionID)
	assert.Equal(t, []int{0}, body.Sessions[0].Completed)
}

func TestServe_SessionByID(t *testing.T) {
	e := newTestEnv(t)
	seedSession(t, e, "sess-1")
	mux := newServeMux(e)

	rec := doRequest(t, mux, "/sessions/sess-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var m model.SessionManifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 100, m.TotalRows)

	rec = doRequest(t, mux, "/sessions/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_SessionResults(t *testing.T) {
	e := newTestEnv(t)
	seedSession(t, e, "sess-1")
	mux := newServeMux(e)

	rec := doRequest(t, mux, "/sessions/sess-1/results")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string              `json:"session_id"`
		Batches   []model.BatchRecord `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Batches, 1)
	require.Len(t, body.Batches[0].Rows, 1)
	assert.Equal(t, model.VerdictAveraged, body.Batches[0].Rows[0].Verdict)

	rec = doRequest(t, mux, "/sessions/nope/results")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_CacheStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Cache.Put(ctx, "PARIS", "nominatim", 48.85, 2.35))
	_, err := e.Cache.Get(ctx, "PARIS", "nominatim")
	require.NoError(t, err)
	mux := newServeMux(e)

	rec := doRequest(t, mux, "/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries int64   `json:"entries"`
		Hits    int64   `json:"hits"`
		HitRate float64 `json:"hit_rate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Entries)
	assert.Equal(t, int64(1), body.Hits)
	assert.Equal(t, 1.0, body.HitRate)
}
