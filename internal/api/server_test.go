package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct{}

func (stubStats) Stats() map[string]int64 {
	return map[string]int64{"records_received": 7, "records_failed": 1}
}

func serve(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer("127.0.0.1:0", stubStats{}, reg)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStats(t *testing.T) {
	rec := serve(t, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var payload struct {
		Time  string           `json:"time"`
		Stats map[string]int64 `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Time)
	assert.Equal(t, int64(7), payload.Stats["records_received"])
	assert.Equal(t, int64(1), payload.Stats["records_failed"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	rec := serve(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
