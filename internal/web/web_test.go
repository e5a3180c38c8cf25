package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calview/internal/config"
	"calview/internal/ics"
)

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, ics.NewFetcher(t.TempDir())).Handler()
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCollectionEndpointShape(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/collection?granularity=week&date=2025-03-05", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp collectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "week", resp.Granularity)
	assert.Equal(t, "2025-03-03", resp.RangeStart)
	assert.Equal(t, "2025-03-09", resp.RangeEnd)
	require.Len(t, resp.Days, 7)
	assert.Equal(t, "2025-03-05", resp.Days[2].Date)
	assert.Equal(t, 2, resp.TotalLanes, "capacity floor holds with no events")
	assert.Equal(t, 0, resp.Overflow.Count)
}

func TestCollectionEndpointRejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/collection?granularity=fortnight", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/collection?date=03/05/2025", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/suggestions?date=2025-03-11", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []suggestionGroupDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 3)

	var labels []string
	for _, g := range groups {
		for _, s := range g.Suggestions {
			labels = append(labels, s.Label)
		}
	}
	assert.Contains(t, labels, "Every Tuesday")
	assert.Contains(t, labels, "Every month on the 2nd Tuesday")
}

func TestBasicAuthProtectsAPIButNotHealth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	h := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/suggestions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/suggestions", nil)
	req.SetBasicAuth("u", "wrong")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/suggestions", nil)
	req.SetBasicAuth("u", "p")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
