package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, cfg Config) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := NewHandler(st, NewMetrics(), nil)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewRouter(h, cfg), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func catKeystrokes() []model.KeystrokeEvent {
	return []model.KeystrokeEvent{
		{Key: "c", EventType: model.EventKeydown, Timestamp: 0, ExpectedKey: "c"},
		{Key: "a", EventType: model.EventKeydown, Timestamp: 200, ExpectedKey: "a"},
		{Key: "t", EventType: model.EventKeydown, Timestamp: 400, ExpectedKey: "t"},
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	rec, env := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.Contains(t, string(env.Data), `"database":"up"`)
}

func TestHealthDatabaseDown(t *testing.T) {
	router, st := newTestRouter(t, Config{})
	require.NoError(t, st.Close())
	rec, env := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Database unavailable", env.Message)
}

func TestCompleteSession(t *testing.T) {
	router, st := newTestRouter(t, Config{})
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/complete", CompleteSessionRequest{
		TargetText: "cat",
		Keystrokes: catKeystrokes(),
		Lang:       "en",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CompleteSessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Positive(t, resp.SessionID)
	assert.InDelta(t, 90, resp.Metrics.NetWPM, 1e-9)
	assert.InDelta(t, 100, resp.Metrics.Accuracy, 1e-9)
	assert.Equal(t, int64(400), resp.Metrics.DurationMs)
	assert.Len(t, resp.PerKey, 3)
	assert.Len(t, resp.Sequences, 2)

	sessions, err := st.ListSessions(t.Context(), model.StatsConfig{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "en", sessions[0].Lang)
	assert.InDelta(t, 90, sessions[0].NetWPM, 1e-9)
}

func TestCompleteSessionRequiresTarget(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	rec, env := doJSON(t, router, http.MethodPost, "/api/sessions/complete", map[string]any{
		"keystrokes": catKeystrokes(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Code)
}

func TestLiveMetrics(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	now := int64(600)
	rec, env := doJSON(t, router, http.MethodPost, "/api/metrics/live", LiveMetricsRequest{
		TargetText: "cat",
		Keystrokes: catKeystrokes()[:2],
		Now:        &now,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var live model.LiveMetrics
	require.NoError(t, json.Unmarshal(env.Data, &live))
	assert.Equal(t, int64(600), live.TimeElapsed)
	assert.InDelta(t, 2.0/3.0, live.Progress, 1e-9)
	assert.InDelta(t, 100, live.CurrentAccuracy, 1e-9)
	assert.InDelta(t, 200, live.AverageKeyDelay, 1e-9)
}

func TestLiveMetricsDefaultsToLastKeystroke(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	_, env := doJSON(t, router, http.MethodPost, "/api/metrics/live", LiveMetricsRequest{
		TargetText: "cat",
		Keystrokes: catKeystrokes(),
	})
	var live model.LiveMetrics
	require.NoError(t, json.Unmarshal(env.Data, &live))
	assert.Equal(t, int64(400), live.TimeElapsed)
	assert.InDelta(t, 1, live.Progress, 1e-9)
}

func TestKeyStatsUpsertAndList(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	for i := 0; i < 2; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/keystroke-tracking/update-key-stats", KeyStatsRequest{
			TargetText: "cat",
			Keystrokes: catKeystrokes(),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/keystroke-tracking/key-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.PerKeyStat
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 3)
	for _, stat := range all {
		assert.Equal(t, 2, stat.Attempts, stat.Key)
		assert.Equal(t, 2, stat.Correct, stat.Key)
	}

	_, env = doJSON(t, router, http.MethodGet, "/api/keystroke-tracking/key-stats?slowest=1", nil)
	var slowest []model.PerKeyStat
	require.NoError(t, json.Unmarshal(env.Data, &slowest))
	require.Len(t, slowest, 1)
	assert.InDelta(t, 200, slowest[0].AvgLatencyMs, 1e-9)
}

func TestSessionsAndSlowestSequences(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	slow := []model.KeystrokeEvent{
		{Key: "c", EventType: model.EventKeydown, Timestamp: 0, ExpectedKey: "c"},
		{Key: "a", EventType: model.EventKeydown, Timestamp: 100, ExpectedKey: "a"},
		{Key: "t", EventType: model.EventKeydown, Timestamp: 500, ExpectedKey: "t"},
	}
	for _, keys := range [][]model.KeystrokeEvent{catKeystrokes(), slow} {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/sessions/complete", CompleteSessionRequest{
			TargetText: "cat",
			Keystrokes: keys,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	_, env := doJSON(t, router, http.MethodGet, "/api/sessions?lang=en&last=1", nil)
	var sessions []model.SessionAggregate
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 1)

	_, env = doJSON(t, router, http.MethodGet, "/api/sequences/slowest?limit=1", nil)
	var seqs []model.SequenceStat
	require.NoError(t, json.Unmarshal(env.Data, &seqs))
	require.Len(t, seqs, 1)
	assert.Equal(t, "at", seqs[0].Bigram)
	assert.Equal(t, 2, seqs[0].Count)
	assert.InDelta(t, 300, seqs[0].AvgLatencyMs, 1e-9)
}

func TestInvalidQueryParameter(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	rec, env := doJSON(t, router, http.MethodGet, "/api/sequences/slowest?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid limit parameter", env.Message)
}

func TestRateLimiter(t *testing.T) {
	router, _ := newTestRouter(t, Config{RateLimit: 1, RateBurst: 1})
	rec, _ := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many requests", env.Message)

	// Health sits outside the limited group.
	rec, _ = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, Config{})
	doJSON(t, router, http.MethodPost, "/api/sessions/complete", CompleteSessionRequest{
		TargetText: "cat",
		Keystrokes: catKeystrokes(),
	})
	rec, _ := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "keytally_http_requests_total")
	assert.Contains(t, body, "keytally_sessions_completed_total 1")
	assert.Contains(t, body, "keytally_keystrokes_processed_total 3")
}

func TestIPLimiterSweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(1, 1)
	start := time.Unix(1000, 0)
	assert.True(t, l.allow("a", start))
	assert.False(t, l.allow("a", start))
	assert.True(t, l.allow("b", start.Add(5*time.Minute)))
	_, ok := l.visitors["a"]
	assert.False(t, ok)
}
