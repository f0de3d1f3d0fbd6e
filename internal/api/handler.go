// Package api exposes the metrics engine and session history over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/keytally/internal/metrics"
	"github.com/verte-zerg/keytally/internal/model"
)

const (
	defaultSlowestLimit  = 10
	defaultSlowestWindow = 20
)

// Store is the persistence the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	InsertSession(ctx context.Context, stats model.SessionStats, chars []model.CharStats, bigrams []model.BigramStats) (int64, error)
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
	UpsertKeyStats(ctx context.Context, stats []model.PerKeyStat, now time.Time) error
	ListKeyStats(ctx context.Context) ([]model.CharAggregate, error)
	GetSlowBigrams(ctx context.Context, window int, lang string) ([]model.BigramAggregate, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewHandler builds a Handler. A nil logger discards output.
func NewHandler(store Store, m *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if m == nil {
		m = NewMetrics()
	}
	return &Handler{store: store, logger: logger, metrics: m, now: time.Now}
}

// CompleteSessionRequest is the body of POST /api/sessions/complete.
type CompleteSessionRequest struct {
	TargetText string                 `json:"targetText" binding:"required"`
	Keystrokes []model.KeystrokeEvent `json:"keystrokes"`
	Lang       string                 `json:"lang"`
	StartedAt  *time.Time             `json:"startedAt"`
}

// CompleteSessionResponse carries the scored session.
type CompleteSessionResponse struct {
	SessionID int64                `json:"sessionId"`
	Metrics   model.TypingMetrics  `json:"metrics"`
	PerKey    []model.PerKeyStat   `json:"perKey"`
	Sequences []model.SequenceStat `json:"sequences"`
}

// LiveMetricsRequest is the body of POST /api/metrics/live. Now defaults to
// the last keystroke timestamp.
type LiveMetricsRequest struct {
	TargetText string                 `json:"targetText"`
	Keystrokes []model.KeystrokeEvent `json:"keystrokes"`
	Now        *int64                 `json:"now"`
}

// KeyStatsRequest is the body of POST /api/keystroke-tracking/update-key-stats.
type KeyStatsRequest struct {
	TargetText string                 `json:"targetText"`
	Keystrokes []model.KeystrokeEvent `json:"keystrokes"`
}

// Health reports service and database status.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("database ping failed", "error", err)
		fail(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	success(c, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
		},
	})
}

// CompleteSession scores a finished session and stores it.
func (h *Handler) CompleteSession(c *gin.Context) {
	var req CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result := metrics.CalculateMetrics(req.Keystrokes, req.TargetText)
	perKey := metrics.GetPerKeyStats(metrics.EnhanceKeystrokes(req.Keystrokes))
	sequences := metrics.CalculateSequenceStats(req.Keystrokes, req.TargetText)

	endedAt := h.now()
	startedAt := endedAt.Add(-time.Duration(result.DurationMs) * time.Millisecond)
	if req.StartedAt != nil && !req.StartedAt.IsZero() {
		startedAt = *req.StartedAt
		endedAt = startedAt.Add(time.Duration(result.DurationMs) * time.Millisecond)
	}
	lang := req.Lang
	if lang == "" {
		lang = "en"
	}
	stats := model.SessionStats{
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Lang:      lang,
		Words:     len(strings.Fields(req.TargetText)),
		Source:    "api",
		TargetLen: len([]rune(req.TargetText)),
		Metrics:   result,
	}
	id, err := h.store.InsertSession(c.Request.Context(), stats, metrics.ToCharStats(perKey), metrics.ToBigramStats(sequences))
	if err != nil {
		h.logger.Error("failed to save session", "error", err)
		_ = c.Error(err)
		internalError(c)
		return
	}
	h.metrics.sessionsCompleted.Inc()
	h.metrics.keystrokes.Add(float64(len(req.Keystrokes)))
	h.logger.Info("session saved", "session_id", id, "net_wpm", result.NetWPM, "accuracy", result.Accuracy)

	if perKey == nil {
		perKey = []model.PerKeyStat{}
	}
	if sequences == nil {
		sequences = []model.SequenceStat{}
	}
	created(c, CompleteSessionResponse{
		SessionID: id,
		Metrics:   result,
		PerKey:    perKey,
		Sequences: sequences,
	})
}

// LiveMetrics returns a snapshot for an in-progress session.
func (h *Handler) LiveMetrics(c *gin.Context) {
	var req LiveMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var now int64
	if req.Now != nil {
		now = *req.Now
	} else if n := len(req.Keystrokes); n > 0 {
		now = req.Keystrokes[n-1].Timestamp
	}
	h.metrics.keystrokes.Add(float64(len(req.Keystrokes)))
	success(c, metrics.CalculateLiveMetrics(req.Keystrokes, req.TargetText, now))
}

// UpdateKeyStats merges the per-key stats of a log into the cumulative table.
func (h *Handler) UpdateKeyStats(c *gin.Context) {
	var req KeyStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	perKey := metrics.GetPerKeyStats(metrics.EnhanceKeystrokes(req.Keystrokes))
	if err := h.store.UpsertKeyStats(c.Request.Context(), perKey, h.now()); err != nil {
		h.logger.Error("failed to update key stats", "error", err)
		_ = c.Error(err)
		internalError(c)
		return
	}
	h.metrics.keystrokes.Add(float64(len(req.Keystrokes)))
	if perKey == nil {
		perKey = []model.PerKeyStat{}
	}
	success(c, perKey)
}

// KeyStats lists cumulative per-key stats. With ?slowest=N only the N slowest
// keys are returned.
func (h *Handler) KeyStats(c *gin.Context) {
	slowest, ok := intQuery(c, "slowest", 0)
	if !ok {
		return
	}
	aggs, err := h.store.ListKeyStats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list key stats", "error", err)
		_ = c.Error(err)
		internalError(c)
		return
	}
	out := make([]model.PerKeyStat, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, model.PerKeyStat{
			Key:          agg.Char,
			Attempts:     agg.Attempts,
			Correct:      agg.Correct,
			AvgLatencyMs: agg.AvgLatencyMs,
		})
	}
	if slowest > 0 {
		out = metrics.SlowestKeys(out, slowest)
	}
	success(c, out)
}

// Sessions lists stored sessions, oldest first.
func (h *Handler) Sessions(c *gin.Context) {
	last, ok := intQuery(c, "last", 0)
	if !ok {
		return
	}
	sessions, err := h.store.ListSessions(c.Request.Context(), model.StatsConfig{Lang: c.Query("lang")})
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		_ = c.Error(err)
		internalError(c)
		return
	}
	if last > 0 && len(sessions) > last {
		sessions = sessions[len(sessions)-last:]
	}
	if sessions == nil {
		sessions = []model.SessionAggregate{}
	}
	success(c, sessions)
}

// SlowestSequences returns the slowest bigrams over recent sessions.
func (h *Handler) SlowestSequences(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultSlowestLimit)
	if !ok {
		return
	}
	window, ok := intQuery(c, "window", defaultSlowestWindow)
	if !ok {
		return
	}
	minCount, ok := intQuery(c, "min", 1)
	if !ok {
		return
	}
	aggs, err := h.store.GetSlowBigrams(c.Request.Context(), window, c.Query("lang"))
	if err != nil {
		h.logger.Error("failed to load slow bigrams", "error", err)
		_ = c.Error(err)
		internalError(c)
		return
	}
	seqs := make([]model.SequenceStat, 0, len(aggs))
	for _, agg := range aggs {
		seqs = append(seqs, model.SequenceStat{Bigram: agg.Bigram, Count: agg.Count, AvgLatencyMs: agg.AvgLatencyMs})
	}
	// Stable input order keeps ties deterministic.
	sort.SliceStable(seqs, func(i, j int) bool { return seqs[i].Bigram < seqs[j].Bigram })
	success(c, metrics.SlowestSequences(seqs, limit, minCount))
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}
