package stats

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions         []model.SessionAggregate
	WindowSessionIDs []int64
	CharAggsAll      []model.CharAggregate
	CharAggsWindow   []model.CharAggregate
	BigramAggsWindow []model.BigramAggregate
	CharCurveChars   []string
	CharPerSession   map[int64]map[string]model.CharAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}

	allIDs := sessionIDs(sessions)
	windowIDs := lastSessionIDs(sessions, cfg.CurveWindow)
	charAggsAll, err := st.ListCharAggregatesForSessions(ctx, allIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate chars: %w", err)
	}
	charAggsWindow, err := st.ListCharAggregatesForSessions(ctx, windowIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate chars: %w", err)
	}
	bigramAggsWindow, err := st.ListBigramAggregatesForSessions(ctx, windowIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate bigrams: %w", err)
	}

	chars := parseChars(cfg.Chars)
	if len(chars) == 0 {
		chars = TopCharsByFrequency(charAggsAll, 3)
	}
	perSession, err := st.ListCharStatsForSessions(ctx, allIDs, chars)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load char curves: %w", err)
	}

	return Report{
		Sessions:         sessions,
		WindowSessionIDs: windowIDs,
		CharAggsAll:      charAggsAll,
		CharAggsWindow:   charAggsWindow,
		BigramAggsWindow: bigramAggsWindow,
		CharCurveChars:   chars,
		CharPerSession:   perSession,
	}, nil
}

// Render writes the full text report. width sizes the plots; 0 uses the terminal width.
func (r Report) Render(w io.Writer, cfg model.StatsConfig, width int) error {
	if err := RenderSummary(w, r.Sessions); err != nil {
		return err
	}
	if len(r.Sessions) == 0 {
		return nil
	}
	if err := RenderCurvesWithWidth(w, r.Sessions, cfg.CurveWindow, width); err != nil {
		return err
	}
	if err := RenderCharTable(w, r.CharAggsWindow); err != nil {
		return err
	}
	if err := RenderBigramTable(w, r.BigramAggsWindow, cfg.Bigrams); err != nil {
		return err
	}
	return RenderCharCurves(w, r.Sessions, r.CharPerSession, r.CharCurveChars, cfg.CurveWindow, width)
}

func parseChars(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if part == "<space>" {
			part = " "
		}
		if seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func sessionIDs(sessions []model.SessionAggregate) []int64 {
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}

func lastSessionIDs(sessions []model.SessionAggregate, window int) []int64 {
	if window <= 0 || len(sessions) <= window {
		return sessionIDs(sessions)
	}
	return sessionIDs(sessions[len(sessions)-window:])
}
