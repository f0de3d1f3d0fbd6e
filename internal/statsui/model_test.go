package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/stats"
)

func sampleReport() stats.Report {
	sessions := []model.SessionAggregate{
		{SessionID: 1, EndedAt: time.Unix(100, 0), Lang: "en", GrossWPM: 50, NetWPM: 45, Accuracy: 95, DurationMs: 60000},
		{SessionID: 2, EndedAt: time.Unix(200, 0), Lang: "en", GrossWPM: 60, NetWPM: 58, Accuracy: 98, DurationMs: 60000},
	}
	return stats.Report{
		Sessions:         sessions,
		WindowSessionIDs: []int64{1, 2},
		CharAggsWindow:   []model.CharAggregate{{Char: "q", Attempts: 4, Correct: 2, AvgLatencyMs: 310}},
		BigramAggsWindow: []model.BigramAggregate{{Bigram: "th", Count: 3, AvgLatencyMs: 180}},
	}
}

func sized(t *testing.T, m *Model) *Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(*Model)
}

func press(m *Model, s string) *Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return updated.(*Model)
}

func TestOverviewShowsSummary(t *testing.T) {
	m := sized(t, NewModel(func(context.Context, model.StatsConfig) (stats.Report, error) {
		return sampleReport(), nil
	}, model.StatsConfig{CurveWindow: 20}))

	view := m.View()
	if !strings.Contains(view, "Avg Net WPM") {
		t.Fatalf("expected summary in overview, got:\n%s", view)
	}
	if !strings.Contains(view, "sessions=2") {
		t.Fatalf("expected session count in header, got:\n%s", view)
	}
	if !strings.Contains(view, "Learning Curves (window 20)") || !strings.Contains(view, "Legend:") {
		t.Fatalf("expected learning curve plot in overview, got:\n%s", view)
	}
}

func TestTabNavigation(t *testing.T) {
	m := sized(t, NewModel(func(context.Context, model.StatsConfig) (stats.Report, error) {
		return sampleReport(), nil
	}, model.StatsConfig{CurveWindow: 20, Bigrams: 5}))

	m = press(m, "l")
	if m.activeTab != tabKeys {
		t.Fatalf("expected keys tab, got %d", m.activeTab)
	}
	if !strings.Contains(m.View(), "Per-Character") {
		t.Fatalf("expected char table in keys tab")
	}
	m = press(m, "l")
	if !strings.Contains(m.View(), "Slowest Bigrams") {
		t.Fatalf("expected bigram table in bigrams tab")
	}
	m = press(m, "h")
	m = press(m, "h")
	m = press(m, "h")
	if m.activeTab != tabCharCurves {
		t.Fatalf("expected wrap to last tab, got %d", m.activeTab)
	}
}

func TestCurveWindowReloads(t *testing.T) {
	var windows []int
	m := NewModel(func(_ context.Context, cfg model.StatsConfig) (stats.Report, error) {
		windows = append(windows, cfg.CurveWindow)
		return sampleReport(), nil
	}, model.StatsConfig{CurveWindow: 20})

	m = press(m, "=")
	m = press(m, "-")
	m = press(m, "-")
	want := []int{20, 25, 20, 15}
	if len(windows) != len(want) {
		t.Fatalf("expected %d loads, got %v", len(want), windows)
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Fatalf("load %d: expected window %d, got %d", i, want[i], windows[i])
		}
	}
}

func TestLoadErrorShownInFooter(t *testing.T) {
	m := sized(t, NewModel(func(context.Context, model.StatsConfig) (stats.Report, error) {
		return stats.Report{}, errors.New("db locked")
	}, model.StatsConfig{CurveWindow: 20}))

	view := m.View()
	if !strings.Contains(view, "db locked") {
		t.Fatalf("expected error in footer, got:\n%s", view)
	}
	if !strings.Contains(view, "Failed to load stats.") {
		t.Fatalf("expected failure placeholder, got:\n%s", view)
	}
}

func TestCurveWindowSteps(t *testing.T) {
	cases := []struct {
		in, next, prev int
	}{
		{1, 5, 1},
		{5, 10, 1},
		{7, 10, 5},
		{20, 25, 15},
	}
	for _, tc := range cases {
		if got := nextCurveWindow(tc.in); got != tc.next {
			t.Fatalf("nextCurveWindow(%d) = %d, want %d", tc.in, got, tc.next)
		}
		if got := prevCurveWindow(tc.in); got != tc.prev {
			t.Fatalf("prevCurveWindow(%d) = %d, want %d", tc.in, got, tc.prev)
		}
	}
}
