package tui

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/store"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLessonModel(t *testing.T, lesson string, st *store.Store) (*Model, *stepClock) {
	t.Helper()
	clock := &stepClock{t: time.Unix(1000, 0)}
	m := NewModel(model.Config{Lang: "en", Words: 1}, Options{Store: st, Lesson: lesson, Source: "test"})
	m.now = clock.now
	m.created = clock.now()
	return m, clock
}

func typeKey(m *Model, clock *stepClock, msg tea.KeyMsg) {
	clock.advance(200 * time.Millisecond)
	m.Update(msg)
}

func runeKey(r rune) tea.KeyMsg {
	if r == ' ' {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{
		targetRunes: []rune("abcd"),
		inputRunes:  []rune("ab"),
		hasLive:     true,
		live:        model.LiveMetrics{CurrentWPM: 55.5, CurrentAccuracy: 100},
		hasLast:     true,
		lastWPM:     72.4,
		lastAcc:     97.8,
		allWPM:      68.1,
		allAcc:      96.9,
	}
	out := m.renderFooter()
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"Progress 50%", "Live 55.5 WPM", "Last 72.4 WPM", "97.8%", "All-time 68.1 WPM", "96.9%"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestKeystrokesAreRecordedWithExpectedKeys(t *testing.T) {
	m, clock := newLessonModel(t, "ab", nil)
	typeKey(m, clock, runeKey('x'))
	typeKey(m, clock, tea.KeyMsg{Type: tea.KeyBackspace})

	if len(m.keystrokes) != 2 {
		t.Fatalf("expected 2 keystrokes, got %d", len(m.keystrokes))
	}
	first := m.keystrokes[0]
	if first.Key != "x" || first.ExpectedKey != "a" || first.Timestamp != 200 {
		t.Fatalf("unexpected first keystroke: %+v", first)
	}
	second := m.keystrokes[1]
	if second.Key != model.KeyBackspace || second.Timestamp != 400 {
		t.Fatalf("unexpected backspace keystroke: %+v", second)
	}
	if len(m.inputRunes) != 0 {
		t.Fatalf("expected backspace to remove input")
	}

	// Backspace on empty input is not recorded.
	typeKey(m, clock, tea.KeyMsg{Type: tea.KeyBackspace})
	if len(m.keystrokes) != 2 {
		t.Fatalf("expected no keystroke for empty backspace")
	}
}

func TestLiveTickUpdatesMetrics(t *testing.T) {
	m, clock := newLessonModel(t, "cat dog", nil)
	m.Update(liveTickMsg(clock.now()))
	if m.hasLive {
		t.Fatalf("expected no live metrics before typing starts")
	}
	for _, r := range "cat" {
		typeKey(m, clock, runeKey(r))
	}
	clock.advance(200 * time.Millisecond)
	_, cmd := m.Update(liveTickMsg(clock.now()))
	if cmd == nil {
		t.Fatalf("expected tick to reschedule")
	}
	if !m.hasLive {
		t.Fatalf("expected live metrics after tick")
	}
	if m.live.CurrentAccuracy != 100 {
		t.Fatalf("expected 100%% live accuracy, got %v", m.live.CurrentAccuracy)
	}
	if m.live.TimeElapsed <= 0 || m.live.CurrentWPM <= 0 {
		t.Fatalf("expected positive live metrics, got %+v", m.live)
	}
}

func TestFinishSessionPersistsMetrics(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "keytally.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	m, clock := newLessonModel(t, "cat", st)
	for _, r := range "cat" {
		typeKey(m, clock, runeKey(r))
	}

	if !m.hasLast {
		t.Fatalf("expected last session stats after finishing")
	}
	// Three keystrokes 200ms apart span 400ms: 3/5 words in 1/150 minute.
	if math.Abs(m.lastWPM-90) > 1e-9 || m.lastAcc != 100 {
		t.Fatalf("unexpected last stats: wpm=%v acc=%v", m.lastWPM, m.lastAcc)
	}
	if len(m.inputRunes) != 0 || len(m.keystrokes) != 0 {
		t.Fatalf("expected session reset after finish")
	}

	ctx := context.Background()
	sessions, err := st.ListSessions(ctx, model.StatsConfig{Lang: "en"})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if math.Abs(sessions[0].NetWPM-90) > 1e-9 || sessions[0].DurationMs != 400 {
		t.Fatalf("unexpected stored session: %+v", sessions[0])
	}

	chars, err := st.ListCharAggregatesForSessions(ctx, []int64{sessions[0].SessionID})
	if err != nil {
		t.Fatalf("list chars: %v", err)
	}
	if len(chars) != 3 {
		t.Fatalf("expected 3 char stats, got %+v", chars)
	}
	bigrams, err := st.ListBigramAggregatesForSessions(ctx, []int64{sessions[0].SessionID})
	if err != nil {
		t.Fatalf("list bigrams: %v", err)
	}
	if len(bigrams) != 2 {
		t.Fatalf("expected 2 bigram stats, got %+v", bigrams)
	}
	keyStats, err := st.ListKeyStats(ctx)
	if err != nil {
		t.Fatalf("list key stats: %v", err)
	}
	if len(keyStats) != 3 {
		t.Fatalf("expected cumulative key stats, got %+v", keyStats)
	}
}

func TestViewRendersLesson(t *testing.T) {
	m, _ := newLessonModel(t, "hello world", nil)
	if !strings.Contains(m.View(), "ello world") {
		t.Fatalf("expected lesson text in view")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
