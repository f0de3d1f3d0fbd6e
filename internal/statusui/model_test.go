package statusui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keytally/internal/model"
)

type stubTracker struct {
	mu      sync.Mutex
	snap    model.ActivitySnapshot
	idle    time.Duration
	resets  int
	updates []float64
}

func (s *stubTracker) Metrics() model.ActivitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.snap = model.ActivitySnapshot{Accuracy: 100, IsPaused: true}
}

func (s *stubTracker) UpdateConfiguration(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, seconds)
	s.idle = time.Duration(seconds * float64(time.Second))
}

func (s *stubTracker) IdleTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *stubTracker) set(snap model.ActivitySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPollAppendsHistoryOnNewKeystrokes(t *testing.T) {
	tr := &stubTracker{idle: 5 * time.Second, snap: model.ActivitySnapshot{Accuracy: 100, IsPaused: true}}
	m := NewModel(tr, []string{"/src"})

	_, cmd := m.Update(pollMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Empty(t, m.rows)

	tr.set(model.ActivitySnapshot{TotalKeystrokes: 10, WPM: 40, Accuracy: 90, ActiveDurationMs: 3000})
	m.Update(pollMsg(time.Now()))
	require.Len(t, m.rows, 1)
	assert.Equal(t, "10", m.rows[0][1])
	assert.Equal(t, "0:03", m.rows[0][4])

	// Unchanged keystroke count adds nothing.
	m.Update(pollMsg(time.Now()))
	assert.Len(t, m.rows, 1)

	view := m.View()
	assert.Contains(t, view, "ACTIVE")
	assert.Contains(t, view, "/src")
	assert.Contains(t, view, "40.0")
}

func TestKeysDriveTracker(t *testing.T) {
	tr := &stubTracker{idle: 5 * time.Second}
	m := NewModel(tr, nil)

	m.Update(keyMsg("+"))
	assert.Equal(t, 6*time.Second, tr.IdleTimeout())

	m.Update(keyMsg("-"))
	m.Update(keyMsg("-"))
	assert.Equal(t, 4*time.Second, tr.IdleTimeout())

	tr.idle = time.Second
	m.Update(keyMsg("-"))
	assert.Equal(t, time.Second, tr.IdleTimeout(), "idle timeout has a floor")

	tr.set(model.ActivitySnapshot{TotalKeystrokes: 3})
	m.Update(pollMsg(time.Now()))
	require.Len(t, m.rows, 1)
	m.Update(keyMsg("r"))
	assert.Equal(t, 1, tr.resets)
	assert.Empty(t, m.rows)
	assert.Contains(t, m.View(), "PAUSED")

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPlainLine(t *testing.T) {
	at := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)
	line := PlainLine(at, model.ActivitySnapshot{TotalKeystrokes: 12, Backspaces: 2, WPM: 24, Accuracy: 83.3333, ActiveDurationMs: 65000, IsPaused: true})
	assert.Equal(t, "13:04:05 paused keys=12 backspaces=2 wpm=24.0 accuracy=83.3% active=1:05", line)
}

func TestRunPlainStopsOnCancel(t *testing.T) {
	tr := &stubTracker{snap: model.ActivitySnapshot{TotalKeystrokes: 1, Accuracy: 100}}
	ctx, cancel := context.WithCancel(context.Background())
	var buf safeBuffer
	done := make(chan error, 1)
	go func() {
		done <- RunPlain(ctx, &buf, tr, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "keys=1")
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPlain did not stop after cancel")
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "unchanged status is printed once")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
