// Package activity measures idle-aware typing activity.
//
// A Tracker counts keystrokes and backspaces and accumulates "active" time only
// while activity keeps arriving. Once no activity has been seen for the idle
// timeout, the open burst is folded into the running total and the clock
// freezes until the next keystroke.
package activity

import (
	"math"
	"sync"
	"time"

	"github.com/verte-zerg/keytally/internal/model"
)

// DefaultIdleTimeout is used when a non-positive timeout is configured.
const DefaultIdleTimeout = 5 * time.Second

// Tracker is safe for concurrent use; idle timers fire on their own goroutine.
type Tracker struct {
	mu    sync.Mutex
	clock Clock

	idleTimeout time.Duration
	timer       Timer
	generation  uint64

	totalKeystrokes int
	backspaces      int
	activeDuration  time.Duration
	burstStart      time.Time
	paused          bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// New returns an idle Tracker.
func New(idleTimeout time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		clock:       realClock{},
		idleTimeout: normalizeTimeout(idleTimeout),
		paused:      true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a fresh session. The first activity opens the first burst.
func (t *Tracker) Start() {
	t.Reset()
}

// Reset zeroes all counters, cancels the pending idle timer and leaves the
// tracker idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTimerLocked()
	t.totalKeystrokes = 0
	t.backspaces = 0
	t.activeDuration = 0
	t.burstStart = time.Time{}
	t.paused = true
}

// HandleActivity records one text change and restarts the idle countdown.
func (t *Tracker) HandleActivity(isBackspace bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		t.burstStart = t.clock.Now()
		t.paused = false
	}
	t.totalKeystrokes++
	if isBackspace {
		t.backspaces++
	}
	t.scheduleLocked()
}

// UpdateConfiguration changes the idle timeout. A pending countdown is
// restarted under the new timeout immediately.
func (t *Tracker) UpdateConfiguration(idleTimeoutSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idleTimeout = normalizeTimeout(time.Duration(idleTimeoutSeconds * float64(time.Second)))
	if t.timer != nil {
		t.scheduleLocked()
	}
}

// IdleTimeout returns the current idle threshold.
func (t *Tracker) IdleTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idleTimeout
}

// Metrics returns a snapshot including time accrued in the open burst.
func (t *Tracker) Metrics() model.ActivitySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := t.activeDuration
	if !t.paused {
		duration += t.clock.Now().Sub(t.burstStart)
	}
	snap := model.ActivitySnapshot{
		TotalKeystrokes:  t.totalKeystrokes,
		Backspaces:       t.backspaces,
		ActiveDurationMs: duration.Milliseconds(),
		Accuracy:         100,
		IsPaused:         t.paused,
	}
	if minutes := duration.Minutes(); minutes > 0 {
		snap.WPM = (float64(t.totalKeystrokes) / 5) / minutes
	}
	if t.totalKeystrokes > 0 {
		// Backspace ratio is the only cleanliness signal without a target text.
		snap.Accuracy = math.Max(0, 100*(1-float64(t.backspaces)/float64(t.totalKeystrokes)))
	}
	return snap
}

// scheduleLocked cancels the pending countdown before arming a new one. The
// generation check drops a callback that was already running when Stop lost.
func (t *Tracker) scheduleLocked() {
	t.cancelTimerLocked()
	gen := t.generation
	t.timer = t.clock.AfterFunc(t.idleTimeout, func() {
		t.onIdle(gen)
	})
}

func (t *Tracker) cancelTimerLocked() {
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) onIdle(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation {
		return
	}
	t.timer = nil
	t.pauseLocked()
}

func (t *Tracker) pauseLocked() {
	if t.paused {
		return
	}
	t.activeDuration += t.clock.Now().Sub(t.burstStart)
	t.burstStart = time.Time{}
	t.paused = true
}

func normalizeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultIdleTimeout
	}
	return d
}
