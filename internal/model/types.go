// Package model defines shared data structures.
package model

import "time"

// Key labels and event types carried by keystroke logs.
const (
	KeyBackspace = "Backspace"
	KeyShift     = "Shift"
	EventKeydown = "keydown"
)

// KeystrokeEvent is one observed key action.
type KeystrokeEvent struct {
	Key         string `json:"key"`
	KeyCode     string `json:"keyCode,omitempty"`
	EventType   string `json:"eventType"`
	Timestamp   int64  `json:"timestamp"`
	ExpectedKey string `json:"expectedKey"`
}

// IsShift reports whether the event is a modifier press that carries no correctness signal.
func (e KeystrokeEvent) IsShift() bool {
	return e.Key == KeyShift || e.ExpectedKey == KeyShift
}

// IsBackspace reports whether the event deletes the previous character.
func (e KeystrokeEvent) IsBackspace() bool {
	return e.Key == KeyBackspace
}

// EnhancedKeystrokeEvent is a keystroke annotated with correctness and latency.
type EnhancedKeystrokeEvent struct {
	KeystrokeEvent
	IsCorrect bool  `json:"isCorrect"`
	LatencyMs int64 `json:"latencyMs"`
}

// TypingMetrics is the session-level result of a keystroke log.
type TypingMetrics struct {
	GrossWPM     float64 `json:"grossWPM"`
	NetWPM       float64 `json:"netWPM"`
	Accuracy     float64 `json:"accuracy"`
	Errors       int     `json:"errors"`
	DurationMs   int64   `json:"durationMs"`
	TotalChars   int     `json:"totalChars"`
	CorrectChars int     `json:"correctChars"`
	Backspaces   int     `json:"backspaces"`
	Progress     float64 `json:"progress"`
}

// LiveMetrics is a snapshot of an in-progress session.
type LiveMetrics struct {
	CurrentWPM          float64 `json:"currentWPM"`
	CurrentAccuracy     float64 `json:"currentAccuracy"`
	KeystrokesPerMinute float64 `json:"keystrokesPerMinute"`
	AverageKeyDelay     float64 `json:"averageKeyDelay"`
	TimeElapsed         int64   `json:"timeElapsed"`
	Progress            float64 `json:"progress"`
}

// PerKeyStat aggregates attempts on one expected character.
type PerKeyStat struct {
	Key          string  `json:"key"`
	Attempts     int     `json:"attempts"`
	Correct      int     `json:"correct"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// SequenceStat aggregates inter-key latency for one bigram of the target text.
type SequenceStat struct {
	Bigram       string  `json:"bigram"`
	Count        int     `json:"count"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// ActivitySnapshot reports idle-aware typing activity.
type ActivitySnapshot struct {
	TotalKeystrokes  int     `json:"totalKeystrokes"`
	Backspaces       int     `json:"backspaces"`
	ActiveDurationMs int64   `json:"activeDurationMs"`
	WPM              float64 `json:"wpm"`
	Accuracy         float64 `json:"accuracy"`
	IsPaused         bool    `json:"isPaused"`
}

// Config defines practice settings.
type Config struct {
	Lang         string
	Words        int
	CapsPct      float64
	PunctPct     float64
	PunctSet     string
	FocusWeak    bool
	WeakTop      int
	WeakFactor   float64
	WeakWindow   int
	TextFile     string
	LiveInterval time.Duration
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Lang        string
	Since       *time.Time
	Last        int
	CurveWindow int
	Chars       string
	Bigrams     int
}

// SessionStats captures a completed typing session.
type SessionStats struct {
	StartedAt time.Time
	EndedAt   time.Time
	Lang      string
	Words     int
	CapsPct   float64
	PunctPct  float64
	PunctSet  string
	Source    string
	TargetLen int
	Metrics   TypingMetrics
}

// CharStats stores per-character stats for a session.
type CharStats struct {
	Char         string
	Attempts     int
	Correct      int
	AvgLatencyMs float64
}

// BigramStats stores per-bigram stats for a session.
type BigramStats struct {
	Bigram       string
	Count        int
	AvgLatencyMs float64
}

// CharAggregate aggregates character stats across sessions.
type CharAggregate struct {
	Char         string  `json:"char"`
	Attempts     int     `json:"attempts"`
	Correct      int     `json:"correct"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// BigramAggregate aggregates bigram stats across sessions.
type BigramAggregate struct {
	Bigram       string  `json:"bigram"`
	Count        int     `json:"count"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID  int64     `json:"sessionId"`
	EndedAt    time.Time `json:"endedAt"`
	Lang       string    `json:"lang"`
	GrossWPM   float64   `json:"grossWPM"`
	NetWPM     float64   `json:"netWPM"`
	Accuracy   float64   `json:"accuracy"`
	Errors     int       `json:"errors"`
	DurationMs int64     `json:"durationMs"`
}

// ActivityRecord is a persisted tracker snapshot.
type ActivityRecord struct {
	TrackerID  string
	RecordedAt time.Time
	Snapshot   ActivitySnapshot
}
