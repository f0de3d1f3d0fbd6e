// Package metrics converts keystroke logs into speed and accuracy statistics.
//
// Every function is pure: the same log and target text always produce the same
// result, and degenerate input yields zero or neutral values instead of errors.
package metrics

import "github.com/verte-zerg/keytally/internal/model"

// NoPreviousTimestamp marks a keystroke without a predecessor in the stream.
const NoPreviousTimestamp int64 = -1

// EnhanceKeystrokeEvent annotates an event with correctness and latency.
func EnhanceKeystrokeEvent(event model.KeystrokeEvent, expectedKey string, previousTimestamp int64) model.EnhancedKeystrokeEvent {
	event.ExpectedKey = expectedKey
	out := model.EnhancedKeystrokeEvent{KeystrokeEvent: event}
	if event.IsShift() {
		// Modifiers are never scored; aggregators skip them.
		out.IsCorrect = true
	} else {
		out.IsCorrect = expectedKey != "" && event.Key == expectedKey
	}
	if previousTimestamp >= 0 && event.Timestamp > previousTimestamp {
		out.LatencyMs = event.Timestamp - previousTimestamp
	}
	return out
}

// EnhanceKeystrokes enhances every scored event of a log. Shift events are
// dropped from the output but still act as the predecessor for latency.
func EnhanceKeystrokes(keystrokes []model.KeystrokeEvent) []model.EnhancedKeystrokeEvent {
	out := make([]model.EnhancedKeystrokeEvent, 0, len(keystrokes))
	prev := NoPreviousTimestamp
	for _, ev := range keystrokes {
		if !ev.IsShift() {
			out = append(out, EnhanceKeystrokeEvent(ev, ev.ExpectedKey, prev))
		}
		prev = ev.Timestamp
	}
	return out
}
