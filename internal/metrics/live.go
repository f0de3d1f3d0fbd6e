package metrics

import "github.com/verte-zerg/keytally/internal/model"

// CalculateLiveMetrics computes a snapshot of an in-progress session. Elapsed
// time runs from the first keystroke to nowMs, or to the last keystroke when
// nowMs precedes it.
func CalculateLiveMetrics(keystrokes []model.KeystrokeEvent, targetText string, nowMs int64) model.LiveMetrics {
	if len(keystrokes) == 0 {
		return model.LiveMetrics{CurrentAccuracy: 100}
	}
	t := countKeystrokes(keystrokes)
	first := keystrokes[0].Timestamp
	end := keystrokes[len(keystrokes)-1].Timestamp
	if nowMs > end {
		end = nowMs
	}
	elapsed := end - first
	if elapsed < 0 {
		elapsed = 0
	}

	live := model.LiveMetrics{
		CurrentAccuracy: accuracy(t.correct, t.forward),
		AverageKeyDelay: averageKeyDelay(keystrokes),
		TimeElapsed:     elapsed,
		Progress:        progress(keystrokes, targetText),
	}
	if elapsed > 0 {
		minutes := float64(elapsed) / msPerMinute
		live.CurrentWPM, _ = wordsPerMinute(t.forward, t.errors, elapsed)
		live.KeystrokesPerMinute = float64(t.total) / minutes
	}
	return live
}

func averageKeyDelay(keystrokes []model.KeystrokeEvent) float64 {
	enhanced := EnhanceKeystrokes(keystrokes)
	if len(enhanced) < 2 {
		return 0
	}
	var sum int64
	for _, ev := range enhanced[1:] {
		sum += ev.LatencyMs
	}
	return float64(sum) / float64(len(enhanced)-1)
}
