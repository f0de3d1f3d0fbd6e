package metrics

import (
	"math"

	"github.com/verte-zerg/keytally/internal/model"
)

const (
	charsPerWord = 5.0
	msPerMinute  = 60000.0
)

type tally struct {
	total      int
	forward    int
	correct    int
	errors     int
	backspaces int
}

func countKeystrokes(keystrokes []model.KeystrokeEvent) tally {
	var t tally
	for _, ev := range keystrokes {
		if ev.IsShift() {
			continue
		}
		t.total++
		if ev.IsBackspace() {
			t.backspaces++
			continue
		}
		t.forward++
		if ev.ExpectedKey != "" && ev.Key == ev.ExpectedKey {
			t.correct++
		} else {
			t.errors++
		}
	}
	return t
}

// CalculateMetrics computes speed and accuracy for a finished or cut-off session.
// An empty log scores 0 WPM at 100% accuracy.
func CalculateMetrics(keystrokes []model.KeystrokeEvent, targetText string) model.TypingMetrics {
	t := countKeystrokes(keystrokes)
	duration := sessionDuration(keystrokes)
	gross, net := wordsPerMinute(t.forward, t.errors, duration)
	return model.TypingMetrics{
		GrossWPM:     gross,
		NetWPM:       net,
		Accuracy:     accuracy(t.correct, t.forward),
		Errors:       t.errors,
		DurationMs:   duration,
		TotalChars:   t.total,
		CorrectChars: t.correct,
		Backspaces:   t.backspaces,
		Progress:     progress(keystrokes, targetText),
	}
}

func sessionDuration(keystrokes []model.KeystrokeEvent) int64 {
	if len(keystrokes) < 2 {
		return 0
	}
	d := keystrokes[len(keystrokes)-1].Timestamp - keystrokes[0].Timestamp
	if d < 0 {
		return 0
	}
	return d
}

func wordsPerMinute(forward, errors int, durationMs int64) (gross, net float64) {
	if durationMs <= 0 {
		return 0, 0
	}
	minutes := float64(durationMs) / msPerMinute
	gross = (float64(forward) / charsPerWord) / minutes
	net = math.Max(0, gross-float64(errors)/minutes)
	return gross, net
}

func accuracy(correct, forward int) float64 {
	if forward == 0 {
		return 100
	}
	return 100 * float64(correct) / float64(forward)
}

// progress replays the log as cursor movement over the target text.
func progress(keystrokes []model.KeystrokeEvent, targetText string) float64 {
	n := len([]rune(targetText))
	if n == 0 {
		return 0
	}
	pos := 0
	for _, ev := range keystrokes {
		switch {
		case ev.IsShift():
		case ev.IsBackspace():
			if pos > 0 {
				pos--
			}
		default:
			pos++
		}
	}
	if pos > n {
		pos = n
	}
	return float64(pos) / float64(n)
}
