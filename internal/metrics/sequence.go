package metrics

import (
	"sort"

	"github.com/verte-zerg/keytally/internal/model"
)

// CalculateSequenceStats measures inter-key latency for every adjacent pair of
// target characters. Each text position is timed by the keystroke that finally
// satisfied it, so earlier attempts erased with backspace do not count.
func CalculateSequenceStats(keystrokes []model.KeystrokeEvent, targetText string) []model.SequenceStat {
	target := []rune(targetText)
	if len(target) < 2 {
		return nil
	}
	final := resolvePositions(keystrokes, len(target))

	index := map[string]int{}
	var out []model.SequenceStat
	for i := 0; i+1 < len(target); i++ {
		if final[i] < 0 || final[i+1] < 0 {
			continue
		}
		latency := final[i+1] - final[i]
		if latency < 0 {
			latency = 0
		}
		bigram := string(target[i : i+2])
		j, ok := index[bigram]
		if !ok {
			j = len(out)
			index[bigram] = j
			out = append(out, model.SequenceStat{Bigram: bigram})
		}
		stat := &out[j]
		stat.Count++
		stat.AvgLatencyMs += (float64(latency) - stat.AvgLatencyMs) / float64(stat.Count)
	}
	return out
}

// resolvePositions maps each logical text position to the timestamp of the
// keystroke occupying it at the end of the log, or -1 when it is empty.
func resolvePositions(keystrokes []model.KeystrokeEvent, n int) []int64 {
	final := make([]int64, n)
	for i := range final {
		final[i] = -1
	}
	// pos may run past n; overflow keys hold no slot but still need deleting.
	pos := 0
	for _, ev := range keystrokes {
		switch {
		case ev.IsShift():
		case ev.IsBackspace():
			if pos > 0 {
				pos--
				if pos < n {
					final[pos] = -1
				}
			}
		default:
			if pos < n {
				ts := ev.Timestamp
				if ts < 0 {
					ts = 0
				}
				final[pos] = ts
			}
			pos++
		}
	}
	return final
}

// SlowestSequences returns up to n bigrams seen at least minCount times,
// ordered by descending average latency.
func SlowestSequences(stats []model.SequenceStat, n, minCount int) []model.SequenceStat {
	out := make([]model.SequenceStat, 0, len(stats))
	for _, s := range stats {
		if s.Count >= minCount {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgLatencyMs > out[j].AvgLatencyMs
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
