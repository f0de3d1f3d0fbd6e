package metrics

import (
	"sort"

	"github.com/verte-zerg/keytally/internal/model"
)

// GetPerKeyStats groups enhanced keystrokes by expected character. Stats are
// returned in order of first occurrence; latency is kept as a running mean.
func GetPerKeyStats(enhanced []model.EnhancedKeystrokeEvent) []model.PerKeyStat {
	index := map[string]int{}
	var out []model.PerKeyStat
	for _, ev := range enhanced {
		if ev.IsShift() || ev.IsBackspace() {
			continue
		}
		i, ok := index[ev.ExpectedKey]
		if !ok {
			i = len(out)
			index[ev.ExpectedKey] = i
			out = append(out, model.PerKeyStat{Key: ev.ExpectedKey})
		}
		stat := &out[i]
		stat.Attempts++
		if ev.IsCorrect {
			stat.Correct++
		}
		stat.AvgLatencyMs += (float64(ev.LatencyMs) - stat.AvgLatencyMs) / float64(stat.Attempts)
	}
	return out
}

// SlowestKeys returns up to n keys ordered by descending average latency.
func SlowestKeys(stats []model.PerKeyStat, n int) []model.PerKeyStat {
	sorted := make([]model.PerKeyStat, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgLatencyMs > sorted[j].AvgLatencyMs
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
