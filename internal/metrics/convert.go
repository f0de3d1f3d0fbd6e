package metrics

import "github.com/verte-zerg/keytally/internal/model"

// ToCharStats converts per-key stats into session rows. Keys without an
// expected character are dropped.
func ToCharStats(perKey []model.PerKeyStat) []model.CharStats {
	out := make([]model.CharStats, 0, len(perKey))
	for _, ks := range perKey {
		if ks.Key == "" {
			continue
		}
		out = append(out, model.CharStats{
			Char:         ks.Key,
			Attempts:     ks.Attempts,
			Correct:      ks.Correct,
			AvgLatencyMs: ks.AvgLatencyMs,
		})
	}
	return out
}

// ToBigramStats converts sequence stats into session rows.
func ToBigramStats(sequences []model.SequenceStat) []model.BigramStats {
	out := make([]model.BigramStats, 0, len(sequences))
	for _, seq := range sequences {
		out = append(out, model.BigramStats{
			Bigram:       seq.Bigram,
			Count:        seq.Count,
			AvgLatencyMs: seq.AvgLatencyMs,
		})
	}
	return out
}
