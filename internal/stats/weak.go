package stats

import (
	"sort"
	"strings"
	"unicode"

	"github.com/verte-zerg/keytally/internal/model"
)

// SelectWeakChars selects the lowest-accuracy characters from aggregates.
func SelectWeakChars(aggs []model.CharAggregate, top int) map[rune]struct{} {
	weakSet := map[rune]struct{}{}
	if len(aggs) == 0 {
		return weakSet
	}
	candidates := make([]model.CharAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if strings.TrimSpace(agg.Char) == "" {
			continue
		}
		candidates = append(candidates, agg)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ai := charAccuracy(candidates[i])
		aj := charAccuracy(candidates[j])
		if ai == aj {
			if candidates[i].AvgLatencyMs == candidates[j].AvgLatencyMs {
				return candidates[i].Char < candidates[j].Char
			}
			return candidates[i].AvgLatencyMs > candidates[j].AvgLatencyMs
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for i := 0; i < top; i++ {
		runes := []rune(candidates[i].Char)
		if len(runes) > 0 {
			weakSet[unicode.ToLower(runes[0])] = struct{}{}
		}
	}
	return weakSet
}

// SelectSlowBigrams returns the bigrams with the highest average latency.
// Bigrams containing whitespace are skipped.
func SelectSlowBigrams(aggs []model.BigramAggregate, top int) []model.BigramAggregate {
	candidates := make([]model.BigramAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Count <= 0 || strings.IndexFunc(agg.Bigram, unicode.IsSpace) >= 0 {
			continue
		}
		candidates = append(candidates, agg)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].AvgLatencyMs == candidates[j].AvgLatencyMs {
			return candidates[i].Bigram < candidates[j].Bigram
		}
		return candidates[i].AvgLatencyMs > candidates[j].AvgLatencyMs
	})
	if top > 0 && top < len(candidates) {
		candidates = candidates[:top]
	}
	return candidates
}

// BigramSet lowercases bigrams into a lookup set for the generator.
func BigramSet(aggs []model.BigramAggregate) map[string]struct{} {
	set := make(map[string]struct{}, len(aggs))
	for _, agg := range aggs {
		set[strings.ToLower(agg.Bigram)] = struct{}{}
	}
	return set
}

func charAccuracy(agg model.CharAggregate) float64 {
	if agg.Attempts <= 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(agg.Attempts)
}
