package generator

import (
	"strings"
	"testing"
)

func TestGenerateRespectsCount(t *testing.T) {
	g := NewWithSeed(1)
	out := g.Generate([]string{"alpha", "beta"}, 7, 0, 0, nil)
	if len(out) != 7 {
		t.Fatalf("expected 7 words, got %d", len(out))
	}
	for _, w := range out {
		if w != "alpha" && w != "beta" {
			t.Fatalf("unexpected word %q", w)
		}
	}
}

func TestGenerateAppliesCapsAndPunct(t *testing.T) {
	g := NewWithSeed(2)
	out := g.Generate([]string{"word"}, 5, 1, 1, []rune{'!'})
	for _, w := range out {
		if w != "Word!" {
			t.Fatalf("expected Word!, got %q", w)
		}
	}
}

func TestWordWeight(t *testing.T) {
	focus := Focus{
		WeakChars:   map[rune]struct{}{'q': {}},
		SlowBigrams: map[string]struct{}{"th": {}},
		Factor:      2,
	}
	if got := wordWeight("The", focus); got != 3 {
		t.Fatalf("expected weight 3 for The, got %v", got)
	}
	if got := wordWeight("quath", focus); got != 5 {
		t.Fatalf("expected weight 5 for quath, got %v", got)
	}
	if got := wordWeight("dog", focus); got != 1 {
		t.Fatalf("expected weight 1 for dog, got %v", got)
	}
}

func TestGenerateWeightedFavorsFocus(t *testing.T) {
	g := NewWithSeed(3)
	words := []string{"zzz", "aaa"}
	focus := Focus{WeakChars: map[rune]struct{}{'z': {}}, Factor: 50}
	out := g.GenerateWeighted(words, 400, 0, 0, nil, focus)
	count := 0
	for _, w := range out {
		if strings.HasPrefix(w, "z") {
			count++
		}
	}
	if count < 300 {
		t.Fatalf("expected focused word to dominate, got %d/400", count)
	}
}
