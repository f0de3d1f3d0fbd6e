package stats

import (
	"testing"
	"unicode/utf8"
)

func TestPlotWidthFor(t *testing.T) {
	axisWidth := utf8.RuneCountInString(axisTop) + utf8.RuneCountInString(axisRule)
	total := 80
	expected := total - axisWidth
	if got := PlotWidthFor(total); got != expected {
		t.Fatalf("expected width %d, got %d", expected, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
	if got := PlotWidthFor(axisWidth + 3); got != minPlotWidth {
		t.Fatalf("expected narrow terminals to clamp to %d, got %d", minPlotWidth, got)
	}
}
