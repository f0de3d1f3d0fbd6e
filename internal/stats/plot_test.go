package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/keytally/internal/model"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", Values: []float64{1, 2, 3, 2, 1}},
		{Name: "B", Values: []float64{1, 1, 2, 3, 4}},
	}, 5, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Test Plot") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, plotScaleNote) {
		t.Fatalf("expected scale note in output")
	}
	if !strings.Contains(out, "B: min=1.00 max=4.00") {
		t.Fatalf("expected per-series range in output:\n%s", out)
	}
	if !strings.Contains(out, "Legend:") || !strings.Contains(out, "B (dashed)") {
		t.Fatalf("expected legend in output:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	expectedMin := 1 + 1 + 2 + 4 + 1
	if len(lines) < expectedMin {
		t.Fatalf("expected at least %d lines of output, got %d", expectedMin, len(lines))
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 20, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty series, got %q", buf.String())
	}
}

func TestPlotRowsFitWidth(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "", []Series{{Name: "A", Values: []float64{0, 1}}}, 12, 2); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	var rows []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, axisRule) {
			rows = append(rows, line)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 plot rows, got %d:\n%s", len(rows), buf.String())
	}
	prefix := utf8.RuneCountInString(axisTop) + utf8.RuneCountInString(axisRule)
	for _, row := range rows {
		if got := utf8.RuneCountInString(row); got != prefix+12 {
			t.Fatalf("expected row width %d, got %d: %q", prefix+12, got, row)
		}
	}
	top := []rune(rows[0])
	if top[len(top)-1] == rune(brailleBase) {
		t.Fatalf("expected the maximum to be drawn in the top row: %q", rows[0])
	}
	bottom := []rune(rows[1])
	if bottom[prefix] == rune(brailleBase) {
		t.Fatalf("expected the minimum to be drawn in the bottom row: %q", rows[1])
	}
}

func TestPlotSeriesColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	series := []Series{{Name: "A", Values: []float64{1, 2, 3}}}

	var plain bytes.Buffer
	if err := PlotSeries(&plain, "", series, 10, 2); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("expected no color when writing to a buffer")
	}

	var colored bytes.Buffer
	if err := PlotSeriesWithColor(&colored, "", series, 10, 2, true); err != nil {
		t.Fatalf("PlotSeriesWithColor failed: %v", err)
	}
	if !strings.Contains(colored.String(), strokes[0].color) {
		t.Fatalf("expected forced color in output")
	}

	t.Setenv("NO_COLOR", "1")
	colored.Reset()
	if err := PlotSeriesWithColor(&colored, "", series, 10, 2, true); err != nil {
		t.Fatalf("PlotSeriesWithColor failed: %v", err)
	}
	if strings.Contains(colored.String(), "\x1b[") {
		t.Fatalf("NO_COLOR must disable forced color")
	}
}

func TestResample(t *testing.T) {
	cases := []struct {
		in    []float64
		width int
		want  []float64
	}{
		{[]float64{1, 2, 3, 4}, 2, []float64{1.5, 3.5}},
		{[]float64{0, 10}, 3, []float64{0, 5, 10}},
		{[]float64{7}, 3, []float64{7, 7, 7}},
		{[]float64{1, 2}, 2, []float64{1, 2}},
	}
	for _, tc := range cases {
		got := resample(tc.in, tc.width)
		if len(got) != len(tc.want) {
			t.Fatalf("resample(%v, %d): expected %v, got %v", tc.in, tc.width, tc.want, got)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("resample(%v, %d): expected %v, got %v", tc.in, tc.width, tc.want, got)
			}
		}
	}
	if got := resample(nil, 5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestRenderCurvesWithSize(t *testing.T) {
	start := time.Unix(0, 0)
	sessions := []model.SessionAggregate{
		{SessionID: 1, EndedAt: start, NetWPM: 40, GrossWPM: 42, Accuracy: 90, DurationMs: 60000},
		{SessionID: 2, EndedAt: start.Add(time.Hour), NetWPM: 50, GrossWPM: 52, Accuracy: 96, DurationMs: 60000},
	}
	var buf bytes.Buffer
	if err := RenderCurvesWithSize(&buf, sessions, 2, 40, 4, false); err != nil {
		t.Fatalf("render curves: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Learning Curves (window 2)", "Net WPM: min=40.00 max=45.00", "Accuracy: min=90.00 max=93.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	perSession := map[int64]map[string]model.CharAggregate{
		1: {" ": {Char: " ", Attempts: 4, Correct: 2, AvgLatencyMs: 300}},
		2: {" ": {Char: " ", Attempts: 4, Correct: 4, AvgLatencyMs: 200}},
	}
	buf.Reset()
	if err := RenderCharCurvesWithSize(&buf, sessions, perSession, []string{" "}, 1, 40, 4, false); err != nil {
		t.Fatalf("render char curves: %v", err)
	}
	out = buf.String()
	for _, want := range []string{"Per-Character Curves", "Char <space>", "Accuracy %: min=50.00 max=100.00", "Latency ms: min=200.00 max=300.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
