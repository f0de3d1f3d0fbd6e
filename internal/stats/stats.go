// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/verte-zerg/keytally/internal/model"
)

// SessionMetrics returns net WPM, gross CPM, and accuracy (percent) for a stored session.
func SessionMetrics(s model.SessionAggregate) (wpm, cpm, accuracy float64) {
	if s.DurationMs <= 0 {
		return 0, 0, s.Accuracy
	}
	return s.NetWPM, s.GrossWPM * 5, s.Accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

func bounds(values []float64) (minVal, maxVal float64) {
	minVal = values[0]
	maxVal = values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

// RenderSummary prints a summary table for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalNet, totalGross, totalAcc float64
	var totalErrors int
	var totalMs int64
	bestNet := 0.0
	for _, s := range sessions {
		totalNet += s.NetWPM
		totalGross += s.GrossWPM
		totalAcc += s.Accuracy
		totalErrors += s.Errors
		totalMs += s.DurationMs
		if s.NetWPM > bestNet {
			bestNet = s.NetWPM
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg Net WPM: %.2f", totalNet/count),
		fmt.Sprintf("Best Net WPM: %.2f", bestNet),
		fmt.Sprintf("Avg Gross WPM: %.2f", totalGross/count),
		fmt.Sprintf("Avg Accuracy: %.2f%%", totalAcc/count),
		fmt.Sprintf("Errors: %d", totalErrors),
		fmt.Sprintf("Time Typed: %s", formatDuration(totalMs)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatDuration(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

// RenderCurves prints learning curves for net WPM and accuracy.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, defaultPlotHeight, false)
}

// RenderCurvesWithWidth prints learning curves sized to a total width.
func RenderCurvesWithWidth(w io.Writer, sessions []model.SessionAggregate, window, totalWidth int) error {
	return RenderCurvesWithSize(w, sessions, window, totalWidth, defaultPlotHeight, false)
}

// RenderCurvesWithSize prints learning curves sized to a total width and plot height.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, useColor bool) error {
	if len(sessions) == 0 {
		return nil
	}
	wpms := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	for i, s := range sessions {
		wpm, _, acc := SessionMetrics(s)
		wpms[i] = wpm
		accs[i] = acc
	}
	return PlotSeriesWithColor(w, fmt.Sprintf("Learning Curves (window %d)", window), []Series{
		{Name: "Net WPM", Values: MovingAverage(wpms, window)},
		{Name: "Accuracy", Values: MovingAverage(accs, window)},
	}, plotWidth(totalWidth), height, useColor)
}

// plotWidth converts a total width into a plot width; 0 lets the plot size itself.
func plotWidth(totalWidth int) int {
	if totalWidth <= 0 {
		return 0
	}
	return PlotWidthFor(totalWidth)
}

// RenderCharTable prints per-character aggregates sorted by lowest accuracy.
func RenderCharTable(w io.Writer, aggs []model.CharAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	rows := make([]model.CharAggregate, len(aggs))
	copy(rows, aggs)
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := charAccuracy(rows[i]), charAccuracy(rows[j])
		if ai == aj {
			return rows[i].Char < rows[j].Char
		}
		return ai < aj
	})

	if _, err := fmt.Fprintln(w, "Per-Character (Windowed)"); err != nil {
		return err
	}

	headers := []string{"Char", "Accuracy", "Avg Latency (ms)", "Correct", "Attempts"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			displayLabel(r.Char),
			fmt.Sprintf("%.2f%%", charAccuracy(r)*100),
			fmt.Sprintf("%.1f", r.AvgLatencyMs),
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", r.Attempts),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true}
	for _, line := range formatTable(headers, tableRows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderBigramTable prints the slowest bigrams.
func RenderBigramTable(w io.Writer, aggs []model.BigramAggregate, limit int) error {
	slow := SelectSlowBigrams(aggs, limit)
	if len(slow) == 0 {
		_, err := fmt.Fprintln(w, "No bigram stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Slowest Bigrams (Windowed)"); err != nil {
		return err
	}
	headers := []string{"Bigram", "Avg Latency (ms)", "Count"}
	tableRows := make([][]string, 0, len(slow))
	for _, b := range slow {
		tableRows = append(tableRows, []string{
			displayLabel(b.Bigram),
			fmt.Sprintf("%.1f", b.AvgLatencyMs),
			fmt.Sprintf("%d", b.Count),
		})
	}
	for _, line := range formatTable(headers, tableRows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCharCurves prints per-character accuracy and latency curves.
func RenderCharCurves(w io.Writer, sessions []model.SessionAggregate, perSession map[int64]map[string]model.CharAggregate, chars []string, window, totalWidth int) error {
	return RenderCharCurvesWithSize(w, sessions, perSession, chars, window, totalWidth, defaultPlotHeight, false)
}

// RenderCharCurvesWithSize prints one plot per character sized to a total width and plot height.
// Sessions without attempts for a character contribute zero to its curves.
func RenderCharCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, perSession map[int64]map[string]model.CharAggregate, chars []string, window, totalWidth, height int, useColor bool) error {
	if len(chars) == 0 || len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Character Curves"); err != nil {
		return err
	}
	width := plotWidth(totalWidth)
	for _, ch := range chars {
		accSeries := make([]float64, len(sessions))
		latSeries := make([]float64, len(sessions))
		for i, s := range sessions {
			agg, ok := perSession[s.SessionID][ch]
			if !ok {
				continue
			}
			accSeries[i] = charAccuracy(agg) * 100
			latSeries[i] = agg.AvgLatencyMs
		}
		if err := PlotSeriesWithColor(w, "Char "+displayLabel(ch), []Series{
			{Name: "Accuracy %", Values: MovingAverage(accSeries, window)},
			{Name: "Latency ms", Values: MovingAverage(latSeries, window)},
		}, width, height, useColor); err != nil {
			return err
		}
	}
	return nil
}

func displayLabel(s string) string {
	return strings.ReplaceAll(s, " ", "<space>")
}
