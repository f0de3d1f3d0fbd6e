package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series is one named line on a plot.
type Series struct {
	Name   string
	Values []float64
}

// stroke pairs a dash pattern with a terminal color so overlapping
// series stay distinguishable with or without color.
type stroke struct {
	dash  string
	every int
	draw  int
	color string
}

const (
	defaultPlotHeight = 10
	minPlotWidth      = 10
	fallbackTermWidth = 80
	axisTop           = "100%"
	axisMid           = "50%"
	axisBottom        = "0%"
	axisRule          = " │ "
	plotScaleNote     = "Each series is scaled to its own min/max."
	ansiReset         = "\x1b[0m"
	brailleBase       = 0x2800
)

var strokes = []stroke{
	{dash: "solid", every: 1, draw: 1, color: "\x1b[36m"},
	{dash: "dashed", every: 6, draw: 3, color: "\x1b[35m"},
	{dash: "dotted", every: 4, draw: 1, color: "\x1b[33m"},
	{dash: "dashdot", every: 8, draw: 3, color: "\x1b[32m"},
	{dash: "solid", every: 1, draw: 1, color: "\x1b[34m"},
}

// braille dot bits indexed by [row][column] within a 2x4 cell.
var brailleBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// PlotSeries renders a braille line plot; width and height are in cells.
// Color is used only when w is a terminal and NO_COLOR is unset.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plot(w, title, series, width, height, false)
}

// PlotSeriesWithColor is PlotSeries with color forced on unless NO_COLOR is set.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return plot(w, title, series, width, height, forceColor)
}

// PlotWidthFor returns the plot width, in cells, that fits totalWidth
// columns once the axis labels are drawn.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	width := totalWidth - utf8.RuneCountInString(axisTop) - utf8.RuneCountInString(axisRule)
	if width < minPlotWidth {
		return minPlotWidth
	}
	return width
}

func plot(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	lines := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(stdoutWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	layers := make([]canvas, len(lines))
	ranges := make([][2]float64, len(lines))
	for i := range lines {
		lines[i].Values = resample(lines[i].Values, width)
		lo, hi := bounds(lines[i].Values)
		if math.Abs(hi-lo) < 1e-9 {
			lo--
			hi++
		}
		ranges[i] = [2]float64{lo, hi}
		layers[i] = newCanvas(width, height)
		layers[i].trace(lines[i].Values, lo, hi, strokes[i%len(strokes)])
	}

	color := colorEnabled(w, forceColor)
	var out strings.Builder
	if title != "" {
		out.WriteString(title + "\n")
	}
	out.WriteString(plotScaleNote + "\n")
	for i, s := range lines {
		fmt.Fprintf(&out, "%s: min=%.2f max=%.2f\n", s.Name, ranges[i][0], ranges[i][1])
	}
	labelWidth := utf8.RuneCountInString(axisTop)
	for row := 0; row < height; row++ {
		fmt.Fprintf(&out, "%*s%s", labelWidth, axisLabel(row, height), axisRule)
		for col := 0; col < width; col++ {
			bits, owner := overlay(layers, col, row)
			ch := rune(brailleBase + int(bits))
			if color && owner >= 0 {
				out.WriteString(strokes[owner%len(strokes)].color)
				out.WriteRune(ch)
				out.WriteString(ansiReset)
				continue
			}
			out.WriteRune(ch)
		}
		out.WriteString("\n")
	}
	out.WriteString(legend(lines, color) + "\n\n")
	_, err := io.WriteString(w, out.String())
	return err
}

// canvas holds braille bits for one series: cells[row][col].
type canvas struct {
	cells [][]uint8
}

func newCanvas(width, height int) canvas {
	cells := make([][]uint8, height)
	for i := range cells {
		cells[i] = make([]uint8, width)
	}
	return canvas{cells: cells}
}

// dot sets a single braille dot; x and y are in dot coordinates.
func (c canvas) dot(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	row, col := y/4, x/2
	if row >= len(c.cells) || col >= len(c.cells[row]) {
		return
	}
	c.cells[row][col] |= brailleBits[y%4][x%2]
}

// trace draws values left to right, one value per cell column.
func (c canvas) trace(values []float64, lo, hi float64, st stroke) {
	dotRows := len(c.cells) * 4
	prevX, prevY := -1, -1
	for i, v := range values {
		x := i * 2
		y := scaleRow(v, lo, hi, dotRows)
		if prevX < 0 {
			if st.visible(x) {
				c.dot(x, y)
			}
		} else {
			bresenham(prevX, prevY, x, y, func(px, py int) {
				if st.visible(px) {
					c.dot(px, py)
				}
			})
		}
		prevX, prevY = x, y
	}
}

func (s stroke) visible(x int) bool {
	if s.every <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%s.every < s.draw
}

// overlay merges all layers at one cell; owner is the first series that drew there.
func overlay(layers []canvas, col, row int) (uint8, int) {
	var bits uint8
	owner := -1
	for i, layer := range layers {
		b := layer.cells[row][col]
		if b == 0 {
			continue
		}
		if owner < 0 {
			owner = i
		}
		bits |= b
	}
	return bits, owner
}

// scaleRow maps v into [0, rows) with hi at the top.
func scaleRow(v, lo, hi float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	row := int(math.Round((1 - (v-lo)/(hi-lo)) * float64(rows-1)))
	if row < 0 {
		return 0
	}
	if row >= rows {
		return rows - 1
	}
	return row
}

// resample fits values to exactly width points: bucket means when
// shrinking, linear interpolation when stretching.
func resample(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := (i + 1) * n / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := int(pos)
			if idx >= n-1 {
				out[i] = values[n-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func bresenham(x0, y0, x1, y1 int, set func(x, y int)) {
	dx := x1 - x0
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y0
	if dy > 0 {
		dy = -dy
	}
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func axisLabel(row, height int) string {
	switch {
	case row == 0:
		return axisTop
	case height > 1 && row == height-1:
		return axisBottom
	case height > 2 && row == height/2:
		return axisMid
	}
	return ""
}

func legend(series []Series, color bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		st := strokes[i%len(strokes)]
		label := fmt.Sprintf("%c %s (%s)", rune(brailleBase+int(brailleBits[0][0])), s.Name, st.dash)
		if color {
			label = st.color + label + ansiReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func colorEnabled(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func stdoutWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}
