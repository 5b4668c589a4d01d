package stats

import (
	"strconv"
	"strings"
)

// Chart canvas in user units.
const (
	ChartWidth   = 472.0
	ChartHeight  = 150.0
	ChartPadding = 10.0
)

func Amounts(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Amount
	}
	return out
}

// LinePath renders amounts as an SVG polyline path. Amounts are scaled
// against the largest one, never less than 1. All-zero input is drawn as a
// flat line at mid height; no input yields "".
func LinePath(amounts []float64) string {
	if len(amounts) == 0 {
		return ""
	}
	maxAmount := 1.0
	hasData := false
	for _, a := range amounts {
		if a > maxAmount {
			maxAmount = a
		}
		if a > 0 {
			hasData = true
		}
	}
	if !hasData {
		mid := num(ChartHeight / 2)
		return "M0," + mid + " L" + num(ChartWidth) + "," + mid
	}

	var b strings.Builder
	for i, a := range amounts {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		y := ChartHeight - (a/maxAmount)*(ChartHeight-2*ChartPadding) - ChartPadding
		b.WriteString(num(pointX(i, len(amounts))))
		b.WriteString(",")
		b.WriteString(num(y))
	}
	return b.String()
}

// AreaPath closes LinePath down to the baseline and back to the origin.
func AreaPath(amounts []float64) string {
	line := LinePath(amounts)
	if line == "" {
		return ""
	}
	lastX := ChartWidth
	if len(amounts) == 1 {
		lastX = ChartWidth / 2
	}
	h := num(ChartHeight)
	return line + " L" + num(lastX) + "," + h + " L0," + h + " Z"
}

func pointX(i, n int) float64 {
	if n == 1 {
		return ChartWidth / 2
	}
	return float64(i) / float64(n-1) * ChartWidth
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
