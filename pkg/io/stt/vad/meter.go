package vad

import "strings"

// RenderMeter draws the SNR of d as a bar between the observed extremes, with
// 'm' at the mean and 't' at the threshold. The bar is prefixed with '+' while
// recording and '-' otherwise.
func RenderMeter(d Decision, width int) string {
	if width < 1 {
		width = 20
	}
	span := d.MaxSNR - d.MinSNR
	if span == 0 {
		span = 1
	}
	pos := func(v float64) int {
		return int(float64(width) * ((v - d.MinSNR) / span))
	}

	filled := min(max(pos(float64(d.SNR)), 0), width)
	bar := []byte(strings.Repeat("=", filled) + strings.Repeat("-", width-filled))

	mark := func(v float64, c byte) {
		if d.MinSNR < v && v < d.MaxSNR {
			if i := pos(v); i >= 0 && i < len(bar) {
				bar[i] = c
			}
		}
	}
	mark(d.Mean, 'm')
	mark(d.Threshold, 't')

	prefix := "-"
	if d.Recording {
		prefix = "+"
	}
	return prefix + "||" + string(bar) + "||"
}
