// Package frame implements the Frame Builder (spec.md §4.3): composes
// waveform x envelope -> tone-curve LUT -> stroke-length scale -> offset
// into the raw target vector for a single frame.
package frame

import (
	"github.com/solenoid-array/helixdrive/internal/params"
	"github.com/solenoid-array/helixdrive/internal/tonecurve"
	"github.com/solenoid-array/helixdrive/internal/waveform"
)

// Build evaluates make_frame(t, N) for the given snapshot, returning a
// length-N vector of floats (not yet smoothed, limited, or rounded).
func Build(t float64, snapshot params.Snapshot) []float64 {
	n := snapshot.Global.NumServos
	mode := snapshot.Mode

	wave := waveform.Waveform(mode.Func)
	env := waveform.Envelope(mode.AmpMode)

	raw := wave(t*mode.Direction, n, mode)
	amp := env(t, n, mode)

	lut := tonecurve.New(snapshot.Global.LUTY)

	strokeLimit := snapshot.Global.StrokeLengthLimit
	if mode.HasLimitSpecific {
		strokeLimit = mode.StrokeLengthLimitSpecific
	}
	if strokeLimit <= 0 {
		strokeLimit = 50000
	}
	strokeLength := clampInt(mode.StrokeLength, 0, strokeLimit)

	out := make([]float64, n)
	offset := float64(snapshot.Global.StrokeOffset)
	for i := 0; i < n; i++ {
		shaped := lut.Eval(raw[i] * amp[i])
		out[i] = shaped*float64(strokeLength) + offset
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
