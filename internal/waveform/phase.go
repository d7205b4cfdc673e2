package waveform

import "math"

// phase implements spec.md §4.1: phase(i, N) = -(i/N)*pi*phase_rate.
func phase(i, n int, phaseRate float64) float64 {
	return -(float64(i) / float64(n)) * math.Pi * phaseRate
}

// azimuthPhase implements azimuth_phase(i) = (i mod 3)/3 * 2pi, the
// three-start helix phase offset.
func azimuthPhase(i int) float64 {
	return float64(i%3) / 3.0 * 2 * math.Pi
}

// azimuthPhaseVariable implements azimuth_phase_variable(i, f) = (i mod
// 3)/3 * clamp(f,0,1) * 2pi.
func azimuthPhaseVariable(i int, f float64) float64 {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	return float64(i%3) / 3.0 * f * 2 * math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
