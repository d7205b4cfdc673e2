package waveform

import (
	"math"
	"math/rand"

	"github.com/solenoid-array/helixdrive/internal/params"
)

// Func is a waveform or envelope function: a pure mapping from (t, N, mode)
// to N samples, nominally in [-1,1] and not internally clipped, per
// spec.md §4.1.
type Func func(t float64, n int, mode params.Mode) []float64

func solidWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func sinWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	freq := mode.BaseFreq
	for i := range out {
		out[i] = math.Sin(2*math.Pi*freq*t + phase(i, n, mode.PhaseRate))
	}
	return out
}

func azimuthWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	freq := guard(mode.BaseFreq)
	tMod := math.Mod(t, 1/freq)
	for i := range out {
		out[i] = math.Sin(2*math.Pi*freq*tMod + azimuthPhase(i) + phase(i, n, mode.PhaseRate))
	}
	return out
}

func azimuthVariableWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	freq := guard(mode.BaseFreq)
	tMod := math.Mod(t, 1/freq)
	for i := range out {
		out[i] = math.Sin(2*math.Pi*freq*tMod + azimuthPhaseVariable(i, mode.ParamB) + phase(i, n, mode.PhaseRate))
	}
	return out
}

func solitonWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	T := 1 / guard(mode.BaseFreq)
	w := math.Max(mode.ParamA, epsilon)
	for i := range out {
		tau := math.Mod((math.Mod(t+mode.PhaseRate*T, T))/T-(float64(i)/float64(n))*mode.ParamB, 1)
		if tau < 0 {
			tau += 1
		}
		x := tau*T - w*T/2
		sigma := w * T / 4
		out[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
	}
	return out
}

func dampedOscillationWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	damping := 10 * math.Max(mode.AmpParamA, epsilon)
	for i := range out {
		out[i] = math.Exp(-damping*t) * math.Sin(2*math.Pi*mode.AmpFreq*t+phase(i, n, mode.PhaseRate))
	}
	return out
}

func dampedOscillationLocationalWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	distances, _ := locationModel(n, mode.LocationDegree, mode.LocationHeight)
	damping := 10 * math.Max(mode.AmpParamA, epsilon)
	convey := mode.AmpParamB * 10
	denom := guard(2 * math.Pi * mode.AmpFreq)
	for i := range out {
		ti := t - distances[i]*convey/denom
		if ti < 0 {
			out[i] = 0
			continue
		}
		out[i] = math.Exp(-damping*ti) * math.Sin(2*math.Pi*mode.AmpFreq*ti+phase(i, n, mode.PhaseRate))
	}
	return out
}

func dampedOscillationDisplaceWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	distances, dots := locationModel(n, mode.LocationDegree, mode.LocationHeight)
	damping := 10 * math.Max(mode.ParamA, epsilon)
	convey := mode.AmpParamA * 10
	denom := guard(2 * math.Pi * mode.AmpFreq)
	for i := range out {
		ti := t - distances[i]*convey/denom
		if ti < 0 {
			out[i] = 0
			continue
		}
		out[i] = math.Exp(-damping*ti) * math.Sin(2*math.Pi*mode.AmpFreq*ti+phase(i, n, mode.PhaseRate)) * dots[i]
	}
	return out
}

func randomWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	base := int64(math.Floor(t * mode.BaseFreq))
	for i := range out {
		r := rand.New(rand.NewSource(base + int64(i)))
		out[i] = r.Float64()*2 - 1
	}
	return out
}

func randomSinWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	for i := range out {
		r := rand.New(rand.NewSource(int64(i)))
		phi := r.Float64() * 2 * math.Pi
		out[i] = math.Sin(2*math.Pi*mode.BaseFreq*t + phi)
	}
	return out
}

func randomSinFreqWave(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	lo := 0.1
	hi := mode.BaseFreq
	if hi < lo {
		hi = lo
	}
	for i := range out {
		r := rand.New(rand.NewSource(int64(i)))
		freq := lo + r.Float64()*(hi-lo)
		phi := r.Float64() * 2 * math.Pi
		out[i] = math.Sin(2*math.Pi*freq*freq*t + phi)
	}
	return out
}
