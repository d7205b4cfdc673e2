package waveform

import (
	"math"

	"github.com/solenoid-array/helixdrive/internal/params"
)

func solidEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func coneEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	a := 2*mode.AmpParamA - 1
	denom := float64(n - 1)
	if denom <= 0 {
		denom = 1
	}
	for i := range out {
		tau := float64(i) / denom
		if a >= 0 {
			out[i] = math.Pow(tau, 4*a)
		} else {
			out[i] = math.Pow(1-tau, 4*math.Abs(a))
		}
	}
	return out
}

func ampSinEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	delta := 2 * math.Pi / (float64(n) * guard(mode.AmpParamB)) / 2
	for i := range out {
		out[i] = (1 - mode.AmpParamA) + mode.AmpParamA*math.Sin(2*math.Pi*mode.AmpFreq*t+float64(i)*delta)
	}
	return out
}

func ampGaussianWindowEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	f := guard(math.Abs(mode.AmpFreq) / 5)
	var tPrime float64
	if mode.AmpFreq != 0 {
		tPrime = t - math.Floor(t*mode.AmpFreq)/mode.AmpFreq
	} else {
		tPrime = t
	}
	duty := mode.AmpParamA / f
	center := 0.65 * duty
	sigma := guard(duty / 4)
	v := math.Exp(-((tPrime - center) * (tPrime - center)) / (2 * sigma * sigma))
	for i := range out {
		out[i] = v
	}
	return out
}

func ampEmergingEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	v := 1 - math.Exp(-math.Max(mode.AmpParamA, epsilon)*t)
	for i := range out {
		out[i] = v
	}
	return out
}

func ampLocationalEnv(t float64, n int, mode params.Mode) []float64 {
	out := make([]float64, n)
	distances, _ := locationModel(n, mode.LocationDegree, mode.LocationHeight)
	damping := math.Max(mode.AmpParamA, epsilon)
	for i := range out {
		out[i] = math.Exp(-damping * distances[i])
	}
	return out
}
