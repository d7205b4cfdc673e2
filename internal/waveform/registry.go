package waveform

import "github.com/solenoid-array/helixdrive/internal/obs"

var log = obs.New("waveform")

// waveforms is the closed registry of named waveform functions (spec.md
// §4.1, §9 "Dynamic function dispatch by string name"). Names are never
// synthesised at runtime.
var waveforms = map[string]Func{
	"solid":                         solidWave,
	"sin":                           sinWave,
	"azimuth":                       azimuthWave,
	"azimuth_variable":              azimuthVariableWave,
	"soliton":                       solitonWave,
	"damped_oscillation":            dampedOscillationWave,
	"damped_oscillation_locational": dampedOscillationLocationalWave,
	"damped_oscillation_displace":   dampedOscillationDisplaceWave,
	"random":                        randomWave,
	"random_sin":                    randomSinWave,
	"random_sin_freq":               randomSinFreqWave,
}

// envelopes is the closed registry of named amplitude-envelope functions.
var envelopes = map[string]Func{
	"solid":               solidEnv,
	"cone":                coneEnv,
	"amp_sin":             ampSinEnv,
	"amp_gaussian_window": ampGaussianWindowEnv,
	"amp_emerging":        ampEmergingEnv,
	"amp_locational":      ampLocationalEnv,
}

// Waveform resolves a waveform by name, falling back to "sin" and logging a
// warning when the name is unknown.
func Waveform(name string) Func {
	if f, ok := waveforms[name]; ok {
		return f
	}
	log.Warnf("unknown waveform %q, falling back to sin", name)
	return sinWave
}

// Envelope resolves an envelope by name, falling back to "solid" and
// logging a warning when the name is unknown.
func Envelope(name string) Func {
	if f, ok := envelopes[name]; ok {
		return f
	}
	if name != "" {
		log.Warnf("unknown envelope %q, falling back to solid", name)
	}
	return solidEnv
}
