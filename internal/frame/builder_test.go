package frame

import (
	"math"
	"testing"

	"github.com/solenoid-array/helixdrive/internal/params"
	"github.com/solenoid-array/helixdrive/internal/tonecurve"
)

func identitySnapshot(n int, mode params.Mode) params.Snapshot {
	return params.Snapshot{
		Global: params.Global{
			NumServos:         n,
			StrokeOffset:      0,
			LUTY:              tonecurve.DefaultY(),
			StrokeLengthLimit: 50000,
		},
		Mode: mode,
	}
}

func TestSolidSolidIsConstantAcrossServos(t *testing.T) {
	mode := params.Mode{Func: "solid", AmpMode: "solid", Direction: 1, StrokeLength: 1000}
	snap := identitySnapshot(4, mode)
	snap.Global.StrokeOffset = 50000

	for _, tt := range []float64{0, 0.3, 1.7, 12.5} {
		out := Build(tt, snap)
		want := out[0]
		for i, v := range out {
			if math.Abs(v-want) > 1e-9 {
				t.Errorf("t=%v out[%d]=%v, want constant %v", tt, i, v, want)
			}
		}
		wantVal := 50000.0 + 1000.0*1.0 // LUT(1*1) on identity curve = 1
		if math.Abs(want-wantVal) > 1e-9 {
			t.Errorf("t=%v out=%v, want %v", tt, want, wantVal)
		}
	}
}

func TestSteadySinScenario(t *testing.T) {
	// Scenario 1 from spec.md §8: N=4, sin, phase_rate=0, base_freq=1.
	mode := params.Mode{Func: "sin", AmpMode: "solid", BaseFreq: 1, PhaseRate: 0, Direction: 1, StrokeLength: 1000}
	snap := identitySnapshot(4, mode)
	snap.Global.StrokeOffset = 50000

	out := Build(0, snap)
	for i, v := range out {
		if math.Abs(v-50000) > 1e-6 {
			t.Errorf("frame0[%d] = %v, want 50000", i, v)
		}
	}

	out2 := Build(0.2, snap)
	want2 := 50000 + 1000*math.Sin(2*math.Pi*0.2)
	for i, v := range out2 {
		if math.Abs(v-want2) > 1e-6 {
			t.Errorf("frame@t=0.2[%d] = %v, want %v", i, v, want2)
		}
	}
}

func TestOutputLengthEqualsN(t *testing.T) {
	mode := params.Mode{Func: "azimuth", AmpMode: "cone", BaseFreq: 2, AmpParamA: 0.6, Direction: 1, StrokeLength: 500}
	snap := identitySnapshot(9, mode)
	out := Build(0.5, snap)
	if len(out) != 9 {
		t.Errorf("len = %d, want 9", len(out))
	}
}
