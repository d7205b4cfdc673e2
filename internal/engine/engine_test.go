package engine

import (
	"testing"

	"github.com/solenoid-array/helixdrive/internal/params"
	"github.com/solenoid-array/helixdrive/internal/tonecurve"
)

func TestAbsoluteClampScenario(t *testing.T) {
	// Scenario 2: alpha=1, stroke_length=200000, stroke_offset=0, limit_absolute=100000.
	prev := []int{0, 0, 0, 0}
	raw := []float64{200000, 200000, 200000, 200000}
	out, tg := applySafety(raw, prev, 1.0, 100000, 1000000, 1000000, 10)
	for i, v := range out {
		if v != 100000 {
			t.Errorf("out[%d] = %d, want 100000", i, v)
		}
	}
	if !tg.absolute {
		t.Error("expected ABS tag")
	}
}

func TestSpeedClampScenario(t *testing.T) {
	// Scenario 3: alpha=1, limit_speed=1000, rate_fps=10, stroke_offset=0.
	prev := []int{0, 0, 0}
	raw := []float64{10000, 10000, 10000}
	out, tg := applySafety(raw, prev, 1.0, 1000000, 1000000, 1000, 10)
	for i, v := range out {
		if v != 100 {
			t.Errorf("out[%d] = %d, want 100", i, v)
		}
	}
	if !tg.speed {
		t.Error("expected SPE tag")
	}
}

func TestRelationalClampScenario(t *testing.T) {
	// Scenario 4: N=3, limit_relational=10, prev=[0,0,0], raw=[0,20,0].
	// b(0,10) = 0.5*(sqrt(4*100) - 0) = 10 on both sides, so
	// v[1] = round(0.5*min(b1+v1, b2+v1)) = round(0.5*min(30,30)) = 15.
	prev := []int{0, 0, 0}
	raw := []float64{0, 20, 0}
	out, tg := applySafety(raw, prev, 1.0, 1000000, 10, 1000000, 10)
	if out[1] != 15 {
		t.Errorf("out[1] = %d, want 15", out[1])
	}
	if !tg.relational {
		t.Error("expected REL tag")
	}
}

func TestModeSwitchEasingScenario(t *testing.T) {
	// Scenario 5: easing_duration=1s, rate_fps=10, prev=[0]*N, new mode
	// first frame make_frame(0)=[1000]*N.
	e := New(nil, nil)
	n := 4
	e.st.prevVals = fillInt(n, 0)
	e.st.currentSpeed = make([]int, n)
	e.st.initialized = true
	e.st.firstFrame = true

	mode := params.Mode{Func: "solid", AmpMode: "solid", Direction: 1, StrokeLength: 1000, EasingDuration: 1}
	snap := params.Snapshot{
		Global: params.Global{NumServos: n, RateFPS: 10, Alpha: 1.0, StrokeOffset: 0,
			LimitAbsolute: 1000000, LimitRelational: 1000000, LimitSpeed: 1000000,
			LUTY: tonecurve.DefaultY(), StrokeLengthLimit: 50000},
		Mode: mode,
	}
	dt := 0.1

	e.stepLocked(snap, dt) // frame 0: transition fires, u = -1, raw = easingFrom = 0
	if e.st.u != -0.9 {
		t.Errorf("u after frame 0 = %v, want -0.9 (started at -1, advanced by dt)", e.st.u)
	}
	if e.st.prevVals[0] != 0 {
		t.Errorf("prevVals[0] after frame 0 = %d, want 0", e.st.prevVals[0])
	}

	for i := 0; i < 4; i++ { // frames 1-4
		e.stepLocked(snap, dt)
	}
	// After 5 total frames u should be at -1 + 5*dt = -0.5, the u frame 5 blends at
	if diff := e.st.u - (-0.5); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("u after 5 frames = %v, want -0.5", e.st.u)
	}
	e.stepLocked(snap, dt) // frame 5
	if e.st.prevVals[0] != 500 {
		t.Errorf("prevVals[0] at u=-0.5 = %d, want ~500", e.st.prevVals[0])
	}

	for i := 0; i < 4; i++ { // frames 6-9
		e.stepLocked(snap, dt)
	}
	if e.st.u < 0 {
		t.Errorf("u after 10 frames should be >= 0, got %v", e.st.u)
	}
	e.stepLocked(snap, dt) // frame 10
	if e.st.prevVals[0] != 1000 {
		t.Errorf("prevVals[0] at u=0 = %d, want 1000", e.st.prevVals[0])
	}
}

func TestRepeatFlagForcesTransitionWithSameModeID(t *testing.T) {
	e := New(nil, nil)
	n := 2
	e.st.prevVals = fillInt(n, 0)
	e.st.currentSpeed = make([]int, n)
	e.st.initialized = true
	e.st.activeModeID = "1"

	mode := params.Mode{Func: "solid", AmpMode: "solid", Direction: 1, StrokeLength: 1000, EasingDuration: 0.5}
	snap := params.Snapshot{
		Global: params.Global{NumServos: n, RateFPS: 10, Alpha: 1.0,
			LimitAbsolute: 1000000, LimitRelational: 1000000, LimitSpeed: 1000000,
			LUTY: tonecurve.DefaultY(), StrokeLengthLimit: 50000, ModeID: "1"},
		Mode: mode,
	}
	e.st.u = 5 // well past easing, simulating steady state
	e.RequestRepeat()
	e.stepLocked(snap, 0.1)
	if e.st.u != -0.4 {
		t.Errorf("u after repeat-forced transition = %v, want -0.4 (started at -0.5, +dt)", e.st.u)
	}
}

func TestOutputInvariants(t *testing.T) {
	e := New(nil, nil)
	n := 6
	e.st.prevVals = fillInt(n, 100)
	e.st.currentSpeed = make([]int, n)
	e.st.initialized = true
	e.st.activeModeID = "1"

	mode := params.Mode{Func: "sin", AmpMode: "solid", BaseFreq: 1.3, Direction: 1, StrokeLength: 40000}
	limitAbs, limitRel, limitSpeed, rateFPS := 100000, 5000, 2000, 20
	snap := params.Snapshot{
		Global: params.Global{NumServos: n, RateFPS: rateFPS, Alpha: 0.3, StrokeOffset: 50000,
			LimitAbsolute: limitAbs, LimitRelational: limitRel, LimitSpeed: limitSpeed,
			LUTY: tonecurve.DefaultY(), StrokeLengthLimit: 50000, ModeID: "1"},
		Mode: mode,
	}

	for f := 0; f < 50; f++ {
		prev := append([]int(nil), e.st.prevVals...)
		e.stepLocked(snap, 1.0/float64(rateFPS))
		if len(e.st.prevVals) != n {
			t.Fatalf("frame %d: len=%d, want %d", f, len(e.st.prevVals), n)
		}
		for i, v := range e.st.prevVals {
			if v < 0 || v > limitAbs {
				t.Errorf("frame %d out[%d]=%d out of [0,%d]", f, i, v, limitAbs)
			}
			maxDelta := limitSpeed/rateFPS + 1
			if d := v - prev[i]; d > maxDelta || d < -maxDelta {
				t.Errorf("frame %d speed violation at %d: delta=%d", f, i, d)
			}
		}
	}
}
