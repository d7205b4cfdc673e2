// Package engine implements the Motion Engine: the fixed-rate frame loop
// described in spec.md §4.4. It reads the Parameter Store every frame,
// builds the raw target vector, runs the safety pipeline, and dispatches
// the result on a jitter-bounded schedule.
package engine

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solenoid-array/helixdrive/internal/frame"
	"github.com/solenoid-array/helixdrive/internal/obs"
	"github.com/solenoid-array/helixdrive/internal/params"
)

// Dispatcher is the downstream sink a frame is handed to once filtered.
// internal/dispatch.Dispatcher satisfies this.
type Dispatcher interface {
	Dispatch(vals []int)
}

// state is the engine's live, non-persisted working state (spec.md §3
// "Engine state").
type state struct {
	prevVals     []int
	currentSpeed []int
	u            float64
	uTRate       float64
	uTRateTarget float64
	uTKeep       float64
	easingFrom   []float64
	easingTo     []float64
	activeModeID string
	initialized  bool
	firstFrame   bool
}

// Engine is the fixed-rate motion loop. It is safe to construct once and
// Start/Stop repeatedly, mirroring the teacher's mutex-guarded engine swap
// in player.go.
type Engine struct {
	store      *params.Store
	dispatcher Dispatcher
	log        *obs.Logger
	rng        *rand.Rand

	mu    sync.Mutex
	st    state
	stopC chan struct{}
	doneC chan struct{}

	repeatFlag atomic.Bool
}

// New constructs an Engine bound to a store and a downstream dispatcher.
func New(store *params.Store, dispatcher Dispatcher) *Engine {
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		log:        obs.New("engine"),
		rng:        rand.New(rand.NewSource(1)),
	}
}

// RequestRepeat sets the one-shot repeat_flag, forcing re-entry of the
// transition branch on the next frame even if mode_id is unchanged
// (spec.md §4.8, the upstream MODE-set behaviour).
func (e *Engine) RequestRepeat() {
	e.repeatFlag.Store(true)
}

// Start launches the frame loop on a dedicated goroutine. Calling Start
// while already running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopC != nil {
		return
	}
	e.stopC = make(chan struct{})
	e.doneC = make(chan struct{})
	go e.run(e.stopC, e.doneC)
}

// Stop signals the loop to exit and joins it, waiting up to timeout
// (spec.md §5: "joined with a 2s timeout"). Returns false on timeout.
func (e *Engine) Stop(timeout time.Duration) bool {
	e.mu.Lock()
	stopC, doneC := e.stopC, e.doneC
	e.stopC, e.doneC = nil, nil
	e.mu.Unlock()
	if stopC == nil {
		return true
	}
	close(stopC)
	select {
	case <-doneC:
		return true
	case <-time.After(timeout):
		return false
	}
}

// PrevVals returns a copy of the last dispatched integer frame.
func (e *Engine) PrevVals() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.st.prevVals))
	copy(out, e.st.prevVals)
	return out
}

// SetPrevVals overwrites the engine's notion of the last-dispatched frame.
// Used by the Homing Coordinator (spec.md §4.7) while it holds the engine
// preempted.
func (e *Engine) SetPrevVals(vals []int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.prevVals = append([]int(nil), vals...)
}

// CurrentSpeed returns a copy of the per-channel speed reported after the
// last frame.
func (e *Engine) CurrentSpeed() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.st.currentSpeed))
	copy(out, e.st.currentSpeed)
	return out
}

func (e *Engine) run(stopC, doneC chan struct{}) {
	defer close(doneC)

	schedule := time.Now()
	for {
		snap := e.store.Snapshot()
		if snap.ModeFellBack {
			e.log.Warnf("mode %q not found, falling back to sin/solid", snap.Global.ModeID)
		}
		dt := 1.0 / float64(maxInt(snap.Global.RateFPS, 1))

		e.mu.Lock()
		if !e.st.initialized {
			e.st.prevVals = fillInt(snap.Global.NumServos, snap.Global.StrokeOffset)
			e.st.currentSpeed = make([]int, snap.Global.NumServos)
			e.st.firstFrame = true
			e.st.initialized = true
		}
		e.stepLocked(snap, dt)
		e.mu.Unlock()

		select {
		case <-stopC:
			return
		default:
		}

		schedule = schedule.Add(time.Duration(dt * float64(time.Second)))
		sleep := time.Until(schedule)
		if sleep < 0 {
			e.log.Warnf("engine-slip: frame deadline missed by %s, resynchronising schedule", -sleep)
			schedule = time.Now().Add(time.Duration(dt * float64(time.Second)))
			sleep = 0
		}
		select {
		case <-stopC:
			return
		case <-time.After(sleep):
		}
	}
}

// stepLocked advances the engine by exactly one frame. Caller must hold e.mu.
func (e *Engine) stepLocked(snap params.Snapshot, dt float64) {
	st := &e.st

	if snap.Global.ModeID != st.activeModeID || e.repeatFlag.Load() || st.firstFrame {
		st.easingFrom = intsToFloats(st.prevVals)
		st.easingTo = frame.Build(0, snap)
		st.u = -snap.Mode.EasingDuration
		st.uTKeep = 0
		e.repeatFlag.Store(false)
		st.activeModeID = snap.Global.ModeID
		st.firstFrame = false
	}

	// raw is computed from the CURRENT u/u_t_keep (before this frame's
	// advance), matching spec.md §8's worked mode-switch scenario: the
	// transition frame reports u=-easing_duration and raw=easing_from,
	// with u_t_keep/u only advancing by dt after raw is taken.
	var raw []float64
	if st.u >= 0 {
		e.redrawPhaseRate(snap, st)
		raw = frame.Build(st.u, snap)
		st.u += st.uTRate * dt
		st.uTKeep += dt
	} else {
		easingDuration := snap.Mode.EasingDuration
		var frac float64
		if easingDuration > 0 {
			frac = st.uTKeep / easingDuration
		} else {
			frac = 1
		}
		if frac > 1 {
			frac = 1
		}
		raw = make([]float64, snap.Global.NumServos)
		for i := range raw {
			from, to := 0.0, 0.0
			if i < len(st.easingFrom) {
				from = st.easingFrom[i]
			}
			if i < len(st.easingTo) {
				to = st.easingTo[i]
			}
			raw[i] = from*(1-frac) + to*frac
		}
		st.u += dt
		st.uTKeep += dt
		// Absorb accumulated float drift so u reaches 0 after exactly
		// ceil(easing_duration/dt) frames.
		if st.u < 0 && st.uTKeep >= easingDuration-1e-9 {
			st.u = 0
		}
	}

	filtered, tg := applySafety(raw, st.prevVals, snap.Global.Alpha,
		snap.Global.LimitAbsolute, snap.Global.LimitRelational, snap.Global.LimitSpeed, snap.Global.RateFPS)

	speed := make([]int, len(filtered))
	for i := range filtered {
		prev := 0
		if i < len(st.prevVals) {
			prev = st.prevVals[i]
		}
		speed[i] = filtered[i] - prev
	}
	st.currentSpeed = speed
	st.prevVals = filtered

	if tg.any() {
		e.log.Warnf("limit triggered %s", tg.String())
	}

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(filtered)
	}
}

// redrawPhaseRate re-targets and slews u_t_rate, per spec.md §4.4 step 2.
func (e *Engine) redrawPhaseRate(snap params.Snapshot, st *state) {
	mode := snap.Mode
	if mode.UFrequentness <= 0 || mode.UWidth <= 0 {
		st.uTRateTarget = mode.UAverage
	} else {
		interval := 1.0 / mode.UFrequentness
		if st.uTKeep >= interval {
			lo := mode.UAverage - mode.UWidth/2
			hi := mode.UAverage + mode.UWidth/2
			st.uTRateTarget = lo + e.rng.Float64()*(hi-lo)
			st.uTKeep = 0
		}
	}
	delta := st.uTRateTarget - st.uTRate
	const maxSlew = 0.01
	if delta > maxSlew {
		delta = maxSlew
	} else if delta < -maxSlew {
		delta = -maxSlew
	}
	st.uTRate += delta
	if st.uTRate < 0 {
		st.uTRate = 0
	}
}

func fillInt(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func intsToFloats(in []int) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
