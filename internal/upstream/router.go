// Package upstream implements the Upstream Callback Router (spec.md §4.8):
// it resolves decoded (address, args) tuples against the Parameter Store,
// dispatches no-arg transport commands, and reports homing/init/speed/
// position results on the outbound notification channel (spec.md §6).
//
// Wire-level OSC decoding is provided by github.com/hypebeast/go-osc; this
// package owns only the routing decision spec.md §4.8 describes, grounded
// on original_source/osc_listener.py's listener_message_callback.
package upstream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/solenoid-array/helixdrive/internal/homing"
	"github.com/solenoid-array/helixdrive/internal/obs"
	"github.com/solenoid-array/helixdrive/internal/params"
)

// EngineController is the subset of *engine.Engine the router drives, kept
// narrow to avoid a direct dependency on internal/engine.
type EngineController interface {
	Start()
	Stop(timeout time.Duration) bool
	RequestRepeat()
	CurrentSpeed() []int
}

// Homer is the subset of *homing.Coordinator the router drives.
type Homer interface {
	Init(ctx context.Context, enable bool) error
	HomeAll(ctx context.Context) (homing.HomeAllResult, error)
	SetNeutral(ctx context.Context)
	Halt()
	LatestPosition(motorID int) (int, bool)
	QueryPosition(ctx context.Context, motorID int) (int, bool)
}

// positionTimeoutSentinel is the explicit value reported for a motor whose
// /getPosition query timed out (spec.md §7's "timeout ... return sentinel,
// not an exception"), matching the -1 failure convention /Homed already
// uses on this notification channel.
const positionTimeoutSentinel = -1

// Notifier is the outbound OSC notification channel (spec.md §6, port
// 10001 by default).
type Notifier interface {
	Homed(motorID int, ok bool)
	HomedAll(ok bool)
	Initialized()
	AverageSpeed(v float64)
	Speed(vals []int)
	Position(vals []int)
}

// Router resolves decoded OSC messages into parameter mutations and
// transport commands.
type Router struct {
	store    *params.Store
	engine   EngineController
	homer    Homer
	notifier Notifier
	log      *obs.Logger
}

// New constructs a Router.
func New(store *params.Store, engine EngineController, homer Homer, notifier Notifier) *Router {
	return &Router{store: store, engine: engine, homer: homer, notifier: notifier, log: obs.New("upstream")}
}

// Item is one decoded (address, args) tuple, the shape a bundle unpacks to.
type Item struct {
	Address string
	Args    []any
}

// HandleMessage routes a single decoded OSC message, per
// osc_listener.py:listener_message_callback.
func (r *Router) HandleMessage(address string, args []any) {
	candidate := strings.TrimPrefix(address, "/")
	if len(args) == 0 {
		r.handleCommand(candidate)
		return
	}
	r.setParam(candidate, args[0])
}

// HandleBundle applies the same parameter resolution as HandleMessage to
// every message in a bundle that carries an argument (spec.md §4.8
// "Bundles"). Messages without arguments are skipped: no transport command
// is run from a bundle.
func (r *Router) HandleBundle(items []Item) {
	for _, it := range items {
		candidate := strings.TrimPrefix(it.Address, "/")
		if len(it.Args) == 0 {
			continue
		}
		r.setParam(candidate, it.Args[0])
	}
}

func (r *Router) handleCommand(candidate string) {
	ctx := context.Background()
	switch candidate {
	case "Start":
		r.engine.Start()
	case "Stop":
		r.engine.Stop(2 * time.Second)
	case "Init":
		go func() {
			if err := r.homer.Init(ctx, true); err != nil {
				r.log.Warnf("init: %v", err)
				return
			}
			r.notifier.Initialized()
		}()
	case "Home":
		go r.runHomeAll(ctx)
	case "Neutral":
		go r.homer.SetNeutral(ctx)
	case "Release":
		go func() { _ = r.homer.Init(ctx, false) }()
	case "Halt":
		r.homer.Halt()
	case "GetAverageSpeed":
		r.notifier.AverageSpeed(averageOf(r.engine.CurrentSpeed()))
	case "GetSpeed":
		r.notifier.Speed(r.engine.CurrentSpeed())
	case "GetPosition":
		// Runs async like Init/Home: allKnownPositions actively queries every
		// motor and can block up to getpos_timeout, which must not stall the
		// single-threaded OSC dispatch loop.
		go r.notifier.Position(r.allKnownPositions())
	case "RaiseError":
		r.log.Errorf("RaiseError diagnostic command received")
	default:
		r.log.Warnf("not matching no-arg command for candidate %q", candidate)
	}
}

func (r *Router) runHomeAll(ctx context.Context) {
	result, err := r.homer.HomeAll(ctx)
	if err != nil {
		r.log.Warnf("home_all: %v", err)
		return
	}
	ok := !result.Cancelled
	for _, b := range result.PerMotor {
		if b == 'x' {
			ok = false
		}
	}
	r.notifier.HomedAll(ok)
	for i, b := range result.PerMotor {
		if b == '_' {
			continue
		}
		r.notifier.Homed(i+1, b == 'o')
	}
}

// allKnownPositions actively queries every motor's position (/getPosition,
// one per motor, grounded on ritsudo_server.py:get_target_position), each
// bounded by getpos_timeout. A motor whose reply times out reports
// positionTimeoutSentinel rather than a stale cached value.
func (r *Router) allKnownPositions() []int {
	snap := r.store.Snapshot()
	out := make([]int, snap.Global.NumServos)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(snap.Global.GetposTimeout*float64(time.Second))+500*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for i := range out {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, ok := r.homer.QueryPosition(ctx, i+1); ok {
				out[i] = v
			} else {
				out[i] = positionTimeoutSentinel
			}
		}()
	}
	wg.Wait()
	return out
}

// setParam resolves candidate first against the active mode record, then
// the global record, coerces the incoming value, and rejects locked keys
// (spec.md §4.8 "Param updates").
func (r *Router) setParam(key string, val any) {
	modeID := r.store.ActiveModeID()
	if existing, ok := r.store.RawMode(modeID, key); ok {
		r.applyMode(modeID, key, existing, val)
		return
	}
	if existing, ok := r.store.RawGlobal(key); ok {
		r.applyGlobal(key, existing, val)
		return
	}
	r.log.Warnf("no matching param key for candidate %q", key)
}

func (r *Router) applyMode(modeID, key string, existing, val any) {
	coerced, err := params.Coerce(key, existing, val)
	if err != nil {
		r.log.Warnf("rejected mode param %q: %v", key, err)
		return
	}
	if err := r.store.SetMode(modeID, key, coerced); err != nil {
		r.log.Warnf("rejected mode param %q: %v", key, err)
		return
	}
	r.log.Debugf("mode param %q updated to %v", key, coerced)
}

func (r *Router) applyGlobal(key string, existing, val any) {
	coerced, err := params.Coerce(key, existing, val)
	if err != nil {
		r.log.Warnf("rejected global param %q: %v", key, err)
		return
	}
	if err := r.store.SetGlobal(key, coerced); err != nil {
		r.log.Warnf("rejected global param %q: %v", key, err)
		return
	}
	if key == "MODE" {
		r.engine.RequestRepeat()
	}
	r.log.Debugf("param %q updated to %v", key, coerced)
}

func averageOf(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}
