package homing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/solenoid-array/helixdrive/internal/dispatch"
	"github.com/solenoid-array/helixdrive/internal/params"
)

type fakeEngine struct {
	mu       sync.Mutex
	prev     []int
	started  int
	stopped  int
}

func (f *fakeEngine) Stop(timeout time.Duration) bool { f.mu.Lock(); f.stopped++; f.mu.Unlock(); return true }
func (f *fakeEngine) Start()                          { f.mu.Lock(); f.started++; f.mu.Unlock() }
func (f *fakeEngine) PrevVals() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.prev))
	copy(out, f.prev)
	return out
}
func (f *fakeEngine) SetPrevVals(vals []int) {
	f.mu.Lock()
	f.prev = append([]int(nil), vals...)
	f.mu.Unlock()
}

type fakeDispatcher struct {
	mu    sync.Mutex
	sends int
}

func (d *fakeDispatcher) Dispatch(vals []int) { d.mu.Lock(); d.sends++; d.mu.Unlock() }

func newTestCoordinator(t *testing.T, n int) (*Coordinator, *fakeEngine) {
	store := params.NewStore(filepath.Join(t.TempDir(), "params.json"))
	_ = store.Load()
	_ = store.SetGlobal("NUM_SERVOS", n)
	_ = store.SetGlobal("HOSTS", []any{"127.0.0.1", "127.0.0.1"})
	_ = store.SetGlobal("PORT", 60999)
	_ = store.SetGlobal("VALS_PER_HOST", 4)
	eng := &fakeEngine{prev: make([]int, n)}
	disp := &fakeDispatcher{}
	pool := dispatch.NewPool()
	c := New(store, pool, eng, disp)
	return c, eng
}

// TestHomeAllCancelledBeforeFirstPair checks spec.md §8's testable property:
// if home_all_cancel is set before the first pair, home_all returns
// cancelled and no motor is individually disabled.
func TestHomeAllCancelledBeforeFirstPair(t *testing.T) {
	c, _ := newTestCoordinator(t, 6)
	c.CancelHomeAll()

	res, err := c.HomeAll(context.Background())
	if err != nil {
		t.Fatalf("HomeAll returned error: %v", err)
	}
	if !res.Cancelled {
		t.Error("expected Cancelled=true")
	}
	for i, b := range res.PerMotor {
		if b != '_' {
			t.Errorf("PerMotor[%d] = %q, want untouched '_' (cancelled before any attempt)", i, b)
		}
	}
}

func TestHomeAllRejectsConcurrentRun(t *testing.T) {
	c, _ := newTestCoordinator(t, 2)
	c.running.Store(true)
	defer c.running.Store(false)

	_, err := c.HomeAll(context.Background())
	if err == nil {
		t.Error("expected error when home_all is already running")
	}
}

func TestMappedMotorIDFallsBackToIdentity(t *testing.T) {
	if got := mappedMotorID(nil, 2); got != 3 {
		t.Errorf("mappedMotorID(nil,2) = %d, want 3", got)
	}
	if got := mappedMotorID([]int{5, 4, 3, 2, 1, 0}, 0); got != 6 {
		t.Errorf("mappedMotorID = %d, want 6", got)
	}
}

func TestHomingStatusRoundTrip(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	c.SetHomingStatus(3, 3)
	st, ok := c.getHomingStatus(3)
	if !ok || st != 3 {
		t.Errorf("getHomingStatus(3) = %d,%v want 3,true", st, ok)
	}
	c.resetHomingStatus(3)
	if _, ok := c.getHomingStatus(3); ok {
		t.Error("expected status cleared after reset")
	}
}

func TestNotifyBootedAccumulates(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	c.NotifyBooted("127.0.0.1:1")
	c.NotifyBooted("127.0.0.1:2")
	c.NotifyBooted("127.0.0.1:1") // duplicate, set semantics
	if n := c.bootedCount(); n != 2 {
		t.Errorf("bootedCount = %d, want 2", n)
	}
}

// TestInitJoinsInFlightHomeAll checks spec.md §4.7's requirement that init
// cancels AND joins a running home_all before issuing its own broadcasts,
// rather than racing it.
func TestInitJoinsInFlightHomeAll(t *testing.T) {
	c, _ := newTestCoordinator(t, 2)
	_ = c.store.SetGlobal("EXPECTED_BOOT_PORTS", 0) // skip waitForBooted; this test is about the join, not boot
	c.running.Store(true)

	done := make(chan struct{})
	go func() {
		// Simulate an in-flight sweep: only stop once Init has signalled
		// cancellation, mirroring HomeAll's cancel-checked loop.
		for !c.cancel.Load() {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		c.running.Store(false)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Init(ctx, true); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	select {
	case <-done:
	default:
		t.Error("Init returned before the in-flight home_all finished")
	}
	if !c.cancel.Load() {
		t.Error("expected Init to set the cancel signal for the running sweep")
	}
}

func TestSetNeutralConvergesAndStops(t *testing.T) {
	c, eng := newTestCoordinator(t, 3)
	eng.SetPrevVals([]int{100, -100, 0})
	_ = c.store.SetGlobal("STROKE_OFFSET", 0)
	_ = c.store.SetGlobal("NEUTRAL_SPEED", 1000000.0) // large step so it converges in one tick

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.SetNeutral(ctx)

	for i, v := range eng.PrevVals() {
		if v != 0 {
			t.Errorf("prevVals[%d] = %d, want 0 after set_neutral", i, v)
		}
	}
}
