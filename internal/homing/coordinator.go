// Package homing implements the Homing Coordinator (spec.md §4.7): boot
// reset, per-motor homing, the pairwise inward "home_all" sweep with
// cancellation, neutral-rail ramps, and emergency halt. It shares the
// Parameter Store and the engine's prev_vals with the Motion Engine,
// preempting it for the duration of a sweep.
package homing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hypebeast/go-osc/osc"

	"github.com/solenoid-array/helixdrive/internal/dispatch"
	"github.com/solenoid-array/helixdrive/internal/obs"
	"github.com/solenoid-array/helixdrive/internal/params"
)

// Engine is the subset of *engine.Engine the coordinator preempts and
// reports through, kept narrow to avoid an import cycle.
type Engine interface {
	Stop(timeout time.Duration) bool
	Start()
	PrevVals() []int
	SetPrevVals(vals []int)
}

// Dispatcher is the downstream sink used while the engine is preempted,
// satisfied by dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(vals []int)
}

// Coordinator grounds original_source/ritsudo_server.py's homing/setNeutral/
// init/halt endpoints, reworked against spec.md §4.7's pairwise sweep and
// cancellation contract (which the Python source, a strictly sequential
// sweep, does not implement).
type Coordinator struct {
	store      *params.Store
	pool       *dispatch.Pool
	engine     Engine
	dispatcher Dispatcher
	log        *obs.Logger

	statusMu sync.Mutex
	status   map[int]int

	bootMu  sync.Mutex
	booted  map[string]struct{}
	bootSig chan struct{}

	posMu sync.Mutex
	pos   map[int]int
	posAt map[int]time.Time

	running atomic.Bool
	cancel  atomic.Bool
}

// New constructs a Coordinator sharing the engine's client pool.
func New(store *params.Store, pool *dispatch.Pool, eng Engine, disp Dispatcher) *Coordinator {
	return &Coordinator{
		store:      store,
		pool:       pool,
		engine:     eng,
		dispatcher: disp,
		log:        obs.New("homing"),
		status:     map[int]int{},
		booted:     map[string]struct{}{},
		bootSig:    make(chan struct{}, 1),
		pos:        map[int]int{},
		posAt:      map[int]time.Time{},
	}
}

// SetHomingStatus records a /homingStatus-style response from a controller,
// called by the response receiver once recv_ports are wired (spec.md §4.7
// "Poll latest_homing_status[motor_id]").
func (c *Coordinator) SetHomingStatus(motorID, status int) {
	c.statusMu.Lock()
	c.status[motorID] = status
	c.statusMu.Unlock()
}

func (c *Coordinator) resetHomingStatus(motorID int) {
	c.statusMu.Lock()
	delete(c.status, motorID)
	c.statusMu.Unlock()
}

func (c *Coordinator) getHomingStatus(motorID int) (int, bool) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	v, ok := c.status[motorID]
	return v, ok
}

// SetPosition records a /getPosition response.
func (c *Coordinator) SetPosition(motorID, position int) {
	c.posMu.Lock()
	c.pos[motorID] = position
	c.posAt[motorID] = time.Now()
	c.posMu.Unlock()
}

// LatestPosition returns the last reported position for motorID.
func (c *Coordinator) LatestPosition(motorID int) (int, bool) {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	v, ok := c.pos[motorID]
	return v, ok
}

// LatestPositionTime returns when motorID's position was last reported,
// used by QueryPosition to detect a fresh reply rather than a stale one
// left over from a previous request (grounded on
// ritsudo_server.py:wait_for_latest_position's pos_time > prev_time check).
func (c *Coordinator) LatestPositionTime(motorID int) (time.Time, bool) {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	t, ok := c.posAt[motorID]
	return t, ok
}

// NotifyBooted records a /booted notification from an endpoint identifier
// (the response receiver passes the recv port it arrived on), used by
// wait_for_booted's Go analogue.
func (c *Coordinator) NotifyBooted(endpoint string) {
	c.bootMu.Lock()
	c.booted[endpoint] = struct{}{}
	c.bootMu.Unlock()
	select {
	case c.bootSig <- struct{}{}:
	default:
	}
}

func (c *Coordinator) bootedCount() int {
	c.bootMu.Lock()
	defer c.bootMu.Unlock()
	return len(c.booted)
}

func (c *Coordinator) resetBooted() {
	c.bootMu.Lock()
	c.booted = map[string]struct{}{}
	c.bootMu.Unlock()
}

// motorClient resolves the pooled OSC client and local id for a 1-based
// motor_id, grounded on ritsudo_server.py:get_motor_client_and_local_id.
func (c *Coordinator) motorClient(motorID int, g params.Global) (*osc.Client, int, error) {
	ep, err := dispatch.ResolveMotor(motorID, g.ValsPerHost)
	if err != nil {
		return nil, 0, err
	}
	if ep.HostIndex < 0 || ep.HostIndex >= len(g.Hosts) {
		return nil, 0, fmt.Errorf("homing: motor_id %d out of range", motorID)
	}
	return c.pool.Client(g.Hosts[ep.HostIndex], g.Port), ep.LocalID, nil
}

func send(client *osc.Client, address string, args ...any) error {
	msg := osc.NewMessage(address)
	msg.Append(args...)
	return client.Send(msg)
}

func broadcast(clients []*osc.Client, address string, args ...any) {
	for _, client := range clients {
		msg := osc.NewMessage(address)
		msg.Append(args...)
		_ = client.Send(msg)
	}
}

func (c *Coordinator) allClients(g params.Global) []*osc.Client {
	out := make([]*osc.Client, len(g.Hosts))
	for i, h := range g.Hosts {
		out[i] = c.pool.Client(h, g.Port)
	}
	return out
}

// SetNeutral ramps prev_vals toward [stroke_offset]*N at neutral_speed
// units/s over a 20ms tick, dispatching each step, terminating when every
// channel matches (spec.md §4.7 "set_neutral").
func (c *Coordinator) SetNeutral(ctx context.Context) {
	snap := c.store.Snapshot()
	g := snap.Global
	n := g.NumServos
	target := g.StrokeOffset

	const tick = 20 * time.Millisecond
	step := g.NeutralSpeed * tick.Seconds()
	if step <= 0 {
		step = 1
	}

	prev := c.engine.PrevVals()
	if len(prev) != n {
		prev = make([]int, n)
		for i := range prev {
			prev[i] = target
		}
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		allMatch := true
		next := make([]int, n)
		for i, v := range prev {
			if v == target {
				next[i] = v
				continue
			}
			allMatch = false
			if v < target {
				next[i] = minInt(v+int(step), target)
			} else {
				next[i] = maxInt(v-int(step), target)
			}
		}
		prev = next
		c.engine.SetPrevVals(prev)
		if c.dispatcher != nil {
			c.dispatcher.Dispatch(prev)
		}
		if allMatch {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Homing performs the homing sequence for a single 1-based motor_id
// (spec.md §4.7 "homing(motor_id)").
func (c *Coordinator) Homing(ctx context.Context, motorID int) (int, error) {
	snap := c.store.Snapshot()
	g := snap.Global
	client, localID, err := c.motorClient(motorID, g)
	if err != nil {
		return -1, err
	}

	_ = send(client, "/enableServoMode", int32(localID), int32(0))
	_ = send(client, "/setKval", int32(localID), int32(10), int32(25), int32(25), int32(25))
	c.resetHomingStatus(motorID)
	_ = send(client, "/homing", int32(localID))

	timeout := time.Duration(g.HomingTimeout * float64(time.Second))
	status, timedOut := c.pollHomingStatus(ctx, motorID, timeout)

	_ = send(client, "/setKval", int32(localID), int32(g.KValHold), int32(g.KValNormal), int32(g.KValNormal), int32(g.KValNormal))
	_ = send(client, "/enableServoMode", int32(localID), int32(1))

	if timedOut {
		c.log.Warnf("homing timed out for motor %d", motorID)
		return status, nil
	}
	if status == 3 {
		vals := c.engine.PrevVals()
		if motorID-1 >= 0 && motorID-1 < len(vals) {
			vals[motorID-1] = 0
			c.engine.SetPrevVals(vals)
		}
		c.log.Debugf("homing completed for motor %d", motorID)
	} else {
		c.log.Warnf("homing failed for motor %d, status=%d", motorID, status)
	}
	return status, nil
}

func (c *Coordinator) pollHomingStatus(ctx context.Context, motorID int, timeout time.Duration) (status int, timedOut bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if st, ok := c.getHomingStatus(motorID); ok && st >= 3 {
			return st, false
		}
		select {
		case <-ctx.Done():
			return 0, true
		case <-ticker.C:
		}
	}
	return 0, true
}

// QueryPosition actively requests motor_id's position (/getPosition) and
// polls up to getpos_timeout for a reply newer than the last one already on
// file, grounded on ritsudo_server.py:get_target_position's
// send+wait_for_latest_position pair. ok is false on timeout, per spec.md
// §7's "timeout ... return sentinel" contract (not an exception).
func (c *Coordinator) QueryPosition(ctx context.Context, motorID int) (int, bool) {
	snap := c.store.Snapshot()
	client, localID, err := c.motorClient(motorID, snap.Global)
	if err != nil {
		c.log.Warnf("query_position: %v", err)
		return 0, false
	}
	prevTime, hadPrev := c.LatestPositionTime(motorID)
	if err := send(client, "/getPosition", int32(localID)); err != nil {
		c.log.Warnf("query_position: %v", err)
	}

	timeout := time.Duration(snap.Global.GetposTimeout * float64(time.Second))
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if t, ok := c.LatestPositionTime(motorID); ok && (!hadPrev || t.After(prevTime)) {
			pos, _ := c.LatestPosition(motorID)
			return pos, true
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
		}
	}
	return 0, false
}

// disableMotor sends /hardHiZ [local_id], grounded on
// ritsudo_server.py:disable_motor.
func (c *Coordinator) disableMotor(motorID int) {
	snap := c.store.Snapshot()
	client, localID, err := c.motorClient(motorID, snap.Global)
	if err != nil {
		c.log.Errorf("disable_motor: %v", err)
		return
	}
	_ = send(client, "/hardHiZ", int32(localID))
}

// HomeAllResult reports the pairwise sweep's outcome.
type HomeAllResult struct {
	Cancelled bool
	PerMotor  []byte // 'o' pass, 'x' fail, '_' not attempted (1 entry per 0-based index)
}

// CancelHomeAll sets the one-shot home_all_cancel signal, checked before
// every pair and before the middle-element step.
func (c *Coordinator) CancelHomeAll() {
	c.cancel.Store(true)
}

// HomeAll runs the symmetric inward sweep of spec.md §4.7. Only one sweep
// may run at a time.
func (c *Coordinator) HomeAll(ctx context.Context) (HomeAllResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		return HomeAllResult{}, fmt.Errorf("homing: home_all already running")
	}
	defer c.running.Store(false)
	defer c.cancel.Store(false)

	c.engine.Stop(2 * time.Second)
	defer c.engine.Start()

	snap := c.store.Snapshot()
	g := snap.Global
	n := g.NumServos
	mapping := g.MotorPositionMapping
	result := make([]byte, n)
	for i := range result {
		result[i] = '_'
	}
	record := func(idx0 int, motorID, status int) {
		if status == 3 {
			result[idx0] = 'o'
		} else {
			result[idx0] = 'x'
			c.disableMotor(motorID)
		}
	}

	half := n / 2
	for i := 0; i < half; i++ {
		if c.cancel.Load() {
			return HomeAllResult{Cancelled: true, PerMotor: result}, nil
		}
		j := n - 1 - i
		m1 := mappedMotorID(mapping, i)
		m2 := mappedMotorID(mapping, j)

		if n%2 == 0 && i == half-1 {
			s1, _ := c.Homing(ctx, m1)
			record(i, m1, s1)
			c.SetNeutral(ctx)
			s2, _ := c.Homing(ctx, m2)
			record(j, m2, s2)
		} else {
			var s1, s2 int
			eg, _ := errgroup.WithContext(ctx)
			eg.Go(func() error { s1, _ = c.Homing(ctx, m1); return nil })
			eg.Go(func() error { s2, _ = c.Homing(ctx, m2); return nil })
			_ = eg.Wait()
			record(i, m1, s1)
			record(j, m2, s2)
		}
		c.SetNeutral(ctx)
	}

	if n%2 == 1 {
		if c.cancel.Load() {
			return HomeAllResult{Cancelled: true, PerMotor: result}, nil
		}
		mid := mappedMotorID(mapping, half)
		s, _ := c.Homing(ctx, mid)
		record(half, mid, s)
	}

	c.log.Infof("home_all finished: %s", string(result))
	return HomeAllResult{PerMotor: result}, nil
}

func mappedMotorID(mapping []int, idx int) int {
	if idx < len(mapping) {
		return mapping[idx] + 1
	}
	return idx + 1
}

// cancelAndJoinHomeAll signals an in-flight HomeAll to stop and blocks until
// it has actually returned (its deferred c.running.Store(false) has fired),
// or ctx is done. A no-op if no sweep is running. Grounded on spec.md §4.7's
// requirement that init cancels AND joins home_all before proceeding, since
// init's own broadcasts must not race HomeAll's pairwise dispatches.
func (c *Coordinator) cancelAndJoinHomeAll(ctx context.Context) {
	if !c.running.Load() {
		return
	}
	c.cancel.Store(true)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for c.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Init performs boot-reset, PID/current-drive push, and servo enable/disable
// (spec.md §4.7 "init(enable)"), grounded on ritsudo_server.py:init. With
// enable false, the /resetDevice broadcast, the boot wait, the per-board
// parameter push and the prev_vals reset are skipped; only /enableServoMode,
// /softHiZ and /setServoParam are broadcast.
func (c *Coordinator) Init(ctx context.Context, enable bool) error {
	c.cancelAndJoinHomeAll(ctx)

	snap := c.store.Snapshot()
	g := snap.Global
	clients := c.allClients(g)

	if enable {
		c.resetBooted()
		broadcast(clients, "/resetDevice")
		if !c.waitForBooted(ctx, g.ExpectedBootPorts, time.Duration(g.BootWait*float64(time.Second))) {
			return fmt.Errorf("homing: /booted not received from all %d devices", g.ExpectedBootPorts)
		}
		for _, client := range clients {
			_ = send(client, "/setDestIp")
			time.Sleep(100 * time.Millisecond)
			_ = send(client, "/setKval", int32(255), int32(10), int32(25), int32(25), int32(25))
			_ = send(client, "/setGoUntilTimeout", int32(255), int32(20000))
			_ = send(client, "/setHomingSpeed", int32(255), int32(100))
			_ = send(client, "/setPosition", int32(255), int32(g.StrokeOffset))
		}
		prev := make([]int, g.NumServos)
		for i := range prev {
			prev[i] = g.StrokeOffset
		}
		c.engine.SetPrevVals(prev)
	}

	flag := int32(0)
	if enable {
		flag = 1
	}
	broadcast(clients, "/enableServoMode", int32(255), flag)
	if !enable {
		broadcast(clients, "/softHiZ", int32(255))
	}
	broadcast(clients, "/setServoParam", int32(255), g.Kp, g.Ki, g.Kd)
	return nil
}

func (c *Coordinator) waitForBooted(ctx context.Context, expected int, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if c.bootedCount() >= expected {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-c.bootSig:
		case <-time.After(100 * time.Millisecond):
		}
	}
	return c.bootedCount() >= expected
}

// Halt broadcasts /hardHiZ [255] to all hosts and stops the engine
// (spec.md §4.7 "halt").
func (c *Coordinator) Halt() {
	snap := c.store.Snapshot()
	clients := c.allClients(snap.Global)
	broadcast(clients, "/hardHiZ", int32(255))
	c.engine.Stop(2 * time.Second)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
