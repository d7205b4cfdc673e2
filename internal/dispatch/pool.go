// Package dispatch implements the Downstream Dispatcher (spec.md §4.6): it
// shards a filtered frame across host endpoints and emits per-endpoint
// /setTargetPositionList messages, with an optional full-vector mirror to a
// ghost host. It also exposes the long-lived client pool used by the Homing
// Coordinator for its direct, address-level broadcasts (spec.md §4.7).
package dispatch

import (
	"fmt"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/solenoid-array/helixdrive/internal/obs"
	"github.com/solenoid-array/helixdrive/internal/params"
)

// Pool holds one long-lived *osc.Client per (host, port) pair, rebuilt only
// when the host list or port actually changes. The Python source's per-send
// SimpleUDPClient() construction (original_source/osc_sender.py:get_clients)
// is replaced with a cached pool per spec.md §9's pooled-client design.
type Pool struct {
	mu        sync.Mutex
	log       *obs.Logger
	hosts     []string
	port      int
	clients   []*osc.Client
	ghostHost string
	ghostPort int
	ghost     *osc.Client
}

// NewPool constructs an empty pool; clients are built lazily on first use.
func NewPool() *Pool {
	return &Pool{log: obs.New("dispatch")}
}

// clientsForLocked returns the pooled host clients, rebuilding them if hosts/port
// changed since the last call. Caller must hold p.mu.
func (p *Pool) clientsForLocked(hosts []string, port int) []*osc.Client {
	if !sameHosts(p.hosts, hosts) || p.port != port {
		clients := make([]*osc.Client, len(hosts))
		for i, h := range hosts {
			clients[i] = osc.NewClient(h, port)
		}
		p.clients = clients
		p.hosts = append([]string(nil), hosts...)
		p.port = port
	}
	return p.clients
}

func (p *Pool) ghostClientLocked(host string, port int) *osc.Client {
	if p.ghost == nil || p.ghostHost != host || p.ghostPort != port {
		p.ghost = osc.NewClient(host, port)
		p.ghostHost = host
		p.ghostPort = port
	}
	return p.ghost
}

// Client returns the pooled client for (host, port) when it is one of the
// dispatch hosts; for any other pair it builds a new client that is not
// cached. Used by the Homing Coordinator to address a single endpoint
// directly without going through the sharded Dispatch path.
func (p *Pool) Client(host string, port int) *osc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.hosts {
		if h == host && p.port == port {
			return p.clients[i]
		}
	}
	return osc.NewClient(host, port)
}

func sameHosts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dispatcher shards filtered frames across host endpoints, satisfying
// engine.Dispatcher.
type Dispatcher struct {
	pool  *Pool
	store *params.Store
	log   *obs.Logger
}

// New constructs a Dispatcher backed by a shared client Pool.
func New(pool *Pool, store *params.Store) *Dispatcher {
	return &Dispatcher{pool: pool, store: store, log: obs.New("dispatch")}
}

// Dispatch implements spec.md §4.6 over the current snapshot's endpoint
// configuration. Per-host send failures are logged and do not abort the
// frame; remaining hosts are still dispatched.
func (d *Dispatcher) Dispatch(vals []int) {
	snap := d.store.Snapshot()
	g := snap.Global

	mapped := applyMapping(vals, g.MotorPositionMapping)

	if g.SendClients {
		d.sendToHosts(mapped, g)
	}
	if g.SendGhost && g.GhostHost != "" {
		d.sendGhost(mapped, g)
	}
}

// applyMapping implements mapped[i] = v[motor_position_mapping[i]], falling
// back to the identity when the mapping is absent, short, or out of range
// for a given index (spec.md §4.6 step 1: "identity by default").
func applyMapping(v []int, mapping []int) []int {
	out := make([]int, len(v))
	for i := range out {
		src := i
		if i < len(mapping) {
			m := mapping[i]
			if m >= 0 && m < len(v) {
				src = m
			}
		}
		out[i] = v[src]
	}
	return out
}

func (d *Dispatcher) sendToHosts(mapped []int, g params.Global) {
	d.pool.mu.Lock()
	clients := d.pool.clientsForLocked(g.Hosts, g.Port)
	d.pool.mu.Unlock()

	k := g.ValsPerHost
	if k <= 0 {
		k = 1
	}
	for h, client := range clients {
		lo := h * k
		if lo >= len(mapped) {
			lo = len(mapped)
		}
		hi := lo + k
		if hi > len(mapped) {
			hi = len(mapped)
		}
		slice := append([]int(nil), mapped[lo:hi]...)
		for len(slice) < k {
			slice = append(slice, g.StrokeOffset)
		}
		msg := osc.NewMessage("/setTargetPositionList")
		for _, v := range slice {
			msg.Append(int32(v))
		}
		if err := client.Send(msg); err != nil {
			host := ""
			if h < len(g.Hosts) {
				host = g.Hosts[h]
			}
			d.log.Warnf("send error to %s: %v", host, err)
		}
	}
}

func (d *Dispatcher) sendGhost(mapped []int, g params.Global) {
	d.pool.mu.Lock()
	client := d.pool.ghostClientLocked(g.GhostHost, g.GhostPort)
	d.pool.mu.Unlock()

	msg := osc.NewMessage("/setTargetPositionList")
	for _, v := range mapped {
		msg.Append(int32(v))
	}
	if err := client.Send(msg); err != nil {
		d.log.Warnf("send error to ghost %s: %v", g.GhostHost, err)
	}
}

// Endpoint identifies a single physical channel by host index and the
// 1-based local id controllers expect, per spec.md §4.7's
// (endpoint, local_id) = ((motor_id-1)/K, ((motor_id-1) mod K)+1) mapping.
type Endpoint struct {
	HostIndex int
	LocalID   int
}

// ResolveMotor computes the (host, local_id) pair for a 1-based motor_id.
func ResolveMotor(motorID, valsPerHost int) (Endpoint, error) {
	if valsPerHost <= 0 {
		return Endpoint{}, fmt.Errorf("dispatch: vals_per_host must be positive")
	}
	idx := motorID - 1
	if idx < 0 {
		return Endpoint{}, fmt.Errorf("dispatch: motor_id %d out of range", motorID)
	}
	return Endpoint{HostIndex: idx / valsPerHost, LocalID: (idx % valsPerHost) + 1}, nil
}
