package upstream

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/sync/errgroup"

	"github.com/solenoid-array/helixdrive/internal/obs"
)

// Sink is the subset of *homing.Coordinator the response receiver populates,
// kept narrow to avoid a direct dependency on internal/homing here too.
type Sink interface {
	NotifyBooted(endpoint string)
	SetPosition(motorID, position int)
	SetHomingStatus(motorID, status int)
}

// Receiver runs one OSC server per recv_ports entry, decoding /booted,
// /position, and /homingStatus responses per spec.md §4.7/§6, grounded on
// original_source/osc_receiver.py's osc_receive_handler_factory.
type Receiver struct {
	servers []*osc.Server
}

// NewReceiver binds one server per port in ports. valsPerHost is the K used
// in motor_id = local_id + port_index*K, matching osc_receiver.py's use of
// VALS_PER_HOST (the same setting the dispatcher shards by).
func NewReceiver(ports []int, valsPerHost int, sink Sink) *Receiver {
	servers := make([]*osc.Server, len(ports))
	for i, port := range ports {
		servers[i] = &osc.Server{
			Addr: fmt.Sprintf("0.0.0.0:%d", port),
			Dispatcher: &receiverDispatcher{
				sink:        sink,
				port:        port,
				portIdx:     i,
				valsPerHost: valsPerHost,
				log:         obs.New("upstream.receiver"),
			},
		}
	}
	return &Receiver{servers: servers}
}

// ListenAndServe runs every port's server concurrently and blocks until all
// of them have returned, then reports the first error; a server that fails
// does not stop the others.
func (r *Receiver) ListenAndServe() error {
	var eg errgroup.Group
	for _, s := range r.servers {
		s := s
		eg.Go(func() error { return s.ListenAndServe() })
	}
	return eg.Wait()
}

type receiverDispatcher struct {
	sink        Sink
	port        int
	portIdx     int
	valsPerHost int
	log         *obs.Logger
}

func (d *receiverDispatcher) Dispatch(packet osc.Packet) {
	msg, ok := packet.(*osc.Message)
	if !ok {
		d.log.Warnf("ignoring non-message packet %T on recv port %d", packet, d.port)
		return
	}
	switch msg.Address {
	case "/booted":
		d.sink.NotifyBooted(fmt.Sprintf("recv-port:%d", d.port))
	case "/position":
		if len(msg.Arguments) < 2 {
			return
		}
		localID := toInt(msg.Arguments[0])
		motorID := localID + d.portIdx*d.valsPerHost
		d.sink.SetPosition(motorID, toInt(msg.Arguments[1]))
	case "/homingStatus":
		if len(msg.Arguments) < 2 {
			return
		}
		localID := toInt(msg.Arguments[0])
		motorID := localID + d.portIdx*d.valsPerHost
		d.sink.SetHomingStatus(motorID, toInt(msg.Arguments[1]))
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float32:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
