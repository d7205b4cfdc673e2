package upstream

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/solenoid-array/helixdrive/internal/obs"
)

// Listener is the inbound control listener (spec.md §4.8, port 10000 by
// default). Addresses are dynamic parameter names, not a fixed registrable
// set, so dispatch is a custom osc.Dispatcher rather than go-osc's
// StandardDispatcher address-handler map.
type Listener struct {
	server *osc.Server
}

// NewListener binds an inbound listener on port, routing every decoded
// packet to router, grounded on original_source/osc_listener.py's
// MyUDPHandler.handle.
func NewListener(port int, router *Router) *Listener {
	return &Listener{
		server: &osc.Server{
			Addr:       fmt.Sprintf("0.0.0.0:%d", port),
			Dispatcher: &routerDispatcher{router: router, log: obs.New("upstream.listener")},
		},
	}
}

// ListenAndServe blocks serving inbound OSC packets until the socket errors
// or is closed.
func (l *Listener) ListenAndServe() error {
	return l.server.ListenAndServe()
}

type routerDispatcher struct {
	router *Router
	log    *obs.Logger
}

// Dispatch implements osc.Dispatcher, routing a single decoded packet,
// grounded on osc_listener.py's is_bundle branch.
func (d *routerDispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.router.HandleMessage(p.Address, p.Arguments)
	case *osc.Bundle:
		items := make([]Item, 0, len(p.Messages))
		for _, m := range p.Messages {
			items = append(items, Item{Address: m.Address, Args: m.Arguments})
		}
		d.router.HandleBundle(items)
	default:
		d.log.Warnf("unrecognized OSC packet type %T", packet)
	}
}
