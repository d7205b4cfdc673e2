package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solenoid-array/helixdrive/internal/dispatch"
	"github.com/solenoid-array/helixdrive/internal/engine"
	"github.com/solenoid-array/helixdrive/internal/homing"
	"github.com/solenoid-array/helixdrive/internal/obs"
	"github.com/solenoid-array/helixdrive/internal/params"
	"github.com/solenoid-array/helixdrive/internal/upstream"
)

func main() {
	var (
		paramsPath = flag.String("params", "params.json", "path to the persisted parameter document")
		logLevel   = flag.String("log-level", "info", "debug|info|warn|error")
		notifyHost = flag.String("notify-host", "127.0.0.1", "outbound notification host (spec.md §6)")
		listenPort = flag.Int("listen-port", 10000, "inbound control port")
		notifyPort = flag.Int("notify-port", 10001, "outbound notification port")
	)
	flag.Parse()
	obs.SetLevel(obs.ParseLevel(*logLevel))

	// WEB_HOST/WEB_PORT address the external UI collaborator; this process
	// never binds to them, only logs them for operator visibility.
	if webHost := os.Getenv("WEB_HOST"); webHost != "" {
		log.Printf("WEB_HOST=%s WEB_PORT=%s (external UI, not served by this process)", webHost, os.Getenv("WEB_PORT"))
	}

	store := params.NewStore(*paramsPath)
	if err := store.Load(); err != nil {
		log.Fatalf("helixdrived: load params: %v", err)
	}

	pool := dispatch.NewPool()
	disp := dispatch.New(pool, store)
	eng := engine.New(store, disp)
	coord := homing.New(store, pool, eng, disp)
	notifier := upstream.NewOSCNotifier(*notifyHost, *notifyPort)
	router := upstream.New(store, eng, coord, notifier)

	listener := upstream.NewListener(*listenPort, router)
	snap := store.Snapshot()
	receiver := upstream.NewReceiver(snap.Global.RecvPorts, snap.Global.ValsPerHost, coord)

	errC := make(chan error, 2)
	go func() { errC <- listener.ListenAndServe() }()
	go func() { errC <- receiver.ListenAndServe() }()

	eng.Start()
	log.Printf("helixdrived: listening on :%d, notifying %s:%d, %d recv ports",
		*listenPort, *notifyHost, *notifyPort, len(snap.Global.RecvPorts))

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		log.Printf("helixdrived: received %s, shutting down", sig)
	case err := <-errC:
		log.Printf("helixdrived: transport error: %v", err)
	}

	if !eng.Stop(2 * time.Second) {
		log.Printf("helixdrived: engine did not stop within 2s timeout")
	}
}
