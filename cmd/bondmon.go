package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vishvananda/netlink"

	"github.com/openshift/bondmon/pkg/bond"
	"github.com/openshift/bondmon/pkg/config"
	"github.com/openshift/bondmon/pkg/device"
	"github.com/openshift/bondmon/pkg/log"
	"github.com/openshift/bondmon/pkg/metrics"
	"github.com/openshift/bondmon/pkg/subscribe"
)

func main() {
	log.Log.Info("Starting application")

	// Capture SIGINT and SIGTERM
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Read config file.
	conf, err := config.ReadConfig()
	if err != nil {
		log.Log.Error("failed to read config file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Queue to store link events.
	queue := make(chan int, 100)

	var wg sync.WaitGroup

	nl := &netlink.Handle{}
	mgr := bond.NewManager(device.Factory(nl))

	// Create bonds.
	for _, b := range conf.Bonds {
		p, err := b.Params()
		if err != nil {
			log.Log.Error("invalid bond configuration", "bond", b.Name, "error", err)
			continue
		}
		if err := device.Inspect(nl, b.Name, p.Mode); err != nil {
			log.Log.Warn("bond does not match configuration", "bond", b.Name, "error", err)
		}

		h, err := mgr.CreateGroup(ctx, b.Name, p)
		if err != nil {
			log.Log.Error("failed to create bond", "bond", b.Name, "error", err)
			continue
		}
		for _, ref := range device.Resolve(nl, b.Name, b.Members) {
			if err := mgr.AttachMember(h, ref); err != nil {
				log.Log.Error("failed to attach member", "bond", b.Name, "member", ref.Name, "error", err)
			}
		}
	}
	if len(mgr.Handles()) == 0 {
		log.Log.Error("no bonds could be monitored")
		cancel()
		os.Exit(1)
	}

	// Start metrics server.
	if conf.MetricsAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Run(ctx, conf.MetricsAddress); err != nil {
				log.Log.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Detach members whose link disappears.
	mgr.Watch(ctx, queue, func(index int) bool { return device.LinkGone(nl, index) }, &wg)

	// Start subscription to link changes.
	err = subscribe.Start(ctx, mgr.Tracks, queue, &wg)
	if err != nil {
		log.Log.Error("failed to subscribe to link changes", "error", err)
	}

	<-c
	cancel()
	mgr.DestroyAll()
	wg.Wait()
}
