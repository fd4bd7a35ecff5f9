package subscribe

import (
	"context"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/openshift/bondmon/pkg/log"
)

// Start subscribes to link changes and queues the index of every link for
// which watched returns true.
func Start(ctx context.Context, watched func(index int) bool, queue chan<- int, wg *sync.WaitGroup) error {
	log.Log.Debug("subscribing to link changes")
	update := make(chan netlink.LinkUpdate)

	// LinkSubscribeWithOptions accepts an error callback which could be used to resubscribe.
	err := netlink.LinkSubscribe(update, ctx.Done())
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case u, ok := <-update:
				if !ok {
					log.Log.Warn("link subscription closed")
					return
				}
				index := int(u.Index)
				log.Log.Debug("event received", "index", index)
				if !watched(index) {
					break
				}
				select {
				case queue <- index:
					log.Log.Debug("index added to queue", "index", index)
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				log.Log.Debug("ctx cancelled", "routine", "subscribe")
				return
			}
		}
	}()

	return nil
}
