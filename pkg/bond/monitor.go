package bond

import (
	"context"
	"time"

	"github.com/openshift/bondmon/pkg/log"
	"github.com/openshift/bondmon/pkg/metrics"
)

// carrierMonitor polls carrier on every member each MIIMon. A tick that
// overruns the interval makes the ticker drop the ticks it missed.
func (g *Group) carrierMonitor(ctx context.Context) {
	defer g.wg.Done()
	log.Log.Debug("carrier monitoring started", "bond", g.name, "interval", g.params.MIIMon)

	ticker := time.NewTicker(g.params.MIIMon)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.carrierTick(ctx)
		case <-ctx.Done():
			log.Log.Debug("ctx cancelled", "routine", "carrier", "bond", g.name)
			return
		}
	}
}

// carrierTick runs one carrier poll over all members. The carrier is read
// without holding any lock; the transition is then applied to that one member
// under the membership lock.
func (g *Group) carrierTick(ctx context.Context) {
	up, down := g.params.upTicks(), g.params.downTicks()
	now := g.clock.Now()

	for _, id := range g.reg.IDs() {
		if ctx.Err() != nil {
			return
		}

		rctx, cancel := context.WithTimeout(ctx, g.params.MIIMon)
		carrier, err := g.dev.ReadCarrier(rctx, int(id))
		cancel()

		var (
			event         Event
			before, after LinkState
			skipped       bool
		)
		found := g.reg.update(id, func(m *Member) {
			before = m.link
			after = m.link
			if err != nil {
				if !m.readFailed() {
					skipped = true
					return
				}
				carrier = false
			} else {
				m.readFailures = 0
			}
			if carrier {
				m.lastLiveness = now
			}
			event = m.carrierStep(carrier, up, down)
			after = m.link
		})
		if !found {
			// Detached while we were reading it.
			continue
		}

		if err != nil {
			metrics.SkippedReads.WithLabelValues(g.name, g.memberName(id)).Inc()
			log.Log.Debug("failed to read carrier", "bond", g.name, "member", g.memberName(id), "skipped", skipped, "error", err)
		}
		g.logDeferral(id, before, after)

		if event != NoEvent {
			g.transition(ctx, id, event)
		}
	}
}

// logDeferral reports entering or leaving a confirmation window.
func (g *Group) logDeferral(id MemberID, before, after LinkState) {
	if before == after {
		return
	}
	name := g.memberName(id)
	switch {
	case after == Back:
		log.Log.Info("link status up, enabling after updelay", "bond", g.name, "member", name, "updelay", g.params.UpDelay)
	case after == Failing:
		log.Log.Info("link status down, disabling after downdelay", "bond", g.name, "member", name, "downdelay", g.params.DownDelay)
	case before == Back && after == Down:
		log.Log.Info("link status went back down, cancelling updelay", "bond", g.name, "member", name)
	case before == Failing && after == Up:
		log.Log.Info("link status came back up, cancelling downdelay", "bond", g.name, "member", name)
	}
}

// arpMonitor runs the ARP probe each ARPInterval.
func (g *Group) arpMonitor(ctx context.Context) {
	defer g.wg.Done()
	log.Log.Debug("ARP monitoring started", "bond", g.name, "interval", g.params.ARPInterval, "validate", g.params.ARPValidate)

	ticker := time.NewTicker(g.params.ARPInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.arpTick(ctx)
		case <-ctx.Done():
			log.Log.Debug("ctx cancelled", "routine", "arp", "bond", g.name)
			return
		}
	}
}

// arpTick collects the replies seen since the previous tick, sends the next
// round of probes and applies the verdict to each member.
//
// While no member carries traffic, one member outside the arp_validate scope
// is probed as well, taking turns across ticks, so that a bond whose
// validated members are all down can still find a way back.
func (g *Group) arpTick(ctx context.Context) {
	now := g.clock.Now()
	targets := g.arpTargets()
	if len(targets) == 0 {
		return
	}

	v := g.reg.Snapshot()
	rescue := None
	if len(v.Eligible) == 0 {
		rescue = g.nextRescue(v.Members)
	}

	for _, m := range v.Members {
		if ctx.Err() != nil {
			return
		}

		seen := false
		for _, t := range targets {
			if g.dev.ObserveLiveness(int(m.ID), t) {
				seen = true
			}
		}

		probing := g.validates(m.Activity) || m.ID == rescue
		if probing {
			for _, t := range targets {
				pctx, cancel := context.WithTimeout(ctx, g.params.ARPInterval)
				err := g.dev.SendProbe(pctx, int(m.ID), t)
				cancel()
				if err != nil {
					metrics.SkippedReads.WithLabelValues(g.name, m.Name).Inc()
					log.Log.Debug("failed to send ARP probe", "bond", g.name, "member", m.Name, "target", t, "error", err)
				}
			}
		}

		var event Event
		if !g.reg.update(m.ID, func(mm *Member) {
			entering := probing && !mm.inScope
			mm.inScope = probing
			if !seen && !probing {
				return
			}
			if entering && !seen {
				// Silence before the first request is not a missed reply.
				mm.lastLiveness = now
			}
			event = mm.arpStep(seen, now, g.params.ARPInterval)
		}) {
			if probing {
				// Detached during the send, which opened a listener again.
				g.dev.Release(int(m.ID))
			}
			continue
		}
		if event != NoEvent {
			g.transition(ctx, m.ID, event)
		}
	}
}

// nextRescue picks the next member outside the arp_validate scope that is not
// up, rotating through them on successive calls.
func (g *Group) nextRescue(members []MemberStatus) MemberID {
	var candidates []MemberID
	for _, m := range members {
		if m.Link != Up && !g.validates(m.Activity) {
			candidates = append(candidates, m.ID)
		}
	}
	if len(candidates) == 0 {
		return None
	}
	id := candidates[g.rescueNext%len(candidates)]
	g.rescueNext++
	return id
}

// validates reports whether members in state s send probes and are taken
// down when replies stop.
func (g *Group) validates(s ActivityState) bool {
	if g.params.ARPValidate == ValidateNone {
		return true
	}
	return g.params.ARPValidate.validates(s)
}

// transition records a confirmed link change and runs the election once.
func (g *Group) transition(ctx context.Context, id MemberID, event Event) {
	name := g.memberName(id)
	metrics.Transitions.WithLabelValues(g.name, name, event.String()).Inc()
	if event == LinkDown {
		log.Log.Warn("member link is down", "bond", g.name, "member", name)
	} else {
		log.Log.Info("member link is up", "bond", g.name, "member", name)
	}

	g.strategy.apply(ctx, g, g.reg.reelect(id, event))
}
