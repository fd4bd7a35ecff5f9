package bond

import (
	"context"
	"time"

	"github.com/openshift/bondmon/pkg/interfaces"
	"github.com/openshift/bondmon/pkg/log"
	"github.com/openshift/bondmon/pkg/metrics"
)

// notifyTimeout bounds a single call to the device when the active member changes.
const notifyTimeout = 2 * time.Second

// strategy applies the side effects of an election for one family of modes.
// Implementations hold no state.
type strategy interface {
	apply(ctx context.Context, g *Group, out Outcome)
}

func strategyFor(m Mode) strategy {
	switch m {
	case ActiveBackup:
		return activeBackup{}
	case TLB, ALB:
		return transmitBalancing{}
	case LACP:
		return distributing{lacp: true}
	default:
		return distributing{}
	}
}

// activeBackup moves addresses according to fail_over_mac.
type activeBackup struct{}

func (activeBackup) apply(ctx context.Context, g *Group, out Outcome) {
	if !out.Changed {
		return
	}
	move := interfaces.AddressKeep
	switch g.params.FailOverMac {
	case FailOverMacActive:
		move = interfaces.AddressBondFollows
	case FailOverMacFollow:
		move = interfaces.AddressMemberFollows
	}
	takeover(ctx, g, out, move)
}

// transmitBalancing swaps addresses between the old and new active member so
// the bond keeps receiving on the address peers have learned.
type transmitBalancing struct{}

func (transmitBalancing) apply(ctx context.Context, g *Group, out Outcome) {
	if !out.Changed {
		return
	}
	takeover(ctx, g, out, interfaces.AddressSwap)
}

// distributing publishes the eligible set. There is no address takeover.
type distributing struct {
	lacp bool
}

func (d distributing) apply(_ context.Context, g *Group, out Outcome) {
	if !out.EligibleChanged {
		return
	}
	metrics.Elections.WithLabelValues(g.name, g.params.Mode.String()).Inc()
	metrics.EligibleMembers.WithLabelValues(g.name).Set(float64(len(out.Eligible)))

	if len(out.Eligible) == 0 {
		log.Log.Warn("no member is able to carry traffic", "bond", g.name, "mode", g.params.Mode)
		return
	}
	log.Log.Info("eligible members changed", "bond", g.name, "mode", g.params.Mode, "members", g.memberNames(out.Eligible), "lacp", d.lacp)
}

func takeover(ctx context.Context, g *Group, out Outcome, move interfaces.AddressMove) {
	metrics.Elections.WithLabelValues(g.name, g.params.Mode.String()).Inc()
	metrics.ActiveMember.WithLabelValues(g.name).Set(float64(out.New))
	metrics.EligibleMembers.WithLabelValues(g.name).Set(float64(len(out.Eligible)))

	if out.New == None {
		log.Log.Warn("now running without any active member", "bond", g.name, "previous", g.memberName(out.Old))
	} else {
		log.Log.Info("active member changed", "bond", g.name, "previous", g.memberName(out.Old), "active", g.memberName(out.New), "event", out.Event, "addresses", move)
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := g.dev.NotifyActiveChanged(nctx, int(out.Old), int(out.New), move); err != nil {
		log.Log.Error("failed to notify active member change", "bond", g.name, "active", g.memberName(out.New), "error", err)
	}
}
