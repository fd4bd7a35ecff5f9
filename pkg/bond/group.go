package bond

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strconv"
	"sync"

	"github.com/openshift/bondmon/pkg/clock"
	"github.com/openshift/bondmon/pkg/interfaces"
	"github.com/openshift/bondmon/pkg/log"
	"github.com/openshift/bondmon/pkg/metrics"
)

// Group is a bond: its members, its monitoring parameters and the probe
// driving them.
type Group struct {
	name     string
	params   Params
	dev      interfaces.Device
	clock    clock.Clock
	strategy strategy
	reg      *Registry

	targetsMu sync.RWMutex
	targets   []netip.Addr

	namesMu sync.RWMutex
	names   map[MemberID]string

	// rescueNext rotates the out-of-scope member probed while nothing
	// carries traffic. Owned by the ARP goroutine.
	rescueNext int

	// runMu is held for reading by membership changes and for writing by
	// Start and Destroy. No member is added once Destroy has begun.
	runMu     sync.RWMutex
	cancel    context.CancelFunc
	destroyed bool
	wg        sync.WaitGroup
}

// Option customizes a Group.
type Option func(*Group)

// WithClock sets the time source used for liveness stamps.
func WithClock(c clock.Clock) Option {
	return func(g *Group) {
		g.clock = c
	}
}

// Status describes a group at one instant.
type Status struct {
	Name     string
	Mode     Mode
	Active   MemberID
	Eligible []MemberID
	Members  []MemberStatus
}

// NewGroup validates p and returns a group without members. Monitoring starts with Start.
func NewGroup(name string, p Params, dev interfaces.Device, opts ...Option) (*Group, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bond %s: %w", name, err)
	}
	if p.Primary != "" && !p.Mode.UsesPrimary() {
		log.Log.Warn("primary is ignored in this mode", "bond", name, "mode", p.Mode, "primary", p.Primary)
		p.Primary = ""
	}

	g := &Group{
		name:     name,
		params:   p,
		dev:      dev,
		clock:    clock.Real{},
		strategy: strategyFor(p.Mode),
		reg:      NewRegistry(p.Mode),
		targets:  slices.Clone(p.ARPTargets),
		names:    make(map[MemberID]string),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Name returns the bond name.
func (g *Group) Name() string {
	return g.name
}

// Params returns the monitoring parameters, including the current ARP targets.
func (g *Group) Params() Params {
	p := g.params
	p.ARPTargets = g.arpTargets()
	return p
}

// Start launches the probe selected by the parameters. Only one probe ever
// runs for a group.
func (g *Group) Start(ctx context.Context) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.cancel != nil || g.destroyed {
		return
	}
	ctx, g.cancel = context.WithCancel(ctx)

	switch {
	case g.params.arpMonitoring():
		now := g.clock.Now()
		for _, id := range g.reg.IDs() {
			g.reg.update(id, func(m *Member) {
				m.lastLiveness = now
			})
		}
		g.wg.Add(1)
		go g.arpMonitor(ctx)
	case g.params.carrierMonitoring():
		g.wg.Add(1)
		go g.carrierMonitor(ctx)
	default:
		log.Log.Warn("link monitoring is disabled", "bond", g.name)
	}
}

// Destroy stops the probe, waits for its current tick and detaches every
// member. The group cannot be used afterwards.
func (g *Group) Destroy() {
	g.runMu.Lock()
	if g.destroyed {
		g.runMu.Unlock()
		return
	}
	g.destroyed = true
	cancel := g.cancel
	g.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()

	for _, id := range g.reg.IDs() {
		if err := g.detach(id); err != nil {
			log.Log.Warn("failed to detach member", "bond", g.name, "member", g.memberName(id), "error", err)
		}
	}

	if c, ok := g.dev.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Log.Warn("failed to close device", "bond", g.name, "error", err)
		}
	}
	metrics.Forget(g.name)
	log.Log.Info("bond destroyed", "bond", g.name)
}

// enter takes the lifecycle lock for reading. It fails once the group is
// destroyed; on success the caller releases the lock with leave.
func (g *Group) enter() error {
	g.runMu.RLock()
	if g.destroyed {
		g.runMu.RUnlock()
		return fmt.Errorf("bond %s: %w", g.name, ErrNotFound)
	}
	return nil
}

func (g *Group) leave() {
	g.runMu.RUnlock()
}

// Attach adds a member to the end of the ring and runs the election.
func (g *Group) Attach(ref DeviceRef) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()

	if ref.Index <= 0 {
		return fmt.Errorf("bond %s: invalid interface index %d for %q", g.name, ref.Index, ref.Name)
	}

	ctx := context.Background()
	m := NewMember(ref, g.initialState(ctx, ref), g.clock.Now())
	m.Primary = g.params.Primary != "" && ref.Name == g.params.Primary

	if err := g.reg.Attach(m); err != nil {
		return fmt.Errorf("bond %s: %w", g.name, err)
	}
	g.remember(m.ID, m.Name)
	log.Log.Info("member attached", "bond", g.name, "member", m.Name, "index", m.ID, "link", m.link, "primary", m.Primary)

	g.strategy.apply(ctx, g, g.reg.reelect(m.ID, Attached))
	return nil
}

// initialState decides the link state of a new member.
func (g *Group) initialState(ctx context.Context, ref DeviceRef) LinkState {
	if !g.params.carrierMonitoring() {
		return Up
	}
	rctx, cancel := context.WithTimeout(ctx, g.params.MIIMon)
	defer cancel()
	carrier, err := g.dev.ReadCarrier(rctx, ref.Index)
	if err != nil {
		log.Log.Warn("failed to read carrier of new member", "bond", g.name, "member", ref.Name, "error", err)
		return Down
	}
	if carrier {
		return Up
	}
	return Down
}

// Detach removes a member. When it was active the election has already run
// when Detach returns.
func (g *Group) Detach(id MemberID) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()

	return g.detach(id)
}

func (g *Group) detach(id MemberID) error {
	m, out, err := g.reg.Detach(id)
	if err != nil {
		return fmt.Errorf("bond %s: %w", g.name, err)
	}
	log.Log.Info("member detached", "bond", g.name, "member", m.Name, "index", m.ID)

	g.strategy.apply(context.Background(), g, out)
	g.forget(id)
	g.dev.Release(int(id))
	return nil
}

// SetActive makes id the active member. Only the active-backup family has one.
func (g *Group) SetActive(id MemberID) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()

	out, err := g.reg.SetActive(id)
	if err != nil {
		return fmt.Errorf("bond %s: %w", g.name, err)
	}
	g.strategy.apply(context.Background(), g, out)
	return nil
}

// Active returns the active member.
func (g *Group) Active() (MemberID, bool) {
	return g.reg.Active()
}

// Eligible returns the members allowed to carry traffic.
func (g *Group) Eligible() []MemberID {
	return g.reg.Eligible()
}

// Status returns a consistent view of the group.
func (g *Group) Status() Status {
	v := g.reg.Snapshot()
	return Status{
		Name:     g.name,
		Mode:     g.params.Mode,
		Active:   v.Active,
		Eligible: v.Eligible,
		Members:  v.Members,
	}
}

// AddARPTarget adds a target to the ARP probe.
func (g *Group) AddARPTarget(addr netip.Addr) error {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()

	targets := append(slices.Clone(g.targets), addr)
	if err := validateTargets(targets); err != nil {
		return fmt.Errorf("bond %s: %w", g.name, err)
	}
	g.targets = targets
	log.Log.Info("ARP target added", "bond", g.name, "target", addr)
	return nil
}

// RemoveARPTarget removes a target from the ARP probe. The last target of an
// ARP monitored group cannot be removed.
func (g *Group) RemoveARPTarget(addr netip.Addr) error {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()

	i := slices.Index(g.targets, addr)
	if i < 0 {
		return fmt.Errorf("bond %s: ARP target %s: %w", g.name, addr, ErrNotFound)
	}
	if g.params.arpMonitoring() && len(g.targets) == 1 {
		return fmt.Errorf("bond %s: %w", g.name, &ConfigurationError{Field: "arpTargets", Reason: "ARP monitoring requires at least one target"})
	}
	g.targets = slices.Delete(slices.Clone(g.targets), i, i+1)
	log.Log.Info("ARP target removed", "bond", g.name, "target", addr)
	return nil
}

// Tracks reports whether the link with index is a member.
func (g *Group) Tracks(index int) bool {
	g.namesMu.RLock()
	defer g.namesMu.RUnlock()
	_, ok := g.names[MemberID(index)]
	return ok
}

func (g *Group) arpTargets() []netip.Addr {
	g.targetsMu.RLock()
	defer g.targetsMu.RUnlock()
	return slices.Clone(g.targets)
}

func (g *Group) remember(id MemberID, name string) {
	g.namesMu.Lock()
	defer g.namesMu.Unlock()
	g.names[id] = name
}

func (g *Group) forget(id MemberID) {
	g.namesMu.Lock()
	defer g.namesMu.Unlock()
	delete(g.names, id)
}

// memberName returns the name of a member, falling back to its index.
func (g *Group) memberName(id MemberID) string {
	if id == None {
		return "none"
	}
	g.namesMu.RLock()
	defer g.namesMu.RUnlock()
	if name, ok := g.names[id]; ok {
		return name
	}
	return strconv.Itoa(int(id))
}

func (g *Group) memberNames(ids []MemberID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, g.memberName(id))
	}
	return names
}
