package bond

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/openshift/bondmon/pkg/interfaces"
	"github.com/openshift/bondmon/pkg/log"
)

// Handle names a group owned by a Manager.
type Handle string

// DeviceFactory builds the device a new group talks to.
type DeviceFactory func(name string, p Params) (interfaces.Device, error)

// Manager is the administrative entry point: it creates, looks up and destroys groups.
type Manager struct {
	factory DeviceFactory
	opts    []Option

	mu     sync.RWMutex
	groups map[Handle]*Group
}

// NewManager returns a manager building devices with factory. opts apply to every group.
func NewManager(factory DeviceFactory, opts ...Option) *Manager {
	return &Manager{
		factory: factory,
		opts:    opts,
		groups:  make(map[Handle]*Group),
	}
}

// CreateGroup validates p, creates the group and starts its probe.
func (m *Manager) CreateGroup(ctx context.Context, name string, p Params) (Handle, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("bond %s: %w", name, err)
	}

	h := Handle(name)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[h]; ok {
		return "", fmt.Errorf("bond %s: %w", name, ErrGroupExists)
	}

	dev, err := m.factory(name, p)
	if err != nil {
		return "", fmt.Errorf("bond %s: failed to open device: %w", name, err)
	}
	g, err := NewGroup(name, p, dev, m.opts...)
	if err != nil {
		return "", err
	}
	g.Start(ctx)
	m.groups[h] = g

	log.Log.Info("bond created", "bond", name, "mode", p.Mode, "miimon", p.MIIMon, "arpInterval", p.ARPInterval, "useCarrier", p.UseCarrier)
	return h, nil
}

// DestroyGroup stops the group's probe and detaches all its members.
func (m *Manager) DestroyGroup(h Handle) error {
	m.mu.Lock()
	g, ok := m.groups[h]
	delete(m.groups, h)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("bond %s: %w", h, ErrNotFound)
	}
	g.Destroy()
	return nil
}

// DestroyAll destroys every group.
func (m *Manager) DestroyAll() {
	for _, h := range m.Handles() {
		if err := m.DestroyGroup(h); err != nil && !errors.Is(err, ErrNotFound) {
			log.Log.Error("failed to destroy bond", "bond", h, "error", err)
		}
	}
}

// Group returns the group behind h.
func (m *Manager) Group(h Handle) (*Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[h]
	if !ok {
		return nil, fmt.Errorf("bond %s: %w", h, ErrNotFound)
	}
	return g, nil
}

// Handles returns the handles of all groups, sorted.
func (m *Manager) Handles() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hs := make([]Handle, 0, len(m.groups))
	for h := range m.groups {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// AttachMember adds a link to a group.
func (m *Manager) AttachMember(h Handle, ref DeviceRef) error {
	g, err := m.Group(h)
	if err != nil {
		return err
	}
	return g.Attach(ref)
}

// DetachMember removes a link from a group.
func (m *Manager) DetachMember(h Handle, index int) error {
	g, err := m.Group(h)
	if err != nil {
		return err
	}
	return g.Detach(MemberID(index))
}

// GetStatus returns the members and the active member of a group.
func (m *Manager) GetStatus(h Handle) (Status, error) {
	g, err := m.Group(h)
	if err != nil {
		return Status{}, err
	}
	return g.Status(), nil
}

// SetActive forces the active member of a group.
func (m *Manager) SetActive(h Handle, index int) error {
	g, err := m.Group(h)
	if err != nil {
		return err
	}
	return g.SetActive(MemberID(index))
}

// AddARPTarget adds an ARP target to a group.
func (m *Manager) AddARPTarget(h Handle, addr netip.Addr) error {
	g, err := m.Group(h)
	if err != nil {
		return err
	}
	return g.AddARPTarget(addr)
}

// RemoveARPTarget removes an ARP target from a group.
func (m *Manager) RemoveARPTarget(h Handle, addr netip.Addr) error {
	g, err := m.Group(h)
	if err != nil {
		return err
	}
	return g.RemoveARPTarget(addr)
}

// Tracks reports whether any group has the link with index as a member.
func (m *Manager) Tracks(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.groups {
		if g.Tracks(index) {
			return true
		}
	}
	return false
}

// Watch consumes link indexes from queue and detaches the member from every
// group once gone reports that its link no longer exists.
func (m *Manager) Watch(ctx context.Context, queue <-chan int, gone func(int) bool, wg *sync.WaitGroup) {
	log.Log.Debug("link removal watch started")

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case index := <-queue:
				log.Log.Debug("processing event", "index", index)
				if !gone(index) {
					break
				}
				m.detachEverywhere(index)
			case <-ctx.Done():
				log.Log.Debug("ctx cancelled", "routine", "watch")
				return
			}
		}
	}()
}

func (m *Manager) detachEverywhere(index int) {
	for _, h := range m.Handles() {
		err := m.DetachMember(h, index)
		switch {
		case err == nil:
			log.Log.Info("member link disappeared", "bond", h, "index", index)
		case errors.Is(err, ErrNotFound):
		default:
			log.Log.Error("failed to detach vanished member", "bond", h, "index", index, "error", err)
		}
	}
}
