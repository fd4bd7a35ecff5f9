package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/openshift/bondmon/pkg/interfaces"
	"github.com/openshift/bondmon/pkg/lacp/flags"
	"github.com/openshift/bondmon/pkg/log"
)

// Options tune how a Device judges its members.
type Options struct {
	// LACP requires the 802.3ad port state of actor and partner to be
	// operational before a member counts as having carrier.
	LACP bool
	// LacpFast warns when the partner sends LACPDUs at the slow rate.
	LacpFast bool
}

// Device implements interfaces.Device on top of netlink and raw ARP sockets.
type Device struct {
	bond string
	nl   interfaces.Netlink
	opts Options

	mu       sync.Mutex
	perm     map[int]net.HardwareAddr
	lacpUp   map[int]bool
	probers  map[int]*prober
	closed   bool
	listenFn func(index int) (conn, error)
}

// New returns a device for the bond named bond.
func New(bond string, nl interfaces.Netlink, opts Options) *Device {
	return &Device{
		bond:     bond,
		nl:       nl,
		opts:     opts,
		perm:     make(map[int]net.HardwareAddr),
		lacpUp:   make(map[int]bool),
		probers:  make(map[int]*prober),
		listenFn: listen,
	}
}

// ReadCarrier reports whether the member is administratively up with
// carrier, and in 802.3ad mode whether LACP is operational on it.
func (d *Device) ReadCarrier(ctx context.Context, index int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	link, err := d.nl.LinkByIndex(index)
	if err != nil {
		return false, fmt.Errorf("failed to fetch interface with index %d: %w", index, err)
	}
	attrs := link.Attrs()
	d.rememberAddr(index, attrs.HardwareAddr)

	if attrs.Flags&net.FlagUp == 0 {
		return false, nil
	}
	switch attrs.OperState {
	case netlink.OperUp, netlink.OperUnknown:
	default:
		return false, nil
	}

	if !d.opts.LACP || attrs.Slave == nil {
		return true, nil
	}
	s, ok := attrs.Slave.(*netlink.BondSlave)
	if !ok {
		log.Log.Error("interface does not have BondSlave type on Slave attribute", "interface", attrs.Name)
		return true, nil
	}

	up := flags.IsProtocolUp(s)
	d.logLACP(attrs.Name, index, up, s)
	return up, nil
}

func (d *Device) logLACP(name string, index int, up bool, s *netlink.BondSlave) {
	d.mu.Lock()
	prev, known := d.lacpUp[index]
	d.lacpUp[index] = up
	d.mu.Unlock()

	if !known || prev != up {
		if up {
			log.Log.Info("lacp is up", "interface", name)
		} else {
			log.Log.Info("lacp is down", "interface", name, "actor", flags.Actor(s), "partner", flags.Partner(s))
		}
	}
	if up && d.opts.LacpFast && !flags.IsFastRate(s) {
		log.Log.Warn("partner is using slow lacp rate", "interface", name)
	}
}

// rememberAddr records the first hardware address seen for a member so it
// can be restored after an address takeover.
func (d *Device) rememberAddr(index int, addr net.HardwareAddr) {
	if len(addr) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.perm[index]; !ok {
		d.perm[index] = append(net.HardwareAddr(nil), addr...)
	}
}

func (d *Device) permAddr(index int) net.HardwareAddr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm[index]
}

// NotifyActiveChanged moves hardware addresses after a change of active member.
func (d *Device) NotifyActiveChanged(ctx context.Context, from, to int, move interfaces.AddressMove) error {
	log.Log.Debug("active member changed", "bond", d.bond, "from", from, "to", to, "addresses", move)
	if move == interfaces.AddressKeep || to == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	next, err := d.nl.LinkByIndex(to)
	if err != nil {
		return fmt.Errorf("failed to fetch interface with index %d: %w", to, err)
	}
	d.rememberAddr(to, next.Attrs().HardwareAddr)

	switch move {
	case interfaces.AddressBondFollows:
		bond, err := d.nl.LinkByName(d.bond)
		if err != nil {
			return fmt.Errorf("failed to fetch bond %s: %w", d.bond, err)
		}
		return d.setAddr(bond, next.Attrs().HardwareAddr)

	case interfaces.AddressMemberFollows:
		bond, err := d.nl.LinkByName(d.bond)
		if err != nil {
			return fmt.Errorf("failed to fetch bond %s: %w", d.bond, err)
		}
		if err := d.setAddr(next, bond.Attrs().HardwareAddr); err != nil {
			return err
		}
		if from == 0 {
			return nil
		}
		prev, err := d.nl.LinkByIndex(from)
		if err != nil {
			// The previous member may be gone already.
			log.Log.Debug("previous member not restored", "bond", d.bond, "index", from, "error", err)
			return nil
		}
		if perm := d.permAddr(from); perm != nil {
			return d.setAddr(prev, perm)
		}
		return nil

	case interfaces.AddressSwap:
		if from == 0 {
			return nil
		}
		prev, err := d.nl.LinkByIndex(from)
		if err != nil {
			log.Log.Debug("previous member not swapped", "bond", d.bond, "index", from, "error", err)
			return nil
		}
		prevAddr := append(net.HardwareAddr(nil), prev.Attrs().HardwareAddr...)
		nextAddr := append(net.HardwareAddr(nil), next.Attrs().HardwareAddr...)
		return errors.Join(d.setAddr(prev, nextAddr), d.setAddr(next, prevAddr))
	}
	return nil
}

func (d *Device) setAddr(link netlink.Link, addr net.HardwareAddr) error {
	if len(addr) == 0 || link.Attrs().HardwareAddr.String() == addr.String() {
		return nil
	}
	if err := d.nl.LinkSetHardwareAddr(link, addr); err != nil {
		return fmt.Errorf("failed to set address %s on %s: %w", addr, link.Attrs().Name, err)
	}
	log.Log.Info("hardware address set", "interface", link.Attrs().Name, "address", addr)
	return nil
}

// sourceAddr returns the first IPv4 address of the bond, or 0.0.0.0.
func (d *Device) sourceAddr() netip.Addr {
	link, err := d.nl.LinkByName(d.bond)
	if err != nil {
		return netip.IPv4Unspecified()
	}
	addrs, err := d.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return netip.IPv4Unspecified()
	}
	for _, a := range addrs {
		if ip, ok := netip.AddrFromSlice(a.IP.To4()); ok {
			return ip
		}
	}
	return netip.IPv4Unspecified()
}

// Close stops every ARP listener.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	probers := d.probers
	d.probers = make(map[int]*prober)
	d.mu.Unlock()

	var errs []error
	for _, p := range probers {
		errs = append(errs, p.close())
	}
	return errors.Join(errs...)
}

// Release stops the ARP listener of a member and forgets what was learned
// about it. A later SendProbe on the same index starts over.
func (d *Device) Release(index int) {
	d.mu.Lock()
	p, ok := d.probers[index]
	delete(d.probers, index)
	delete(d.perm, index)
	delete(d.lacpUp, index)
	d.mu.Unlock()

	if !ok {
		return
	}
	if err := p.close(); err != nil {
		log.Log.Debug("failed to close ARP listener", "bond", d.bond, "index", index, "error", err)
	}
}

// LinkGone reports whether the link with index no longer exists.
func LinkGone(nl interfaces.Netlink, index int) bool {
	_, err := nl.LinkByIndex(index)
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound)
}
