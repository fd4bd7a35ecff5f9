package interfaces

import (
	"context"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
)

//go:generate mockgen -source=interfaces.go -destination=mock_interfaces.go -package=interfaces

// Netlink is the subset of the netlink handle used by the application.
type Netlink interface {
	LinkByIndex(int) (netlink.Link, error)
	LinkByName(string) (netlink.Link, error)
	LinkSetHardwareAddr(netlink.Link, net.HardwareAddr) error
	AddrList(netlink.Link, int) ([]netlink.Addr, error)
}

// AddressMove tells the device how hardware addresses move when the active member changes.
type AddressMove int

const (
	// AddressKeep leaves every address in place.
	AddressKeep AddressMove = iota
	// AddressBondFollows gives the bond the address of the new active member.
	AddressBondFollows
	// AddressMemberFollows gives the new active member the bond address and restores the old one.
	AddressMemberFollows
	// AddressSwap exchanges the addresses of the old and new active members.
	AddressSwap
)

func (a AddressMove) String() string {
	switch a {
	case AddressKeep:
		return "keep"
	case AddressBondFollows:
		return "bond-follows"
	case AddressMemberFollows:
		return "member-follows"
	case AddressSwap:
		return "swap"
	}
	return "unknown"
}

// Device is the host side of a bond as seen by the health monitor. Members are
// addressed by interface index; 0 means no member.
type Device interface {
	// ReadCarrier reports whether the member currently has carrier.
	ReadCarrier(ctx context.Context, index int) (bool, error)
	// SendProbe transmits an ARP request for target out of the member.
	SendProbe(ctx context.Context, index int, target netip.Addr) error
	// ObserveLiveness reports whether a reply from target was seen on the
	// member since the previous call. It never blocks.
	ObserveLiveness(index int, target netip.Addr) bool
	// NotifyActiveChanged tells the host stack that the active member moved.
	NotifyActiveChanged(ctx context.Context, from, to int, move AddressMove) error
	// Release drops everything held for a member that left the bond.
	Release(index int)
}
