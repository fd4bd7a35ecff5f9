package flags

import (
	"strings"

	"github.com/vishvananda/netlink"
)

// LACP port state bits, IEEE 802.1AX.
const (
	Activity = 1 << iota
	Timeout
	Aggregation
	Synchronization
	Collecting
	Distributing
	Defaulted
	Expired
)

// PortState is an actor or partner LACP port state.
type PortState uint8

var names = []string{"activity", "timeout", "aggregation", "synchronization", "collecting", "distributing", "defaulted", "expired"}

// Operational reports whether the port is aggregated and exchanging traffic.
func (s PortState) Operational() bool {
	if s&(Expired|Defaulted) != 0 {
		return false
	}

	inService := PortState(Distributing | Collecting | Synchronization | Aggregation)
	return s&inService == inService
}

func (s PortState) String() string {
	var set []string
	for i, n := range names {
		if s&(1<<i) != 0 {
			set = append(set, n)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}

// Actor returns the actor port state of a bond slave.
func Actor(slave *netlink.BondSlave) PortState {
	return PortState(slave.AdActorOperPortState)
}

// Partner returns the partner port state of a bond slave.
func Partner(slave *netlink.BondSlave) PortState {
	return PortState(slave.AdPartnerOperPortState)
}

// IsFastRate indicates if the partner is using lacp fast rate.
func IsFastRate(slave *netlink.BondSlave) bool {
	return Partner(slave)&Timeout != 0
}

// IsProtocolUp returns lacp operational status of both ends of the link.
func IsProtocolUp(slave *netlink.BondSlave) bool {
	return Actor(slave).Operational() && Partner(slave).Operational()
}
