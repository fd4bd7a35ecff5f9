package device

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/openshift/bondmon/pkg/bond"
	"github.com/openshift/bondmon/pkg/interfaces"
	"github.com/openshift/bondmon/pkg/log"
)

var kernelModes = map[netlink.BondMode]bond.Mode{
	netlink.BOND_MODE_BALANCE_RR:    bond.RoundRobin,
	netlink.BOND_MODE_ACTIVE_BACKUP: bond.ActiveBackup,
	netlink.BOND_MODE_BALANCE_XOR:   bond.XOR,
	netlink.BOND_MODE_BROADCAST:     bond.Broadcast,
	netlink.BOND_MODE_802_3AD:       bond.LACP,
	netlink.BOND_MODE_BALANCE_TLB:   bond.TLB,
	netlink.BOND_MODE_BALANCE_ALB:   bond.ALB,
}

// Inspect verifies that the kernel bond exists and runs the configured mode.
func Inspect(nl interfaces.Netlink, name string, mode bond.Mode) error {
	link, err := nl.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to fetch bond %s: %w", name, err)
	}

	b, ok := link.(*netlink.Bond)
	if !ok {
		return fmt.Errorf("interface %s is not a bond", name)
	}

	if m, ok := kernelModes[b.Mode]; !ok || m != mode {
		return fmt.Errorf("bond %s runs mode %s, configured %s", name, b.Mode, mode)
	}

	return nil
}

// Resolve looks up the member interfaces of a bond by name. Interfaces that
// cannot be found are skipped; members that are not enslaved to the bond are
// kept with a warning.
func Resolve(nl interfaces.Netlink, name string, members []string) []bond.DeviceRef {
	masterIndex := 0
	if link, err := nl.LinkByName(name); err == nil {
		masterIndex = link.Attrs().Index
	}

	refs := make([]bond.DeviceRef, 0, len(members))
	for _, m := range members {
		link, err := nl.LinkByName(m)
		if err != nil {
			log.Log.Warn("failed to fetch interface", "interface", m, "error", err)
			continue
		}

		attrs := link.Attrs()
		if masterIndex != 0 && attrs.MasterIndex != masterIndex {
			log.Log.Warn("interface is not enslaved to bond", "interface", m, "bond", name, "masterIndex", attrs.MasterIndex)
		}

		log.Log.Debug("adding interface", "interface", m, "bond", name)
		refs = append(refs, bond.DeviceRef{Index: attrs.Index, Name: attrs.Name})
	}

	return refs
}

// Factory returns a bond.DeviceFactory building netlink devices.
func Factory(nl interfaces.Netlink) bond.DeviceFactory {
	return func(name string, p bond.Params) (interfaces.Device, error) {
		return New(name, nl, Options{
			LACP:     p.Mode == bond.LACP,
			LacpFast: p.LacpRate == bond.LacpFast,
		}), nil
	}
}
