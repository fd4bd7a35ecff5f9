package bond

import (
	"fmt"
	"net/netip"
	"time"
)

// MaxARPTargets is the maximum number of ARP targets per group.
const MaxARPTargets = 16

// Params is the monitoring configuration of a group.
type Params struct {
	Mode Mode
	// MIIMon is the carrier poll interval. Zero disables carrier monitoring.
	MIIMon time.Duration
	// UpDelay and DownDelay must be multiples of MIIMon.
	UpDelay   time.Duration
	DownDelay time.Duration
	// UseCarrier selects the carrier probe. When false the ARP probe drives the group.
	UseCarrier  bool
	ARPInterval time.Duration
	ARPTargets  []netip.Addr
	ARPValidate ArpValidate
	// Primary is the name of the preferred member.
	Primary     string
	FailOverMac FailOverMac
	LacpRate    LacpRate
}

// Validate checks the combination of parameters.
func (p Params) Validate() error {
	if _, ok := modeNames[p.Mode]; !ok {
		return &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %d", int(p.Mode))}
	}
	if p.MIIMon < 0 {
		return &ConfigurationError{Field: "miimon", Reason: "must not be negative"}
	}
	if p.UpDelay < 0 || p.DownDelay < 0 {
		return &ConfigurationError{Field: "updelay/downdelay", Reason: "must not be negative"}
	}
	if p.ARPInterval < 0 {
		return &ConfigurationError{Field: "arpInterval", Reason: "must not be negative"}
	}

	if p.MIIMon == 0 {
		if p.UpDelay != 0 || p.DownDelay != 0 {
			return &ConfigurationError{Field: "updelay/downdelay", Reason: "require miimon"}
		}
	} else {
		if p.UpDelay%p.MIIMon != 0 {
			return &ConfigurationError{Field: "updelay", Reason: fmt.Sprintf("%s is not a multiple of miimon %s", p.UpDelay, p.MIIMon)}
		}
		if p.DownDelay%p.MIIMon != 0 {
			return &ConfigurationError{Field: "downdelay", Reason: fmt.Sprintf("%s is not a multiple of miimon %s", p.DownDelay, p.MIIMon)}
		}
	}

	if err := validateTargets(p.ARPTargets); err != nil {
		return err
	}

	if !p.UseCarrier {
		if p.ARPInterval == 0 {
			return &ConfigurationError{Field: "arpInterval", Reason: "ARP monitoring requires an interval"}
		}
		if len(p.ARPTargets) == 0 {
			return &ConfigurationError{Field: "arpTargets", Reason: "ARP monitoring requires at least one target"}
		}
		switch p.Mode {
		case LACP, TLB, ALB:
			return &ConfigurationError{Field: "arpInterval", Reason: fmt.Sprintf("ARP monitoring is not supported in %s", p.Mode)}
		}
	}

	if p.ARPValidate != ValidateNone {
		if p.ARPValidate&^ValidateAll != 0 {
			return &ConfigurationError{Field: "arpValidate", Reason: fmt.Sprintf("unknown value %d", int(p.ARPValidate))}
		}
		if p.Mode != ActiveBackup || p.UseCarrier {
			return &ConfigurationError{Field: "arpValidate", Reason: "only valid with ARP monitoring in active-backup"}
		}
	}

	if p.LacpRate == LacpFast && p.Mode != LACP {
		return &ConfigurationError{Field: "lacpRate", Reason: "only valid in 802.3ad"}
	}

	return nil
}

func validateTargets(targets []netip.Addr) error {
	if len(targets) > MaxARPTargets {
		return &ConfigurationError{Field: "arpTargets", Reason: fmt.Sprintf("at most %d targets allowed, got %d", MaxARPTargets, len(targets))}
	}
	seen := make(map[netip.Addr]struct{}, len(targets))
	for _, t := range targets {
		if !t.Is4() {
			return &ConfigurationError{Field: "arpTargets", Reason: fmt.Sprintf("%s is not an IPv4 address", t)}
		}
		if _, ok := seen[t]; ok {
			return &ConfigurationError{Field: "arpTargets", Reason: fmt.Sprintf("duplicate target %s", t)}
		}
		seen[t] = struct{}{}
	}
	return nil
}

// upTicks is the number of consecutive positive carrier polls needed to bring a member up.
func (p Params) upTicks() int {
	if p.MIIMon == 0 {
		return 0
	}
	return int(p.UpDelay / p.MIIMon)
}

// downTicks is the number of consecutive negative carrier polls needed to bring a member down.
func (p Params) downTicks() int {
	if p.MIIMon == 0 {
		return 0
	}
	return int(p.DownDelay / p.MIIMon)
}

// arpMonitoring reports whether the ARP probe drives the group.
func (p Params) arpMonitoring() bool {
	return !p.UseCarrier
}

// carrierMonitoring reports whether the carrier probe drives the group.
func (p Params) carrierMonitoring() bool {
	return p.UseCarrier && p.MIIMon > 0
}
