package bond

import (
	"fmt"
	"strings"
)

// MemberID identifies a member by the interface index of its underlying link.
type MemberID int

// None is the MemberID of no member.
const None MemberID = 0

// DeviceRef is the handle administrative callers use to name a member link.
type DeviceRef struct {
	Index int
	Name  string
}

// LinkState is the link-state of a member as seen by the health monitor.
type LinkState int

const (
	// Down means the member is not usable.
	Down LinkState = iota
	// Up means the member is usable.
	Up
	// Back means carrier came back but the up-delay has not elapsed. Not usable.
	Back
	// Failing means carrier was lost but the down-delay has not elapsed. Still usable.
	Failing
)

func (s LinkState) String() string {
	switch s {
	case Down:
		return "down"
	case Up:
		return "up"
	case Back:
		return "back"
	case Failing:
		return "fail"
	}
	return "unknown"
}

// usable reports whether a member in this state may carry traffic.
func (s LinkState) usable() bool {
	return s == Up || s == Failing
}

// ActivityState tells whether a member carries traffic.
type ActivityState int

const (
	Backup ActivityState = iota
	Active
)

func (s ActivityState) String() string {
	if s == Active {
		return "active"
	}
	return "backup"
}

// Mode is a bonding policy.
type Mode int

const (
	RoundRobin Mode = iota
	ActiveBackup
	XOR
	Broadcast
	LACP
	TLB
	ALB
)

var modeNames = map[Mode]string{
	RoundRobin:   "balance-rr",
	ActiveBackup: "active-backup",
	XOR:          "balance-xor",
	Broadcast:    "broadcast",
	LACP:         "802.3ad",
	TLB:          "balance-tlb",
	ALB:          "balance-alb",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// UsesPrimary reports whether the mode keeps a single active member.
func (m Mode) UsesPrimary() bool {
	return m == ActiveBackup || m == TLB || m == ALB
}

// ParseMode converts a kernel bond mode name into a Mode. An empty name is balance-rr.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoundRobin, nil
	}
	for m, n := range modeNames {
		if n == s {
			return m, nil
		}
	}
	return 0, &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("invalid bond mode %q", s)}
}

// ArpValidate selects which members send and validate ARP probes. The values
// are bitmasks over ActivityState.
type ArpValidate int

const (
	ValidateNone   ArpValidate = 0
	ValidateBackup ArpValidate = 1 << Backup
	ValidateActive ArpValidate = 1 << Active
	ValidateAll    ArpValidate = ValidateActive | ValidateBackup
)

func (v ArpValidate) String() string {
	switch v {
	case ValidateNone:
		return "none"
	case ValidateActive:
		return "active"
	case ValidateBackup:
		return "backup"
	case ValidateAll:
		return "all"
	}
	return "unknown"
}

// validates reports whether a member in state s is subject to ARP validation.
func (v ArpValidate) validates(s ActivityState) bool {
	return v&(1<<s) != 0
}

// ParseArpValidate converts an arp_validate name.
func ParseArpValidate(s string) (ArpValidate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ValidateNone, nil
	case "active":
		return ValidateActive, nil
	case "backup":
		return ValidateBackup, nil
	case "all":
		return ValidateAll, nil
	}
	return 0, &ConfigurationError{Field: "arpValidate", Reason: fmt.Sprintf("invalid value %q", s)}
}

// FailOverMac selects how addresses move on failover in active-backup.
type FailOverMac int

const (
	FailOverMacNone FailOverMac = iota
	FailOverMacActive
	FailOverMacFollow
)

func (f FailOverMac) String() string {
	switch f {
	case FailOverMacNone:
		return "none"
	case FailOverMacActive:
		return "active"
	case FailOverMacFollow:
		return "follow"
	}
	return "unknown"
}

// ParseFailOverMac converts a fail_over_mac name.
func ParseFailOverMac(s string) (FailOverMac, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FailOverMacNone, nil
	case "active":
		return FailOverMacActive, nil
	case "follow":
		return FailOverMacFollow, nil
	}
	return 0, &ConfigurationError{Field: "failOverMac", Reason: fmt.Sprintf("invalid value %q", s)}
}

// LacpRate is the LACPDU rate requested from the partner.
type LacpRate int

const (
	LacpSlow LacpRate = iota
	LacpFast
)

func (r LacpRate) String() string {
	if r == LacpFast {
		return "fast"
	}
	return "slow"
}

// ParseLacpRate converts a lacp_rate name.
func ParseLacpRate(s string) (LacpRate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "slow":
		return LacpSlow, nil
	case "fast":
		return LacpFast, nil
	}
	return 0, &ConfigurationError{Field: "lacpRate", Reason: fmt.Sprintf("invalid value %q", s)}
}
