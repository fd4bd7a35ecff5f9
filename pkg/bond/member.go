package bond

import "time"

// maxReadFailures is the number of consecutive unreadable carrier polls after
// which a member is treated as having no carrier.
const maxReadFailures = 3

// Event is what triggered an election.
type Event int

const (
	NoEvent Event = iota
	LinkUp
	LinkDown
	Attached
	Detached
	Forced
)

func (e Event) String() string {
	switch e {
	case LinkUp:
		return "up"
	case LinkDown:
		return "down"
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	case Forced:
		return "forced"
	}
	return "none"
}

// failure reports whether the event removed a member from service.
func (e Event) failure() bool {
	return e == LinkDown || e == Detached
}

// Member is one link of a group. It is owned by the group's Registry; link
// state and timers are guarded by the membership lock, activity by the
// active-selection lock.
type Member struct {
	ID      MemberID
	Name    string
	Primary bool

	link         LinkState
	delay        int
	failureCount uint32
	lastLiveness time.Time
	readFailures int
	// inScope records whether the member sent ARP requests on the last tick.
	inScope bool

	activity ActivityState
}

// NewMember returns a member in the given link state, in backup.
func NewMember(ref DeviceRef, link LinkState, now time.Time) *Member {
	return &Member{
		ID:           MemberID(ref.Index),
		Name:         ref.Name,
		link:         link,
		lastLiveness: now,
		inScope:      true,
		activity:     Backup,
	}
}

// MemberStatus is an immutable copy of a member.
type MemberStatus struct {
	ID           MemberID
	Name         string
	Primary      bool
	Link         LinkState
	Activity     ActivityState
	Delay        int
	FailureCount uint32
	LastLiveness time.Time
}

func (m *Member) status() MemberStatus {
	return MemberStatus{
		ID:           m.ID,
		Name:         m.Name,
		Primary:      m.Primary,
		Link:         m.link,
		Activity:     m.activity,
		Delay:        m.delay,
		FailureCount: m.failureCount,
		LastLiveness: m.lastLiveness,
	}
}

// carrierStep applies one carrier reading. up and down are the confirmation
// windows in polls. It returns LinkUp or LinkDown on a confirmed transition.
func (m *Member) carrierStep(carrier bool, up, down int) Event {
	switch m.link {
	case Up:
		if carrier {
			return NoEvent
		}
		m.link = Failing
		m.delay = down
		fallthrough
	case Failing:
		if carrier {
			m.link = Up
			m.delay = down
			return NoEvent
		}
		m.delay--
		if m.delay > 0 {
			return NoEvent
		}
		m.link = Down
		m.delay = up
		m.failureCount++
		return LinkDown
	case Down:
		if !carrier {
			return NoEvent
		}
		m.link = Back
		m.delay = up
		fallthrough
	case Back:
		if !carrier {
			m.link = Down
			m.delay = up
			return NoEvent
		}
		m.delay--
		if m.delay > 0 {
			return NoEvent
		}
		m.link = Up
		m.delay = down
		return LinkUp
	}
	return NoEvent
}

// readFailed records an unreadable carrier poll and reports whether the
// member should now be treated as having no carrier.
func (m *Member) readFailed() bool {
	m.readFailures++
	return m.readFailures >= maxReadFailures
}

// arpStep applies one ARP probe cycle. A positive observation brings the
// member up at once; no observation for two intervals takes it down at once.
func (m *Member) arpStep(seen bool, now time.Time, interval time.Duration) Event {
	if seen {
		m.lastLiveness = now
		if m.link != Up {
			m.link = Up
			m.delay = 0
			return LinkUp
		}
		return NoEvent
	}
	if m.link != Down && now.Sub(m.lastLiveness) >= 2*interval {
		m.link = Down
		m.failureCount++
		return LinkDown
	}
	return NoEvent
}
