package bond

// trigger is the event an election reacts to. pos is the ring position the
// member had when the event happened, or -1.
type trigger struct {
	id    MemberID
	pos   int
	event Event
}

// Outcome is the result of an election.
type Outcome struct {
	Event   Event
	Trigger MemberID
	// Old and New are the active member before and after. Both are None in
	// distributing modes.
	Old, New MemberID
	Changed  bool
	// Eligible are the members that may carry traffic, in ring order.
	Eligible        []MemberID
	EligibleChanged bool
}

// selectActive picks the active member for the active-backup family:
//  1. the current active member while it is usable,
//  2. the primary member if it is up,
//  3. the first up member in ring order after the failed member, or from
//     the head of the ring when nothing failed,
//  4. None.
func selectActive(members []*Member, current MemberID, t trigger) MemberID {
	if current != None {
		for _, m := range members {
			if m.ID == current && m.link.usable() {
				return current
			}
		}
	}

	for _, m := range members {
		if m.Primary && m.link == Up {
			return m.ID
		}
	}

	n := len(members)
	if n == 0 {
		return None
	}

	start := 0
	if t.event.failure() && t.pos >= 0 {
		start = t.pos
		// A detached member no longer occupies its slot, so its successor
		// already sits at pos.
		if t.event != Detached {
			start++
		}
	}
	for i := 0; i < n; i++ {
		m := members[(start+i)%n]
		if m.link == Up {
			return m.ID
		}
	}
	return None
}

// distribute marks every usable member active and returns them in ring order.
func distribute(members []*Member) []MemberID {
	var eligible []MemberID
	for _, m := range members {
		if m.link.usable() {
			m.activity = Active
			eligible = append(eligible, m.ID)
		} else {
			m.activity = Backup
		}
	}
	return eligible
}
