package bond

import (
	"fmt"
	"slices"
	"sync"
)

// Registry owns the members of a group, kept in ring order, and the currently
// selected active member.
//
// Locking: mu guards the member collection and each member's link state and
// timers. activeMu guards the active member, the eligible set and each
// member's activity state. Whenever both are needed mu is taken first.
// activeMu is never held while acquiring mu. Callers only see lock-ordered
// methods.
type Registry struct {
	mode Mode

	mu      sync.RWMutex
	members []*Member

	activeMu sync.RWMutex
	active   MemberID
	eligible []MemberID
}

// NewRegistry returns an empty registry electing members for mode.
func NewRegistry(mode Mode) *Registry {
	return &Registry{mode: mode}
}

// indexOf returns the ring position of id or -1. Caller holds mu.
func (r *Registry) indexOf(id MemberID) int {
	for i, m := range r.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Attach appends m at the end of the ring.
func (r *Registry) Attach(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(m.ID) >= 0 {
		return fmt.Errorf("attach %s (%d): %w", m.Name, m.ID, ErrAlreadyAttached)
	}
	r.members = append(r.members, m)
	return nil
}

// Detach removes a member. If it was carrying traffic the election runs
// before the locks are released, so no caller sees a stale active member.
func (r *Registry) Detach(id MemberID) (*Member, Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.indexOf(id)
	if pos < 0 {
		return nil, Outcome{}, fmt.Errorf("detach member %d: %w", id, ErrNotFound)
	}
	m := r.members[pos]

	// Removal and election share one hold of activeMu: Active never
	// returns a member that has left the ring.
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	r.members = slices.Delete(r.members, pos, pos+1)
	out := r.electLocked(trigger{id: id, pos: pos, event: Detached})
	m.activity = Backup
	return m, out, nil
}

// View is a consistent copy of the registry.
type View struct {
	Members  []MemberStatus
	Active   MemberID
	Eligible []MemberID
}

// Snapshot returns copies of all members in ring order together with the
// active member and the eligible set.
func (r *Registry) Snapshot() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()

	v := View{
		Members:  make([]MemberStatus, 0, len(r.members)),
		Active:   r.active,
		Eligible: slices.Clone(r.eligible),
	}
	for _, m := range r.members {
		v.Members = append(v.Members, m.status())
	}
	return v
}

// IDs returns the member IDs in ring order.
func (r *Registry) IDs() []MemberID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]MemberID, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.ID)
	}
	return ids
}

// Len returns the number of members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Active returns the active member. It only takes the active-selection lock.
func (r *Registry) Active() (MemberID, bool) {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()
	return r.active, r.active != None
}

// Eligible returns the members that may carry traffic, in ring order.
func (r *Registry) Eligible() []MemberID {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()
	return slices.Clone(r.eligible)
}

// SetActive forces id to become the active member.
func (r *Registry) SetActive(id MemberID) (Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos := r.indexOf(id)
	if pos < 0 {
		return Outcome{}, fmt.Errorf("set active member %d: %w", id, ErrNotFound)
	}
	if !r.mode.UsesPrimary() {
		return Outcome{}, fmt.Errorf("set active member %d in %s: %w", id, r.mode, ErrNotSupported)
	}
	if r.members[pos].link != Up {
		return Outcome{}, fmt.Errorf("set active member %d: %w", id, ErrNotUsable)
	}

	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	out := Outcome{Event: Forced, Trigger: id, Old: r.active, New: r.active}
	r.switchActiveLocked(id, &out)
	r.publishLocked(activeSet(id), &out)
	return out, nil
}

// update runs fn on member id under the membership write lock. It reports
// false if the member is gone.
func (r *Registry) update(id MemberID, fn func(m *Member)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.indexOf(id)
	if pos < 0 {
		return false
	}
	fn(r.members[pos])
	return true
}

// reelect runs the election for a transition or attach of a member.
func (r *Registry) reelect(id MemberID, event Event) Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.activeMu.Lock()
	defer r.activeMu.Unlock()

	return r.electLocked(trigger{id: id, pos: r.indexOf(id), event: event})
}

// electLocked runs the election. Caller holds mu and activeMu for writing.
func (r *Registry) electLocked(t trigger) Outcome {
	out := Outcome{Event: t.event, Trigger: t.id, Old: r.active, New: r.active}

	if r.mode.UsesPrimary() {
		next := selectActive(r.members, r.active, t)
		r.switchActiveLocked(next, &out)
		r.publishLocked(activeSet(next), &out)
		return out
	}

	r.publishLocked(distribute(r.members), &out)
	return out
}

// switchActiveLocked demotes the current active member and promotes next.
func (r *Registry) switchActiveLocked(next MemberID, out *Outcome) {
	if next == r.active {
		return
	}
	if pos := r.indexOf(r.active); pos >= 0 {
		r.members[pos].activity = Backup
	}
	if pos := r.indexOf(next); pos >= 0 {
		r.members[pos].activity = Active
	}
	r.active = next
	out.New = next
	out.Changed = true
}

func (r *Registry) publishLocked(eligible []MemberID, out *Outcome) {
	out.Eligible = eligible
	out.EligibleChanged = !slices.Equal(eligible, r.eligible)
	r.eligible = eligible
}

func activeSet(id MemberID) []MemberID {
	if id == None {
		return nil
	}
	return []MemberID{id}
}
