package bond

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/mock/gomock"

	"github.com/openshift/bondmon/pkg/interfaces"
)

// links scripts what a MockDevice reports for each member.
type links struct {
	mu       sync.Mutex
	carrier  map[int]bool
	failing  map[int]bool
	replies  map[int]bool
	probed   map[int]int
	released []int
	reads    atomic.Int64
	notified []notification

	// In echo mode a member only hears a reply to a request it sent, and
	// only while the target answers.
	echo      bool
	answering bool
	pending   map[int]bool

	// onRead runs before a carrier read returns, with no lock held.
	onRead func(index int)
	// onSend runs before an ARP request is sent, with no lock held.
	onSend func(index int)
}

type notification struct {
	from, to int
	move     interfaces.AddressMove
}

func newLinks() *links {
	return &links{
		carrier: make(map[int]bool),
		failing: make(map[int]bool),
		replies: make(map[int]bool),
		probed:  make(map[int]int),
		pending: make(map[int]bool),
	}
}

func (l *links) setCarrier(index int, up bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.carrier[index] = up
}

func (l *links) setFailing(index int, failing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing[index] = failing
}

func (l *links) setReplies(index int, replies bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replies[index] = replies
}

// setEcho switches to echo mode with the target answering or not.
func (l *links) setEcho(answering bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.echo = true
	l.answering = answering
}

func (l *links) releases() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.released...)
}

func (l *links) probes(index int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.probed[index]
}

func (l *links) notifications() []notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notification(nil), l.notified...)
}

// expect wires the scripted behaviour into dev. Calls are allowed any number of times.
func (l *links) expect(dev *interfaces.MockDevice) {
	dev.EXPECT().ReadCarrier(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, index int) (bool, error) {
		l.reads.Add(1)
		if l.onRead != nil {
			l.onRead(index)
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.failing[index] {
			return false, context.DeadlineExceeded
		}
		return l.carrier[index], nil
	}).AnyTimes()
	l.expectARP(dev)
	l.expectNotify(dev)
}

func (l *links) expectARP(dev *interfaces.MockDevice) {
	dev.EXPECT().SendProbe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, index int, _ netip.Addr) error {
		if l.onSend != nil {
			l.onSend(index)
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		l.probed[index]++
		if l.echo && l.answering {
			l.pending[index] = true
		}
		return nil
	}).AnyTimes()
	dev.EXPECT().ObserveLiveness(gomock.Any(), gomock.Any()).DoAndReturn(func(index int, _ netip.Addr) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.echo {
			heard := l.pending[index]
			delete(l.pending, index)
			return heard
		}
		return l.replies[index]
	}).AnyTimes()
	dev.EXPECT().Release(gomock.Any()).Do(func(index int) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = append(l.released, index)
	}).AnyTimes()
}

func (l *links) expectNotify(dev *interfaces.MockDevice) {
	dev.EXPECT().NotifyActiveChanged(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, from, to int, move interfaces.AddressMove) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.notified = append(l.notified, notification{from: from, to: to, move: move})
		return nil
	}).AnyTimes()
}
