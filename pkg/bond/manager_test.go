package bond

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/openshift/bondmon/pkg/interfaces"
)

var _ = Describe("Manager", func() {
	var (
		ctrl    *gomock.Controller
		l       *links
		mgr     *Manager
		created []string
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		l = newLinks()
		created = nil
		mgr = NewManager(func(name string, _ Params) (interfaces.Device, error) {
			created = append(created, name)
			dev := interfaces.NewMockDevice(ctrl)
			l.expect(dev)
			return dev, nil
		})
	})

	AfterEach(func() {
		mgr.DestroyAll()
		ctrl.Finish()
	})

	It("should create, look up and destroy groups", func() {
		h, err := mgr.CreateGroup(context.Background(), "bond0", carrierParams(ActiveBackup))
		Expect(err).NotTo(HaveOccurred())
		Expect(h).To(Equal(Handle("bond0")))
		Expect(created).To(Equal([]string{"bond0"}))

		_, err = mgr.CreateGroup(context.Background(), "bond0", carrierParams(ActiveBackup))
		Expect(errors.Is(err, ErrGroupExists)).To(BeTrue())

		_, err = mgr.CreateGroup(context.Background(), "bond1", carrierParams(LACP))
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.Handles()).To(Equal([]Handle{"bond0", "bond1"}))

		Expect(mgr.DestroyGroup(h)).To(Succeed())
		err = mgr.DestroyGroup(h)
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

		_, err = mgr.GetStatus(h)
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	It("should reject invalid parameters before opening a device", func() {
		p := carrierParams(ActiveBackup)
		p.UpDelay = 150 * time.Millisecond
		_, err := mgr.CreateGroup(context.Background(), "bond0", p)

		var cfgErr *ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(created).To(BeEmpty())
	})

	It("should return the factory error", func() {
		failing := NewManager(func(string, Params) (interfaces.Device, error) {
			return nil, errors.New("no such bond")
		})
		_, err := failing.CreateGroup(context.Background(), "bond0", carrierParams(ActiveBackup))
		Expect(err).To(MatchError(ContainSubstring("no such bond")))
		Expect(failing.Handles()).To(BeEmpty())
	})

	It("should manage members and the active member through handles", func() {
		l.setCarrier(1, true)
		l.setCarrier(2, true)
		h, err := mgr.CreateGroup(context.Background(), "bond0", carrierParams(ActiveBackup))
		Expect(err).NotTo(HaveOccurred())

		Expect(mgr.AttachMember(h, DeviceRef{Index: 1, Name: "eth0"})).To(Succeed())
		Expect(mgr.AttachMember(h, DeviceRef{Index: 2, Name: "eth1"})).To(Succeed())
		Expect(mgr.Tracks(2)).To(BeTrue())
		Expect(mgr.Tracks(3)).To(BeFalse())

		Expect(mgr.SetActive(h, 2)).To(Succeed())
		s, err := mgr.GetStatus(h)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name).To(Equal("bond0"))
		Expect(s.Mode).To(Equal(ActiveBackup))
		Expect(s.Active).To(Equal(MemberID(2)))
		Expect(s.Eligible).To(Equal([]MemberID{2}))
		Expect(s.Members).To(HaveLen(2))

		Expect(mgr.DetachMember(h, 2)).To(Succeed())
		s, err = mgr.GetStatus(h)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Active).To(Equal(MemberID(1)))

		err = mgr.AttachMember("bond9", DeviceRef{Index: 3, Name: "eth2"})
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	It("should manage ARP targets through handles", func() {
		h, err := mgr.CreateGroup(context.Background(), "bond0", arpParams(1))
		Expect(err).NotTo(HaveOccurred())

		addr := netip.MustParseAddr("198.51.100.7")
		Expect(mgr.AddARPTarget(h, addr)).To(Succeed())
		Expect(mgr.RemoveARPTarget(h, addr)).To(Succeed())
		err = mgr.RemoveARPTarget(h, addr)
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	It("should detach members whose link is gone", func() {
		l.setCarrier(1, true)
		l.setCarrier(2, true)
		for _, name := range []string{"bond0", "bond1"} {
			h, err := mgr.CreateGroup(context.Background(), name, carrierParams(ActiveBackup))
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.AttachMember(h, DeviceRef{Index: 1, Name: "eth0"})).To(Succeed())
		}
		Expect(mgr.AttachMember("bond1", DeviceRef{Index: 2, Name: "eth1"})).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		queue := make(chan int, 2)
		wg := &sync.WaitGroup{}
		mgr.Watch(ctx, queue, func(index int) bool { return index == 1 }, wg)

		queue <- 2
		queue <- 1

		Eventually(func() bool {
			return mgr.Tracks(1)
		}, "2s", "10ms").Should(BeFalse())
		Expect(mgr.Tracks(2)).To(BeTrue())

		s, err := mgr.GetStatus("bond1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Active).To(Equal(MemberID(2)))

		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// wg.Wait() finished within 1 second
		case <-time.After(1 * time.Second):
			// wg.Wait() did not finish within 1 second, fail the test
			Fail("wg.Wait() did not finish within 1 second")
		}
	})
})
