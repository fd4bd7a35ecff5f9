package bond

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func attachAll(r *Registry, members []*Member) {
	for _, m := range members {
		ExpectWithOffset(1, r.Attach(m)).To(Succeed())
		r.reelect(m.ID, Attached)
	}
}

var _ = Describe("Registry", func() {
	Context("active-backup", func() {
		var r *Registry

		BeforeEach(func() {
			r = NewRegistry(ActiveBackup)
			attachAll(r, ring(Up, Up, Up))
		})

		It("should elect the first member attached", func() {
			id, ok := r.Active()
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(MemberID(1)))
			Expect(r.Eligible()).To(Equal([]MemberID{1}))
			Expect(r.IDs()).To(Equal([]MemberID{1, 2, 3}))
			Expect(r.Len()).To(Equal(3))
		})

		It("should reject a member attached twice", func() {
			err := r.Attach(NewMember(DeviceRef{Index: 2, Name: "B"}, Up, time.Time{}))
			Expect(errors.Is(err, ErrAlreadyAttached)).To(BeTrue())
		})

		It("should return not found for unknown members", func() {
			_, _, err := r.Detach(9)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			_, err = r.SetActive(9)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should elect a new active member before detach returns", func() {
			m, out, err := r.Detach(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ID).To(Equal(MemberID(1)))
			Expect(m.activity).To(Equal(Backup))
			Expect(out.Changed).To(BeTrue())
			Expect(out.Old).To(Equal(MemberID(1)))
			Expect(out.New).To(Equal(MemberID(2)))

			id, _ := r.Active()
			Expect(id).To(Equal(MemberID(2)))
		})

		It("should have no active member once the last up member is detached", func() {
			r.update(2, func(m *Member) { m.link = Down })
			r.update(3, func(m *Member) { m.link = Down })
			_, out, err := r.Detach(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.New).To(Equal(None))

			_, ok := r.Active()
			Expect(ok).To(BeFalse())
			Expect(r.Eligible()).To(BeEmpty())
		})

		It("should force the active member", func() {
			out, err := r.SetActive(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Event).To(Equal(Forced))
			Expect(out.Changed).To(BeTrue())

			v := r.Snapshot()
			Expect(v.Active).To(Equal(MemberID(3)))
			Expect(v.Members[0].Activity).To(Equal(Backup))
			Expect(v.Members[2].Activity).To(Equal(Active))
		})

		It("should refuse to force a member that is not up", func() {
			r.update(2, func(m *Member) { m.link = Back })
			_, err := r.SetActive(2)
			Expect(errors.Is(err, ErrNotUsable)).To(BeTrue())
		})

		It("should report members in ring order", func() {
			v := r.Snapshot()
			Expect(v.Members).To(HaveLen(3))
			for i, m := range v.Members {
				Expect(m.ID).To(Equal(MemberID(i + 1)))
			}
			Expect(v.Eligible).To(Equal([]MemberID{1}))
		})

		It("should keep the active member in the ring while a reader holds the active lock", func() {
			r.activeMu.RLock()

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				_, _, err := r.Detach(1)
				Expect(err).NotTo(HaveOccurred())
			}()

			By("waiting for detach to hold the membership lock")
			Eventually(func() bool {
				if r.mu.TryRLock() {
					r.mu.RUnlock()
					return false
				}
				return true
			}, "2s", "1ms").Should(BeTrue())

			Consistently(done, "50ms").ShouldNot(BeClosed())
			Expect(r.members).To(HaveLen(3))
			Expect(r.active).To(Equal(MemberID(1)))
			r.activeMu.RUnlock()

			Eventually(done, "2s").Should(BeClosed())
			id, _ := r.Active()
			Expect(id).To(Equal(MemberID(2)))
			Expect(r.Len()).To(Equal(2))
		})

		It("should serve readers while members change", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					for j := 0; j < 200; j++ {
						id, ok := r.Active()
						Expect(ok).To(Equal(id != None))
						_ = r.Snapshot()
					}
				}()
			}
			for j := 0; j < 200; j++ {
				id := MemberID(4 + j)
				Expect(r.Attach(NewMember(DeviceRef{Index: int(id)}, Up, time.Time{}))).To(Succeed())
				r.reelect(id, Attached)
				_, _, err := r.Detach(id)
				Expect(err).NotTo(HaveOccurred())
			}
			wg.Wait()

			id, _ := r.Active()
			Expect(id).To(Equal(MemberID(1)))
		})
	})

	Context("distributing", func() {
		It("should publish every usable member", func() {
			r := NewRegistry(XOR)
			attachAll(r, ring(Up, Down, Up))
			_, ok := r.Active()
			Expect(ok).To(BeFalse())
			Expect(r.Eligible()).To(Equal([]MemberID{1, 3}))

			out := r.reelect(2, LinkUp)
			Expect(out.EligibleChanged).To(BeFalse())

			r.update(2, func(m *Member) { m.link = Up })
			out = r.reelect(2, LinkUp)
			Expect(out.EligibleChanged).To(BeTrue())
			Expect(out.Eligible).To(Equal([]MemberID{1, 2, 3}))
		})

		It("should not support forcing an active member", func() {
			r := NewRegistry(LACP)
			attachAll(r, ring(Up))
			_, err := r.SetActive(1)
			Expect(errors.Is(err, ErrNotSupported)).To(BeTrue())
		})
	})
})
