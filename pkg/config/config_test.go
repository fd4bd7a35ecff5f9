package config

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/openshift/bondmon/pkg/bond"
)

var _ = Describe("Config", func() {
	var dir string

	writeConfig := func(content string) {
		path = filepath.Join(dir, "config.yaml")
		err := os.WriteFile(path, []byte(content), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "bondmon-config")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.Unsetenv(bondmonConfig)).To(Succeed())
		Expect(os.Unsetenv(bondmonMetricsAddress)).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Context("ReadConfig", func() {
		It("should correctly read a carrier monitored bond", func() {
			writeConfig(`
metricsAddress: ":9101"
bonds:
- name: bond0
  mode: active-backup
  members: [eth0, "  eth1 ", ""]
  miimon: 100
  updelay: 200
  downdelay: 300
  primary: eth0
  failOverMac: active
`)

			// Call the function under test.
			c, err := ReadConfig()
			Expect(err).NotTo(HaveOccurred())

			// Validate the results.
			Expect(c.MetricsAddress).To(Equal(":9101"))
			Expect(c.Bonds).To(HaveLen(1))
			Expect(c.Bonds[0].Members).To(Equal([]string{"eth0", "eth1"}))

			p, err := c.Bonds[0].Params()
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mode).To(Equal(bond.ActiveBackup))
			Expect(p.UseCarrier).To(BeTrue())
			Expect(p.MIIMon).To(Equal(100 * time.Millisecond))
			Expect(p.UpDelay).To(Equal(200 * time.Millisecond))
			Expect(p.DownDelay).To(Equal(300 * time.Millisecond))
			Expect(p.Primary).To(Equal("eth0"))
			Expect(p.FailOverMac).To(Equal(bond.FailOverMacActive))
		})

		It("should default to ARP monitoring when an ARP interval is set", func() {
			writeConfig(`
bonds:
- name: bond0
  mode: active-backup
  members: [eth0]
  arpInterval: 500
  arpTargets: [192.0.2.1, 192.0.2.2]
  arpValidate: all
`)

			c, err := ReadConfig()
			Expect(err).NotTo(HaveOccurred())

			p, err := c.Bonds[0].Params()
			Expect(err).NotTo(HaveOccurred())
			Expect(p.UseCarrier).To(BeFalse())
			Expect(p.MIIMon).To(BeZero())
			Expect(p.ARPInterval).To(Equal(500 * time.Millisecond))
			Expect(p.ARPTargets).To(Equal([]netip.Addr{netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("192.0.2.2")}))
			Expect(p.ARPValidate).To(Equal(bond.ValidateAll))
		})

		It("should use the default miimon", func() {
			writeConfig(`
bonds:
- name: bond0
  mode: 802.3ad
  lacpRate: fast
  members: [eth0, eth1]
`)

			c, err := ReadConfig()
			Expect(err).NotTo(HaveOccurred())

			p, err := c.Bonds[0].Params()
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mode).To(Equal(bond.LACP))
			Expect(p.LacpRate).To(Equal(bond.LacpFast))
			Expect(p.MIIMon).To(Equal(100 * time.Millisecond))
		})

		It("should read the file named by the environment and override the metrics address", func() {
			writeConfig(`
metricsAddress: ":9101"
bonds:
- name: bond0
  members: [eth0]
`)
			other := path
			path = filepath.Join(dir, "missing.yaml")
			Expect(os.Setenv(bondmonConfig, other)).To(Succeed())
			Expect(os.Setenv(bondmonMetricsAddress, "")).To(Succeed())

			c, err := ReadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.MetricsAddress).To(BeEmpty())
		})

		It("should return an error when the file does not exist", func() {
			path = filepath.Join(dir, "missing.yaml")
			_, err := ReadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("should return an error when no bond is provided", func() {
			writeConfig(`metricsAddress: ":9101"`)
			_, err := ReadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("should return an error when a bond has no members", func() {
			writeConfig(`
bonds:
- name: bond0
  members: ["  "]
`)
			_, err := ReadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("should return an error when a bond is configured twice", func() {
			writeConfig(`
bonds:
- name: bond0
  members: [eth0]
- name: bond0
  members: [eth1]
`)
			_, err := ReadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("should return a configuration error when a delay is not a multiple of miimon", func() {
			writeConfig(`
bonds:
- name: bond0
  mode: active-backup
  members: [eth0]
  miimon: 100
  updelay: 150
`)
			_, err := ReadConfig()
			var cfgErr *bond.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("updelay"))
		})

		It("should return a configuration error when an ARP target is not an address", func() {
			writeConfig(`
bonds:
- name: bond0
  mode: active-backup
  members: [eth0]
  arpInterval: 100
  arpTargets: [gateway]
`)
			_, err := ReadConfig()
			var cfgErr *bond.ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
		})

		It("should return an error on an unknown mode", func() {
			writeConfig(`
bonds:
- name: bond0
  mode: fastest
  members: [eth0]
`)
			_, err := ReadConfig()
			Expect(err).To(HaveOccurred())
		})
	})
})
