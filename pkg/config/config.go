package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/openshift/bondmon/pkg/bond"
)

var path = "/etc/bondmon/config.yaml"

const (
	bondmonConfig         = "BONDMON_CONFIG"
	bondmonMetricsAddress = "BONDMON_METRICS_ADDRESS"

	defaultMIIMon = 100
)

// Config contains the configuration of the application.
type Config struct {
	// MetricsAddress is where /metrics is served. Empty disables it.
	MetricsAddress string `yaml:"metricsAddress"`
	Bonds          []Bond `yaml:"bonds"`
}

// Bond is the monitoring configuration of one bond. Times are in milliseconds.
type Bond struct {
	Name        string   `yaml:"name"`
	Mode        string   `yaml:"mode"`
	Members     []string `yaml:"members"`
	MIIMon      *int     `yaml:"miimon"`
	UpDelay     int      `yaml:"updelay"`
	DownDelay   int      `yaml:"downdelay"`
	UseCarrier  *bool    `yaml:"useCarrier"`
	ARPInterval int      `yaml:"arpInterval"`
	ARPTargets  []string `yaml:"arpTargets"`
	ARPValidate string   `yaml:"arpValidate"`
	Primary     string   `yaml:"primary"`
	FailOverMac string   `yaml:"failOverMac"`
	LacpRate    string   `yaml:"lacpRate"`
}

// ReadConfig reads the yaml config file and applies the environment overrides.
func ReadConfig() (Config, error) {
	p := path
	if v := strings.TrimSpace(os.Getenv(bondmonConfig)); v != "" {
		p = v
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Config{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if v, ok := os.LookupEnv(bondmonMetricsAddress); ok {
		c.MetricsAddress = strings.TrimSpace(v)
	}

	if len(c.Bonds) == 0 {
		return Config{}, fmt.Errorf("no bonds provided")
	}

	names := make(map[string]struct{}, len(c.Bonds))
	for i := range c.Bonds {
		b := &c.Bonds[i]
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			return Config{}, fmt.Errorf("bond %d has no name", i)
		}
		if _, ok := names[b.Name]; ok {
			return Config{}, fmt.Errorf("bond %s is configured twice", b.Name)
		}
		names[b.Name] = struct{}{}

		b.Members = trim(b.Members)
		if len(b.Members) == 0 {
			return Config{}, fmt.Errorf("bond %s has no members", b.Name)
		}

		if _, err := b.Params(); err != nil {
			return Config{}, fmt.Errorf("bond %s: %w", b.Name, err)
		}
	}

	return c, nil
}

// Params converts the configuration into validated bond parameters.
// useCarrier defaults to true unless an ARP interval is set, and miimon
// defaults to 100ms.
func (b Bond) Params() (bond.Params, error) {
	mode, err := bond.ParseMode(b.Mode)
	if err != nil {
		return bond.Params{}, err
	}
	validate, err := bond.ParseArpValidate(b.ARPValidate)
	if err != nil {
		return bond.Params{}, err
	}
	failOverMac, err := bond.ParseFailOverMac(b.FailOverMac)
	if err != nil {
		return bond.Params{}, err
	}
	lacpRate, err := bond.ParseLacpRate(b.LacpRate)
	if err != nil {
		return bond.Params{}, err
	}

	targets := make([]netip.Addr, 0, len(b.ARPTargets))
	for _, t := range trim(b.ARPTargets) {
		addr, err := netip.ParseAddr(t)
		if err != nil {
			return bond.Params{}, &bond.ConfigurationError{Field: "arpTargets", Reason: err.Error()}
		}
		targets = append(targets, addr)
	}

	useCarrier := b.ARPInterval == 0
	if b.UseCarrier != nil {
		useCarrier = *b.UseCarrier
	}
	miimon := defaultMIIMon
	if b.MIIMon != nil {
		miimon = *b.MIIMon
	}
	if !useCarrier && b.MIIMon == nil {
		miimon = 0
	}

	p := bond.Params{
		Mode:        mode,
		MIIMon:      millis(miimon),
		UpDelay:     millis(b.UpDelay),
		DownDelay:   millis(b.DownDelay),
		UseCarrier:  useCarrier,
		ARPInterval: millis(b.ARPInterval),
		ARPTargets:  targets,
		ARPValidate: validate,
		Primary:     strings.TrimSpace(b.Primary),
		FailOverMac: failOverMac,
		LacpRate:    lacpRate,
	}
	return p, p.Validate()
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// trim removes surrounding spaces and drops empty entries.
func trim(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
