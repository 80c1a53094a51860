package relay

import (
	"cobalt"
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"net/netip"
	"os"
	"time"
)

var (
	ErrNoListen   = errors.New("relay: listen address missing")
	ErrNoUpstream = errors.New("relay: upstream address missing")
)

// Config is the relay configuration as read from YAML.
//
//	listen: ":9000"
//	upstream: "10.0.0.2:9000"
//	rate: 10000000      # bits/s, 0 = line rate
//	limit: 1000         # packets
//	metrics: ":9100"
//	aqm:
//	  interval: 100ms
//	  target: 5ms
//	  p_inc: 16777216
//	  p_dec: 1048576
type Config struct {
	Listen   string    `yaml:"listen"`
	Upstream string    `yaml:"upstream"`
	Rate     uint64    `yaml:"rate"`
	Limit    int       `yaml:"limit"`
	Metrics  string    `yaml:"metrics"`
	AQM      AQMConfig `yaml:"aqm"`
}

type AQMConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Target    time.Duration `yaml:"target"`
	Threshold time.Duration `yaml:"threshold"`
	PInc      uint32        `yaml:"p_inc"`
	PDec      uint32        `yaml:"p_dec"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relay: reading config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("relay: parsing config: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return ErrNoListen
	}
	if c.Upstream == "" {
		return ErrNoUpstream
	}
	if _, err := netip.ParseAddrPort(c.Upstream); err != nil {
		return fmt.Errorf("relay: upstream %q: %w", c.Upstream, err)
	}
	return nil
}

func (c *Config) UpstreamAddrPort() (netip.AddrPort, error) {
	return netip.ParseAddrPort(c.Upstream)
}

// Params builds the AQM parameters, unset values keep the cobalt defaults.
func (c *Config) Params() (*cobalt.Params, error) {
	var opts []cobalt.ParamsFunc
	if c.AQM.Interval != 0 {
		opts = append(opts, cobalt.WithInterval(c.AQM.Interval))
	}
	if c.AQM.Target != 0 {
		opts = append(opts, cobalt.WithTarget(c.AQM.Target))
	}
	if c.AQM.Threshold != 0 {
		opts = append(opts, cobalt.WithThreshold(c.AQM.Threshold))
	}
	if c.AQM.PInc != 0 {
		opts = append(opts, cobalt.WithPInc(c.AQM.PInc))
	}
	if c.AQM.PDec != 0 {
		opts = append(opts, cobalt.WithPDec(c.AQM.PDec))
	}
	return cobalt.NewParams(opts...)
}
