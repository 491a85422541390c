// Package config loads client settings from YAML.
package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"torrent-rpc/codec"
	"torrent-rpc/loadbalance"
)

// Retry controls how often a call that failed locally is repeated.
type Retry struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// RateLimit caps outgoing calls per second. A zero Rate disables it.
type RateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// Config holds everything a client needs to reach daemons.
type Config struct {
	Service           string        `yaml:"service"`
	EtcdEndpoints     []string      `yaml:"etcd_endpoints"`
	Daemons           []string      `yaml:"daemons"`
	Codec             string        `yaml:"codec"`
	Balancer          string        `yaml:"balancer"`
	PoolSize          int           `yaml:"pool_size"`
	Timeout           time.Duration `yaml:"timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Retry             Retry         `yaml:"retry"`
	RateLimit         RateLimit     `yaml:"rate_limit"`
	LogLevel          string        `yaml:"log_level"`
}

// Default returns the settings used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Service:           "torrent-daemon",
		Codec:             "json",
		Balancer:          "round-robin",
		PoolSize:          2,
		Timeout:           5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		Retry:             Retry{Attempts: 3, Delay: 100 * time.Millisecond},
		LogLevel:          "info",
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading config %s", path)
	}
	cfg, err := Parse(data)
	return cfg, errors.Annotatef(err, "config %s", path)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Service == "" {
		return errors.NotValidf("empty service")
	}
	if len(c.EtcdEndpoints) == 0 && len(c.Daemons) == 0 {
		return errors.NotValidf("config without etcd_endpoints or daemons")
	}
	for _, addr := range c.Daemons {
		if addr == "" {
			return errors.NotValidf("empty daemon address")
		}
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return errors.Trace(err)
	}
	if _, err := loadbalance.New(c.Balancer); err != nil {
		return errors.Trace(err)
	}
	if c.PoolSize < 1 {
		return errors.NotValidf("pool_size %d", c.PoolSize)
	}
	if c.Timeout < 0 {
		return errors.NotValidf("timeout %s", c.Timeout)
	}
	if c.Retry.Attempts < 0 || c.Retry.Delay < 0 {
		return errors.NotValidf("retry %+v", c.Retry)
	}
	if c.RateLimit.Rate < 0 || (c.RateLimit.Rate > 0 && c.RateLimit.Burst < 1) {
		return errors.NotValidf("rate_limit %+v", c.RateLimit)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.NotValidf("log_level %q", c.LogLevel)
	}
	return nil
}

// CodecType returns the validated codec.
func (c *Config) CodecType() codec.CodecType {
	t, _ := codec.ParseCodecType(c.Codec)
	return t
}

// ApplyLogLevel sets the process-wide logrus level.
func (c *Config) ApplyLogLevel() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
}
