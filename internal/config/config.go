// Package config loads process configuration from a YAML file, in the
// shape of dmitrymodder-minewire/main.go's Config struct + "open file,
// decode, apply defaults if not specified" pattern.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tickline/lockstep/internal/errs"
)

// Host is the configuration for cmd/lockstephost.
type Host struct {
	ListenAddr string `yaml:"listen_addr"`

	MaxConnections int `yaml:"max_connections"`

	NimbleVersion [3]uint16 `yaml:"nimble_version"`
	AppVersion    [3]uint16 `yaml:"app_version"`

	TickDuration     time.Duration `yaml:"tick_duration"`
	BlobChunkSize    uint32        `yaml:"blob_chunk_size"`
	BlobResendPeriod time.Duration `yaml:"blob_resend_period"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Client is the configuration for cmd/lockstepclient.
type Client struct {
	HostAddr string `yaml:"host_addr"`

	NimbleVersion  [3]uint16 `yaml:"nimble_version"`
	AppVersion     [3]uint16 `yaml:"app_version"`
	UseDebugStream bool      `yaml:"use_debug_stream"`

	TickDuration time.Duration `yaml:"tick_duration"`
	LogLevel     string        `yaml:"log_level"`
}

// applyHostDefaults fills in zero-valued fields the way minewire's main.go
// applies defaults after decoding server.yaml.
func applyHostDefaults(c *Host) {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:27050"
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 64
	}
	if c.TickDuration == 0 {
		c.TickDuration = 50 * time.Millisecond
	}
	if c.BlobChunkSize == 0 {
		c.BlobChunkSize = 1024
	}
	if c.BlobResendPeriod == 0 {
		c.BlobResendPeriod = 96 * time.Millisecond
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = "127.0.0.1:9090"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyClientDefaults(c *Client) {
	if c.TickDuration == 0 {
		c.TickDuration = 50 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadHost reads and decodes a Host config from path, applying defaults for
// anything left unset.
func LoadHost(path string) (Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return Host{}, errs.Classify(errs.Critical, err)
	}
	defer f.Close()

	var cfg Host
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return Host{}, errs.Classify(errs.Critical, err)
	}
	applyHostDefaults(&cfg)
	return cfg, nil
}

// LoadClient reads and decodes a Client config from path, applying defaults
// for anything left unset.
func LoadClient(path string) (Client, error) {
	f, err := os.Open(path)
	if err != nil {
		return Client{}, errs.Classify(errs.Critical, err)
	}
	defer f.Close()

	var cfg Client
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return Client{}, errs.Classify(errs.Critical, err)
	}
	applyClientDefaults(&cfg)
	return cfg, nil
}
