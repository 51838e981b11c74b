// Package config loads btrelay settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/internal/cursor"
	"github.com/srg/btrelay/internal/publish"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/internal/scanner"
	"github.com/srg/btrelay/pkg/sensor"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel string      `yaml:"log_level" json:"log_level" default:"info"`
	Scan     ScanConfig  `yaml:"scan" json:"scan"`
	Relay    RelayConfig `yaml:"relay" json:"relay"`
	MQTT     MQTTConfig  `yaml:"mqtt" json:"mqtt"`
	Store    StoreConfig `yaml:"store" json:"store"`
}

type ScanConfig struct {
	// Duration limits a scan; zero scans until interrupted.
	Duration        time.Duration `yaml:"duration" json:"duration"`
	AllowDuplicates bool          `yaml:"allow_duplicates" json:"allow_duplicates" default:"true"`
	Services        []string      `yaml:"services" json:"services"`
	Allow           []string      `yaml:"allow" json:"allow"`
	Block           []string      `yaml:"block" json:"block"`
}

type RelayConfig struct {
	TTL            time.Duration `yaml:"ttl" json:"ttl" default:"10m"`
	ReportInterval time.Duration `yaml:"report_interval" json:"report_interval" default:"5m"`
	Warmup         time.Duration `yaml:"warmup" json:"warmup" default:"30s"`
	ReportOnChange bool          `yaml:"report_on_change" json:"report_on_change" default:"true"`

	// BTHomeKeys maps sensor addresses to hex bind keys.
	BTHomeKeys map[string]string `yaml:"bthome_keys" json:"bthome_keys"`
}

// MQTTConfig enables the MQTT sink when Broker is set.
type MQTTConfig struct {
	Broker      string        `yaml:"broker" json:"broker"`
	ClientID    string        `yaml:"client_id" json:"client_id" default:"btrelay"`
	Username    string        `yaml:"username" json:"username"`
	Password    string        `yaml:"password" json:"-"`
	TopicPrefix string        `yaml:"topic_prefix" json:"topic_prefix" default:"btrelay"`
	QoS         byte          `yaml:"qos" json:"qos"`
	Retain      bool          `yaml:"retain" json:"retain"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" default:"5s"`
}

// StoreConfig enables the SQLite history when Path is set.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later, collecting every
// problem.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Scan.Duration < 0 {
		errs = append(errs, fmt.Errorf("scan.duration must not be negative"))
	}
	if _, err := c.ServiceUUIDs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseAddrs(c.Scan.Allow); err != nil {
		errs = append(errs, fmt.Errorf("scan.allow: %w", err))
	}
	if _, err := parseAddrs(c.Scan.Block); err != nil {
		errs = append(errs, fmt.Errorf("scan.block: %w", err))
	}
	if c.Relay.TTL < 0 || c.Relay.ReportInterval < 0 || c.Relay.Warmup < 0 {
		errs = append(errs, fmt.Errorf("relay durations must not be negative"))
	}
	if _, err := c.bthomeKeys(); err != nil {
		errs = append(errs, err)
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// ServiceUUIDs parses the scan service filter.
func (c *Config) ServiceUUIDs() ([]ble.UUID, error) {
	res := make([]ble.UUID, 0, len(c.Scan.Services))
	for _, s := range c.Scan.Services {
		u, err := ble.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("scan.services: invalid UUID %q: %w", s, err)
		}
		res = append(res, u)
	}
	return res, nil
}

// ScanOptions converts the scan section. Call Validate first.
func (c *Config) ScanOptions() *scanner.Options {
	uuids, _ := c.ServiceUUIDs()
	return &scanner.Options{
		Duration:        c.Scan.Duration,
		AllowDuplicates: c.Scan.AllowDuplicates,
		ServiceUUIDs:    uuids,
	}
}

// RelayOptions converts the relay and scan filter sections. Call Validate
// first.
func (c *Config) RelayOptions() relay.Config {
	rc := relay.DefaultConfig()
	rc.TTL = c.Relay.TTL
	rc.ReportInterval = c.Relay.ReportInterval
	rc.Warmup = c.Relay.Warmup
	rc.ReportOnChange = c.Relay.ReportOnChange
	rc.BTHomeKeys, _ = c.bthomeKeys()
	rc.AllowList, _ = parseAddrs(c.Scan.Allow)
	rc.BlockList, _ = parseAddrs(c.Scan.Block)
	return rc
}

func (c *Config) MQTTOptions() publish.MQTTConfig {
	return publish.MQTTConfig{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Username:    c.MQTT.Username,
		Password:    c.MQTT.Password,
		TopicPrefix: c.MQTT.TopicPrefix,
		QoS:         c.MQTT.QoS,
		Retain:      c.MQTT.Retain,
		Timeout:     c.MQTT.Timeout,
	}
}

func (c *Config) bthomeKeys() (map[sensor.Addr][]byte, error) {
	if len(c.Relay.BTHomeKeys) == 0 {
		return nil, nil
	}
	res := make(map[sensor.Addr][]byte, len(c.Relay.BTHomeKeys))
	for a, k := range c.Relay.BTHomeKeys {
		addr, err := sensor.ParseAddr(a)
		if err != nil {
			return nil, fmt.Errorf("relay.bthome_keys: %w", err)
		}
		key, err := cursor.FromHex(k)
		if err != nil {
			return nil, fmt.Errorf("relay.bthome_keys[%s]: %w", a, err)
		}
		if len(key) != 16 {
			return nil, fmt.Errorf("relay.bthome_keys[%s]: key must be 16 bytes, got %d", a, len(key))
		}
		res[addr] = key
	}
	return res, nil
}

func parseAddrs(in []string) ([]sensor.Addr, error) {
	var res []sensor.Addr
	for _, s := range in {
		a, err := sensor.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}
