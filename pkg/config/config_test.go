package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "btrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.Scan.Duration)
	assert.True(t, cfg.Scan.AllowDuplicates)
	assert.Equal(t, 10*time.Minute, cfg.Relay.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Relay.ReportInterval)
	assert.Equal(t, 30*time.Second, cfg.Relay.Warmup)
	assert.True(t, cfg.Relay.ReportOnChange)
	assert.Equal(t, "btrelay", cfg.MQTT.ClientID)
	assert.Equal(t, "btrelay", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 5*time.Second, cfg.MQTT.Timeout)
	assert.Empty(t, cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
scan:
  duration: 1m
  services: ["fcd2", "181a"]
  block: ["a4:c1:38:00:00:09"]
relay:
  ttl: 2m
  report_on_change: false
  bthome_keys:
    "A4:C1:38:00:00:01": "231d39c1d7cc1ab1aee224cd096db932"
mqtt:
  broker: tcp://localhost:1883
  qos: 1
store:
  path: /tmp/btrelay.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Scan.Duration)
	assert.True(t, cfg.Scan.AllowDuplicates, "unset values MUST keep defaults")
	assert.Equal(t, 2*time.Minute, cfg.Relay.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Relay.ReportInterval)
	assert.False(t, cfg.Relay.ReportOnChange, "explicit false MUST override a true default")
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "btrelay", cfg.MQTT.ClientID)

	uuids, err := cfg.ServiceUUIDs()
	require.NoError(t, err)
	assert.Equal(t, []ble.UUID{ble.UUID16(0xfcd2), ble.UUID16(0x181a)}, uuids)

	rc := cfg.RelayOptions()
	assert.Equal(t, 2*time.Minute, rc.TTL)
	assert.False(t, rc.ReportOnChange)
	assert.Equal(t, []sensor.Addr{{0xa4, 0xc1, 0x38, 0, 0, 9}}, rc.BlockList)
	assert.Empty(t, rc.AllowList)
	key := rc.BTHomeKeys[sensor.Addr{0xa4, 0xc1, 0x38, 0, 0, 1}]
	assert.Len(t, key, 16)
	assert.Equal(t, byte(0x23), key[0])

	mc := cfg.MQTTOptions()
	assert.Equal(t, byte(1), mc.QoS)
	assert.Equal(t, 5*time.Second, mc.Timeout)

	so := cfg.ScanOptions()
	assert.Equal(t, time.Minute, so.Duration)
	assert.True(t, so.AllowDuplicates)
	assert.Len(t, so.ServiceUUIDs, 2)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	_, err = Load(writeConfig(t, "relay: [not, a, map]"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "log_level: loud"))
	assert.ErrorContains(t, err, "invalid config")
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "not a valid logrus Level",
		},
		{
			name:    "negative scan duration",
			mutate:  func(c *Config) { c.Scan.Duration = -time.Second },
			wantErr: "scan.duration",
		},
		{
			name:    "bad service UUID",
			mutate:  func(c *Config) { c.Scan.Services = []string{"xyz"} },
			wantErr: "scan.services",
		},
		{
			name:    "bad allow address",
			mutate:  func(c *Config) { c.Scan.Allow = []string{"a4:c1:38"} },
			wantErr: "scan.allow",
		},
		{
			name:    "short bind key",
			mutate:  func(c *Config) { c.Relay.BTHomeKeys = map[string]string{"a4:c1:38:00:00:01": "0011"} },
			wantErr: "key must be 16 bytes",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{name: "debug", logLevel: "debug", want: logrus.DebugLevel},
		{name: "warn", logLevel: "warn", want: logrus.WarnLevel},
		{name: "invalid falls back to info", logLevel: "nope", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.Equal(t, tt.want, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
