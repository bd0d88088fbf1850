package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "FTM", cfg.Station.SSID)
	assert.Equal(t, "ftmftmftm", cfg.Station.Passphrase)
	assert.Equal(t, "1a:00:00:00:00:00", cfg.Station.MAC)
	assert.Equal(t, 5*time.Second, cfg.Station.JoinTimeout)
	assert.Equal(t, uint8(32), cfg.Ranging.FrameCount)
	assert.Equal(t, uint16(2), cfg.Ranging.BurstPeriod)
	assert.Equal(t, 100*time.Millisecond, cfg.Ranging.MinWait)
	assert.Equal(t, 100*time.Millisecond, cfg.Ranging.MeasurementDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Notify.Delay)
	assert.Equal(t, time.Second, cfg.Responder.HeartbeatInterval)
	assert.Equal(t, uint8(1), cfg.AccessPoint.Channel)
	assert.Equal(t, uint8(4), cfg.AccessPoint.MaxStations)

	payload, err := cfg.Notify.PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, payload)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
station:
  ssid: LAB
  join_timeout: 2s
access_point:
  ssid: LAB
  passphrase: ""
  channel: 6
  bandwidth: 40
  max_stations: 2
ranging:
  frame_count: 16
  burst_period: 0
  min_wait: 250ms
  measurement_delay: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "LAB", cfg.Station.SSID)
	assert.Equal(t, "ftmftmftm", cfg.Station.Passphrase, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Station.JoinTimeout)
	assert.Equal(t, uint8(6), cfg.AccessPoint.Channel)
	assert.Equal(t, uint8(40), cfg.AccessPoint.Bandwidth)
	assert.Empty(t, cfg.AccessPoint.Passphrase)
	assert.Equal(t, uint8(16), cfg.Ranging.FrameCount)
	assert.Zero(t, cfg.Ranging.BurstPeriod)
	assert.Equal(t, 250*time.Millisecond, cfg.Ranging.MinWait)
	assert.Equal(t, time.Second, cfg.Ranging.MeasurementDelay)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(EnvConfigPath, writeFile(t, "station:\n  ssid: ENV\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ENV", cfg.Station.SSID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "station:\n  sssid: typo\n"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FTM_LOG_LEVEL", "warn")
	t.Setenv("FTM_STATION_SSID", "OVERRIDE")
	t.Setenv("FTM_JOIN_TIMEOUT", "9s")
	t.Setenv("FTM_AP_CHANNEL", "11")
	t.Setenv("FTM_RANGING_BURST_PERIOD", "4")
	t.Setenv("FTM_NOTIFY_ENABLED", "false")
	t.Setenv("FTM_HEARTBEAT_INTERVAL", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "OVERRIDE", cfg.Station.SSID)
	assert.Equal(t, 9*time.Second, cfg.Station.JoinTimeout)
	assert.Equal(t, uint8(11), cfg.AccessPoint.Channel)
	assert.Equal(t, uint16(4), cfg.Ranging.BurstPeriod)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Responder.HeartbeatInterval)
}

func TestLoadEnvOverrideParseError(t *testing.T) {
	t.Setenv("FTM_AP_CHANNEL", "300")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FTM_AP_CHANNEL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log"},
		{"short station passphrase", func(c *Config) { c.Station.Passphrase = "abc" }, "station"},
		{"bad mac", func(c *Config) { c.Station.MAC = "xx" }, "station"},
		{"zero join timeout", func(c *Config) { c.Station.JoinTimeout = 0 }, "station"},
		{"ap channel 15", func(c *Config) { c.AccessPoint.Channel = 15 }, "access point"},
		{"zero frames", func(c *Config) { c.Ranging.FrameCount = 0 }, "ranging"},
		{"reserved burst period", func(c *Config) { c.Ranging.BurstPeriod = 1 }, "ranging"},
		{"burst period too long", func(c *Config) { c.Ranging.BurstPeriod = 65535 }, "ranging"},
		{"no burst period preference", func(c *Config) { c.Ranging.BurstPeriod = 0 }, ""},
		{"bad payload", func(c *Config) { c.Notify.Payload = "zz" }, "notify"},
		{"empty payload", func(c *Config) { c.Notify.Payload = "" }, "notify"},
		{"disabled notify skips checks", func(c *Config) { c.Notify.Enabled = false; c.Notify.Payload = "zz" }, ""},
		{"hs256 without secret", func(c *Config) { c.API.Auth.Enabled = true }, "api"},
		{"hs256 with secret", func(c *Config) { c.API.Auth.Enabled = true; c.API.Auth.Secret = "s" }, ""},
		{"rs256 without key", func(c *Config) { c.API.Auth.Enabled = true; c.API.Auth.Algorithm = "RS256" }, "api"},
		{"unknown alg", func(c *Config) { c.API.Auth.Enabled = true; c.API.Auth.Algorithm = "none" }, "api"},
		{"zero heartbeat", func(c *Config) { c.Responder.HeartbeatInterval = 0 }, "responder"},
		{"discovery service", func(c *Config) { c.Discovery.Enabled = true; c.Discovery.Service = "ftm._tcp" }, "discovery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.wantErr), err.Error())
		})
	}
	assert.Error(t, Validate(nil))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFactoryWritesAtLevel(t *testing.T) {
	var sb strings.Builder
	f := LogConfig{Level: "warn"}.LoggerFactory(&sb)
	log := f.NewLogger("test")
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, sb.String(), "hidden")
	assert.Contains(t, sb.String(), "shown")
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "ftm.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
