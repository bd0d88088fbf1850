// Package config loads the node configuration: built-in defaults, an
// optional YAML file, then FTM_* environment overrides, validated as a
// whole.
package config

import (
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// Config is the complete node configuration.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Station     StationConfig      `yaml:"station"`
	AccessPoint accesspoint.Config `yaml:"access_point"`
	Ranging     RangingConfig      `yaml:"ranging"`
	Notify      NotifyConfig       `yaml:"notify"`
	Responder   ResponderConfig    `yaml:"responder"`
	Driver      DriverConfig       `yaml:"driver"`
	API         APIConfig          `yaml:"api"`
	Audit       AuditConfig        `yaml:"audit"`
	Records     RecordsConfig      `yaml:"records"`
	Telemetry   TelemetryConfig    `yaml:"telemetry"`
	Discovery   DiscoveryConfig    `yaml:"discovery"`
}

// LogConfig selects the log level: error, warn, info, debug or trace.
type LogConfig struct {
	Level string `yaml:"level"`
}

// StationConfig is the initiator's association target and link profile.
type StationConfig struct {
	SSID        string        `yaml:"ssid"`
	Passphrase  string        `yaml:"passphrase"`
	MAC         string        `yaml:"mac"`
	PowerSave   bool          `yaml:"power_save"`
	JoinTimeout time.Duration `yaml:"join_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// RangingConfig holds the session parameters and the pause between
// sessions.
type RangingConfig struct {
	ranging.Params   `yaml:",inline"`
	MeasurementDelay time.Duration `yaml:"measurement_delay"`
}

// NotifyConfig describes the one-shot frame sent after every session.
type NotifyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Peer    string        `yaml:"peer"`
	Channel uint8         `yaml:"channel"`
	Payload string        `yaml:"payload"` // hex
	Delay   time.Duration `yaml:"delay"`
}

// ResponderConfig configures the responder heartbeat.
type ResponderConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DriverConfig configures the radio driver.
type DriverConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`

	// EventDelay and DistanceCm shape the simulated radio.
	EventDelay time.Duration `yaml:"event_delay"`
	DistanceCm uint32        `yaml:"distance_cm"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled bool       `yaml:"enabled"`
	Listen  string     `yaml:"listen"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Algorithm     string `yaml:"algorithm"` // HS256 or RS256
	Secret        string `yaml:"secret"`
	PublicKeyFile string `yaml:"public_key_file"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// AuditConfig configures the JSONL measurement log.
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RecordsConfig configures the binary record file. An empty path disables it.
type RecordsConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig configures the event stream.
type TelemetryConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	BufferSize        int           `yaml:"buffer_size"`
}

// DiscoveryConfig configures mDNS advertisement of the API.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Station: StationConfig{
			SSID:        "FTM",
			Passphrase:  "ftmftmftm",
			MAC:         "1a:00:00:00:00:00",
			PowerSave:   false,
			JoinTimeout: 5 * time.Second,
			MaxRetries:  5,
		},
		AccessPoint: accesspoint.Config{
			SSID:         "FTM",
			Passphrase:   "ftmftmftm",
			Channel:      1,
			Bandwidth:    20,
			MaxStations:  4,
			AuthMode:     "wpa2_psk",
			FTMResponder: true,
		},
		Ranging: RangingConfig{
			Params:           ranging.DefaultParams(),
			MeasurementDelay: 100 * time.Millisecond,
		},
		Notify: NotifyConfig{
			Enabled: true,
			Peer:    "ff:ff:ff:ff:ff:ff",
			Channel: 1,
			Payload: "01",
			Delay:   100 * time.Millisecond,
		},
		Responder: ResponderConfig{
			HeartbeatInterval: time.Second,
		},
		Driver: DriverConfig{
			CallTimeout: 2 * time.Second,
			EventDelay:  20 * time.Millisecond,
			DistanceCm:  150,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  ":8080",
			Auth: AuthConfig{
				Algorithm: "HS256",
			},
		},
		Audit: AuditConfig{
			Path:       "logs/measurements.jsonl",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Records: RecordsConfig{
			Path: "logs/ranging.cbor",
		},
		Telemetry: TelemetryConfig{
			HeartbeatInterval: 15 * time.Second,
			BufferSize:        50,
		},
		Discovery: DiscoveryConfig{
			Enabled: false,
			Service: "_ftm-node._tcp",
			Domain:  "local.",
		},
	}
}
