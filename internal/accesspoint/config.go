// Package accesspoint validates and starts the responder access point and
// tracks whether it is running.
package accesspoint

import (
	"fmt"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

const (
	MaxSSIDLength       = 32
	MinPassphraseLength = 8
	MaxPassphraseLength = 64
	MinChannel          = 1
	MaxChannel          = 14
)

// Config is the requested access-point configuration.
type Config struct {
	SSID         string `yaml:"ssid" json:"ssid"`
	Passphrase   string `yaml:"passphrase" json:"-"`
	Channel      uint8  `yaml:"channel" json:"channel"`
	Bandwidth    uint8  `yaml:"bandwidth" json:"bandwidth"`
	MaxStations  uint8  `yaml:"max_stations" json:"maxStations"`
	AuthMode     string `yaml:"auth_mode" json:"authMode"`
	FTMResponder bool   `yaml:"ftm_responder" json:"ftmResponder"`
}

// ValidationError rejects a configuration. Nothing is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("accesspoint: invalid %s: %s", e.Field, e.Reason)
}

var authModes = map[string]adapter.AuthMode{
	"":              adapter.AuthWPA2PSK,
	"open":          adapter.AuthOpen,
	"wpa2_psk":      adapter.AuthWPA2PSK,
	"wpa3_psk":      adapter.AuthWPA3PSK,
	"wpa2_wpa3_psk": adapter.AuthWPA2WPA3PSK,
}

// Validate checks every field and returns the first violation as a
// *ValidationError.
func (c Config) Validate() error {
	if len(c.SSID) == 0 || len(c.SSID) > MaxSSIDLength {
		return &ValidationError{Field: "ssid", Reason: fmt.Sprintf("length %d not in 1..%d", len(c.SSID), MaxSSIDLength)}
	}
	if n := len(c.Passphrase); n != 0 && (n < MinPassphraseLength || n > MaxPassphraseLength) {
		return &ValidationError{Field: "passphrase", Reason: fmt.Sprintf("length %d not 0 or %d..%d", n, MinPassphraseLength, MaxPassphraseLength)}
	}
	if c.Channel < MinChannel || c.Channel > MaxChannel {
		return &ValidationError{Field: "channel", Reason: fmt.Sprintf("%d not in %d..%d", c.Channel, MinChannel, MaxChannel)}
	}
	if c.Bandwidth != 20 && c.Bandwidth != 40 {
		return &ValidationError{Field: "bandwidth", Reason: fmt.Sprintf("%d MHz not 20 or 40", c.Bandwidth)}
	}
	if c.MaxStations == 0 || c.MaxStations > 10 {
		return &ValidationError{Field: "max_stations", Reason: fmt.Sprintf("%d not in 1..10", c.MaxStations)}
	}
	if _, ok := authModes[c.AuthMode]; !ok {
		return &ValidationError{Field: "auth_mode", Reason: fmt.Sprintf("unknown mode %q", c.AuthMode)}
	}
	return nil
}

// Settings converts a validated configuration to driver settings. An empty
// passphrase forces open authentication.
func (c Config) Settings() adapter.AccessPointSettings {
	auth := authModes[c.AuthMode]
	if c.Passphrase == "" {
		auth = adapter.AuthOpen
	}
	bw := adapter.BandwidthHT20
	if c.Bandwidth == 40 {
		bw = adapter.BandwidthHT40
	}
	return adapter.AccessPointSettings{
		SSID:         c.SSID,
		Passphrase:   c.Passphrase,
		Channel:      c.Channel,
		Bandwidth:    bw,
		MaxStations:  c.MaxStations,
		AuthMode:     auth,
		FTMResponder: c.FTMResponder,
	}
}
