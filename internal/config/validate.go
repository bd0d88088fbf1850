package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

// Validate checks the whole configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}
	if err := validateStation(&cfg.Station); err != nil {
		return fmt.Errorf("station validation failed: %w", err)
	}
	if err := cfg.AccessPoint.Validate(); err != nil {
		return fmt.Errorf("access point validation failed: %w", err)
	}
	if err := validateRanging(&cfg.Ranging); err != nil {
		return fmt.Errorf("ranging validation failed: %w", err)
	}
	if err := validateNotify(&cfg.Notify); err != nil {
		return fmt.Errorf("notify validation failed: %w", err)
	}
	if cfg.Responder.HeartbeatInterval <= 0 {
		return fmt.Errorf("responder validation failed: heartbeat interval must be positive, got %v", cfg.Responder.HeartbeatInterval)
	}
	if cfg.Driver.CallTimeout <= 0 {
		return fmt.Errorf("driver validation failed: call timeout must be positive, got %v", cfg.Driver.CallTimeout)
	}
	if err := validateAPI(&cfg.API); err != nil {
		return fmt.Errorf("api validation failed: %w", err)
	}
	if cfg.Telemetry.BufferSize <= 0 {
		return fmt.Errorf("telemetry validation failed: buffer size must be positive, got %d", cfg.Telemetry.BufferSize)
	}
	if cfg.Telemetry.HeartbeatInterval <= 0 {
		return fmt.Errorf("telemetry validation failed: heartbeat interval must be positive, got %v", cfg.Telemetry.HeartbeatInterval)
	}
	if cfg.Discovery.Enabled && !strings.HasPrefix(cfg.Discovery.Service, "_") {
		return fmt.Errorf("discovery validation failed: service %q must start with '_'", cfg.Discovery.Service)
	}
	return nil
}

func validateStation(s *StationConfig) error {
	if s.SSID == "" || len(s.SSID) > 32 {
		return fmt.Errorf("ssid length %d not in 1..32", len(s.SSID))
	}
	if n := len(s.Passphrase); n != 0 && (n < 8 || n > 64) {
		return fmt.Errorf("passphrase length %d not 0 or 8..64", n)
	}
	if s.MAC != "" {
		if _, err := adapter.ParseHardwareAddr(s.MAC); err != nil {
			return err
		}
	}
	if s.JoinTimeout <= 0 {
		return fmt.Errorf("join timeout must be positive, got %v", s.JoinTimeout)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", s.MaxRetries)
	}
	return nil
}

func validateRanging(r *RangingConfig) error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.MeasurementDelay < 0 {
		return fmt.Errorf("measurement delay must not be negative, got %v", r.MeasurementDelay)
	}
	return nil
}

func validateNotify(n *NotifyConfig) error {
	if !n.Enabled {
		return nil
	}
	if _, err := adapter.ParseHardwareAddr(n.Peer); err != nil {
		return err
	}
	if n.Channel < 1 || n.Channel > 14 {
		return fmt.Errorf("channel %d not in 1..14", n.Channel)
	}
	payload, err := n.PayloadBytes()
	if err != nil {
		return err
	}
	if len(payload) == 0 || len(payload) > 250 {
		return fmt.Errorf("payload length %d not in 1..250", len(payload))
	}
	if n.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %v", n.Delay)
	}
	return nil
}

func validateAPI(a *APIConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Listen == "" {
		return fmt.Errorf("listen address required")
	}
	if !a.Auth.Enabled {
		return nil
	}
	switch a.Auth.Algorithm {
	case "HS256":
		if a.Auth.Secret == "" {
			return fmt.Errorf("HS256 requires a secret")
		}
	case "RS256":
		if a.Auth.PublicKeyFile == "" {
			return fmt.Errorf("RS256 requires a public key file")
		}
	default:
		return fmt.Errorf("unsupported algorithm %q", a.Auth.Algorithm)
	}
	return nil
}

// PayloadBytes decodes the hex payload.
func (n NotifyConfig) PayloadBytes() ([]byte, error) {
	b, err := hex.DecodeString(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("payload %q: %w", n.Payload, err)
	}
	return b, nil
}
