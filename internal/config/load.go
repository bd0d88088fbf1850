package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// EnvConfigPath names the variable that points at the YAML file when no
// path is given to Load.
const EnvConfigPath = "FTM_CONFIG"

// Load merges Defaults, the YAML file at path (or $FTM_CONFIG) and FTM_*
// environment overrides, then validates the result. A named file that
// cannot be read is an error; no file at all is not.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

type envOverride struct {
	name  string
	apply func(string) error
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func uintVar[T ~uint8 | ~uint16 | ~uint32](dst *T, bits int) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return err
		}
		*dst = T(n)
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		{"FTM_LOG_LEVEL", stringVar(&cfg.Log.Level)},

		{"FTM_STATION_SSID", stringVar(&cfg.Station.SSID)},
		{"FTM_STATION_PASSPHRASE", stringVar(&cfg.Station.Passphrase)},
		{"FTM_STATION_MAC", stringVar(&cfg.Station.MAC)},
		{"FTM_JOIN_TIMEOUT", durationVar(&cfg.Station.JoinTimeout)},
		{"FTM_MAX_RETRIES", intVar(&cfg.Station.MaxRetries)},

		{"FTM_AP_SSID", stringVar(&cfg.AccessPoint.SSID)},
		{"FTM_AP_PASSPHRASE", stringVar(&cfg.AccessPoint.Passphrase)},
		{"FTM_AP_CHANNEL", uintVar(&cfg.AccessPoint.Channel, 8)},
		{"FTM_AP_BANDWIDTH", uintVar(&cfg.AccessPoint.Bandwidth, 8)},

		{"FTM_RANGING_FRAME_COUNT", uintVar(&cfg.Ranging.FrameCount, 8)},
		{"FTM_RANGING_BURST_PERIOD", uintVar(&cfg.Ranging.BurstPeriod, 16)},
		{"FTM_MEASUREMENT_DELAY", durationVar(&cfg.Ranging.MeasurementDelay)},

		{"FTM_NOTIFY_ENABLED", boolVar(&cfg.Notify.Enabled)},
		{"FTM_NOTIFY_DELAY", durationVar(&cfg.Notify.Delay)},

		{"FTM_HEARTBEAT_INTERVAL", durationVar(&cfg.Responder.HeartbeatInterval)},

		{"FTM_API_ENABLED", boolVar(&cfg.API.Enabled)},
		{"FTM_API_LISTEN", stringVar(&cfg.API.Listen)},
		{"FTM_AUTH_ENABLED", boolVar(&cfg.API.Auth.Enabled)},
		{"FTM_AUTH_SECRET", stringVar(&cfg.API.Auth.Secret)},

		{"FTM_AUDIT_PATH", stringVar(&cfg.Audit.Path)},
		{"FTM_RECORDS_PATH", stringVar(&cfg.Records.Path)},
		{"FTM_DISCOVERY_ENABLED", boolVar(&cfg.Discovery.Enabled)},
	}

	for _, o := range overrides {
		val, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.apply(strings.TrimSpace(val)); err != nil {
			return fmt.Errorf("%s=%q: %w", o.name, val, err)
		}
	}
	return nil
}
