package accesspoint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter/fake"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
)

func validConfig() Config {
	return Config{
		SSID:         "FTM",
		Passphrase:   "ftmftmftm",
		Channel:      1,
		Bandwidth:    20,
		MaxStations:  4,
		AuthMode:     "wpa2_psk",
		FTMResponder: true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty passphrase", func(c *Config) { c.Passphrase = "" }, ""},
		{"passphrase 1", func(c *Config) { c.Passphrase = "a" }, "passphrase"},
		{"passphrase 7", func(c *Config) { c.Passphrase = "abcdefg" }, "passphrase"},
		{"passphrase 8", func(c *Config) { c.Passphrase = "abcdefgh" }, ""},
		{"passphrase 64", func(c *Config) { c.Passphrase = strings.Repeat("p", 64) }, ""},
		{"passphrase 65", func(c *Config) { c.Passphrase = strings.Repeat("p", 65) }, "passphrase"},
		{"channel 0", func(c *Config) { c.Channel = 0 }, "channel"},
		{"channel 14", func(c *Config) { c.Channel = 14 }, ""},
		{"channel 15", func(c *Config) { c.Channel = 15 }, "channel"},
		{"bandwidth 40", func(c *Config) { c.Bandwidth = 40 }, ""},
		{"bandwidth 80", func(c *Config) { c.Bandwidth = 80 }, "bandwidth"},
		{"bandwidth 0", func(c *Config) { c.Bandwidth = 0 }, "bandwidth"},
		{"ssid 32", func(c *Config) { c.SSID = strings.Repeat("s", 32) }, ""},
		{"ssid 33", func(c *Config) { c.SSID = strings.Repeat("s", 33) }, "ssid"},
		{"ssid empty", func(c *Config) { c.SSID = "" }, "ssid"},
		{"no stations", func(c *Config) { c.MaxStations = 0 }, "max_stations"},
		{"unknown auth", func(c *Config) { c.AuthMode = "wep" }, "auth_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateAcceptsEveryChannel(t *testing.T) {
	for ch := uint8(1); ch <= 14; ch++ {
		cfg := validConfig()
		cfg.Channel = ch
		assert.NoError(t, cfg.Validate(), "channel %d", ch)
	}
}

func TestSettings(t *testing.T) {
	s := validConfig().Settings()
	assert.Equal(t, adapter.AuthWPA2PSK, s.AuthMode)
	assert.Equal(t, adapter.BandwidthHT20, s.Bandwidth)
	assert.True(t, s.FTMResponder)

	open := validConfig()
	open.Passphrase = ""
	open.Bandwidth = 40
	s = open.Settings()
	assert.Equal(t, adapter.AuthOpen, s.AuthMode)
	assert.Equal(t, adapter.BandwidthHT40, s.Bandwidth)
}

func newStarter(t *testing.T) (*Starter, *fake.Driver) {
	t.Helper()
	drv := fake.New(fake.Config{EventDelay: time.Millisecond})
	t.Cleanup(func() { _ = drv.Close() })
	roles := radio.NewManager(radio.ManagerConfig{Driver: drv})
	return NewStarter(StarterConfig{Roles: roles, Driver: drv}), drv
}

func TestStartAppliesSettings(t *testing.T) {
	s, drv := newStarter(t)
	tracker := NewTracker()

	require.NoError(t, s.Start(context.Background(), validConfig()))

	st := drv.Snapshot()
	assert.Equal(t, adapter.RoleAccessPoint, st.Role)
	require.NotNil(t, st.AccessPoint)
	assert.Equal(t, "FTM", st.AccessPoint.SSID)
	assert.Equal(t, uint8(4), st.AccessPoint.MaxStations)

	select {
	case ev := <-drv.Events():
		require.Equal(t, adapter.EventAccessPointStarted, ev.Kind)
		tracker.HandleStarted()
	case <-time.After(time.Second):
		t.Fatal("no start event")
	}
	running, since := tracker.Running()
	assert.True(t, running)
	assert.False(t, since.IsZero())
}

func TestStartTwiceIsIdempotent(t *testing.T) {
	s, drv := newStarter(t)
	require.NoError(t, s.Start(context.Background(), validConfig()))
	require.NoError(t, s.Start(context.Background(), validConfig()))
	assert.Equal(t, 1, drv.Calls(fake.OpSetRole))
	assert.Equal(t, 2, drv.Calls(fake.OpConfigureAccessPoint))
}

func TestStartRejectedAppliesNothing(t *testing.T) {
	s, drv := newStarter(t)
	cfg := validConfig()
	cfg.Passphrase = "short"

	err := s.Start(context.Background(), cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "passphrase", verr.Field)
	assert.Equal(t, 0, drv.Calls(fake.OpRole))
	assert.Equal(t, 0, drv.Calls(fake.OpConfigureAccessPoint))
	assert.Nil(t, drv.Snapshot().AccessPoint)
}

func TestStartDriverFailure(t *testing.T) {
	s, drv := newStarter(t)
	drv.SetErrorSimulation(fake.OpConfigureAccessPoint, errors.New("ESP_ERR_WIFI_NOT_INIT"))
	err := s.Start(context.Background(), validConfig())
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
}

func TestTrackerWaitStarted(t *testing.T) {
	tr := NewTracker()
	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.HandleStarted()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.WaitStarted(ctx))

	tr.HandleStopped()
	running, _ := tr.Running()
	assert.False(t, running)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.ErrorIs(t, tr.WaitStarted(cancelled), context.Canceled)
}
