package accesspoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
)

// RoleRequester merges a duty into the radio role. *radio.Manager
// implements it.
type RoleRequester interface {
	Request(ctx context.Context, requested adapter.Role) (adapter.Role, error)
}

// StarterConfig configures a Starter.
type StarterConfig struct {
	Roles  RoleRequester
	Driver adapter.AccessPointDriver

	// CallTimeout bounds the driver call. Defaults to 2s.
	CallTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// Starter validates and applies access-point configurations.
type Starter struct {
	roles   RoleRequester
	driver  adapter.AccessPointDriver
	timeout time.Duration
	log     logging.LeveledLogger
}

// NewStarter creates a Starter.
func NewStarter(cfg StarterConfig) *Starter {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Starter{
		roles:   cfg.Roles,
		driver:  cfg.Driver,
		timeout: cfg.CallTimeout,
		log:     cfg.LoggerFactory.NewLogger("accesspoint"),
	}
}

// Start validates cfg, adds the access-point duty to the radio role and
// applies the settings. A *ValidationError means nothing was applied. An
// already active access-point duty is not an error.
func (s *Starter) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := s.roles.Request(ctx, adapter.RoleAccessPoint); err != nil && !errors.Is(err, radio.ErrAccessPointActive) {
		return err
	}

	settings := cfg.Settings()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.driver.ConfigureAccessPoint(callCtx, settings); err != nil {
		return fmt.Errorf("configure access point: %w", err)
	}
	s.log.Infof("access point %q on channel %d (%d MHz, %s, max %d stations, ftm responder %t)",
		settings.SSID, settings.Channel, settings.Bandwidth, settings.AuthMode, settings.MaxStations, settings.FTMResponder)
	return nil
}

// Tracker records access-point started and stopped events.
type Tracker struct {
	mu      sync.Mutex
	running bool
	since   time.Time
	changed chan struct{}
}

// NewTracker returns a tracker in the stopped state.
func NewTracker() *Tracker {
	return &Tracker{changed: make(chan struct{})}
}

// HandleStarted records that the access point is running.
func (t *Tracker) HandleStarted() {
	t.set(true)
}

// HandleStopped records that the access point stopped.
func (t *Tracker) HandleStopped() {
	t.set(false)
}

// Running reports whether the access point runs and since when.
func (t *Tracker) Running() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running, t.since
}

// WaitStarted blocks until the access point runs or ctx ends.
func (t *Tracker) WaitStarted(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.running {
			t.mu.Unlock()
			return nil
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tracker) set(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running == running {
		return
	}
	t.running = running
	t.since = time.Now()
	close(t.changed)
	t.changed = make(chan struct{})
}
