package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

// ConfigurationError reports a failed role query or change. It is fatal
// at startup.
type ConfigurationError struct {
	Op        string // "query", "set" or "link"
	Requested adapter.Role
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("radio: %s failed while requesting %s: %v", e.Op, e.Requested, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Status is the role manager's view of the radio.
type Status struct {
	Role       adapter.Role `json:"role"`
	Changes    int          `json:"changes"`
	LastChange time.Time    `json:"lastChange,omitempty"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Driver adapter.RoleDriver

	// StationLink is applied whenever a change adds the station duty.
	StationLink adapter.StationLink

	// CallTimeout bounds every driver call. Defaults to 2s.
	CallTimeout time.Duration

	// OnChange, if set, is called after every applied role change.
	OnChange func(from, to adapter.Role)

	LoggerFactory logging.LoggerFactory
}

// Manager serialises role changes against the driver, which holds the
// single authoritative role.
type Manager struct {
	mu       sync.Mutex
	driver   adapter.RoleDriver
	link     adapter.StationLink
	timeout  time.Duration
	onChange func(from, to adapter.Role)
	log      logging.LeveledLogger

	last       adapter.Role
	changes    int
	lastChange time.Time
}

// NewManager creates a role manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Manager{
		driver:   cfg.Driver,
		link:     cfg.StationLink,
		timeout:  cfg.CallTimeout,
		onChange: cfg.OnChange,
		log:      cfg.LoggerFactory.NewLogger("radio"),
	}
}

// Request merges requested into the driver's current role and applies the
// result. It returns the role in effect afterwards. Merge errors
// (ErrStationActive, ErrAccessPointActive, ErrNoChange, ErrInvalidRole)
// are returned unchanged with nothing applied; driver failures are
// *ConfigurationError.
func (m *Manager) Request(ctx context.Context, requested adapter.Role) (adapter.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.query(ctx)
	if err != nil {
		return m.last, &ConfigurationError{Op: "query", Requested: requested, Err: err}
	}
	m.last = current

	next, err := Merge(current, requested)
	if err != nil {
		if errors.Is(err, ErrNoChange) {
			m.log.Debugf("request %s: %v (role %s)", requested, err, current)
		}
		return current, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.driver.SetRole(callCtx, next); err != nil {
		return current, &ConfigurationError{Op: "set", Requested: requested, Err: err}
	}
	m.last = next
	m.changes++
	m.lastChange = time.Now()
	m.log.Infof("role %s -> %s", current, next)

	if !current.HasStation() && next.HasStation() {
		if err := m.driver.ConfigureStationLink(callCtx, m.link); err != nil {
			return next, &ConfigurationError{Op: "link", Requested: requested, Err: err}
		}
		if !m.link.MAC.IsZero() {
			m.log.Infof("station address %s, power save %t", m.link.MAC, m.link.PowerSave)
		}
	}

	if m.onChange != nil {
		m.onChange(current, next)
	}
	return next, nil
}

// Current queries the driver role.
func (m *Manager) Current(ctx context.Context) (adapter.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, err := m.query(ctx)
	if err != nil {
		return m.last, err
	}
	m.last = role
	return role, nil
}

// Status returns the last known role and change history without touching
// the driver.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Role: m.last, Changes: m.changes, LastChange: m.lastChange}
}

func (m *Manager) query(ctx context.Context) (adapter.Role, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.driver.Role(callCtx)
}
