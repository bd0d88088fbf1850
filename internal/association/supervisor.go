// Package association establishes and supervises the station link to the
// responder access point, with bounded automatic reconnection.
package association

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

// ErrJoinTimeout means no association completed within the join timeout.
// The attempt keeps running and may still succeed later.
var ErrJoinTimeout = errors.New("association: join timed out")

// State is the station association state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of the association.
type Snapshot struct {
	State         State                `json:"state"`
	Peer          adapter.HardwareAddr `json:"peer"`
	Channel       uint8                `json:"channel"`
	SSID          string               `json:"ssid"`
	Retries       int                  `json:"retries"`
	AutoReconnect bool                 `json:"autoReconnect"`
	Since         time.Time            `json:"since"`
}

// Joined is the result of a successful Join.
type Joined struct {
	Peer    adapter.HardwareAddr
	Channel uint8
}

// RoleRequester merges a duty into the radio role. *radio.Manager
// implements it.
type RoleRequester interface {
	Request(ctx context.Context, requested adapter.Role) (adapter.Role, error)
}

// Config configures a Supervisor.
type Config struct {
	Roles  RoleRequester
	Driver adapter.StationDriver

	// MaxRetries bounds automatic reconnects. Defaults to
	// MaxConnectRetryAttempts.
	MaxRetries int

	// CallTimeout bounds every driver call. Defaults to 2s.
	CallTimeout time.Duration

	// OnChange, if set, receives every new snapshot.
	OnChange func(Snapshot)

	LoggerFactory logging.LoggerFactory
}

// Supervisor owns the association state. Join and Leave run on the driving
// goroutine; HandleConnected and HandleDisconnected run on the event
// dispatch goroutine.
type Supervisor struct {
	roles    RoleRequester
	driver   adapter.StationDriver
	timeout  time.Duration
	onChange func(Snapshot)
	log      logging.LeveledLogger

	joinMu sync.Mutex

	mu          sync.Mutex
	state       State
	disconnects uint64
	peer        adapter.HardwareAddr
	channel     uint8
	ssid        string
	auto        bool
	since       time.Time
	budget      *RetryBudget
	changed     chan struct{}
}

// NewSupervisor creates a supervisor in the Disconnected state.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = MaxConnectRetryAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Supervisor{
		roles:    cfg.Roles,
		driver:   cfg.Driver,
		timeout:  cfg.CallTimeout,
		onChange: cfg.OnChange,
		log:      cfg.LoggerFactory.NewLogger("association"),
		budget:   NewRetryBudget(cfg.MaxRetries),
		changed:  make(chan struct{}),
		since:    time.Now(),
	}
}

// Join associates with the access point ssid. An existing association is
// torn down first. Join returns ErrJoinTimeout when the link is not up
// within timeout; automatic reconnection stays enabled in that case.
func (s *Supervisor) Join(ctx context.Context, ssid, passphrase string, timeout time.Duration) (Joined, error) {
	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	if _, err := s.roles.Request(ctx, adapter.RoleStation); err != nil {
		if !errors.Is(err, radio.ErrStationActive) {
			return Joined{}, err
		}
		if err := s.teardown(ctx); err != nil {
			return Joined{}, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.driver.ConfigureStation(callCtx, adapter.StationConfig{SSID: ssid, Passphrase: passphrase})
	cancel()
	if err != nil {
		return Joined{}, fmt.Errorf("configure station: %w", err)
	}

	s.mu.Lock()
	s.auto = true
	s.budget.Reset()
	s.ssid = ssid
	snap := s.setLocked(StateConnecting)
	s.mu.Unlock()
	s.notify(snap)

	s.log.Infof("joining %q", ssid)
	callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	err = s.driver.Connect(callCtx)
	cancel()
	if err != nil {
		s.mu.Lock()
		snap := s.setLocked(StateDisconnected)
		s.mu.Unlock()
		s.notify(snap)
		return Joined{}, fmt.Errorf("connect: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.WaitState(waitCtx, StateConnected); err != nil {
		if ctx.Err() != nil {
			return Joined{}, ctx.Err()
		}
		s.log.Warnf("no association with %q within %v", ssid, timeout)
		return Joined{}, ErrJoinTimeout
	}

	snap = s.Snapshot()
	s.log.Infof("joined %q via %s on channel %d", ssid, snap.Peer, snap.Channel)
	return Joined{Peer: snap.Peer, Channel: snap.Channel}, nil
}

// Leave disassociates intentionally. No reconnect follows.
func (s *Supervisor) Leave(ctx context.Context) error {
	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	if err := s.teardown(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.budget.Reset()
	snap := s.setLocked(StateDisconnected)
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// teardown disables reconnection and, unless already disconnected,
// disconnects and waits for the driver to report the link down. The wait
// covers an attempt still in progress, so its late result cannot satisfy
// the next Join. A driver that never reports is given up on after the call
// timeout.
func (s *Supervisor) teardown(ctx context.Context) error {
	s.mu.Lock()
	s.auto = false
	state := s.state
	seen := s.disconnects
	s.mu.Unlock()

	if state == StateDisconnected {
		return nil
	}
	s.log.Infof("tearing down association (%s)", state)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.driver.Disconnect(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.waitDisconnect(waitCtx, seen)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warnf("no disconnect reported within %v", s.timeout)
	}

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	snap := s.setLocked(StateDisconnected)
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// waitDisconnect blocks until more than seen disconnect events were handled.
func (s *Supervisor) waitDisconnect(ctx context.Context, seen uint64) error {
	for {
		s.mu.Lock()
		if s.disconnects > seen {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleConnected records an established association.
func (s *Supervisor) HandleConnected(assoc adapter.Association) {
	s.mu.Lock()
	s.peer = assoc.Peer
	s.channel = assoc.Channel
	if assoc.SSID != "" {
		s.ssid = assoc.SSID
	}
	snap := s.setLocked(StateConnected)
	s.mu.Unlock()

	s.log.Infof("associated with %s channel %d (retries %d)", assoc.Peer, assoc.Channel, snap.Retries)
	s.notify(snap)
}

// HandleDisconnected records a lost or failed association and reissues a
// connect while auto-reconnect is enabled and the retry budget allows.
// Exhaustion leaves the supervisor Disconnected without further action.
func (s *Supervisor) HandleDisconnected(assoc adapter.Association) {
	s.mu.Lock()
	s.disconnects++
	retry := s.auto && s.budget.Allow()
	attempt, max := s.budget.Used(), s.budget.Max()
	next := StateDisconnected
	if retry {
		next = StateConnecting
	}
	snap := s.setLocked(next)
	s.mu.Unlock()
	s.notify(snap)

	if !retry {
		s.log.Debugf("disconnected (reason %d), not reconnecting", assoc.Reason)
		return
	}

	s.log.Infof("disconnected (reason %d), reconnect attempt %d/%d", assoc.Reason, attempt, max)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.driver.Connect(ctx); err != nil {
		s.log.Errorf("reconnect attempt %d: %v", attempt, err)
		s.mu.Lock()
		snap := s.setLocked(StateDisconnected)
		s.mu.Unlock()
		s.notify(snap)
	}
}

// WaitState blocks until the association reaches state or ctx ends.
func (s *Supervisor) WaitState(ctx context.Context, state State) error {
	for {
		s.mu.Lock()
		if s.state == state {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns the current association view.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Connected reports whether the station is associated.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

func (s *Supervisor) setLocked(state State) Snapshot {
	if s.state != state {
		s.since = time.Now()
	}
	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})
	return s.snapshotLocked()
}

func (s *Supervisor) snapshotLocked() Snapshot {
	return Snapshot{
		State:         s.state,
		Peer:          s.peer,
		Channel:       s.channel,
		SSID:          s.ssid,
		Retries:       s.budget.Used(),
		AutoReconnect: s.auto,
		Since:         s.since,
	}
}

func (s *Supervisor) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
