// Package fake provides an in-memory radio driver.
//
// The fake behaves like a station/access-point radio with an FTM initiator:
// role changes, association, access-point start and ranging sessions all
// complete asynchronously through the Events channel, fed by a single
// dispatch worker. Association and ranging behaviour can be scripted.
package fake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

// Op names a driver call for error simulation and call counting.
type Op string

const (
	OpRole                 Op = "Role"
	OpSetRole              Op = "SetRole"
	OpConfigureStationLink Op = "ConfigureStationLink"
	OpConfigureStation     Op = "ConfigureStation"
	OpConnect              Op = "Connect"
	OpDisconnect           Op = "Disconnect"
	OpConfigureAccessPoint Op = "ConfigureAccessPoint"
	OpStartSession         Op = "StartSession"
	OpEndSession           Op = "EndSession"
	OpSendNotification     Op = "SendNotification"
)

// Disconnect reason codes reported by the fake.
const (
	ReasonAssocLeave uint8 = 8
	ReasonNoAPFound  uint8 = 201
)

// ConnectFunc decides whether connect attempt n (1-based since the last
// ConfigureStation) associates.
type ConnectFunc func(attempt int, cfg adapter.StationConfig) bool

// SessionFunc produces the report for a session and the delay before it is
// delivered. A nil report means the session never reports.
type SessionFunc func(req adapter.SessionRequest) (*adapter.Report, time.Duration)

// Config configures a fake driver. Zero values select defaults.
type Config struct {
	// BSSID is the address of the access point the station joins.
	BSSID adapter.HardwareAddr

	// Channel is the access point's primary channel.
	Channel uint8

	// EventDelay is the latency of association and access-point events.
	EventDelay time.Duration

	// DistanceCm is the distance reported by the default session behaviour.
	DistanceCm uint32

	LoggerFactory logging.LoggerFactory
}

// DefaultBSSID is the access-point address used when Config.BSSID is zero.
var DefaultBSSID = adapter.HardwareAddr{0x24, 0x0a, 0xc4, 0x00, 0x00, 0x01}

// State is a snapshot of the fake radio.
type State struct {
	Role          adapter.Role
	Link          adapter.StationLink
	Station       adapter.StationConfig
	AccessPoint   *adapter.AccessPointSettings
	APRunning     bool
	Connected     bool
	SessionActive bool
}

type pending struct {
	delay   time.Duration
	event   adapter.Event
	session uint64
}

// Driver is a simulated radio implementing adapter.Driver.
type Driver struct {
	mu  sync.Mutex
	cfg Config
	log logging.LeveledLogger

	role       adapter.Role
	link       adapter.StationLink
	station    adapter.StationConfig
	ap         *adapter.AccessPointSettings
	apRunning  bool
	connected  bool
	attempts   int
	sessionSeq uint64
	inSession  bool

	connectFn ConnectFunc
	sessionFn SessionFunc
	errs      map[Op]error
	calls     map[Op]int
	sent      []adapter.Notification

	queue  chan pending
	events chan adapter.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a fake driver and starts its dispatch worker.
func New(cfg Config) *Driver {
	if cfg.BSSID.IsZero() {
		cfg.BSSID = DefaultBSSID
	}
	if cfg.Channel == 0 {
		cfg.Channel = 1
	}
	if cfg.EventDelay == 0 {
		cfg.EventDelay = 10 * time.Millisecond
	}
	if cfg.DistanceCm == 0 {
		cfg.DistanceCm = 150
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		cfg:    cfg,
		log:    cfg.LoggerFactory.NewLogger("fake-driver"),
		errs:   make(map[Op]error),
		calls:  make(map[Op]int),
		queue:  make(chan pending, 64),
		events: make(chan adapter.Event, 32),
		ctx:    ctx,
		cancel: cancel,
	}
	d.connectFn = func(int, adapter.StationConfig) bool { return true }
	d.sessionFn = d.defaultSession

	d.wg.Add(1)
	go d.dispatch()
	return d
}

// Events returns the driver event stream.
func (d *Driver) Events() <-chan adapter.Event {
	return d.events
}

// Close stops the dispatch worker and closes the event stream.
func (d *Driver) Close() error {
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
		close(d.events)
	})
	return nil
}

// Role returns the current role.
func (d *Driver) Role(ctx context.Context) (adapter.Role, error) {
	if err := d.enter(ctx, OpRole); err != nil {
		return adapter.RoleIdle, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.role, nil
}

// SetRole applies role. Dropping a duty stops it.
func (d *Driver) SetRole(ctx context.Context, role adapter.Role) error {
	if err := d.enter(ctx, OpSetRole); err != nil {
		return err
	}
	if !role.Valid() {
		return espError("ESP_ERR_INVALID_ARG")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !role.HasStation() && d.connected {
		d.connected = false
		d.emitLocked(0, adapter.EventStationDisconnected, &adapter.Association{
			Peer: d.cfg.BSSID, Channel: d.cfg.Channel, SSID: d.station.SSID, Reason: ReasonAssocLeave,
		})
	}
	if !role.HasAccessPoint() && d.apRunning {
		d.apRunning = false
		d.emitLocked(0, adapter.EventAccessPointStopped, nil)
	}
	d.log.Debugf("role %s -> %s", d.role, role)
	d.role = role
	return nil
}

// ConfigureStationLink applies the station link profile.
func (d *Driver) ConfigureStationLink(ctx context.Context, link adapter.StationLink) error {
	if err := d.enter(ctx, OpConfigureStationLink); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.role.HasStation() {
		return espError("ESP_ERR_WIFI_MODE")
	}
	d.link = link
	return nil
}

// ConfigureStation sets the association target.
func (d *Driver) ConfigureStation(ctx context.Context, cfg adapter.StationConfig) error {
	if err := d.enter(ctx, OpConfigureStation); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.role.HasStation() {
		return espError("ESP_ERR_WIFI_MODE")
	}
	if cfg.SSID == "" || len(cfg.SSID) > 32 {
		return espError("ESP_ERR_WIFI_SSID")
	}
	d.station = cfg
	d.attempts = 0
	return nil
}

// Connect starts an association attempt. The result is an event.
func (d *Driver) Connect(ctx context.Context) error {
	if err := d.enter(ctx, OpConnect); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.role.HasStation() {
		return espError("ESP_ERR_WIFI_MODE")
	}
	if d.station.SSID == "" {
		return espError("ESP_ERR_WIFI_SSID")
	}

	d.attempts++
	assoc := &adapter.Association{Peer: d.cfg.BSSID, Channel: d.cfg.Channel, SSID: d.station.SSID}
	if d.connectFn(d.attempts, d.station) {
		d.connected = true
		d.emitLocked(d.cfg.EventDelay, adapter.EventStationConnected, assoc)
		return nil
	}
	assoc.Reason = ReasonNoAPFound
	d.emitLocked(d.cfg.EventDelay, adapter.EventStationDisconnected, assoc)
	return nil
}

// Disconnect drops the association. A disconnected event follows when the
// station was associated.
func (d *Driver) Disconnect(ctx context.Context) error {
	if err := d.enter(ctx, OpDisconnect); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	d.connected = false
	d.emitLocked(d.cfg.EventDelay, adapter.EventStationDisconnected, &adapter.Association{
		Peer: d.cfg.BSSID, Channel: d.cfg.Channel, SSID: d.station.SSID, Reason: ReasonAssocLeave,
	})
	return nil
}

// ConfigureAccessPoint applies settings and starts the access point.
func (d *Driver) ConfigureAccessPoint(ctx context.Context, settings adapter.AccessPointSettings) error {
	if err := d.enter(ctx, OpConfigureAccessPoint); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.role.HasAccessPoint() {
		return espError("ESP_ERR_WIFI_MODE")
	}
	if settings.Channel < 1 || settings.Channel > 14 || len(settings.SSID) > 32 {
		return espError("ESP_ERR_INVALID_ARG")
	}
	if settings.AuthMode != adapter.AuthOpen && len(settings.Passphrase) < 8 {
		return espError("ESP_ERR_WIFI_PASSWORD")
	}

	s := settings
	d.ap = &s
	if !d.apRunning {
		d.apRunning = true
		d.emitLocked(d.cfg.EventDelay, adapter.EventAccessPointStarted, nil)
	}
	return nil
}

// StartSession submits a ranging session.
func (d *Driver) StartSession(ctx context.Context, req adapter.SessionRequest) error {
	if err := d.enter(ctx, OpStartSession); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return espError("ESP_ERR_WIFI_NOT_CONNECT")
	}
	if d.inSession {
		return espError("ESP_ERR_WIFI_STATE")
	}
	if req.FrameCount == 0 {
		return espError("ESP_ERR_INVALID_ARG")
	}

	d.sessionSeq++
	d.inSession = true
	report, delay := d.sessionFn(req)
	if report == nil {
		return nil
	}
	r := *report
	d.queueLocked(pending{
		delay:   delay,
		event:   adapter.Event{Kind: adapter.EventRangingReport, Report: &r},
		session: d.sessionSeq,
	})
	return nil
}

// EndSession terminates the current session. Already delivered or pending
// reports are not recalled.
func (d *Driver) EndSession(ctx context.Context) error {
	if err := d.enter(ctx, OpEndSession); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inSession = false
	return nil
}

// SendNotification records a one-shot frame.
func (d *Driver) SendNotification(ctx context.Context, n adapter.Notification) error {
	if err := d.enter(ctx, OpSendNotification); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.role == adapter.RoleIdle {
		return espError("ESP_ERR_ESPNOW_NOT_INIT")
	}
	if len(n.Payload) == 0 || len(n.Payload) > 250 {
		return espError("ESP_ERR_ESPNOW_ARG")
	}
	n.Payload = append([]byte(nil), n.Payload...)
	d.sent = append(d.sent, n)
	return nil
}

// Helper methods for testing

// SetConnectBehavior replaces the association outcome function.
func (d *Driver) SetConnectBehavior(fn ConnectFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectFn = fn
}

// SetSessionBehavior replaces the ranging outcome function.
func (d *Driver) SetSessionBehavior(fn SessionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionFn = fn
}

// SetErrorSimulation makes op fail with err until cleared with a nil err.
func (d *Driver) SetErrorSimulation(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, op)
		return
	}
	d.errs[op] = err
}

// Calls returns how many times op was invoked.
func (d *Driver) Calls(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Sent returns the notifications sent so far.
func (d *Driver) Sent() []adapter.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]adapter.Notification(nil), d.sent...)
}

// Snapshot returns the current simulated radio state.
func (d *Driver) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := State{
		Role:          d.role,
		Link:          d.link,
		Station:       d.station,
		APRunning:     d.apRunning,
		Connected:     d.connected,
		SessionActive: d.inSession,
	}
	if d.ap != nil {
		ap := *d.ap
		st.AccessPoint = &ap
	}
	return st
}

// Inject queues ev for delivery after delay.
func (d *Driver) Inject(ev adapter.Event, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueLocked(pending{delay: delay, event: ev})
}

// Report builds a report for peer at distance cm with the RTT a radio
// would measure.
func Report(peer adapter.HardwareAddr, status adapter.ReportStatus, distanceCm uint32, entries int) *adapter.Report {
	r := &adapter.Report{Peer: peer, Status: status, Entries: entries}
	if status == adapter.StatusSuccess {
		r.Distance = distanceCm
		// round trip in ns at 29.9792458 cm/ns
		r.RTTEstimate = uint32(float64(distanceCm)*2/29.9792458 + 0.5)
		r.RTT = r.RTTEstimate
	}
	return r
}

func (d *Driver) defaultSession(req adapter.SessionRequest) (*adapter.Report, time.Duration) {
	return Report(req.Peer, adapter.StatusSuccess, d.cfg.DistanceCm, int(req.FrameCount)), d.cfg.EventDelay
}

func (d *Driver) enter(ctx context.Context, op Op) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	if err, ok := d.errs[op]; ok {
		return adapter.NormalizeDriverErrorFor(err, string(op), "esp")
	}
	return nil
}

func (d *Driver) emitLocked(delay time.Duration, kind adapter.EventKind, assoc *adapter.Association) {
	d.queueLocked(pending{delay: delay, event: adapter.Event{Kind: kind, Association: assoc}})
}

func (d *Driver) queueLocked(p pending) {
	select {
	case d.queue <- p:
	case <-d.ctx.Done():
	default:
		d.log.Warnf("event queue full, dropping %s", p.event.Kind)
	}
}

func (d *Driver) dispatch() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case p := <-d.queue:
			if p.delay > 0 {
				timer := time.NewTimer(p.delay)
				select {
				case <-d.ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if p.session != 0 {
				d.mu.Lock()
				if p.session == d.sessionSeq {
					d.inSession = false
				}
				d.mu.Unlock()
			}
			if p.event.At.IsZero() {
				p.event.At = time.Now()
			}
			d.log.Tracef("event %s", p.event.Kind)
			select {
			case d.events <- p.event:
			case <-d.ctx.Done():
				return
			}
		}
	}
}

func espError(token string) error {
	return adapter.NormalizeDriverErrorFor(errors.New(token), nil, "esp")
}
