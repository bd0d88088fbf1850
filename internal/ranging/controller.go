// Package ranging drives one FTM ranging session at a time against the
// associated access point and classifies its outcome.
package ranging

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
)

// AssociationView exposes the current association. *association.Supervisor
// implements it.
type AssociationView interface {
	Snapshot() association.Snapshot
}

// Config configures a Controller.
type Config struct {
	Driver      adapter.RangingDriver
	Association AssociationView

	// Params are used by RangeOnce. Zero values select DefaultParams.
	Params Params

	// CallTimeout bounds StartSession and EndSession. Defaults to 2s.
	CallTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// Controller runs ranging sessions. Only one session is in flight at a
// time; the dispatcher hands reports over through Deliver.
type Controller struct {
	driver  adapter.RangingDriver
	assoc   AssociationView
	params  Params
	timeout time.Duration
	slot    *Slot
	log     logging.LeveledLogger

	busy     atomic.Bool
	sessions atomic.Uint64
	timeouts atomic.Uint64

	after func(time.Duration) <-chan time.Time
	now   func() time.Time
}

// NewController creates a controller with its own outcome slot.
func NewController(cfg Config) *Controller {
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	if cfg.Params.MinWait == 0 {
		cfg.Params.MinWait = DefaultMinWait
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Controller{
		driver:  cfg.Driver,
		assoc:   cfg.Association,
		params:  cfg.Params,
		timeout: cfg.CallTimeout,
		slot:    NewSlot(),
		log:     cfg.LoggerFactory.NewLogger("ranging"),
		after:   time.After,
		now:     time.Now,
	}
}

// Params returns the configured session parameters.
func (c *Controller) Params() Params {
	return c.params
}

// Deliver hands a driver report to the waiting session, if any.
func (c *Controller) Deliver(r adapter.Report) bool {
	ok := c.slot.Deliver(r)
	if !ok {
		c.log.Debugf("dropped report from %s (%s), no session waiting", r.Peer, r.Status)
	}
	return ok
}

// InFlight reports whether a session is running.
func (c *Controller) InFlight() bool {
	return c.busy.Load()
}

// Stats returns session, timeout and dropped report counts.
func (c *Controller) Stats() (sessions, timeouts, dropped uint64) {
	return c.sessions.Load(), c.timeouts.Load(), c.slot.Dropped()
}

// RangeOnce runs one session with the configured parameters.
func (c *Controller) RangeOnce(ctx context.Context) (Outcome, error) {
	return c.RangeWith(ctx, c.params)
}

// RangeWith runs one session with p.
//
// It fails with ErrNotAssociated without touching the driver when the
// station is not associated, with ErrSessionInFlight when another session
// runs, and with *SessionStartError when the driver refuses the session.
// Otherwise it waits up to Deadline(p) for the report; a session that
// never reports is ended explicitly and classified KindTimeout.
func (c *Controller) RangeWith(ctx context.Context, p Params) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrSessionInFlight
	}
	defer c.busy.Store(false)

	snap := c.assoc.Snapshot()
	if snap.State != association.StateConnected {
		return Outcome{}, ErrNotAssociated
	}

	out := Outcome{
		SessionID: uuid.New(),
		Peer:      snap.Peer,
		Channel:   snap.Channel,
		Started:   c.now(),
	}
	req := adapter.SessionRequest{
		Peer:        snap.Peer,
		Channel:     snap.Channel,
		FrameCount:  p.FrameCount,
		BurstPeriod: p.BurstPeriod,
		ReportMode:  p.ReportMode,
	}

	gen := c.slot.Arm()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.driver.StartSession(callCtx, req)
	cancel()
	if err != nil {
		c.slot.Disarm(gen)
		c.log.Errorf("session with %s not started: %v", snap.Peer, err)
		return Outcome{}, &SessionStartError{Peer: snap.Peer, Err: err}
	}
	c.sessions.Add(1)
	c.log.Debugf("session %s with %s channel %d started", out.SessionID, snap.Peer, snap.Channel)

	deadline := Deadline(p)
	report, ok, err := c.slot.Await(ctx, gen, c.after(deadline))
	c.slot.Disarm(gen)
	out.Finished = c.now()

	if err != nil {
		c.endSession()
		return Outcome{}, err
	}
	if !ok {
		c.endSession()
		c.timeouts.Add(1)
		out.Kind = KindTimeout
		c.log.Warnf("session %s with %s timed out after %v", out.SessionID, snap.Peer, deadline)
		return out, nil
	}

	out.Status = report.Status
	out.Entries = report.Entries
	if report.Status != adapter.StatusSuccess {
		out.Kind = KindFailure
		if !report.Peer.IsZero() {
			out.Peer = report.Peer
		}
		if report.Status == adapter.StatusUserTerminated {
			c.log.Infof("session %s with %s terminated by user", out.SessionID, out.Peer)
		} else {
			c.log.Errorf("session %s with %s failed: %s", out.SessionID, out.Peer, report.Status)
		}
		return out, nil
	}

	out.Kind = KindSuccess
	out.RTT = report.RTT
	out.RTTEst = report.RTTEstimate
	out.Distance = report.Distance
	c.log.Infof("FTM Data: Raw RTT = %d nSec, Est RTT = %d nSec, Distance = %s meters (session %s, %d entries)",
		out.RTT, out.RTTEst, out.FormatDistance(), out.SessionID, out.Entries)
	return out, nil
}

func (c *Controller) endSession() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.driver.EndSession(ctx); err != nil {
		c.log.Warnf("end session: %v", err)
	}
}
