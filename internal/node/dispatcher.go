package node

import (
	"context"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// DispatcherConfig configures a Dispatcher. Nil handlers drop their events.
type DispatcherConfig struct {
	Events      <-chan adapter.Event
	Station     StationHandler
	Reports     ReportHandler
	AccessPoint AccessPointHandler
	Publisher   telemetry.Publisher

	LoggerFactory logging.LoggerFactory
}

// Dispatcher forwards driver events to the component that owns them.
type Dispatcher struct {
	events  <-chan adapter.Event
	station StationHandler
	reports ReportHandler
	ap      AccessPointHandler
	pub     telemetry.Publisher
	log     logging.LeveledLogger

	handled atomic.Uint64
	ignored atomic.Uint64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Dispatcher{
		events:  cfg.Events,
		station: cfg.Station,
		reports: cfg.Reports,
		ap:      cfg.AccessPoint,
		pub:     cfg.Publisher,
		log:     cfg.LoggerFactory.NewLogger("dispatch"),
	}
}

// Run consumes events until ctx ends or the event channel closes. It
// returns ctx.Err() in the first case and nil in the second.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.events:
			if !ok {
				d.log.Debug("driver event channel closed")
				return nil
			}
			d.Handle(ev)
		}
	}
}

// Handle routes a single event.
func (d *Dispatcher) Handle(ev adapter.Event) {
	d.log.Tracef("event %s", ev.Kind)
	switch ev.Kind {
	case adapter.EventStationConnected, adapter.EventStationDisconnected:
		if d.station == nil || ev.Association == nil {
			d.ignore(ev)
			return
		}
		if ev.Kind == adapter.EventStationConnected {
			d.station.HandleConnected(*ev.Association)
		} else {
			d.station.HandleDisconnected(*ev.Association)
		}
	case adapter.EventRangingReport:
		if d.reports == nil || ev.Report == nil {
			d.ignore(ev)
			return
		}
		d.reports.Deliver(*ev.Report)
	case adapter.EventAccessPointStarted, adapter.EventAccessPointStopped:
		if d.ap == nil {
			d.ignore(ev)
			return
		}
		running := ev.Kind == adapter.EventAccessPointStarted
		if running {
			d.ap.HandleStarted()
			d.log.Info("access point started")
		} else {
			d.ap.HandleStopped()
			d.log.Warn("access point stopped")
		}
		d.publish(telemetry.AccessPointEvent(running))
	default:
		d.ignore(ev)
		return
	}
	d.handled.Add(1)
}

// Stats returns the number of routed and ignored events.
func (d *Dispatcher) Stats() (handled, ignored uint64) {
	return d.handled.Load(), d.ignored.Load()
}

func (d *Dispatcher) ignore(ev adapter.Event) {
	d.ignored.Add(1)
	d.log.Debugf("ignored %s event", ev.Kind)
}

func (d *Dispatcher) publish(ev telemetry.Event) {
	if d.pub == nil {
		return
	}
	if err := d.pub.Publish(ev); err != nil {
		d.log.Debugf("publish %s: %v", ev.Type, err)
	}
}
