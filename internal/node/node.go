package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/config"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// AccessPointStartTimeout bounds the wait for the access point to report
// running.
const AccessPointStartTimeout = 5 * time.Second

// Options are the dependencies of a Node. Audit, Records and Publisher are
// optional.
type Options struct {
	Config    *config.Config
	Driver    adapter.Driver
	Audit     *audit.Logger
	Records   *record.Writer
	Publisher telemetry.Publisher

	LoggerFactory logging.LoggerFactory
}

// Node owns the components built on one driver.
type Node struct {
	Roles       *radio.Manager
	Association *association.Supervisor
	Ranging     *ranging.Controller
	Starter     *accesspoint.Starter
	Tracker     *accesspoint.Tracker
	Dispatcher  *Dispatcher
	Recorder    *Recorder

	cfg     *config.Config
	driver  adapter.Driver
	actions ActionLogger
	pub     telemetry.Publisher
	notify  adapter.Notification
	factory logging.LoggerFactory
	log     logging.LeveledLogger

	wg      sync.WaitGroup
	started bool
}

// New validates opts and wires the components. Nothing touches the driver
// until Start and one of the driving loops run.
func New(opts Options) (*Node, error) {
	if opts.Config == nil {
		return nil, errors.New("node: config required")
	}
	if opts.Driver == nil {
		return nil, errors.New("node: driver required")
	}
	if err := config.Validate(opts.Config); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if opts.LoggerFactory == nil {
		opts.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	cfg := opts.Config

	var link adapter.StationLink
	if cfg.Station.MAC != "" {
		mac, err := adapter.ParseHardwareAddr(cfg.Station.MAC)
		if err != nil {
			return nil, fmt.Errorf("node: station mac: %w", err)
		}
		link.MAC = mac
	}
	link.PowerSave = cfg.Station.PowerSave

	notification, err := notificationFrom(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("node: notify: %w", err)
	}

	n := &Node{
		cfg:     cfg,
		driver:  opts.Driver,
		pub:     opts.Publisher,
		notify:  notification,
		factory: opts.LoggerFactory,
		log:     opts.LoggerFactory.NewLogger("node"),
	}
	if opts.Audit != nil {
		n.actions = opts.Audit
	}

	n.Roles = radio.NewManager(radio.ManagerConfig{
		Driver:        opts.Driver,
		StationLink:   link,
		CallTimeout:   cfg.Driver.CallTimeout,
		OnChange:      func(from, to adapter.Role) { n.publish(telemetry.RoleEvent(from, to)) },
		LoggerFactory: opts.LoggerFactory,
	})
	n.Association = association.NewSupervisor(association.Config{
		Roles:         n.Roles,
		Driver:        opts.Driver,
		MaxRetries:    cfg.Station.MaxRetries,
		CallTimeout:   cfg.Driver.CallTimeout,
		OnChange:      func(s association.Snapshot) { n.publish(telemetry.AssociationEvent(s)) },
		LoggerFactory: opts.LoggerFactory,
	})
	n.Ranging = ranging.NewController(ranging.Config{
		Driver:        opts.Driver,
		Association:   n.Association,
		Params:        cfg.Ranging.Params,
		CallTimeout:   cfg.Driver.CallTimeout,
		LoggerFactory: opts.LoggerFactory,
	})
	n.Starter = accesspoint.NewStarter(accesspoint.StarterConfig{
		Roles:         n.Roles,
		Driver:        opts.Driver,
		CallTimeout:   cfg.Driver.CallTimeout,
		LoggerFactory: opts.LoggerFactory,
	})
	n.Tracker = accesspoint.NewTracker()
	n.Dispatcher = NewDispatcher(DispatcherConfig{
		Events:        opts.Driver.Events(),
		Station:       n.Association,
		Reports:       n.Ranging,
		AccessPoint:   n.Tracker,
		Publisher:     opts.Publisher,
		LoggerFactory: opts.LoggerFactory,
	})

	rc := RecorderConfig{Publisher: opts.Publisher, LoggerFactory: opts.LoggerFactory}
	if opts.Audit != nil {
		rc.Audit = opts.Audit
	}
	if opts.Records != nil {
		rc.Records = opts.Records
	}
	n.Recorder = NewRecorder(rc)
	return n, nil
}

// Start runs the event dispatcher until ctx ends or the driver closes its
// event channel.
func (n *Node) Start(ctx context.Context) {
	if n.started {
		return
	}
	n.started = true
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			n.log.Warnf("dispatcher stopped: %v", err)
		}
	}()
}

// Close closes the driver, if it can be closed, and waits for the
// dispatcher to return.
func (n *Node) Close() error {
	var err error
	if c, ok := n.driver.(io.Closer); ok {
		err = c.Close()
	}
	n.wg.Wait()
	return err
}

// Initiator returns the station-side driving loop. maxSessions of zero
// runs until the context ends.
func (n *Node) Initiator(maxSessions int) *Initiator {
	return NewInitiator(InitiatorConfig{
		Joiner:           n.Association,
		Ranger:           n.Ranging,
		Notifier:         n.driver,
		Recorder:         n.Recorder,
		Actions:          n.actions,
		SSID:             n.cfg.Station.SSID,
		Passphrase:       n.cfg.Station.Passphrase,
		JoinTimeout:      n.cfg.Station.JoinTimeout,
		MeasurementDelay: n.cfg.Ranging.MeasurementDelay,
		Notify: NotifySettings{
			Enabled:      n.cfg.Notify.Enabled,
			Notification: n.notify,
			Delay:        n.cfg.Notify.Delay,
		},
		MaxSessions:   maxSessions,
		CallTimeout:   n.cfg.Driver.CallTimeout,
		LoggerFactory: n.factory,
	})
}

// Responder returns the access-point-side driving loop. maxBeats of zero
// runs until the context ends.
func (n *Node) Responder(maxBeats uint64) *Responder {
	return NewResponder(ResponderConfig{
		Starter:           n.Starter,
		AccessPoint:       n.cfg.AccessPoint,
		Tracker:           n.Tracker,
		StartTimeout:      AccessPointStartTimeout,
		HeartbeatInterval: n.cfg.Responder.HeartbeatInterval,
		MaxHeartbeats:     maxBeats,
		Publisher:         n.pub,
		Actions:           n.actions,
		LoggerFactory:     n.factory,
	})
}

// RecordOutcome hands an outcome produced outside the driving loop, such
// as an API-triggered session, to the recorder.
func (n *Node) RecordOutcome(ctx context.Context, out ranging.Outcome) {
	n.Recorder.Record(ctx, out)
}

func (n *Node) publish(ev telemetry.Event) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(ev); err != nil {
		n.log.Debugf("publish %s: %v", ev.Type, err)
	}
}

func notificationFrom(c config.NotifyConfig) (adapter.Notification, error) {
	if !c.Enabled {
		return adapter.Notification{}, nil
	}
	peer, err := adapter.ParseHardwareAddr(c.Peer)
	if err != nil {
		return adapter.Notification{}, err
	}
	payload, err := c.PayloadBytes()
	if err != nil {
		return adapter.Notification{}, err
	}
	return adapter.Notification{Peer: peer, Channel: c.Channel, Payload: payload}, nil
}
