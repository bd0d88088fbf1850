package node

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Starter     AccessPointStarter
	AccessPoint accesspoint.Config

	// Tracker, if set, is waited on for up to StartTimeout after Start.
	Tracker      StartWaiter
	StartTimeout time.Duration

	// HeartbeatInterval defaults to 1s.
	HeartbeatInterval time.Duration

	// MaxHeartbeats stops the loop after that many beats. Zero runs until
	// the context ends.
	MaxHeartbeats uint64

	Publisher telemetry.Publisher
	Actions   ActionLogger

	LoggerFactory logging.LoggerFactory
}

// Responder is the access-point-side driving loop: start the access point,
// then log a heartbeat counter.
type Responder struct {
	cfg ResponderConfig
	log logging.LeveledLogger

	beats atomic.Uint64
}

// NewResponder creates a responder loop.
func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Responder{cfg: cfg, log: cfg.LoggerFactory.NewLogger("responder")}
}

// Run starts the access point and runs the heartbeat until ctx ends. A
// failed start is returned; the heartbeat never starts in that case.
func (r *Responder) Run(ctx context.Context) error {
	ap := r.cfg.AccessPoint
	start := time.Now()
	err := r.cfg.Starter.Start(ctx, ap)
	if r.cfg.Actions != nil {
		r.cfg.Actions.LogAction(ctx, audit.ActionStartAP, map[string]interface{}{
			"ssid":    ap.SSID,
			"channel": ap.Channel,
		}, time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("start access point: %w", err)
	}

	if r.cfg.Tracker != nil && r.cfg.StartTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, r.cfg.StartTimeout)
		err := r.cfg.Tracker.WaitStarted(waitCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			r.log.Warnf("access point not reported running after %v", r.cfg.StartTimeout)
		default:
			r.log.Info("FTM responder is ready, waiting for FTM requests")
		}
	}

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n := r.beats.Add(1)
			r.log.Infof("Counter = %d", n)
			if r.cfg.Publisher != nil {
				if err := r.cfg.Publisher.Publish(telemetry.HeartbeatEvent(n, now)); err != nil {
					r.log.Debugf("publish heartbeat: %v", err)
				}
			}
			if r.cfg.MaxHeartbeats > 0 && n >= r.cfg.MaxHeartbeats {
				return nil
			}
		}
	}
}

// Heartbeats returns the current counter.
func (r *Responder) Heartbeats() uint64 {
	return r.beats.Load()
}
