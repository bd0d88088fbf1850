package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// NotifySettings describes the frame sent after every session.
type NotifySettings struct {
	Enabled      bool
	Notification adapter.Notification
	Delay        time.Duration
}

// InitiatorConfig configures an Initiator.
type InitiatorConfig struct {
	Joiner   Joiner
	Ranger   Ranger
	Notifier adapter.Notifier
	Recorder OutcomeRecorder
	Actions  ActionLogger

	SSID        string
	Passphrase  string
	JoinTimeout time.Duration

	// MeasurementDelay is the pause after every session.
	MeasurementDelay time.Duration

	Notify NotifySettings

	// MaxSessions stops the loop after that many sessions. Zero runs until
	// the context ends.
	MaxSessions int

	// CallTimeout bounds the notification send. Defaults to 2s.
	CallTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// InitiatorStats counts what the driving loop did.
type InitiatorStats struct {
	Joined        bool   `json:"joined"`
	Sessions      uint64 `json:"sessions"`
	Successes     uint64 `json:"successes"`
	Failures      uint64 `json:"failures"`
	Timeouts      uint64 `json:"timeouts"`
	Errors        uint64 `json:"errors"`
	Notifications uint64 `json:"notifications"`
	NotifyErrors  uint64 `json:"notifyErrors"`
}

// Initiator is the station-side driving loop: join once, then range,
// pause, notify and pause again, forever.
type Initiator struct {
	cfg InitiatorConfig
	log logging.LeveledLogger

	mu    sync.Mutex
	stats InitiatorStats
}

// NewInitiator creates an initiator loop.
func NewInitiator(cfg InitiatorConfig) *Initiator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Initiator{cfg: cfg, log: cfg.LoggerFactory.NewLogger("initiator")}
}

// Run joins the configured network and then runs sessions until ctx ends
// or MaxSessions is reached. A join timeout is not fatal: the supervisor
// keeps reconnecting and sessions fail with ErrNotAssociated meanwhile.
// Only a *radio.ConfigurationError stops the loop with an error.
func (i *Initiator) Run(ctx context.Context) error {
	if err := i.join(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	for n := 0; i.cfg.MaxSessions == 0 || n < i.cfg.MaxSessions; n++ {
		i.rangeOnce(ctx)
		if !sleep(ctx, i.cfg.MeasurementDelay) {
			return nil
		}
		if !i.cfg.Notify.Enabled {
			continue
		}
		i.notify(ctx)
		if !sleep(ctx, i.cfg.Notify.Delay) {
			return nil
		}
	}
	i.log.Infof("stopping after %d sessions", i.cfg.MaxSessions)
	return nil
}

// Stats returns a copy of the loop counters.
func (i *Initiator) Stats() InitiatorStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

func (i *Initiator) join(ctx context.Context) error {
	start := time.Now()
	joined, err := i.cfg.Joiner.Join(ctx, i.cfg.SSID, i.cfg.Passphrase, i.cfg.JoinTimeout)
	i.logAction(ctx, audit.ActionJoin, map[string]interface{}{"ssid": i.cfg.SSID}, time.Since(start), err)

	var cerr *radio.ConfigurationError
	switch {
	case err == nil:
		i.mu.Lock()
		i.stats.Joined = true
		i.mu.Unlock()
		i.log.Infof("joined %q via %s on channel %d", i.cfg.SSID, joined.Peer, joined.Channel)
		return nil
	case errors.As(err, &cerr):
		return fmt.Errorf("join %q: %w", i.cfg.SSID, err)
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, association.ErrJoinTimeout):
		i.log.Warnf("not connected to %q after %v, ranging anyway", i.cfg.SSID, i.cfg.JoinTimeout)
	default:
		i.log.Errorf("failed to join %q: %v", i.cfg.SSID, err)
	}
	return nil
}

func (i *Initiator) rangeOnce(ctx context.Context) {
	start := time.Now()
	out, err := i.cfg.Ranger.RangeOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		i.mu.Lock()
		i.stats.Errors++
		i.mu.Unlock()
		if errors.Is(err, ranging.ErrNotAssociated) {
			i.log.Warn("not connected, cannot start FTM")
		} else {
			i.log.Errorf("failed to start FTM session: %v", err)
		}
		i.logAction(ctx, audit.ActionRange, nil, time.Since(start), err)
		return
	}

	i.mu.Lock()
	i.stats.Sessions++
	switch out.Kind {
	case ranging.KindSuccess:
		i.stats.Successes++
	case ranging.KindFailure:
		i.stats.Failures++
	case ranging.KindTimeout:
		i.stats.Timeouts++
	}
	i.mu.Unlock()

	if i.cfg.Recorder != nil {
		i.cfg.Recorder.Record(ctx, out)
	}
}

func (i *Initiator) notify(ctx context.Context) {
	n := i.cfg.Notify.Notification
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	err := i.cfg.Notifier.SendNotification(callCtx, n)
	cancel()
	i.logAction(ctx, audit.ActionNotify, map[string]interface{}{
		"peer":    n.Peer.String(),
		"channel": n.Channel,
		"bytes":   len(n.Payload),
	}, time.Since(start), err)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		i.stats.NotifyErrors++
		i.log.Warnf("send notification to %s: %v", n.Peer, err)
		return
	}
	i.stats.Notifications++
}

func (i *Initiator) logAction(ctx context.Context, action string, params map[string]interface{}, latency time.Duration, err error) {
	if i.cfg.Actions != nil {
		i.cfg.Actions.LogAction(ctx, action, params, latency, err)
	}
}

// sleep waits d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
