// Package app starts a complete node process: configuration, sinks,
// driver, node, HTTP API and mDNS advertisement, then the driving loop of
// the requested mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter/fake"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/api"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/auth"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/config"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/discovery"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/node"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// Modes.
const (
	ModeInitiator = "initiator"
	ModeResponder = "responder"
)

// Options select what Run starts.
type Options struct {
	Mode       string
	Version    string
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// Limit stops the driving loop after that many sessions (initiator) or
	// heartbeats (responder). Zero runs until the context ends.
	Limit int

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Ready, if set, receives the API address once the node is up.
	Ready func(apiAddr string)
}

type closer struct {
	name string
	fn   func() error
}

// Run starts the node and blocks until ctx ends or the driving loop
// returns. A *radio.ConfigurationError from the loop is returned.
func Run(ctx context.Context, opts Options) (err error) {
	if opts.Mode != ModeInitiator && opts.Mode != ModeResponder {
		return fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	// Step 1: Load configuration
	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
	} else if err := config.Validate(cfg); err != nil {
		return err
	}
	factory := cfg.Log.LoggerFactory(opts.LogOutput)
	log := factory.NewLogger("app")
	log.Infof("starting FTM %s v%s", opts.Mode, opts.Version)

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].fn(); cerr != nil {
				log.Warnf("error closing %s: %v", closers[i].name, cerr)
			} else {
				log.Debugf("%s closed", closers[i].name)
			}
		}
		log.Info("shutdown complete")
	}()

	// Step 2: Initialize audit logger
	auditLog, err := audit.NewLogger(audit.Config{
		Path:       cfg.Audit.Path,
		MaxSizeMB:  cfg.Audit.MaxSizeMB,
		MaxBackups: cfg.Audit.MaxBackups,
		MaxAgeDays: cfg.Audit.MaxAgeDays,
		Compress:   cfg.Audit.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	closers = append(closers, closer{"audit logger", auditLog.Close})
	log.Infof("audit log at %s", auditLog.Path())

	// Step 3: Open record file
	var records *record.Writer
	if cfg.Records.Path != "" {
		records, err = record.Create(cfg.Records.Path)
		if err != nil {
			return fmt.Errorf("failed to open record file: %w", err)
		}
		closers = append(closers, closer{"record file", records.Close})
		log.Infof("ranging records at %s", records.Path())
	}

	// Step 4: Initialize telemetry hub and advertiser
	var n *node.Node
	hub := telemetry.NewHub(telemetry.Config{
		HeartbeatInterval: cfg.Telemetry.HeartbeatInterval,
		BufferSize:        cfg.Telemetry.BufferSize,
		Snapshot: func() map[string]interface{} {
			return map[string]interface{}{
				"mode":        opts.Mode,
				"version":     opts.Version,
				"role":        n.Roles.Status().Role.String(),
				"association": n.Association.Snapshot(),
			}
		},
		LoggerFactory: factory,
	})
	closers = append(closers, closer{"telemetry hub", func() error { hub.Stop(); return nil }})

	pub := &publisher{hub: hub, info: discovery.Info{
		Mode:    opts.Mode,
		Version: opts.Version,
		MAC:     cfg.Station.MAC,
		SSID:    ssidFor(opts.Mode, cfg),
		Role:    adapter.RoleIdle.String(),
	}, log: log}
	if cfg.Discovery.Enabled {
		pub.adv = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Instance:      instanceName(cfg, opts.Mode),
			Service:       cfg.Discovery.Service,
			Domain:        cfg.Discovery.Domain,
			LoggerFactory: factory,
		})
	}

	// Step 5: Initialize radio driver and node
	drv := fake.New(fake.Config{
		EventDelay:    cfg.Driver.EventDelay,
		DistanceCm:    cfg.Driver.DistanceCm,
		Channel:       cfg.AccessPoint.Channel,
		LoggerFactory: factory,
	})
	n, err = node.New(node.Options{
		Config:        cfg,
		Driver:        drv,
		Audit:         auditLog,
		Records:       records,
		Publisher:     pub,
		LoggerFactory: factory,
	})
	if err != nil {
		_ = drv.Close()
		return err
	}
	n.Start(ctx)
	closers = append(closers, closer{"radio driver", n.Close})
	log.Info("radio node initialized")

	// Step 6: Start HTTP API
	if cfg.API.Enabled {
		server, addr, err := startAPI(cfg, opts, n, auditLog, hub, factory)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"HTTP server", func() error {
			// open telemetry streams end with the hub
			hub.Stop()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(stopCtx)
		}})
		log.Infof("health endpoint: http://%s/api/v1/health", addr)

		// Step 7: Advertise the API
		if pub.adv != nil {
			if err := pub.advertise(addr.(*net.TCPAddr).Port); err != nil {
				log.Warnf("mDNS advertisement failed: %v", err)
			} else {
				closers = append(closers, closer{"advertiser", func() error { pub.adv.Stop(); return nil }})
			}
		}
		if opts.Ready != nil {
			opts.Ready(addr.String())
		}
	} else if opts.Ready != nil {
		opts.Ready("")
	}

	// Step 8: Run the driving loop
	log.Infof("FTM %s started", opts.Mode)
	if opts.Mode == ModeInitiator {
		err = n.Initiator(opts.Limit).Run(ctx)
	} else {
		err = n.Responder(uint64(opts.Limit)).Run(ctx)
	}
	if err != nil {
		log.Errorf("%s stopped: %v", opts.Mode, err)
	}
	return err
}

func startAPI(cfg *config.Config, opts Options, n *node.Node, auditLog *audit.Logger, hub *telemetry.Hub, factory logging.LoggerFactory) (*api.Server, net.Addr, error) {
	var verifier auth.TokenVerifier
	if cfg.API.Auth.Enabled {
		v, err := auth.NewVerifierFromFile(auth.VerifierConfig{
			Algorithm: cfg.API.Auth.Algorithm,
			Secret:    cfg.API.Auth.Secret,
			Issuer:    cfg.API.Auth.Issuer,
			Audience:  cfg.API.Auth.Audience,
			Leeway:    30 * time.Second,
		}, cfg.API.Auth.PublicKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize token verifier: %w", err)
		}
		verifier = v
	}

	server := api.NewServer(api.Config{
		Mode:          opts.Mode,
		Version:       opts.Version,
		Roles:         n.Roles,
		Association:   n.Association,
		Ranging:       n.Ranging,
		AccessPoint:   n.Tracker,
		Audit:         auditLog,
		Telemetry:     hub,
		Verifier:      verifier,
		OnOutcome:     n.RecordOutcome,
		LoggerFactory: factory,
	})

	ln, err := net.Listen("tcp", cfg.API.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", cfg.API.Listen, err)
	}
	go func() {
		if err := server.Serve(ln); err != nil {
			factory.NewLogger("app").Errorf("HTTP server failed: %v", err)
		}
	}()
	return server, ln.Addr(), nil
}

// publisher forwards events to the hub and keeps the advertised role in
// step with role changes.
type publisher struct {
	hub *telemetry.Hub
	adv *discovery.Advertiser
	log logging.LeveledLogger

	mu   sync.Mutex
	info discovery.Info
}

func (p *publisher) Publish(ev telemetry.Event) error {
	if ev.Type == telemetry.TypeRole && p.adv != nil {
		if to, ok := ev.Data["to"].(string); ok {
			p.mu.Lock()
			p.info.Role = to
			info := p.info
			p.mu.Unlock()
			if err := p.adv.Update(info); err != nil && !errors.Is(err, discovery.ErrNotAdvertising) {
				p.log.Warnf("update advertisement: %v", err)
			}
		}
	}
	return p.hub.Publish(ev)
}

func (p *publisher) advertise(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.adv.Advertise(port, p.info)
}

func ssidFor(mode string, cfg *config.Config) string {
	if mode == ModeResponder {
		return cfg.AccessPoint.SSID
	}
	return cfg.Station.SSID
}

func instanceName(cfg *config.Config, mode string) string {
	if cfg.Discovery.Instance != "" {
		return cfg.Discovery.Instance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ftm"
	}
	return fmt.Sprintf("%s-%s", host, mode)
}
