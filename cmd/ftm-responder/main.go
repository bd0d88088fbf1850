// Package main implements the FTM responder: a soft access point that
// answers FTM requests and logs a heartbeat counter.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/app"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
)

// Version is the responder release.
const Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (default $FTM_CONFIG)")
	beats := flag.Int("heartbeats", 0, "stop after this many heartbeats (0 runs until interrupted)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, app.Options{
		Mode:       app.ModeResponder,
		Version:    Version,
		ConfigPath: *configPath,
		Limit:      *beats,
	})
	var (
		cerr *radio.ConfigurationError
		verr *accesspoint.ValidationError
	)
	switch {
	case err == nil:
	case errors.As(err, &cerr):
		log.Printf("Radio configuration failed: %v", err)
		os.Exit(2)
	case errors.As(err, &verr):
		log.Printf("Failed to start SoftAP: %v", err)
		os.Exit(2)
	default:
		log.Printf("FTM responder failed: %v", err)
		os.Exit(1)
	}
}
