// Package main implements the FTM initiator: it joins the responder's
// access point and ranges against it in a loop.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/app"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
)

// Version is the initiator release.
const Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (default $FTM_CONFIG)")
	sessions := flag.Int("sessions", 0, "stop after this many sessions (0 runs until interrupted)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, app.Options{
		Mode:       app.ModeInitiator,
		Version:    Version,
		ConfigPath: *configPath,
		Limit:      *sessions,
	})
	var cerr *radio.ConfigurationError
	switch {
	case err == nil:
	case errors.As(err, &cerr):
		log.Printf("Radio configuration failed: %v", err)
		os.Exit(2)
	default:
		log.Printf("FTM initiator failed: %v", err)
		os.Exit(1)
	}
}
