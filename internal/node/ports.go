package node

import (
	"context"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
)

// StationHandler receives association changes.
type StationHandler interface {
	HandleConnected(adapter.Association)
	HandleDisconnected(adapter.Association)
}

// ReportHandler receives ranging reports.
type ReportHandler interface {
	Deliver(adapter.Report) bool
}

// AccessPointHandler receives access-point start and stop events.
type AccessPointHandler interface {
	HandleStarted()
	HandleStopped()
}

// Joiner associates the station.
type Joiner interface {
	Join(ctx context.Context, ssid, passphrase string, timeout time.Duration) (association.Joined, error)
}

// Ranger runs one ranging session with the configured parameters.
type Ranger interface {
	RangeOnce(ctx context.Context) (ranging.Outcome, error)
}

// OutcomeRecorder persists a finished session.
type OutcomeRecorder interface {
	Record(ctx context.Context, out ranging.Outcome)
}

// ActionLogger records control actions.
type ActionLogger interface {
	LogAction(ctx context.Context, action string, params map[string]interface{}, latency time.Duration, err error)
}

// OutcomeLogger records finished sessions.
type OutcomeLogger interface {
	LogOutcome(ctx context.Context, out ranging.Outcome)
}

// RecordAppender stores binary records.
type RecordAppender interface {
	Append(record.Record) error
}

// AccessPointStarter applies an access-point configuration.
type AccessPointStarter interface {
	Start(ctx context.Context, cfg accesspoint.Config) error
}

// StartWaiter blocks until the access point reports it runs.
type StartWaiter interface {
	WaitStarted(ctx context.Context) error
}

var (
	_ StationHandler     = (*association.Supervisor)(nil)
	_ ReportHandler      = (*ranging.Controller)(nil)
	_ AccessPointHandler = (*accesspoint.Tracker)(nil)
	_ Joiner             = (*association.Supervisor)(nil)
	_ Ranger             = (*ranging.Controller)(nil)
	_ OutcomeRecorder    = (*Recorder)(nil)
	_ ActionLogger       = (*audit.Logger)(nil)
	_ OutcomeLogger      = (*audit.Logger)(nil)
	_ RecordAppender     = (*record.Writer)(nil)
	_ AccessPointStarter = (*accesspoint.Starter)(nil)
	_ StartWaiter        = (*accesspoint.Tracker)(nil)
)
