package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// RolePort exposes the radio role.
type RolePort interface {
	Status() radio.Status
}

// AssociationPort exposes the station association.
type AssociationPort interface {
	Snapshot() association.Snapshot
}

// RangingPort runs and describes ranging sessions.
type RangingPort interface {
	RangeWith(ctx context.Context, p ranging.Params) (ranging.Outcome, error)
	Params() ranging.Params
	InFlight() bool
	Stats() (sessions, timeouts, dropped uint64)
}

// AccessPointPort exposes the access point state.
type AccessPointPort interface {
	Running() (bool, time.Time)
}

// AuditPort records actions and serves recent entries.
type AuditPort interface {
	LogAction(ctx context.Context, action string, params map[string]interface{}, latency time.Duration, err error)
	Recent(action string, limit int) []audit.Entry
}

// TelemetryPort streams events to a client.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

var (
	_ RolePort        = (*radio.Manager)(nil)
	_ AssociationPort = (*association.Supervisor)(nil)
	_ RangingPort     = (*ranging.Controller)(nil)
	_ AccessPointPort = (*accesspoint.Tracker)(nil)
	_ AuditPort       = (*audit.Logger)(nil)
	_ TelemetryPort   = (*telemetry.Hub)(nil)
)
