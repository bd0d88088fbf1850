package ranging

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

var (
	// ErrNotAssociated means no association exists to range against.
	ErrNotAssociated = errors.New("ranging: station not associated")

	// ErrSessionInFlight means another session has not finished yet.
	ErrSessionInFlight = errors.New("ranging: session already in flight")
)

// SessionStartError reports a session the driver refused to start.
type SessionStartError struct {
	Peer adapter.HardwareAddr
	Err  error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("ranging: start session with %s: %v", e.Peer, e.Err)
}

func (e *SessionStartError) Unwrap() error {
	return e.Err
}

// Kind classifies a finished session.
type Kind uint8

const (
	KindSuccess Kind = iota
	KindFailure
	KindTimeout
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the classified result of one session. Status, RTT, Distance
// and Entries come from the driver report and are zero for timeouts.
type Outcome struct {
	SessionID uuid.UUID
	Kind      Kind
	Peer      adapter.HardwareAddr
	Channel   uint8
	Status    adapter.ReportStatus
	RTT       uint32 // raw, nanoseconds
	RTTEst    uint32 // filtered, nanoseconds
	Distance  uint32 // centimetres
	Entries   int
	Started   time.Time
	Finished  time.Time
}

// DistanceMeters returns the distance in metres.
func (o Outcome) DistanceMeters() float64 {
	return float64(o.Distance) / 100
}

// FormatDistance renders the distance as metres with two decimals.
func (o Outcome) FormatDistance() string {
	return fmt.Sprintf("%d.%02d", o.Distance/100, o.Distance%100)
}

// Duration returns how long the session ran.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}
