package adapter

import "time"

// EventKind classifies a driver event.
type EventKind uint8

const (
	EventAccessPointStarted EventKind = iota + 1
	EventAccessPointStopped
	EventStationConnected
	EventStationDisconnected
	EventRangingReport
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventAccessPointStarted:
		return "ap_started"
	case EventAccessPointStopped:
		return "ap_stopped"
	case EventStationConnected:
		return "sta_connected"
	case EventStationDisconnected:
		return "sta_disconnected"
	case EventRangingReport:
		return "ranging_report"
	default:
		return "unknown"
	}
}

// ReportStatus is the driver's verdict on a ranging session.
type ReportStatus uint8

const (
	StatusSuccess ReportStatus = iota
	StatusUnsupported
	StatusConfigRejected
	StatusNoResponse
	StatusFail
	StatusNoValidMeasurement
	StatusUserTerminated
)

// String returns the status name.
func (s ReportStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusConfigRejected:
		return "CONF_REJECTED"
	case StatusNoResponse:
		return "NO_RESPONSE"
	case StatusFail:
		return "FAIL"
	case StatusNoValidMeasurement:
		return "NO_VALID_MSMT"
	case StatusUserTerminated:
		return "USER_TERM"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ReportStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Report is the result of one ranging session.
type Report struct {
	Peer        HardwareAddr
	Status      ReportStatus
	RTT         uint32 // raw round-trip time, nanoseconds
	RTTEstimate uint32 // filtered round-trip time, nanoseconds
	Distance    uint32 // estimated distance, centimetres
	Entries     int    // number of per-frame entries the driver collected
}

// Association carries the details of a station link change.
type Association struct {
	Peer    HardwareAddr
	Channel uint8
	SSID    string
	Reason  uint8 // disconnect reason code, zero on connect
}

// Event is one classified driver event. Exactly one of the payload fields is
// set, according to Kind.
type Event struct {
	Kind        EventKind
	At          time.Time
	Association *Association
	Report      *Report
}
