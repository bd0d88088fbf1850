package telemetry

import (
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// Event types.
const (
	TypeReady       = "ready"
	TypeOutcome     = "outcome"
	TypeAssociation = "association"
	TypeRole        = "role"
	TypeAccessPoint = "accessPoint"
	TypeHeartbeat   = "heartbeat"
)

// Event is one telemetry event.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Publisher accepts telemetry events. *Hub implements it.
type Publisher interface {
	Publish(Event) error
}

// OutcomeEvent describes a finished ranging session.
func OutcomeEvent(out ranging.Outcome) Event {
	data := map[string]interface{}{
		"sessionId":  out.SessionID.String(),
		"kind":       out.Kind.String(),
		"peer":       out.Peer.String(),
		"channel":    out.Channel,
		"durationMs": out.Duration().Milliseconds(),
		"ts":         out.Finished.UTC().Format(time.RFC3339Nano),
	}
	if out.Kind != ranging.KindTimeout {
		data["status"] = out.Status.String()
	}
	if out.Kind == ranging.KindSuccess {
		data["rttNs"] = out.RTT
		data["rttEstNs"] = out.RTTEst
		data["distanceCm"] = out.Distance
		data["distanceM"] = out.FormatDistance()
		data["entries"] = out.Entries
	}
	return Event{Type: TypeOutcome, Data: data}
}

// AssociationEvent describes the association state.
func AssociationEvent(snap association.Snapshot) Event {
	data := map[string]interface{}{
		"state":         snap.State.String(),
		"retries":       snap.Retries,
		"autoReconnect": snap.AutoReconnect,
	}
	if snap.State == association.StateConnected {
		data["peer"] = snap.Peer.String()
		data["channel"] = snap.Channel
		data["ssid"] = snap.SSID
	}
	return Event{Type: TypeAssociation, Data: data}
}

// RoleEvent describes a role transition.
func RoleEvent(from, to adapter.Role) Event {
	return Event{Type: TypeRole, Data: map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	}}
}

// AccessPointEvent describes the access point starting or stopping.
func AccessPointEvent(running bool) Event {
	return Event{Type: TypeAccessPoint, Data: map[string]interface{}{
		"running": running,
	}}
}

// HeartbeatEvent carries the responder heartbeat counter.
func HeartbeatEvent(counter uint64, at time.Time) Event {
	return Event{Type: TypeHeartbeat, Data: map[string]interface{}{
		"counter": counter,
		"ts":      at.UTC().Format(time.RFC3339),
	}}
}
