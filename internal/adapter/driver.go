package adapter

import (
	"context"
	"fmt"
	"net"
)

// Role is the union of duties the radio currently performs.
type Role uint8

const (
	// RoleIdle means the radio performs no station or access-point duty.
	RoleIdle Role = iota

	// RoleStation means the radio associates to an access point.
	RoleStation

	// RoleAccessPoint means the radio serves stations.
	RoleAccessPoint

	// RoleStationAccessPoint means both duties are active.
	RoleStationAccessPoint
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleIdle:
		return "IDLE"
	case RoleStation:
		return "STA"
	case RoleAccessPoint:
		return "AP"
	case RoleStationAccessPoint:
		return "APSTA"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool {
	return r <= RoleStationAccessPoint
}

// HasStation reports whether the station duty is part of r.
func (r Role) HasStation() bool {
	return r == RoleStation || r == RoleStationAccessPoint
}

// HasAccessPoint reports whether the access-point duty is part of r.
func (r Role) HasAccessPoint() bool {
	return r == RoleAccessPoint || r == RoleStationAccessPoint
}

// HardwareAddr is a 6-byte radio MAC address.
type HardwareAddr [6]byte

// BroadcastAddr addresses every listening radio.
var BroadcastAddr = HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// String formats the address as colon separated hex.
func (a HardwareAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// IsZero reports whether every byte of the address is zero.
func (a HardwareAddr) IsZero() bool {
	return a == HardwareAddr{}
}

// MarshalText implements encoding.TextMarshaler.
func (a HardwareAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *HardwareAddr) UnmarshalText(text []byte) error {
	parsed, err := ParseHardwareAddr(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseHardwareAddr parses a 6-byte MAC address such as "1a:00:00:00:00:00".
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return HardwareAddr{}, fmt.Errorf("invalid hardware address %q: %w", s, err)
	}
	if len(mac) != 6 {
		return HardwareAddr{}, fmt.Errorf("invalid hardware address %q: want 6 bytes, got %d", s, len(mac))
	}
	var addr HardwareAddr
	copy(addr[:], mac)
	return addr, nil
}

// StationConfig is the association target handed to the driver.
type StationConfig struct {
	SSID       string
	Passphrase string
}

// StationLink is the link profile applied when the station duty is enabled.
type StationLink struct {
	// MAC overrides the station interface address when non-zero.
	MAC HardwareAddr

	// PowerSave keeps modem power saving enabled. Ranging needs it off.
	PowerSave bool
}

// AuthMode is the access-point authentication mode.
type AuthMode uint8

const (
	AuthOpen AuthMode = iota
	AuthWPA2PSK
	AuthWPA3PSK
	AuthWPA2WPA3PSK
)

// String returns the authentication mode name.
func (m AuthMode) String() string {
	switch m {
	case AuthOpen:
		return "OPEN"
	case AuthWPA2PSK:
		return "WPA2_PSK"
	case AuthWPA3PSK:
		return "WPA3_PSK"
	case AuthWPA2WPA3PSK:
		return "WPA2_WPA3_PSK"
	default:
		return "UNKNOWN"
	}
}

// Bandwidth is the channel width of the access point.
type Bandwidth uint8

const (
	BandwidthHT20 Bandwidth = 20
	BandwidthHT40 Bandwidth = 40
)

// AccessPointSettings is a fully validated access-point configuration.
type AccessPointSettings struct {
	SSID         string
	Passphrase   string
	Channel      uint8
	Bandwidth    Bandwidth
	MaxStations  uint8
	AuthMode     AuthMode
	FTMResponder bool
}

// SessionRequest describes one ranging session against an associated peer.
type SessionRequest struct {
	Peer        HardwareAddr
	Channel     uint8
	FrameCount  uint8
	BurstPeriod uint16 // in 100 ms units, 0 means no preference
	ReportMode  bool
}

// Notification is a one-shot connectionless frame.
type Notification struct {
	Peer    HardwareAddr
	Channel uint8
	Payload []byte
}

// RoleDriver queries and changes the radio role.
type RoleDriver interface {
	// Role returns the role currently applied to the radio.
	Role(ctx context.Context) (Role, error)

	// SetRole applies a role.
	SetRole(ctx context.Context, role Role) error

	// ConfigureStationLink applies the station link profile.
	ConfigureStationLink(ctx context.Context, link StationLink) error
}

// StationDriver configures and drives a station association.
// Connect and Disconnect only start the operation; the result arrives as
// EventStationConnected or EventStationDisconnected.
type StationDriver interface {
	ConfigureStation(ctx context.Context, cfg StationConfig) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// AccessPointDriver applies access-point settings. Invalid settings are
// rejected as a whole.
type AccessPointDriver interface {
	ConfigureAccessPoint(ctx context.Context, settings AccessPointSettings) error
}

// RangingDriver submits and terminates ranging sessions. The session result
// arrives as EventRangingReport.
type RangingDriver interface {
	StartSession(ctx context.Context, req SessionRequest) error
	EndSession(ctx context.Context) error
}

// Notifier sends one-shot connectionless frames.
type Notifier interface {
	SendNotification(ctx context.Context, n Notification) error
}

// EventSource delivers classified driver events. The channel is closed when
// the driver shuts down.
type EventSource interface {
	Events() <-chan Event
}

// Driver is the complete radio driver contract.
type Driver interface {
	RoleDriver
	StationDriver
	AccessPointDriver
	RangingDriver
	Notifier
	EventSource
}
