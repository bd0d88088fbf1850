// Package adaptertest provides a driver-agnostic conformance suite for
// adapter.Driver implementations.
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

// Capabilities describes what the suite may expect from a driver.
type Capabilities struct {
	// Name labels the report.
	Name string

	// SSID is an access point the station can join.
	SSID       string
	Passphrase string

	// EventTimeout bounds every wait for an asynchronous event.
	EventTimeout time.Duration
}

// ConformanceResult is the result of one check.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport is the complete suite report.
type ConformanceReport struct {
	DriverName    string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

type check struct {
	name string
	run  func(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error
}

var checks = []check{
	{"Role_RoundTrip", checkRoleRoundTrip},
	{"Role_RejectsUnknown", checkRoleRejectsUnknown},
	{"Station_RequiresRole", checkStationRequiresRole},
	{"Station_ConnectEvent", checkConnectEvent},
	{"Station_DisconnectEvent", checkDisconnectEvent},
	{"Ranging_RequiresAssociation", checkRangingRequiresAssociation},
	{"Ranging_Report", checkRangingReport},
	{"AccessPoint_StartEvent", checkAccessPointStart},
	{"AccessPoint_RejectsChannel", checkAccessPointRejectsChannel},
	{"Notify_Send", checkNotify},
	{"Context_Cancelled", checkCancelled},
}

// RunConformance runs every check against a fresh driver from newDriver.
// Drivers implementing io.Closer are closed after each check.
func RunConformance(t *testing.T, newDriver func() adapter.Driver, caps Capabilities) {
	t.Helper()
	if caps.EventTimeout == 0 {
		caps.EventTimeout = 2 * time.Second
	}
	if caps.Name == "" {
		caps.Name = "unknown driver"
	}

	started := time.Now()
	report := &ConformanceReport{DriverName: caps.Name, OverallPassed: true}

	for _, c := range checks {
		d := newDriver()
		result := ConformanceResult{TestName: c.name, Details: make(map[string]interface{})}
		ctx, cancel := context.WithTimeout(context.Background(), 4*caps.EventTimeout)

		begin := time.Now()
		err := c.run(ctx, d, caps, result.Details)
		result.Duration = time.Since(begin)
		cancel()

		if closer, ok := d.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Passed = true
		}
		report.addResult(result)
	}

	report.Duration = time.Since(started)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("driver conformance failed: %d/%d checks passed", report.PassedTests, report.TotalTests)
	}
}

func checkRoleRoundTrip(ctx context.Context, d adapter.Driver, _ Capabilities, details map[string]interface{}) error {
	for _, role := range []adapter.Role{adapter.RoleStation, adapter.RoleAccessPoint, adapter.RoleStationAccessPoint, adapter.RoleIdle} {
		if err := d.SetRole(ctx, role); err != nil {
			return fmt.Errorf("SetRole(%s): %w", role, err)
		}
		got, err := d.Role(ctx)
		if err != nil {
			return fmt.Errorf("Role: %w", err)
		}
		if got != role {
			return fmt.Errorf("Role = %s after SetRole(%s)", got, role)
		}
	}
	details["roles"] = 4
	return nil
}

func checkRoleRejectsUnknown(ctx context.Context, d adapter.Driver, _ Capabilities, details map[string]interface{}) error {
	err := d.SetRole(ctx, adapter.Role(200))
	if !errors.Is(err, adapter.ErrInvalidRange) {
		return fmt.Errorf("SetRole(200) = %v, want INVALID_RANGE", err)
	}
	details["error"] = err.Error()
	return nil
}

func checkStationRequiresRole(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	if err := d.SetRole(ctx, adapter.RoleAccessPoint); err != nil {
		return err
	}
	err := d.ConfigureStation(ctx, adapter.StationConfig{SSID: caps.SSID, Passphrase: caps.Passphrase})
	if err == nil {
		return errors.New("ConfigureStation succeeded without the station role")
	}
	if !isNormalized(err) {
		return fmt.Errorf("error not normalized: %v", err)
	}
	details["error"] = err.Error()
	return nil
}

func checkConnectEvent(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	ev, err := associate(ctx, d, caps)
	if err != nil {
		return err
	}
	if ev.Association == nil || ev.Association.Peer.IsZero() {
		return errors.New("connected event carries no peer")
	}
	if ev.Association.Channel < 1 || ev.Association.Channel > 14 {
		return fmt.Errorf("connected event channel %d out of range", ev.Association.Channel)
	}
	details["peer"] = ev.Association.Peer.String()
	details["channel"] = ev.Association.Channel
	return nil
}

func checkDisconnectEvent(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	if _, err := associate(ctx, d, caps); err != nil {
		return err
	}
	if err := d.Disconnect(ctx); err != nil {
		return fmt.Errorf("Disconnect: %w", err)
	}
	if _, err := awaitEvent(ctx, d, adapter.EventStationDisconnected, caps.EventTimeout); err != nil {
		return err
	}
	return nil
}

func checkRangingRequiresAssociation(ctx context.Context, d adapter.Driver, _ Capabilities, details map[string]interface{}) error {
	if err := d.SetRole(ctx, adapter.RoleStation); err != nil {
		return err
	}
	err := d.StartSession(ctx, adapter.SessionRequest{Peer: adapter.BroadcastAddr, Channel: 1, FrameCount: 32, BurstPeriod: 2})
	if err == nil {
		return errors.New("StartSession succeeded without association")
	}
	if !isNormalized(err) {
		return fmt.Errorf("error not normalized: %v", err)
	}
	details["error"] = err.Error()
	return nil
}

func checkRangingReport(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	ev, err := associate(ctx, d, caps)
	if err != nil {
		return err
	}
	peer := ev.Association.Peer
	req := adapter.SessionRequest{Peer: peer, Channel: ev.Association.Channel, FrameCount: 32, BurstPeriod: 2, ReportMode: true}
	if err := d.StartSession(ctx, req); err != nil {
		return fmt.Errorf("StartSession: %w", err)
	}
	rep, err := awaitEvent(ctx, d, adapter.EventRangingReport, caps.EventTimeout)
	if err != nil {
		return err
	}
	if rep.Report == nil {
		return errors.New("ranging event carries no report")
	}
	if rep.Report.Peer != peer {
		return fmt.Errorf("report peer %s, want %s", rep.Report.Peer, peer)
	}
	details["status"] = rep.Report.Status.String()
	details["distanceCm"] = rep.Report.Distance
	return d.EndSession(ctx)
}

func checkAccessPointStart(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	if err := d.SetRole(ctx, adapter.RoleAccessPoint); err != nil {
		return err
	}
	err := d.ConfigureAccessPoint(ctx, adapter.AccessPointSettings{
		SSID: caps.SSID, Passphrase: caps.Passphrase, Channel: 1,
		Bandwidth: adapter.BandwidthHT20, MaxStations: 4, AuthMode: adapter.AuthWPA2PSK, FTMResponder: true,
	})
	if err != nil {
		return fmt.Errorf("ConfigureAccessPoint: %w", err)
	}
	if _, err := awaitEvent(ctx, d, adapter.EventAccessPointStarted, caps.EventTimeout); err != nil {
		return err
	}
	return nil
}

func checkAccessPointRejectsChannel(ctx context.Context, d adapter.Driver, caps Capabilities, details map[string]interface{}) error {
	if err := d.SetRole(ctx, adapter.RoleAccessPoint); err != nil {
		return err
	}
	err := d.ConfigureAccessPoint(ctx, adapter.AccessPointSettings{
		SSID: caps.SSID, Channel: 15, Bandwidth: adapter.BandwidthHT20, AuthMode: adapter.AuthOpen,
	})
	if !errors.Is(err, adapter.ErrInvalidRange) {
		return fmt.Errorf("channel 15 = %v, want INVALID_RANGE", err)
	}
	return nil
}

func checkNotify(ctx context.Context, d adapter.Driver, _ Capabilities, details map[string]interface{}) error {
	if err := d.SetRole(ctx, adapter.RoleStation); err != nil {
		return err
	}
	err := d.SendNotification(ctx, adapter.Notification{Peer: adapter.BroadcastAddr, Channel: 1, Payload: []byte{0x01}})
	if err != nil {
		return fmt.Errorf("SendNotification: %w", err)
	}
	return nil
}

func checkCancelled(_ context.Context, d adapter.Driver, _ Capabilities, details map[string]interface{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Role(ctx); !errors.Is(err, context.Canceled) {
		return fmt.Errorf("Role on cancelled context = %v", err)
	}
	if err := d.SetRole(ctx, adapter.RoleStation); !errors.Is(err, context.Canceled) {
		return fmt.Errorf("SetRole on cancelled context = %v", err)
	}
	return nil
}

func associate(ctx context.Context, d adapter.Driver, caps Capabilities) (adapter.Event, error) {
	if err := d.SetRole(ctx, adapter.RoleStation); err != nil {
		return adapter.Event{}, fmt.Errorf("SetRole: %w", err)
	}
	if err := d.ConfigureStation(ctx, adapter.StationConfig{SSID: caps.SSID, Passphrase: caps.Passphrase}); err != nil {
		return adapter.Event{}, fmt.Errorf("ConfigureStation: %w", err)
	}
	if err := d.Connect(ctx); err != nil {
		return adapter.Event{}, fmt.Errorf("Connect: %w", err)
	}
	return awaitEvent(ctx, d, adapter.EventStationConnected, caps.EventTimeout)
}

// awaitEvent skips unrelated events until one of kind arrives.
func awaitEvent(ctx context.Context, d adapter.Driver, kind adapter.EventKind, timeout time.Duration) (adapter.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-d.Events():
			if !ok {
				return adapter.Event{}, errors.New("event stream closed")
			}
			if ev.Kind == kind {
				return ev, nil
			}
		case <-timer.C:
			return adapter.Event{}, fmt.Errorf("no %s event within %v", kind, timeout)
		case <-ctx.Done():
			return adapter.Event{}, ctx.Err()
		}
	}
}

func isNormalized(err error) bool {
	for _, code := range []error{adapter.ErrInvalidRange, adapter.ErrBusy, adapter.ErrUnavailable, adapter.ErrInternal} {
		if errors.Is(err, code) {
			return true
		}
	}
	return false
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("DRIVER CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Driver: %s", report.DriverName)
	t.Logf("Passed: %d/%d", report.PassedTests, report.TotalTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))
	t.Logf("%-32s %-6s %-12s %s", "CHECK", "RESULT", "DURATION", "DETAILS")

	for _, result := range report.Results {
		status := "PASS"
		details := result.Error
		if !result.Passed {
			status = "FAIL"
		} else if len(result.Details) > 0 {
			parts := make([]string, 0, len(result.Details))
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			sort.Strings(parts)
			details = strings.Join(parts, ", ")
		}
		t.Logf("%-32s %-6s %-12s %s", result.TestName, status, result.Duration, details)
	}
	t.Logf("%s", strings.Repeat("=", 80))
}
