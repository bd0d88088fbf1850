package node

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

type mockStation struct {
	mock.Mock
}

func (m *mockStation) HandleConnected(a adapter.Association)    { m.Called(a) }
func (m *mockStation) HandleDisconnected(a adapter.Association) { m.Called(a) }

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Deliver(r adapter.Report) bool {
	return m.Called(r).Bool(0)
}

type mockAccessPoint struct {
	mock.Mock
}

func (m *mockAccessPoint) HandleStarted() { m.Called() }
func (m *mockAccessPoint) HandleStopped() { m.Called() }

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) Append(r record.Record) error {
	return m.Called(r).Error(0)
}

func TestDispatcherRoutesEvents(t *testing.T) {
	peer := adapter.HardwareAddr{0x24, 0x0a, 0xc4, 0, 0, 1}
	connected := adapter.Association{Peer: peer, Channel: 1, SSID: "FTM"}
	lost := adapter.Association{Peer: peer, Reason: 8}
	report := adapter.Report{Peer: peer, Status: adapter.StatusSuccess, Distance: 150}

	station := &mockStation{}
	station.On("HandleConnected", connected).Once()
	station.On("HandleDisconnected", lost).Once()
	reports := &mockReports{}
	reports.On("Deliver", report).Return(true).Once()
	ap := &mockAccessPoint{}
	ap.On("HandleStarted").Once()
	ap.On("HandleStopped").Once()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything).Return(errors.New("hub stopped"))

	events := make(chan adapter.Event, 8)
	events <- adapter.Event{Kind: adapter.EventStationConnected, Association: &connected}
	events <- adapter.Event{Kind: adapter.EventRangingReport, Report: &report}
	events <- adapter.Event{Kind: adapter.EventStationDisconnected, Association: &lost}
	events <- adapter.Event{Kind: adapter.EventAccessPointStarted}
	events <- adapter.Event{Kind: adapter.EventAccessPointStopped}
	events <- adapter.Event{Kind: adapter.EventRangingReport}
	events <- adapter.Event{Kind: adapter.EventKind(99)}
	close(events)

	d := NewDispatcher(DispatcherConfig{
		Events:      events,
		Station:     station,
		Reports:     reports,
		AccessPoint: ap,
		Publisher:   pub,
	})
	require.NoError(t, d.Run(context.Background()))

	station.AssertExpectations(t)
	reports.AssertExpectations(t)
	ap.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "Publish", 2)

	handled, ignored := d.Stats()
	assert.Equal(t, uint64(5), handled)
	assert.Equal(t, uint64(2), ignored)
}

func TestDispatcherIgnoresUnwiredEvents(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	d.Handle(adapter.Event{Kind: adapter.EventStationConnected, Association: &adapter.Association{}})
	d.Handle(adapter.Event{Kind: adapter.EventRangingReport, Report: &adapter.Report{}})
	d.Handle(adapter.Event{Kind: adapter.EventAccessPointStarted})

	handled, ignored := d.Stats()
	assert.Zero(t, handled)
	assert.Equal(t, uint64(3), ignored)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(DispatcherConfig{Events: make(chan adapter.Event)})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestRecorderFansOut(t *testing.T) {
	auditLog, err := audit.NewLogger(audit.Config{Path: filepath.Join(t.TempDir(), "audit.jsonl")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	appender := &mockAppender{}
	appender.On("Append", mock.MatchedBy(func(r record.Record) bool { return r.Kind == "success" })).Return(nil)
	appender.On("Append", mock.Anything).Return(errors.New("disk full"))
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything).Return(nil)

	r := NewRecorder(RecorderConfig{Audit: auditLog, Records: appender, Publisher: pub})

	now := time.Now()
	ok := ranging.Outcome{SessionID: uuid.New(), Kind: ranging.KindSuccess, Distance: 150, Started: now, Finished: now}
	timeout := ranging.Outcome{SessionID: uuid.New(), Kind: ranging.KindTimeout, Started: now, Finished: now}
	r.Record(context.Background(), ok)
	r.Record(context.Background(), timeout)

	assert.Equal(t, map[string]uint64{"success": 1, "timeout": 1}, r.Counts())
	assert.Equal(t, uint64(1), r.Failures())
	last, has := r.Last()
	require.True(t, has)
	assert.Equal(t, timeout.SessionID, last.SessionID)

	assert.Len(t, auditLog.Recent(audit.ActionRange, 0), 2)
	appender.AssertNumberOfCalls(t, "Append", 2)
	pub.AssertNumberOfCalls(t, "Publish", 2)
	pub.AssertCalled(t, "Publish", eventOfType(telemetry.TypeOutcome))
}

func TestRecorderWithoutSinks(t *testing.T) {
	r := NewRecorder(RecorderConfig{})
	_, has := r.Last()
	assert.False(t, has)

	r.Record(context.Background(), ranging.Outcome{Kind: ranging.KindFailure})
	assert.Equal(t, map[string]uint64{"failure": 1}, r.Counts())
	assert.Zero(t, r.Failures())
}
