package ranging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter/fake"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
)

type staticAssociation struct {
	snap association.Snapshot
}

func (s staticAssociation) Snapshot() association.Snapshot { return s.snap }

var connected = staticAssociation{snap: association.Snapshot{
	State:   association.StateConnected,
	Peer:    fake.DefaultBSSID,
	Channel: 1,
}}

// newAssociatedController returns a controller over a fake driver whose
// station is associated, with reports pumped into the controller.
func newAssociatedController(t *testing.T, params Params) (*Controller, *fake.Driver) {
	t.Helper()
	drv := fake.New(fake.Config{EventDelay: time.Millisecond})
	ctx := context.Background()
	require.NoError(t, drv.SetRole(ctx, adapter.RoleStation))
	require.NoError(t, drv.ConfigureStation(ctx, adapter.StationConfig{SSID: "FTM"}))
	require.NoError(t, drv.Connect(ctx))
	select {
	case ev := <-drv.Events():
		require.Equal(t, adapter.EventStationConnected, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no connected event")
	}

	c := NewController(Config{Driver: drv, Association: connected, Params: params})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range drv.Events() {
			if ev.Kind == adapter.EventRangingReport {
				c.Deliver(*ev.Report)
			}
		}
	}()
	t.Cleanup(func() {
		_ = drv.Close()
		<-done
	})
	return c, drv
}

func firesNow(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestRangeOnceSuccess(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})

	out, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, fake.DefaultBSSID, out.Peer)
	assert.Equal(t, adapter.StatusSuccess, out.Status)
	assert.Equal(t, uint32(150), out.Distance)
	assert.Equal(t, uint32(10), out.RTT)
	assert.Equal(t, DefaultFrameCount, out.Entries)
	assert.NotEqual(t, uuid.Nil, out.SessionID)
	assert.False(t, out.Finished.Before(out.Started))
	assert.Equal(t, 0, drv.Calls(fake.OpEndSession))
	assert.False(t, c.InFlight())
	assert.False(t, c.slot.Armed())
}

func TestRangeOnceFailureStatus(t *testing.T) {
	for _, status := range []adapter.ReportStatus{adapter.StatusFail, adapter.StatusNoResponse, adapter.StatusUserTerminated} {
		t.Run(status.String(), func(t *testing.T) {
			c, drv := newAssociatedController(t, Params{})
			drv.SetSessionBehavior(func(req adapter.SessionRequest) (*adapter.Report, time.Duration) {
				return fake.Report(req.Peer, status, 0, 0), time.Millisecond
			})

			out, err := c.RangeOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, KindFailure, out.Kind)
			assert.Equal(t, status, out.Status)
			assert.Equal(t, fake.DefaultBSSID, out.Peer)
			assert.Zero(t, out.Distance)
		})
	}
}

func TestRangeOnceFailureReportsPeerFromReport(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})
	other := adapter.HardwareAddr{0x24, 0x0a, 0xc4, 0, 0, 9}
	drv.SetSessionBehavior(func(adapter.SessionRequest) (*adapter.Report, time.Duration) {
		return fake.Report(other, adapter.StatusNoResponse, 0, 0), time.Millisecond
	})

	out, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindFailure, out.Kind)
	assert.Equal(t, other, out.Peer)
}

func TestRangeOnceTimeoutEndsSessionOnce(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})
	drv.SetSessionBehavior(func(adapter.SessionRequest) (*adapter.Report, time.Duration) { return nil, 0 })

	var waited []time.Duration
	c.after = func(d time.Duration) <-chan time.Time {
		waited = append(waited, d)
		return firesNow(d)
	}

	out, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindTimeout, out.Kind)
	assert.Equal(t, []time.Duration{6400 * time.Millisecond}, waited)
	assert.Equal(t, 1, drv.Calls(fake.OpEndSession))
	assert.False(t, drv.Snapshot().SessionActive)

	sessions, timeouts, _ := c.Stats()
	assert.Equal(t, uint64(1), sessions)
	assert.Equal(t, uint64(1), timeouts)
}

func TestLateReportIsNotAttributedToNextSession(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})

	var calls int
	var mu sync.Mutex
	drv.SetSessionBehavior(func(req adapter.SessionRequest) (*adapter.Report, time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return fake.Report(req.Peer, adapter.StatusSuccess, 999, 1), 30 * time.Millisecond
		}
		return fake.Report(req.Peer, adapter.StatusSuccess, 250, 32), time.Millisecond
	})

	c.after = firesNow
	first, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, KindTimeout, first.Kind)

	require.Eventually(t, func() bool {
		_, _, dropped := c.Stats()
		return dropped == 1
	}, time.Second, 2*time.Millisecond)

	c.after = time.After
	second, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, second.Kind)
	assert.Equal(t, uint32(250), second.Distance)
}

func TestRangeOnceNotAssociated(t *testing.T) {
	drv := fake.New(fake.Config{})
	defer drv.Close()
	c := NewController(Config{Driver: drv, Association: staticAssociation{}})

	_, err := c.RangeOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotAssociated)
	assert.Equal(t, 0, drv.Calls(fake.OpStartSession))
	assert.False(t, c.slot.Armed())
	assert.False(t, c.InFlight())
}

func TestRangeOnceStartRejected(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})
	drv.SetErrorSimulation(fake.OpStartSession, errors.New("ESP_ERR_WIFI_STATE"))

	waitedFor := false
	c.after = func(d time.Duration) <-chan time.Time {
		waitedFor = true
		return firesNow(d)
	}

	_, err := c.RangeOnce(context.Background())
	var startErr *SessionStartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, fake.DefaultBSSID, startErr.Peer)
	assert.ErrorIs(t, err, adapter.ErrBusy)
	assert.False(t, waitedFor)
	assert.False(t, c.slot.Armed())
	assert.Equal(t, 0, drv.Calls(fake.OpEndSession))
}

func TestRangeOnceSingleSessionInFlight(t *testing.T) {
	c, drv := newAssociatedController(t, Params{FrameCount: 8, MinWait: 300 * time.Millisecond})
	drv.SetSessionBehavior(func(adapter.SessionRequest) (*adapter.Report, time.Duration) { return nil, 0 })

	done := make(chan Outcome, 1)
	go func() {
		out, _ := c.RangeOnce(context.Background())
		done <- out
	}()
	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

	_, err := c.RangeOnce(context.Background())
	assert.ErrorIs(t, err, ErrSessionInFlight)

	out := <-done
	assert.Equal(t, KindTimeout, out.Kind)
	assert.Equal(t, 1, drv.Calls(fake.OpStartSession))
}

func TestRangeOnceCancelled(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})
	drv.SetSessionBehavior(func(adapter.SessionRequest) (*adapter.Report, time.Duration) { return nil, 0 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.RangeOnce(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, drv.Calls(fake.OpEndSession))
	assert.False(t, c.slot.Armed())
}

func TestRangeWithRejectsZeroFrames(t *testing.T) {
	c := NewController(Config{Association: connected})
	_, err := c.RangeWith(context.Background(), Params{BurstPeriod: 2})
	assert.ErrorIs(t, err, adapter.ErrInvalidRange)
}

func TestRangeWithRejectsBurstPeriodOutOfRange(t *testing.T) {
	c, drv := newAssociatedController(t, Params{})
	for _, period := range []uint16{1, MaxBurstPeriod + 1, 65535} {
		_, err := c.RangeWith(context.Background(), Params{FrameCount: 8, BurstPeriod: period})
		assert.ErrorIs(t, err, adapter.ErrInvalidRange, "period %d", period)
	}
	assert.Equal(t, 0, drv.Calls(fake.OpStartSession))
	assert.False(t, c.InFlight())

	// The driving loop is not locked out by a rejected request.
	out, err := c.RangeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, out.Kind)
}

func TestDeadline(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   time.Duration
	}{
		{"default", DefaultParams(), 6400 * time.Millisecond},
		{"longest period", Params{FrameCount: 16, BurstPeriod: MaxBurstPeriod}, 816 * time.Second},
		{"no burst period uses min wait", Params{FrameCount: 16, MinWait: 250 * time.Millisecond}, 250 * time.Millisecond},
		{"no burst period no min wait", Params{FrameCount: 16}, DefaultMinWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Deadline(tt.params))
		})
	}
}

func TestOutcomeDistance(t *testing.T) {
	assert.InDelta(t, 1.5, Outcome{Distance: 150}.DistanceMeters(), 1e-9)
	assert.Equal(t, "1.50", Outcome{Distance: 150}.FormatDistance())
	assert.Equal(t, "0.05", Outcome{Distance: 5}.FormatDistance())
	assert.Equal(t, "12.34", Outcome{Distance: 1234}.FormatDistance())
}
