package ranging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

func TestSlotDropsWhileDisarmed(t *testing.T) {
	s := NewSlot()
	assert.False(t, s.Deliver(adapter.Report{Distance: 1}))
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSlotDeliversToCurrentGeneration(t *testing.T) {
	s := NewSlot()
	gen := s.Arm()
	require.True(t, s.Deliver(adapter.Report{Distance: 42}))

	r, ok, err := s.Await(context.Background(), gen, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(42), r.Distance)
}

func TestSlotHoldsOneReport(t *testing.T) {
	s := NewSlot()
	s.Arm()
	assert.True(t, s.Deliver(adapter.Report{Distance: 1}))
	assert.False(t, s.Deliver(adapter.Report{Distance: 2}))
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSlotArmClearsStaleReport(t *testing.T) {
	s := NewSlot()
	old := s.Arm()
	require.True(t, s.Deliver(adapter.Report{Distance: 1}))

	gen := s.Arm()
	assert.NotEqual(t, old, gen)

	expired := make(chan time.Time, 1)
	expired <- time.Now()
	_, ok, err := s.Await(context.Background(), gen, expired)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSlotDisarmDrains(t *testing.T) {
	s := NewSlot()
	gen := s.Arm()
	require.True(t, s.Deliver(adapter.Report{}))
	s.Disarm(gen)
	assert.False(t, s.Armed())
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestSlotDisarmIgnoresSupersededGeneration(t *testing.T) {
	s := NewSlot()
	old := s.Arm()
	s.Arm()
	s.Disarm(old)
	assert.True(t, s.Armed())
}

func TestSlotAwaitHonoursContext(t *testing.T) {
	s := NewSlot()
	gen := s.Arm()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := s.Await(ctx, gen, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
