package radio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter/fake"
)

var stationMAC = adapter.HardwareAddr{0x1a, 0, 0, 0, 0, 0}

func newManager(t *testing.T) (*Manager, *fake.Driver, *[][2]adapter.Role) {
	t.Helper()
	drv := fake.New(fake.Config{})
	t.Cleanup(func() { _ = drv.Close() })
	var changes [][2]adapter.Role
	m := NewManager(ManagerConfig{
		Driver:      drv,
		StationLink: adapter.StationLink{MAC: stationMAC},
		OnChange:    func(from, to adapter.Role) { changes = append(changes, [2]adapter.Role{from, to}) },
	})
	return m, drv, &changes
}

func TestManagerRequestStationAppliesLink(t *testing.T) {
	m, drv, changes := newManager(t)
	ctx := context.Background()

	role, err := m.Request(ctx, adapter.RoleStation)
	require.NoError(t, err)
	assert.Equal(t, adapter.RoleStation, role)

	st := drv.Snapshot()
	assert.Equal(t, adapter.RoleStation, st.Role)
	assert.Equal(t, stationMAC, st.Link.MAC)
	assert.False(t, st.Link.PowerSave)
	assert.Equal(t, [][2]adapter.Role{{adapter.RoleIdle, adapter.RoleStation}}, *changes)
	assert.Equal(t, 1, m.Status().Changes)
}

func TestManagerRequestAccessPointTwiceIsNoOp(t *testing.T) {
	m, drv, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Request(ctx, adapter.RoleAccessPoint)
	require.NoError(t, err)
	role, err := m.Request(ctx, adapter.RoleAccessPoint)
	assert.ErrorIs(t, err, ErrAccessPointActive)
	assert.Equal(t, adapter.RoleAccessPoint, role)
	assert.Equal(t, 1, drv.Calls(fake.OpSetRole))
	assert.Equal(t, 0, drv.Calls(fake.OpConfigureStationLink))
}

func TestManagerStationOntoAccessPoint(t *testing.T) {
	m, drv, changes := newManager(t)
	ctx := context.Background()

	_, err := m.Request(ctx, adapter.RoleAccessPoint)
	require.NoError(t, err)
	role, err := m.Request(ctx, adapter.RoleStation)
	require.NoError(t, err)
	assert.Equal(t, adapter.RoleStationAccessPoint, role)
	assert.Equal(t, 1, drv.Calls(fake.OpConfigureStationLink))
	assert.Len(t, *changes, 2)

	// Station is already part of the combined role.
	_, err = m.Request(ctx, adapter.RoleStation)
	assert.ErrorIs(t, err, ErrStationActive)
}

func TestManagerQueryFailureIsConfigurationError(t *testing.T) {
	m, drv, changes := newManager(t)
	drv.SetErrorSimulation(fake.OpRole, errors.New("ESP_ERR_WIFI_NOT_INIT"))

	_, err := m.Request(context.Background(), adapter.RoleStation)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "query", cfgErr.Op)
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
	assert.Equal(t, 0, drv.Calls(fake.OpSetRole))
	assert.Empty(t, *changes)
}

func TestManagerSetFailureIsConfigurationError(t *testing.T) {
	m, drv, _ := newManager(t)
	drv.SetErrorSimulation(fake.OpSetRole, errors.New("ESP_ERR_WIFI_STATE"))

	role, err := m.Request(context.Background(), adapter.RoleAccessPoint)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "set", cfgErr.Op)
	assert.Equal(t, adapter.RoleIdle, role)
	assert.Equal(t, adapter.RoleIdle, drv.Snapshot().Role)
}

func TestManagerCurrent(t *testing.T) {
	m, drv, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, drv.SetRole(ctx, adapter.RoleAccessPoint))

	role, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, adapter.RoleAccessPoint, role)
	assert.Equal(t, adapter.RoleAccessPoint, m.Status().Role)
}
