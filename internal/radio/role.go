package radio

import (
	"errors"
	"fmt"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

var (
	// ErrNoChange means the requested duty adds nothing to the current role.
	ErrNoChange = errors.New("radio: role unchanged")

	// ErrStationActive means the station duty is already active. The
	// caller must tear the association down before joining again.
	ErrStationActive = fmt.Errorf("radio: station role already active: %w", ErrNoChange)

	// ErrAccessPointActive means the access-point duty is already active.
	// Nothing needs to happen.
	ErrAccessPointActive = fmt.Errorf("radio: access-point role already active: %w", ErrNoChange)

	// ErrInvalidRole is returned for requests other than Station or AccessPoint.
	ErrInvalidRole = errors.New("radio: invalid role request")
)

// Merge combines a requested duty with the current role.
//
// Station is added to Idle or AccessPoint; AccessPoint is added to Idle or
// Station. Requesting a duty that is already present yields
// ErrStationActive or ErrAccessPointActive, both of which wrap ErrNoChange.
// Merge never removes a duty.
func Merge(current, requested adapter.Role) (adapter.Role, error) {
	if !current.Valid() {
		return current, fmt.Errorf("%w: current role %d", ErrInvalidRole, current)
	}

	switch requested {
	case adapter.RoleStation:
		switch current {
		case adapter.RoleStation, adapter.RoleStationAccessPoint:
			return current, ErrStationActive
		case adapter.RoleAccessPoint:
			return adapter.RoleStationAccessPoint, nil
		default:
			return adapter.RoleStation, nil
		}
	case adapter.RoleAccessPoint:
		switch current {
		case adapter.RoleAccessPoint, adapter.RoleStationAccessPoint:
			return current, ErrAccessPointActive
		case adapter.RoleStation:
			return adapter.RoleStationAccessPoint, nil
		default:
			return adapter.RoleAccessPoint, nil
		}
	case adapter.RoleIdle:
		return current, ErrNoChange
	default:
		return current, fmt.Errorf("%w: %s", ErrInvalidRole, requested)
	}
}
