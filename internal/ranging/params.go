package ranging

import (
	"fmt"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

const (
	// MaxBursts is the largest number of bursts a session may run.
	MaxBursts = 16

	// BurstPeriodUnit is the unit of Params.BurstPeriod.
	BurstPeriodUnit = 100 * time.Millisecond

	// DefaultMinWait is the wait used when no burst period is requested.
	DefaultMinWait = 100 * time.Millisecond

	// MinBurstPeriod and MaxBurstPeriod bound a non-zero BurstPeriod.
	// Period 1 is reserved by the radio.
	MinBurstPeriod = 2
	MaxBurstPeriod = 255

	DefaultFrameCount  = 32
	DefaultBurstPeriod = 2
)

// Params are the per-session ranging parameters.
type Params struct {
	// FrameCount is the number of measurement frames requested.
	FrameCount uint8 `json:"frameCount" yaml:"frame_count"`

	// BurstPeriod is in 100 ms units; 0 means no preference, otherwise
	// MinBurstPeriod..MaxBurstPeriod.
	BurstPeriod uint16 `json:"burstPeriod" yaml:"burst_period"`

	// ReportMode asks the driver for per-frame entries in the report.
	ReportMode bool `json:"reportMode" yaml:"report_mode"`

	// MinWait is the deadline used when BurstPeriod is 0.
	MinWait time.Duration `json:"minWait" yaml:"min_wait"`
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		FrameCount:  DefaultFrameCount,
		BurstPeriod: DefaultBurstPeriod,
		ReportMode:  true,
		MinWait:     DefaultMinWait,
	}
}

// Validate checks the parameters a driver would reject. Errors wrap
// adapter.ErrInvalidRange.
func (p Params) Validate() error {
	if p.FrameCount == 0 {
		return fmt.Errorf("%w: frame count must be positive", adapter.ErrInvalidRange)
	}
	if p.BurstPeriod != 0 && (p.BurstPeriod < MinBurstPeriod || p.BurstPeriod > MaxBurstPeriod) {
		return fmt.Errorf("%w: burst period %d not 0 or %d..%d", adapter.ErrInvalidRange, p.BurstPeriod, MinBurstPeriod, MaxBurstPeriod)
	}
	if p.MinWait < 0 {
		return fmt.Errorf("%w: min wait must not be negative", adapter.ErrInvalidRange)
	}
	return nil
}

// Deadline returns how long a session may take before it is declared
// timed out: the burst period times MaxBursts, doubled, or MinWait when no
// burst period is set.
func Deadline(p Params) time.Duration {
	if p.BurstPeriod == 0 {
		if p.MinWait <= 0 {
			return DefaultMinWait
		}
		return p.MinWait
	}
	return time.Duration(p.BurstPeriod) * BurstPeriodUnit * MaxBursts * 2
}
