package ranging

import (
	"context"
	"sync"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
)

// Slot carries at most one ranging report from the event dispatcher to the
// waiting session. Each Arm starts a new generation and clears anything
// left over; reports delivered while disarmed, or while an unread report
// is pending, are dropped and counted.
type Slot struct {
	mu      sync.Mutex
	gen     uint64
	armed   bool
	ch      chan adapter.Report
	dropped uint64
}

// NewSlot returns a disarmed slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan adapter.Report, 1)}
}

// Arm clears the slot and opens a new generation.
func (s *Slot) Arm() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLocked()
	s.gen++
	s.armed = true
	return s.gen
}

// Deliver offers a report to the current generation. It reports whether
// the report was accepted.
func (s *Slot) Deliver(r adapter.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		s.dropped++
		return false
	}
	select {
	case s.ch <- r:
		return true
	default:
		s.dropped++
		return false
	}
}

// Await waits for the report of generation gen. It returns false when
// expire fires first.
func (s *Slot) Await(ctx context.Context, gen uint64, expire <-chan time.Time) (adapter.Report, bool, error) {
	for {
		select {
		case r := <-s.ch:
			s.mu.Lock()
			current := s.armed && s.gen == gen
			if !current {
				s.dropped++
			}
			s.mu.Unlock()
			if current {
				return r, true, nil
			}
		case <-expire:
			return adapter.Report{}, false, nil
		case <-ctx.Done():
			return adapter.Report{}, false, ctx.Err()
		}
	}
}

// Disarm closes generation gen and discards any unread report. Disarming
// a superseded generation does nothing.
func (s *Slot) Disarm(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.armed = false
	s.drainLocked()
}

// Armed reports whether a generation is open.
func (s *Slot) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Dropped returns the number of reports discarded so far.
func (s *Slot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Slot) drainLocked() {
	for {
		select {
		case <-s.ch:
			s.dropped++
		default:
			return
		}
	}
}
