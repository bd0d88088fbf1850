package node

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/record"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/telemetry"
)

// RecorderConfig configures a Recorder. Every sink is optional.
type RecorderConfig struct {
	Audit     OutcomeLogger
	Records   RecordAppender
	Publisher telemetry.Publisher

	LoggerFactory logging.LoggerFactory
}

// Recorder hands each finished session to the audit log, the record file
// and the telemetry stream, and counts outcomes per kind.
type Recorder struct {
	audit   OutcomeLogger
	records RecordAppender
	pub     telemetry.Publisher
	log     logging.LeveledLogger

	mu       sync.Mutex
	counts   map[ranging.Kind]uint64
	failures uint64
	last     ranging.Outcome
	hasLast  bool
}

// NewRecorder creates a recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Recorder{
		audit:   cfg.Audit,
		records: cfg.Records,
		pub:     cfg.Publisher,
		log:     cfg.LoggerFactory.NewLogger("recorder"),
		counts:  make(map[ranging.Kind]uint64),
	}
}

// Record stores out. Sink failures are logged and counted, never returned.
func (r *Recorder) Record(ctx context.Context, out ranging.Outcome) {
	if r.audit != nil {
		r.audit.LogOutcome(ctx, out)
	}

	var failed bool
	if r.records != nil {
		if err := r.records.Append(record.FromOutcome(out)); err != nil {
			r.log.Warnf("append record for session %s: %v", out.SessionID, err)
			failed = true
		}
	}
	if r.pub != nil {
		if err := r.pub.Publish(telemetry.OutcomeEvent(out)); err != nil {
			r.log.Debugf("publish outcome %s: %v", out.SessionID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[out.Kind]++
	if failed {
		r.failures++
	}
	r.last = out
	r.hasLast = true
}

// Counts returns the number of recorded outcomes per kind name.
func (r *Recorder) Counts() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint64, len(r.counts))
	for kind, n := range r.counts {
		out[kind.String()] = n
	}
	return out
}

// Last returns the most recent outcome.
func (r *Recorder) Last() (ranging.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Failures returns how many records could not be appended.
func (r *Recorder) Failures() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}
