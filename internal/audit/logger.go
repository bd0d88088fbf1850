// Package audit writes one JSON line per ranging session and per control
// action to a size-rotated log file, and keeps the most recent entries in
// memory.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/association"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/radio"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time              `json:"ts"`
	Actor      string                 `json:"actor"`
	Action     string                 `json:"action"`
	SessionID  string                 `json:"sessionId,omitempty"`
	Peer       string                 `json:"peer,omitempty"`
	Outcome    string                 `json:"outcome"`
	Status     string                 `json:"status,omitempty"`
	RTTNs      uint32                 `json:"rttNs,omitempty"`
	RTTEstNs   uint32                 `json:"rttEstNs,omitempty"`
	DistanceCm uint32                 `json:"distanceCm,omitempty"`
	Entries    int                    `json:"entries,omitempty"`
	LatencyMs  int64                  `json:"latencyMs"`
	Code       string                 `json:"code"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// Actions recorded by the node.
const (
	ActionRange       = "range"
	ActionJoin        = "join"
	ActionStartAP     = "start_ap"
	ActionNotify      = "notify"
	ActionTriggerAPI  = "api_range"
	DefaultHistoryLen = 256
)

// Config configures a Logger.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// HistoryLen bounds the in-memory history. Defaults to DefaultHistoryLen.
	HistoryLen int
}

// Logger writes audit entries.
type Logger struct {
	mu      sync.Mutex
	path    string
	out     *lumberjack.Logger
	history []Entry
	next    int
	full    bool
	closed  bool
}

// NewLogger opens the audit log at cfg.Path, creating its directory.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit: path required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = DefaultHistoryLen
	}
	return &Logger{
		path: cfg.Path,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		history: make([]Entry, cfg.HistoryLen),
	}, nil
}

type actorKey struct{}

// WithActor attaches the acting principal to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the principal attached by WithActor, or "node".
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "node"
}

// LogOutcome records a finished ranging session.
func (l *Logger) LogOutcome(ctx context.Context, out ranging.Outcome) {
	entry := Entry{
		Timestamp: out.Finished.UTC(),
		Actor:     ActorFrom(ctx),
		Action:    ActionRange,
		SessionID: out.SessionID.String(),
		Peer:      out.Peer.String(),
		Outcome:   out.Kind.String(),
		LatencyMs: out.Duration().Milliseconds(),
		Entries:   out.Entries,
	}
	switch out.Kind {
	case ranging.KindSuccess:
		entry.Status = out.Status.String()
		entry.RTTNs = out.RTT
		entry.RTTEstNs = out.RTTEst
		entry.DistanceCm = out.Distance
		entry.Code = "SUCCESS"
	case ranging.KindFailure:
		entry.Status = out.Status.String()
		entry.Code = "FAILURE"
	default:
		entry.Code = "TIMEOUT"
	}
	l.write(entry)
}

// LogAction records a control action and its result.
func (l *Logger) LogAction(ctx context.Context, action string, params map[string]interface{}, latency time.Duration, err error) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Actor:     ActorFrom(ctx),
		Action:    action,
		Outcome:   "success",
		LatencyMs: latency.Milliseconds(),
		Code:      CodeFor(err),
		Params:    params,
	}
	if err != nil {
		entry.Outcome = "error"
	}
	l.write(entry)
}

// Recent returns up to limit of the latest entries for action, newest
// first. An empty action matches all entries.
func (l *Logger) Recent(action string, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.history)
	}
	var out []Entry
	for i := 0; i < size && (limit <= 0 || len(out) < limit); i++ {
		idx := (l.next - 1 - i + len(l.history)) % len(l.history)
		if action == "" || l.history[idx].Action == action {
			out = append(out, l.history[idx])
		}
	}
	return out
}

// Path returns the active log file path.
func (l *Logger) Path() string {
	return l.path
}

// Rotate starts a new log file, keeping the old one as a backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Rotate()
}

// Close closes the log file. Later entries are kept in memory only.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.out.Close()
}

func (l *Logger) write(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history[l.next] = entry
	l.next = (l.next + 1) % len(l.history)
	if l.next == 0 {
		l.full = true
	}
	if l.closed {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// CodeFor maps an error to its audit code.
func CodeFor(err error) string {
	var (
		verr *accesspoint.ValidationError
		cerr *radio.ConfigurationError
	)
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, ranging.ErrNotAssociated):
		return "NOT_ASSOCIATED"
	case errors.Is(err, ranging.ErrSessionInFlight), errors.Is(err, adapter.ErrBusy):
		return "BUSY"
	case errors.Is(err, association.ErrJoinTimeout), errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.As(err, &verr), errors.Is(err, adapter.ErrInvalidRange):
		return "INVALID_RANGE"
	case errors.Is(err, adapter.ErrUnavailable):
		return "UNAVAILABLE"
	case errors.As(err, &cerr):
		return "CONFIGURATION"
	default:
		return "INTERNAL"
	}
}

var _ io.Closer = (*Logger)(nil)
