package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps a level name to a pion log level.
func ParseLevel(name string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "", "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", name)
	}
}

// LoggerFactory returns a leveled logger factory writing to w at the
// configured level.
func (l LogConfig) LoggerFactory(w io.Writer) logging.LoggerFactory {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = level
	f.Writer = w
	return f
}
