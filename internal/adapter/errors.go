package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized driver errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrInternal     = errors.New("INTERNAL")
)

// TokenMap lists the error tokens of one driver family per normalized code.
type TokenMap struct {
	Range       []string // tokens that map to INVALID_RANGE
	Busy        []string // tokens that map to BUSY
	Unavailable []string // tokens that map to UNAVAILABLE
}

// DriverErrorMappings holds the token tables per driver family. Matching is
// case-insensitive substring matching; anything unmatched is ErrInternal.
//
// The "esp" family covers the status names returned by the Wi-Fi stack of
// ESP32 class radios. Unknown families fall back to "generic".
var DriverErrorMappings = map[string]TokenMap{
	"esp": {
		Range: []string{
			"ESP_ERR_INVALID_ARG",
			"ESP_ERR_WIFI_SSID",
			"ESP_ERR_WIFI_PASSWORD",
			"ESP_ERR_WIFI_MAC",
			"ESP_ERR_WIFI_IF",
			"ESP_ERR_WIFI_MODE",
			"ESP_ERR_ESPNOW_ARG",
		},
		Busy: []string{
			"ESP_ERR_WIFI_STATE",
			"ESP_ERR_WIFI_CONN",
			"ESP_ERR_NO_MEM",
			"ESP_ERR_WIFI_NO_MEM",
			"ESP_ERR_ESPNOW_FULL",
			"ESP_ERR_TIMEOUT",
		},
		Unavailable: []string{
			"ESP_ERR_WIFI_NOT_INIT",
			"ESP_ERR_WIFI_NOT_STARTED",
			"ESP_ERR_WIFI_NOT_STOPPED",
			"ESP_ERR_WIFI_NOT_CONNECT",
			"ESP_ERR_ESPNOW_NOT_INIT",
			"ESP_ERR_NOT_SUPPORTED",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_ARG",
			"INVALID_PARAMETER",
			"BAD_VALUE",
		},
		Busy: []string{
			"BUSY",
			"IN_PROGRESS",
			"RETRY",
			"NO_MEM",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"NOT_INIT",
			"NOT_STARTED",
			"NOT_READY",
			"OFFLINE",
		},
	},
}

// DriverError keeps the raw driver failure next to its normalized code.
type DriverError struct {
	Code     error       // normalized code
	Original error       // raw driver error
	Details  interface{} // driver payload, opaque
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver: %v)", e.Code, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// NormalizeDriverError maps a driver error using the generic token table.
func NormalizeDriverError(driverErr error, payload interface{}) error {
	return NormalizeDriverErrorFor(driverErr, payload, "generic")
}

// NormalizeDriverErrorFor maps a driver error using the table of family.
// Errors that already carry a normalized code are returned unchanged.
func NormalizeDriverErrorFor(driverErr error, payload interface{}, family string) error {
	if driverErr == nil {
		return nil
	}

	var already *DriverError
	if errors.As(driverErr, &already) {
		return driverErr
	}
	for _, code := range []error{ErrInvalidRange, ErrBusy, ErrUnavailable, ErrInternal} {
		if errors.Is(driverErr, code) {
			return &DriverError{Code: code, Original: driverErr, Details: payload}
		}
	}

	return &DriverError{
		Code:     codeForMessage(driverErr.Error(), family),
		Original: driverErr,
		Details:  payload,
	}
}

func codeForMessage(msg string, family string) error {
	tokens, ok := DriverErrorMappings[family]
	if !ok {
		tokens = DriverErrorMappings["generic"]
	}

	upper := strings.ToUpper(msg)
	match := func(list []string) bool {
		for _, token := range list {
			if strings.Contains(upper, strings.ToUpper(token)) {
				return true
			}
		}
		return false
	}

	switch {
	case match(tokens.Range):
		return ErrInvalidRange
	case match(tokens.Busy):
		return ErrBusy
	case match(tokens.Unavailable):
		return ErrUnavailable
	default:
		return ErrInternal
	}
}
