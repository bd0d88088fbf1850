package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/accesspoint"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/adapter"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

// APIError is an error that already knows its response.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates an APIError.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, StatusCode: statusCode}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToAPIError maps err onto an HTTP status and error envelope.
func ToAPIError(err error) (int, *Response) {
	var (
		apiErr   *APIError
		drvErr   *adapter.DriverError
		startErr *ranging.SessionStartError
		valErr   *accesspoint.ValidationError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr.StatusCode, ErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	case errors.Is(err, ranging.ErrNotAssociated):
		return http.StatusConflict, ErrorResponse("NOT_ASSOCIATED", "Station is not associated with an access point", nil)
	case errors.Is(err, ranging.ErrSessionInFlight):
		return http.StatusServiceUnavailable, ErrorResponse("BUSY", "A ranging session is already in flight, retry later", nil)
	case errors.As(err, &valErr):
		return http.StatusBadRequest, ErrorResponse("INVALID_RANGE", valErr.Error(),
			map[string]string{"field": valErr.Field, "reason": valErr.Reason})
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse("TIMEOUT", "Operation timed out", nil)
	}

	var details interface{}
	if errors.As(err, &drvErr) && drvErr.Original != nil {
		details = map[string]interface{}{"driver": drvErr.Original.Error(), "details": drvErr.Details}
	}
	if errors.As(err, &startErr) {
		details = map[string]interface{}{"peer": startErr.Peer.String(), "driver": details}
	}

	switch {
	case errors.Is(err, adapter.ErrInvalidRange):
		return http.StatusBadRequest, ErrorResponse("INVALID_RANGE", "Parameter value is outside the allowed range", withOriginal(details, err))
	case errors.Is(err, adapter.ErrBusy):
		return http.StatusServiceUnavailable, ErrorResponse("BUSY", "Radio is busy, please retry with backoff", details)
	case errors.Is(err, adapter.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse("UNAVAILABLE", "Radio is temporarily unavailable", details)
	default:
		return http.StatusInternalServerError, ErrorResponse("INTERNAL", "Internal server error", withOriginal(details, err))
	}
}

func withOriginal(details interface{}, err error) interface{} {
	if details != nil {
		return details
	}
	return map[string]interface{}{"original": err.Error()}
}
