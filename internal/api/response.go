package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// SuccessResponse wraps data in an ok envelope.
func SuccessResponse(data interface{}) *Response {
	return &Response{Result: "ok", Data: data, CorrelationID: uuid.NewString()}
}

// ErrorResponse builds an error envelope.
func ErrorResponse(code, message string, details interface{}) *Response {
	return &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: uuid.NewString(),
	}
}

// WriteSuccess writes data with status 200.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, SuccessResponse(data))
}

// WriteError writes an error envelope with statusCode.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	writeResponse(w, statusCode, ErrorResponse(code, message, details))
}

// writeAuthError adapts WriteError to auth.ErrorWriter.
func writeAuthError(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	WriteError(w, status, code, message, nil)
}

// WriteAPIError maps err onto a status and envelope and writes it.
func WriteAPIError(w http.ResponseWriter, err error) {
	status, resp := ToAPIError(err)
	writeResponse(w, status, resp)
}

func writeResponse(w http.ResponseWriter, statusCode int, resp *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Correlation-ID", resp.CorrelationID)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
