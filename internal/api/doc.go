// Package api serves the node's HTTP status and control API.
//
// Routes live under /api/v1: health, status, measurements, a ranging
// trigger and the SSE telemetry stream. Every JSON response uses the
// envelope {result, data, code, message, details, correlationId}.
package api
