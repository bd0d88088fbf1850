// Package adapter defines the radio driver contract used by the ranging node.
//
// The driver is the only component that talks to radio hardware. It exposes
// synchronous calls (role changes, association, access-point configuration,
// ranging session submission, one-shot notification sends) and a single
// asynchronous event stream. Everything above this package consumes the
// Driver interface and the classified Event values it delivers.
//
// Driver failures are normalized to ErrInvalidRange, ErrBusy, ErrUnavailable
// and ErrInternal by NormalizeDriverError while the original error is kept for
// diagnostics.
package adapter
