// Package errs defines the error taxonomy shared by the capture,
// dissection, and broadcast layers. Sentinel values are compared with
// errors.Is so callers can branch on category without string matching.
package errs

import "errors"

// Capture errors: the first three are fatal at startup, DeviceClosed is
// terminal for the running pipeline.
var (
	ErrInterfaceUnavailable = errors.New("capture: interface unavailable")
	ErrPermissionDenied     = errors.New("capture: permission denied")
	ErrFilterInvalid        = errors.New("capture: invalid BPF filter")
	ErrDeviceClosed         = errors.New("capture: device closed")
)

// Parse errors: always recovered locally by the dissector that raised
// them — the offending LayerRecord is emitted with Partial=true and no
// inner layer is attempted.
var (
	ErrTruncated          = errors.New("parse: truncated")
	ErrMalformedField     = errors.New("parse: malformed field")
	ErrUnsupportedVersion = errors.New("parse: unsupported version")
	ErrLoopDetected       = errors.New("parse: loop detected")
)

// Transport errors: always scoped to a single subscriber, never fatal
// to the broadcast server itself.
var (
	ErrHandshakeFailed  = errors.New("transport: handshake failed")
	ErrUnauthorized     = errors.New("transport: unauthorized")
	ErrHeartbeatTimeout = errors.New("transport: heartbeat timeout")
	ErrPeerClosed       = errors.New("transport: peer closed")
	ErrWriteFailed      = errors.New("transport: write failed")
)

// ErrConfig wraps configuration errors surfaced only at startup (exit
// code 2).
var ErrConfig = errors.New("config: invalid configuration")
