package models

import "errors"

// Typed failure conditions surfaced to control-plane callers. Degraded
// service (stride increase, stream refusal) is reported, never hidden.
var (
	// ErrCapacityExceeded: the process-wide viewer subscription limit is
	// already reached; the subscribe call changed no state.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrNotRunning: the operation needs a running pipeline (e.g. processor
	// swap on an inactive camera).
	ErrNotRunning = errors.New("camera not running")

	// ErrUnknownCamera: the camera id is not in the device configuration.
	ErrUnknownCamera = errors.New("unknown camera")

	// ErrUnknownProcessor: the processor id is not registered.
	ErrUnknownProcessor = errors.New("unknown processor")
)
