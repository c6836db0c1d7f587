package schema

import "errors"

var (
	// ErrStartFailed indicates the browser could not be launched or its
	// control endpoint never became reachable.
	ErrStartFailed = errors.New("browser start failed")
	// ErrTerminateFailed indicates an owned process was identified but
	// could not be terminated.
	ErrTerminateFailed = errors.New("owned browser process could not be terminated")
	// ErrElementNotFound indicates an element was not available within its
	// wait budget.
	ErrElementNotFound = errors.New("element not found")
	// ErrSessionClosed indicates the remote session is no longer usable.
	ErrSessionClosed = errors.New("session closed")
)
