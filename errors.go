package serial

import "errors"

// Error taxonomy. Open failures are retryable with a fresh open request,
// I/O failures require a reopen, channel and logging failures are logged
// and dropped. None of these are fatal to the process.
var (
	// ErrPortNotFound is returned when an operation names a port the
	// registry does not track.
	ErrPortNotFound = errors.New("serial: port not found")

	// ErrPortNotOpen is returned when a write is requested on a session
	// whose hardware handle is not open.
	ErrPortNotOpen = errors.New("serial: port not open")

	// ErrNoTask is returned when a request is made against a session that
	// has no running task to deliver it to.
	ErrNoTask = errors.New("serial: no session task")

	// ErrBridgeFull is returned by tick-loop sends into a full bridge
	// channel. The message is dropped; the tick loop must not block.
	ErrBridgeFull = errors.New("serial: bridge channel full")

	// ErrSessionErrored is returned when open/close is requested on a
	// session in the Error state before the error has been cleared.
	ErrSessionErrored = errors.New("serial: session in error state, clear first")

	// ErrInvalidSettings is returned by PortSettings validation.
	ErrInvalidSettings = errors.New("serial: invalid port settings")
)
