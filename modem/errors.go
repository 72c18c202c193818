package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if initialization failed or if the Modem was not created
	// via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by every operation attempted afterwards.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrCommandFailed is returned when the module answers a command with
	// ERROR.
	ErrCommandFailed = errors.New("command failed")

	// ErrTimeout is returned when no terminator was received before the
	// command deadline.
	//
	// The command may still complete on the module; its late response is
	// discarded when the next command is dispatched.
	ErrTimeout = errors.New("command timeout")

	// ErrOverflow is returned when a response exceeds the response buffer.
	// Everything received past the capacity is lost.
	ErrOverflow = errors.New("response buffer overflow")

	// ErrOpNotAllowed is returned when a command is issued with an
	// operation it does not support. Nothing is transmitted.
	ErrOpNotAllowed = errors.New("operation not allowed for command")

	// ErrPassthroughActive is returned for any command other than
	// switching the transport mode back to normal while raw passthrough
	// is active. Nothing is transmitted.
	ErrPassthroughActive = errors.New("passthrough mode active")

	// ErrPassthroughNotAllowed is returned when passthrough is requested
	// without exactly one active stream link in single connection mode.
	ErrPassthroughNotAllowed = errors.New("passthrough requires a single active TCP connection")

	// ErrNoPassthrough is returned by the passthrough I/O methods when raw
	// passthrough was not entered.
	ErrNoPassthrough = errors.New("passthrough mode not active")

	// ErrUnsupported is returned for commands the driver does not implement
	// (deep sleep).
	ErrUnsupported = errors.New("command not supported")

	// ErrInvalidConn is returned when a connection id is outside the table.
	ErrInvalidConn = errors.New("invalid connection id")
)

// IsTimeout reports whether err is a command timeout. A context deadline
// that expires while waiting for the module is reported as ErrTimeout too.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
