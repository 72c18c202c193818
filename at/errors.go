package at

import "errors"

var (
	// ErrCommandTooLong is returned when a rendered command does not fit
	// in MaxCommandLen bytes.
	ErrCommandTooLong = errors.New("command exceeds buffer")

	// ErrParamsMismatch is returned when a set operation is formatted
	// without parameters, or with parameters that belong to another command.
	ErrParamsMismatch = errors.New("parameters do not match command")

	// ErrArgType is returned when an argument is neither an int nor a string.
	ErrArgType = errors.New("unsupported argument type")

	// ErrUnknownCommand is returned by ParseCommand.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownOp is returned by ParseOp.
	ErrUnknownOp = errors.New("unknown operation")
)
