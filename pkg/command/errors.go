package command

import "errors"

var (
	// ErrMissingKey is returned by Get and Delete when the key is absent.
	ErrMissingKey = errors.New("missing key")

	// ErrUnknownOpcode is returned when decoding a mutation whose opcode is
	// outside the closed command set.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncated is returned when a record ends mid-field.
	ErrTruncated = errors.New("truncated record")
)
