package gmg

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnresponsive is returned when the retry budget of a command or
	// discovery is exhausted without a matching datagram.
	ErrDeviceUnresponsive = errors.New("gmg: device unresponsive")

	// ErrInvalidState is returned when a command is not allowed in the grill's
	// current power state.
	ErrInvalidState = errors.New("gmg: invalid state")

	// ErrProtocol is returned when the grill answered with something other than
	// what the command expects.
	ErrProtocol = errors.New("gmg: protocol error")

	// ErrTruncated is returned for status payloads shorter than the decoder needs.
	ErrTruncated = fmt.Errorf("%w: truncated status payload", ErrProtocol)
)
