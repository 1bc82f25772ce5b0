package mqtt

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the command subscription fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnknownCommand is returned for a set topic the bridge does not handle.
	ErrUnknownCommand = errors.New("mqtt: unknown command")

	// ErrInvalidPayload is returned when a command payload cannot be parsed.
	ErrInvalidPayload = errors.New("mqtt: invalid payload")
)
