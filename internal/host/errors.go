package host

import "errors"

// Domain errors for the host link.
var (
	// ErrUnknownEvent is returned for an inbound topic with no handler.
	ErrUnknownEvent = errors.New("host: unknown event")

	// ErrInvalidPayload is returned when an inbound payload cannot be decoded.
	ErrInvalidPayload = errors.New("host: invalid payload")

	// ErrClosed is returned when sending after Close.
	ErrClosed = errors.New("host: link closed")
)
