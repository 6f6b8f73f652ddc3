package controller

import "errors"

// Domain errors for the controller.
var (
	// ErrInvalidParameters is returned when the custom parameters fail validation.
	ErrInvalidParameters = errors.New("controller: invalid parameters")

	// ErrCreateTimeout is returned when the host does not confirm a node
	// creation within the create timeout.
	ErrCreateTimeout = errors.New("controller: node creation not confirmed in time")

	// ErrUnknownPoll is returned for a poll type other than short or long.
	ErrUnknownPoll = errors.New("controller: unknown poll type")

	// ErrUnknownCommand is returned for a command the node does not define.
	ErrUnknownCommand = errors.New("controller: unknown command")
)
