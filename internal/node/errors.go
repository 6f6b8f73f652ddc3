package node

import "errors"

// Domain errors for the node package.
var (
	// ErrMissingDriver is returned when a driver name is not defined on a node.
	ErrMissingDriver = errors.New("node: driver not initialised")

	// ErrNotReady is returned when a push is attempted before the node has
	// been both registered and started.
	ErrNotReady = errors.New("node: lifecycle not ready")

	// ErrNodeNotFound is returned when an address is not in the registry.
	ErrNodeNotFound = errors.New("node: not found")

	// ErrNodeExists is returned when adding an address that is already present.
	ErrNodeExists = errors.New("node: already exists")

	// ErrInvalidNode is returned when a node fails validation.
	ErrInvalidNode = errors.New("node: invalid")
)
