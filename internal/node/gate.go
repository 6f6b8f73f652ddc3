package node

import "fmt"

// CanPush reports whether the node may push status to the remote controller.
//
// The controller's node-creation API is asynchronous, so a push issued right
// after requesting creation can target a node the controller does not know
// yet. A node is ready only after the add-node acknowledgment (registered)
// and the host start signal (started).
func CanPush(n *Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registered && n.started
}

// CheckReady returns ErrNotReady, annotated with both flags, when CanPush is false.
func CheckReady(n *Node) error {
	n.mu.Lock()
	registered, started := n.registered, n.started
	n.mu.Unlock()

	if registered && started {
		return nil
	}
	return fmt.Errorf("%w: %s registered=%t started=%t", ErrNotReady, n.address, registered, started)
}
