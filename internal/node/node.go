package node

import (
	"fmt"
	"sync"
)

// Node is an addressable entity: the controller or one physical device.
// Identity fields are fixed at construction; drivers and lifecycle flags are
// guarded by an internal mutex.
type Node struct {
	address string
	parent  string
	kind    Kind

	mu         sync.Mutex
	name       string
	ip         string
	drivers    []Driver
	index      map[DriverName]int
	registered bool
	started    bool
}

// New creates a node with the default driver set for its kind.
// The controller node is its own parent.
func New(kind Kind, address, parent, name, ip string) (*Node, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, kind)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidNode)
	}
	if parent == "" {
		parent = address
	}
	return newWithDrivers(kind, address, parent, name, ip, DefaultDrivers(kind)), nil
}

func newWithDrivers(kind Kind, address, parent, name, ip string, drivers []Driver) *Node {
	n := &Node{
		address: address,
		parent:  parent,
		kind:    kind,
		name:    name,
		ip:      ip,
		drivers: drivers,
		index:   make(map[DriverName]int, len(drivers)),
	}
	for i, d := range drivers {
		n.index[d.Name] = i
	}
	return n
}

// Address returns the node's unique address.
func (n *Node) Address() string { return n.address }

// Parent returns the parent node address.
func (n *Node) Parent() string { return n.parent }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the display name.
func (n *Node) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.name
}

// IP returns the device IP address (empty for the controller).
func (n *Node) IP() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ip
}

// SetDetails updates the display name and IP. It reports whether anything changed.
func (n *Node) SetDetails(name, ip string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.name == name && n.ip == ip {
		return false
	}
	n.name, n.ip = name, ip
	return true
}

// GetDriver returns the cached value of a driver.
func (n *Node) GetDriver(name DriverName) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrMissingDriver, name, n.address)
	}
	return n.drivers[i].Value, nil
}

// Driver returns the full driver slot.
func (n *Node) Driver(name DriverName) (Driver, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.index[name]
	if !ok {
		return Driver{}, fmt.Errorf("%w: %s on %s", ErrMissingDriver, name, n.address)
	}
	return n.drivers[i], nil
}

// SetDriver stores a new value for a driver.
func (n *Node) SetDriver(name DriverName, value int) error {
	_, err := n.UpdateDriver(name, func(int) int { return value })
	return err
}

// UpdateDriver replaces a driver value with fn(current) under the node lock and
// returns the stored value.
func (n *Node) UpdateDriver(name DriverName, fn func(current int) int) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrMissingDriver, name, n.address)
	}
	n.drivers[i].Value = fn(n.drivers[i].Value)
	return n.drivers[i].Value, nil
}

// ResetDrivers sets every driver back to Uninitialized.
func (n *Node) ResetDrivers() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.drivers {
		n.drivers[i].Value = Uninitialized
	}
}

// Drivers returns a copy of the ordered driver set.
func (n *Node) Drivers() []Driver {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Driver, len(n.drivers))
	copy(out, n.drivers)
	return out
}

// MarkRegistered records the host's add-node acknowledgment.
func (n *Node) MarkRegistered() {
	n.mu.Lock()
	n.registered = true
	n.mu.Unlock()
}

// MarkStarted records the host's start signal.
func (n *Node) MarkStarted() {
	n.mu.Lock()
	n.started = true
	n.mu.Unlock()
}

// MarkStopped clears the start signal; pushes are refused until the next start.
func (n *Node) MarkStopped() {
	n.mu.Lock()
	n.started = false
	n.mu.Unlock()
}

// Registered reports whether the add-node acknowledgment arrived.
func (n *Node) Registered() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registered
}

// Started reports whether the host start signal arrived.
func (n *Node) Started() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// Snapshot returns a copy of the node's state.
func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	drivers := make([]Driver, len(n.drivers))
	copy(drivers, n.drivers)
	return Snapshot{
		Address:    n.address,
		Parent:     n.parent,
		Name:       n.name,
		Kind:       n.kind,
		IP:         n.ip,
		Registered: n.registered,
		Started:    n.started,
		Drivers:    drivers,
	}
}
