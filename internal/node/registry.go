package node

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory node tree backed by a Repository.
//
// Nodes are loaded on startup via Load and kept in sync by the write-through
// methods below. Lifecycle "started" is never persisted; every process start
// waits for a fresh host start signal.
type Registry struct {
	repo   Repository
	nodes  map[string]*Node
	mu     sync.RWMutex
	logger Logger
}

// NewRegistry creates an empty registry on repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		nodes:  make(map[string]*Node),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load replaces the in-memory tree with the repository contents.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading nodes: %w", err)
	}

	nodes := make(map[string]*Node, len(records))
	for _, rec := range records {
		n := fromRecord(rec)
		nodes[n.address] = n
	}

	r.mu.Lock()
	r.nodes = nodes
	r.mu.Unlock()

	r.logger.Info("node registry loaded", "count", len(nodes))
	return nil
}

// fromRecord rebuilds a node, keeping the default driver order and filling in
// stored values.
func fromRecord(rec Record) *Node {
	drivers := DefaultDrivers(rec.Kind)
	stored := make(map[DriverName]Driver, len(rec.Drivers))
	for _, d := range rec.Drivers {
		stored[d.Name] = d
	}
	for i, d := range drivers {
		if s, ok := stored[d.Name]; ok {
			drivers[i].Value = s.Value
		}
	}
	n := newWithDrivers(rec.Kind, rec.Address, rec.Parent, rec.Name, rec.IP, drivers)
	n.registered = rec.Registered
	return n
}

// Add persists and caches a new node.
func (r *Registry) Add(ctx context.Context, n *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[n.address]; ok {
		return fmt.Errorf("%w: %s", ErrNodeExists, n.address)
	}

	snap := n.Snapshot()
	rec := Record{
		Address:    snap.Address,
		Parent:     snap.Parent,
		Name:       snap.Name,
		Kind:       snap.Kind,
		IP:         snap.IP,
		Registered: snap.Registered,
		Drivers:    snap.Drivers,
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("adding node %s: %w", n.address, err)
	}

	r.nodes[n.address] = n
	r.logger.Debug("node added", "address", n.address, "kind", n.kind)
	return nil
}

// Get returns the node with the given address.
func (r *Registry) Get(address string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, address)
	}
	return n, nil
}

// List returns every node, controller first, then by address.
func (r *Registry) List() []*Node {
	r.mu.RLock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.RUnlock()

	sortNodes(out)
	return out
}

// Children returns the nodes whose parent is parent, excluding parent itself,
// ordered by address.
func (r *Registry) Children(parent string) []*Node {
	r.mu.RLock()
	var out []*Node
	for _, n := range r.nodes {
		if n.parent == parent && n.address != parent {
			out = append(out, n)
		}
	}
	r.mu.RUnlock()

	sortNodes(out)
	return out
}

// UpdateDetails persists and applies a name or IP change.
func (r *Registry) UpdateDetails(ctx context.Context, address, name, ip string) (bool, error) {
	n, err := r.Get(address)
	if err != nil {
		return false, err
	}
	if n.Name() == name && n.IP() == ip {
		return false, nil
	}
	if err := r.repo.UpdateDetails(ctx, address, name, ip); err != nil {
		return false, fmt.Errorf("updating node %s: %w", address, err)
	}
	return n.SetDetails(name, ip), nil
}

// MarkRegistered persists and applies the add-node acknowledgment.
func (r *Registry) MarkRegistered(ctx context.Context, address string) (*Node, error) {
	n, err := r.Get(address)
	if err != nil {
		return nil, err
	}
	if err := r.repo.SetRegistered(ctx, address, true); err != nil {
		return nil, fmt.Errorf("registering node %s: %w", address, err)
	}
	n.MarkRegistered()
	return n, nil
}

// SaveDrivers persists the node's current driver values.
func (r *Registry) SaveDrivers(ctx context.Context, n *Node) error {
	if err := r.repo.SaveDrivers(ctx, n.address, n.Drivers()); err != nil {
		return fmt.Errorf("saving drivers for %s: %w", n.address, err)
	}
	return nil
}

// Remove deletes a node from the repository and the cache.
func (r *Registry) Remove(ctx context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[address]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, address)
	}
	if err := r.repo.Delete(ctx, address); err != nil {
		return fmt.Errorf("removing node %s: %w", address, err)
	}
	delete(r.nodes, address)
	r.logger.Debug("node removed", "address", address)
	return nil
}

// Count returns the number of cached nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		ci, cj := nodes[i].kind == KindController, nodes[j].kind == KindController
		if ci != cj {
			return ci
		}
		return nodes[i].address < nodes[j].address
	})
}
