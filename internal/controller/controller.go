package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// DefaultAddress is the controller node's address.
const DefaultAddress = "controller"

// Texts pushed to the GPV driver.
const (
	textRunning   = "NodeServer Running"
	textShortPoll = "Last Short Poll Date / Time: "
	textLongPoll  = "Last Long Poll Date / Time: "

	// pollTimeLayout renders as 05/10/2024 01:02:03 PM.
	pollTimeLayout = "01/02/2006 03:04:05 PM"
)

// CommandDiscover is the only command the node definitions declare.
const CommandDiscover = "DISCOVER"

// PollKind distinguishes the host's two poll timers.
type PollKind string

// Poll kinds.
const (
	PollShort PollKind = "short"
	PollLong  PollKind = "long"
)

// ParsePollKind accepts "short"/"long" and the host's "shortPoll"/"longPoll".
func ParsePollKind(s string) (PollKind, error) {
	switch strings.ToLower(s) {
	case "short", "shortpoll":
		return PollShort, nil
	case "long", "longpoll":
		return PollLong, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPoll, s)
	}
}

// Host is the controller's view of the host process.
type Host interface {
	// AddNode asks the host to create or update a node. The host confirms
	// creation asynchronously with an add-node-done event.
	AddNode(ctx context.Context, n node.Snapshot) error

	// RemoveNode asks the host to delete a node.
	RemoveNode(ctx context.Context, address string) error

	// SetNotice shows a notice keyed by parameter name.
	SetNotice(key, text string) error

	// ClearNotices removes every notice.
	ClearNotices() error
}

// Pusher delivers status pushes.
type Pusher interface {
	PushText(ctx context.Context, n *node.Node, driver node.DriverName, text string) report.Result
	PushValue(ctx context.Context, n *node.Node, driver node.DriverName, value int) report.Result
}

// Logger defines the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Controller.
type Options struct {
	Registry *node.Registry
	Pusher   Pusher
	Host     Host

	// Address defaults to DefaultAddress.
	Address string

	// Name is the controller node's display name.
	Name string

	// CreateTimeout bounds each child creation. Must be positive.
	CreateTimeout time.Duration

	Logger Logger
}

// Controller owns the controller node and its children.
type Controller struct {
	registry      *node.Registry
	pusher        Pusher
	host          Host
	address       string
	name          string
	createTimeout time.Duration
	logger        Logger
	now           func() time.Time

	// pending holds one completion channel per in-flight creation.
	pending   map[string]chan struct{}
	pendingMu sync.Mutex

	// reconcileMu serialises parameter handling.
	reconcileMu sync.Mutex
}

// New creates a controller.
func New(opts Options) (*Controller, error) {
	if opts.Registry == nil {
		return nil, errors.New("controller: registry is required")
	}
	if opts.Pusher == nil {
		return nil, errors.New("controller: pusher is required")
	}
	if opts.Host == nil {
		return nil, errors.New("controller: host is required")
	}
	if opts.CreateTimeout <= 0 {
		return nil, errors.New("controller: create timeout must be positive")
	}

	c := &Controller{
		registry:      opts.Registry,
		pusher:        opts.Pusher,
		host:          opts.Host,
		address:       opts.Address,
		name:          opts.Name,
		createTimeout: opts.CreateTimeout,
		logger:        opts.Logger,
		now:           time.Now,
		pending:       make(map[string]chan struct{}),
	}
	if c.address == "" {
		c.address = DefaultAddress
	}
	if c.name == "" {
		c.name = "Govee Local"
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c, nil
}

// Address returns the controller node's address.
func (c *Controller) Address() string { return c.address }

// Node returns the controller node.
func (c *Controller) Node() (*node.Node, error) {
	return c.registry.Get(c.address)
}

// Bootstrap makes sure the controller node exists locally and asks the host
// to add it. Registration arrives later as an add-node-done event.
func (c *Controller) Bootstrap(ctx context.Context) error {
	n, err := c.registry.Get(c.address)
	if errors.Is(err, node.ErrNodeNotFound) {
		n, err = node.New(node.KindController, c.address, c.address, c.name, "")
		if err != nil {
			return err
		}
		if err := c.registry.Add(ctx, n); err != nil {
			return fmt.Errorf("adding controller node: %w", err)
		}
	} else if err != nil {
		return err
	}

	if err := c.host.AddNode(ctx, n.Snapshot()); err != nil {
		return fmt.Errorf("requesting controller node: %w", err)
	}
	c.logger.Info("controller node requested", "address", c.address)
	return nil
}

// Registered handles the host's add-node-done event for address.
//
// It persists the registered flag and wakes the creation waiting on address.
// For the controller it also resets the drivers and announces that the node
// server is running.
func (c *Controller) Registered(ctx context.Context, address string) error {
	n, err := c.registry.MarkRegistered(ctx, address)
	if err != nil {
		return err
	}
	c.logger.Info("node registered", "address", address)

	if address != c.address {
		if ctrl, err := c.Node(); err == nil && ctrl.Started() {
			n.MarkStarted()
		}
		c.complete(address)
		return nil
	}
	c.complete(address)

	n.ResetDrivers()
	if err := c.registry.SaveDrivers(ctx, n); err != nil {
		c.logger.Warn("saving controller drivers failed", "error", err)
	}
	c.pusher.PushText(ctx, n, node.DriverText, textRunning)
	return nil
}

// Started handles the host's start signal. A start for the controller
// starts the whole tree; registered children are started with it.
func (c *Controller) Started(_ context.Context, address string) error {
	if address == "" {
		address = c.address
	}
	n, err := c.registry.Get(address)
	if err != nil {
		return err
	}
	n.MarkStarted()

	if address == c.address {
		for _, child := range c.registry.Children(c.address) {
			if child.Registered() {
				child.MarkStarted()
			}
		}
	}
	c.logger.Info("node started", "address", address)
	return nil
}

// Parameters validates the custom parameters and reconciles children.
// Invalid parameters raise host notices, push the problems to the
// controller's GPV driver and return ErrInvalidParameters.
func (c *Controller) Parameters(ctx context.Context, params map[string]string) error {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	ctrl, err := c.Node()
	if err != nil {
		return err
	}

	devices, invalid := ParseParameters(params)
	if invalid != nil {
		for key, text := range invalid.Notices {
			if err := c.host.SetNotice(key, text); err != nil {
				c.logger.Warn("setting notice failed", "key", key, "error", err)
			}
		}
		msg := invalid.Message()
		c.logger.Warn("configuration invalid", "problems", msg)
		c.pusher.PushText(ctx, ctrl, node.DriverText, msg)
		return fmt.Errorf("%w: %s", ErrInvalidParameters, msg)
	}

	if err := c.host.ClearNotices(); err != nil {
		c.logger.Warn("clearing notices failed", "error", err)
	}
	c.reconcile(ctx, devices)
	c.setAndReport(ctx, ctrl, node.DriverGV0, devices.Len())
	return nil
}

// reconcile makes the children match devices: gvld_i carries Names[i] at
// IPs[i]; children past the end of the list are removed.
func (c *Controller) reconcile(ctx context.Context, devices Devices) {
	c.logger.Info("reconciling devices", "count", devices.Len())

	want := make(map[string]bool, devices.Len())
	for i := range devices.IPs {
		address := ChildAddress(i)
		want[address] = true
		name, ip := devices.Names[i], devices.IPs[i]

		if n, err := c.registry.Get(address); err == nil {
			if n.Registered() {
				c.update(ctx, address, name, ip)
				continue
			}
			// A creation the host never confirmed is requested again.
			c.logger.Info("re-requesting unconfirmed device", "index", i, "name", name, "ip", ip)
			if err := c.retry(ctx, n, name, ip); err != nil {
				c.logger.Error("creating device failed", "address", address, "name", name, "error", err)
			}
			continue
		}

		c.logger.Info("creating device", "index", i, "name", name, "ip", ip)
		if err := c.create(ctx, address, name, ip); err != nil {
			c.logger.Error("creating device failed", "address", address, "name", name, "error", err)
		}
	}

	for _, child := range c.registry.Children(c.address) {
		if want[child.Address()] {
			continue
		}
		address := child.Address()
		if err := c.host.RemoveNode(ctx, address); err != nil {
			c.logger.Warn("requesting node removal failed", "address", address, "error", err)
		}
		if err := c.registry.Remove(ctx, address); err != nil {
			c.logger.Error("removing device failed", "address", address, "error", err)
			continue
		}
		c.logger.Info("device removed", "address", address)
	}
}

func (c *Controller) update(ctx context.Context, address, name, ip string) {
	changed, err := c.registry.UpdateDetails(ctx, address, name, ip)
	if err != nil {
		c.logger.Error("updating device failed", "address", address, "error", err)
		return
	}
	if !changed {
		return
	}
	n, err := c.registry.Get(address)
	if err != nil {
		return
	}
	if err := c.host.AddNode(ctx, n.Snapshot()); err != nil {
		c.logger.Warn("requesting node update failed", "address", address, "error", err)
	}
	c.logger.Info("device updated", "address", address, "name", name, "ip", ip)
}

// create adds a child and waits for the host to confirm it.
func (c *Controller) create(ctx context.Context, address, name, ip string) error {
	n, err := node.New(node.KindDevice, address, c.address, name, ip)
	if err != nil {
		return err
	}
	if err := c.registry.Add(ctx, n); err != nil {
		return err
	}
	return c.request(ctx, n)
}

// retry refreshes an unconfirmed child's details and requests it again.
func (c *Controller) retry(ctx context.Context, n *node.Node, name, ip string) error {
	if _, err := c.registry.UpdateDetails(ctx, n.Address(), name, ip); err != nil {
		return err
	}
	return c.request(ctx, n)
}

// request asks the host to add n and waits for the confirmation.
func (c *Controller) request(ctx context.Context, n *node.Node) error {
	address := n.Address()
	done := c.expect(address)
	defer c.forget(address)

	if err := c.host.AddNode(ctx, n.Snapshot()); err != nil {
		return fmt.Errorf("requesting node: %w", err)
	}
	return c.await(ctx, address, done)
}

// setAndReport reports value on driver, or just stores it while the gate is closed.
func (c *Controller) setAndReport(ctx context.Context, n *node.Node, driver node.DriverName, value int) {
	res := c.pusher.PushValue(ctx, n, driver, value)
	if res.Status != report.StatusSkipped {
		return
	}
	if err := n.SetDriver(driver, value); err != nil {
		c.logger.Warn("setting driver failed", "address", n.Address(), "driver", driver, "error", err)
		return
	}
	if err := c.registry.SaveDrivers(ctx, n); err != nil {
		c.logger.Warn("saving drivers failed", "address", n.Address(), "error", err)
	}
}

// Poll handles a poll timer. Short polls stamp the controller; long polls
// stamp every ready child, one after another.
func (c *Controller) Poll(ctx context.Context, kind PollKind) error {
	stamp := c.now().Format(pollTimeLayout)
	c.logger.Debug("poll received", "type", kind)

	switch kind {
	case PollShort:
		ctrl, err := c.Node()
		if err != nil {
			return err
		}
		c.pusher.PushText(ctx, ctrl, node.DriverText, textShortPoll+stamp)
		return nil
	case PollLong:
		for _, child := range c.registry.Children(c.address) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !node.CanPush(child) {
				continue
			}
			c.pusher.PushText(ctx, child, node.DriverText, textLongPoll+stamp)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPoll, kind)
	}
}

// Stop reports every child's status as unknown, then closes the gate on the
// whole tree.
func (c *Controller) Stop(ctx context.Context) {
	children := c.registry.Children(c.address)
	for _, child := range children {
		c.setAndReport(ctx, child, node.DriverStatus, node.StatusUnknown)
	}
	for _, n := range c.registry.List() {
		n.MarkStopped()
	}
	c.logger.Info("controller stopped", "children", len(children))
}

// Command runs a node command from the host.
func (c *Controller) Command(_ context.Context, address, command string) error {
	if _, err := c.registry.Get(address); err != nil {
		return err
	}
	switch strings.ToUpper(command) {
	case CommandDiscover:
		c.logger.Info("discover not implemented", "address", address)
		return nil
	default:
		c.logger.Warn("unknown command", "address", address, "command", command)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}
