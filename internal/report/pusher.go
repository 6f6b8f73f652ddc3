package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// Logger defines the logging interface used by this package.
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

// DriverStore persists a node's driver values after they change.
type DriverStore interface {
	SaveDrivers(ctx context.Context, n *node.Node) error
}

// Observer receives every push result.
type Observer interface {
	ObservePush(res Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(res Result)

// ObservePush implements Observer.
func (f ObserverFunc) ObservePush(res Result) { f(res) }

// PusherOptions configures a Pusher.
type PusherOptions struct {
	// Transport is required; normally a *Selector.
	Transport Transport

	// Store persists driver values. Optional.
	Store DriverStore

	// Metrics records outcomes. Optional.
	Metrics *Metrics

	Logger Logger
}

// Pusher is the single entry point for status pushes.
type Pusher struct {
	transport Transport
	store     DriverStore
	metrics   *Metrics
	logger    Logger
	now       func() time.Time

	observers  []Observer
	observerMu sync.RWMutex
}

// NewPusher creates a Pusher.
func NewPusher(opts PusherOptions) (*Pusher, error) {
	if opts.Transport == nil {
		return nil, errors.New("report: transport is required")
	}
	p := &Pusher{
		transport: opts.Transport,
		store:     opts.Store,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	return p, nil
}

// AddObserver registers o for every subsequent result.
func (p *Pusher) AddObserver(o Observer) {
	p.observerMu.Lock()
	p.observers = append(p.observers, o)
	p.observerMu.Unlock()
}

// TransportName returns the name of the configured transport.
func (p *Pusher) TransportName() string {
	return p.transport.Name()
}

// PushText publishes text on driver by toggling the driver's value.
//
// Before the node is registered and started the push is skipped and nothing
// changes. Otherwise the toggle is stored on the node first, then delivered;
// a failed delivery leaves the new toggle in place.
func (p *Pusher) PushText(ctx context.Context, n *node.Node, driver node.DriverName, text string) Result {
	start := p.now()
	res := Result{ID: uuid.NewString(), Address: n.Address(), Driver: driver, At: start}

	if err := node.CheckReady(n); err != nil {
		p.logger.Warn("push skipped", "address", n.Address(), "driver", driver, "error", err)
		return p.finish(res.withErr(StatusSkipped, err), start)
	}

	enc, err := Encode(n, driver, text)
	if err != nil {
		p.logger.Error("push failed", "address", n.Address(), "driver", driver, "error", err)
		return p.finish(res.withErr(StatusFailed, err), start)
	}
	p.persist(ctx, n)

	delivered := p.transport.Deliver(ctx, Report{
		Address: n.Address(),
		Driver:  driver,
		Value:   enc.Value,
		UOM:     node.UOMRaw,
		Text:    enc.Text,
		HasText: true,
	})
	return p.finish(merge(res, delivered), start)
}

// PushValue stores value on driver and reports it without text, under the
// same lifecycle gate as PushText.
func (p *Pusher) PushValue(ctx context.Context, n *node.Node, driver node.DriverName, value int) Result {
	start := p.now()
	res := Result{ID: uuid.NewString(), Address: n.Address(), Driver: driver, Value: value, At: start}

	if err := node.CheckReady(n); err != nil {
		p.logger.Warn("push skipped", "address", n.Address(), "driver", driver, "error", err)
		return p.finish(res.withErr(StatusSkipped, err), start)
	}

	d, err := n.Driver(driver)
	if err != nil {
		p.logger.Error("push failed", "address", n.Address(), "driver", driver, "error", err)
		return p.finish(res.withErr(StatusFailed, err), start)
	}
	if err := n.SetDriver(driver, value); err != nil {
		return p.finish(res.withErr(StatusFailed, err), start)
	}
	p.persist(ctx, n)

	delivered := p.transport.Deliver(ctx, Report{
		Address: n.Address(),
		Driver:  driver,
		Value:   value,
		UOM:     d.UOM,
	})
	return p.finish(merge(res, delivered), start)
}

func (p *Pusher) persist(ctx context.Context, n *node.Node) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveDrivers(ctx, n); err != nil {
		p.logger.Warn("saving drivers failed", "address", n.Address(), "error", err)
	}
}

// merge keeps the push identity from res and the delivery outcome from d.
func merge(res, d Result) Result {
	d.ID = res.ID
	d.At = res.At
	return d
}

func (p *Pusher) finish(res Result, start time.Time) Result {
	res.Duration = p.now().Sub(start)
	p.metrics.observe(res)

	if res.OK() {
		p.logger.Debug("push delivered",
			"address", res.Address, "driver", res.Driver, "value", res.Value, "transport", res.Transport)
	}

	p.observerMu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.observerMu.RUnlock()

	for _, o := range observers {
		o.ObservePush(res)
	}
	return res
}
