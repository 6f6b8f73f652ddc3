package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/govee-local-bridge/internal/controller"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// Publisher is the MQTT client surface the link needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishAsync(topic string, payload []byte, qos byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Handler receives decoded host events.
type Handler interface {
	Parameters(ctx context.Context, params map[string]string) error
	Registered(ctx context.Context, address string) error
	Started(ctx context.Context, address string) error
	Poll(ctx context.Context, kind controller.PollKind) error
	Stop(ctx context.Context)
	Command(ctx context.Context, address, command string) error
}

// Logger defines the logging interface used by the link.
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

// Options configures a Link.
type Options struct {
	Publisher Publisher
	Topics    mqtt.Topics
	QoS       byte
	Logger    Logger
}

// Link is the bridge side of the host connection.
type Link struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger

	mu      sync.RWMutex
	handler Handler
	ctx     context.Context
	closed  bool

	// wg tracks handlers run off the MQTT delivery goroutine.
	wg sync.WaitGroup
}

// New creates a link. Call Listen to start receiving events.
func New(opts Options) (*Link, error) {
	if opts.Publisher == nil {
		return nil, errors.New("host: publisher is required")
	}
	l := &Link{
		pub:    opts.Publisher,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: opts.Logger,
		ctx:    context.Background(),
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	return l, nil
}

// Listen subscribes to every inbound topic and dispatches events to h.
// ctx is passed to every handler call.
func (l *Link) Listen(ctx context.Context, h Handler) error {
	l.mu.Lock()
	l.handler = h
	l.ctx = ctx
	l.mu.Unlock()

	if err := l.pub.Subscribe(l.topics.AllInbound(), l.qos, l.handleMessage); err != nil {
		return fmt.Errorf("subscribing to host events: %w", err)
	}
	l.logger.Info("host link listening", "topic", l.topics.AllInbound())
	return nil
}

// Close stops dispatching and waits for in-flight handlers.
func (l *Link) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}

// AddNode implements controller.Host.
func (l *Link) AddNode(_ context.Context, n node.Snapshot) error {
	return l.publish(mqtt.OutAddNode, AddNodeMessage{
		Address: n.Address,
		Primary: n.Parent,
		Name:    n.Name,
		NodeDef: nodeDefFor(n.Kind),
		IP:      n.IP,
		Drivers: n.Drivers,
	})
}

// RemoveNode implements controller.Host.
func (l *Link) RemoveNode(_ context.Context, address string) error {
	return l.publish(mqtt.OutRemoveNode, RemoveNodeMessage{Address: address})
}

// SetNotice implements controller.Host.
func (l *Link) SetNotice(key, text string) error {
	return l.publish(mqtt.OutNotices, NoticeMessage{Action: NoticeSet, Key: key, Text: text})
}

// ClearNotices implements controller.Host.
func (l *Link) ClearNotices() error {
	return l.publish(mqtt.OutNotices, NoticeMessage{Action: NoticeClear})
}

// Send implements report.Sender. The message is queued without waiting for
// the broker; the host owns delivery from there.
func (l *Link) Send(message any, channel string) error {
	if l.isClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", channel, err)
	}
	return l.pub.PublishAsync(l.topics.Out(channel), payload, l.qos)
}

func (l *Link) publish(kind string, message any) error {
	if l.isClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", kind, err)
	}
	if err := l.pub.Publish(l.topics.Out(kind), payload, l.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", kind, err)
	}
	return nil
}

func (l *Link) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
