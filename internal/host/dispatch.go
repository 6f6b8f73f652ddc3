package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/govee-local-bridge/internal/controller"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/mqtt"
)

// handleMessage decodes one inbound message and calls the handler.
//
// Parameter handling can wait on add-node-done events that arrive on this
// same delivery goroutine, so it and poll sweeps run on their own goroutines.
func (l *Link) handleMessage(topic string, payload []byte) error {
	l.mu.RLock()
	h, ctx, closed := l.handler, l.ctx, l.closed
	l.mu.RUnlock()
	if closed || h == nil {
		return nil
	}

	kind := l.topics.InboundKind(topic)
	l.logger.Debug("host event", "kind", kind)

	switch kind {
	case mqtt.InCustomParams:
		var params map[string]string
		if err := decode(payload, &params); err != nil {
			return err
		}
		return l.runAsync(ctx, func(ctx context.Context) error { return h.Parameters(ctx, params) })

	case mqtt.InAddNodeDone:
		var ev AddressEvent
		if err := decode(payload, &ev); err != nil {
			return err
		}
		return h.Registered(ctx, ev.Address)

	case mqtt.InStart:
		var ev AddressEvent
		if err := decode(payload, &ev); err != nil {
			return err
		}
		return h.Started(ctx, ev.Address)

	case mqtt.InPoll:
		var ev PollEvent
		if err := decode(payload, &ev); err != nil {
			return err
		}
		pk, err := controller.ParsePollKind(ev.Type)
		if err != nil {
			return err
		}
		return l.runAsync(ctx, func(ctx context.Context) error { return h.Poll(ctx, pk) })

	case mqtt.InStop:
		h.Stop(ctx)
		return nil

	case mqtt.InCommand:
		var ev CommandEvent
		if err := decode(payload, &ev); err != nil {
			return err
		}
		return h.Command(ctx, ev.Address, ev.Command)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, topic)
	}
}

// runAsync runs fn off the delivery goroutine and logs its error. The
// closed check and wg.Add share the write lock so Close never waits on a
// counter that can still grow.
func (l *Link) runAsync(ctx context.Context, fn func(context.Context) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		if err := fn(ctx); err != nil {
			l.logger.Warn("host event failed", "error", err)
		}
	}()
	return nil
}

func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
