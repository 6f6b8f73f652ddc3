package controller

import (
	"context"
	"fmt"
	"time"
)

// expect registers a completion channel for address. A second expect for
// the same address replaces the first.
func (c *Controller) expect(address string) <-chan struct{} {
	ch := make(chan struct{})
	c.pendingMu.Lock()
	c.pending[address] = ch
	c.pendingMu.Unlock()
	return ch
}

// complete closes the channel waiting on address, if any.
func (c *Controller) complete(address string) {
	c.pendingMu.Lock()
	ch, ok := c.pending[address]
	if ok {
		delete(c.pending, address)
	}
	c.pendingMu.Unlock()
	if ok {
		close(ch)
	}
}

// forget drops a registration that is no longer awaited.
func (c *Controller) forget(address string) {
	c.pendingMu.Lock()
	delete(c.pending, address)
	c.pendingMu.Unlock()
}

// await blocks until done closes, the create timeout elapses or ctx ends.
func (c *Controller) await(ctx context.Context, address string, done <-chan struct{}) error {
	timer := time.NewTimer(c.createTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrCreateTimeout, address, c.createTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of creations waiting for confirmation.
func (c *Controller) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}
