package controller

import (
	"context"
	"time"
)

// RunPolls drives Poll from local tickers until ctx is cancelled. A zero
// interval disables that poll kind; with both zero RunPolls returns at once.
func (c *Controller) RunPolls(ctx context.Context, short, long time.Duration) {
	if short <= 0 && long <= 0 {
		return
	}

	shortC, stopShort := tick(short)
	defer stopShort()
	longC, stopLong := tick(long)
	defer stopLong()

	c.logger.Info("bridge-driven polling started", "short", short, "long", long)

	for {
		select {
		case <-ctx.Done():
			return
		case <-shortC:
			c.pollLogged(ctx, PollShort)
		case <-longC:
			c.pollLogged(ctx, PollLong)
		}
	}
}

func (c *Controller) pollLogged(ctx context.Context, kind PollKind) {
	if err := c.Poll(ctx, kind); err != nil {
		c.logger.Warn("poll failed", "type", kind, "error", err)
	}
}

// tick returns a ticker channel for d, or a nil channel when d is not positive.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
