package controller

import (
	"context"
	"testing"
	"time"
)

func TestRunPolls_Disabled(t *testing.T) {
	h := newHarness(t, time.Second)

	done := make(chan struct{})
	go func() {
		h.ctrl.RunPolls(context.Background(), 0, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPolls(0, 0) did not return")
	}
}

func TestRunPolls_ShortTicks(t *testing.T) {
	h := newHarness(t, time.Second)
	h.ready(t)
	before := len(h.transport.forAddress(DefaultAddress))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.ctrl.RunPolls(ctx, 10*time.Millisecond, 0)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(h.transport.forAddress(DefaultAddress)) < before+2 {
		if time.Now().After(deadline) {
			t.Fatal("short poll did not tick twice")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
