package util

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	ch chan time.Time
}

func (f *fakeClock) After(time.Duration) <-chan time.Time { return f.ch }
func (f *fakeClock) Now() time.Time                       { return time.Time{} }

func TestRunEvery_FiresOnEachTickAndStopsOnCancel(t *testing.T) {
	clock := &fakeClock{ch: make(chan time.Time, 1)}
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan struct{}, 4)
	done := make(chan struct{})
	go func() {
		RunEvery(ctx, clock, time.Millisecond, func() { calls <- struct{}{} })
		close(done)
	}()

	clock.ch <- time.Time{}
	<-calls
	clock.ch <- time.Time{}
	<-calls

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not return after context cancellation")
	}
}
