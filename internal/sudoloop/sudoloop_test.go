package sudoloop

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRefreshesImmediatelyAndOnInterval(t *testing.T) {
	var refreshes atomic.Int64
	k := &Keepalive{
		Interval: 10 * time.Millisecond,
		Refresh: func() error {
			refreshes.Add(1)
			return nil
		},
	}

	if err := k.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer k.Stop()

	if refreshes.Load() < 1 {
		t.Fatal("expected an immediate refresh on start")
	}

	deadline := time.After(2 * time.Second)
	for refreshes.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected periodic refreshes, saw %d", refreshes.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartFailsWhenInitialRefreshFails(t *testing.T) {
	k := &Keepalive{
		Refresh: func() error { return fmt.Errorf("sudo: a password is required") },
	}
	if err := k.Start(); err == nil {
		t.Fatal("expected start to fail when credentials cannot be acquired")
	}
}

func TestStopHaltsTheLoopAndIsIdempotent(t *testing.T) {
	var refreshes atomic.Int64
	k := &Keepalive{
		Interval: 5 * time.Millisecond,
		Refresh: func() error {
			refreshes.Add(1)
			return nil
		},
	}
	if err := k.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	k.Stop()
	after := refreshes.Load()
	time.Sleep(30 * time.Millisecond)
	if refreshes.Load() != after {
		t.Fatal("refreshes continued after Stop")
	}

	k.Stop() // second call must not panic or block
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	k := &Keepalive{}
	k.Stop()
}
