package barcode

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubEngine struct {
	name string
}

func (s stubEngine) Name() string { return s.name }

func (s stubEngine) Decode(img image.Image) (*ScanResult, error) {
	return &ScanResult{}, nil
}

func TestRegistrySlowLoadFallsBack(t *testing.T) {
	release := make(chan struct{})
	r := NewRegistry(
		WithWait(20*time.Millisecond),
		WithLoader(func() (Engine, error) {
			<-release
			return stubEngine{name: "accelerated"}, nil
		}),
	)

	start := time.Now()
	e := r.Engine(context.Background())
	if e.Name() != "goqr" {
		t.Errorf("slow load should yield the baseline, got %s", e.Name())
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("bounded wait took %v", elapsed)
	}

	// The load is not cancelled by the timeout; later calls benefit.
	close(release)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.Engine(context.Background()).Name() == "accelerated" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("completed load never became visible to later calls")
}

func TestRegistryLoadsOnce(t *testing.T) {
	var loads int32
	r := NewRegistry(
		WithWait(time.Second),
		WithLoader(func() (Engine, error) {
			atomic.AddInt32(&loads, 1)
			time.Sleep(10 * time.Millisecond)
			return stubEngine{name: "accelerated"}, nil
		}),
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e := r.Engine(context.Background()); e.Name() != "accelerated" {
				t.Errorf("expected accelerated engine, got %s", e.Name())
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Errorf("loader ran %d times, want 1", n)
	}
}

func TestRegistryPermanentFallback(t *testing.T) {
	var loads int32
	r := NewRegistry(
		WithWait(time.Second),
		WithLoader(func() (Engine, error) {
			atomic.AddInt32(&loads, 1)
			return nil, errors.New("engine unavailable")
		}),
	)

	for i := 0; i < 3; i++ {
		if e := r.Engine(context.Background()); e.Name() != "goqr" {
			t.Fatalf("failed load must fall back, got %s", e.Name())
		}
	}
	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Errorf("failed loader retried %d times; fallback is permanent", n)
	}
}

func TestRegistryContextCancelStopsWaitNotLoad(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})
	r := NewRegistry(
		WithWait(time.Minute),
		WithLoader(func() (Engine, error) {
			close(started)
			time.Sleep(30 * time.Millisecond)
			close(finished)
			return stubEngine{name: "accelerated"}, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if e := r.Engine(ctx); e.Name() != "goqr" {
		t.Errorf("cancelled wait should yield baseline, got %s", e.Name())
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("load did not run to completion after wait was cancelled")
	}
}
