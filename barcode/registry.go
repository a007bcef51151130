package barcode

import (
	"context"
	"sync"
	"time"
)

type engineState int

const (
	engineNotStarted engineState = iota
	engineLoading
	engineReady
	engineFallback
)

// DefaultWait bounds how long a scan waits for an in-flight engine load
// before proceeding with the baseline.
const DefaultWait = 150 * time.Millisecond

// Registry is the process-wide cache of the optional accelerated engine.
// At most one load is ever in flight; concurrent callers wait a bounded
// time and then take the baseline. Stopping the wait never stops the load:
// once started it runs to completion for the benefit of later calls.
type Registry struct {
	mu       sync.Mutex
	state    engineState
	engine   Engine
	baseline Engine
	loaded   chan struct{}
	wait     time.Duration
	load     func() (Engine, error)
}

type RegistryOption func(*Registry)

// WithWait overrides the bounded wait for an in-flight load.
func WithWait(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.wait = d
	}
}

// WithLoader overrides how the accelerated engine is constructed.
func WithLoader(load func() (Engine, error)) RegistryOption {
	return func(r *Registry) {
		r.load = load
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		baseline: NewBaselineEngine(),
		loaded:   make(chan struct{}),
		wait:     DefaultWait,
		load:     newZXingEngine,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the accelerated engine if it is ready, otherwise the
// baseline. The first call kicks off the load. Cancelling ctx stops the
// wait, not the load.
func (r *Registry) Engine(ctx context.Context) Engine {
	r.mu.Lock()
	switch r.state {
	case engineReady:
		e := r.engine
		r.mu.Unlock()
		return e
	case engineFallback:
		r.mu.Unlock()
		return r.baseline
	case engineNotStarted:
		r.state = engineLoading
		go r.runLoad()
	}
	loaded := r.loaded
	r.mu.Unlock()

	timer := time.NewTimer(r.wait)
	defer timer.Stop()

	select {
	case <-loaded:
	case <-timer.C:
		return r.baseline
	case <-ctx.Done():
		return r.baseline
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == engineReady {
		return r.engine
	}
	return r.baseline
}

func (r *Registry) runLoad() {
	engine, err := r.load()

	r.mu.Lock()
	if err != nil || engine == nil {
		// Permanent fallback; absence changes latency, never correctness.
		r.state = engineFallback
	} else {
		r.state = engineReady
		r.engine = engine
	}
	r.mu.Unlock()
	close(r.loaded)
}
