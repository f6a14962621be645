package navigation

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	DefaultMaxCoordinators = 256
	DefaultIdleAfter       = 10 * time.Minute
)

// Factory builds the coordinator behind one directions control.
type Factory func(id string) *Coordinator

type RegistryConfig struct {
	Max int
	// IdleAfter is how long a control must sit unused, outside an attempt, before it is evicted.
	IdleAfter time.Duration
	// SweepEvery enables a background sweep. Zero leaves eviction to Get at capacity and Sweep.
	SweepEvery time.Duration
	Now        func() time.Time
}

type registryEntry struct {
	coordinator *Coordinator
	lastUsed    time.Time
}

// Registry holds one independent Coordinator per directions control.
type Registry struct {
	factory Factory
	config  RegistryConfig

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool

	done     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(factory Factory, config RegistryConfig) *Registry {
	if config.Max <= 0 {
		config.Max = DefaultMaxCoordinators
	}
	if config.IdleAfter <= 0 {
		config.IdleAfter = DefaultIdleAfter
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	r := &Registry{
		factory: factory,
		config:  config,
		entries: make(map[string]*registryEntry),
		done:    make(chan struct{}),
	}
	if config.SweepEvery > 0 {
		go r.sweepLoop(config.SweepEvery)
	}
	return r
}

// Get returns the coordinator for id, creating it on first use. At capacity, idle controls
// are evicted before a new one is refused.
func (r *Registry) Get(id string) (*Coordinator, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry closed")
	}

	now := r.config.Now()
	if e, ok := r.entries[id]; ok {
		e.lastUsed = now
		r.mu.Unlock()
		return e.coordinator, nil
	}

	var evicted []*Coordinator
	if len(r.entries) >= r.config.Max {
		evicted = r.evictIdleLocked(now)
	}
	if len(r.entries) >= r.config.Max {
		r.mu.Unlock()
		closeAll(evicted)
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyCoordinators, r.config.Max)
	}

	c := r.factory(id)
	r.entries[id] = &registryEntry{coordinator: c, lastUsed: now}
	r.mu.Unlock()

	closeAll(evicted)
	return c, nil
}

// Lookup returns an existing coordinator without creating one.
func (r *Registry) Lookup(id string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.config.Now()
	return e.coordinator, true
}

// Remove closes and forgets the coordinator for id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		e.coordinator.Close()
	}
	return ok
}

// Sweep evicts every idle control and returns how many were closed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	evicted := r.evictIdleLocked(r.config.Now())
	r.mu.Unlock()

	closeAll(evicted)
	return len(evicted)
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.coordinator.Close()
	}
}

// evictIdleLocked drops controls that are not mid-attempt and have not been touched,
// by a request or by their own progress, for IdleAfter. The caller closes the result.
func (r *Registry) evictIdleLocked(now time.Time) []*Coordinator {
	var evicted []*Coordinator
	for id, e := range r.entries {
		status := e.coordinator.Status()
		if status.State == AwaitingLocation || status.State == ComputingRoute {
			continue
		}
		last := e.lastUsed
		if status.UpdatedAt.After(last) {
			last = status.UpdatedAt
		}
		if now.Sub(last) < r.config.IdleAfter {
			continue
		}
		delete(r.entries, id)
		evicted = append(evicted, e.coordinator)
	}
	return evicted
}

func (r *Registry) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func closeAll(coordinators []*Coordinator) {
	for _, c := range coordinators {
		c.Close()
	}
}
