package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Status is a point-in-time view of one limiter.
type Status struct {
	Name          string  `json:"name"`
	Capacity      int     `json:"capacity"`
	WindowSeconds float64 `json:"window_seconds"`
	Tokens        float64 `json:"tokens"`
}

// Budget configures one limiter in a registry.
type Budget struct {
	Requests int
	Window   time.Duration
}

// Registry holds one limiter per named external API.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates limiters for every entry in budgets.
func NewRegistry(budgets map[string]Budget) *Registry {
	r := &Registry{limiters: make(map[string]*Limiter, len(budgets))}
	for name, b := range budgets {
		r.limiters[name] = New(name, b.Requests, b.Window)
	}
	return r
}

// Get returns the named limiter.
func (r *Registry) Get(name string) (*Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.limiters[name]
	return l, ok
}

// Register adds or replaces a limiter.
func (r *Registry) Register(l *Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[l.Name()] = l
}

// Names returns the registered limiter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot reports every limiter's state, sorted by name.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, 0)
	for _, name := range r.Names() {
		l, ok := r.Get(name)
		if !ok {
			continue
		}
		out = append(out, Status{
			Name:          name,
			Capacity:      l.Capacity(),
			WindowSeconds: l.Window().Seconds(),
			Tokens:        l.Tokens(),
		})
	}
	return out
}

// ResetAll refills every bucket.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.limiters {
		l.Reset()
	}
}
