package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a cleanup step run during shutdown.
type Func func(ctx context.Context) error

// Priorities used by the CLI. Lower values run first.
const (
	PriorityHandles = 10
	PriorityMetrics = 20
	PriorityHistory = 30
	PriorityLogger  = 90
)

type entry struct {
	name     string
	fn       Func
	priority int
	seq      int
}

// Registry runs named cleanup steps once, in priority order. Steps with
// equal priority run in registration order.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a step. Registration after Shutdown is ignored.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || fn == nil {
		return
	}
	r.entries = append(r.entries, entry{
		name:     name,
		fn:       fn,
		priority: priority,
		seq:      len(r.entries),
	})
}

// Shutdown runs every step with ctx, even when earlier steps fail, and
// returns the failures wrapped with the step name. Only the first call
// runs anything.
func (r *Registry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	steps := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, e := range steps {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errs
}

// Names returns the step names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := r.sortedLocked()
	names := make([]string, len(steps))
	for i, e := range steps {
		names[i] = e.name
	}
	return names
}

// Count returns the number of registered steps.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsClosed reports whether Shutdown has run.
func (r *Registry) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) sortedLocked() []entry {
	sorted := make([]entry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted
}
