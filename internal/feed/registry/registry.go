// Package registry tracks which sources currently feed transcription into
// the aggregation.
package registry

import (
	"sync"

	"conversation-feed-service/internal/observability/metrics"
)

// Source is one active participant microphone track.
type Source struct {
	Identity string
	Name     string
	HasAudio bool
}

// Registry is the mutex-guarded set of active sources for one room. Every
// mutation that actually changes membership bumps a revision counter, so
// the aggregator can tell membership changes apart from unrelated ticks.
type Registry struct {
	mu       sync.RWMutex
	sources  map[string]Source
	order    []string
	revision uint64
	metrics  *metrics.Metrics
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		metrics: metrics.DefaultMetrics,
	}
}

// Register adds or updates a source. Registering an identical source is a
// no-op. Returns true when membership state changed.
func (r *Registry) Register(src Source) bool {
	if src.Identity == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sources[src.Identity]
	if ok && cur == src {
		return false
	}
	if !ok {
		r.order = append(r.order, src.Identity)
		r.metrics.SourcesActive.Inc()
	}
	r.sources[src.Identity] = src
	r.revision++
	return true
}

// Deregister removes a source. Removing an absent source is a no-op.
// Returns true when membership state changed.
func (r *Registry) Deregister(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[identity]; !ok {
		return false
	}
	delete(r.sources, identity)
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.revision++
	r.metrics.SourcesActive.Dec()
	return true
}

// Lookup returns the source for an identity.
func (r *Registry) Lookup(identity string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[identity]
	return src, ok
}

// PublishedName returns the published display name for an identity, or ""
// when the source is unknown or unnamed.
func (r *Registry) PublishedName(identity string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[identity].Name
}

// Snapshot returns all active sources in registration order.
func (r *Registry) Snapshot() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// Revision returns the membership revision. It increases on every change
// and never otherwise.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// Len returns the number of active sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
