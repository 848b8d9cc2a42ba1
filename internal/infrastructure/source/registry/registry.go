// Package registry routes value queries to named sources and throttles each source.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dreschagin/quality-history/internal/application/port"
)

// Registry implements port.ValueSource by dispatching on ValueQuery.Source.
type Registry struct {
	mu            sync.RWMutex
	sources       map[string]port.ValueSource
	limiters      map[string]*rate.Limiter
	defaultSource string
	rps           rate.Limit
	burst         int
}

// New creates a registry. Every registered source gets its own limiter with
// rps requests per second and the given burst; rps <= 0 disables throttling.
func New(rps float64, burst int) *Registry {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		sources:  make(map[string]port.ValueSource),
		limiters: make(map[string]*rate.Limiter),
		rps:      limit,
		burst:    burst,
	}
}

// Register adds a source under name. The first registered source is the default
// for queries without a source name.
func (r *Registry) Register(name string, source port.ValueSource) {
	name = normalize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[name] = source
	r.limiters[name] = rate.NewLimiter(r.rps, r.burst)
	if r.defaultSource == "" {
		r.defaultSource = name
	}
}

// Names returns the registered source names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

func (r *Registry) FetchValue(ctx context.Context, query port.ValueQuery) (port.FetchedValue, error) {
	name := normalize(query.Source)

	r.mu.RLock()
	if name == "" {
		name = r.defaultSource
	}
	source, ok := r.sources[name]
	limiter := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		return port.FetchedValue{}, fmt.Errorf("source %q is not configured: %w", query.Source, port.ErrDataUnavailable)
	}

	if err := limiter.Wait(ctx); err != nil {
		return port.FetchedValue{}, err
	}

	return source.FetchValue(ctx, query)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
