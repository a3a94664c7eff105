// Package registry holds the set of providers allowed to submit readings.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/quorum/internal/domain/types"
)

// Registry is the authoritative provider allow-list. Only the owner may
// change it. Providers are never removed, only flagged unauthorized.
type Registry struct {
	mu        sync.RWMutex
	owner     types.ProviderID
	providers map[types.ProviderID]types.Provider
	now       func() time.Time
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry controlled by owner.
func New(owner types.ProviderID, opts ...Option) *Registry {
	r := &Registry{
		owner:     owner,
		providers: make(map[types.ProviderID]types.Provider),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Owner returns the identity allowed to mutate the registry.
func (r *Registry) Owner() types.ProviderID {
	return r.owner
}

// SetProvider sets or clears authorization for id. It reports whether the
// stored state changed; repeating the current state is a no-op.
func (r *Registry) SetProvider(_ context.Context, caller, id types.ProviderID, authorized bool) (bool, error) {
	const op = "registry.set_provider"
	if caller != r.owner {
		return false, types.NewKind(op, types.ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.providers[id]
	if exists && current.Authorized == authorized {
		return false, nil
	}
	if !exists && !authorized {
		// Record the provider so the denial shows up in listings, but
		// nothing observable changed.
		r.providers[id] = types.Provider{ID: id, Authorized: false, UpdatedAt: r.now()}
		return false, nil
	}

	r.providers[id] = types.Provider{ID: id, Authorized: authorized, UpdatedAt: r.now()}
	return true, nil
}

// IsAuthorized reports whether id may submit readings. Unknown ids are not.
func (r *Registry) IsAuthorized(_ context.Context, id types.ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id].Authorized
}

// AuthorizedCount returns the number of currently authorized providers.
func (r *Registry) AuthorizedCount(_ context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.providers {
		if p.Authorized {
			n++
		}
	}
	return n
}

// Providers returns every provider ever configured, sorted by id.
func (r *Registry) Providers(_ context.Context) []types.Provider {
	r.mu.RLock()
	out := make([]types.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
