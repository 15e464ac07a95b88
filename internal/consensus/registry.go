package consensus

import (
	"log"
	"sync"

	"sealevel/backend/internal/consensus/contract"
)

// Registry holds the providers available for consensus rounds. Registration
// order is preserved so fan-out and clustering stay deterministic.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]contract.Provider
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]contract.Provider)}
}

// Register adds a provider, replacing any previous one with the same name.
// Disabled providers are skipped with a log line rather than an error.
func (r *Registry) Register(p contract.Provider) {
	if !p.Enabled() {
		log.Printf("registry: provider %s is disabled, skipping registration", p.Name())
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Unregister removes a provider by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		return false
	}
	delete(r.providers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(name string) (contract.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// GetAll returns the currently enabled providers in registration order. The
// enabled check runs at call time, so a provider that went stale since
// registration drops out of the round.
func (r *Registry) GetAll() []contract.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contract.Provider, 0, len(r.order))
	for _, name := range r.order {
		if p, ok := r.providers[name]; ok && p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of registered providers, enabled or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
