package warehouse

import "sync"

// Engines hands out per-owner orchestrators over shared collaborators.
// Instances are cached so in-flight report deduplication keeps working when
// the same owner is served by many requests.
type Engines struct {
	store   Store
	opts    Options
	mu      sync.Mutex
	byOwner map[string]*Orchestrator
}

// NewEngines builds the factory.
func NewEngines(store Store, opts Options) *Engines {
	return &Engines{store: store, opts: opts, byOwner: make(map[string]*Orchestrator)}
}

// For returns the orchestrator scoped to ownerID.
func (e *Engines) For(ownerID string) *Orchestrator {
	e.mu.Lock()
	defer e.mu.Unlock()
	if orch, ok := e.byOwner[ownerID]; ok {
		return orch
	}
	orch := NewOrchestrator(e.store, ownerID, e.opts)
	e.byOwner[ownerID] = orch
	return orch
}
