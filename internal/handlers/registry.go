package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArowuTest/qrng-bridge/internal/rng"
)

// contextEntry is a provider context owned by one operator.
type contextEntry struct {
	ID        uuid.UUID
	Owner     string
	CreatedAt time.Time
	Ctx       *rng.Context
}

// Registry maps context ids handed out over HTTP to provider contexts.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*contextEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*contextEntry)}
}

func (r *Registry) Add(owner string, ctx *rng.Context) *contextEntry {
	e := &contextEntry{ID: uuid.New(), Owner: owner, CreatedAt: time.Now().UTC(), Ctx: ctx}
	r.mu.Lock()
	r.entries[e.ID] = e
	r.mu.Unlock()
	return e
}

func (r *Registry) Get(id uuid.UUID) (*contextEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove drops id and returns the entry that was registered, if any.
func (r *Registry) Remove(id uuid.UUID) (*contextEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return e, ok
}

// List returns the entries visible to owner; an empty owner sees all.
func (r *Registry) List(owner string) []*contextEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*contextEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if owner == "" || e.Owner == owner {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
