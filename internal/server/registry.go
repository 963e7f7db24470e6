package server

import (
	"sync"
	"time"

	"adonel/internal/session"
	"adonel/pkg/models"
)

// Registry keeps the open import sessions of the HTTP surface.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	newStore func(kind models.Kind) *session.Store
	now      func() time.Time
}

type entry struct {
	store    *session.Store
	lastSeen time.Time
}

// NewRegistry creates an empty registry; newStore builds each session.
func NewRegistry(newStore func(kind models.Kind) *session.Store) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		newStore: newStore,
		now:      time.Now,
	}
}

// Create opens a session for kind.
func (r *Registry) Create(kind models.Kind) *session.Store {
	store := r.newStore(kind)

	r.mu.Lock()
	r.sessions[store.ID()] = &entry{store: store, lastSeen: store.CreatedAt()}
	r.mu.Unlock()
	return store
}

// Get returns the session with id if it exists and is of kind, and marks it as used.
func (r *Registry) Get(kind models.Kind, id string) (*session.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.store.Kind() != kind {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.store, true
}

// Remove closes and forgets a session. Late results for it are discarded.
func (r *Registry) Remove(kind models.Kind, id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok && e.store.Kind() == kind {
		delete(r.sessions, id)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		e.store.Close()
	}
	return ok
}

// Sweep closes sessions idle for more than maxIdle before now and returns how many it removed.
// A session is idle while no request reaches it; parse and commit requests keep it alive.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	var expired []*session.Store
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > maxIdle {
			expired = append(expired, e.store)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, store := range expired {
		store.Close()
	}
	return len(expired)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
