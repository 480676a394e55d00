package session

import (
	"slices"
	"strings"
	"sync"
)

// Registry tracks live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

// Remove forgets the session with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Get returns a snapshot of the session with id.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	return s.Info(), true
}

// List returns snapshots of all live sessions, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(live))
	for _, s := range live {
		infos = append(infos, s.Info())
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
