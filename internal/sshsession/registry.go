package sshsession

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicateSession is returned by Register for an id that is live or
// has been used before.
var ErrDuplicateSession = errors.New("session id already registered")

// Registry maps session ids to live sessions. Ids are never reused within
// the lifetime of a Registry.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	retired  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		retired:  make(map[string]struct{}),
	}
}

// NewID returns an id that is neither live nor retired.
func (r *Registry) NewID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := uuid.New().String()
		if !r.usedLocked(id) {
			return id
		}
	}
}

func (r *Registry) usedLocked(id string) bool {
	if _, ok := r.sessions[id]; ok {
		return true
	}
	_, ok := r.retired[id]
	return ok
}

func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usedLocked(s.ID) {
		return ErrDuplicateSession
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes id and returns the session it held. Of any number of
// concurrent callers for the same id, exactly one gets ok == true.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	r.retired[id] = struct{}{}
	return s, true
}

// IDs returns the live ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// List returns the live sessions oldest first.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
