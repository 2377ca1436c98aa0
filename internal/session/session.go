// Package session keeps one lookup.Controller per web visitor.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// Factory builds the controller for a new session.
type Factory func() *lookup.Controller

type entry struct {
	ctrl     *lookup.Controller
	lastUsed time.Time
}

// Store maps session IDs to controllers. Entries idle for longer than ttl are
// pruned on access; when the store is full the least recently used is evicted.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	factory Factory
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewStore returns an empty store. ttl <= 0 disables expiry; max <= 0 disables the cap.
func NewStore(factory Factory, ttl time.Duration, max int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		factory: factory,
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Get returns the controller for id, creating a session when id is empty,
// unknown or expired. The returned id is the one the caller should keep.
func (s *Store) Get(id string) (string, *lookup.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	if e, ok := s.entries[id]; ok && id != "" {
		e.lastUsed = now
		return id, e.ctrl
	}

	if s.max > 0 && len(s.entries) >= s.max {
		s.evictOldestLocked()
	}
	id = uuid.New().String()
	e := &entry{ctrl: s.factory(), lastUsed: now}
	s.entries[id] = e
	observability.ActiveSessions.Set(float64(len(s.entries)))
	return id, e.ctrl
}

// Lookup returns the controller for an existing, unexpired session.
func (s *Store) Lookup(id string) (*lookup.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune drops expired sessions and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// InFlight returns the number of lookups still running across all sessions.
func (s *Store) InFlight() int {
	s.mu.Lock()
	ctrls := make([]*lookup.Controller, 0, len(s.entries))
	for _, e := range s.entries {
		ctrls = append(ctrls, e.ctrl)
	}
	s.mu.Unlock()

	n := 0
	for _, c := range ctrls {
		n += c.InFlight()
	}
	return n
}

func (s *Store) pruneLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		observability.ActiveSessions.Set(float64(len(s.entries)))
	}
	return removed
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
