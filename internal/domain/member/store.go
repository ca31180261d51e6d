package member

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a member id has no registered record.
var ErrNotFound = errors.New("member not found")

// Store is a concurrency-safe in-memory member registry. It plays the
// external member store role at the service boundary; the adjudication
// engine itself only ever receives Member values.
type Store struct {
	mu      sync.RWMutex
	members map[string]*Member
}

// NewStore returns an empty registry.
func NewStore() *Store {
	return &Store{members: make(map[string]*Member)}
}

// Put registers or replaces a member record after validating it.
func (s *Store) Put(m *Member) error {
	if m == nil {
		return errors.New("nil member")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.MemberID] = m.Clone()
	return nil
}

// Get returns a copy of the member record, so callers cannot mutate the
// registry through the returned value.
func (s *Store) Get(id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// AddMedication appends a fill to the member's medication profile.
func (s *Store) AddMedication(id string, med Medication) error {
	if err := med.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return ErrNotFound
	}
	m.Medications = append(m.Medications, med)
	return nil
}

// Count returns the number of registered members.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Snapshot returns copies of all registered members ordered by member id.
func (s *Store) Snapshot() []*Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
