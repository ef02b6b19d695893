package complaint

import (
	"context"
	"sort"
	"sync"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/audit"
)

// InMemory implements Store with in-process concurrency safety. Used by unit
// tests and by the API's demo mode when no database is configured.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*Complaint
	trail   []audit.Entry
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*Complaint)}
}

func (s *InMemory) Create(_ context.Context, c Complaint, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[c.ID]; exists {
		return ErrConflict
	}
	cp := c
	s.records[c.ID] = &cp
	s.trail = append(s.trail, entry)
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.records[id]
	if !ok {
		return Complaint{}, ErrNotFound
	}
	return *c, nil
}

func (s *InMemory) List(_ context.Context, scope Scope, f Filters) ([]Complaint, error) {
	f = f.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Complaint, 0)
	for _, c := range s.records {
		if !scope.Allows(*c) || !f.Match(*c) {
			continue
		}
		out = append(out, *c)
	}
	// Newest first; ULIDs sort chronologically.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Update applies the mutation under the store lock, making the precondition
// check and the write atomic: the loser of two racing transitions sees the
// winner's state and gets the transition error.
func (s *InMemory) Update(_ context.Context, id string, mutate func(*Complaint) error, entry audit.Entry) (Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return Complaint{}, ErrNotFound
	}
	next := *c
	if err := mutate(&next); err != nil {
		return Complaint{}, err
	}
	*c = next
	s.trail = append(s.trail, entry)
	return next, nil
}

func (s *InMemory) Delete(_ context.Context, id string, check func(Complaint) error, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if err := check(*c); err != nil {
		return err
	}
	delete(s.records, id)
	s.trail = append(s.trail, entry)
	return nil
}

func (s *InMemory) Trail(_ context.Context, complaintID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.trail {
		if e.ComplaintID == complaintID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemory) RecentTrail(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.trail)
	if limit > n {
		limit = n
	}
	out := make([]audit.Entry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.trail[i])
	}
	return out, nil
}
