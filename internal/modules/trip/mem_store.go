// README: In-memory trip store for the memory backend and tests.
package trip

import (
	"context"
	"sync"
	"time"

	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

type MemStore struct {
	mu     sync.Mutex
	trips  map[types.ID]*Trip
	events []Event
	now    func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{trips: make(map[types.ID]*Trip), now: time.Now}
}

func (s *MemStore) Create(_ context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trips[t.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemStore) SaveEstimate(_ context.Context, id types.ID, est routing.Estimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return ErrNotFound
	}
	t.Estimate = &est
	return nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, driverID *types.ID, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok || t.Status != from || t.StatusVersion != version {
		return false, nil
	}
	now := s.now()
	t.Status = to
	t.StatusVersion++
	if driverID != nil {
		d := *driverID
		t.DriverID = &d
	}
	if reason != nil {
		r := *reason
		t.CancelReason = &r
	}
	switch to {
	case StatusAccepted:
		t.AcceptedAt = &now
	case StatusCancelled:
		t.CancelledAt = &now
	}
	return true, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.ID = int64(len(s.events) + 1)
	s.events = append(s.events, cp)
	return nil
}

// Events returns the recorded state events for a trip in insertion order.
func (s *MemStore) Events(id types.ID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.TripID == id {
			out = append(out, e)
		}
	}
	return out
}
