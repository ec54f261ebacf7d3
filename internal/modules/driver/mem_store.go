// README: In-process driver arena with a lock per driver record.
package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"saferide/internal/geo"
	"saferide/internal/types"
)

type memEntry struct {
	mu    sync.Mutex
	state State
}

type MemStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]*memEntry
	now     func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{drivers: make(map[types.ID]*memEntry), now: time.Now}
}

func (s *MemStore) entry(id types.ID) (*memEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.drivers[id]
	return e, ok
}

// update runs fn under the driver's lock and commits the result only when fn
// succeeds.
func (s *MemStore) update(id types.ID, fn func(*State) error) (*State, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.clone()
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = s.now()
	e.state = next
	out := next.clone()
	return &out, nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*State, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.state.clone()
	return &out, nil
}

func (s *MemStore) Upsert(_ context.Context, p Profile) (*State, error) {
	s.mu.Lock()
	if _, ok := s.drivers[p.ID]; !ok {
		s.drivers[p.ID] = &memEntry{state: State{ID: p.ID}}
	}
	s.mu.Unlock()
	return s.update(p.ID, func(st *State) error {
		applyProfile(st, p)
		return nil
	})
}

func (s *MemStore) UpdateLocation(_ context.Context, id types.ID, p types.Point) (*State, error) {
	return s.update(id, func(st *State) error {
		st.Location = &p
		return nil
	})
}

func (s *MemStore) SetAvailability(_ context.Context, id types.ID, online, available bool) (*State, error) {
	return s.update(id, func(st *State) error {
		return applyAvailability(st, online, available)
	})
}

func (s *MemStore) Reserve(_ context.Context, id types.ID, expected int64, tripID types.ID) (*State, error) {
	return s.update(id, func(st *State) error {
		return applyReserve(st, expected, tripID, s.now())
	})
}

func (s *MemStore) Release(_ context.Context, id types.ID, tripID types.ID) (bool, error) {
	released := false
	_, err := s.update(id, func(st *State) error {
		released = applyRelease(st, tripID)
		if !released {
			return errNoChange
		}
		return nil
	})
	if err == errNoChange {
		return false, nil
	}
	return released, err
}

func (s *MemStore) ListAvailable(_ context.Context, near types.Point, radiusKm float64) ([]State, error) {
	return s.list(func(st State) bool {
		if !st.Dispatchable() {
			return false
		}
		return radiusKm <= 0 || geo.HaversineKm(near, *st.Location) <= radiusKm
	}), nil
}

func (s *MemStore) ListReserved(context.Context) ([]State, error) {
	return s.list(func(st State) bool { return st.ReservedFor != nil }), nil
}

func (s *MemStore) list(keep func(State) bool) []State {
	s.mu.RLock()
	entries := make([]*memEntry, 0, len(s.drivers))
	for _, e := range s.drivers {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []State
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.state) {
			out = append(out, e.state.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
