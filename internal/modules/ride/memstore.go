// README: In-memory ride store for tests and local development.
package ride

import (
	"context"
	"sync"
	"time"

	"saferide/internal/types"
)

// MemStore implements Store with the same compare-and-swap semantics as the
// Postgres store, guarded by a mutex instead of row versioning in SQL.
type MemStore struct {
	mu     sync.Mutex
	rides  map[types.ID]*Ride
	events []Event
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{rides: make(map[types.ID]*Ride)}
}

func (s *MemStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rides[r.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, patch StatusPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	now := time.Now()
	r.Status = to
	r.StatusVersion++
	if patch.DriverID != nil {
		r.DriverID = patch.DriverID
	}
	if patch.DriverName != nil {
		r.DriverName = *patch.DriverName
	}
	if patch.DriverPhone != nil {
		r.DriverPhone = *patch.DriverPhone
	}
	if patch.DriverVehicle != nil {
		r.DriverVehicle = *patch.DriverVehicle
	}
	if patch.EstimatedWaitMinutes != nil {
		r.EstimatedWaitMinutes = *patch.EstimatedWaitMinutes
	}
	if patch.CancelReason != nil {
		r.CancelReason = patch.CancelReason
	}
	switch to {
	case StatusAssigned:
		r.AssignedAt = &now
	case StatusEnroute:
		r.EnrouteAt = &now
	case StatusCompleted:
		r.CompletedAt = &now
	case StatusCancelled:
		r.CancelledAt = &now
	}
	return true, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *e
	cp.ID = s.nextID
	s.events = append(s.events, cp)
	return nil
}

func (s *MemStore) ListActiveByEvent(_ context.Context, eventID types.ID) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ride
	for _, r := range s.rides {
		if r.EventID == eventID && !r.Status.Terminal() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) CountActiveByDriver(_ context.Context, driverID, eventID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rides {
		if r.EventID != eventID || r.DriverID == nil || *r.DriverID != driverID {
			continue
		}
		if r.Status == StatusAssigned || r.Status == StatusEnroute {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of the append-only state log.
func (s *MemStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
