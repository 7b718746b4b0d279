package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"saferide/internal/types"
)

type memStore struct {
	assignments map[string]*Assignment
}

func key(driverID, eventID types.ID) string {
	return string(driverID) + "/" + string(eventID)
}

func newMemStore(assignments ...Assignment) *memStore {
	s := &memStore{assignments: make(map[string]*Assignment)}
	for i := range assignments {
		a := assignments[i]
		s.assignments[key(a.DriverID, a.EventID)] = &a
	}
	return s
}

func (s *memStore) Get(_ context.Context, driverID, eventID types.ID) (*Assignment, error) {
	a, ok := s.assignments[key(driverID, eventID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) SetAvailability(_ context.Context, driverID, eventID types.ID, av Availability, toggleCount int) error {
	a, ok := s.assignments[key(driverID, eventID)]
	if !ok {
		return ErrNotFound
	}
	a.Availability = av
	a.InactiveToggleCount = toggleCount
	return nil
}

func (s *memStore) ListActiveByEvent(_ context.Context, eventID types.ID) ([]Assignment, error) {
	var out []Assignment
	for _, a := range s.assignments {
		if a.EventID == eventID && a.Availability.IsActive() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) IncrementCompleted(_ context.Context, driverID, eventID types.ID) error {
	a, ok := s.assignments[key(driverID, eventID)]
	if !ok {
		return ErrNotFound
	}
	a.TotalRidesCompleted++
	return nil
}

func (s *memStore) ResetToggleCount(_ context.Context, driverID, eventID types.ID) error {
	a, ok := s.assignments[key(driverID, eventID)]
	if !ok {
		return ErrNotFound
	}
	a.InactiveToggleCount = 0
	return nil
}

func (s *memStore) ListInactiveForActiveEvents(_ context.Context) ([]Assignment, error) {
	var out []Assignment
	for _, a := range s.assignments {
		if !a.Availability.IsActive() {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeRideCounter struct {
	counts map[types.ID]int
}

func (f *fakeRideCounter) CountActiveByDriver(_ context.Context, driverID, _ types.ID) (int, error) {
	return f.counts[driverID], nil
}

type recordingObserver struct {
	changes [][2]*Assignment
}

func (o *recordingObserver) OnAvailabilityChange(_ context.Context, before, after *Assignment) {
	o.changes = append(o.changes, [2]*Assignment{before, after})
}

func completeProfile(driverID types.ID, state AvailabilityState, toggles int) Assignment {
	return Assignment{
		DriverID:            driverID,
		EventID:             "event-1",
		Availability:        Availability{State: state, Since: time.Now().Add(-time.Hour)},
		InactiveToggleCount: toggles,
		PhotoURL:            "https://example.com/p.jpg",
		VehicleDescription:  "Blue Civic",
	}
}

func TestToggleActivateRequiresCompleteProfile(t *testing.T) {
	incomplete := completeProfile("driver-1", Inactive, 0)
	incomplete.PhotoURL = ""
	store := newMemStore(incomplete)
	svc := NewService(store, &fakeRideCounter{}, nil, zap.NewNop())

	_, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "driver-1", EventID: "event-1", Active: true})
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("expected ErrProfileIncomplete, got %v", err)
	}

	a, _ := store.Get(context.Background(), "driver-1", "event-1")
	if a.Availability.IsActive() {
		t.Fatal("rejected activation must not change state")
	}
}

func TestToggleDeactivateRejectedWhileHoldingRide(t *testing.T) {
	store := newMemStore(completeProfile("driver-1", Active, 0))
	rides := &fakeRideCounter{counts: map[types.ID]int{"driver-1": 1}}
	svc := NewService(store, rides, nil, zap.NewNop())

	_, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "driver-1", EventID: "event-1", Active: false})
	if !errors.Is(err, ErrHoldingRide) {
		t.Fatalf("expected ErrHoldingRide, got %v", err)
	}
	a, _ := store.Get(context.Background(), "driver-1", "event-1")
	if !a.Availability.IsActive() || a.InactiveToggleCount != 0 {
		t.Fatalf("rejected deactivation must not change state, got %+v", a)
	}
}

func TestToggleDeactivateBumpsCounter(t *testing.T) {
	store := newMemStore(completeProfile("driver-1", Active, 2))
	observer := &recordingObserver{}
	svc := NewService(store, &fakeRideCounter{}, observer, zap.NewNop())

	a, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "driver-1", EventID: "event-1", Active: false})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if a.Availability.IsActive() {
		t.Fatal("expected inactive after toggle off")
	}
	if a.InactiveToggleCount != 3 {
		t.Fatalf("expected toggle count 3, got %d", a.InactiveToggleCount)
	}
	if len(observer.changes) != 1 {
		t.Fatalf("expected one observer call, got %d", len(observer.changes))
	}
	before, after := observer.changes[0][0], observer.changes[0][1]
	if !before.Availability.IsActive() || after.Availability.IsActive() {
		t.Fatal("observer must see the active-to-inactive transition")
	}
}

func TestToggleActivationDoesNotBumpCounter(t *testing.T) {
	store := newMemStore(completeProfile("driver-1", Inactive, 2))
	svc := NewService(store, &fakeRideCounter{}, nil, zap.NewNop())

	a, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "driver-1", EventID: "event-1", Active: true})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !a.Availability.IsActive() {
		t.Fatal("expected active")
	}
	if a.InactiveToggleCount != 2 {
		t.Fatalf("activation must not touch the counter, got %d", a.InactiveToggleCount)
	}
}

func TestToggleSameStateIsNoOp(t *testing.T) {
	store := newMemStore(completeProfile("driver-1", Inactive, 4))
	observer := &recordingObserver{}
	svc := NewService(store, &fakeRideCounter{}, observer, zap.NewNop())

	a, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "driver-1", EventID: "event-1", Active: false})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if a.InactiveToggleCount != 4 {
		t.Fatalf("idempotent repeat must not bump counter, got %d", a.InactiveToggleCount)
	}
	if len(observer.changes) != 0 {
		t.Fatal("no-op toggle must not notify the observer")
	}
}

func TestToggleUnknownAssignment(t *testing.T) {
	svc := NewService(newMemStore(), &fakeRideCounter{}, nil, zap.NewNop())
	_, err := svc.Toggle(context.Background(), ToggleCommand{DriverID: "ghost", EventID: "event-1", Active: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdleFor(t *testing.T) {
	now := time.Now()
	active := ActiveSince(now.Add(-time.Hour))
	if d := active.IdleFor(now); d != 0 {
		t.Fatalf("active driver is never idle, got %v", d)
	}
	inactive := InactiveSince(now.Add(-20 * time.Minute))
	if d := inactive.IdleFor(now); d != 20*time.Minute {
		t.Fatalf("expected 20m idle, got %v", d)
	}
}
