package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"saferide/internal/modules/directory"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/ride"
	"saferide/internal/types"
)

type fakeAlertStore struct {
	alerts []Alert
}

func (f *fakeAlertStore) Create(_ context.Context, a *Alert) error {
	f.alerts = append(f.alerts, *a)
	return nil
}

func (f *fakeAlertStore) ofType(t AlertType) []Alert {
	var out []Alert
	for _, a := range f.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type fakeAssignments struct {
	inactive []driver.Assignment
	resets   []types.ID
}

func (f *fakeAssignments) ListInactiveForActiveEvents(_ context.Context) ([]driver.Assignment, error) {
	return f.inactive, nil
}

func (f *fakeAssignments) ResetToggleCount(_ context.Context, driverID, _ types.ID) error {
	f.resets = append(f.resets, driverID)
	return nil
}

type fakeDirectory struct {
	users  map[types.ID]*directory.User
	events map[types.ID]*directory.Event
}

func (f *fakeDirectory) GetUser(_ context.Context, id types.ID) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeDirectory) GetEvent(_ context.Context, id types.ID) (*directory.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, directory.ErrEventNotFound
	}
	return e, nil
}

func newTestDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[types.ID]*directory.User{
			"driver-1": {ID: "driver-1", Name: "Dana", ChapterID: "chap-1"},
		},
		events: map[types.ID]*directory.Event{
			"event-1":    {ID: "event-1", ChapterID: "chap-1", Status: directory.EventActive},
			"event-done": {ID: "event-done", ChapterID: "chap-1", Status: directory.EventCompleted},
		},
	}
}

func newTestService(t *testing.T, store AlertStore, assignments Assignments) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2026, 4, 18, 23, 0, 0, 0, time.UTC)
	svc := NewService(store, nil, assignments, newTestDirectory(), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, &now
}

func assignment(state driver.AvailabilityState, since time.Time, toggles int) driver.Assignment {
	return driver.Assignment{
		DriverID:            "driver-1",
		EventID:             "event-1",
		Availability:        driver.Availability{State: state, Since: since},
		InactiveToggleCount: toggles,
	}
}

func TestToggleAbuseThresholdIsExclusive(t *testing.T) {
	store := &fakeAlertStore{}
	svc, now := newTestService(t, store, &fakeAssignments{})
	ctx := context.Background()

	// Fifth toggle: exactly at the threshold, no alert.
	before := assignment(driver.Active, now.Add(-time.Minute), 4)
	after := assignment(driver.Inactive, *now, 5)
	svc.OnAvailabilityChange(ctx, &before, &after)
	if got := store.ofType(AlertDriverAbuse); len(got) != 0 {
		t.Fatalf("5 toggles must not alert, got %v", got)
	}

	// Sixth toggle crosses it.
	before = assignment(driver.Active, now.Add(-time.Minute), 5)
	after = assignment(driver.Inactive, *now, 6)
	svc.OnAvailabilityChange(ctx, &before, &after)
	got := store.ofType(AlertDriverAbuse)
	if len(got) != 1 {
		t.Fatalf("6 toggles must alert once, got %d", len(got))
	}
	if got[0].ChapterID != "chap-1" || got[0].DriverID == nil || *got[0].DriverID != "driver-1" {
		t.Fatalf("alert misattributed: %+v", got[0])
	}

	// Seventh toggle in the same window stays silent.
	before = assignment(driver.Active, now.Add(-time.Minute), 6)
	after = assignment(driver.Inactive, *now, 7)
	svc.OnAvailabilityChange(ctx, &before, &after)
	if got := store.ofType(AlertDriverAbuse); len(got) != 1 {
		t.Fatalf("repeat toggles past the crossing must not re-alert, got %d", len(got))
	}
}

func TestToggleAbuseOnlyOnDeactivation(t *testing.T) {
	store := &fakeAlertStore{}
	svc, now := newTestService(t, store, &fakeAssignments{})

	// Activation with a high count is not a deactivation crossing.
	before := assignment(driver.Inactive, now.Add(-time.Minute), 6)
	after := assignment(driver.Active, *now, 6)
	svc.OnAvailabilityChange(context.Background(), &before, &after)
	if got := store.ofType(AlertDriverAbuse); len(got) != 0 {
		t.Fatalf("activation must not raise abuse alerts, got %v", got)
	}
}

func TestInactivityThresholdIsExclusive(t *testing.T) {
	cases := []struct {
		idle time.Duration
		want int
	}{
		{14 * time.Minute, 0},
		{15 * time.Minute, 0},
		{16 * time.Minute, 1},
	}
	for _, c := range cases {
		store := &fakeAlertStore{}
		svc, now := newTestService(t, store, &fakeAssignments{})
		a := assignment(driver.Inactive, now.Add(-c.idle), 0)
		svc.checkInactivity(context.Background(), &a)
		got := store.ofType(AlertProlongedInactivity)
		if len(got) != c.want {
			t.Errorf("idle %v: expected %d alerts, got %d", c.idle, c.want, len(got))
		}
		if c.want == 1 && got[0].Message != "Dana has been inactive for 16 minutes during an active event" {
			t.Errorf("unexpected message: %q", got[0].Message)
		}
	}
}

func TestInactivitySilentForCompletedEvent(t *testing.T) {
	store := &fakeAlertStore{}
	svc, now := newTestService(t, store, &fakeAssignments{})

	a := assignment(driver.Inactive, now.Add(-time.Hour), 0)
	a.EventID = "event-done"
	svc.checkInactivity(context.Background(), &a)
	if len(store.alerts) != 0 {
		t.Fatalf("completed event must be silent, got %v", store.alerts)
	}
}

func TestInactivitySuppressionWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &fakeAlertStore{}
	svc := NewService(store, NewRedisSuppressor(client), &fakeAssignments{}, newTestDirectory(), zap.NewNop())
	now := time.Date(2026, 4, 18, 23, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	a := assignment(driver.Inactive, now.Add(-20*time.Minute), 0)
	svc.checkInactivity(ctx, &a)
	svc.checkInactivity(ctx, &a)
	if got := store.ofType(AlertProlongedInactivity); len(got) != 1 {
		t.Fatalf("second sweep within the window must be suppressed, got %d", len(got))
	}

	// Once the window lapses the same idle driver alerts again.
	mr.FastForward(SuppressionWindow + time.Second)
	svc.checkInactivity(ctx, &a)
	if got := store.ofType(AlertProlongedInactivity); len(got) != 2 {
		t.Fatalf("expired window must allow a fresh alert, got %d", len(got))
	}
}

func TestAutoResetAfterLongIdle(t *testing.T) {
	cases := []struct {
		idle    time.Duration
		toggles int
		want    int
	}{
		{30 * time.Minute, 3, 0}, // exactly the window: no reset
		{31 * time.Minute, 3, 1},
		{31 * time.Minute, 0, 0}, // nothing to heal
	}
	for _, c := range cases {
		assignments := &fakeAssignments{}
		svc, now := newTestService(t, &fakeAlertStore{}, assignments)
		a := assignment(driver.Inactive, now.Add(-c.idle), c.toggles)
		svc.autoResetToggleCount(context.Background(), &a)
		if len(assignments.resets) != c.want {
			t.Errorf("idle %v toggles %d: expected %d resets, got %d",
				c.idle, c.toggles, c.want, len(assignments.resets))
		}
	}
}

func TestSweepCoversInactiveRoster(t *testing.T) {
	assignments := &fakeAssignments{}
	store := &fakeAlertStore{}
	svc, now := newTestService(t, store, assignments)

	assignments.inactive = []driver.Assignment{
		assignment(driver.Inactive, now.Add(-40*time.Minute), 2), // alerts and resets
		assignment(driver.Inactive, now.Add(-5*time.Minute), 0),  // neither
	}
	svc.SweepIdleDrivers(context.Background())

	if got := store.ofType(AlertProlongedInactivity); len(got) != 1 {
		t.Fatalf("expected one inactivity alert, got %d", len(got))
	}
	if len(assignments.resets) != 1 {
		t.Fatalf("expected one toggle reset, got %d", len(assignments.resets))
	}
}

func TestEmergencyAlert(t *testing.T) {
	store := &fakeAlertStore{}
	svc, _ := newTestService(t, store, &fakeAssignments{})

	svc.EmergencyRequested(context.Background(), &ride.Ride{
		ID:            "ride-9",
		ChapterID:     "chap-1",
		PickupAddress: "123 High St",
	}, "Riley")

	got := store.ofType(AlertEmergency)
	if len(got) != 1 {
		t.Fatalf("expected one emergency alert, got %d", len(got))
	}
	if got[0].Message != "EMERGENCY ride requested by Riley at 123 High St" {
		t.Fatalf("unexpected message: %q", got[0].Message)
	}
	if got[0].RideID == nil || *got[0].RideID != "ride-9" {
		t.Fatalf("alert must reference the ride, got %+v", got[0])
	}
}

func TestDispatchFailureAlert(t *testing.T) {
	store := &fakeAlertStore{}
	svc, _ := newTestService(t, store, &fakeAssignments{})

	svc.DispatchFailure(context.Background(), "event-gone", "dispatch repeatedly failing, event record not found")
	got := store.ofType(AlertDispatchFailure)
	if len(got) != 1 {
		t.Fatalf("expected one dispatch failure alert, got %d", len(got))
	}
	if got[0].ChapterID != "" {
		t.Fatalf("missing event has no chapter, got %q", got[0].ChapterID)
	}
}
