// README: Dispatch engine selects the least-loaded active driver and performs the hand-off.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"saferide/internal/modules/directory"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/priority"
	"saferide/internal/modules/ride"
	"saferide/internal/types"
)

var (
	// ErrNoDrivers is a legitimate steady state: the ride stays queued
	// until a driver becomes active.
	ErrNoDrivers = errors.New("no active drivers for event")

	ErrInvalidState = errors.New("ride is not dispatchable")
)

// maxAssignAttempts bounds the compare-and-swap retry loop when concurrent
// dispatches race for the same ride or driver.
const maxAssignAttempts = 3

// Assignments lists the active driver roster for an event.
type Assignments interface {
	ListActiveByEvent(ctx context.Context, eventID types.ID) ([]driver.Assignment, error)
}

// Directory is read access to driver/rider and event records.
type Directory interface {
	GetUser(ctx context.Context, id types.ID) (*directory.User, error)
	GetEvent(ctx context.Context, id types.ID) (*directory.Event, error)
}

// FailureRecorder throttles operator-facing dispatch failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, eventID types.ID) (bool, error)
}

// AlertSink receives recurring-failure alerts; best effort.
type AlertSink interface {
	DispatchFailure(ctx context.Context, eventID types.ID, message string)
}

type Engine struct {
	rides       ride.Store
	assignments Assignments
	directory   Directory
	estimator   *Estimator
	failures    FailureRecorder
	alerts      AlertSink
	notifier    ride.Notifier
	logger      *zap.Logger
}

func NewEngine(
	rides ride.Store,
	assignments Assignments,
	dir Directory,
	estimator *Estimator,
	failures FailureRecorder,
	alerts AlertSink,
	notifier ride.Notifier,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		rides:       rides,
		assignments: assignments,
		directory:   dir,
		estimator:   estimator,
		failures:    failures,
		alerts:      alerts,
		notifier:    notifier,
		logger:      logger,
	}
}

// Assign picks the active driver with the smallest estimated wait and hands
// the ride off atomically. Re-triggered events are harmless: anything but a
// queued, driverless ride is rejected up front, and the hand-off itself is a
// compare-and-swap that retries on conflict with fresh state.
func (e *Engine) Assign(ctx context.Context, rideID types.ID) error {
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		done, err := e.tryAssign(ctx, rideID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		// CAS conflict: another dispatcher or a cancel won the race.
		// Re-read and decide again.
	}
	return ride.ErrConflict
}

func (e *Engine) tryAssign(ctx context.Context, rideID types.ID) (bool, error) {
	r, err := e.rides.Get(ctx, rideID)
	if err != nil {
		return false, err
	}
	if r.Status != ride.StatusQueued || r.DriverID != nil {
		return false, ErrInvalidState
	}

	if _, err := e.directory.GetEvent(ctx, r.EventID); err != nil {
		if errors.Is(err, directory.ErrEventNotFound) {
			e.surfaceEventFailure(ctx, r.EventID)
		}
		return false, err
	}

	active, err := e.assignments.ListActiveByEvent(ctx, r.EventID)
	if err != nil {
		return false, err
	}
	if len(active) == 0 {
		return false, ErrNoDrivers
	}

	type candidate struct {
		assignment driver.Assignment
		waitMin    int
	}
	candidates := make([]candidate, 0, len(active))
	for _, a := range active {
		est, err := e.estimator.Estimate(ctx, a.DriverID, r.EventID)
		if err != nil {
			return false, err
		}
		candidates = append(candidates, candidate{assignment: a, waitMin: est})
	}
	// Minimum wait first; driver id ordering makes ties deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].waitMin != candidates[j].waitMin {
			return candidates[i].waitMin < candidates[j].waitMin
		}
		return candidates[i].assignment.DriverID < candidates[j].assignment.DriverID
	})

	for _, c := range candidates {
		u, err := e.directory.GetUser(ctx, c.assignment.DriverID)
		if err != nil {
			// Roster entry without a directory record: skip, never crash.
			e.logger.Warn("skipping driver with no directory record",
				zap.String("driver_id", string(c.assignment.DriverID)),
				zap.Error(err),
			)
			continue
		}

		driverID := c.assignment.DriverID
		waitMin := c.waitMin
		ok, err := e.rides.UpdateStatus(ctx, r.ID, ride.StatusQueued, ride.StatusAssigned, r.StatusVersion, ride.StatusPatch{
			DriverID:             &driverID,
			DriverName:           &u.Name,
			DriverPhone:          &u.Phone,
			DriverVehicle:        &c.assignment.VehicleDescription,
			EstimatedWaitMinutes: &waitMin,
		})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil // stale read, caller retries
		}

		_ = e.rides.AppendEvent(ctx, &ride.Event{
			RideID:     r.ID,
			FromStatus: ride.StatusQueued,
			ToStatus:   ride.StatusAssigned,
			ActorType:  "system",
			CreatedAt:  time.Now(),
		})
		e.logger.Info("ride assigned",
			zap.String("ride_id", string(r.ID)),
			zap.String("driver_id", string(driverID)),
			zap.Int("estimated_wait_minutes", waitMin),
		)
		e.notifyRider(ctx, r, u.Name)
		return true, nil
	}
	// Every active driver lacked a directory record; treat as no capacity.
	return false, ErrNoDrivers
}

// DrainQueue assigns as many queued rides for the event as capacity allows,
// highest priority first. Called when a driver activates; also safe to call
// at any time since Assign re-validates each ride.
func (e *Engine) DrainQueue(ctx context.Context, eventID types.ID) error {
	active, err := e.rides.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	var entries []priority.QueueEntry
	queued := make(map[types.ID]bool, len(active))
	for _, r := range active {
		if r.Status != ride.StatusQueued {
			continue
		}
		queued[r.ID] = true
		entries = append(entries, priority.QueueEntry{
			RideID:      r.ID,
			Priority:    r.Priority,
			RequestedAt: r.RequestedAt,
		})
	}
	positions := priority.Positions(entries)
	ordered := make([]types.ID, len(entries))
	for id, pos := range positions {
		ordered[pos-1] = id
	}
	for _, id := range ordered {
		if !queued[id] {
			continue
		}
		if err := e.Assign(ctx, id); err != nil {
			if errors.Is(err, ErrNoDrivers) {
				return nil // backlog remains, not an error
			}
			if errors.Is(err, ErrInvalidState) {
				continue // raced with a cancel or another dispatcher
			}
			return err
		}
	}
	return nil
}

func (e *Engine) surfaceEventFailure(ctx context.Context, eventID types.ID) {
	if e.failures == nil {
		return
	}
	recurring, err := e.failures.RecordFailure(ctx, eventID)
	if err != nil {
		e.logger.Warn("failure throttle unavailable", zap.Error(err))
		return
	}
	if recurring && e.alerts != nil {
		e.alerts.DispatchFailure(ctx, eventID, "dispatch repeatedly failing, event record not found")
	}
}

func (e *Engine) notifyRider(ctx context.Context, r *ride.Ride, driverName string) {
	if e.notifier == nil {
		return
	}
	rider, err := e.directory.GetUser(ctx, r.RiderID)
	if err != nil {
		e.logger.Warn("rider lookup failed, skipping notification",
			zap.String("ride_id", string(r.ID)), zap.Error(err))
		return
	}
	e.notifier.NotifyRider(r.ID, rider.Phone, fmt.Sprintf("%s is your driver tonight.", driverName))
}
