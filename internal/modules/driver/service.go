// README: Availability service governs driver activation and deactivation.
package driver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"saferide/internal/types"
)

var (
	ErrNotFound          = errors.New("driver assignment not found")
	ErrProfileIncomplete = errors.New("driver profile incomplete")
	ErrHoldingRide       = errors.New("driver holds an active ride")
	ErrBadRequest        = errors.New("bad request")
)

// Store is the persistence surface the service needs.
type Store interface {
	Get(ctx context.Context, driverID, eventID types.ID) (*Assignment, error)
	SetAvailability(ctx context.Context, driverID, eventID types.ID, av Availability, toggleCount int) error
	ListActiveByEvent(ctx context.Context, eventID types.ID) ([]Assignment, error)
	IncrementCompleted(ctx context.Context, driverID, eventID types.ID) error
	ResetToggleCount(ctx context.Context, driverID, eventID types.ID) error
}

// RideCounter reports a driver's non-terminal ride count; deactivation is
// rejected while the driver still holds one.
type RideCounter interface {
	CountActiveByDriver(ctx context.Context, driverID, eventID types.ID) (int, error)
}

// AvailabilityObserver is notified after every committed availability write.
// Failures are the observer's problem, never the toggle's.
type AvailabilityObserver interface {
	OnAvailabilityChange(ctx context.Context, before, after *Assignment)
}

type Service struct {
	store    Store
	rides    RideCounter
	observer AvailabilityObserver
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, rides RideCounter, observer AvailabilityObserver, logger *zap.Logger) *Service {
	return &Service{store: store, rides: rides, observer: observer, logger: logger, now: time.Now}
}

type ToggleCommand struct {
	DriverID types.ID
	EventID  types.ID
	Active   bool
}

// Toggle flips the driver's availability for an event. Activation requires a
// complete profile; deactivation requires an empty backlog and bumps the
// inactive toggle counter that the activity monitor watches.
func (s *Service) Toggle(ctx context.Context, cmd ToggleCommand) (*Assignment, error) {
	if cmd.DriverID == "" || cmd.EventID == "" {
		return nil, ErrBadRequest
	}
	before, err := s.store.Get(ctx, cmd.DriverID, cmd.EventID)
	if err != nil {
		return nil, err
	}
	if before.Availability.IsActive() == cmd.Active {
		// Re-delivered trigger or double tap; current state already matches.
		return before, nil
	}

	after := *before
	if cmd.Active {
		if !before.ProfileComplete() {
			return nil, ErrProfileIncomplete
		}
		after.Availability = ActiveSince(s.now())
	} else {
		n, err := s.rides.CountActiveByDriver(ctx, cmd.DriverID, cmd.EventID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrHoldingRide
		}
		after.Availability = InactiveSince(s.now())
		after.InactiveToggleCount = before.InactiveToggleCount + 1
	}

	if err := s.store.SetAvailability(ctx, cmd.DriverID, cmd.EventID, after.Availability, after.InactiveToggleCount); err != nil {
		return nil, err
	}
	s.logger.Info("driver availability changed",
		zap.String("driver_id", string(cmd.DriverID)),
		zap.String("event_id", string(cmd.EventID)),
		zap.Bool("active", cmd.Active),
	)

	if s.observer != nil {
		s.observer.OnAvailabilityChange(ctx, before, &after)
	}
	return &after, nil
}
