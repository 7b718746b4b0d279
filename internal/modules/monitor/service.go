// README: DD activity monitor watches availability writes, sweeps idle drivers, and self-heals counters.
package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"saferide/internal/modules/directory"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/ride"
	"saferide/internal/types"
)

// Thresholds are exclusive: exactly 5 toggles or exactly 15/30 minutes do
// not trigger; 6 toggles or 16/31 minutes do.
const (
	ToggleAbuseThreshold = 5
	InactivityThreshold  = 15 * time.Minute
	ToggleResetAfter     = 30 * time.Minute
	SuppressionWindow    = 30 * time.Minute
)

// AlertStore is the durable operator alert sink.
type AlertStore interface {
	Create(ctx context.Context, a *Alert) error
}

// Suppressor deduplicates inactivity alerts for the same idle stretch.
type Suppressor interface {
	AlreadyAlerted(ctx context.Context, eventID, driverID types.ID) (bool, error)
	MarkAlerted(ctx context.Context, eventID, driverID types.ID, window time.Duration) error
}

// Assignments is the slice of the driver store the monitor needs.
type Assignments interface {
	ListInactiveForActiveEvents(ctx context.Context) ([]driver.Assignment, error)
	ResetToggleCount(ctx context.Context, driverID, eventID types.ID) error
}

// Directory resolves driver names for alert wording and event status.
type Directory interface {
	GetUser(ctx context.Context, id types.ID) (*directory.User, error)
	GetEvent(ctx context.Context, id types.ID) (*directory.Event, error)
}

type Service struct {
	alerts      AlertStore
	suppressor  Suppressor
	assignments Assignments
	directory   Directory
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(alerts AlertStore, suppressor Suppressor, assignments Assignments, dir Directory, logger *zap.Logger) *Service {
	return &Service{
		alerts:      alerts,
		suppressor:  suppressor,
		assignments: assignments,
		directory:   dir,
		logger:      logger,
		now:         time.Now,
	}
}

// OnAvailabilityChange runs after every committed availability write. The
// three checks are independent; a single write can raise both an abuse and
// an inactivity alert. Failures here never propagate back to the toggle.
func (s *Service) OnAvailabilityChange(ctx context.Context, before, after *driver.Assignment) {
	if before.Availability.IsActive() && !after.Availability.IsActive() {
		s.checkToggleAbuse(ctx, before, after)
	}
	s.checkInactivity(ctx, after)
	s.autoResetToggleCount(ctx, after)
}

// SweepIdleDrivers is the periodic pass over inactive drivers at active
// events. Safe to invoke redundantly: the suppression window absorbs repeats.
func (s *Service) SweepIdleDrivers(ctx context.Context) {
	inactive, err := s.assignments.ListInactiveForActiveEvents(ctx)
	if err != nil {
		s.logger.Error("idle sweep failed to list assignments", zap.Error(err))
		return
	}
	for i := range inactive {
		s.checkInactivity(ctx, &inactive[i])
		s.autoResetToggleCount(ctx, &inactive[i])
	}
}

// RunSweeper drives SweepIdleDrivers on a ticker until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdleDrivers(ctx)
		}
	}
}

func (s *Service) checkToggleAbuse(ctx context.Context, before, after *driver.Assignment) {
	// Alert only on the write that crosses the threshold; later toggles in
	// the same window stay silent until the auto-reset.
	if after.InactiveToggleCount <= ToggleAbuseThreshold || before.InactiveToggleCount > ToggleAbuseThreshold {
		return
	}
	event, err := s.directory.GetEvent(ctx, after.EventID)
	if err != nil {
		s.logger.Warn("toggle abuse check: event lookup failed", zap.Error(err))
		return
	}
	name := s.driverName(ctx, after.DriverID)
	s.createAlert(ctx, &Alert{
		ChapterID: event.ChapterID,
		Type:      AlertDriverAbuse,
		Message:   fmt.Sprintf("%s has toggled off availability %d times in a short period", name, after.InactiveToggleCount),
		DriverID:  &after.DriverID,
		CreatedAt: s.now(),
	})
}

func (s *Service) checkInactivity(ctx context.Context, a *driver.Assignment) {
	idle := a.Availability.IdleFor(s.now())
	if idle <= InactivityThreshold {
		return
	}
	event, err := s.directory.GetEvent(ctx, a.EventID)
	if err != nil {
		s.logger.Warn("inactivity check: event lookup failed", zap.Error(err))
		return
	}
	if !event.Active() {
		return
	}
	if s.suppressor != nil {
		alerted, err := s.suppressor.AlreadyAlerted(ctx, a.EventID, a.DriverID)
		if err != nil {
			s.logger.Warn("suppression check failed", zap.Error(err))
			return
		}
		if alerted {
			return
		}
	}
	minutes := int(math.Round(idle.Minutes()))
	name := s.driverName(ctx, a.DriverID)
	s.createAlert(ctx, &Alert{
		ChapterID: event.ChapterID,
		Type:      AlertProlongedInactivity,
		Message:   fmt.Sprintf("%s has been inactive for %d minutes during an active event", name, minutes),
		DriverID:  &a.DriverID,
		CreatedAt: s.now(),
	})
	if s.suppressor != nil {
		if err := s.suppressor.MarkAlerted(ctx, a.EventID, a.DriverID, SuppressionWindow); err != nil {
			s.logger.Warn("failed to mark suppression window", zap.Error(err))
		}
	}
}

// autoResetToggleCount is the rolling-window mechanism, not a punitive lock:
// once a driver has sat inactive past the window, the abuse counter heals
// regardless of whether an alert already fired.
func (s *Service) autoResetToggleCount(ctx context.Context, a *driver.Assignment) {
	if a.InactiveToggleCount == 0 {
		return
	}
	if a.Availability.IdleFor(s.now()) <= ToggleResetAfter {
		return
	}
	if err := s.assignments.ResetToggleCount(ctx, a.DriverID, a.EventID); err != nil {
		s.logger.Error("failed to reset toggle count",
			zap.String("driver_id", string(a.DriverID)), zap.Error(err))
		return
	}
	s.logger.Info("toggle count reset",
		zap.String("driver_id", string(a.DriverID)),
		zap.String("event_id", string(a.EventID)),
	)
}

// EmergencyRequested surfaces an emergency ride to the operator feed.
// Implements the ride service's alert sink.
func (s *Service) EmergencyRequested(ctx context.Context, r *ride.Ride, riderName string) {
	rideID := r.ID
	s.createAlert(ctx, &Alert{
		ChapterID: r.ChapterID,
		Type:      AlertEmergency,
		Message:   fmt.Sprintf("EMERGENCY ride requested by %s at %s", riderName, r.PickupAddress),
		RideID:    &rideID,
		CreatedAt: s.now(),
	})
}

// DispatchFailure surfaces a recurring dispatch failure. Implements the
// dispatch engine's alert sink. The event record is missing by definition,
// so the alert carries no chapter and lands in the global feed.
func (s *Service) DispatchFailure(ctx context.Context, eventID types.ID, message string) {
	s.createAlert(ctx, &Alert{
		Type:      AlertDispatchFailure,
		Message:   fmt.Sprintf("event %s: %s", eventID, message),
		CreatedAt: s.now(),
	})
}

func (s *Service) createAlert(ctx context.Context, a *Alert) {
	if err := s.alerts.Create(ctx, a); err != nil {
		s.logger.Error("failed to create operator alert",
			zap.String("type", string(a.Type)), zap.Error(err))
	}
}

func (s *Service) driverName(ctx context.Context, driverID types.ID) string {
	u, err := s.directory.GetUser(ctx, driverID)
	if err != nil {
		return string(driverID)
	}
	return u.Name
}
