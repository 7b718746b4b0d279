// README: Ride lifecycle service implements state transitions and their side effects.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"saferide/internal/modules/directory"
	"saferide/internal/modules/priority"
	"saferide/internal/types"
)

var (
	ErrInvalidState      = errors.New("invalid state transition")
	ErrNotFound          = errors.New("ride not found")
	ErrConflict          = errors.New("ride state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrEventClosed       = errors.New("event is not accepting rides")
	ErrChapterNotAllowed = errors.New("rider's chapter is not allowed at this event")
	ErrWrongDriver       = errors.New("ride belongs to a different driver")
)

// DefaultETAMinutes is the fallback pickup ETA when no live estimate is
// available; also the assumed average trip duration.
const DefaultETAMinutes = 15

// StatusPatch carries the fields a transition may set alongside the status.
type StatusPatch struct {
	DriverID             *types.ID
	DriverName           *string
	DriverPhone          *string
	DriverVehicle        *string
	EstimatedWaitMinutes *int
	CancelReason         *string
}

// Store is the ride persistence surface. UpdateStatus must be a
// compare-and-swap on (status, status_version) so concurrent transitions
// cannot both win.
type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch StatusPatch) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListActiveByEvent(ctx context.Context, eventID types.ID) ([]*Ride, error)
	CountActiveByDriver(ctx context.Context, driverID, eventID types.ID) (int, error)
}

// Directory is read access to rider and event records.
type Directory interface {
	GetUser(ctx context.Context, id types.ID) (*directory.User, error)
	GetEvent(ctx context.Context, id types.ID) (*directory.Event, error)
}

// Completions increments a driver's completed-ride total.
type Completions interface {
	IncrementCompleted(ctx context.Context, driverID, eventID types.ID) error
}

// ETAService estimates driving minutes between two points.
type ETAService interface {
	MinutesBetween(ctx context.Context, origin, dest types.Point) (int, error)
}

// Notifier delivers best-effort rider SMS; implementations must never block
// or fail the transition that triggered them.
type Notifier interface {
	NotifyRider(rideID types.ID, phone, body string)
}

// AlertSink receives emergency alerts raised at ride creation.
type AlertSink interface {
	EmergencyRequested(ctx context.Context, r *Ride, riderName string)
}

type Service struct {
	store       Store
	directory   Directory
	completions Completions
	eta         ETAService
	notifier    Notifier
	alerts      AlertSink
	logger      *zap.Logger
}

func NewService(store Store, dir Directory, completions Completions, eta ETAService, notifier Notifier, alerts AlertSink, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		directory:   dir,
		completions: completions,
		eta:         eta,
		notifier:    notifier,
		alerts:      alerts,
		logger:      logger,
	}
}

type CreateCommand struct {
	RiderID       types.ID
	EventID       types.ID
	Pickup        types.Point
	PickupAddress string
	Emergency     bool
}

type EnrouteCommand struct {
	RideID         types.ID
	DriverID       types.ID
	DriverLocation types.Point
}

type CompleteCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CancelCommand struct {
	RideID    types.ID
	ActorType string
	Reason    string
}

// Create queues a new ride with its priority computed once and frozen.
// Emergencies get the sentinel priority immediately so queue ordering is
// correct even before a driver is found.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.RiderID == "" || cmd.EventID == "" {
		return "", ErrBadRequest
	}
	rider, err := s.directory.GetUser(ctx, cmd.RiderID)
	if err != nil {
		return "", err
	}
	event, err := s.directory.GetEvent(ctx, cmd.EventID)
	if err != nil {
		return "", err
	}
	if !event.Active() {
		return "", ErrEventClosed
	}
	if !event.AllowsChapter(rider.ChapterID) {
		return "", ErrChapterNotAllowed
	}

	now := time.Now()
	r := &Ride{
		ID:            newID(),
		RiderID:       rider.ID,
		ChapterID:     rider.ChapterID,
		EventID:       event.ID,
		Status:        StatusQueued,
		Pickup:        cmd.Pickup,
		PickupAddress: cmd.PickupAddress,
		Priority:      priority.Score(rider.ClassYear, 0, cmd.Emergency, rider.ChapterID == event.ChapterID),
		IsEmergency:   cmd.Emergency,
		RequestedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusQueued,
		ActorType:  "rider",
		ActorID:    &rider.ID,
		CreatedAt:  now,
	})
	if cmd.Emergency && s.alerts != nil {
		s.alerts.EmergencyRequested(ctx, r, rider.Name)
	}
	s.logger.Info("ride queued",
		zap.String("ride_id", string(r.ID)),
		zap.String("event_id", string(r.EventID)),
		zap.Bool("emergency", r.IsEmergency),
		zap.Float64("priority", r.Priority),
	)
	return r.ID, nil
}

// MarkEnroute is the driver's "on my way" action. The pickup ETA comes from
// the maps service and falls back to DefaultETAMinutes; a failed lookup never
// blocks the transition.
func (s *Service) MarkEnroute(ctx context.Context, cmd EnrouteCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != cmd.DriverID {
		return ErrWrongDriver
	}
	if !CanTransition(r.Status, StatusEnroute) {
		return ErrInvalidState
	}

	eta := DefaultETAMinutes
	if s.eta != nil {
		if m, err := s.eta.MinutesBetween(ctx, cmd.DriverLocation, r.Pickup); err == nil {
			eta = m
		} else {
			s.logger.Warn("eta lookup failed, using default",
				zap.String("ride_id", string(r.ID)), zap.Error(err))
		}
	}

	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusEnroute, r.StatusVersion, StatusPatch{
		EstimatedWaitMinutes: &eta,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusEnroute,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now(),
	})
	s.notifyRider(ctx, r, "Your driver is on the way.")
	return nil
}

// Complete finishes the ride and credits the driver. The counter moves only
// here, never at assignment, so cancelled rides are never counted.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != cmd.DriverID {
		return ErrWrongDriver
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCompleted, r.StatusVersion, StatusPatch{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusCompleted,
		ActorType:  "driver",
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now(),
	})
	if err := s.completions.IncrementCompleted(ctx, cmd.DriverID, r.EventID); err != nil {
		// The ride is already completed; the counter is eventually consistent.
		s.logger.Error("failed to credit completed ride",
			zap.String("ride_id", string(r.ID)),
			zap.String("driver_id", string(cmd.DriverID)),
			zap.Error(err),
		)
	}
	return nil
}

// Cancel ends a non-terminal ride with a reason. No counters move.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return ErrInvalidState
	}
	reason := cmd.Reason
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, StatusPatch{
		CancelReason: &reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	var actorID *types.ID
	switch cmd.ActorType {
	case "rider":
		actorID = &r.RiderID
	case "driver":
		actorID = r.DriverID
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusCancelled,
		ActorType:  cmd.ActorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// QueuePosition returns the ride's live 1-based place in its event's queue,
// or 0 once the ride is terminal. Positions are derived on read, never stored.
func (s *Service) QueuePosition(ctx context.Context, id types.ID) (int, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.Status.Terminal() {
		return 0, nil
	}
	active, err := s.store.ListActiveByEvent(ctx, r.EventID)
	if err != nil {
		return 0, err
	}
	entries := make([]priority.QueueEntry, 0, len(active))
	for _, a := range active {
		entries = append(entries, priority.QueueEntry{
			RideID:      a.ID,
			Priority:    a.Priority,
			RequestedAt: a.RequestedAt,
		})
	}
	return priority.PositionOf(entries, r.ID), nil
}

func (s *Service) notifyRider(ctx context.Context, r *Ride, body string) {
	if s.notifier == nil {
		return
	}
	rider, err := s.directory.GetUser(ctx, r.RiderID)
	if err != nil {
		s.logger.Warn("rider lookup failed, skipping notification",
			zap.String("ride_id", string(r.ID)), zap.Error(err))
		return
	}
	s.notifier.NotifyRider(r.ID, rider.Phone, body)
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
