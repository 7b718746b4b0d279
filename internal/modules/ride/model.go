// README: Ride aggregate, status definitions, and lifecycle transition table.
package ride

import (
	"time"

	"saferide/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusQueued    Status = "queued"
	StatusAssigned  Status = "assigned"
	StatusEnroute   Status = "enroute"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Ride struct {
	ID            types.ID
	RiderID       types.ID
	DriverID      *types.ID
	ChapterID     types.ID
	EventID       types.ID
	Status        Status
	StatusVersion int

	Pickup        types.Point
	PickupAddress string

	// Frozen at creation; only re-computed if the ride is ever re-queued.
	Priority    float64
	IsEmergency bool

	// Driver display fields copied onto the ride at assignment so the
	// rider's view survives later roster changes.
	DriverName    string
	DriverPhone   string
	DriverVehicle string

	EstimatedWaitMinutes int

	RequestedAt  time.Time
	AssignedAt   *time.Time
	EnrouteAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Event is one row of the append-only ride state log.
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions is the ride state flow as code. Cancellation is legal
// from every non-terminal state; terminal states have no way out.
var AllowedTransitions = map[Status][]Status{
	StatusQueued:   {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusEnroute, StatusCancelled},
	StatusEnroute:  {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
