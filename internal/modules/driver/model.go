// README: Designated-driver assignment aggregate and availability variant.
package driver

import (
	"time"

	"saferide/internal/types"
)

type AvailabilityState string

const (
	Active   AvailabilityState = "active"
	Inactive AvailabilityState = "inactive"
)

// Availability is a tagged variant: exactly one Since timestamp, whose
// meaning depends on State. Replaces the lastActiveAt/lastInactiveAt pair
// whose mutual exclusivity was only a convention.
type Availability struct {
	State AvailabilityState
	Since time.Time
}

func ActiveSince(t time.Time) Availability {
	return Availability{State: Active, Since: t}
}

func InactiveSince(t time.Time) Availability {
	return Availability{State: Inactive, Since: t}
}

func (a Availability) IsActive() bool {
	return a.State == Active
}

// IdleFor returns how long the driver has been inactive as of now.
// An active driver is idle for zero by definition.
func (a Availability) IdleFor(now time.Time) time.Duration {
	if a.State != Inactive {
		return 0
	}
	return now.Sub(a.Since)
}

// Assignment is one driver rostered for one event.
type Assignment struct {
	DriverID            types.ID
	EventID             types.ID
	Availability        Availability
	InactiveToggleCount int
	TotalRidesCompleted int
	PhotoURL            string
	VehicleDescription  string
}

// ProfileComplete gates activation: riders must be able to recognise the
// driver and the car before the driver can receive assignments.
func (a *Assignment) ProfileComplete() bool {
	return a.PhotoURL != "" && a.VehicleDescription != ""
}
