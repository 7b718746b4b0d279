// README: Wait time estimation from a driver's in-flight ride count.
package dispatch

import (
	"context"

	"saferide/internal/types"
)

// MinutesPerRide is the simplifying average trip duration charged per
// in-flight ride.
const MinutesPerRide = 15

// RideCounter reports a driver's non-terminal ride count for an event.
// Queued rides have no driver and never contribute.
type RideCounter interface {
	CountActiveByDriver(ctx context.Context, driverID, eventID types.ID) (int, error)
}

// Estimator converts a driver's backlog into minutes of expected wait. The
// value drives both driver selection and the wait shown to riders.
type Estimator struct {
	rides RideCounter
}

func NewEstimator(rides RideCounter) *Estimator {
	return &Estimator{rides: rides}
}

func (e *Estimator) Estimate(ctx context.Context, driverID, eventID types.ID) (int, error) {
	n, err := e.rides.CountActiveByDriver(ctx, driverID, eventID)
	if err != nil {
		return 0, err
	}
	return n * MinutesPerRide, nil
}
