// README: Operator alert model.
package monitor

import (
	"time"

	"saferide/internal/types"
)

type AlertType string

const (
	AlertDriverAbuse         AlertType = "driver-abuse"
	AlertProlongedInactivity AlertType = "prolonged-inactivity"
	AlertEmergency           AlertType = "emergency"
	AlertDispatchFailure     AlertType = "dispatch-failure"
)

// Alert is append-only: created by the monitor or dispatcher, never mutated
// except to flip IsRead.
type Alert struct {
	ID        types.ID
	ChapterID types.ID
	Type      AlertType
	Message   string
	DriverID  *types.ID
	RideID    *types.ID
	IsRead    bool
	CreatedAt time.Time
}
