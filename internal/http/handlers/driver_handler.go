// README: Driver availability handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	engine  *dispatch.Engine
	logger  *zap.Logger
}

func NewDriverHandler(drivers *driver.Service, engine *dispatch.Engine, logger *zap.Logger) *DriverHandler {
	return &DriverHandler{drivers: drivers, engine: engine, logger: logger}
}

type availabilityReq struct {
	Active bool `json:"active"`
}

func (h *DriverHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	driverID := r.PathValue("driverId")
	if eventID == "" || driverID == "" {
		writeError(w, http.StatusBadRequest, "missing event or driver id")
		return
	}
	var req availabilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	a, err := h.drivers.Toggle(r.Context(), driver.ToggleCommand{
		DriverID: types.ID(driverID),
		EventID:  types.ID(eventID),
		Active:   req.Active,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// A newly active driver can pick up the queued backlog immediately.
	if req.Active {
		if err := h.engine.DrainQueue(r.Context(), types.ID(eventID)); err != nil &&
			!errors.Is(err, dispatch.ErrNoDrivers) {
			h.logger.Warn("queue drain after activation failed",
				zap.String("event_id", eventID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"driver_id":             a.DriverID,
		"event_id":              a.EventID,
		"active":                a.Availability.IsActive(),
		"inactive_toggle_count": a.InactiveToggleCount,
		"total_rides_completed": a.TotalRidesCompleted,
	})
}
