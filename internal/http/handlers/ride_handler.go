// README: Ride handlers for request/get/cancel and driver trip actions.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/ride"
	"saferide/internal/types"
)

type RideHandler struct {
	rides  *ride.Service
	engine *dispatch.Engine
	logger *zap.Logger
}

func NewRideHandler(rides *ride.Service, engine *dispatch.Engine, logger *zap.Logger) *RideHandler {
	return &RideHandler{rides: rides, engine: engine, logger: logger}
}

type createRideReq struct {
	RiderID       string  `json:"rider_id"`
	EventID       string  `json:"event_id"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	PickupAddress string  `json:"pickup_address"`
	Emergency     bool    `json:"emergency"`
}

func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRideReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RiderID == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	id, err := h.rides.Create(r.Context(), ride.CreateCommand{
		RiderID:       types.ID(req.RiderID),
		EventID:       types.ID(req.EventID),
		Pickup:        types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		PickupAddress: req.PickupAddress,
		Emergency:     req.Emergency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Dispatch reacts to creation. No active drivers is a legitimate
	// backlog state, not a request failure.
	if err := h.engine.Assign(r.Context(), id); err != nil &&
		!errors.Is(err, dispatch.ErrNoDrivers) && !errors.Is(err, dispatch.ErrInvalidState) {
		h.logger.Warn("dispatch after create failed",
			zap.String("ride_id", string(id)), zap.Error(err))
	}

	h.writeRideState(w, r, http.StatusCreated, id)
}

func (h *RideHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing ride id")
		return
	}
	h.writeRideState(w, r, http.StatusOK, types.ID(id))
}

type cancelRideReq struct {
	ActorType string `json:"actor_type"`
	Reason    string `json:"reason"`
}

func (h *RideHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing ride id")
		return
	}
	var req cancelRideReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActorType == "" {
		req.ActorType = "rider"
	}
	if req.Reason == "" {
		req.Reason = "user_cancel"
	}
	err := h.rides.Cancel(r.Context(), ride.CancelCommand{
		RideID:    types.ID(id),
		ActorType: req.ActorType,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": id, "status": ride.StatusCancelled})
}

type enrouteReq struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func (h *RideHandler) Enroute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req enrouteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if id == "" || req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	err := h.rides.MarkEnroute(r.Context(), ride.EnrouteCommand{
		RideID:         types.ID(id),
		DriverID:       types.ID(req.DriverID),
		DriverLocation: types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeRideState(w, r, http.StatusOK, types.ID(id))
}

type completeReq struct {
	DriverID string `json:"driver_id"`
}

func (h *RideHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if id == "" || req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	err := h.rides.Complete(r.Context(), ride.CompleteCommand{
		RideID:   types.ID(id),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": id, "status": ride.StatusCompleted})
}

func (h *RideHandler) writeRideState(w http.ResponseWriter, r *http.Request, status int, id types.ID) {
	current, err := h.rides.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pos, err := h.rides.QueuePosition(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{
		"ride_id":        current.ID,
		"status":         current.Status,
		"queue_position": pos,
		"emergency":      current.IsEmergency,
	}
	if current.DriverID != nil {
		resp["driver_id"] = *current.DriverID
		resp["driver_name"] = current.DriverName
		resp["driver_phone"] = current.DriverPhone
		resp["driver_vehicle"] = current.DriverVehicle
		resp["estimated_wait_minutes"] = current.EstimatedWaitMinutes
	}
	writeJSON(w, status, resp)
}
