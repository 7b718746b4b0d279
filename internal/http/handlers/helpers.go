// README: HTTP helper utilities for JSON and error mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"saferide/internal/modules/directory"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/monitor"
	"saferide/internal/modules/ride"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, driver.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, monitor.ErrAlertNotFound),
		errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, directory.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrInvalidState),
		errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrWrongDriver),
		errors.Is(err, ride.ErrEventClosed),
		errors.Is(err, ride.ErrChapterNotAllowed),
		errors.Is(err, driver.ErrProfileIncomplete),
		errors.Is(err, driver.ErrHoldingRide),
		errors.Is(err, dispatch.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
