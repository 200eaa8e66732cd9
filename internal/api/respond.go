package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
	redisclient "github.com/brightsmile/clinic-scheduling/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleSchedulingError maps the core's sentinel errors onto HTTP statuses.
// Missing references are 404, malformed input 400, double-bookings and lock
// contention 409. Anything else is a 500.
func handleSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, clinic.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, clinic.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.Is(err, clinic.ErrInvalidPatientInfo),
		errors.Is(err, clinic.ErrMissingField):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, clinic.ErrDoctorDoubleBooked):
		writeError(w, http.StatusConflict, "doctor_double_booked", err.Error())
	case errors.Is(err, clinic.ErrPhoneInUse):
		writeError(w, http.StatusConflict, "phone_in_use", err.Error())
	case errors.Is(err, clinic.ErrBookingInProgress),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "booking_in_progress", "another booking for this doctor is in progress, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
