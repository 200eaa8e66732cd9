package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

// actorFrom reads the authenticated admin user id the auth layer forwards.
// Absent for public self-service bookings.
func actorFrom(r *http.Request) *uuid.UUID {
	v := r.Header.Get("X-Actor-ID")
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil
	}
	return &id
}

func parseUUIDField(w http.ResponseWriter, value, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUIDField(w, chi.URLParam(r, "id"), "id")
}

// parseDateQuery accepts either a bare date (2006-01-02) or RFC3339.
func parseDateQuery(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func createAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, ok := parseUUIDField(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		doctorID, ok := parseUUIDField(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		serviceID, ok := parseUUIDField(w, req.ServiceID, "service_id")
		if !ok {
			return
		}

		det, err := svc.Create(r.Context(), clinic.CreateParams{
			PatientID: patientID,
			DoctorID:  doctorID,
			ServiceID: serviceID,
			Start:     req.Start,
			End:       req.End,
			Status:    clinic.AppointmentStatus(req.Status),
			Notes:     req.Notes,
			Actor:     actorFrom(r),
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(det))
	}
}

func createWithPatientHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateWithPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseUUIDField(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		serviceID, ok := parseUUIDField(w, req.ServiceID, "service_id")
		if !ok {
			return
		}

		info := clinic.PatientInfo{
			FullName:   req.Patient.FullName,
			Phone:      req.Patient.Phone,
			Email:      req.Patient.Email,
			IDLastFour: req.Patient.IDLastFour,
		}
		if req.Patient.ID != nil {
			pid, ok := parseUUIDField(w, *req.Patient.ID, "patient_id")
			if !ok {
				return
			}
			info.ID = &pid
		}

		det, err := svc.CreateWithPatient(r.Context(), info, clinic.CreateParams{
			DoctorID:  doctorID,
			ServiceID: serviceID,
			Start:     req.Start,
			End:       req.End,
			Status:    clinic.AppointmentStatus(req.Status),
			Notes:     req.Notes,
			Actor:     actorFrom(r),
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(det))
	}
}

func listAppointmentsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f clinic.ListFilter

		for _, spec := range []struct {
			key  string
			dest **uuid.UUID
		}{
			{"doctor_id", &f.DoctorID},
			{"service_id", &f.ServiceID},
			{"patient_id", &f.PatientID},
		} {
			if v := q.Get(spec.key); v != "" {
				id, ok := parseUUIDField(w, v, spec.key)
				if !ok {
					return
				}
				*spec.dest = &id
			}
		}

		if v := q.Get("status"); v != "" {
			status := clinic.AppointmentStatus(v)
			f.Status = &status
		}
		if v := q.Get("date_from"); v != "" {
			t, err := parseDateQuery(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_from", "date_from must be a date or RFC3339 timestamp")
				return
			}
			f.DateFrom = &t
		}
		if v := q.Get("date_to"); v != "" {
			t, err := parseDateQuery(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_to", "date_to must be a date or RFC3339 timestamp")
				return
			}
			f.DateTo = &t
		}
		f.Search = q.Get("search")
		f.Limit = intQuery(q.Get("limit"))
		f.Offset = intQuery(q.Get("offset"))

		result, err := svc.List(r.Context(), f)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(result))
		for i := range result {
			resp = append(resp, toAppointmentResponse(&result[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		det, err := svc.Get(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(det))
	}
}

func updateAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params := clinic.UpdateParams{
			Start:           req.Start,
			End:             req.End,
			Notes:           req.Notes,
			CalendarEventID: req.CalendarEventID,
			Actor:           actorFrom(r),
		}
		if req.PatientID != nil {
			pid, ok := parseUUIDField(w, *req.PatientID, "patient_id")
			if !ok {
				return
			}
			params.PatientID = &pid
		}
		if req.DoctorID != nil {
			did, ok := parseUUIDField(w, *req.DoctorID, "doctor_id")
			if !ok {
				return
			}
			params.DoctorID = &did
		}
		if req.ServiceID != nil {
			sid, ok := parseUUIDField(w, *req.ServiceID, "service_id")
			if !ok {
				return
			}
			params.ServiceID = &sid
		}
		if req.Status != nil {
			status := clinic.AppointmentStatus(*req.Status)
			params.Status = &status
		}

		det, err := svc.Update(r.Context(), id, params)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(det))
	}
}

func updateStatusHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		det, err := svc.UpdateStatus(r.Context(), id, clinic.AppointmentStatus(req.Status), actorFrom(r))
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(det))
	}
}

func deleteAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		if err := svc.Remove(r.Context(), id); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func doctorSlotsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := idParam(w, r)
		if !ok {
			return
		}
		serviceID, ok := parseUUIDField(w, r.URL.Query().Get("service_id"), "service_id")
		if !ok {
			return
		}

		from, err := parseDateQuery(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be a date or RFC3339 timestamp")
			return
		}
		to, err := parseDateQuery(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be a date or RFC3339 timestamp")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, serviceID, from, to)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		if slots == nil {
			slots = []clinic.Slot{}
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func intQuery(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
