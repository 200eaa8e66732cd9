package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

func createPatientHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patient, err := svc.RegisterPatient(r.Context(), clinic.PatientInfo{
			FullName:   req.FullName,
			Phone:      req.Phone,
			Email:      req.Email,
			IDLastFour: req.IDLastFour,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(patient))
	}
}

func getPatientHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		patient, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(patient))
	}
}

func listPatientsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patients, err := svc.ListPatients(r.Context(), q.Get("search"), intQuery(q.Get("limit")), intQuery(q.Get("offset")))
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]*PatientResponse, 0, len(patients))
		for i := range patients {
			resp = append(resp, toPatientResponse(&patients[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createDoctorHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		serviceIDs := make([]uuid.UUID, 0, len(req.ServiceIDs))
		for _, raw := range req.ServiceIDs {
			id, ok := parseUUIDField(w, raw, "service_id")
			if !ok {
				return
			}
			serviceIDs = append(serviceIDs, id)
		}

		doctor, err := svc.AddDoctor(r.Context(), clinic.Doctor{
			Name:           req.Name,
			Specialization: req.Specialization,
			Status:         clinic.DoctorStatus(req.Status),
			ServiceIDs:     serviceIDs,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(doctor))
	}
}

func getDoctorHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func listDoctorsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("active") == "true"
		doctors, err := svc.ListDoctors(r.Context(), activeOnly)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]*DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getWorkingHoursHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		rules, err := svc.DoctorWorkingHours(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]WorkingHoursPayload, 0, len(rules))
		for _, rule := range rules {
			resp = append(resp, WorkingHoursPayload{
				Weekday:   rule.Weekday,
				StartTime: rule.StartTime,
				EndTime:   rule.EndTime,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func putWorkingHoursHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		var req []WorkingHoursPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rules := make([]clinic.WorkingHoursRule, 0, len(req))
		for _, p := range req {
			rules = append(rules, clinic.WorkingHoursRule{
				Weekday:   p.Weekday,
				StartTime: p.StartTime,
				EndTime:   p.EndTime,
			})
		}

		if err := svc.SetDoctorWorkingHours(r.Context(), id, rules); err != nil {
			handleSchedulingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createServiceHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "service name is required")
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		service, err := svc.AddService(r.Context(), clinic.Service{
			Category:        req.Category,
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			Active:          active,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(service))
	}
}

func getServiceHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		service, err := svc.GetService(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(service))
	}
}

func listServicesHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("active") == "true"
		services, err := svc.ListServices(r.Context(), activeOnly)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]*ServiceResponse, 0, len(services))
		for i := range services {
			resp = append(resp, toServiceResponse(&services[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getSettingsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := svc.Settings(r.Context())
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SettingsPayload{
			MinServiceDurationMinutes: settings.MinServiceDurationMinutes,
			MaxServiceDurationMinutes: settings.MaxServiceDurationMinutes,
			SlotGranularityMinutes:    settings.SlotGranularityMinutes,
		})
	}
}

func putSettingsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		saved, err := svc.UpdateSettings(r.Context(), clinic.Settings{
			MinServiceDurationMinutes: req.MinServiceDurationMinutes,
			MaxServiceDurationMinutes: req.MaxServiceDurationMinutes,
			SlotGranularityMinutes:    req.SlotGranularityMinutes,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SettingsPayload{
			MinServiceDurationMinutes: saved.MinServiceDurationMinutes,
			MaxServiceDurationMinutes: saved.MaxServiceDurationMinutes,
			SlotGranularityMinutes:    saved.SlotGranularityMinutes,
		})
	}
}
