package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

// stubRepo backs handler tests with in-memory maps. The embedded interface
// satisfies the methods the tested routes never reach; calling one of those
// panics, which is exactly what we want in a test.
type stubRepo struct {
	clinic.Repository
	patients     map[uuid.UUID]*clinic.Patient
	doctors      map[uuid.UUID]*clinic.Doctor
	services     map[uuid.UUID]*clinic.Service
	appointments map[uuid.UUID]*clinic.Appointment
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		patients:     make(map[uuid.UUID]*clinic.Patient),
		doctors:      make(map[uuid.UUID]*clinic.Doctor),
		services:     make(map[uuid.UUID]*clinic.Service),
		appointments: make(map[uuid.UUID]*clinic.Appointment),
	}
}

func (s *stubRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*clinic.Patient, error) {
	if p, ok := s.patients[id]; ok {
		return p, nil
	}
	return nil, clinic.ErrPatientNotFound
}

func (s *stubRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	if d, ok := s.doctors[id]; ok {
		return d, nil
	}
	return nil, clinic.ErrDoctorNotFound
}

func (s *stubRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*clinic.Service, error) {
	if svc, ok := s.services[id]; ok {
		return svc, nil
	}
	return nil, clinic.ErrServiceNotFound
}

func (s *stubRepo) HasConflict(_ context.Context, doctorID uuid.UUID, w clinic.TimeWindow, excludeID *uuid.UUID) (bool, error) {
	for _, a := range s.appointments {
		if a.DoctorID != doctorID || a.Status == clinic.StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Window().Overlaps(w) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CreateAppointment(_ context.Context, a *clinic.Appointment) (*clinic.Appointment, error) {
	cp := *a
	cp.ID = uuid.New()
	s.appointments[cp.ID] = &cp
	return &cp, nil
}

func (s *stubRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	if a, ok := s.appointments[id]; ok {
		return a, nil
	}
	return nil, clinic.ErrAppointmentNotFound
}

func (s *stubRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*clinic.AppointmentDetail, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	return &clinic.AppointmentDetail{
		Appointment: *a,
		Patient:     s.patients[a.PatientID],
		Doctor:      s.doctors[a.DoctorID],
		Service:     s.services[a.ServiceID],
	}, nil
}

func (s *stubRepo) SetAppointmentStatus(_ context.Context, id uuid.UUID, to clinic.AppointmentStatus, actor *uuid.UUID) (*clinic.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedBy = actor
	return a, nil
}

func (s *stubRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if _, ok := s.appointments[id]; !ok {
		return clinic.ErrAppointmentNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *stubRepo) ListAppointments(_ context.Context, f clinic.ListFilter) ([]clinic.AppointmentDetail, error) {
	var result []clinic.AppointmentDetail
	for _, a := range s.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		result = append(result, clinic.AppointmentDetail{Appointment: *a})
	}
	return result, nil
}

type inlineLocker struct{}

func (inlineLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	repo    *stubRepo
	router  http.Handler
	patient uuid.UUID
	doctor  uuid.UUID
	service uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newStubRepo()

	patientID, doctorID, serviceID := uuid.New(), uuid.New(), uuid.New()
	repo.patients[patientID] = &clinic.Patient{ID: patientID, FullName: "Ana Morales", Phone: "+15550001111"}
	repo.doctors[doctorID] = &clinic.Doctor{ID: doctorID, Name: "Dr. Ruiz", Status: clinic.DoctorActive}
	repo.services[serviceID] = &clinic.Service{ID: serviceID, Name: "Dental Cleaning", DurationMinutes: 30, Active: true}

	sched := clinic.NewScheduler(repo, inlineLocker{}, nil, zerolog.Nop())
	router := NewRouter(RouterConfig{
		Scheduler: sched,
		Env:       "test",
		Version:   "test",
		Logger:    zerolog.Nop(),
	})

	return &testEnv{
		repo:    repo,
		router:  router,
		patient: patientID,
		doctor:  doctorID,
		service: serviceID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeAppointment(t *testing.T, rec *httptest.ResponseRecorder) AppointmentResponse {
	t.Helper()
	var resp AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

var bookingStart = time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

func (e *testEnv) createBooking(t *testing.T) AppointmentResponse {
	t.Helper()
	rec := e.do(t, "POST", "/appointments", CreateAppointmentRequest{
		PatientID: e.patient.String(),
		DoctorID:  e.doctor.String(),
		ServiceID: e.service.String(),
		Start:     bookingStart,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d, body %s", rec.Code, rec.Body)
	}
	return decodeAppointment(t, rec)
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp := e.createBooking(t)

	if resp.Status != string(clinic.StatusPendingConfirmation) {
		t.Fatalf("status = %s, want %s", resp.Status, clinic.StatusPendingConfirmation)
	}
	if !resp.End.Equal(bookingStart.Add(30 * time.Minute)) {
		t.Fatalf("end = %s, want derived %s", resp.End, bookingStart.Add(30*time.Minute))
	}
	if resp.Patient == nil || resp.Patient.FullName != "Ana Morales" {
		t.Fatal("response missing hydrated patient")
	}
}

func TestCreateAppointmentConflictReturns409(t *testing.T) {
	e := newTestEnv(t)
	e.createBooking(t)

	rec := e.do(t, "POST", "/appointments", CreateAppointmentRequest{
		PatientID: e.patient.String(),
		DoctorID:  e.doctor.String(),
		ServiceID: e.service.String(),
		Start:     bookingStart.Add(15 * time.Minute),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", rec.Code, rec.Body)
	}
	if errResp := decodeError(t, rec); errResp.Error != "doctor_double_booked" {
		t.Fatalf("error code = %q, want doctor_double_booked", errResp.Error)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		req        CreateAppointmentRequest
		wantStatus int
	}{
		{
			name: "malformed doctor id",
			req: CreateAppointmentRequest{
				PatientID: e.patient.String(),
				DoctorID:  "not-a-uuid",
				ServiceID: e.service.String(),
				Start:     bookingStart,
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown service",
			req: CreateAppointmentRequest{
				PatientID: e.patient.String(),
				DoctorID:  e.doctor.String(),
				ServiceID: uuid.NewString(),
				Start:     bookingStart,
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "unknown status",
			req: CreateAppointmentRequest{
				PatientID: e.patient.String(),
				DoctorID:  e.doctor.String(),
				ServiceID: e.service.String(),
				Start:     bookingStart,
				Status:    "meditating",
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, "POST", "/appointments", tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestCreateAppointmentInvertedWindowReturns400(t *testing.T) {
	e := newTestEnv(t)
	end := bookingStart.Add(-time.Hour)

	rec := e.do(t, "POST", "/appointments", CreateAppointmentRequest{
		PatientID: e.patient.String(),
		DoctorID:  e.doctor.String(),
		ServiceID: e.service.String(),
		Start:     bookingStart,
		End:       &end,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body)
	}
	if errResp := decodeError(t, rec); errResp.Error != "invalid_time_range" {
		t.Fatalf("error code = %q, want invalid_time_range", errResp.Error)
	}
}

func TestGetAppointmentEndpoint(t *testing.T) {
	e := newTestEnv(t)
	created := e.createBooking(t)

	rec := e.do(t, "GET", "/appointments/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeAppointment(t, rec)
	if got.ID != created.ID {
		t.Fatalf("id = %s, want %s", got.ID, created.ID)
	}
}

func TestGetAppointmentNotFoundNamesID(t *testing.T) {
	e := newTestEnv(t)
	missing := uuid.New()

	rec := e.do(t, "GET", "/appointments/"+missing.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	errResp := decodeError(t, rec)
	if errResp.Error != "appointment_not_found" {
		t.Fatalf("error code = %q", errResp.Error)
	}
	if !strings.Contains(errResp.Details, missing.String()) {
		t.Fatalf("details %q should name the id", errResp.Details)
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	e := newTestEnv(t)
	created := e.createBooking(t)
	path := fmt.Sprintf("/appointments/%s/status", created.ID)

	rec := e.do(t, "PATCH", path, UpdateStatusRequest{Status: "confirmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeAppointment(t, rec); got.Status != "confirmed" {
		t.Fatalf("appointment status = %s, want confirmed", got.Status)
	}

	rec = e.do(t, "PATCH", path, UpdateStatusRequest{Status: "nonsense"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteAppointmentEndpoint(t *testing.T) {
	e := newTestEnv(t)
	created := e.createBooking(t)
	path := "/appointments/" + created.ID.String()

	rec := e.do(t, "DELETE", path, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = e.do(t, "DELETE", path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestListAppointmentsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.createBooking(t)

	rec := e.do(t, "GET", "/appointments?doctor_id="+e.doctor.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var list []AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}

	rec = e.do(t, "GET", "/appointments?doctor_id="+uuid.NewString(), nil)
	var empty []AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatalf("decode empty list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("len = %d, want 0", len(empty))
	}
}

func TestListAppointmentsBadQuery(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/appointments?doctor_id=garbage", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = e.do(t, "GET", "/appointments?date_from=tomorrow-ish", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = e.do(t, "GET", "/appointments?status=limbo", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMalformedBodyReturns400(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest("POST", "/appointments", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
