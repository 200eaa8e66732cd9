package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

type CreateAppointmentRequest struct {
	PatientID string     `json:"patient_id"`
	DoctorID  string     `json:"doctor_id"`
	ServiceID string     `json:"service_id"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Status    string     `json:"status,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type PatientPayload struct {
	ID         *string `json:"id,omitempty"`
	FullName   string  `json:"full_name,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	IDLastFour *string `json:"id_last_four,omitempty"`
}

type CreateWithPatientRequest struct {
	Patient   PatientPayload `json:"patient"`
	DoctorID  string         `json:"doctor_id"`
	ServiceID string         `json:"service_id"`
	Start     time.Time      `json:"start"`
	End       *time.Time     `json:"end,omitempty"`
	Status    string         `json:"status,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	PatientID       *string    `json:"patient_id,omitempty"`
	DoctorID        *string    `json:"doctor_id,omitempty"`
	ServiceID       *string    `json:"service_id,omitempty"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CalendarEventID *string    `json:"calendar_event_id,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type PatientResponse struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	IDLastFour *string   `json:"id_last_four,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DoctorResponse struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Specialization string      `json:"specialization"`
	Status         string      `json:"status"`
	ServiceIDs     []uuid.UUID `json:"service_ids"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Category        string    `json:"category"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
}

type AppointmentResponse struct {
	ID              uuid.UUID        `json:"id"`
	PatientID       uuid.UUID        `json:"patient_id"`
	DoctorID        uuid.UUID        `json:"doctor_id"`
	ServiceID       uuid.UUID        `json:"service_id"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Status          string           `json:"status"`
	Notes           string           `json:"notes,omitempty"`
	CalendarEventID *string          `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Patient         *PatientResponse `json:"patient,omitempty"`
	Doctor          *DoctorResponse  `json:"doctor,omitempty"`
	Service         *ServiceResponse `json:"service,omitempty"`
}

type CreateDoctorRequest struct {
	Name           string   `json:"name"`
	Specialization string   `json:"specialization,omitempty"`
	Status         string   `json:"status,omitempty"`
	ServiceIDs     []string `json:"service_ids,omitempty"`
}

type CreateServiceRequest struct {
	Category        string `json:"category,omitempty"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          *bool  `json:"active,omitempty"`
}

type WorkingHoursPayload struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SettingsPayload struct {
	MinServiceDurationMinutes int `json:"min_service_duration_minutes"`
	MaxServiceDurationMinutes int `json:"max_service_duration_minutes"`
	SlotGranularityMinutes    int `json:"slot_granularity_minutes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toPatientResponse(p *clinic.Patient) *PatientResponse {
	if p == nil {
		return nil
	}
	return &PatientResponse{
		ID:         p.ID,
		FullName:   p.FullName,
		Phone:      p.Phone,
		Email:      p.Email,
		IDLastFour: p.IDLastFour,
		CreatedAt:  p.CreatedAt,
	}
}

func toDoctorResponse(d *clinic.Doctor) *DoctorResponse {
	if d == nil {
		return nil
	}
	return &DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		Status:         string(d.Status),
		ServiceIDs:     d.ServiceIDs,
	}
}

func toServiceResponse(s *clinic.Service) *ServiceResponse {
	if s == nil {
		return nil
	}
	return &ServiceResponse{
		ID:              s.ID,
		Category:        s.Category,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Active:          s.Active,
	}
}

func toAppointmentResponse(det *clinic.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:              det.ID,
		PatientID:       det.PatientID,
		DoctorID:        det.DoctorID,
		ServiceID:       det.ServiceID,
		Start:           det.StartAt,
		End:             det.EndAt,
		Status:          string(det.Status),
		Notes:           det.Notes,
		CalendarEventID: det.CalendarEventID,
		CreatedAt:       det.CreatedAt,
		UpdatedAt:       det.UpdatedAt,
		Patient:         toPatientResponse(det.Patient),
		Doctor:          toDoctorResponse(det.Doctor),
		Service:         toServiceResponse(det.Service),
	}
}
