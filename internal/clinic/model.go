package clinic

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPendingConfirmation AppointmentStatus = "pending_confirmation"
	StatusBooked              AppointmentStatus = "booked"
	StatusConfirmed           AppointmentStatus = "confirmed"
	StatusCheckedIn           AppointmentStatus = "checked_in"
	StatusCompleted           AppointmentStatus = "completed"
	StatusCancelled           AppointmentStatus = "cancelled"
	StatusNoShow              AppointmentStatus = "no_show"
	StatusRescheduled         AppointmentStatus = "rescheduled"
)

// ValidStatus reports whether s is one of the known appointment statuses.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPendingConfirmation, StatusBooked, StatusConfirmed, StatusCheckedIn,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type DoctorStatus string

const (
	DoctorActive   DoctorStatus = "active"
	DoctorInactive DoctorStatus = "inactive"
)

type Patient struct {
	ID         uuid.UUID
	FullName   string
	Phone      string
	Email      *string
	IDLastFour *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	Status         DoctorStatus
	ServiceIDs     []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WorkingHoursRule is one entry of a doctor's weekly availability template.
// Times are clinic-local "HH:MM". The template is informational and feeds the
// free-slot computation; bookings outside it are not rejected.
type WorkingHoursRule struct {
	Weekday   int // 0 = Sunday
	StartTime string
	EndTime   string
}

type Service struct {
	ID              uuid.UUID
	Category        string
	Name            string
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	ServiceID       uuid.UUID
	StartAt         time.Time
	EndAt           time.Time
	Status          AppointmentStatus
	Notes           string
	CalendarEventID *string
	CreatedBy       *uuid.UUID
	UpdatedBy       *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Window returns the appointment's occupied time as a half-open interval.
func (a *Appointment) Window() TimeWindow {
	return TimeWindow{Start: a.StartAt, End: a.EndAt}
}

// AppointmentDetail is the read model returned by scheduling operations: the
// appointment with its referenced directory records attached.
type AppointmentDetail struct {
	Appointment
	Patient *Patient
	Doctor  *Doctor
	Service *Service
}

// Settings holds clinic-wide tunables stored as a single row.
type Settings struct {
	MinServiceDurationMinutes int
	MaxServiceDurationMinutes int
	SlotGranularityMinutes    int
	UpdatedAt                 time.Time
}

// DefaultSettings are applied when the settings row has never been written.
func DefaultSettings() Settings {
	return Settings{
		MinServiceDurationMinutes: 5,
		MaxServiceDurationMinutes: 480,
		SlotGranularityMinutes:    15,
	}
}
