package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrInvalidDuration    = errors.New("service duration out of bounds")
	ErrInvalidStatus      = errors.New("unknown appointment status")
	ErrInvalidPatientInfo = errors.New("invalid patient info")
	ErrMissingField       = errors.New("missing required field")
	ErrPhoneInUse         = errors.New("phone number already registered")

	ErrDoctorDoubleBooked = errors.New("doctor already has an appointment during this time range")
	ErrBookingInProgress  = errors.New("another booking for this doctor is in progress, please retry")
)

// ListFilter narrows ListAppointments. Zero values mean "no filter".
// DateFrom is inclusive from midnight; DateTo is inclusive through the end of
// that calendar day. Search matches patient name, patient phone, and the
// appointment id, case-insensitively.
type ListFilter struct {
	DoctorID  *uuid.UUID
	ServiceID *uuid.UUID
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)
	ListPatients(ctx context.Context, search string, limit, offset int) ([]Patient, error)

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	ListDoctors(ctx context.Context, activeOnly bool) ([]Doctor, error)
	GetWorkingHours(ctx context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error)
	ReplaceWorkingHours(ctx context.Context, doctorID uuid.UUID, rules []WorkingHoursRule) error

	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	CreateService(ctx context.Context, s *Service) (*Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]Service, error)

	GetSettings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) (Settings, error)

	// Conflict check: non-cancelled appointments for the doctor whose window
	// overlaps w, optionally excluding one appointment (self, on reschedule).
	HasConflict(ctx context.Context, doctorID uuid.UUID, w TimeWindow, excludeID *uuid.UUID) (bool, error)

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor *uuid.UUID) (*Appointment, error)
	// Compare-and-set variant used by the no-show worker so it never clobbers
	// a concurrent staff action.
	CasAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error

	ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error)
	ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// No-show worker: appointments still awaiting action whose end passed
	// before the cutoff.
	FindOverdueUnconfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
