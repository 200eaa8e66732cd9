package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/brightsmile/clinic-scheduling/internal/redis"
)

// CalendarSink receives appointment mutations after they commit. Delivery is
// best effort: a sink failure never fails or rolls back the scheduling
// operation, it only leaves the calendar event id unset.
type CalendarSink interface {
	OnCreated(ctx context.Context, det *AppointmentDetail) (eventID string, err error)
	OnUpdated(ctx context.Context, det *AppointmentDetail) error
	OnDeleted(ctx context.Context, eventID string) error
}

// NoopSink is used when no external calendar is configured.
type NoopSink struct{}

func (NoopSink) OnCreated(context.Context, *AppointmentDetail) (string, error) { return "", nil }
func (NoopSink) OnUpdated(context.Context, *AppointmentDetail) error           { return nil }
func (NoopSink) OnDeleted(context.Context, string) error                       { return nil }

const sinkTimeout = 5 * time.Second

// Scheduler orchestrates the scheduling operations: reference validation,
// end-time derivation, conflict checking and persistence. The conflict
// check and the write run inside a per-doctor mutex so two concurrent
// bookings for overlapping windows cannot both pass the check; the DB
// exclusion constraint backs this up at commit time.
type Scheduler struct {
	repo   Repository
	locker redisclient.Locker
	sink   CalendarSink
	log    zerolog.Logger
}

func NewScheduler(repo Repository, locker redisclient.Locker, sink CalendarSink, log zerolog.Logger) *Scheduler {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Scheduler{
		repo:   repo,
		locker: locker,
		sink:   sink,
		log:    log,
	}
}

func named(sentinel error, id uuid.UUID) error {
	return fmt.Errorf("%w: %s", sentinel, id)
}

type CreateParams struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	Start     time.Time
	// End is optional; when nil it is derived from the service duration.
	End    *time.Time
	Status AppointmentStatus
	Notes  string
	Actor  *uuid.UUID
}

// Create books a new appointment. The end time, when not supplied, is
// start + service duration. Fails without writing on a missing reference,
// a bad time range, or a doctor double-booking.
func (s *Scheduler) Create(ctx context.Context, p CreateParams) (*AppointmentDetail, error) {
	patient, err := s.repo.GetPatientByID(ctx, p.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, named(ErrPatientNotFound, p.PatientID)
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, p.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, named(ErrDoctorNotFound, p.DoctorID)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	svc, err := s.repo.GetServiceByID(ctx, p.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, named(ErrServiceNotFound, p.ServiceID)
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	end := p.Start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	if p.End != nil {
		end = *p.End
	}
	window, err := NewTimeWindow(p.Start, end)
	if err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = StatusPendingConfirmation
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var created *Appointment

	err = s.locker.WithDoctorLock(ctx, p.DoctorID, func(lockCtx context.Context) error {
		conflict, err := s.repo.HasConflict(lockCtx, p.DoctorID, window, nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrDoctorDoubleBooked
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			PatientID: p.PatientID,
			DoctorID:  p.DoctorID,
			ServiceID: p.ServiceID,
			StartAt:   window.Start,
			EndAt:     window.End,
			Status:    status,
			Notes:     p.Notes,
			CreatedBy: p.Actor,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	det := &AppointmentDetail{
		Appointment: *created,
		Patient:     patient,
		Doctor:      doctor,
		Service:     svc,
	}
	s.notifyCreated(ctx, det)

	return det, nil
}

// PatientInfo identifies a patient for CreateWithPatient: either an existing
// id, or contact details used to find (by phone) or register the patient.
type PatientInfo struct {
	ID         *uuid.UUID
	FullName   string
	Phone      string
	Email      *string
	IDLastFour *string
}

// CreateWithPatient resolves or registers the patient, then delegates to
// Create. Patient resolution happens up front so the conflict-checking path
// stays identical to a plain create.
func (s *Scheduler) CreateWithPatient(ctx context.Context, info PatientInfo, p CreateParams) (*AppointmentDetail, error) {
	patient, err := s.resolvePatient(ctx, info)
	if err != nil {
		return nil, err
	}

	p.PatientID = patient.ID
	return s.Create(ctx, p)
}

func (s *Scheduler) resolvePatient(ctx context.Context, info PatientInfo) (*Patient, error) {
	if info.ID != nil {
		patient, err := s.repo.GetPatientByID(ctx, *info.ID)
		if err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return nil, named(ErrPatientNotFound, *info.ID)
			}
			return nil, fmt.Errorf("load patient: %w", err)
		}
		return patient, nil
	}

	if info.Phone == "" {
		return nil, fmt.Errorf("%w: patient phone is required", ErrInvalidPatientInfo)
	}

	patient, err := s.repo.GetPatientByPhone(ctx, info.Phone)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("look up patient by phone: %w", err)
	}

	if info.FullName == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidPatientInfo)
	}

	created, err := s.repo.CreatePatient(ctx, &Patient{
		FullName:   info.FullName,
		Phone:      info.Phone,
		Email:      info.Email,
		IDLastFour: info.IDLastFour,
	})
	if err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	return created, nil
}

type UpdateParams struct {
	PatientID       *uuid.UUID
	DoctorID        *uuid.UUID
	ServiceID       *uuid.UUID
	Start           *time.Time
	End             *time.Time
	Status          *AppointmentStatus
	Notes           *string
	CalendarEventID *string
	Actor           *uuid.UUID
}

// Update applies a partial patch to an appointment. The effective window is
// re-checked for conflicts, excluding the appointment itself so that a
// reschedule overlapping only its own previous window succeeds. The end time
// is never re-derived from the service duration on update.
func (s *Scheduler) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*AppointmentDetail, error) {
	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, named(ErrAppointmentNotFound, id)
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if p.PatientID != nil {
		if _, err := s.repo.GetPatientByID(ctx, *p.PatientID); err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return nil, named(ErrPatientNotFound, *p.PatientID)
			}
			return nil, fmt.Errorf("load patient: %w", err)
		}
	}
	if p.DoctorID != nil {
		if _, err := s.repo.GetDoctorByID(ctx, *p.DoctorID); err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return nil, named(ErrDoctorNotFound, *p.DoctorID)
			}
			return nil, fmt.Errorf("load doctor: %w", err)
		}
	}
	if p.ServiceID != nil {
		if _, err := s.repo.GetServiceByID(ctx, *p.ServiceID); err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return nil, named(ErrServiceNotFound, *p.ServiceID)
			}
			return nil, fmt.Errorf("load service: %w", err)
		}
	}

	next := *existing
	if p.PatientID != nil {
		next.PatientID = *p.PatientID
	}
	if p.DoctorID != nil {
		next.DoctorID = *p.DoctorID
	}
	if p.ServiceID != nil {
		next.ServiceID = *p.ServiceID
	}
	if p.Start != nil {
		next.StartAt = *p.Start
	}
	if p.End != nil {
		next.EndAt = *p.End
	}
	if p.Status != nil {
		if !ValidStatus(*p.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
		}
		next.Status = *p.Status
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if p.CalendarEventID != nil {
		next.CalendarEventID = p.CalendarEventID
	}
	next.UpdatedBy = p.Actor

	window, err := NewTimeWindow(next.StartAt, next.EndAt)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithDoctorLock(ctx, next.DoctorID, func(lockCtx context.Context) error {
		excludeID := id
		conflict, err := s.repo.HasConflict(lockCtx, next.DoctorID, window, &excludeID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrDoctorDoubleBooked
		}

		if _, err := s.repo.UpdateAppointment(lockCtx, &next); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	det, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}
	s.notifyUpdated(ctx, det)

	return det, nil
}

// UpdateStatus overwrites the status unconditionally. There is no transition
// table: any status may be set from any other. A status-only change cannot
// introduce a time overlap, so no conflict check runs.
func (s *Scheduler) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus, actor *uuid.UUID) (*AppointmentDetail, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if _, err := s.repo.SetAppointmentStatus(ctx, id, status, actor); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, named(ErrAppointmentNotFound, id)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	det, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}
	s.notifyUpdated(ctx, det)

	return det, nil
}

// Remove deletes an appointment permanently.
func (s *Scheduler) Remove(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return named(ErrAppointmentNotFound, id)
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return named(ErrAppointmentNotFound, id)
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	if existing.CalendarEventID != nil {
		s.notifyDeleted(ctx, *existing.CalendarEventID)
	}
	return nil
}

// Get retrieves a fully hydrated appointment by id.
func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	det, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, named(ErrAppointmentNotFound, id)
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return det, nil
}

// List queries appointments with the given filters, ordered by start time
// descending. Date filters are normalized to whole calendar days: DateFrom is
// inclusive from midnight, DateTo inclusive through the end of that day.
func (s *Scheduler) List(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	if f.Status != nil && !ValidStatus(*f.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *f.Status)
	}
	if f.DateFrom != nil {
		from := startOfDay(*f.DateFrom)
		f.DateFrom = &from
	}
	if f.DateTo != nil {
		to := startOfDay(*f.DateTo).AddDate(0, 0, 1)
		f.DateTo = &to
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)

	result, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return result, nil
}

// MarkOverdueNoShows flags appointments still awaiting action whose end time
// passed more than grace ago. Called periodically by the no-show worker.
// The status update is compare-and-set, so a staff member completing or
// cancelling the appointment concurrently always wins.
func (s *Scheduler) MarkOverdueNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	overdue, err := s.repo.FindOverdueUnconfirmed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	flagged := 0
	for _, appt := range overdue {
		_, err := s.repo.CasAppointmentStatus(ctx, appt.ID, appt.Status, StatusNoShow)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("failed to flag no-show")
			continue
		}
		flagged++
	}

	return flagged, nil
}

// Calendar sink notifications. All best effort: failures are logged, never
// surfaced to the caller, and run on a context detached from the request.

func (s *Scheduler) notifyCreated(ctx context.Context, det *AppointmentDetail) {
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	eventID, err := s.sink.OnCreated(sinkCtx, det)
	if err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", det.ID).Msg("calendar sink create failed")
		return
	}
	if eventID == "" {
		return
	}

	if err := s.repo.SetCalendarEventID(sinkCtx, det.ID, &eventID); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", det.ID).Msg("failed to store calendar event id")
		return
	}
	det.CalendarEventID = &eventID
}

func (s *Scheduler) notifyUpdated(ctx context.Context, det *AppointmentDetail) {
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := s.sink.OnUpdated(sinkCtx, det); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", det.ID).Msg("calendar sink update failed")
	}
}

func (s *Scheduler) notifyDeleted(ctx context.Context, eventID string) {
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := s.sink.OnDeleted(sinkCtx, eventID); err != nil {
		s.log.Warn().Err(err).Str("calendar_event_id", eventID).Msg("calendar sink delete failed")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
