package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the repository cares about.
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Phone,
		&p.Email,
		&p.IDLastFour,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.Status,
		&d.ServiceIDs,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(
		&s.ID,
		&s.Category,
		&s.Name,
		&s.DurationMinutes,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceID,
		&a.StartAt,
		&a.EndAt,
		&a.Status,
		&a.Notes,
		&a.CalendarEventID,
		&a.CreatedBy,
		&a.UpdatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var det AppointmentDetail
	var p Patient
	var d Doctor
	var s Service

	err := row.Scan(
		&det.ID, &det.PatientID, &det.DoctorID, &det.ServiceID,
		&det.StartAt, &det.EndAt, &det.Status, &det.Notes,
		&det.CalendarEventID, &det.CreatedBy, &det.UpdatedBy,
		&det.CreatedAt, &det.UpdatedAt,
		&p.ID, &p.FullName, &p.Phone, &p.Email, &p.IDLastFour, &p.CreatedAt, &p.UpdatedAt,
		&d.ID, &d.Name, &d.Specialization, &d.Status, &d.ServiceIDs, &d.CreatedAt, &d.UpdatedAt,
		&s.ID, &s.Category, &s.Name, &s.DurationMinutes, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	det.Patient = &p
	det.Doctor = &d
	det.Service = &s
	return &det, nil
}

const appointmentCols = `id, patient_id, doctor_id, service_id, start_at, end_at, status, notes,
		calendar_event_id, created_by, updated_by, created_at, updated_at`

const appointmentDetailQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.service_id, a.start_at, a.end_at, a.status, a.notes,
	       a.calendar_event_id, a.created_by, a.updated_by, a.created_at, a.updated_at,
	       p.id, p.full_name, p.phone, p.email, p.id_last_four, p.created_at, p.updated_at,
	       d.id, d.name, d.specialization, d.status, d.service_ids, d.created_at, d.updated_at,
	       s.id, s.category, s.name, s.duration_minutes, s.active, s.created_at, s.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN services s ON s.id = a.service_id`

// isExclusionViolation reports whether err is the no-overlap constraint firing
// at commit, i.e. a racing writer won the window first.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, phone, email, id_last_four, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, phone, email, id_last_four, created_at, updated_at
		FROM patients
		WHERE phone = $1
	`, phone)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, full_name, phone, email, id_last_four, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, full_name, phone, email, id_last_four, created_at, updated_at
	`, id, p.FullName, p.Phone, p.Email, p.IDLastFour)

	created, err := scanPatient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrPhoneInUse, p.Phone)
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) ListPatients(ctx context.Context, search string, limit, offset int) ([]Patient, error) {
	q := `
		SELECT id, full_name, phone, email, id_last_four, created_at, updated_at
		FROM patients`
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		q += `
		WHERE full_name ILIKE $1 OR phone ILIKE $1`
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(`
		ORDER BY full_name
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// Doctors

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, status, service_ids, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := d.Status
	if status == "" {
		status = DoctorActive
	}
	serviceIDs := d.ServiceIDs
	if serviceIDs == nil {
		serviceIDs = []uuid.UUID{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, status, service_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, specialization, status, service_ids, created_at, updated_at
	`, id, d.Name, d.Specialization, status, serviceIDs)

	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, activeOnly bool) ([]Doctor, error) {
	q := `
		SELECT id, name, specialization, status, service_ids, created_at, updated_at
		FROM doctors`
	if activeOnly {
		q += `
		WHERE status = 'active'`
	}
	q += `
		ORDER BY name`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetWorkingHours(ctx context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_time, end_time
		FROM doctor_working_hours
		WHERE doctor_id = $1
		ORDER BY weekday, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkingHoursRule
	for rows.Next() {
		var w WorkingHoursRule
		if err := rows.Scan(&w.Weekday, &w.StartTime, &w.EndTime); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *PgRepository) ReplaceWorkingHours(ctx context.Context, doctorID uuid.UUID, rules []WorkingHoursRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM doctor_working_hours WHERE doctor_id = $1`, doctorID); err != nil {
		return err
	}
	for _, rule := range rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_working_hours (doctor_id, weekday, start_time, end_time)
			VALUES ($1, $2, $3, $4)
		`, doctorID, rule.Weekday, rule.StartTime, rule.EndTime)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Services

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, category, name, duration_minutes, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) CreateService(ctx context.Context, s *Service) (*Service, error) {
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, category, name, duration_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, category, name, duration_minutes, active, created_at, updated_at
	`, id, s.Category, s.Name, s.DurationMinutes, s.Active)

	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	q := `
		SELECT id, category, name, duration_minutes, active, created_at, updated_at
		FROM services`
	if activeOnly {
		q += `
		WHERE active`
	}
	q += `
		ORDER BY category, name`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Settings

func (r *PgRepository) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT min_service_duration_minutes, max_service_duration_minutes,
		       slot_granularity_minutes, updated_at
		FROM clinic_settings
		WHERE id = 1
	`).Scan(&s.MinServiceDurationMinutes, &s.MaxServiceDurationMinutes,
		&s.SlotGranularityMinutes, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	return s, nil
}

func (r *PgRepository) PutSettings(ctx context.Context, s Settings) (Settings, error) {
	var out Settings
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clinic_settings (id, min_service_duration_minutes, max_service_duration_minutes,
		                             slot_granularity_minutes, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET min_service_duration_minutes = EXCLUDED.min_service_duration_minutes,
		    max_service_duration_minutes = EXCLUDED.max_service_duration_minutes,
		    slot_granularity_minutes = EXCLUDED.slot_granularity_minutes,
		    updated_at = now()
		RETURNING min_service_duration_minutes, max_service_duration_minutes,
		          slot_granularity_minutes, updated_at
	`, s.MinServiceDurationMinutes, s.MaxServiceDurationMinutes, s.SlotGranularityMinutes).
		Scan(&out.MinServiceDurationMinutes, &out.MaxServiceDurationMinutes,
			&out.SlotGranularityMinutes, &out.UpdatedAt)
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Appointments

func (r *PgRepository) HasConflict(ctx context.Context, doctorID uuid.UUID, w TimeWindow, excludeID *uuid.UUID) (bool, error) {
	var conflict bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND status <> 'cancelled'
			  AND start_at < $3
			  AND end_at > $2
			  AND ($4::uuid IS NULL OR id <> $4)
		)
	`, doctorID, w.Start, w.End, excludeID).Scan(&conflict)
	if err != nil {
		return false, fmt.Errorf("conflict check: %w", err)
	}
	return conflict, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_id, start_at, end_at,
		                          status, notes, calendar_event_id, created_by, updated_by,
		                          created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, now(), now())
		RETURNING `+appointmentCols+`
	`, id, a.PatientID, a.DoctorID, a.ServiceID, a.StartAt, a.EndAt,
		a.Status, a.Notes, a.CalendarEventID, a.CreatedBy)

	created, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrDoctorDoubleBooked
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, appointmentDetailQuery+`
	WHERE a.id = $1`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    doctor_id = $3,
		    service_id = $4,
		    start_at = $5,
		    end_at = $6,
		    status = $7,
		    notes = $8,
		    calendar_event_id = $9,
		    updated_by = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentCols+`
	`, a.ID, a.PatientID, a.DoctorID, a.ServiceID, a.StartAt, a.EndAt,
		a.Status, a.Notes, a.CalendarEventID, a.UpdatedBy)

	updated, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrDoctorDoubleBooked
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) SetAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_by = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentCols+`
	`, id, to, actor)
	return scanAppointment(row)
}

func (r *PgRepository) CasAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentCols+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET calendar_event_id = $2 WHERE id = $1
	`, id, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	var conds []string
	var args []any

	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.ServiceID != nil {
		add("a.service_id = $%d", *f.ServiceID)
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.Status != nil {
		add("a.status = $%d", *f.Status)
	}
	if f.DateFrom != nil {
		add("a.start_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("a.start_at < $%d", *f.DateTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(p.full_name ILIKE $%d OR p.phone ILIKE $%d OR a.id::text ILIKE $%d)", n, n, n))
	}

	q := appointmentDetailQuery
	if len(conds) > 0 {
		q += `
	WHERE ` + strings.Join(conds, `
	  AND `)
	}

	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(`
	ORDER BY a.start_at DESC
	LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		det, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status <> 'cancelled'
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindOverdueUnconfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE status IN ('pending_confirmation', 'booked')
		  AND end_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
