package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Directory operations: thin orchestration over the repository for the
// patient/doctor/service records that appointments reference. Validation
// lives here so the handlers stay dumb.

func (s *Scheduler) RegisterPatient(ctx context.Context, info PatientInfo) (*Patient, error) {
	if info.FullName == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidPatientInfo)
	}
	if info.Phone == "" {
		return nil, fmt.Errorf("%w: patient phone is required", ErrInvalidPatientInfo)
	}

	patient, err := s.repo.CreatePatient(ctx, &Patient{
		FullName:   info.FullName,
		Phone:      info.Phone,
		Email:      info.Email,
		IDLastFour: info.IDLastFour,
	})
	if err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	return patient, nil
}

func (s *Scheduler) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	patient, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, named(ErrPatientNotFound, id)
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return patient, nil
}

func (s *Scheduler) ListPatients(ctx context.Context, search string, limit, offset int) ([]Patient, error) {
	limit, offset = clampPage(limit, offset)
	patients, err := s.repo.ListPatients(ctx, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Scheduler) AddDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("%w: doctor name", ErrMissingField)
	}
	for _, svcID := range d.ServiceIDs {
		if _, err := s.repo.GetServiceByID(ctx, svcID); err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return nil, named(ErrServiceNotFound, svcID)
			}
			return nil, fmt.Errorf("load service: %w", err)
		}
	}

	doctor, err := s.repo.CreateDoctor(ctx, &d)
	if err != nil {
		return nil, fmt.Errorf("add doctor: %w", err)
	}
	return doctor, nil
}

func (s *Scheduler) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, named(ErrDoctorNotFound, id)
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return doctor, nil
}

func (s *Scheduler) ListDoctors(ctx context.Context, activeOnly bool) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Scheduler) DoctorWorkingHours(ctx context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error) {
	if _, err := s.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	rules, err := s.repo.GetWorkingHours(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get working hours: %w", err)
	}
	return rules, nil
}

func (s *Scheduler) SetDoctorWorkingHours(ctx context.Context, doctorID uuid.UUID, rules []WorkingHoursRule) error {
	if _, err := s.GetDoctor(ctx, doctorID); err != nil {
		return err
	}
	for _, rule := range rules {
		if rule.Weekday < 0 || rule.Weekday > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidTimeRange, rule.Weekday)
		}
		start, err := parseHHMM(rule.StartTime)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
		end, err := parseHHMM(rule.EndTime)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
		if !end.After(start) {
			return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidTimeRange, rule.EndTime, rule.StartTime)
		}
	}

	if err := s.repo.ReplaceWorkingHours(ctx, doctorID, rules); err != nil {
		return fmt.Errorf("set working hours: %w", err)
	}
	return nil
}

func (s *Scheduler) AddService(ctx context.Context, svc Service) (*Service, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if svc.DurationMinutes < settings.MinServiceDurationMinutes ||
		svc.DurationMinutes > settings.MaxServiceDurationMinutes {
		return nil, fmt.Errorf("%w: %d minutes (allowed %d-%d)",
			ErrInvalidDuration, svc.DurationMinutes,
			settings.MinServiceDurationMinutes, settings.MaxServiceDurationMinutes)
	}

	created, err := s.repo.CreateService(ctx, &svc)
	if err != nil {
		return nil, fmt.Errorf("add service: %w", err)
	}
	return created, nil
}

func (s *Scheduler) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	svc, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, named(ErrServiceNotFound, id)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *Scheduler) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	services, err := s.repo.ListServices(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

func (s *Scheduler) Settings(ctx context.Context) (Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

func (s *Scheduler) UpdateSettings(ctx context.Context, settings Settings) (Settings, error) {
	if settings.MinServiceDurationMinutes <= 0 ||
		settings.MaxServiceDurationMinutes < settings.MinServiceDurationMinutes {
		return Settings{}, fmt.Errorf("%w: duration bounds %d-%d", ErrInvalidDuration,
			settings.MinServiceDurationMinutes, settings.MaxServiceDurationMinutes)
	}
	if settings.SlotGranularityMinutes <= 0 {
		return Settings{}, fmt.Errorf("%w: slot granularity %d", ErrInvalidDuration,
			settings.SlotGranularityMinutes)
	}

	saved, err := s.repo.PutSettings(ctx, settings)
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return saved, nil
}
