package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is a bookable candidate window offered to callers. Advisory only:
// booking still goes through the conflict checker.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailableSlots expands the doctor's weekly working-hours template between
// from and to into candidate slots of the service's duration, stepped by the
// clinic slot granularity, and removes candidates overlapping an existing
// non-cancelled appointment.
func (s *Scheduler) AvailableSlots(ctx context.Context, doctorID, serviceID uuid.UUID, from, to time.Time) ([]Slot, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: to %s is not after from %s",
			ErrInvalidTimeRange, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, named(ErrDoctorNotFound, doctorID)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Status != DoctorActive {
		return nil, nil
	}

	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, named(ErrServiceNotFound, serviceID)
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	rules, err := s.repo.GetWorkingHours(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	booked, err := s.repo.ListAppointmentsInRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load booked appointments: %w", err)
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	step := time.Duration(settings.SlotGranularityMinutes) * time.Minute

	var slots []Slot
	for day := startOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, rule := range rules {
			if int(day.Weekday()) != rule.Weekday {
				continue
			}
			ruleStart, err := parseHHMM(rule.StartTime)
			if err != nil {
				return nil, fmt.Errorf("working hours rule: %w", err)
			}
			ruleEnd, err := parseHHMM(rule.EndTime)
			if err != nil {
				return nil, fmt.Errorf("working hours rule: %w", err)
			}

			y, m, d := day.Date()
			opens := time.Date(y, m, d, ruleStart.Hour(), ruleStart.Minute(), 0, 0, day.Location())
			closes := time.Date(y, m, d, ruleEnd.Hour(), ruleEnd.Minute(), 0, 0, day.Location())

			for cur := opens; !cur.Add(duration).After(closes); cur = cur.Add(step) {
				candidate := TimeWindow{Start: cur, End: cur.Add(duration)}
				if candidate.Start.Before(from) || candidate.End.After(to) {
					continue
				}
				if anyOverlap(booked, candidate) {
					continue
				}
				slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
			}
		}
	}

	return slots, nil
}

func anyOverlap(appointments []Appointment, w TimeWindow) bool {
	for i := range appointments {
		if appointments[i].Window().Overlaps(w) {
			return true
		}
	}
	return false
}

// parseHHMM parses a clinic-local "HH:MM" clock value.
func parseHHMM(v string) (time.Time, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q", v)
	}
	return t, nil
}
