package clinic

import (
	"context"
	"errors"
	"testing"
)

func workday(f *fixture, t *testing.T, startHHMM, endHHMM string) {
	t.Helper()
	rule := WorkingHoursRule{
		Weekday:   int(at(0, 0).Weekday()),
		StartTime: startHHMM,
		EndTime:   endHHMM,
	}
	if err := f.repo.ReplaceWorkingHours(context.Background(), f.doctor.ID, []WorkingHoursRule{rule}); err != nil {
		t.Fatalf("set working hours: %v", err)
	}
}

func TestAvailableSlotsExpandsWorkingHours(t *testing.T) {
	f := newFixture(t)
	workday(f, t, "09:00", "10:00")

	slots, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}

	// 30 minute service on a 15 minute grid inside 09:00-10:00.
	want := []Slot{
		{at(9, 0), at(9, 30)},
		{at(9, 15), at(9, 45)},
		{at(9, 30), at(10, 0)},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d: %v", len(slots), len(want), slots)
	}
	for i := range want {
		if !slots[i].Start.Equal(want[i].Start) || !slots[i].End.Equal(want[i].End) {
			t.Fatalf("slot %d = %v-%v, want %v-%v", i, slots[i].Start, slots[i].End, want[i].Start, want[i].End)
		}
	}
}

func TestAvailableSlotsSkipsBookedWindows(t *testing.T) {
	f := newFixture(t)
	workday(f, t, "09:00", "10:00")
	f.book(t, at(9, 15), f.cleaning) // occupies 09:15-09:45

	slots, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}

	for _, s := range slots {
		booked := TimeWindow{at(9, 15), at(9, 45)}
		if (TimeWindow{s.Start, s.End}).Overlaps(booked) {
			t.Fatalf("slot %v-%v overlaps a booking", s.Start, s.End)
		}
	}
	if len(slots) != 0 {
		// Every candidate in a one-hour window overlaps a centered booking.
		t.Fatalf("expected no free slots, got %v", slots)
	}
}

func TestAvailableSlotsCancelledBookingFreesWindow(t *testing.T) {
	f := newFixture(t)
	workday(f, t, "09:00", "10:00")
	det := f.book(t, at(9, 0), f.cleaning)
	if _, err := f.sched.UpdateStatus(context.Background(), det.ID, StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("cancelled booking must not block slots, got %v", slots)
	}
}

func TestAvailableSlotsInactiveDoctor(t *testing.T) {
	f := newFixture(t)
	workday(f, t, "09:00", "17:00")
	f.repo.doctors[f.doctor.ID].Status = DoctorInactive

	slots, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive doctor must offer no slots, got %v", slots)
	}
}

func TestAvailableSlotsNoWorkingHours(t *testing.T) {
	f := newFixture(t)

	slots, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("no working hours means no slots, got %v", slots)
	}
}

func TestAvailableSlotsInvertedRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.sched.AvailableSlots(context.Background(), f.doctor.ID, f.cleaning.ID, at(10, 0), at(9, 0))
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestParseHHMM(t *testing.T) {
	if _, err := parseHHMM("09:30"); err != nil {
		t.Fatalf("parse 09:30: %v", err)
	}
	for _, bad := range []string{"9am", "25:00", ""} {
		if _, err := parseHHMM(bad); err == nil {
			t.Fatalf("parse %q should fail", bad)
		}
	}
}
