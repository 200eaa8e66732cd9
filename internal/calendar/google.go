// Package calendar pushes appointment mutations to an external Google
// Calendar. The scheduler treats it as a best-effort notification sink: a
// failed sync is logged and leaves the appointment's calendar_event_id unset,
// it never fails the scheduling operation.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CalendarID   string // "primary" when unset
	TokenJSON    string // serialized oauth2.Token for the clinic account
}

type googleSink struct {
	svc        *calendarapi.Service
	calendarID string
	log        zerolog.Logger
}

// NewGoogleSink builds a sink backed by the clinic's Google Calendar. The
// OAuth token is obtained out of band (staff consent flow) and supplied as
// serialized JSON.
func NewGoogleSink(ctx context.Context, cfg GoogleConfig, log zerolog.Logger) (clinic.CalendarSink, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(cfg.TokenJSON), &token); err != nil {
		return nil, fmt.Errorf("parse google token: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{calendarapi.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}

	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &googleSink{svc: svc, calendarID: calendarID, log: log}, nil
}

func (g *googleSink) OnCreated(ctx context.Context, det *clinic.AppointmentDetail) (string, error) {
	ev, err := g.svc.Events.Insert(g.calendarID, g.eventFor(det)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	g.log.Debug().Str("event_id", ev.Id).Stringer("appointment_id", det.ID).Msg("calendar event created")
	return ev.Id, nil
}

func (g *googleSink) OnUpdated(ctx context.Context, det *clinic.AppointmentDetail) error {
	if det.CalendarEventID == nil {
		// Never synced; nothing to update.
		return nil
	}
	_, err := g.svc.Events.Patch(g.calendarID, *det.CalendarEventID, g.eventFor(det)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("patch calendar event: %w", err)
	}
	return nil
}

func (g *googleSink) OnDeleted(ctx context.Context, eventID string) error {
	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func (g *googleSink) eventFor(det *clinic.AppointmentDetail) *calendarapi.Event {
	summary := fmt.Sprintf("%s: %s", det.Service.Name, det.Patient.FullName)
	description := fmt.Sprintf("Doctor: %s\nPhone: %s\nStatus: %s",
		det.Doctor.Name, det.Patient.Phone, det.Status)
	if det.Notes != "" {
		description += "\nNotes: " + det.Notes
	}

	return &calendarapi.Event{
		Summary:     summary,
		Description: description,
		Start:       &calendarapi.EventDateTime{DateTime: det.StartAt.Format(time.RFC3339)},
		End:         &calendarapi.EventDateTime{DateTime: det.EndAt.Format(time.RFC3339)},
	}
}
