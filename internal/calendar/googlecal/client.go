// Package googlecal implements the calendar provider against the Google
// Calendar API, attaching a Meet conference to every created event.
package googlecal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"golang.org/x/oauth2"

	"github.com/example/fellowship-api/internal/calendar"
)

// TokenSources resolves a per-user OAuth token source. Implemented by
// the credentials store.
type TokenSources interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
}

// Client talks to Google Calendar using each owner's stored tokens.
// Events are created on the owner's primary calendar.
type Client struct {
	tokens      TokenSources
	logger      *slog.Logger
	requestID   func() string
	newService  func(ctx context.Context, ts oauth2.TokenSource) (*gcal.Service, error)
}

// NewClient wires a Google Calendar client. requestID generates the
// conference create-request identifiers; it must produce unique values.
func NewClient(tokens TokenSources, requestID func() string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		tokens:    tokens,
		logger:    logger,
		requestID: requestID,
		newService: func(ctx context.Context, ts oauth2.TokenSource) (*gcal.Service, error) {
			return gcal.NewService(ctx, option.WithTokenSource(ts))
		},
	}
}

// CreateEvent creates the master event, requesting a Meet conference and
// attaching the recurrence rule when the event spec carries one.
func (c *Client) CreateEvent(ctx context.Context, ownerID string, spec calendar.EventSpec) (calendar.EventResult, error) {
	svc, err := c.serviceFor(ctx, ownerID)
	if err != nil {
		return calendar.EventResult{}, err
	}

	event := eventFromSpec(spec)
	event.ConferenceData = &gcal.ConferenceData{
		CreateRequest: &gcal.CreateConferenceRequest{
			RequestId:             c.requestID(),
			ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
		},
	}

	created, err := svc.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return calendar.EventResult{}, fmt.Errorf("googlecal: event insert failed: %w", err)
	}

	result := calendar.EventResult{
		EventID:  created.Id,
		MeetLink: created.HangoutLink,
		MeetID:   created.Id,
	}
	if created.ConferenceData != nil && created.ConferenceData.ConferenceId != "" {
		result.MeetID = created.ConferenceData.ConferenceId
	}
	return result, nil
}

// UpdateEvent patches an existing master event with the new spec.
func (c *Client) UpdateEvent(ctx context.Context, ownerID, eventID string, spec calendar.EventSpec) (calendar.EventResult, error) {
	svc, err := c.serviceFor(ctx, ownerID)
	if err != nil {
		return calendar.EventResult{}, err
	}

	updated, err := svc.Events.Patch("primary", eventID, eventFromSpec(spec)).
		Context(ctx).
		Do()
	if err != nil {
		return calendar.EventResult{}, fmt.Errorf("googlecal: event patch failed: %w", err)
	}

	return calendar.EventResult{EventID: updated.Id, MeetLink: updated.HangoutLink}, nil
}

// DeleteEvent removes a master event from the owner's calendar.
func (c *Client) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	svc, err := c.serviceFor(ctx, ownerID)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("googlecal: event delete failed: %w", err)
	}
	return nil
}

func (c *Client) serviceFor(ctx context.Context, ownerID string) (*gcal.Service, error) {
	ts, err := c.tokens.TokenSource(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	svc, err := c.newService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("googlecal: service init failed: %w", err)
	}
	return svc, nil
}

func eventFromSpec(spec calendar.EventSpec) *gcal.Event {
	timezone := spec.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	event := &gcal.Event{
		Summary:     spec.Title,
		Description: spec.Description,
		Start: &gcal.EventDateTime{
			DateTime: spec.Start.Format(time.RFC3339),
			TimeZone: timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: spec.End.Format(time.RFC3339),
			TimeZone: timezone,
		},
	}

	for _, email := range spec.AttendeeEmails {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	if spec.RecurrenceRule != "" {
		event.Recurrence = []string{"RRULE:" + spec.RecurrenceRule}
	}

	return event
}
