// Package calendar defines the external calendar collaborator consumed
// by the scheduling coordinator.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNoCredentials indicates the event owner has no usable calendar
// tokens; callers surface this as a permission problem, not a server
// fault.
var ErrNoCredentials = errors.New("calendar: owner has no calendar credentials")

// EventSpec describes a master event to create or update with the
// provider. RecurrenceRule, when set, must already be valid in the
// provider's recurrence grammar; no transformation happens downstream.
type EventSpec struct {
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	Timezone       string
	AttendeeEmails []string
	RecurrenceRule string
}

// EventResult carries the provider identifiers of a created or updated
// master event.
type EventResult struct {
	EventID  string
	MeetLink string
	MeetID   string
}

// Provider creates, updates and deletes master events on behalf of an
// owner identified by user ID.
type Provider interface {
	CreateEvent(ctx context.Context, ownerID string, spec EventSpec) (EventResult, error)
	UpdateEvent(ctx context.Context, ownerID, eventID string, spec EventSpec) (EventResult, error)
	DeleteEvent(ctx context.Context, ownerID, eventID string) error
}
