package application

import (
	"time"

	"github.com/example/fellowship-api/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
}

// RecurrenceInput captures caller provided recurrence parameters.
type RecurrenceInput struct {
	Pattern    string
	Interval   int
	DaysOfWeek []int
	EndDate    *time.Time
}

// GroupInput captures caller provided group fields for creation.
type GroupInput struct {
	Title            string
	Description      string
	ScheduledTime    *time.Time
	DurationMinutes  int
	Timezone         string
	IsRecurring      bool
	Recurrence       *RecurrenceInput
	RequiresApproval bool
	MaxParticipants  int
	InviteeEmails    []string
}

// GroupUpdateInput is a typed partial update; nil fields are untouched.
type GroupUpdateInput struct {
	Title            *string
	Description      *string
	ScheduledTime    *time.Time
	DurationMinutes  *int
	RequiresApproval *bool
	MaxParticipants  *int
}

// IsZero reports whether no field of the update is set.
func (u GroupUpdateInput) IsZero() bool {
	return u.Title == nil &&
		u.Description == nil &&
		u.ScheduledTime == nil &&
		u.DurationMinutes == nil &&
		u.RequiresApproval == nil &&
		u.MaxParticipants == nil
}

// Group is the hydrated service view of a meeting group.
type Group struct {
	ID                    string
	Title                 string
	Description           string
	Theme                 string
	CreatorID             string
	ScheduledTime         *time.Time
	DurationMinutes       int
	IsRecurring           bool
	Recurrence            *RecurrenceInput
	RecurrenceRule        string
	RecurrenceDescription string
	NextOccurrence        *time.Time
	Timezone              string
	MeetLink              string
	MeetID                string
	RequiresApproval      bool
	MaxParticipants       int
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// CalendarSynced reports whether the calendar provider reflects the
	// group's current schedule. Tolerated calendar failures clear it.
	CalendarSynced bool

	// Instances carries the materialized occurrences created alongside a
	// recurring group.
	Instances []recurrence.Instance
}

// CreateGroupParams wraps the data required to create a group.
type CreateGroupParams struct {
	Principal Principal
	Input     GroupInput
}

// UpdateGroupParams wraps the data required to update a group.
type UpdateGroupParams struct {
	Principal Principal
	GroupID   string
	Input     GroupUpdateInput
}

// UpcomingMeeting is one row of the upcoming-meetings listing.
type UpcomingMeeting struct {
	GroupID     string
	Title       string
	Theme       string
	MeetingDate time.Time
	EndTime     time.Time
	MeetLink    string
}

// UserInput captures caller provided account attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
