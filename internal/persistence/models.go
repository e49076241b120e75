package persistence

import "time"

// User represents a member account in the fellowship domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Group represents a study/meeting group row. All stored instants are
// UTC; Timezone records the creator's IANA zone for display only.
type Group struct {
	ID               string
	Title            string
	Description      string
	Theme            string
	CreatorID        string
	ScheduledTime    *time.Time
	DurationMinutes  int
	IsRecurring      bool
	Pattern          *string
	Interval         *int
	DaysOfWeek       []int
	RecurrenceEnd    *time.Time
	RecurrenceRule   *string
	NextOccurrence   *time.Time
	Timezone         string
	MeetLink         *string
	MeetID           *string
	RequiresApproval bool
	MaxParticipants  int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Instance is one materialized occurrence of a recurring group. The end
// time is derived from the owning group's duration and is not stored.
type Instance struct {
	ID          string
	GroupID     string
	MeetingDate time.Time
	CreatedAt   time.Time
}

// Membership links a user to a group with a role.
type Membership struct {
	ID       string
	GroupID  string
	UserID   string
	Role     string
	IsActive bool
	JoinedAt time.Time
}

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// CalendarCredential stores a user's calendar provider tokens.
type CalendarCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	UpdatedAt    time.Time
}

// GroupUpdate is a typed partial update for a group row. Nil fields are
// left untouched; the sqlite layer compiles the set fields into a
// parameterized UPDATE statement.
type GroupUpdate struct {
	Title            *string
	Description      *string
	ScheduledTime    *time.Time
	DurationMinutes  *int
	RequiresApproval *bool
	MaxParticipants  *int
	NextOccurrence   *time.Time
	MeetLink         *string
	MeetID           *string
}

// IsZero reports whether no field of the update is set.
func (u GroupUpdate) IsZero() bool {
	return u.Title == nil &&
		u.Description == nil &&
		u.ScheduledTime == nil &&
		u.DurationMinutes == nil &&
		u.RequiresApproval == nil &&
		u.MaxParticipants == nil &&
		u.NextOccurrence == nil &&
		u.MeetLink == nil &&
		u.MeetID == nil
}

// UpcomingMeeting is a read model joining an instance with its group for
// the upcoming-meetings listing.
type UpcomingMeeting struct {
	GroupID         string
	Title           string
	Theme           string
	MeetingDate     time.Time
	DurationMinutes int
	MeetLink        *string
}
