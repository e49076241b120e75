package persistence

import (
	"context"
	"time"
)

// GroupTx is the write surface available inside a group transaction.
// The coordinator performs every group mutation through one of these,
// so calendar failures can unwind all writes with a single rollback.
type GroupTx interface {
	InsertGroup(ctx context.Context, group Group) error
	UpdateGroupCalendarRefs(ctx context.Context, groupID, meetLink, meetID string) error
	UpdateGroupFields(ctx context.Context, groupID string, update GroupUpdate) error
	SoftDeleteGroup(ctx context.Context, groupID string, at time.Time) error
	InsertInstances(ctx context.Context, instances []Instance) error
	DeleteInstancesForGroup(ctx context.Context, groupID string) error
	InsertMembership(ctx context.Context, membership Membership) error
	DeactivateMemberships(ctx context.Context, groupID string) error
}

// GroupRepository stores groups, their materialized instances and
// memberships.
type GroupRepository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx GroupTx) error) error
	GetGroup(ctx context.Context, id string) (Group, error)
	GetMembership(ctx context.Context, groupID, userID string) (Membership, error)
	ListInstancesForGroup(ctx context.Context, groupID string) ([]Instance, error)
	ListUpcomingMeetings(ctx context.Context, userID string, after time.Time, limit int) ([]UpcomingMeeting, error)
	ListActiveRecurringGroups(ctx context.Context) ([]Group, error)
	UpdateNextOccurrence(ctx context.Context, groupID string, next time.Time) error
}

// UserRepository exposes account lookups needed for creators,
// memberships and invitees.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// CredentialRepository stores calendar provider tokens per user.
type CredentialRepository interface {
	GetCredential(ctx context.Context, userID string) (CalendarCredential, error)
	UpsertCredential(ctx context.Context, credential CalendarCredential) error
	DeleteCredential(ctx context.Context, userID string) error
}
