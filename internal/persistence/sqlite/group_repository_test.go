package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/fellowship-api/internal/persistence"
)

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := NewConnectionPool(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("failed to close pool: %v", err)
		}
	})

	if err := pool.Bootstrap(context.Background()); err != nil {
		t.Fatalf("failed to bootstrap schema: %v", err)
	}
	return pool
}

func insertTestUser(t *testing.T, pool *ConnectionPool, id, email string) {
	t.Helper()

	repo := NewUserRepository(pool)
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
		CreatedAt:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to insert user %s: %v", id, err)
	}
}

func testGroup(id, creatorID string) persistence.Group {
	scheduled := time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	pattern := "weekly"
	interval := 2
	rule := "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE"
	next := scheduled

	return persistence.Group{
		ID:              id,
		Title:           "Evening Fellowship",
		Description:     "Weekly gathering",
		Theme:           "olive",
		CreatorID:       creatorID,
		ScheduledTime:   &scheduled,
		DurationMinutes: 60,
		IsRecurring:     true,
		Pattern:         &pattern,
		Interval:        &interval,
		DaysOfWeek:      []int{1, 3},
		RecurrenceEnd:   &end,
		RecurrenceRule:  &rule,
		NextOccurrence:  &next,
		Timezone:        "UTC",
		MaxParticipants: 12,
		IsActive:        true,
		CreatedAt:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func insertTestGroup(t *testing.T, repo *GroupRepository, group persistence.Group) {
	t.Helper()

	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.InsertGroup(ctx, group)
	})
	if err != nil {
		t.Fatalf("failed to insert group %s: %v", group.ID, err)
	}
}

func TestGroupRepository_InsertAndGetRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)

	group := testGroup("group-1", "user-1")
	insertTestGroup(t, repo, group)

	stored, err := repo.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}

	if stored.Title != group.Title || stored.Theme != group.Theme {
		t.Errorf("unexpected stored group: %+v", stored)
	}
	if stored.ScheduledTime == nil || !stored.ScheduledTime.Equal(*group.ScheduledTime) {
		t.Errorf("expected scheduled time %s, got %v", group.ScheduledTime, stored.ScheduledTime)
	}
	if len(stored.DaysOfWeek) != 2 || stored.DaysOfWeek[0] != 1 || stored.DaysOfWeek[1] != 3 {
		t.Errorf("expected days [1 3], got %v", stored.DaysOfWeek)
	}
	if stored.RecurrenceRule == nil || *stored.RecurrenceRule != *group.RecurrenceRule {
		t.Errorf("expected recurrence rule preserved, got %v", stored.RecurrenceRule)
	}
	if !stored.IsActive {
		t.Error("expected group active")
	}
}

func TestGroupRepository_GetGroup_NotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := NewGroupRepository(pool)

	if _, err := repo.GetGroup(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupRepository_DuplicateInsertMapsToErrDuplicate(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)

	group := testGroup("group-1", "user-1")
	insertTestGroup(t, repo, group)

	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.InsertGroup(ctx, group)
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGroupRepository_TransactionRollsBackOnError(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)

	failure := errors.New("calendar rejected the event")
	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		if err := tx.InsertGroup(ctx, testGroup("group-1", "user-1")); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}

	if _, err := repo.GetGroup(context.Background(), "group-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rolled back group to be absent, got %v", err)
	}
}

func TestGroupRepository_UpdateGroupFields_PartialUpdate(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)
	insertTestGroup(t, repo, testGroup("group-1", "user-1"))

	title := "Renamed Fellowship"
	duration := 90
	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.UpdateGroupFields(ctx, "group-1", persistence.GroupUpdate{
			Title:           &title,
			DurationMinutes: &duration,
		})
	})
	if err != nil {
		t.Fatalf("UpdateGroupFields failed: %v", err)
	}

	stored, err := repo.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.Title != title {
		t.Errorf("expected title %q, got %q", title, stored.Title)
	}
	if stored.DurationMinutes != duration {
		t.Errorf("expected duration %d, got %d", duration, stored.DurationMinutes)
	}
	if stored.Description != "Weekly gathering" {
		t.Errorf("expected untouched description, got %q", stored.Description)
	}
}

func TestGroupRepository_SoftDeleteAndMemberships(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)
	insertTestGroup(t, repo, testGroup("group-1", "user-1"))

	joined := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.InsertMembership(ctx, persistence.Membership{
			ID: "m-1", GroupID: "group-1", UserID: "user-1",
			Role: persistence.RoleAdmin, IsActive: true, JoinedAt: joined,
		})
	})
	if err != nil {
		t.Fatalf("InsertMembership failed: %v", err)
	}

	membership, err := repo.GetMembership(context.Background(), "group-1", "user-1")
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if membership.Role != persistence.RoleAdmin || !membership.IsActive {
		t.Errorf("unexpected membership: %+v", membership)
	}

	deletedAt := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	err = repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		if err := tx.SoftDeleteGroup(ctx, "group-1", deletedAt); err != nil {
			return err
		}
		return tx.DeactivateMemberships(ctx, "group-1")
	})
	if err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	stored, err := repo.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.IsActive {
		t.Error("expected group inactive after soft delete")
	}

	membership, err = repo.GetMembership(context.Background(), "group-1", "user-1")
	if err != nil {
		t.Fatalf("GetMembership failed: %v", err)
	}
	if membership.IsActive {
		t.Error("expected membership deactivated")
	}
}

func TestGroupRepository_InstancesLifecycle(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)
	insertTestGroup(t, repo, testGroup("group-1", "user-1"))

	created := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	instances := []persistence.Instance{
		{ID: "i-2", GroupID: "group-1", MeetingDate: time.Date(2026, time.January, 7, 19, 0, 0, 0, time.UTC), CreatedAt: created},
		{ID: "i-1", GroupID: "group-1", MeetingDate: time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC), CreatedAt: created},
	}
	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.InsertInstances(ctx, instances)
	})
	if err != nil {
		t.Fatalf("InsertInstances failed: %v", err)
	}

	stored, err := repo.ListInstancesForGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("ListInstancesForGroup failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(stored))
	}
	// Listed in meeting date order regardless of insertion order.
	if !stored[0].MeetingDate.Before(stored[1].MeetingDate) {
		t.Errorf("expected instances ordered by date, got %v then %v", stored[0].MeetingDate, stored[1].MeetingDate)
	}

	err = repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		return tx.DeleteInstancesForGroup(ctx, "group-1")
	})
	if err != nil {
		t.Fatalf("DeleteInstancesForGroup failed: %v", err)
	}
	stored, err = repo.ListInstancesForGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("ListInstancesForGroup failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected no instances after delete, got %d", len(stored))
	}
}

func TestGroupRepository_ListUpcomingMeetings(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	insertTestUser(t, pool, "user-2", "outsider@example.com")
	repo := NewGroupRepository(pool)
	insertTestGroup(t, repo, testGroup("group-1", "user-1"))

	created := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	err := repo.InTransaction(context.Background(), func(ctx context.Context, tx persistence.GroupTx) error {
		if err := tx.InsertMembership(ctx, persistence.Membership{
			ID: "m-1", GroupID: "group-1", UserID: "user-1",
			Role: persistence.RoleAdmin, IsActive: true, JoinedAt: created,
		}); err != nil {
			return err
		}
		return tx.InsertInstances(ctx, []persistence.Instance{
			{ID: "i-1", GroupID: "group-1", MeetingDate: time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC), CreatedAt: created},
			{ID: "i-2", GroupID: "group-1", MeetingDate: time.Date(2026, time.January, 12, 19, 0, 0, 0, time.UTC), CreatedAt: created},
		})
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	after := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	meetings, err := repo.ListUpcomingMeetings(context.Background(), "user-1", after, 10)
	if err != nil {
		t.Fatalf("ListUpcomingMeetings failed: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("expected 1 upcoming meeting, got %d", len(meetings))
	}
	if meetings[0].GroupID != "group-1" || meetings[0].Title != "Evening Fellowship" {
		t.Errorf("unexpected meeting row: %+v", meetings[0])
	}

	// Non-members see nothing.
	meetings, err = repo.ListUpcomingMeetings(context.Background(), "user-2", after, 10)
	if err != nil {
		t.Fatalf("ListUpcomingMeetings failed: %v", err)
	}
	if len(meetings) != 0 {
		t.Fatalf("expected no meetings for non-member, got %d", len(meetings))
	}
}

func TestGroupRepository_ListActiveRecurringAndAdvance(t *testing.T) {
	pool := newTestPool(t)
	insertTestUser(t, pool, "user-1", "leader@example.com")
	repo := NewGroupRepository(pool)
	insertTestGroup(t, repo, testGroup("group-1", "user-1"))

	groups, err := repo.ListActiveRecurringGroups(context.Background())
	if err != nil {
		t.Fatalf("ListActiveRecurringGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != "group-1" {
		t.Fatalf("unexpected recurring groups: %+v", groups)
	}

	next := time.Date(2026, time.January, 19, 19, 0, 0, 0, time.UTC)
	if err := repo.UpdateNextOccurrence(context.Background(), "group-1", next); err != nil {
		t.Fatalf("UpdateNextOccurrence failed: %v", err)
	}

	stored, err := repo.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.NextOccurrence == nil || !stored.NextOccurrence.Equal(next) {
		t.Errorf("expected next occurrence %s, got %v", next, stored.NextOccurrence)
	}
}
