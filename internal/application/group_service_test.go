package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/fellowship-api/internal/calendar"
	"github.com/example/fellowship-api/internal/persistence"
)

type groupRepoState struct {
	groups      map[string]persistence.Group
	instances   map[string][]persistence.Instance
	memberships map[string]persistence.Membership
}

func newGroupRepoState() *groupRepoState {
	return &groupRepoState{
		groups:      map[string]persistence.Group{},
		instances:   map[string][]persistence.Instance{},
		memberships: map[string]persistence.Membership{},
	}
}

func (st *groupRepoState) clone() *groupRepoState {
	next := newGroupRepoState()
	for k, v := range st.groups {
		next.groups[k] = v
	}
	for k, v := range st.instances {
		rows := make([]persistence.Instance, len(v))
		copy(rows, v)
		next.instances[k] = rows
	}
	for k, v := range st.memberships {
		next.memberships[k] = v
	}
	return next
}

func membershipKey(groupID, userID string) string {
	return groupID + "/" + userID
}

// groupRepoStub commits transactional writes only when the function
// succeeds, mirroring real rollback behavior.
type groupRepoStub struct {
	state    *groupRepoState
	upcoming []persistence.UpcomingMeeting
}

func newGroupRepoStub() *groupRepoStub {
	return &groupRepoStub{state: newGroupRepoState()}
}

func (r *groupRepoStub) InTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.GroupTx) error) error {
	next := r.state.clone()
	if err := fn(ctx, &groupTxStub{state: next}); err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *groupRepoStub) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	group, ok := r.state.groups[id]
	if !ok {
		return persistence.Group{}, persistence.ErrNotFound
	}
	return group, nil
}

func (r *groupRepoStub) GetMembership(ctx context.Context, groupID, userID string) (persistence.Membership, error) {
	membership, ok := r.state.memberships[membershipKey(groupID, userID)]
	if !ok {
		return persistence.Membership{}, persistence.ErrNotFound
	}
	return membership, nil
}

func (r *groupRepoStub) ListInstancesForGroup(ctx context.Context, groupID string) ([]persistence.Instance, error) {
	return r.state.instances[groupID], nil
}

func (r *groupRepoStub) ListUpcomingMeetings(ctx context.Context, userID string, after time.Time, limit int) ([]persistence.UpcomingMeeting, error) {
	return r.upcoming, nil
}

type groupTxStub struct {
	state *groupRepoState
}

func (tx *groupTxStub) InsertGroup(ctx context.Context, group persistence.Group) error {
	if _, ok := tx.state.groups[group.ID]; ok {
		return persistence.ErrDuplicate
	}
	tx.state.groups[group.ID] = group
	return nil
}

func (tx *groupTxStub) UpdateGroupCalendarRefs(ctx context.Context, groupID, meetLink, meetID string) error {
	group, ok := tx.state.groups[groupID]
	if !ok {
		return persistence.ErrNotFound
	}
	group.MeetLink = &meetLink
	group.MeetID = &meetID
	tx.state.groups[groupID] = group
	return nil
}

func (tx *groupTxStub) UpdateGroupFields(ctx context.Context, groupID string, update persistence.GroupUpdate) error {
	group, ok := tx.state.groups[groupID]
	if !ok {
		return persistence.ErrNotFound
	}
	if update.Title != nil {
		group.Title = *update.Title
	}
	if update.Description != nil {
		group.Description = *update.Description
	}
	if update.ScheduledTime != nil {
		group.ScheduledTime = update.ScheduledTime
	}
	if update.DurationMinutes != nil {
		group.DurationMinutes = *update.DurationMinutes
	}
	if update.RequiresApproval != nil {
		group.RequiresApproval = *update.RequiresApproval
	}
	if update.MaxParticipants != nil {
		group.MaxParticipants = *update.MaxParticipants
	}
	if update.NextOccurrence != nil {
		group.NextOccurrence = update.NextOccurrence
	}
	tx.state.groups[groupID] = group
	return nil
}

func (tx *groupTxStub) SoftDeleteGroup(ctx context.Context, groupID string, at time.Time) error {
	group, ok := tx.state.groups[groupID]
	if !ok {
		return persistence.ErrNotFound
	}
	group.IsActive = false
	group.UpdatedAt = at
	tx.state.groups[groupID] = group
	return nil
}

func (tx *groupTxStub) InsertInstances(ctx context.Context, instances []persistence.Instance) error {
	for _, inst := range instances {
		tx.state.instances[inst.GroupID] = append(tx.state.instances[inst.GroupID], inst)
	}
	return nil
}

func (tx *groupTxStub) DeleteInstancesForGroup(ctx context.Context, groupID string) error {
	delete(tx.state.instances, groupID)
	return nil
}

func (tx *groupTxStub) InsertMembership(ctx context.Context, membership persistence.Membership) error {
	key := membershipKey(membership.GroupID, membership.UserID)
	if _, ok := tx.state.memberships[key]; ok {
		return persistence.ErrDuplicate
	}
	tx.state.memberships[key] = membership
	return nil
}

func (tx *groupTxStub) DeactivateMemberships(ctx context.Context, groupID string) error {
	for key, membership := range tx.state.memberships {
		if membership.GroupID == groupID {
			membership.IsActive = false
			tx.state.memberships[key] = membership
		}
	}
	return nil
}

type directoryStub struct {
	byEmail map[string]persistence.User
}

func (d *directoryStub) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	user, ok := d.byEmail[email]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

type credentialStub struct {
	has bool
	err error
}

func (c *credentialStub) HasCalendarCredentials(ctx context.Context, userID string) (bool, error) {
	return c.has, c.err
}

type calendarStub struct {
	createErr error
	updateErr error
	deleteErr error
	created   []calendar.EventSpec
	updated   []calendar.EventSpec
	deleted   []string
	result    calendar.EventResult
}

func (c *calendarStub) CreateEvent(ctx context.Context, ownerID string, spec calendar.EventSpec) (calendar.EventResult, error) {
	if c.createErr != nil {
		return calendar.EventResult{}, c.createErr
	}
	c.created = append(c.created, spec)
	return c.result, nil
}

func (c *calendarStub) UpdateEvent(ctx context.Context, ownerID, eventID string, spec calendar.EventSpec) (calendar.EventResult, error) {
	if c.updateErr != nil {
		return calendar.EventResult{}, c.updateErr
	}
	c.updated = append(c.updated, spec)
	return calendar.EventResult{EventID: eventID}, nil
}

func (c *calendarStub) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, eventID)
	return nil
}

func sequenceIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow() time.Time {
	return time.Date(2026, time.January, 2, 12, 0, 0, 0, time.UTC)
}

func newTestGroupService(repo *groupRepoStub, dir *directoryStub, creds *credentialStub, cal *calendarStub) *GroupService {
	if dir == nil {
		dir = &directoryStub{}
	}
	svc := NewGroupService(repo, dir, creds, cal, sequenceIDs("id"), fixedNow, nil)
	svc.pickTheme = func() string { return "olive" }
	return svc
}

func weeklyInput(anchor time.Time, end time.Time) GroupInput {
	return GroupInput{
		Title:           "Morning Prayer",
		Description:     "Start the day together",
		ScheduledTime:   &anchor,
		DurationMinutes: 45,
		Timezone:        "UTC",
		IsRecurring:     true,
		Recurrence: &RecurrenceInput{
			Pattern:    "weekly",
			Interval:   1,
			DaysOfWeek: []int{1, 3, 5},
			EndDate:    &end,
		},
	}
}

func TestGroupService_CreateGroup_ValidatesInput(t *testing.T) {
	t.Parallel()

	svc := newTestGroupService(newGroupRepoStub(), nil, &credentialStub{has: true}, &calendarStub{})

	_, err := svc.CreateGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1"},
		Input: GroupInput{
			Title:       "  ",
			IsRecurring: true,
			Timezone:    "Not/AZone",
			Recurrence:  &RecurrenceInput{Pattern: "hourly", Interval: 0},
		},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "scheduled_time", "timezone", "recurrence"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected field error for %q, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestGroupService_CreateGroup_RequiresCalendarCredentials(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	svc := newTestGroupService(repo, nil, &credentialStub{has: false}, &calendarStub{})

	anchor := time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1"},
		Input:     weeklyInput(anchor, end),
	})

	if !errors.Is(err, ErrMissingCalendarCredentials) {
		t.Fatalf("expected ErrMissingCalendarCredentials, got %v", err)
	}
	if len(repo.state.groups) != 0 {
		t.Fatalf("expected no group persisted, got %d", len(repo.state.groups))
	}
}

func TestGroupService_CreateGroup_RecurringCalendarFailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	cal := &calendarStub{createErr: errors.New("calendar API unavailable")}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	anchor := time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1"},
		Input:     weeklyInput(anchor, end),
	})

	if !errors.Is(err, ErrCalendarSyncFailed) {
		t.Fatalf("expected ErrCalendarSyncFailed, got %v", err)
	}
	if len(repo.state.groups) != 0 || len(repo.state.instances) != 0 || len(repo.state.memberships) != 0 {
		t.Fatalf("expected every write rolled back, got groups=%d instances=%d memberships=%d",
			len(repo.state.groups), len(repo.state.instances), len(repo.state.memberships))
	}
}

func TestGroupService_CreateGroup_NonRecurringCalendarFailureTolerated(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	cal := &calendarStub{createErr: errors.New("calendar API unavailable")}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	scheduled := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	group, err := svc.CreateGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1"},
		Input: GroupInput{
			Title:           "One-off study",
			ScheduledTime:   &scheduled,
			DurationMinutes: 30,
		},
	})
	if err != nil {
		t.Fatalf("expected tolerated calendar failure, got %v", err)
	}

	if group.CalendarSynced {
		t.Error("expected CalendarSynced false after tolerated failure")
	}
	if group.MeetLink != "" {
		t.Errorf("expected empty meet link, got %q", group.MeetLink)
	}
	stored, ok := repo.state.groups[group.ID]
	if !ok {
		t.Fatal("expected group persisted despite calendar failure")
	}
	if stored.MeetID != nil {
		t.Errorf("expected no stored meet id, got %q", *stored.MeetID)
	}
}

func TestGroupService_CreateGroup_WeeklyMondayWednesdayFriday(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	cal := &calendarStub{result: calendar.EventResult{EventID: "evt-1", MeetLink: "https://meet.example/abc", MeetID: "meet-abc"}}
	dir := &directoryStub{byEmail: map[string]persistence.User{
		"friend@example.com": {ID: "user-2", Email: "friend@example.com"},
	}}
	svc := newTestGroupService(repo, dir, &credentialStub{has: true}, cal)

	anchor := time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	input := weeklyInput(anchor, end)
	input.InviteeEmails = []string{"friend@example.com", "stranger@example.com"}

	group, err := svc.CreateGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1", Email: "leader@example.com"},
		Input:     input,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if !group.CalendarSynced {
		t.Error("expected CalendarSynced true")
	}
	if group.MeetLink != "https://meet.example/abc" {
		t.Errorf("unexpected meet link %q", group.MeetLink)
	}
	if group.RecurrenceRule == "" {
		t.Error("expected a recurrence rule on the group view")
	}
	if len(cal.created) != 1 {
		t.Fatalf("expected one calendar event, got %d", len(cal.created))
	}
	if cal.created[0].RecurrenceRule == "" {
		t.Error("expected recurrence rule attached to the calendar event")
	}

	// Mon/Wed/Fri from Jan 5 through Feb 1 inclusive.
	want := []time.Time{
		time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 7, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 9, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 12, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 14, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 16, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 19, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 21, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 23, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 26, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 28, 19, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 30, 19, 0, 0, 0, time.UTC),
	}
	stored := repo.state.instances[group.ID]
	if len(stored) != len(want) {
		t.Fatalf("expected %d instances, got %d", len(want), len(stored))
	}
	for i, inst := range stored {
		if !inst.MeetingDate.Equal(want[i]) {
			t.Errorf("instance %d: expected %s, got %s", i, want[i], inst.MeetingDate)
		}
	}

	creator, ok := repo.state.memberships[membershipKey(group.ID, "user-1")]
	if !ok || creator.Role != persistence.RoleAdmin {
		t.Errorf("expected creator admin membership, got %+v", creator)
	}
	invitee, ok := repo.state.memberships[membershipKey(group.ID, "user-2")]
	if !ok || invitee.Role != persistence.RoleMember {
		t.Errorf("expected invitee member membership, got %+v", invitee)
	}
	if len(repo.state.memberships) != 2 {
		t.Errorf("expected unknown invitee skipped, got %d memberships", len(repo.state.memberships))
	}
}

func TestGroupService_CreateRecurringGroup_RejectsPastEndDate(t *testing.T) {
	t.Parallel()

	svc := newTestGroupService(newGroupRepoStub(), nil, &credentialStub{has: true}, &calendarStub{})

	anchor := time.Date(2025, time.December, 1, 19, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateRecurringGroup(context.Background(), CreateGroupParams{
		Principal: Principal{UserID: "user-1"},
		Input:     weeklyInput(anchor, end),
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["recurrence"]; !ok {
		t.Errorf("expected recurrence field error, got %v", vErr.FieldErrors)
	}
}

func seedGroup(repo *groupRepoStub, id, creatorID string) persistence.Group {
	scheduled := time.Date(2026, time.January, 12, 19, 0, 0, 0, time.UTC)
	meetLink := "https://meet.example/seed"
	meetID := "meet-seed"
	group := persistence.Group{
		ID:              id,
		Title:           "Evening Fellowship",
		CreatorID:       creatorID,
		ScheduledTime:   &scheduled,
		DurationMinutes: 60,
		Timezone:        "UTC",
		MeetLink:        &meetLink,
		MeetID:          &meetID,
		IsActive:        true,
	}
	repo.state.groups[id] = group
	repo.state.memberships[membershipKey(id, creatorID)] = persistence.Membership{
		ID: "m-1", GroupID: id, UserID: creatorID, Role: persistence.RoleAdmin, IsActive: true,
	}
	return group
}

func TestGroupService_UpdateGroup_RequiresAdmin(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	repo.state.memberships[membershipKey("group-1", "user-3")] = persistence.Membership{
		ID: "m-2", GroupID: "group-1", UserID: "user-3", Role: persistence.RoleMember, IsActive: true,
	}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, &calendarStub{})

	title := "Renamed"
	for _, userID := range []string{"user-2", "user-3"} {
		_, err := svc.UpdateGroup(context.Background(), UpdateGroupParams{
			Principal: Principal{UserID: userID},
			GroupID:   "group-1",
			Input:     GroupUpdateInput{Title: &title},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("user %s: expected ErrUnauthorized, got %v", userID, err)
		}
	}
}

func TestGroupService_UpdateGroup_CalendarFailureTolerated(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	cal := &calendarStub{updateErr: errors.New("calendar API unavailable")}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	title := "Renamed Fellowship"
	group, err := svc.UpdateGroup(context.Background(), UpdateGroupParams{
		Principal: Principal{UserID: "user-1"},
		GroupID:   "group-1",
		Input:     GroupUpdateInput{Title: &title},
	})
	if err != nil {
		t.Fatalf("expected tolerated calendar failure, got %v", err)
	}

	if group.CalendarSynced {
		t.Error("expected CalendarSynced false after calendar update failure")
	}
	if repo.state.groups["group-1"].Title != title {
		t.Errorf("expected stored title %q, got %q", title, repo.state.groups["group-1"].Title)
	}
}

func TestGroupService_UpdateGroup_SyncsCalendarEvent(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	cal := &calendarStub{}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	scheduled := time.Date(2026, time.January, 13, 20, 0, 0, 0, time.UTC)
	group, err := svc.UpdateGroup(context.Background(), UpdateGroupParams{
		Principal: Principal{UserID: "user-1"},
		GroupID:   "group-1",
		Input:     GroupUpdateInput{ScheduledTime: &scheduled},
	})
	if err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	if !group.CalendarSynced {
		t.Error("expected CalendarSynced true")
	}
	if len(cal.updated) != 1 {
		t.Fatalf("expected one calendar patch, got %d", len(cal.updated))
	}
	if !cal.updated[0].Start.Equal(scheduled) {
		t.Errorf("expected patched start %s, got %s", scheduled, cal.updated[0].Start)
	}
	if next := repo.state.groups["group-1"].NextOccurrence; next == nil || !next.Equal(scheduled) {
		t.Errorf("expected next occurrence %s, got %v", scheduled, next)
	}
}

func TestGroupService_DeleteGroup_CalendarFailureAborts(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	cal := &calendarStub{deleteErr: errors.New("calendar API unavailable")}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	err := svc.DeleteGroup(context.Background(), Principal{UserID: "user-1"}, "group-1")
	if !errors.Is(err, ErrCalendarSyncFailed) {
		t.Fatalf("expected ErrCalendarSyncFailed, got %v", err)
	}
	if !repo.state.groups["group-1"].IsActive {
		t.Error("expected group to remain active after aborted delete")
	}
}

func TestGroupService_DeleteGroup_SoftDeletesAndClears(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	group := seedGroup(repo, "group-1", "user-1")
	repo.state.instances[group.ID] = []persistence.Instance{{ID: "i-1", GroupID: group.ID}}
	cal := &calendarStub{}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, cal)

	if err := svc.DeleteGroup(context.Background(), Principal{UserID: "user-1"}, "group-1"); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	if repo.state.groups["group-1"].IsActive {
		t.Error("expected group soft-deleted")
	}
	if len(repo.state.instances["group-1"]) != 0 {
		t.Error("expected instances removed")
	}
	if repo.state.memberships[membershipKey("group-1", "user-1")].IsActive {
		t.Error("expected memberships deactivated")
	}
	if len(cal.deleted) != 1 || cal.deleted[0] != "meet-seed" {
		t.Errorf("expected calendar event meet-seed deleted, got %v", cal.deleted)
	}
}

func TestGroupService_DeleteGroup_CreatorOnly(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, &calendarStub{})

	err := svc.DeleteGroup(context.Background(), Principal{UserID: "user-2"}, "group-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGroupService_ListUpcomingMeetings(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	link := "https://meet.example/abc"
	repo.upcoming = []persistence.UpcomingMeeting{
		{
			GroupID:         "group-1",
			Title:           "Morning Prayer",
			Theme:           "olive",
			MeetingDate:     time.Date(2026, time.January, 5, 19, 0, 0, 0, time.UTC),
			DurationMinutes: 45,
			MeetLink:        &link,
		},
	}
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, &calendarStub{})

	meetings, err := svc.ListUpcomingMeetings(context.Background(), Principal{UserID: "user-1"}, 10)
	if err != nil {
		t.Fatalf("ListUpcomingMeetings failed: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("expected 1 meeting, got %d", len(meetings))
	}
	wantEnd := time.Date(2026, time.January, 5, 19, 45, 0, 0, time.UTC)
	if !meetings[0].EndTime.Equal(wantEnd) {
		t.Errorf("expected end time %s, got %s", wantEnd, meetings[0].EndTime)
	}
	if meetings[0].MeetLink != link {
		t.Errorf("expected meet link %q, got %q", link, meetings[0].MeetLink)
	}
}

func TestGroupService_GroupCalendar_RequiresMembership(t *testing.T) {
	t.Parallel()

	repo := newGroupRepoStub()
	seedGroup(repo, "group-1", "user-1")
	svc := newTestGroupService(repo, nil, &credentialStub{has: true}, &calendarStub{})

	if _, _, err := svc.GroupCalendar(context.Background(), Principal{UserID: "user-9"}, "group-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	group, instances, err := svc.GroupCalendar(context.Background(), Principal{UserID: "user-1"}, "group-1")
	if err != nil {
		t.Fatalf("GroupCalendar failed: %v", err)
	}
	if group.ID != "group-1" {
		t.Errorf("unexpected group %q", group.ID)
	}
	if len(instances) != 0 {
		t.Errorf("expected no instances for a non-recurring group, got %d", len(instances))
	}
}
