package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/example/fellowship-api/internal/calendar"
	"github.com/example/fellowship-api/internal/persistence"
	"github.com/example/fellowship-api/internal/recurrence"
)

// GroupRepository captures the persistence interactions needed by the
// scheduling coordinator.
type GroupRepository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.GroupTx) error) error
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
	GetMembership(ctx context.Context, groupID, userID string) (persistence.Membership, error)
	ListInstancesForGroup(ctx context.Context, groupID string) ([]persistence.Instance, error)
	ListUpcomingMeetings(ctx context.Context, userID string, after time.Time, limit int) ([]persistence.UpcomingMeeting, error)
}

// UserDirectory exposes the account lookups used for invitees.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
}

// CredentialChecker reports whether a user holds usable calendar tokens.
type CredentialChecker interface {
	HasCalendarCredentials(ctx context.Context, userID string) (bool, error)
}

// groupThemes is the fixed cosmetic label set assigned at creation.
var groupThemes = []string{"sunrise", "olive", "ocean", "lavender", "clay", "forest", "gold", "slate"}

// GroupService coordinates group creation, update and deletion: it
// validates inputs, builds recurrence rules, synchronizes the master
// calendar event and persists the group with its materialized instances
// in one transaction.
//
// Consistency contract: creating or deleting the calendar linkage of a
// recurring group is fatal on failure and rolls back every write.
// Calendar failures for non-recurring groups and all calendar update
// failures are tolerated and only logged.
type GroupService struct {
	groups      GroupRepository
	users       UserDirectory
	credentials CredentialChecker
	provider    calendar.Provider
	idGenerator func() string
	now         func() time.Time
	pickTheme   func() string
	logger      *slog.Logger
}

// NewGroupService wires dependencies for group scheduling operations.
func NewGroupService(groups GroupRepository, users UserDirectory, credentials CredentialChecker, provider calendar.Provider, idGenerator func() string, now func() time.Time, logger *slog.Logger) *GroupService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &GroupService{
		groups:      groups,
		users:       users,
		credentials: credentials,
		provider:    provider,
		idGenerator: idGenerator,
		now:         now,
		pickTheme:   func() string { return groupThemes[rand.Intn(len(groupThemes))] },
		logger:      defaultLogger(logger),
	}
}

// CreateGroup validates the request, creates the master calendar event
// and persists the group, its instances and memberships transactionally.
func (s *GroupService) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	if s == nil {
		return Group{}, fmt.Errorf("GroupService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "group", "create")
	input := params.Input
	principal := params.Principal

	vErr := &ValidationError{}
	validateGroupCore(input, vErr)

	var def recurrence.Definition
	if input.IsRecurring {
		if input.Recurrence == nil {
			vErr.add("recurrence", "recurrence parameters are required for recurring groups")
		} else {
			def = toDefinition(*input.Recurrence)
			if problems := recurrence.ValidateParams(def); len(problems) > 0 {
				vErr.add("recurrence", strings.Join(problems, "; "))
			}
		}
	}

	if vErr.HasErrors() {
		return Group{}, vErr
	}

	hasCreds, err := s.credentials.HasCalendarCredentials(ctx, principal.UserID)
	if err != nil {
		return Group{}, err
	}
	if !hasCreds {
		return Group{}, ErrMissingCalendarCredentials
	}

	now := s.now().UTC()
	durationMinutes := input.DurationMinutes
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	group := persistence.Group{
		ID:               s.idGenerator(),
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Theme:            s.pickTheme(),
		CreatorID:        principal.UserID,
		ScheduledTime:    normalizeTime(input.ScheduledTime),
		DurationMinutes:  durationMinutes,
		IsRecurring:      input.IsRecurring,
		Timezone:         timezone,
		RequiresApproval: input.RequiresApproval,
		MaxParticipants:  input.MaxParticipants,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var rule string
	if input.IsRecurring {
		pattern := string(def.Pattern)
		interval := def.Interval
		group.Pattern = &pattern
		group.Interval = &interval
		group.DaysOfWeek = def.DaysOfWeek
		group.RecurrenceEnd = def.EndDate

		rule, err = recurrence.GenerateRule(def)
		if err != nil {
			return Group{}, err
		}
		group.RecurrenceRule = &rule

		next := recurrence.NextOccurrence(*group.ScheduledTime, now, def)
		group.NextOccurrence = &next
	} else if group.ScheduledTime != nil {
		next := *group.ScheduledTime
		group.NextOccurrence = &next
	}

	calendarSynced := false
	var materialized []recurrence.Instance

	err = s.groups.InTransaction(ctx, func(ctx context.Context, tx persistence.GroupTx) error {
		if err := tx.InsertGroup(ctx, group); err != nil {
			return mapGroupRepoError(err)
		}

		if group.ScheduledTime != nil {
			spec := calendar.EventSpec{
				Title:          group.Title,
				Description:    group.Description,
				Start:          *group.ScheduledTime,
				End:            group.ScheduledTime.Add(time.Duration(durationMinutes) * time.Minute),
				Timezone:       group.Timezone,
				AttendeeEmails: input.InviteeEmails,
				RecurrenceRule: rule,
			}

			result, calErr := s.provider.CreateEvent(ctx, principal.UserID, spec)
			switch {
			case calErr != nil && group.IsRecurring:
				// Recurring groups without a working calendar event are
				// not a valid state.
				return fmt.Errorf("%w: %v", ErrCalendarSyncFailed, calErr)
			case calErr != nil:
				logger.WarnContext(ctx, "calendar event creation failed; group persists without meet link",
					"group_id", group.ID, "error", calErr)
			default:
				if err := tx.UpdateGroupCalendarRefs(ctx, group.ID, result.MeetLink, result.MeetID); err != nil {
					return mapGroupRepoError(err)
				}
				group.MeetLink = &result.MeetLink
				group.MeetID = &result.MeetID
				calendarSynced = true
			}
		}

		if group.IsRecurring {
			materialized = recurrence.MaterializeInstances(group.ID, *group.ScheduledTime, durationMinutes, def, recurrence.MaxInstances)
			rows := make([]persistence.Instance, len(materialized))
			for i, inst := range materialized {
				rows[i] = persistence.Instance{
					ID:          s.idGenerator(),
					GroupID:     inst.GroupID,
					MeetingDate: inst.MeetingDate,
					CreatedAt:   now,
				}
			}
			if err := tx.InsertInstances(ctx, rows); err != nil {
				return mapGroupRepoError(err)
			}
		}

		creatorMembership := persistence.Membership{
			ID:       s.idGenerator(),
			GroupID:  group.ID,
			UserID:   principal.UserID,
			Role:     persistence.RoleAdmin,
			IsActive: true,
			JoinedAt: now,
		}
		if err := tx.InsertMembership(ctx, creatorMembership); err != nil {
			return mapGroupRepoError(err)
		}

		s.addInvitees(ctx, tx, logger, group.ID, principal, input.InviteeEmails, now)

		return nil
	})
	if err != nil {
		return Group{}, err
	}

	logger.InfoContext(ctx, "group created",
		"group_id", group.ID,
		"recurring", group.IsRecurring,
		"instances", len(materialized),
		"calendar_synced", calendarSynced)

	view := toGroupView(group, calendarSynced)
	view.Instances = materialized
	return view, nil
}

// CreateRecurringGroup is the simplified single-call variant: it forces
// the recurring flag and additionally rejects end dates that are not
// strictly in the future.
func (s *GroupService) CreateRecurringGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	input := params.Input
	input.IsRecurring = true

	if input.Recurrence != nil && input.Recurrence.EndDate != nil {
		endOfDay := input.Recurrence.EndDate.UTC()
		endOfDay = time.Date(endOfDay.Year(), endOfDay.Month(), endOfDay.Day(), 23, 59, 59, 0, time.UTC)
		if !endOfDay.After(s.now().UTC()) {
			vErr := &ValidationError{}
			vErr.add("recurrence", "end date must be in the future")
			return Group{}, vErr
		}
	}

	params.Input = input
	return s.CreateGroup(ctx, params)
}

// UpdateGroup applies a typed partial update. Only members holding the
// admin role may update. A calendar update failure is tolerated: the
// database state still changes and the result reports CalendarSynced
// false.
func (s *GroupService) UpdateGroup(ctx context.Context, params UpdateGroupParams) (Group, error) {
	if s == nil {
		return Group{}, fmt.Errorf("GroupService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "group", "update", "group_id", params.GroupID)

	group, err := s.loadActiveGroup(ctx, params.GroupID)
	if err != nil {
		return Group{}, err
	}

	if err := s.requireAdmin(ctx, group.ID, params.Principal.UserID); err != nil {
		return Group{}, err
	}

	input := params.Input
	vErr := &ValidationError{}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.DurationMinutes != nil && *input.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be a positive number of minutes")
	}
	if input.MaxParticipants != nil && *input.MaxParticipants < 0 {
		vErr.add("max_participants", "max participants cannot be negative")
	}
	if vErr.HasErrors() {
		return Group{}, vErr
	}
	if input.IsZero() {
		return toGroupView(group, group.MeetID != nil), nil
	}

	update := persistence.GroupUpdate{
		Title:            input.Title,
		Description:      input.Description,
		ScheduledTime:    normalizeTime(input.ScheduledTime),
		DurationMinutes:  input.DurationMinutes,
		RequiresApproval: input.RequiresApproval,
		MaxParticipants:  input.MaxParticipants,
	}

	if input.ScheduledTime != nil {
		next := s.projectNext(group, *update.ScheduledTime)
		update.NextOccurrence = &next
	}

	err = s.groups.InTransaction(ctx, func(ctx context.Context, tx persistence.GroupTx) error {
		return mapGroupRepoError(tx.UpdateGroupFields(ctx, group.ID, update))
	})
	if err != nil {
		return Group{}, err
	}

	updated, err := s.groups.GetGroup(ctx, group.ID)
	if err != nil {
		return Group{}, mapGroupRepoError(err)
	}

	calendarSynced := true
	if scheduleAffecting(input) && updated.MeetID != nil {
		spec := calendar.EventSpec{
			Title:       updated.Title,
			Description: updated.Description,
			Timezone:    updated.Timezone,
		}
		if updated.ScheduledTime != nil {
			spec.Start = *updated.ScheduledTime
			spec.End = updated.ScheduledTime.Add(time.Duration(updated.DurationMinutes) * time.Minute)
		}
		if updated.RecurrenceRule != nil {
			spec.RecurrenceRule = *updated.RecurrenceRule
		}

		if _, calErr := s.provider.UpdateEvent(ctx, updated.CreatorID, *updated.MeetID, spec); calErr != nil {
			// Tolerated: stored schedule and live calendar event may now
			// diverge until the next successful sync.
			calendarSynced = false
			logger.WarnContext(ctx, "calendar event update failed; stored schedule and calendar may diverge",
				"meet_id", *updated.MeetID, "error", calErr)
		}
	}

	if input.ScheduledTime != nil && updated.IsRecurring {
		logger.InfoContext(ctx, "schedule changed; materialized instances are not regenerated",
			"group_id", updated.ID)
	}

	return toGroupView(updated, calendarSynced), nil
}

// DeleteGroup soft-deletes a group after removing its master calendar
// event. Only the creator may delete. A calendar delete failure aborts
// the whole operation so calendar and database state never diverge.
func (s *GroupService) DeleteGroup(ctx context.Context, principal Principal, groupID string) error {
	if s == nil {
		return fmt.Errorf("GroupService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "group", "delete", "group_id", groupID)

	group, err := s.loadActiveGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if group.CreatorID != principal.UserID {
		return ErrUnauthorized
	}

	err = s.groups.InTransaction(ctx, func(ctx context.Context, tx persistence.GroupTx) error {
		if group.MeetID != nil {
			if calErr := s.provider.DeleteEvent(ctx, group.CreatorID, *group.MeetID); calErr != nil {
				return fmt.Errorf("%w: %v", ErrCalendarSyncFailed, calErr)
			}
		}

		if err := tx.SoftDeleteGroup(ctx, group.ID, s.now()); err != nil {
			return mapGroupRepoError(err)
		}
		if err := tx.DeactivateMemberships(ctx, group.ID); err != nil {
			return mapGroupRepoError(err)
		}
		if err := tx.DeleteInstancesForGroup(ctx, group.ID); err != nil {
			return mapGroupRepoError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "group deleted", "had_calendar_event", group.MeetID != nil)
	return nil
}

// ListUpcomingMeetings returns the next materialized meetings across the
// groups the principal belongs to.
func (s *GroupService) ListUpcomingMeetings(ctx context.Context, principal Principal, limit int) ([]UpcomingMeeting, error) {
	if s == nil {
		return nil, fmt.Errorf("GroupService is nil")
	}

	rows, err := s.groups.ListUpcomingMeetings(ctx, principal.UserID, s.now().UTC(), limit)
	if err != nil {
		return nil, mapGroupRepoError(err)
	}

	meetings := make([]UpcomingMeeting, 0, len(rows))
	for _, row := range rows {
		meeting := UpcomingMeeting{
			GroupID:     row.GroupID,
			Title:       row.Title,
			Theme:       row.Theme,
			MeetingDate: row.MeetingDate,
			EndTime:     row.MeetingDate.Add(time.Duration(row.DurationMinutes) * time.Minute),
		}
		if row.MeetLink != nil {
			meeting.MeetLink = *row.MeetLink
		}
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

// GroupCalendar returns a group and its materialized instances for
// members; used by the ICS feed.
func (s *GroupService) GroupCalendar(ctx context.Context, principal Principal, groupID string) (Group, []persistence.Instance, error) {
	if s == nil {
		return Group{}, nil, fmt.Errorf("GroupService is nil")
	}

	group, err := s.loadActiveGroup(ctx, groupID)
	if err != nil {
		return Group{}, nil, err
	}

	membership, err := s.groups.GetMembership(ctx, groupID, principal.UserID)
	if err != nil || !membership.IsActive {
		return Group{}, nil, ErrUnauthorized
	}

	instances, err := s.groups.ListInstancesForGroup(ctx, groupID)
	if err != nil {
		return Group{}, nil, mapGroupRepoError(err)
	}

	return toGroupView(group, group.MeetID != nil), instances, nil
}

func (s *GroupService) loadActiveGroup(ctx context.Context, groupID string) (persistence.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return persistence.Group{}, mapGroupRepoError(err)
	}
	if !group.IsActive {
		return persistence.Group{}, ErrNotFound
	}
	return group, nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID, userID string) error {
	membership, err := s.groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if !membership.IsActive || membership.Role != persistence.RoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

// addInvitees best-effort-adds invited participants who already exist as
// users. Individual failures are logged and skipped; they never abort
// the enclosing transaction.
func (s *GroupService) addInvitees(ctx context.Context, tx persistence.GroupTx, logger *slog.Logger, groupID string, creator Principal, emails []string, now time.Time) {
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" || strings.EqualFold(email, creator.Email) {
			continue
		}

		user, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			logger.WarnContext(ctx, "skipping invitee: lookup failed", "email", email, "error", err)
			continue
		}

		membership := persistence.Membership{
			ID:       s.idGenerator(),
			GroupID:  groupID,
			UserID:   user.ID,
			Role:     persistence.RoleMember,
			IsActive: true,
			JoinedAt: now,
		}
		if err := tx.InsertMembership(ctx, membership); err != nil {
			logger.WarnContext(ctx, "skipping invitee: membership insert failed", "email", email, "error", err)
		}
	}
}

// projectNext recomputes the next firing after the anchor moved.
func (s *GroupService) projectNext(group persistence.Group, anchor time.Time) time.Time {
	if !group.IsRecurring {
		return anchor
	}
	return recurrence.NextOccurrence(anchor, s.now().UTC(), definitionFromGroup(group))
}

func validateGroupCore(input GroupInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.IsRecurring && input.ScheduledTime == nil {
		vErr.add("scheduled_time", "scheduled time is required for recurring groups")
	}
	if input.DurationMinutes < 0 {
		vErr.add("duration_minutes", "duration must be a positive number of minutes")
	}
	if input.MaxParticipants < 0 {
		vErr.add("max_participants", "max participants cannot be negative")
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			vErr.add("timezone", "must be a valid IANA timezone")
		}
	}
}

func toDefinition(input RecurrenceInput) recurrence.Definition {
	return recurrence.Definition{
		Pattern:    recurrence.Pattern(strings.ToLower(strings.TrimSpace(input.Pattern))),
		Interval:   input.Interval,
		DaysOfWeek: input.DaysOfWeek,
		EndDate:    input.EndDate,
	}
}

func definitionFromGroup(group persistence.Group) recurrence.Definition {
	def := recurrence.Definition{DaysOfWeek: group.DaysOfWeek, EndDate: group.RecurrenceEnd}
	if group.Pattern != nil {
		def.Pattern = recurrence.Pattern(*group.Pattern)
	}
	if group.Interval != nil {
		def.Interval = *group.Interval
	} else {
		def.Interval = 1
	}
	return def
}

// scheduleAffecting reports whether the update touches fields mirrored
// on the calendar event.
func scheduleAffecting(input GroupUpdateInput) bool {
	return input.Title != nil ||
		input.Description != nil ||
		input.ScheduledTime != nil ||
		input.DurationMinutes != nil
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func toGroupView(group persistence.Group, calendarSynced bool) Group {
	view := Group{
		ID:               group.ID,
		Title:            group.Title,
		Description:      group.Description,
		Theme:            group.Theme,
		CreatorID:        group.CreatorID,
		ScheduledTime:    group.ScheduledTime,
		DurationMinutes:  group.DurationMinutes,
		IsRecurring:      group.IsRecurring,
		NextOccurrence:   group.NextOccurrence,
		Timezone:         group.Timezone,
		RequiresApproval: group.RequiresApproval,
		MaxParticipants:  group.MaxParticipants,
		IsActive:         group.IsActive,
		CreatedAt:        group.CreatedAt,
		UpdatedAt:        group.UpdatedAt,
		CalendarSynced:   calendarSynced,
	}
	if group.MeetLink != nil {
		view.MeetLink = *group.MeetLink
	}
	if group.MeetID != nil {
		view.MeetID = *group.MeetID
	}
	if group.IsRecurring {
		def := definitionFromGroup(group)
		view.Recurrence = &RecurrenceInput{
			Pattern:    string(def.Pattern),
			Interval:   def.Interval,
			DaysOfWeek: def.DaysOfWeek,
			EndDate:    def.EndDate,
		}
		view.RecurrenceDescription = recurrence.DescribeRule(def)
		if group.RecurrenceRule != nil {
			view.RecurrenceRule = *group.RecurrenceRule
		}
	}
	return view
}

func mapGroupRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("references", "related records are missing")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("input", "input violates a storage constraint")
		return vErr
	}
	return err
}
