package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/fellowship-api/internal/persistence"
)

// GroupRepository implements persistence.GroupRepository on SQLite.
type GroupRepository struct {
	pool *ConnectionPool
}

// NewGroupRepository creates a SQLite-backed group repository.
func NewGroupRepository(pool *ConnectionPool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// InTransaction runs fn against a transactional write surface. Any error
// from fn rolls back every write performed through the surface.
func (r *GroupRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.GroupTx) error) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &groupTx{tx: tx})
	})
}

const groupColumns = `id, title, description, theme, creator_id, scheduled_time,
	duration_minutes, is_recurring, pattern, interval, days_of_week,
	recurrence_end, recurrence_rule, next_occurrence, timezone, meet_link,
	meet_id, requires_approval, max_participants, is_active, created_at, updated_at`

// GetGroup retrieves a group by ID, including soft-deleted rows so the
// caller can distinguish inactive from missing.
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	if id == "" {
		return persistence.Group{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	group, err := scanGroup(row)
	if err != nil {
		return persistence.Group{}, mapSQLError(err)
	}
	return group, nil
}

// GetMembership retrieves the membership row linking a user to a group.
func (r *GroupRepository) GetMembership(ctx context.Context, groupID, userID string) (persistence.Membership, error) {
	var m persistence.Membership
	var isActive int
	var joinedAt string

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, group_id, user_id, role, is_active, joined_at
		FROM group_memberships
		WHERE group_id = ? AND user_id = ?`, groupID, userID).
		Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &isActive, &joinedAt)
	if err != nil {
		return persistence.Membership{}, mapSQLError(err)
	}

	m.IsActive = isActive != 0
	if m.JoinedAt, err = time.Parse(time.RFC3339, joinedAt); err != nil {
		return persistence.Membership{}, fmt.Errorf("failed to parse joined_at: %w", err)
	}
	return m, nil
}

// ListInstancesForGroup returns a group's materialized instances ordered
// by meeting date.
func (r *GroupRepository) ListInstancesForGroup(ctx context.Context, groupID string) ([]persistence.Instance, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, group_id, meeting_date, created_at
		FROM group_instances
		WHERE group_id = ?
		ORDER BY meeting_date ASC`, groupID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var instances []persistence.Instance
	for rows.Next() {
		var inst persistence.Instance
		var meetingDate, createdAt string
		if err := rows.Scan(&inst.ID, &inst.GroupID, &meetingDate, &createdAt); err != nil {
			return nil, mapSQLError(err)
		}
		if inst.MeetingDate, err = time.Parse(time.RFC3339, meetingDate); err != nil {
			return nil, fmt.Errorf("failed to parse meeting_date: %w", err)
		}
		if inst.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// ListUpcomingMeetings returns the next meetings across every active
// recurring group the user belongs to, ordered by meeting date.
func (r *GroupRepository) ListUpcomingMeetings(ctx context.Context, userID string, after time.Time, limit int) ([]persistence.UpcomingMeeting, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT g.id, g.title, g.theme, i.meeting_date, g.duration_minutes, g.meet_link
		FROM group_instances i
		JOIN groups g ON g.id = i.group_id
		JOIN group_memberships m ON m.group_id = g.id
		WHERE m.user_id = ? AND m.is_active = 1
		  AND g.is_active = 1
		  AND i.meeting_date >= ?
		ORDER BY i.meeting_date ASC
		LIMIT ?`, userID, after.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var meetings []persistence.UpcomingMeeting
	for rows.Next() {
		var m persistence.UpcomingMeeting
		var meetingDate string
		var meetLink sql.NullString
		if err := rows.Scan(&m.GroupID, &m.Title, &m.Theme, &meetingDate, &m.DurationMinutes, &meetLink); err != nil {
			return nil, mapSQLError(err)
		}
		if m.MeetingDate, err = time.Parse(time.RFC3339, meetingDate); err != nil {
			return nil, fmt.Errorf("failed to parse meeting_date: %w", err)
		}
		if meetLink.Valid {
			m.MeetLink = &meetLink.String
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// ListActiveRecurringGroups returns every active recurring group.
func (r *GroupRepository) ListActiveRecurringGroups(ctx context.Context) ([]persistence.Group, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE is_recurring = 1 AND is_active = 1
		ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var groups []persistence.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, mapSQLError(err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// UpdateNextOccurrence advances a group's projected next firing.
func (r *GroupRepository) UpdateNextOccurrence(ctx context.Context, groupID string, next time.Time) error {
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE groups SET next_occurrence = ?, updated_at = ? WHERE id = ?`,
		next.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		groupID)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// groupTx implements persistence.GroupTx over a live transaction.
type groupTx struct {
	tx *sql.Tx
}

func (t *groupTx) InsertGroup(ctx context.Context, group persistence.Group) error {
	if group.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.Title,
		group.Description,
		group.Theme,
		group.CreatorID,
		nullTime(group.ScheduledTime),
		group.DurationMinutes,
		boolToInt(group.IsRecurring),
		nullString(group.Pattern),
		nullInt(group.Interval),
		nullDays(group.DaysOfWeek),
		nullTime(group.RecurrenceEnd),
		nullString(group.RecurrenceRule),
		nullTime(group.NextOccurrence),
		group.Timezone,
		nullString(group.MeetLink),
		nullString(group.MeetID),
		boolToInt(group.RequiresApproval),
		group.MaxParticipants,
		boolToInt(group.IsActive),
		group.CreatedAt.UTC().Format(time.RFC3339),
		group.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapSQLError(err)
}

func (t *groupTx) UpdateGroupCalendarRefs(ctx context.Context, groupID, meetLink, meetID string) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE groups SET meet_link = ?, meet_id = ?, updated_at = ? WHERE id = ?`,
		meetLink, meetID, time.Now().UTC().Format(time.RFC3339), groupID)
	if err != nil {
		return mapSQLError(err)
	}
	return ensureAffected(result)
}

// UpdateGroupFields compiles the set fields of a typed partial update
// into a single parameterized UPDATE statement.
func (t *groupTx) UpdateGroupFields(ctx context.Context, groupID string, update persistence.GroupUpdate) error {
	if update.IsZero() {
		return nil
	}

	clauses := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)

	if update.Title != nil {
		clauses = append(clauses, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		clauses = append(clauses, "description = ?")
		args = append(args, *update.Description)
	}
	if update.ScheduledTime != nil {
		clauses = append(clauses, "scheduled_time = ?")
		args = append(args, update.ScheduledTime.UTC().Format(time.RFC3339))
	}
	if update.DurationMinutes != nil {
		clauses = append(clauses, "duration_minutes = ?")
		args = append(args, *update.DurationMinutes)
	}
	if update.RequiresApproval != nil {
		clauses = append(clauses, "requires_approval = ?")
		args = append(args, boolToInt(*update.RequiresApproval))
	}
	if update.MaxParticipants != nil {
		clauses = append(clauses, "max_participants = ?")
		args = append(args, *update.MaxParticipants)
	}
	if update.NextOccurrence != nil {
		clauses = append(clauses, "next_occurrence = ?")
		args = append(args, update.NextOccurrence.UTC().Format(time.RFC3339))
	}
	if update.MeetLink != nil {
		clauses = append(clauses, "meet_link = ?")
		args = append(args, *update.MeetLink)
	}
	if update.MeetID != nil {
		clauses = append(clauses, "meet_id = ?")
		args = append(args, *update.MeetID)
	}

	clauses = append(clauses, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, groupID)

	query := "UPDATE groups SET " + strings.Join(clauses, ", ") + " WHERE id = ?"
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapSQLError(err)
	}
	return ensureAffected(result)
}

func (t *groupTx) SoftDeleteGroup(ctx context.Context, groupID string, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE groups SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		at.UTC().Format(time.RFC3339), groupID)
	if err != nil {
		return mapSQLError(err)
	}
	return ensureAffected(result)
}

func (t *groupTx) InsertInstances(ctx context.Context, instances []persistence.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO group_instances (id, group_id, meeting_date, created_at)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return mapSQLError(err)
	}
	defer stmt.Close()

	for _, inst := range instances {
		_, err := stmt.ExecContext(ctx,
			inst.ID,
			inst.GroupID,
			inst.MeetingDate.UTC().Format(time.RFC3339),
			inst.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

func (t *groupTx) DeleteInstancesForGroup(ctx context.Context, groupID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM group_instances WHERE group_id = ?`, groupID)
	return mapSQLError(err)
}

func (t *groupTx) InsertMembership(ctx context.Context, membership persistence.Membership) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO group_memberships (id, group_id, user_id, role, is_active, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		membership.ID,
		membership.GroupID,
		membership.UserID,
		membership.Role,
		boolToInt(membership.IsActive),
		membership.JoinedAt.UTC().Format(time.RFC3339),
	)
	return mapSQLError(err)
}

func (t *groupTx) DeactivateMemberships(ctx context.Context, groupID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE group_memberships SET is_active = 0 WHERE group_id = ?`, groupID)
	return mapSQLError(err)
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner) (persistence.Group, error) {
	var g persistence.Group
	var scheduledTime, pattern, daysOfWeek, recurrenceEnd, recurrenceRule sql.NullString
	var nextOccurrence, meetLink, meetID sql.NullString
	var interval sql.NullInt64
	var isRecurring, requiresApproval, isActive int
	var createdAt, updatedAt string

	err := row.Scan(
		&g.ID,
		&g.Title,
		&g.Description,
		&g.Theme,
		&g.CreatorID,
		&scheduledTime,
		&g.DurationMinutes,
		&isRecurring,
		&pattern,
		&interval,
		&daysOfWeek,
		&recurrenceEnd,
		&recurrenceRule,
		&nextOccurrence,
		&g.Timezone,
		&meetLink,
		&meetID,
		&requiresApproval,
		&g.MaxParticipants,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Group{}, err
	}

	g.IsRecurring = isRecurring != 0
	g.RequiresApproval = requiresApproval != 0
	g.IsActive = isActive != 0

	if g.ScheduledTime, err = parseNullTime(scheduledTime); err != nil {
		return persistence.Group{}, fmt.Errorf("failed to parse scheduled_time: %w", err)
	}
	if g.RecurrenceEnd, err = parseNullTime(recurrenceEnd); err != nil {
		return persistence.Group{}, fmt.Errorf("failed to parse recurrence_end: %w", err)
	}
	if g.NextOccurrence, err = parseNullTime(nextOccurrence); err != nil {
		return persistence.Group{}, fmt.Errorf("failed to parse next_occurrence: %w", err)
	}

	if pattern.Valid {
		g.Pattern = &pattern.String
	}
	if interval.Valid {
		value := int(interval.Int64)
		g.Interval = &value
	}
	if daysOfWeek.Valid && daysOfWeek.String != "" {
		if g.DaysOfWeek, err = parseDays(daysOfWeek.String); err != nil {
			return persistence.Group{}, fmt.Errorf("failed to parse days_of_week: %w", err)
		}
	}
	if recurrenceRule.Valid {
		g.RecurrenceRule = &recurrenceRule.String
	}
	if meetLink.Valid {
		g.MeetLink = &meetLink.String
	}
	if meetID.Valid {
		g.MeetID = &meetID.String
	}

	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Group{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Group{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return g, nil
}

func ensureAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullDays(days []int) sql.NullString {
	if len(days) == 0 {
		return sql.NullString{}
	}
	tokens := make([]string, len(days))
	for i, day := range days {
		tokens[i] = strconv.Itoa(day)
	}
	return sql.NullString{String: strings.Join(tokens, ","), Valid: true}
}

func parseDays(csv string) ([]int, error) {
	tokens := strings.Split(csv, ",")
	days := make([]int, 0, len(tokens))
	for _, token := range tokens {
		day, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
