package recurrence

import "time"

// MaxInstances caps how many occurrences a single series materializes:
// one year of weekly meetings.
const MaxInstances = 52

// weeklySearchHorizon bounds how many interval-sized week jumps the
// weekly projection will attempt before falling back to a plain jump.
const weeklySearchHorizon = 8

// Instance is one concrete occurrence of a recurring meeting series.
// EndTime is derived from the meeting date and duration; persistence
// stores only MeetingDate.
type Instance struct {
	GroupID     string
	MeetingDate time.Time
	EndTime     time.Time
}

// NextOccurrence projects the next firing of a recurrence definition at
// or after now. An anchor still in the future is returned unchanged.
//
// For weekly patterns with explicit weekdays the projection never
// selects the reference date itself: a same-day match jumps a full
// 7*interval days forward, so "today" never counts as the next
// occurrence.
func NextOccurrence(anchor, now time.Time, def Definition) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()

	if anchor.After(now) {
		return anchor
	}

	interval := def.Interval
	if interval < 1 {
		interval = 1
	}

	switch def.Pattern {
	case PatternDaily:
		next := anchor
		for !next.After(now) {
			next = next.AddDate(0, 0, interval)
		}
		return next

	case PatternWeekly:
		if len(def.DaysOfWeek) == 0 {
			next := anchor
			for !next.After(now) {
				next = next.AddDate(0, 0, 7*interval)
			}
			return next
		}
		return nextWeekday(anchor, now, sortedDays(def.DaysOfWeek), interval)

	case PatternMonthly:
		next := anchor
		for !next.After(now) {
			next = next.AddDate(0, interval, 0)
		}
		return next
	}

	return anchor
}

// nextWeekday finds the earliest candidate across the requested
// weekdays, measured from now's date at the anchor's clock time.
func nextWeekday(anchor, now time.Time, days []int, interval int) time.Time {
	base := atClock(now, anchor)

	var best time.Time
	for _, day := range days {
		offset := (day - int(base.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7 * interval
		}
		candidate := base.AddDate(0, 0, offset)
		for steps := 0; !candidate.After(now) && steps < weeklySearchHorizon; steps++ {
			candidate = candidate.AddDate(0, 0, 7*interval)
		}
		if !candidate.After(now) {
			continue
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}

	if best.IsZero() {
		// Unreachable for valid weekday sets; jump a full interval anyway.
		return base.AddDate(0, 0, 7*interval)
	}
	return best
}

// MaterializeInstances expands a recurrence definition into an ordered
// sequence of concrete instances starting at start, which is always
// included as the first instance. Generation stops at maxInstances
// (MaxInstances when maxInstances <= 0) or once the stepped date passes
// the definition's end date, whichever comes first. The end date is
// inclusive through 23:59:59 UTC of its calendar day.
func MaterializeInstances(groupID string, start time.Time, durationMinutes int, def Definition, maxInstances int) []Instance {
	if maxInstances <= 0 || maxInstances > MaxInstances {
		maxInstances = MaxInstances
	}

	interval := def.Interval
	if interval < 1 {
		interval = 1
	}

	var cutoff time.Time
	if def.EndDate != nil {
		cutoff = endOfDayUTC(*def.EndDate)
	}

	duration := time.Duration(durationMinutes) * time.Minute
	current := start.UTC()
	instances := make([]Instance, 0, maxInstances)

	for len(instances) < maxInstances {
		if !cutoff.IsZero() && current.After(cutoff) {
			break
		}
		instances = append(instances, Instance{
			GroupID:     groupID,
			MeetingDate: current,
			EndTime:     current.Add(duration),
		})
		current = step(current, def, interval)
	}

	return instances
}

// step advances one occurrence using the same per-pattern rule as
// NextOccurrence. For weekly patterns with explicit weekdays the result
// is always strictly later than current, even when current's weekday is
// itself a target day.
func step(current time.Time, def Definition, interval int) time.Time {
	switch def.Pattern {
	case PatternDaily:
		return current.AddDate(0, 0, interval)
	case PatternWeekly:
		days := sortedDays(def.DaysOfWeek)
		if len(days) == 0 {
			return current.AddDate(0, 0, 7*interval)
		}
		minOffset := 7 * interval
		for _, day := range days {
			offset := (day - int(current.Weekday()) + 7) % 7
			if offset == 0 {
				offset = 7 * interval
			}
			if offset < minOffset {
				minOffset = offset
			}
		}
		return current.AddDate(0, 0, minOffset)
	case PatternMonthly:
		return current.AddDate(0, interval, 0)
	}
	return current.AddDate(0, 0, interval)
}

func atClock(date, clock time.Time) time.Time {
	d := date.UTC()
	c := clock.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), time.UTC)
}
