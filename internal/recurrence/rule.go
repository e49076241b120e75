// Package recurrence implements the scheduling core: validation of
// recurrence parameters, translation into the calendar provider's RRULE
// grammar, and projection of recurrence definitions into concrete
// meeting occurrences.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Pattern identifies a supported recurrence frequency.
type Pattern string

const (
	// PatternDaily repeats every Interval days.
	PatternDaily Pattern = "daily"
	// PatternWeekly repeats on the selected weekdays every Interval weeks.
	PatternWeekly Pattern = "weekly"
	// PatternMonthly repeats every Interval calendar months.
	PatternMonthly Pattern = "monthly"
)

// Definition describes a repeating meeting schedule.
//
// DaysOfWeek uses 0=Sunday through 6=Saturday and is consulted only for
// weekly patterns. EndDate, when set, bounds generated occurrences
// through the end of that calendar day (UTC).
type Definition struct {
	Pattern    Pattern
	Interval   int
	DaysOfWeek []int
	EndDate    *time.Time
}

// ErrUnparseableRule indicates an assembled rule failed the grammar check.
var ErrUnparseableRule = errors.New("recurrence: generated rule is not a valid RRULE")

var dayTokens = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ValidateParams checks a recurrence definition and returns one message
// per violated rule. An empty slice means the definition is usable;
// callers branch on emptiness rather than on an error value.
func ValidateParams(def Definition) []string {
	var problems []string

	switch def.Pattern {
	case PatternDaily, PatternWeekly, PatternMonthly:
	default:
		problems = append(problems, fmt.Sprintf("pattern must be one of daily, weekly, monthly; got %q", string(def.Pattern)))
	}

	if def.Interval < 1 {
		problems = append(problems, "interval must be a positive integer")
	}

	if def.Pattern == PatternWeekly {
		if len(def.DaysOfWeek) == 0 {
			problems = append(problems, "daysOfWeek is required for weekly recurrence")
		}
		seen := make(map[int]struct{}, len(def.DaysOfWeek))
		for _, day := range def.DaysOfWeek {
			if day < 0 || day > 6 {
				problems = append(problems, fmt.Sprintf("daysOfWeek values must be between 0 (Sunday) and 6 (Saturday); got %d", day))
				continue
			}
			if _, dup := seen[day]; dup {
				problems = append(problems, fmt.Sprintf("daysOfWeek contains duplicate value %d", day))
			}
			seen[day] = struct{}{}
		}
	}

	return problems
}

// GenerateRule assembles the recurrence-rule expression handed verbatim
// to the calendar provider. The output uses the provider's grammar:
// FREQ, INTERVAL, BYDAY for weekly patterns and UNTIL as a compact UTC
// timestamp covering the end date's full day.
//
// The assembled rule is parsed back before being returned; a rule the
// grammar rejects is never handed downstream.
func GenerateRule(def Definition) (string, error) {
	if problems := ValidateParams(def); len(problems) > 0 {
		return "", fmt.Errorf("recurrence: invalid definition: %s", strings.Join(problems, "; "))
	}

	parts := make([]string, 0, 4)

	switch def.Pattern {
	case PatternDaily:
		parts = append(parts, "FREQ=DAILY")
	case PatternWeekly:
		parts = append(parts, "FREQ=WEEKLY")
	case PatternMonthly:
		parts = append(parts, "FREQ=MONTHLY")
	}

	parts = append(parts, fmt.Sprintf("INTERVAL=%d", def.Interval))

	if def.Pattern == PatternWeekly {
		days := sortedDays(def.DaysOfWeek)
		tokens := make([]string, 0, len(days))
		for _, day := range days {
			tokens = append(tokens, dayTokens[day])
		}
		parts = append(parts, "BYDAY="+strings.Join(tokens, ","))
	}

	if def.EndDate != nil {
		until := endOfDayUTC(*def.EndDate)
		parts = append(parts, "UNTIL="+until.Format("20060102T150405Z"))
	}

	rule := strings.Join(parts, ";")

	if _, err := rrule.StrToRRule(rule); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnparseableRule, rule, err)
	}

	return rule, nil
}

// DescribeRule renders a recurrence definition as a human readable
// sentence, e.g. "Every 2 weeks on Monday, Wednesday until Dec 31, 2025".
// The output is cosmetic and carries no grammar guarantees.
func DescribeRule(def Definition) string {
	var b strings.Builder

	switch def.Pattern {
	case PatternDaily:
		if def.Interval <= 1 {
			b.WriteString("Every day")
		} else {
			fmt.Fprintf(&b, "Every %d days", def.Interval)
		}
	case PatternWeekly:
		if def.Interval <= 1 {
			b.WriteString("Every week")
		} else {
			fmt.Fprintf(&b, "Every %d weeks", def.Interval)
		}
		if len(def.DaysOfWeek) > 0 {
			names := make([]string, 0, len(def.DaysOfWeek))
			for _, day := range sortedDays(def.DaysOfWeek) {
				if day >= 0 && day <= 6 {
					names = append(names, dayNames[day])
				}
			}
			if len(names) > 0 {
				b.WriteString(" on ")
				b.WriteString(strings.Join(names, ", "))
			}
		}
	case PatternMonthly:
		if def.Interval <= 1 {
			b.WriteString("Every month")
		} else {
			fmt.Fprintf(&b, "Every %d months", def.Interval)
		}
	default:
		b.WriteString("Does not repeat")
	}

	if def.EndDate != nil {
		fmt.Fprintf(&b, " until %s", def.EndDate.UTC().Format("Jan 2, 2006"))
	}

	return b.String()
}

func sortedDays(days []int) []int {
	out := make([]int, 0, len(days))
	seen := make(map[int]struct{}, len(days))
	for _, day := range days {
		if day < 0 || day > 6 {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Ints(out)
	return out
}

func endOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}
