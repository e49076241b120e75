// Package ics renders a group's materialized meeting instances as an
// iCalendar feed.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/fellowship-api/internal/application"
	"github.com/example/fellowship-api/internal/persistence"
)

const productID = "-//Fellowship API//Group Calendar//EN"

// Render serializes the group's instances as VEVENTs. The first event
// of a recurring group carries the RRULE so subscribing clients can
// project occurrences beyond the materialized window.
func Render(group application.Group, instances []persistence.Instance) (string, error) {
	if group.ID == "" {
		return "", fmt.Errorf("group id is required")
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(group.Title)

	duration := time.Duration(group.DurationMinutes) * time.Minute
	now := time.Now().UTC()

	if len(instances) == 0 && group.ScheduledTime != nil {
		event := cal.AddEvent(group.ID + "@fellowship")
		fillEvent(event, group, group.ScheduledTime.UTC(), duration, now)
		if group.RecurrenceRule != "" {
			event.AddRrule(group.RecurrenceRule)
		}
		return cal.Serialize(), nil
	}

	for i, inst := range instances {
		event := cal.AddEvent(fmt.Sprintf("%s-%d@fellowship", group.ID, i))
		fillEvent(event, group, inst.MeetingDate.UTC(), duration, now)
		if i == 0 && group.RecurrenceRule != "" {
			event.AddRrule(group.RecurrenceRule)
		}
	}

	return cal.Serialize(), nil
}

func fillEvent(event *ical.VEvent, group application.Group, start time.Time, duration time.Duration, stamp time.Time) {
	event.SetDtStampTime(stamp)
	event.SetStartAt(start)
	event.SetEndAt(start.Add(duration))
	event.SetSummary(group.Title)
	if group.Description != "" {
		event.SetDescription(group.Description)
	}
	if group.MeetLink != "" {
		event.SetLocation(group.MeetLink)
	}
}
