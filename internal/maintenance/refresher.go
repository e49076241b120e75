// Package maintenance hosts background jobs that keep derived group
// state current without involving the request path.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/fellowship-api/internal/persistence"
	"github.com/example/fellowship-api/internal/recurrence"
)

// GroupStore is the persistence surface the refresher needs.
type GroupStore interface {
	ListActiveRecurringGroups(ctx context.Context) ([]persistence.Group, error)
	UpdateNextOccurrence(ctx context.Context, groupID string, next time.Time) error
}

// Refresher periodically advances next_occurrence for active recurring
// groups whose projected firing has passed. The request path never
// depends on it; stale values are also recomputed on read.
type Refresher struct {
	store  GroupStore
	cron   *cron.Cron
	now    func() time.Time
	logger *slog.Logger
}

func NewRefresher(store GroupStore, now func() time.Time, logger *slog.Logger) *Refresher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: store, now: now, logger: logger}
}

// Start schedules the refresh on the given cron spec and launches the
// scheduler. Stop must be called on shutdown.
func (r *Refresher) Start(spec string) error {
	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("next occurrence refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	r.cron = c
	r.logger.Info("next occurrence refresher started", "schedule", spec)
	return nil
}

// Stop halts the cron scheduler and waits for a running job to finish.
func (r *Refresher) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
}

// RunOnce advances every stale next_occurrence once. Per-group failures
// are logged and skipped so one bad row cannot stall the sweep.
func (r *Refresher) RunOnce(ctx context.Context) error {
	groups, err := r.store.ListActiveRecurringGroups(ctx)
	if err != nil {
		return fmt.Errorf("listing recurring groups: %w", err)
	}

	now := r.now().UTC()
	advanced := 0
	for _, group := range groups {
		next, ok := staleNext(group, now)
		if !ok {
			continue
		}
		if err := r.store.UpdateNextOccurrence(ctx, group.ID, next); err != nil {
			r.logger.Warn("failed to advance next occurrence", "group_id", group.ID, "error", err)
			continue
		}
		advanced++
	}

	if advanced > 0 {
		r.logger.Info("advanced stale next occurrences", "count", advanced)
	}
	return nil
}

// staleNext reports the recomputed next occurrence for a group whose
// stored value has passed. Groups whose series has ended, or whose
// stored value is still in the future, report false.
func staleNext(group persistence.Group, now time.Time) (time.Time, bool) {
	if group.NextOccurrence == nil || group.ScheduledTime == nil || group.Pattern == nil {
		return time.Time{}, false
	}
	if group.NextOccurrence.After(now) {
		return time.Time{}, false
	}

	def := recurrence.Definition{
		Pattern:    recurrence.Pattern(*group.Pattern),
		Interval:   1,
		DaysOfWeek: group.DaysOfWeek,
		EndDate:    group.RecurrenceEnd,
	}
	if group.Interval != nil {
		def.Interval = *group.Interval
	}

	next := recurrence.NextOccurrence(*group.ScheduledTime, now, def)
	if def.EndDate != nil {
		end := def.EndDate.UTC()
		cutoff := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
		if next.After(cutoff) {
			return time.Time{}, false
		}
	}
	if !next.After(*group.NextOccurrence) {
		return time.Time{}, false
	}
	return next, true
}
