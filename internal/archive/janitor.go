// Package archive holds the maintenance loop for the durable search
// store.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tripradar/tripradar/internal/metrics"
	"github.com/tripradar/tripradar/internal/repository"
)

// Janitor deletes archive rows past their sliding expiry on a cron
// schedule.
type Janitor struct {
	archive  repository.Archive
	schedule cron.Schedule
	logger   *slog.Logger
}

func NewJanitor(archive repository.Archive, cronExpr string, logger *slog.Logger) (*Janitor, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse janitor cron %q: %w", cronExpr, err)
	}
	return &Janitor{
		archive:  archive,
		schedule: schedule,
		logger:   logger.With("component", "janitor"),
	}, nil
}

// Start blocks until the context is cancelled, purging at each cron
// tick.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started", "next_run", j.schedule.Next(time.Now()))
	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor shut down")
			return
		case <-timer.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	purged, err := j.archive.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("purge expired searches", "error", err)
		return
	}
	if purged > 0 {
		j.logger.Info("purged expired searches", "count", purged)
	}
	metrics.JanitorPurgedTotal.Add(float64(purged))
}
