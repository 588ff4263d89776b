// Package jobs runs the background work of the server process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds one reminder pass.
const runTimeout = 5 * time.Minute

// OverdueReminder writes reminders for overdue loans and reports how many
// were written.
type OverdueReminder interface {
	RemindOverdue(ctx context.Context) (int64, error)
}

// Scheduler triggers the overdue reminder on a cron schedule.  Runs never
// overlap; a run still in progress when the next one is due skips it.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler registers the reminder under spec, a standard five field
// cron expression evaluated in UTC.
func NewScheduler(ctx context.Context, spec string, r OverdueReminder, log *slog.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() { RunReminders(ctx, r, log) }); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("reminder job scheduled", "next", e.Next)
	}
}

// Stop waits for a running pass to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("reminder job still running at shutdown")
	}
}

// RunReminders performs one reminder pass and logs the outcome.
func RunReminders(ctx context.Context, r OverdueReminder, log *slog.Logger) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	start := time.Now()
	n, err := r.RemindOverdue(ctx)
	if err != nil {
		log.Error("overdue reminders failed", "written", n, "err", err)
		return n, err
	}
	log.Info("overdue reminders sent", "written", n, "took_ms", time.Since(start).Milliseconds())
	return n, nil
}
