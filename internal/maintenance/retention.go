// Package maintenance runs scheduled housekeeping for the pomodoro records.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// Pruner drops daily record entries dated before the given instant.
type Pruner interface {
	PruneRecords(ctx context.Context, before time.Time) (int, error)
}

// Retention prunes daily records older than a fixed number of days on a cron
// schedule. A zero retention keeps records forever and schedules nothing.
type Retention struct {
	days     int
	pruner   Pruner
	clock    clockwork.Clock
	logger   *slog.Logger
	location *time.Location
	cron     *cron.Cron
}

type Option func(*Retention)

func WithClock(c clockwork.Clock) Option {
	return func(r *Retention) { r.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retention) { r.logger = logger }
}

func WithLocation(loc *time.Location) Option {
	return func(r *Retention) { r.location = loc }
}

func NewRetention(spec string, days int, pruner Pruner, opts ...Option) (*Retention, error) {
	if days < 0 {
		return nil, fmt.Errorf("retention days must not be negative, got %d", days)
	}
	r := &Retention{
		days:     days,
		pruner:   pruner,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	if days == 0 {
		return r, nil
	}

	r.cron = cron.New(cron.WithLocation(r.location))
	if _, err := r.cron.AddFunc(spec, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("prune pomodoro records", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", spec, err)
	}
	return r, nil
}

// Enabled reports whether a schedule was installed.
func (r *Retention) Enabled() bool {
	return r.cron != nil
}

// Cutoff is the instant before which records are dropped.
func (r *Retention) Cutoff() time.Time {
	return r.clock.Now().In(r.location).AddDate(0, 0, -r.days)
}

func (r *Retention) RunOnce(ctx context.Context) (int, error) {
	if r.days == 0 {
		return 0, nil
	}
	cutoff := r.Cutoff()
	removed, err := r.pruner.PruneRecords(ctx, cutoff)
	if err != nil {
		return removed, err
	}
	r.logger.Info("pruned pomodoro records", "removed", removed, "before", cutoff.Format("2006-01-02"))
	return removed, nil
}

func (r *Retention) Start() {
	if r.cron != nil {
		r.cron.Start()
	}
}

// Stop halts the schedule and waits for a running prune to finish or ctx to
// expire.
func (r *Retention) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
