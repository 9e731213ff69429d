// Package scheduler polls for due sources and hands them to a processing
// sink.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Config configures the scheduler.
type Config struct {
	// CheckInterval is how often to poll for due sources. Default: 1 minute.
	CheckInterval time.Duration
	// MaxFailCount is the failure count at which a source stops being
	// scheduled. Default: 10.
	MaxFailCount int
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = 10
	}
}

// JobSink receives each due source. Errors are logged, not retried; the
// source comes due again on its own schedule.
type JobSink func(ctx context.Context, src *store.Source) error

// Scheduler periodically checks the store for due sources.
type Scheduler struct {
	store  *store.Store
	sink   JobSink
	config Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(s *store.Store, sink JobSink, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: s, sink: sink, config: cfg, logger: logger}
}

// Run polls on a ticker until ctx is cancelled. The first poll happens
// immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.dispatchDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.store.DueSources(ctx, s.config.MaxFailCount)
	if err != nil {
		s.logger.Error("scheduler: due sources", "error", err)
		return
	}
	for _, src := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.sink(ctx, src); err != nil {
			s.logger.Warn("scheduler: process source", "source_id", src.ID, "error", err)
		}
	}
	if len(due) > 0 {
		s.logger.Debug("scheduler: dispatched", "sources", len(due))
	}
}
