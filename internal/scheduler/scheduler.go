// Package scheduler runs the trip store's periodic jobs: re-deriving trip
// statuses when the date rolls over, archiving trips that ended long ago and
// reloading the driver directory.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Jobs is the work the scheduler triggers.
// *service.ScheduleService satisfies it.
type Jobs interface {
	RecomputeStatuses() int
	ArchiveAuto(ctx context.Context, cutoffDays int) (int, error)
}

// Loader reloads cached reference data.
// *service.FleetService satisfies it.
type Loader interface {
	Load(ctx context.Context) error
}

// Config holds the cron specs, with a leading seconds field.
type Config struct {
	// StatusSchedule re-derives statuses. Defaults to one second past
	// midnight.
	StatusSchedule string
	// ArchiveSchedule runs ArchiveAuto. Empty disables auto-archiving.
	ArchiveSchedule string
	// ArchiveCutoffDays is passed to ArchiveAuto.
	ArchiveCutoffDays int
	// Directory is reloaded on DirectorySchedule. Either being empty
	// disables the job.
	Directory         Loader
	DirectorySchedule string
	// Location is the zone the specs are read in. Nil means time.Local.
	Location *time.Location
}

// DefaultStatusSchedule fires one second after midnight.
const DefaultStatusSchedule = "1 0 0 * * *"

// archiveTimeout bounds one auto-archive run.
const archiveTimeout = 2 * time.Minute

// directoryTimeout bounds one directory reload.
const directoryTimeout = 30 * time.Second

// Scheduler owns a cron instance wired to Jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      Jobs
	cutoff    int
	directory Loader
	log       *slog.Logger
}

// New validates the specs in cfg and registers the jobs. Nothing runs
// until Start.
func New(jobs Jobs, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StatusSchedule == "" {
		cfg.StatusSchedule = DefaultStatusSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:      jobs,
		cutoff:    cfg.ArchiveCutoffDays,
		directory: cfg.Directory,
		log:       log,
	}

	if _, err := s.cron.AddFunc(cfg.StatusSchedule, s.RunStatusJob); err != nil {
		return nil, fmt.Errorf("scheduler.New: status schedule %q: %w", cfg.StatusSchedule, err)
	}
	if cfg.ArchiveSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.ArchiveSchedule, s.RunArchiveJob); err != nil {
			return nil, fmt.Errorf("scheduler.New: archive schedule %q: %w", cfg.ArchiveSchedule, err)
		}
	}
	if cfg.DirectorySchedule != "" && cfg.Directory != nil {
		if _, err := s.cron.AddFunc(cfg.DirectorySchedule, s.RunDirectoryJob); err != nil {
			return nil, fmt.Errorf("scheduler.New: directory schedule %q: %w", cfg.DirectorySchedule, err)
		}
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// RunStatusJob re-derives every live trip's status now.
func (s *Scheduler) RunStatusJob() {
	start := time.Now()
	n := s.jobs.RecomputeStatuses()
	s.log.Info("statuses recomputed", "changed", n, "duration", time.Since(start))
}

// RunArchiveJob archives live trips past the cutoff now.
func (s *Scheduler) RunArchiveJob() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.jobs.ArchiveAuto(ctx, s.cutoff)
	if err != nil {
		s.log.Error("auto-archive failed", "error", err, "archived", n)
		return
	}
	s.log.Info("auto-archive finished", "archived", n, "cutoff_days", s.cutoff, "duration", time.Since(start))
}

// RunDirectoryJob reloads the driver directory now, so edits made by other
// processes reach the trip annotations.
func (s *Scheduler) RunDirectoryJob() {
	if s.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
	defer cancel()

	if err := s.directory.Load(ctx); err != nil {
		s.log.Error("driver directory reload failed", "error", err)
		return
	}
	s.log.Debug("driver directory reloaded")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
