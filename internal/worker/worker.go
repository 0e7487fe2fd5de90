// Package worker runs periodic background jobs on a shared ticker.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arunika-id/arunika/internal/telemetry"
)

// Job is one unit of periodic background work.
type Job interface {
	// Name identifies the job in logs and metrics.
	Name() string

	// Run executes one pass of the job.
	Run(ctx context.Context) error
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// SweepInterval is how often every registered job runs
	SweepInterval time.Duration
}

// Worker runs registered jobs sequentially on each tick. Jobs here are
// sweeps over the store, so one pass at a time is enough; overlapping
// passes would just contend on the same rows.
type Worker struct {
	config Config
	jobs   []Job
	logger *slog.Logger
}

// NewWorker creates a new background job worker
func NewWorker(config Config, logger *slog.Logger, jobs ...Job) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		jobs:   jobs,
		logger: logger,
	}
}

// Start begins processing jobs until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"sweep_interval", w.config.SweepInterval,
		"jobs", len(w.jobs),
	)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			w.runAll(ctx)
		}
	}
}

// runAll executes one pass of every registered job.
func (w *Worker) runAll(ctx context.Context) {
	for _, job := range w.jobs {
		if ctx.Err() != nil {
			return
		}
		w.runOne(ctx, job)
	}
}

func (w *Worker) runOne(ctx context.Context, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.Name()).Observe(duration.Seconds())
	}

	if err != nil {
		w.logger.Error("job failed",
			"worker_id", w.config.WorkerID,
			"job_type", job.Name(),
			"duration", duration,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(job.Name()).Inc()
		}
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(job.Name()).Inc()
	}
	w.logger.Debug("job completed",
		"worker_id", w.config.WorkerID,
		"job_type", job.Name(),
		"duration", duration,
	)
}
