package popular

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner is the aggregation entry point the job drives. Implemented by
// Aggregator; declared as an interface so tests can substitute failures.
type Runner interface {
	Run(ctx context.Context, period Period) (int, error)
	PruneDeleted(ctx context.Context) (int64, error)
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncRunsTotal(period, status string)
	ObserveRunDuration(period string, seconds float64)
	IncRunErrors(period, errorType string)
	SetSnapshotSize(period string, entries float64)
}

// DefaultAggregationInterval is the default interval between recompute cycles.
const DefaultAggregationInterval = 10 * time.Minute

// DefaultAggregationTimeout is the default timeout for a single recompute cycle.
const DefaultAggregationTimeout = 2 * time.Minute

// AggregationJobConfig configures one period's recompute job.
type AggregationJobConfig struct {
	// Period this job recomputes.
	Period Period
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout for each recompute cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for centralized background job tracking.
	Metrics JobMetrics
}

// AggregationJob periodically recomputes the popularity snapshot for one
// period. Period types run as independent jobs on independent cadences; no
// cross-period coordination is needed because each Replace is scoped to its
// own period.
type AggregationJob struct {
	config AggregationJobConfig
	runner Runner

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAggregationJob creates a recompute job for the configured period.
func NewAggregationJob(config AggregationJobConfig, runner Runner) *AggregationJob {
	if config.Interval == 0 {
		config.Interval = DefaultAggregationInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultAggregationTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &AggregationJob{
		config: config,
		runner: runner,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *AggregationJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the recompute job to stop and waits for it to finish.
func (j *AggregationJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *AggregationJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the recompute job.
func (j *AggregationJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("aggregation job stopping due to context cancellation",
				"period", string(j.config.Period))
			return
		case <-j.stopCh:
			j.config.Logger.Info("aggregation job stopping due to stop signal",
				"period", string(j.config.Period))
			return
		case <-ticker.C:
			j.recompute(ctx)
		}
	}
}

// recompute runs one aggregation cycle under the configured timeout.
// An aborted or failed cycle leaves the previous snapshot untouched; the
// next tick retries in full.
func (j *AggregationJob) recompute(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	period := string(j.config.Period)
	startTime := time.Now()

	entries, err := j.runner.Run(ctx, j.config.Period)
	duration := time.Since(startTime).Seconds()

	if err != nil {
		// Surface loudly: a ranking inconsistency must never be dropped
		// silently. Reads stay on the previous snapshot.
		j.config.Logger.Error("aggregation run failed",
			"period", period,
			"duration_seconds", duration,
			"error", err)
		if j.config.Metrics != nil {
			j.config.Metrics.IncRunsTotal(period, "failure")
			j.config.Metrics.ObserveRunDuration(period, duration)
			if ctx.Err() != nil {
				j.config.Metrics.IncRunErrors(period, "timeout")
			} else {
				j.config.Metrics.IncRunErrors(period, "aggregation_error")
			}
		}
		return
	}

	if j.config.Metrics != nil {
		j.config.Metrics.IncRunsTotal(period, "success")
		j.config.Metrics.ObserveRunDuration(period, duration)
		j.config.Metrics.SetSnapshotSize(period, float64(entries))
	}

	if removed, err := j.runner.PruneDeleted(ctx); err != nil {
		j.config.Logger.Warn("failed to prune deleted reviews",
			"period", period,
			"error", err)
	} else if removed > 0 {
		j.config.Logger.Debug("pruned stale snapshot entries",
			"period", period,
			"removed", removed)
	}

	j.config.Logger.Info("aggregation cycle completed",
		"period", period,
		"entries", entries,
		"duration_seconds", duration)
}

// RecomputeNow immediately runs one cycle without waiting for the ticker.
// Useful for tests and for operator-triggered recomputes.
func (j *AggregationJob) RecomputeNow() {
	j.recompute(context.Background())
}
