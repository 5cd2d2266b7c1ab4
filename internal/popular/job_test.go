package popular

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubRunner records invocations and returns canned results.
type stubRunner struct {
	mu        sync.Mutex
	runCount  int
	runErr    error
	entries   int
	pruned    int64
	pruneErr  error
	runPeriod Period
	blockFor  time.Duration
}

func (r *stubRunner) Run(ctx context.Context, period Period) (int, error) {
	r.mu.Lock()
	r.runCount++
	r.runPeriod = period
	block := r.blockFor
	r.mu.Unlock()

	if block > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(block):
		}
	}
	if r.runErr != nil {
		return 0, r.runErr
	}
	return r.entries, nil
}

func (r *stubRunner) PruneDeleted(ctx context.Context) (int64, error) {
	return r.pruned, r.pruneErr
}

func (r *stubRunner) runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runCount
}

// recordingMetrics captures JobMetrics calls for assertions.
type recordingMetrics struct {
	mu            sync.Mutex
	runs          map[string]int
	errorTypes    map[string]int
	durations     int
	snapshotSizes map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		runs:          make(map[string]int),
		errorTypes:    make(map[string]int),
		snapshotSizes: make(map[string]float64),
	}
}

func (m *recordingMetrics) IncRunsTotal(period, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[period+"/"+status]++
}

func (m *recordingMetrics) ObserveRunDuration(period string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *recordingMetrics) IncRunErrors(period, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorTypes[errorType]++
}

func (m *recordingMetrics) SetSnapshotSize(period string, entries float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotSizes[period] = entries
}

// TestAggregationJob_StartStop verifies lifecycle management.
func TestAggregationJob_StartStop(t *testing.T) {
	job := NewAggregationJob(AggregationJobConfig{
		Period:   PeriodDaily,
		Interval: time.Hour, // never ticks during the test
		Logger:   testLogger(),
	}, &stubRunner{})

	if job.IsRunning() {
		t.Error("job should not be running before Start")
	}

	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !job.IsRunning() {
		t.Error("job should be running after Start")
	}

	// Second Start is a no-op.
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	job.Stop()
	if job.IsRunning() {
		t.Error("job should not be running after Stop")
	}

	// Second Stop is a no-op.
	job.Stop()
}

// TestAggregationJob_TickRecomputes verifies the ticker drives recomputes.
func TestAggregationJob_TickRecomputes(t *testing.T) {
	runner := &stubRunner{entries: 3}
	job := NewAggregationJob(AggregationJobConfig{
		Period:   PeriodWeekly,
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
		Logger:   testLogger(),
	}, runner)

	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer job.Stop()

	deadline := time.After(2 * time.Second)
	for runner.runs() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 recomputes, got %d", runner.runs())
		case <-time.After(5 * time.Millisecond):
		}
	}

	runner.mu.Lock()
	period := runner.runPeriod
	runner.mu.Unlock()
	if period != PeriodWeekly {
		t.Errorf("expected recompute for weekly period, got %s", period)
	}
}

// TestAggregationJob_RecomputeNow verifies the immediate trigger records
// success metrics and snapshot size.
func TestAggregationJob_RecomputeNow(t *testing.T) {
	runner := &stubRunner{entries: 7, pruned: 2}
	metrics := newRecordingMetrics()
	job := NewAggregationJob(AggregationJobConfig{
		Period:  PeriodDaily,
		Timeout: time.Second,
		Logger:  testLogger(),
		Metrics: metrics,
	}, runner)

	job.RecomputeNow()

	if runner.runs() != 1 {
		t.Fatalf("expected exactly 1 run, got %d", runner.runs())
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.runs["daily/success"] != 1 {
		t.Errorf("expected 1 successful run recorded, got %d", metrics.runs["daily/success"])
	}
	if metrics.snapshotSizes["daily"] != 7 {
		t.Errorf("expected snapshot size 7 recorded, got %f", metrics.snapshotSizes["daily"])
	}
	if metrics.durations != 1 {
		t.Errorf("expected 1 duration observation, got %d", metrics.durations)
	}
}

// TestAggregationJob_FailureMetrics verifies failure classification.
func TestAggregationJob_FailureMetrics(t *testing.T) {
	runner := &stubRunner{runErr: errors.New("boom")}
	metrics := newRecordingMetrics()
	job := NewAggregationJob(AggregationJobConfig{
		Period:  PeriodMonthly,
		Timeout: time.Second,
		Logger:  testLogger(),
		Metrics: metrics,
	}, runner)

	job.RecomputeNow()

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.runs["monthly/failure"] != 1 {
		t.Errorf("expected 1 failed run recorded, got %d", metrics.runs["monthly/failure"])
	}
	if metrics.errorTypes["aggregation_error"] != 1 {
		t.Errorf("expected aggregation_error classification, got %+v", metrics.errorTypes)
	}
}

// TestAggregationJob_TimeoutMetrics verifies timeout classification.
func TestAggregationJob_TimeoutMetrics(t *testing.T) {
	runner := &stubRunner{blockFor: time.Second}
	metrics := newRecordingMetrics()
	job := NewAggregationJob(AggregationJobConfig{
		Period:  PeriodDaily,
		Timeout: 10 * time.Millisecond,
		Logger:  testLogger(),
		Metrics: metrics,
	}, runner)

	job.RecomputeNow()

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.errorTypes["timeout"] != 1 {
		t.Errorf("expected timeout classification, got %+v", metrics.errorTypes)
	}
}

// TestAggregationJob_ContextCancelStops verifies the job exits when the
// parent context is cancelled.
func TestAggregationJob_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := NewAggregationJob(AggregationJobConfig{
		Period:   PeriodDaily,
		Interval: time.Hour,
		Logger:   testLogger(),
	}, &stubRunner{})

	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	// Stop must still return promptly after context cancellation.
	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

// TestAggregationJob_Defaults verifies configuration defaulting.
func TestAggregationJob_Defaults(t *testing.T) {
	job := NewAggregationJob(AggregationJobConfig{Period: PeriodDaily}, &stubRunner{})
	if job.config.Interval != DefaultAggregationInterval {
		t.Errorf("expected default interval %v, got %v", DefaultAggregationInterval, job.config.Interval)
	}
	if job.config.Timeout != DefaultAggregationTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultAggregationTimeout, job.config.Timeout)
	}
	if job.config.Logger == nil {
		t.Error("expected default logger to be set")
	}
}
