package popular

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SnapshotRepository defines the storage contract for ranking snapshots.
//
// The aggregator is the sole writer; the read path only calls FindWithCursor.
// Replace must be atomic per period: a concurrent reader observes either the
// complete old snapshot or the complete new one, never a mixture and never
// the empty gap between delete and insert.
type SnapshotRepository interface {
	// Replace swaps the period's snapshot for the given entries as one
	// atomic unit. Entries must be ordered by rank ascending and satisfy
	// ValidateSnapshot. On failure the previous snapshot is left intact.
	Replace(ctx context.Context, period Period, entries []*RankedEntry) error

	// FindWithCursor returns at most q.Limit entries strictly beyond the
	// cursor position in the requested direction, plus the continuation
	// cursor (empty when the listing is exhausted).
	FindWithCursor(ctx context.Context, q PageQuery) ([]*RankedEntry, string, error)

	// CountByPeriodSince counts the period's entries computed at or after
	// the given time. Used for operational checks on aggregation runs.
	CountByPeriodSince(ctx context.Context, period Period, since time.Time) (int64, error)

	// DeleteByPeriod removes every entry of the period.
	DeleteByPeriod(ctx context.Context, period Period) error

	// DeleteByReviewIDs prunes entries referencing removed reviews across
	// all periods. Lazy cleanup; invoked between aggregation passes.
	DeleteByReviewIDs(ctx context.Context, reviewIDs []string) (int64, error)
}

// InMemorySnapshotRepository is an in-memory implementation of
// SnapshotRepository. Thread-safe via RWMutex; Replace swaps the period's
// slice in one critical section, so readers see old or new, never a mix.
type InMemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[Period][]*RankedEntry // ordered by rank ascending
}

// NewInMemorySnapshotRepository creates a new in-memory snapshot repository.
func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{
		snapshots: make(map[Period][]*RankedEntry),
	}
}

// Replace swaps the period's snapshot atomically.
func (r *InMemorySnapshotRepository) Replace(ctx context.Context, period Period, entries []*RankedEntry) error {
	if err := ValidateSnapshot(period, entries); err != nil {
		return err
	}

	// Copy before taking the lock so the swap itself stays short.
	copies := make([]*RankedEntry, len(entries))
	for i, e := range entries {
		entryCopy := *e
		copies[i] = &entryCopy
	}

	r.mu.Lock()
	r.snapshots[period] = copies
	r.mu.Unlock()
	return nil
}

// FindWithCursor answers a pagination request against the current snapshots.
func (r *InMemorySnapshotRepository) FindWithCursor(ctx context.Context, q PageQuery) ([]*RankedEntry, string, error) {
	if err := q.Validate(); err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	var candidates []*RankedEntry
	if q.Period != nil {
		// An unknown period simply matches no rows.
		candidates = append(candidates, r.snapshots[*q.Period]...)
	} else {
		// No period filter: every period's rows are eligible.
		for _, entries := range r.snapshots {
			candidates = append(candidates, entries...)
		}
	}
	r.mu.RUnlock()

	// Order by rank in the requested direction; without a period filter,
	// period name breaks rank collisions across periods deterministically.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if q.Direction == DirectionDesc {
			a, b = b, a
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Period < b.Period
	})

	filtered := candidates[:0:0]
	for _, e := range candidates {
		if q.matchesAfter(e) {
			filtered = append(filtered, e)
		}
	}

	var results []*RankedEntry
	var nextCursor string
	if len(filtered) > q.Limit {
		results = filtered[:q.Limit]
		nextCursor = EncodeCursor(results[len(results)-1])
	} else {
		results = filtered
	}

	// Return copies to prevent external mutation of the snapshot.
	copies := make([]*RankedEntry, len(results))
	for i, e := range results {
		entryCopy := *e
		copies[i] = &entryCopy
	}
	return copies, nextCursor, nil
}

// CountByPeriodSince counts entries for a period computed at or after since.
func (r *InMemorySnapshotRepository) CountByPeriodSince(ctx context.Context, period Period, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, e := range r.snapshots[period] {
		if !e.ComputedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// DeleteByPeriod removes every entry of the period.
func (r *InMemorySnapshotRepository) DeleteByPeriod(ctx context.Context, period Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, period)
	return nil
}

// DeleteByReviewIDs prunes entries referencing the given reviews.
//
// Ranks are left untouched: the next Replace for each period rebuilds the
// contiguous sequence. Readers in between see a ranking with holes rather
// than rows pointing at deleted reviews, which is the lesser staleness.
func (r *InMemorySnapshotRepository) DeleteByReviewIDs(ctx context.Context, reviewIDs []string) (int64, error) {
	if len(reviewIDs) == 0 {
		return 0, nil
	}
	doomed := make(map[string]bool, len(reviewIDs))
	for _, id := range reviewIDs {
		doomed[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for period, entries := range r.snapshots {
		kept := entries[:0:0]
		for _, e := range entries {
			if doomed[e.ReviewID] {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		r.snapshots[period] = kept
	}
	return removed, nil
}
