package popular

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/onnwee/reviewrank/internal/scoring"
)

// Engagement carries the per-review metrics the aggregator scores.
type Engagement struct {
	ReviewID     string
	Rating       float64
	LikeCount    int
	CommentCount int
	CreatedAt    time.Time
}

// EngagementSource provides read-only engagement data for aggregation.
// The aggregator never mutates the source.
type EngagementSource interface {
	// ListEngagement returns metrics for reviews with activity at or after
	// since. A nil since means no lower bound (the all-time period).
	ListEngagement(ctx context.Context, since *time.Time) ([]Engagement, error)

	// ListDeletedReviewIDs returns IDs of reviews removed from the system,
	// so stale snapshot entries can be pruned lazily.
	ListDeletedReviewIDs(ctx context.Context) ([]string, error)
}

// Aggregator recomputes and atomically publishes the ranked snapshot for one
// period at a time. Runs are idempotent: the same input data produces the
// same snapshot, and a failed run leaves the previous snapshot intact.
type Aggregator struct {
	source    EngagementSource
	snapshots SnapshotRepository
	weights   *scoring.Weights
	logger    *slog.Logger
	now       func() time.Time
}

// NewAggregator creates an aggregator over the given source and snapshot
// store. A nil weights falls back to the default calibration.
func NewAggregator(source EngagementSource, snapshots SnapshotRepository, weights *scoring.Weights, logger *slog.Logger) *Aggregator {
	if weights == nil {
		weights = scoring.DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		source:    source,
		snapshots: snapshots,
		weights:   weights,
		logger:    logger,
		now:       time.Now,
	}
}

// Run recomputes the snapshot for one period and returns the number of
// ranked entries published.
func (a *Aggregator) Run(ctx context.Context, period Period) (int, error) {
	if !period.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	now := a.now().UTC()
	var since *time.Time
	if lookback, bounded := period.Lookback(); bounded {
		t := now.Add(-lookback)
		since = &t
	}

	items, err := a.source.ListEngagement(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list engagement for period %s: %w", period, err)
	}

	scored := make([]scoredItem, 0, len(items))
	for _, item := range items {
		// All-time rankings skip recency decay; there is no window for a
		// review to age out of.
		var age time.Duration
		if since != nil {
			age = now.Sub(item.CreatedAt)
			if age < 0 {
				age = 0
			}
		}

		score, err := scoring.Score(scoring.Metrics{
			Rating:       item.Rating,
			LikeCount:    item.LikeCount,
			CommentCount: item.CommentCount,
		}, age, a.weights)
		if err != nil {
			// Bad engagement rows are skipped, not fatal: one corrupt
			// review must not block the whole period's ranking.
			a.logger.Warn("skipping review with invalid metrics",
				slog.String("review_id", item.ReviewID),
				slog.String("period", string(period)),
				slog.String("error", err.Error()))
			continue
		}
		scored = append(scored, scoredItem{engagement: item, score: score})
	}

	// Strict total order: score descending, review ID ascending on ties.
	// The tie-break makes re-runs deterministic so ranks never flap
	// between identical inputs.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].engagement.ReviewID < scored[j].engagement.ReviewID
	})

	entries := make([]*RankedEntry, len(scored))
	for i, s := range scored {
		entries[i] = &RankedEntry{
			Period:       period,
			Rank:         i + 1,
			Score:        s.score,
			ReviewID:     s.engagement.ReviewID,
			LikeCount:    s.engagement.LikeCount,
			CommentCount: s.engagement.CommentCount,
			Rating:       s.engagement.Rating,
			ComputedAt:   now,
		}
	}

	if err := a.snapshots.Replace(ctx, period, entries); err != nil {
		return 0, fmt.Errorf("failed to replace snapshot for period %s: %w", period, err)
	}

	a.logger.Info("period aggregation completed",
		slog.String("period", string(period)),
		slog.Int("eligible", len(items)),
		slog.Int("ranked", len(entries)))
	return len(entries), nil
}

// PruneDeleted removes snapshot entries referencing reviews that have been
// deleted from the system. Called between aggregation passes; each period's
// next Run restores contiguous ranks.
func (a *Aggregator) PruneDeleted(ctx context.Context) (int64, error) {
	ids, err := a.source.ListDeletedReviewIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list deleted reviews: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	removed, err := a.snapshots.DeleteByReviewIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to prune deleted reviews: %w", err)
	}
	if removed > 0 {
		a.logger.Info("pruned snapshot entries for deleted reviews",
			slog.Int("deleted_reviews", len(ids)),
			slog.Int64("entries_removed", removed))
	}
	return removed, nil
}

type scoredItem struct {
	engagement Engagement
	score      float64
}
