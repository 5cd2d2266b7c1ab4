package review

import (
	"context"
	"time"

	"github.com/onnwee/reviewrank/internal/popular"
)

// EngagementAdapter exposes a review Repository as the engagement source the
// ranking aggregator reads from.
type EngagementAdapter struct {
	repo Repository
}

// NewEngagementAdapter wraps the given repository.
func NewEngagementAdapter(repo Repository) *EngagementAdapter {
	return &EngagementAdapter{repo: repo}
}

// ListEngagement returns engagement metrics for non-deleted reviews created
// at or after since.
func (a *EngagementAdapter) ListEngagement(ctx context.Context, since *time.Time) ([]popular.Engagement, error) {
	reviews, err := a.repo.ListEngagement(ctx, since)
	if err != nil {
		return nil, err
	}

	items := make([]popular.Engagement, len(reviews))
	for i, r := range reviews {
		items[i] = popular.Engagement{
			ReviewID:     r.ID,
			Rating:       r.Rating,
			LikeCount:    r.LikeCount,
			CommentCount: r.CommentCount,
			CreatedAt:    r.CreatedAt,
		}
	}
	return items, nil
}

// ListDeletedReviewIDs returns IDs of soft-deleted reviews.
func (a *EngagementAdapter) ListDeletedReviewIDs(ctx context.Context) ([]string, error) {
	return a.repo.ListDeletedIDs(ctx)
}
