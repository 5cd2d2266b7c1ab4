// Package review provides models and repository for the review engagement
// data the popularity ranking is computed from.
package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for review operations.
var (
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewDeleted  = errors.New("review has been deleted")
)

// Review represents one user review with its cached engagement counters.
// Like and comment counts are maintained by their own write paths; the
// ranking core only ever reads them.
type Review struct {
	ID           string     `json:"id"`
	AuthorID     string     `json:"author_id"`
	Content      string     `json:"content"`
	Rating       float64    `json:"rating"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Repository defines the interface for review data operations.
type Repository interface {
	// Create inserts a new review with a generated UUID.
	Create(ctx context.Context, review *Review) error

	// GetByID retrieves a review by its UUID, excluding soft-deleted reviews.
	GetByID(ctx context.Context, id string) (*Review, error)

	// Delete soft-deletes a review by setting deleted_at. The popularity
	// snapshots referencing it are pruned lazily by the aggregation jobs.
	Delete(ctx context.Context, id string) error

	// ListEngagement returns the engagement metrics of non-deleted reviews
	// created at or after since. A nil since returns all reviews.
	ListEngagement(ctx context.Context, since *time.Time) ([]*Review, error)

	// ListDeletedIDs returns the IDs of soft-deleted reviews, feeding the
	// lazy snapshot cleanup.
	ListDeletedIDs(ctx context.Context) ([]string, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reviews map[string]*Review
}

// NewInMemoryRepository creates a new in-memory review repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		reviews: make(map[string]*Review),
	}
}

// Create inserts a new review with a generated UUID.
func (r *InMemoryRepository) Create(ctx context.Context, review *Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	reviewCopy := *review
	r.reviews[review.ID] = &reviewCopy
	return nil
}

// GetByID retrieves a review by its UUID, excluding soft-deleted reviews.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	review, ok := r.reviews[id]
	if !ok || review.DeletedAt != nil {
		return nil, ErrReviewNotFound
	}

	reviewCopy := *review
	return &reviewCopy, nil
}

// Delete soft-deletes a review by setting deleted_at.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[id]
	if !ok {
		return ErrReviewNotFound
	}
	// Already deleted - treat as not found for idempotency
	if review.DeletedAt != nil {
		return ErrReviewNotFound
	}

	now := time.Now()
	review.DeletedAt = &now
	return nil
}

// ListEngagement returns non-deleted reviews created at or after since.
func (r *InMemoryRepository) ListEngagement(ctx context.Context, since *time.Time) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Review
	for _, review := range r.reviews {
		if review.DeletedAt != nil {
			continue
		}
		if since != nil && review.CreatedAt.Before(*since) {
			continue
		}
		reviewCopy := *review
		results = append(results, &reviewCopy)
	}
	return results, nil
}

// ListDeletedIDs returns the IDs of soft-deleted reviews.
func (r *InMemoryRepository) ListDeletedIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, review := range r.reviews {
		if review.DeletedAt != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
