package review

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed review repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Create inserts a new review with a generated UUID.
func (r *PostgresRepository) Create(ctx context.Context, review *Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, author_id, content, rating, like_count, comment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, review.ID, review.AuthorID, review.Content, review.Rating,
		review.LikeCount, review.CommentCount, review.CreatedAt, review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its UUID, excluding soft-deleted reviews.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	var review Review
	err := r.db.QueryRowContext(ctx, `
		SELECT id, author_id, content, rating, like_count, comment_count, created_at, updated_at
		FROM reviews
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&review.ID, &review.AuthorID, &review.Content, &review.Rating,
		&review.LikeCount, &review.CommentCount, &review.CreatedAt, &review.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

// Delete soft-deletes a review by setting deleted_at.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// ListEngagement returns non-deleted reviews created at or after since.
func (r *PostgresRepository) ListEngagement(ctx context.Context, since *time.Time) ([]*Review, error) {
	query := `
		SELECT id, author_id, content, rating, like_count, comment_count, created_at, updated_at
		FROM reviews
		WHERE deleted_at IS NULL`
	var args []interface{}
	if since != nil {
		query += ` AND created_at >= $1`
		args = append(args, *since)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagement: %w", err)
	}
	defer rows.Close()

	var results []*Review
	for rows.Next() {
		var review Review
		if err := rows.Scan(&review.ID, &review.AuthorID, &review.Content, &review.Rating,
			&review.LikeCount, &review.CommentCount, &review.CreatedAt, &review.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		results = append(results, &review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}
	return results, nil
}

// ListDeletedIDs returns the IDs of soft-deleted reviews.
func (r *PostgresRepository) ListDeletedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM reviews WHERE deleted_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted reviews: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan review id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review ids: %w", err)
	}
	return ids, nil
}
