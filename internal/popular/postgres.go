package popular

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresSnapshotRepository implements SnapshotRepository on PostgreSQL.
//
// Replace runs as a single transaction (delete-by-period then insert) so a
// concurrent reader sees the complete old snapshot or the complete new one.
// The read path relies on the unique (period, rank) index for keyset scans
// and holds no locks across requests.
type PostgresSnapshotRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSnapshotRepository creates a new Postgres-backed snapshot repository.
func NewPostgresSnapshotRepository(db *sql.DB, logger *slog.Logger) *PostgresSnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSnapshotRepository{db: db, logger: logger}
}

// Replace atomically swaps the period's snapshot for the given entries.
func (r *PostgresSnapshotRepository) Replace(ctx context.Context, period Period, entries []*RankedEntry) error {
	if err := ValidateSnapshot(period, entries); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback snapshot replace",
				slog.String("error", err.Error()),
				slog.String("period", string(period)))
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM popular_reviews WHERE period = $1`, string(period)); err != nil {
		return fmt.Errorf("failed to clear snapshot for period %s: %w", period, err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("popular_reviews",
			"period", "rank", "score", "review_id", "like_count", "comment_count", "rating", "computed_at"))
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot copy: %w", err)
		}
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, string(e.Period), e.Rank, e.Score, e.ReviewID,
				e.LikeCount, e.CommentCount, e.Rating, e.ComputedAt); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("failed to stage snapshot row rank %d: %w", e.Rank, err)
			}
		}
		// Flush the COPY buffer.
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to flush snapshot copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("failed to close snapshot copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot replace: %w", err)
	}

	r.logger.Info("snapshot replaced",
		slog.String("period", string(period)),
		slog.Int("entries", len(entries)))
	return nil
}

// FindWithCursor answers a pagination request with a keyset query.
func (r *PostgresSnapshotRepository) FindWithCursor(ctx context.Context, q PageQuery) ([]*RankedEntry, string, error) {
	if err := q.Validate(); err != nil {
		return nil, "", err
	}
	cursorRank, hasCursor, _ := DecodeCursor(q.Cursor)

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Period != nil {
		conds = append(conds, "period = "+arg(string(*q.Period)))
	}

	// Strict-after keyset conditions. Rank is the unique primary key within
	// a period; computed_at is the secondary reference for the combined seek.
	gt := ">"
	if q.Direction == DirectionDesc {
		gt = "<"
	}
	switch {
	case hasCursor && q.After != nil:
		conds = append(conds, fmt.Sprintf("(rank %s %s OR (rank = %s AND computed_at %s %s))",
			gt, arg(cursorRank), arg(cursorRank), gt, arg(*q.After)))
	case hasCursor:
		conds = append(conds, fmt.Sprintf("rank %s %s", gt, arg(cursorRank)))
	case q.After != nil:
		conds = append(conds, fmt.Sprintf("computed_at %s %s", gt, arg(*q.After)))
	}

	order := "ASC"
	if q.Direction == DirectionDesc {
		order = "DESC"
	}

	query := `SELECT period, rank, score, review_id, like_count, comment_count, rating, computed_at
		FROM popular_reviews`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// Fetch one extra row to decide whether a continuation cursor is needed.
	query += fmt.Sprintf(" ORDER BY rank %s, period %s LIMIT %s", order, order, arg(q.Limit+1))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var results []*RankedEntry
	for rows.Next() {
		var e RankedEntry
		var period string
		if err := rows.Scan(&period, &e.Rank, &e.Score, &e.ReviewID,
			&e.LikeCount, &e.CommentCount, &e.Rating, &e.ComputedAt); err != nil {
			return nil, "", fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		e.Period = Period(period)
		results = append(results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read snapshot rows: %w", err)
	}

	var nextCursor string
	if len(results) > q.Limit {
		results = results[:q.Limit]
		nextCursor = EncodeCursor(results[len(results)-1])
	}
	return results, nextCursor, nil
}

// CountByPeriodSince counts entries for a period computed at or after since.
func (r *PostgresSnapshotRepository) CountByPeriodSince(ctx context.Context, period Period, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM popular_reviews WHERE period = $1 AND computed_at >= $2`,
		string(period), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshot entries: %w", err)
	}
	return count, nil
}

// DeleteByPeriod removes every entry of the period.
func (r *PostgresSnapshotRepository) DeleteByPeriod(ctx context.Context, period Period) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM popular_reviews WHERE period = $1`, string(period)); err != nil {
		return fmt.Errorf("failed to delete snapshot for period %s: %w", period, err)
	}
	return nil
}

// DeleteByReviewIDs prunes entries referencing the given reviews across all
// periods. The next aggregation pass per period restores contiguous ranks.
func (r *PostgresSnapshotRepository) DeleteByReviewIDs(ctx context.Context, reviewIDs []string) (int64, error) {
	if len(reviewIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM popular_reviews WHERE review_id = ANY($1)`, pq.Array(reviewIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshot entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	return removed, nil
}
