package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/reviewrank/internal/middleware"
	"github.com/onnwee/reviewrank/internal/popular"
)

// Page size bounds for the popular reviews listing.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// PopularHandler serves the cursor-paginated popular review rankings.
type PopularHandler struct {
	snapshots popular.SnapshotRepository
	logger    *slog.Logger
}

// NewPopularHandler creates a handler over the given snapshot repository.
func NewPopularHandler(snapshots popular.SnapshotRepository, logger *slog.Logger) *PopularHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PopularHandler{snapshots: snapshots, logger: logger}
}

// PopularPageResponse is the JSON shape of one ranking page.
type PopularPageResponse struct {
	Entries []*popular.RankedEntry `json:"entries"`
	// NextCursor and NextAfter are echoed back on the next request to
	// continue the listing; both are empty when the listing is exhausted.
	NextCursor string     `json:"next_cursor,omitempty"`
	NextAfter  *time.Time `json:"next_after,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// GetPopularReviews handles GET /api/reviews/popular.
//
// Query parameters:
//   - period: daily|weekly|monthly|all_time. Absent means no period filter
//     (all snapshot rows are eligible); an unknown value matches no rows.
//   - direction: asc|desc over rank (default asc).
//   - cursor: continuation cursor from the previous page.
//   - after: RFC3339 secondary reference from the previous page.
//   - limit: page size, 1..100 (default 50).
func (h *PopularHandler) GetPopularReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()

	q := popular.PageQuery{
		Cursor: query.Get("cursor"),
		Limit:  DefaultPageLimit,
	}

	// A missing period means "no period filter", by contract. A present but
	// unknown value is passed through and simply matches no rows.
	if raw := query.Get("period"); raw != "" {
		p := popular.Period(raw)
		q.Period = &p
	}

	direction, err := popular.ParseDirection(query.Get("direction"))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "direction must be asc or desc")
		return
	}
	q.Direction = direction

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
			return
		}
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}
		q.Limit = limit
	}

	if raw := query.Get("after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "after must be an RFC3339 timestamp")
			return
		}
		q.After = &after
	}

	entries, nextCursor, err := h.snapshots.FindWithCursor(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, popular.ErrInvalidCursor):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCursor)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCursor, "cursor is malformed")
		case errors.Is(err, popular.ErrInvalidLimit), errors.Is(err, popular.ErrInvalidDirection):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid pagination parameters")
		default:
			h.logger.Error("failed to read popular reviews",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()))
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeInternal, "Ranking storage temporarily unavailable")
		}
		return
	}

	resp := PopularPageResponse{
		Entries: entries,
		HasMore: nextCursor != "",
	}
	if nextCursor != "" {
		resp.NextCursor = nextCursor
		last := entries[len(entries)-1]
		resp.NextAfter = &last.ComputedAt
	}
	if resp.Entries == nil {
		resp.Entries = []*popular.RankedEntry{}
	}

	writeJSON(w, r.Context(), http.StatusOK, resp)
}
