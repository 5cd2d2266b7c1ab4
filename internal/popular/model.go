// Package popular implements the periodic popularity ranking of reviews and
// the keyset-cursor pagination used to read the per-period snapshots.
package popular

import (
	"errors"
	"fmt"
	"time"
)

// Period classifies a ranking time window.
type Period string

// Supported ranking periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Periods lists all supported periods in aggregation order.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

// Common errors for popular ranking operations.
var (
	ErrUnknownPeriod    = errors.New("unknown period")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidLimit     = errors.New("limit must be a positive integer")
	ErrInvalidCursor    = errors.New("invalid cursor")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
)

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// Lookback returns the eligibility window for the period and whether the
// window is bounded. The all-time period is unbounded.
func (p Period) Lookback() (time.Duration, bool) {
	switch p {
	case PeriodDaily:
		return 24 * time.Hour, true
	case PeriodWeekly:
		return 7 * 24 * time.Hour, true
	case PeriodMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// ParsePeriod parses a period string. Matching is exact and case-sensitive;
// callers that must tolerate garbage values (the read path does, by contract)
// should use Period(s) directly, which simply matches no rows when unknown.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// Direction controls whether rank increases or decreases across a page.
type Direction string

// Supported pagination directions.
const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// Valid reports whether d is a supported direction.
func (d Direction) Valid() bool {
	return d == DirectionAsc || d == DirectionDesc
}

// ParseDirection parses a direction string, defaulting to ascending when empty.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "asc", "ASC":
		return DirectionAsc, nil
	case "desc", "DESC":
		return DirectionDesc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// RankedEntry is one row of a period's popularity snapshot.
//
// The snapshot holds a reference to the review plus the engagement metrics
// captured at scoring time. The cached metrics may drift from the live review
// between aggregation runs; that staleness is an accepted read-performance
// trade-off, not an inconsistency.
type RankedEntry struct {
	Period       Period    `json:"period"`
	Rank         int       `json:"rank"`          // 1-based, contiguous and unique within the period
	Score        float64   `json:"score"`         // Non-increasing as rank increases
	ReviewID     string    `json:"review_id"`     // Reference to the source review
	LikeCount    int       `json:"like_count"`    // Likes at scoring time
	CommentCount int       `json:"comment_count"` // Comments at scoring time
	Rating       float64   `json:"rating"`        // Average rating at scoring time
	ComputedAt   time.Time `json:"computed_at"`
}

// ValidateSnapshot checks the structural invariants of a full period snapshot:
// ranks form the contiguous sequence 1..n and scores never increase with rank.
// Entries must already be ordered by rank ascending.
func ValidateSnapshot(period Period, entries []*RankedEntry) error {
	if !period.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: rank %d at position %d, want %d", ErrInvalidSnapshot, e.Rank, i, i+1)
		}
		if e.Period != period {
			return fmt.Errorf("%w: entry at rank %d has period %q, want %q", ErrInvalidSnapshot, e.Rank, e.Period, period)
		}
		if i > 0 && e.Score > entries[i-1].Score {
			return fmt.Errorf("%w: score increases from rank %d to %d", ErrInvalidSnapshot, i, i+1)
		}
	}
	return nil
}
