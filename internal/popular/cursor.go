package popular

import (
	"fmt"
	"strconv"
	"time"
)

// Cursors encode the rank of the last-seen entry. Rank is already unique
// within a period, so it doubles as the tie-break key: two snapshot rows can
// never compare equal, which is what makes the keyset queries skip- and
// duplicate-free. The optional "after" timestamp travels separately as a
// secondary reference for resumption.

// EncodeCursor returns the continuation cursor for the given entry.
func EncodeCursor(e *RankedEntry) string {
	return strconv.Itoa(e.Rank)
}

// DecodeCursor parses a cursor back into a rank. An empty cursor means
// "start from the beginning" and decodes to rank 0 with ok=false.
func DecodeCursor(cursor string) (rank int, ok bool, err error) {
	if cursor == "" {
		return 0, false, nil
	}
	rank, convErr := strconv.Atoi(cursor)
	if convErr != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	if rank < 1 {
		return 0, false, fmt.Errorf("%w: rank %d out of range", ErrInvalidCursor, rank)
	}
	return rank, true, nil
}

// PageQuery describes one pagination request against the ranking snapshots.
type PageQuery struct {
	// Period filters the snapshot. Nil means no period filter: rows from
	// every period are eligible (deliberate behavior, not an error). A
	// non-nil unknown period matches no rows.
	Period *Period

	// Direction orders the page by rank ascending or descending.
	Direction Direction

	// Cursor is the encoded rank of the last-seen entry; empty starts from
	// the beginning of the requested direction.
	Cursor string

	// After is an optional secondary reference: the computed-at timestamp of
	// the last-seen entry. It is independent of Cursor; a request may carry
	// either, both, or neither.
	After *time.Time

	// Limit caps the page size. Must be positive.
	Limit int
}

// Validate rejects malformed pagination input before any data is touched.
func (q PageQuery) Validate() error {
	if q.Limit <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidLimit, q.Limit)
	}
	if !q.Direction.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, q.Direction)
	}
	if _, _, err := DecodeCursor(q.Cursor); err != nil {
		return err
	}
	return nil
}

// matchesAfter reports whether the entry lies strictly beyond the cursor
// position in the requested direction. The primary key is rank; the After
// timestamp only breaks the (theoretical) case of an entry sitting exactly at
// the cursor rank, keeping the combined (rank, computed_at) seek strict.
func (q PageQuery) matchesAfter(e *RankedEntry) bool {
	cursorRank, hasCursor, _ := DecodeCursor(q.Cursor)

	if !hasCursor {
		if q.After == nil {
			return true
		}
		// After alone: seek strictly past the secondary key.
		if q.Direction == DirectionAsc {
			return e.ComputedAt.After(*q.After)
		}
		return e.ComputedAt.Before(*q.After)
	}

	if q.Direction == DirectionAsc {
		if e.Rank > cursorRank {
			return true
		}
		if e.Rank == cursorRank && q.After != nil {
			return e.ComputedAt.After(*q.After)
		}
		return false
	}

	if e.Rank < cursorRank {
		return true
	}
	if e.Rank == cursorRank && q.After != nil {
		return e.ComputedAt.Before(*q.After)
	}
	return false
}
