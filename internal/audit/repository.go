package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for audit records.
var (
	ErrNilRepository = errors.New("audit repository cannot be nil")
	ErrEmptySubject  = errors.New("subject cannot be empty")
	ErrEmptyAction   = errors.New("action cannot be empty")
	ErrUnknownAction = errors.New("unknown action")
)

// validActions whitelists the recordable operator actions.
var validActions = map[string]bool{
	ActionRecompute: true,
	ActionPrune:     true,
}

// Repository stores operator audit entries.
type Repository interface {
	// Log records an operator action and returns the stored entry.
	Log(ctx context.Context, rec Record) (*Entry, error)

	// QuerySubject returns entries for a subject, newest first.
	// A limit of 0 means no limit.
	QuerySubject(ctx context.Context, subject string, limit int) ([]*Entry, error)
}

// validateRecord checks the required fields against the action whitelist.
func validateRecord(rec Record) error {
	if rec.Subject == "" {
		return ErrEmptySubject
	}
	if rec.Action == "" {
		return ErrEmptyAction
	}
	if !validActions[rec.Action] {
		return ErrUnknownAction
	}
	return nil
}

// InMemoryRepository is an in-memory Repository. Thread-safe.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewInMemoryRepository creates an empty in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Log records an operator action.
func (r *InMemoryRepository) Log(ctx context.Context, rec Record) (*Entry, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		Subject:    rec.Subject,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Outcome:    rec.Outcome,
		CreatedAt:  time.Now().UTC(),
		RequestID:  rec.RequestID,
		IPAddress:  rec.IPAddress,
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	entryCopy := *entry
	return &entryCopy, nil
}

// QuerySubject returns entries for a subject, newest first.
func (r *InMemoryRepository) QuerySubject(ctx context.Context, subject string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Subject != subject {
			continue
		}
		entryCopy := *r.entries[i]
		results = append(results, &entryCopy)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}
