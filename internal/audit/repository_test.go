package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestInMemoryRepository_Log(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	entry, err := repo.Log(ctx, Record{
		Subject:    "operator-1",
		EntityType: EntityPopularSnapshot,
		EntityID:   "daily",
		Action:     ActionRecompute,
		Outcome:    "success",
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected a generated entry ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if entry.Subject != "operator-1" || entry.Action != ActionRecompute {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestInMemoryRepository_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{"missing subject", Record{Action: ActionRecompute}, ErrEmptySubject},
		{"missing action", Record{Subject: "operator-1"}, ErrEmptyAction},
		{"unlisted action", Record{Subject: "operator-1", Action: "drop_tables"}, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.Log(ctx, tt.rec); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInMemoryRepository_QuerySubject(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"daily", "weekly", "monthly"} {
		if _, err := repo.Log(ctx, Record{
			Subject:    "operator-1",
			EntityType: EntityPopularSnapshot,
			EntityID:   id,
			Action:     ActionRecompute,
			Outcome:    "success",
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if _, err := repo.Log(ctx, Record{
		Subject: "operator-2",
		Action:  ActionPrune,
		Outcome: "success",
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	entries, err := repo.QuerySubject(ctx, "operator-1", 0)
	if err != nil {
		t.Fatalf("QuerySubject failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].EntityID != "monthly" || entries[2].EntityID != "daily" {
		t.Errorf("unexpected order: %s .. %s", entries[0].EntityID, entries[2].EntityID)
	}

	limited, err := repo.QuerySubject(ctx, "operator-1", 2)
	if err != nil {
		t.Fatalf("QuerySubject failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(limited))
	}

	none, err := repo.QuerySubject(ctx, "operator-9", 0)
	if err != nil {
		t.Fatalf("QuerySubject failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no entries for unknown subject, got %d", len(none))
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	entry, err := repo.Log(ctx, Record{
		Subject: "operator-1",
		Action:  ActionPrune,
		Outcome: "success",
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	entry.Outcome = "mutated"

	entries, err := repo.QuerySubject(ctx, "operator-1", 0)
	if err != nil {
		t.Fatalf("QuerySubject failed: %v", err)
	}
	if entries[0].Outcome != "success" {
		t.Error("mutating a returned entry leaked into the repository")
	}
}

func TestLogFromRequest(t *testing.T) {
	repo := NewInMemoryRepository()

	req := httptest.NewRequest("POST", "/api/admin/popular/recompute", nil)
	req.RemoteAddr = "192.0.2.7:5678"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")

	if err := LogFromRequest(req, repo, "operator-1", EntityPopularSnapshot, "all", ActionRecompute, "success"); err != nil {
		t.Fatalf("LogFromRequest failed: %v", err)
	}

	entries, err := repo.QuerySubject(req.Context(), "operator-1", 0)
	if err != nil {
		t.Fatalf("QuerySubject failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].IPAddress != "203.0.113.5" {
		t.Errorf("IP = %q, want first X-Forwarded-For hop", entries[0].IPAddress)
	}
}

func TestLogFromRequest_NilRepository(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	if err := LogFromRequest(req, nil, "operator-1", EntityPopularSnapshot, "all", ActionRecompute, "success"); !errors.Is(err, ErrNilRepository) {
		t.Errorf("expected ErrNilRepository, got %v", err)
	}
}
