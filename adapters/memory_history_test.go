package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/ritz-devbox/decisiv/domain/entities"
)

func TestMemoryHistoryRepository(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	ctx := context.Background()

	if err := repo.Append(ctx, nil); err == nil {
		t.Error("nil entry accepted")
	}
	if err := repo.Append(ctx, &entities.SavedEntry{}); err == nil {
		t.Error("entry without ID accepted")
	}

	older := &entities.SavedEntry{
		ID:        "a",
		CreatedAt: time.Now().Add(-time.Hour),
		Scenario:  entities.Scenario{Title: "first", Context: "ctx"},
		Verdict:   entities.Verdict{Decision: "Hold"},
	}
	newer := &entities.SavedEntry{
		ID:       "b",
		Scenario: entities.Scenario{Title: "second", Context: "ctx"},
		Verdict:  entities.Verdict{Decision: "Proceed"},
	}
	if err := repo.Append(ctx, older); err != nil {
		t.Fatalf("Append older: %v", err)
	}
	if err := repo.Append(ctx, newer); err != nil {
		t.Fatalf("Append newer: %v", err)
	}
	if newer.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
	if err := repo.Append(ctx, older); err == nil {
		t.Error("duplicate ID accepted")
	}

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "b" || entries[1].ID != "a" {
		t.Fatalf("order = %s, %s; want newest first", entries[0].ID, entries[1].ID)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, _ = repo.List(ctx)
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %d", len(entries))
	}
}
