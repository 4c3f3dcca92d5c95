package repositories

import (
	"context"

	"github.com/ritz-devbox/decisiv/domain/entities"
)

// HistoryRepository stores resolved scenario+verdict pairs keyed by
// creation time.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entities.SavedEntry) error
	// List returns saved entries, newest first.
	List(ctx context.Context) ([]entities.SavedEntry, error)
	Clear(ctx context.Context) error
}
