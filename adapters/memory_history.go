package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
)

// MemoryHistoryRepository is a production-ready in-memory implementation of
// HistoryRepository, suitable as a simple storage backend when no MongoDB
// is configured.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string]entities.SavedEntry // id -> entry mapping
}

var _ repositories.HistoryRepository = (*MemoryHistoryRepository)(nil)

// NewMemoryHistoryRepository creates a new in-memory history repository
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		entries: make(map[string]entities.SavedEntry),
	}
}

// Append implements HistoryRepository interface
func (m *MemoryHistoryRepository) Append(ctx context.Context, entry *entities.SavedEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.ID == "" {
		return errors.New("entry ID cannot be empty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[entry.ID]; exists {
		return errors.New("entry already exists")
	}
	m.entries[entry.ID] = *entry
	return nil
}

// List implements HistoryRepository interface, newest first
func (m *MemoryHistoryRepository) List(ctx context.Context) ([]entities.SavedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.SavedEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Clear implements HistoryRepository interface
func (m *MemoryHistoryRepository) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entities.SavedEntry)
	return nil
}
