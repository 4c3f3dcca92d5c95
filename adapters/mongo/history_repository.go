package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
)

type HistoryRepository struct {
	collection *mongo.Collection
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(db *mongo.Database) repositories.HistoryRepository {
	return &HistoryRepository{
		collection: db.Collection("history"),
	}
}

// Append implements repositories.HistoryRepository
func (r *HistoryRepository) Append(ctx context.Context, entry *entities.SavedEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.ID == "" {
		return errors.New("entry ID cannot be empty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// List implements repositories.HistoryRepository
func (r *HistoryRepository) List(ctx context.Context) ([]entities.SavedEntry, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []entities.SavedEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}
	return entries, nil
}

// Clear implements repositories.HistoryRepository
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
