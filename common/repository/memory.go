package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/flowx-dev/flowx/common/mongo"
	"github.com/flowx-dev/flowx/engine/nodes"
)

// MemoryRepo persists agent memories keyed by (thread_id, node_id),
// expired by the TTL index on last_updated.
type MemoryRepo struct {
	store *mongo.Client
}

// NewMemoryRepo creates an agent memory repository.
func NewMemoryRepo(store *mongo.Client) *MemoryRepo {
	return &MemoryRepo{store: store}
}

func (r *MemoryRepo) coll() *mongodriver.Collection {
	return r.store.Collection(mongo.CollMemories)
}

// Fetch returns up to limit of the most recent memory entries.
func (r *MemoryRepo) Fetch(ctx context.Context, threadID, nodeID string, limit int) ([]nodes.MemoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	filter := bson.M{"thread_id": threadID, "node_id": nodeID}
	var doc struct {
		History []nodes.MemoryEntry `bson:"history"`
	}
	err := r.coll().FindOne(ctx, filter,
		options.FindOne().SetProjection(bson.M{
			"history": bson.M{"$slice": -limit},
		})).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch agent memory: %w", err)
	}
	return doc.History, nil
}

// Append pushes a memory entry and refreshes the TTL anchor.
func (r *MemoryRepo) Append(ctx context.Context, threadID, nodeID string, entry nodes.MemoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	filter := bson.M{"thread_id": threadID, "node_id": nodeID}
	update := bson.M{
		"$push": bson.M{"history": entry},
		"$set":  bson.M{"last_updated": time.Now().UTC()},
	}
	_, err := r.coll().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("append agent memory: %w", err)
	}
	return nil
}
