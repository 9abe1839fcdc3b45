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
	"github.com/flowx-dev/flowx/engine/node"
)

// nodeSnapshot is one persisted node result inside a run document.
type nodeSnapshot struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	Data      any       `bson:"data"`
}

// RunRepo persists per-node run snapshots keyed by thread id. It
// implements the executor's RunStore contract.
type RunRepo struct {
	store *mongo.Client
}

// NewRunRepo creates a run repository.
func NewRunRepo(store *mongo.Client) *RunRepo {
	return &RunRepo{store: store}
}

func (r *RunRepo) coll() *mongodriver.Collection {
	return r.store.Collection(mongo.CollRuns)
}

// SaveNodeResult upserts one node's result into the run document.
func (r *RunRepo) SaveNodeResult(ctx context.Context, threadID, nodeID, status string, result any) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"results." + nodeID: nodeSnapshot{
				Status:    status,
				Timestamp: time.Now().UTC(),
				Data:      result,
			},
			"updated_at": time.Now().UTC(),
		},
	}
	_, err := r.coll().UpdateOne(ctx, bson.M{"thread_id": threadID}, update,
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save node result: %w", err)
	}
	return nil
}

// LoadCompletedResults returns the successfully completed node results
// of a prior run, for rehydration on resume. A missing run yields an
// empty map.
func (r *RunRepo) LoadCompletedResults(ctx context.Context, threadID string) (map[string]node.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	var doc struct {
		Results map[string]nodeSnapshot `bson:"results"`
	}
	err := r.coll().FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return map[string]node.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	completed := make(map[string]node.Result, len(doc.Results))
	for nodeID, snap := range doc.Results {
		if snap.Status != "completed" && snap.Status != node.StatusSuccess {
			continue
		}
		if data, ok := normalize(snap.Data).(map[string]any); ok {
			completed[nodeID] = node.Result(data)
		}
	}
	return completed, nil
}

// normalize converts decoded bson documents into plain maps/slices so
// rehydrated results look like freshly produced ones.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	default:
		return v
	}
}
