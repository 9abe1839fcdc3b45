// Package repository implements the persistence adapters over the
// Mongo client: workflow documents, run snapshots and agent memories.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/flowx-dev/flowx/common/mongo"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidPatch is returned when a JSON patch cannot be decoded or
// does not apply to the stored document.
var ErrInvalidPatch = errors.New("invalid patch")

// Workflow is a stored workflow document.
type Workflow struct {
	ID        string         `bson:"id" json:"id"`
	Name      string         `bson:"name" json:"name"`
	Data      map[string]any `bson:"data" json:"data"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// WorkflowRepo persists workflow definitions.
type WorkflowRepo struct {
	store *mongo.Client
}

// NewWorkflowRepo creates a workflow repository.
func NewWorkflowRepo(store *mongo.Client) *WorkflowRepo {
	return &WorkflowRepo{store: store}
}

func (r *WorkflowRepo) coll() *mongodriver.Collection {
	return r.store.Collection(mongo.CollWorkflows)
}

// Create stores a new workflow, assigning a uuid when the caller did
// not provide one.
func (r *WorkflowRepo) Create(ctx context.Context, wf Workflow) (Workflow, error) {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()
	if _, err := r.coll().InsertOne(ctx, wf); err != nil {
		return Workflow{}, fmt.Errorf("insert workflow: %w", err)
	}
	return wf, nil
}

// Get fetches a workflow by id.
func (r *WorkflowRepo) Get(ctx context.Context, id string) (Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	var wf Workflow
	err := r.coll().FindOne(ctx, bson.M{"id": id}).Decode(&wf)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return Workflow{}, ErrNotFound
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("find workflow: %w", err)
	}
	return wf, nil
}

// List returns all workflows, newest first.
func (r *WorkflowRepo) List(ctx context.Context) ([]Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	cursor, err := r.coll().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer cursor.Close(ctx)

	workflows := []Workflow{}
	if err := cursor.All(ctx, &workflows); err != nil {
		return nil, fmt.Errorf("decode workflows: %w", err)
	}
	return workflows, nil
}

// Update replaces a workflow's name and data.
func (r *WorkflowRepo) Update(ctx context.Context, id string, name string, data map[string]any) (Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	update := bson.M{"$set": bson.M{
		"name":       name,
		"data":       data,
		"updated_at": time.Now().UTC(),
	}}
	res, err := r.coll().UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return Workflow{}, fmt.Errorf("update workflow: %w", err)
	}
	if res.MatchedCount == 0 {
		return Workflow{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Patch applies an RFC 6902 JSON patch to the stored document's
// mutable fields (name, data) and persists the result.
func (r *WorkflowRepo) Patch(ctx context.Context, id string, patch []byte) (Workflow, error) {
	wf, err := r.Get(ctx, id)
	if err != nil {
		return Workflow{}, err
	}

	name, data, err := applyWorkflowPatch(wf, patch)
	if err != nil {
		return Workflow{}, err
	}

	return r.Update(ctx, id, name, data)
}

// applyWorkflowPatch applies the patch to the document's mutable
// fields. Decode and apply failures wrap ErrInvalidPatch.
func applyWorkflowPatch(wf Workflow, patch []byte) (string, map[string]any, error) {
	doc, err := json.Marshal(map[string]any{"name": wf.Name, "data": wf.Data})
	if err != nil {
		return "", nil, fmt.Errorf("encode workflow: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	patched, err := p.Apply(doc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	var next struct {
		Name string         `json:"name"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(patched, &next); err != nil {
		return "", nil, fmt.Errorf("decode patched workflow: %w", err)
	}
	return next.Name, next.Data, nil
}

// Delete removes a workflow by id.
func (r *WorkflowRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.Timeout())
	defer cancel()

	res, err := r.coll().DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
