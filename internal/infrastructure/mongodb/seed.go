package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mrhamza01/prlabel/internal/domain"
)

// Fixture is a snapshot of pick list data in the gateway wire shape, used to
// seed a local or test database
type Fixture struct {
	PickLists []*domain.PickList    `json:"pickLists"`
	Lines     []domain.Line         `json:"lines"`
	Entities  []domain.Entity       `json:"entities"`
	SyncLog   []domain.SyncLogEntry `json:"syncLog"`
}

// LoadFixture reads a JSON fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Import upserts every record of the fixture by ID
func (r *PickListRepository) Import(ctx context.Context, f *Fixture) error {
	upsert := options.Update().SetUpsert(true)

	for _, p := range f.PickLists {
		set := bson.M{
			"orderNumber":   p.OrderNumber,
			"orderDate":     p.OrderDate,
			"assigneeId":    p.AssigneeID,
			"packingPerson": p.PackingPerson,
			"remarks":       p.Remarks,
			"version":       p.Version,
			"updatedAt":     p.UpdatedAt,
		}
		if _, err := r.pickLists.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set}, upsert); err != nil {
			return fmt.Errorf("failed to import pick list %d: %w", p.ID, err)
		}
	}

	for _, l := range f.Lines {
		if _, err := r.lines.UpdateOne(ctx, bson.M{"_id": l.ID}, bson.M{"$set": l}, upsert); err != nil {
			return fmt.Errorf("failed to import line %d: %w", l.ID, err)
		}
	}

	for _, e := range f.Entities {
		if _, err := r.entities.UpdateOne(ctx, bson.M{"_id": e.ID}, bson.M{"$set": bson.M{"name": e.Name}}, upsert); err != nil {
			return fmt.Errorf("failed to import entity %s: %w", e.ID, err)
		}
	}

	if len(f.SyncLog) > 0 {
		docs := make([]interface{}, len(f.SyncLog))
		for i, s := range f.SyncLog {
			docs[i] = s
		}
		if _, err := r.syncLog.InsertMany(ctx, docs); err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to import sync log: %w", err)
		}
	}
	return nil
}
