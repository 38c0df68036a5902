package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/pkg/cloudevents"
	"github.com/Mrhamza01/prlabel/pkg/kafka"
	wmsmongo "github.com/Mrhamza01/prlabel/pkg/mongodb"
	"github.com/Mrhamza01/prlabel/pkg/outbox"
	outboxMongo "github.com/Mrhamza01/prlabel/pkg/outbox/mongodb"
)

// Collection names
const (
	PickListsCollection = "pick_lists"
	LinesCollection     = "pick_list_lines"
	EntitiesCollection  = "entities"
	SyncLogCollection   = "sync_log"
)

// PickListRepository implements domain.PickListRepository on MongoDB
type PickListRepository struct {
	client       *wmsmongo.InstrumentedClient
	pickLists    *wmsmongo.InstrumentedCollection
	lines        *wmsmongo.InstrumentedCollection
	entities     *wmsmongo.InstrumentedCollection
	syncLog      *wmsmongo.InstrumentedCollection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

var _ domain.PickListRepository = (*PickListRepository)(nil)

func NewPickListRepository(client *wmsmongo.InstrumentedClient, eventFactory *cloudevents.EventFactory) *PickListRepository {
	return &PickListRepository{
		client:       client,
		pickLists:    client.Collection(PickListsCollection),
		lines:        client.Collection(LinesCollection),
		entities:     client.Collection(EntitiesCollection),
		syncLog:      client.Collection(SyncLogCollection),
		outboxRepo:   outboxMongo.NewOutboxRepository(client.Database()),
		eventFactory: eventFactory,
	}
}

// OutboxRepository exposes the outbox store for the publisher
func (r *PickListRepository) OutboxRepository() *outboxMongo.OutboxRepository {
	return r.outboxRepo
}

// EnsureIndexes creates the indexes the queries rely on
func (r *PickListRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.pickLists.Raw().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderDate", Value: -1}}},
		{Keys: bson.D{{Key: "packingPerson", Value: 1}}},
		{Keys: bson.D{{Key: "assigneeId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create pick list indexes: %w", err)
	}

	if _, err := r.lines.Raw().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pickListId", Value: 1}}},
		{Keys: bson.D{{Key: "shipmentId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create line indexes: %w", err)
	}

	if _, err := r.syncLog.Raw().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "syncType", Value: 1}, {Key: "status", Value: 1}, {Key: "dateCheck", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create sync log index: %w", err)
	}

	return r.outboxRepo.EnsureIndexes(ctx)
}

// List returns the pick lists matching filter, newest order first, with
// status and shipment counts derived from their lines
func (r *PickListRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.PickList, error) {
	query := bson.M{}
	if filter.EntityID != "" {
		or := bson.A{bson.M{"packingPerson": filter.EntityID}}
		if id, err := strconv.ParseInt(filter.EntityID, 10, 64); err == nil {
			or = append(or, bson.M{"assigneeId": id})
		}
		query["$or"] = or
	}

	opts := options.Find().SetSort(wmsmongo.SortDescending("orderDate"))
	cursor, err := r.pickLists.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pick lists: %w", err)
	}
	defer cursor.Close(ctx)

	var lists []*domain.PickList
	if err := cursor.All(ctx, &lists); err != nil {
		return nil, fmt.Errorf("failed to decode pick lists: %w", err)
	}
	if len(lists) == 0 {
		return []*domain.PickList{}, nil
	}

	ids := make([]int64, len(lists))
	for i, p := range lists {
		ids[i] = p.ID
	}
	byList, err := r.linesByPickList(ctx, ids)
	if err != nil {
		return nil, err
	}

	status := filter.Status
	if status == "" {
		status = domain.ListPending
	}

	out := make([]*domain.PickList, 0, len(lists))
	for _, p := range lists {
		p.ApplyLines(byList[p.ID])
		if status.Includes(p.Status) {
			out = append(out, p)
		}
	}

	if err := r.resolveNames(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID loads one pick list with its derived fields
func (r *PickListRepository) FindByID(ctx context.Context, pickListID int64) (*domain.PickList, error) {
	var p domain.PickList
	err := r.pickLists.FindOne(ctx, bson.M{"_id": pickListID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPickListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pick list %d: %w", pickListID, err)
	}

	lines, err := r.Lines(ctx, pickListID)
	if err != nil {
		return nil, err
	}
	p.ApplyLines(lines)

	if err := r.resolveNames(ctx, []*domain.PickList{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// Lines returns the lines of one pick list ordered by line ID
func (r *PickListRepository) Lines(ctx context.Context, pickListID int64) ([]domain.Line, error) {
	opts := options.Find().SetSort(wmsmongo.SortAscending("_id"))
	cursor, err := r.lines.Find(ctx, bson.M{"pickListId": pickListID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find lines of pick list %d: %w", pickListID, err)
	}
	defer cursor.Close(ctx)

	lines := []domain.Line{}
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode lines: %w", err)
	}
	return lines, nil
}

func (r *PickListRepository) linesByPickList(ctx context.Context, ids []int64) (map[int64][]domain.Line, error) {
	cursor, err := r.lines.Find(ctx, bson.M{"pickListId": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find lines: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []domain.Line
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode lines: %w", err)
	}

	byList := make(map[int64][]domain.Line, len(ids))
	for _, l := range lines {
		byList[l.PickListID] = append(byList[l.PickListID], l)
	}
	return byList, nil
}

// resolveNames fills assignee and packer names from the entity directory
func (r *PickListRepository) resolveNames(ctx context.Context, lists []*domain.PickList) error {
	ids := make(map[string]struct{})
	for _, p := range lists {
		if p.AssigneeID != nil {
			ids[strconv.FormatInt(*p.AssigneeID, 10)] = struct{}{}
		}
		if p.PackingPerson != nil {
			ids[*p.PackingPerson] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}

	cursor, err := r.entities.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return fmt.Errorf("failed to find entities: %w", err)
	}
	defer cursor.Close(ctx)

	var entities []domain.Entity
	if err := cursor.All(ctx, &entities); err != nil {
		return fmt.Errorf("failed to decode entities: %w", err)
	}

	names := make(map[string]string, len(entities))
	for _, e := range entities {
		names[e.ID] = e.Name
	}

	for _, p := range lists {
		if p.AssigneeID != nil {
			if name, ok := names[strconv.FormatInt(*p.AssigneeID, 10)]; ok {
				p.AssigneeName = &name
			}
		}
		if p.PackingPerson != nil {
			if name, ok := names[*p.PackingPerson]; ok {
				p.PackingPersonName = &name
			}
		}
	}
	return nil
}

// MarkShipmentShipped sets shipped = quantity on every line of the shipment
// and records a shipment-shipped outbox event in the same transaction
func (r *PickListRepository) MarkShipmentShipped(ctx context.Context, shipmentID string, at time.Time) (*domain.ShipmentShippedEvent, error) {
	var event *domain.ShipmentShippedEvent

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		cursor, err := r.lines.Find(sessCtx, bson.M{"shipmentId": shipmentID}, options.Find().SetSort(wmsmongo.SortAscending("_id")))
		if err != nil {
			return fmt.Errorf("failed to find shipment lines: %w", err)
		}
		var lines []domain.Line
		if err := cursor.All(sessCtx, &lines); err != nil {
			return fmt.Errorf("failed to decode shipment lines: %w", err)
		}
		if len(lines) == 0 {
			return domain.ErrShipmentNotFound
		}

		update := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "shippedQty", Value: "$quantity"}}}}}
		if _, err := r.lines.UpdateMany(sessCtx, bson.M{"shipmentId": shipmentID}, update); err != nil {
			return fmt.Errorf("failed to update shipment lines: %w", err)
		}

		lineIDs := make([]int64, len(lines))
		for i, l := range lines {
			lineIDs[i] = l.ID
		}
		event = &domain.ShipmentShippedEvent{
			ShipmentID:   shipmentID,
			LineIDs:      lineIDs,
			RecordsFound: len(lines),
			ShippedAt:    at,
		}

		outboxEvent, err := r.toOutboxEvent(sessCtx, shipmentID, "Shipment", event, "")
		if err != nil {
			return err
		}
		return r.outboxRepo.SaveAll(sessCtx, []*outbox.OutboxEvent{outboxEvent})
	})
	if err != nil {
		if errors.Is(err, domain.ErrShipmentNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("transaction failed: %w", err)
	}
	return event, nil
}

// Save persists the pick list header together with its pending domain
// events in a single transaction
func (r *PickListRepository) Save(ctx context.Context, p *domain.PickList) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{
			"orderNumber":   p.OrderNumber,
			"orderDate":     p.OrderDate,
			"assigneeId":    p.AssigneeID,
			"packingPerson": p.PackingPerson,
			"remarks":       p.Remarks,
			"version":       p.Version,
			"updatedAt":     p.UpdatedAt,
		}
		opts := options.Update().SetUpsert(true)
		if _, err := r.pickLists.UpdateOne(sessCtx, bson.M{"_id": p.ID}, wmsmongo.BuildUpdate(set), opts); err != nil {
			return fmt.Errorf("failed to save pick list: %w", err)
		}

		domainEvents := p.GetDomainEvents()
		if len(domainEvents) == 0 {
			return nil
		}

		aggregateID := strconv.FormatInt(p.ID, 10)
		entityName := ""
		if p.PackingPersonName != nil {
			entityName = *p.PackingPersonName
		}

		outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
		for _, event := range domainEvents {
			outboxEvent, err := r.toOutboxEvent(sessCtx, aggregateID, "PickList", event, entityName)
			if err != nil {
				return err
			}
			outboxEvents = append(outboxEvents, outboxEvent)
		}
		return r.outboxRepo.SaveAll(sessCtx, outboxEvents)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	p.ClearDomainEvents()
	return nil
}

func (r *PickListRepository) toOutboxEvent(ctx context.Context, aggregateID, aggregateType string, event domain.DomainEvent, entityName string) (*outbox.OutboxEvent, error) {
	var cloudEvent *cloudevents.WMSCloudEvent
	switch e := event.(type) {
	case *domain.ShipmentShippedEvent:
		ids := make([]string, len(e.LineIDs))
		for i, id := range e.LineIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		cloudEvent = r.eventFactory.ShipmentShippedEvent(ctx, e.ShipmentID, ids)
	case *domain.PickListAssignedEvent:
		cloudEvent = r.eventFactory.PickListAssignedEvent(ctx, strconv.FormatInt(e.PickListID, 10), e.EntityID, entityName, e.Version)
	default:
		return nil, fmt.Errorf("unsupported domain event %T", event)
	}

	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, kafka.Topics.DispatchEvents, cloudEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}
	return outboxEvent, nil
}

// LatestSync returns the newest successful incremental sync, or nil
func (r *PickListRepository) LatestSync(ctx context.Context) (*domain.SyncLogEntry, error) {
	filter := bson.M{"syncType": domain.SyncIncremental, "status": domain.SyncSuccess}
	opts := options.FindOne().SetSort(wmsmongo.SortDescending("dateCheck"))

	var entry domain.SyncLogEntry
	err := r.syncLog.FindOne(ctx, filter, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest sync: %w", err)
	}
	return &entry, nil
}
