package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Mrhamza01/prlabel/internal/domain"
	apperrors "github.com/Mrhamza01/prlabel/pkg/errors"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
)

// FulfillmentService handles the fulfillment gateway use cases
type FulfillmentService struct {
	repo    domain.PickListRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFulfillmentService creates a new FulfillmentService. m may be nil.
func NewFulfillmentService(repo domain.PickListRepository, logger *logging.Logger, m *metrics.Metrics) *FulfillmentService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FulfillmentService{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListPickLists returns the pick lists in the requested status
func (s *FulfillmentService) ListPickLists(ctx context.Context, query ListPickListsQuery) ([]*domain.PickList, error) {
	status, err := domain.ParseListStatus(query.Status)
	if err != nil {
		return nil, apperrors.ErrValidation(domain.ErrInvalidStatus.Error()).Wrap(err)
	}

	lists, err := s.repo.List(ctx, domain.ListFilter{Status: status, EntityID: query.EntityID})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list pick lists", "status", status, "entityId", query.EntityID)
		return nil, fmt.Errorf("failed to list pick lists: %w", err)
	}
	return lists, nil
}

// GetLines returns the lines of one pick list
func (s *FulfillmentService) GetLines(ctx context.Context, query GetLinesQuery) ([]domain.Line, error) {
	lines, err := s.repo.Lines(ctx, query.PickListID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get pick list lines", "pickListId", query.PickListID)
		return nil, fmt.Errorf("failed to get pick list lines: %w", err)
	}
	return lines, nil
}

// MarkShipmentShipped sets shipped = quantity on every line of the shipment
func (s *FulfillmentService) MarkShipmentShipped(ctx context.Context, cmd MarkShipmentShippedCommand) (*ShipmentUpdatedDTO, error) {
	if cmd.ShipmentID == "" {
		return nil, apperrors.ErrValidation("SHIPMENT_ID is required")
	}

	event, err := s.repo.MarkShipmentShipped(ctx, cmd.ShipmentID, s.now())
	if errors.Is(err, domain.ErrShipmentNotFound) {
		return nil, apperrors.ErrShipmentNotFound(cmd.ShipmentID).Wrap(err)
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to update shipment", "shipmentId", cmd.ShipmentID)
		return nil, fmt.Errorf("failed to update shipment: %w", err)
	}

	// Events are saved to outbox by repository in transaction

	s.metrics.RecordShipmentShipped()
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  event.EventType(),
		EntityType: "shipment",
		EntityID:   cmd.ShipmentID,
		Action:     "shipped",
		RelatedIDs: map[string]string{
			"recordsFound": strconv.Itoa(event.RecordsFound),
		},
	})

	return ToShipmentUpdatedDTO(event), nil
}

// AssignPickList makes cmd.EntityID the packer. Re-assigning the current
// packer succeeds with zero rows affected.
func (s *FulfillmentService) AssignPickList(ctx context.Context, cmd AssignPickListCommand) (*AssignResultDTO, error) {
	if cmd.EntityID == "" || cmd.PickListID == 0 {
		return nil, apperrors.ErrValidation("ENTITY_ID and PICK_LIST_ID are required")
	}

	pickList, err := s.repo.FindByID(ctx, cmd.PickListID)
	if errors.Is(err, domain.ErrPickListNotFound) {
		return nil, apperrors.ErrNotFoundWithID("pick list", strconv.FormatInt(cmd.PickListID, 10)).Wrap(err)
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get pick list", "pickListId", cmd.PickListID)
		return nil, fmt.Errorf("failed to get pick list: %w", err)
	}

	changed, err := pickList.AssignPacker(cmd.EntityID, s.now())
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}
	if !changed {
		return &AssignResultDTO{Success: true, RowsAffected: 0, PickList: pickList}, nil
	}

	if err := s.repo.Save(ctx, pickList); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to save pick list", "pickListId", cmd.PickListID)
		return nil, fmt.Errorf("failed to save pick list: %w", err)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "picklist.assigned",
		EntityType: "pickList",
		EntityID:   strconv.FormatInt(cmd.PickListID, 10),
		Action:     "assigned",
		RelatedIDs: map[string]string{
			"entityId": cmd.EntityID,
			"version":  strconv.FormatInt(pickList.Version, 10),
		},
	})

	// Re-read so derived fields and the packer name reflect the stored state
	saved, err := s.repo.FindByID(ctx, cmd.PickListID)
	if err != nil {
		saved = pickList
	}
	return &AssignResultDTO{Success: true, RowsAffected: 1, PickList: saved}, nil
}

// LatestSync returns the latest successful incremental carrier sync
func (s *FulfillmentService) LatestSync(ctx context.Context) ([]SyncInfoDTO, error) {
	entry, err := s.repo.LatestSync(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get sync info")
		return nil, fmt.Errorf("failed to get sync info: %w", err)
	}
	return ToSyncInfoDTOs(entry), nil
}
