package application

import (
	"time"

	"github.com/Mrhamza01/prlabel/internal/domain"
)

// ShipmentUpdatedDTO is the update-picklist-lines success body
type ShipmentUpdatedDTO struct {
	Success      bool      `json:"success"`
	ShipmentID   string    `json:"shipmentId"`
	Message      string    `json:"message"`
	UpdatedAt    time.Time `json:"updatedAt"`
	RecordsFound int       `json:"recordsFound"`
}

// AssignResultDTO is the assign-picklist success body
type AssignResultDTO struct {
	Success      bool             `json:"success"`
	RowsAffected int              `json:"rowsAffected"`
	PickList     *domain.PickList `json:"pickList"`
}

// SyncInfoDTO is one sync-info row
type SyncInfoDTO struct {
	DateCheck time.Time `json:"DATE_CHECK"`
}
