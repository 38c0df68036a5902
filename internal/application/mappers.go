package application

import "github.com/Mrhamza01/prlabel/internal/domain"

const shipmentUpdatedMessage = "Pick list line updated successfully"

// ToShipmentUpdatedDTO converts a shipment-shipped event to the response body
func ToShipmentUpdatedDTO(event *domain.ShipmentShippedEvent) *ShipmentUpdatedDTO {
	if event == nil {
		return nil
	}
	return &ShipmentUpdatedDTO{
		Success:      true,
		ShipmentID:   event.ShipmentID,
		Message:      shipmentUpdatedMessage,
		UpdatedAt:    event.ShippedAt,
		RecordsFound: event.RecordsFound,
	}
}

// ToSyncInfoDTOs renders the latest sync as a zero or one element list
func ToSyncInfoDTOs(entry *domain.SyncLogEntry) []SyncInfoDTO {
	if entry == nil {
		return []SyncInfoDTO{}
	}
	return []SyncInfoDTO{{DateCheck: entry.DateCheck}}
}
