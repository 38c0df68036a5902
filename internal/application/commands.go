package application

// ListPickListsQuery represents the query for the pick list overview
type ListPickListsQuery struct {
	Status   string
	EntityID string
}

// GetLinesQuery represents the query for the lines of one pick list
type GetLinesQuery struct {
	PickListID int64
}

// MarkShipmentShippedCommand marks every line of a shipment as shipped
type MarkShipmentShippedCommand struct {
	ShipmentID string
}

// AssignPickListCommand makes an entity the packer of a pick list
type AssignPickListCommand struct {
	EntityID   string
	PickListID int64
}
