// Package fulfillment serves the fulfillment gateway HTTP API
package fulfillment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mrhamza01/prlabel/internal/application"
	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/pkg/errors"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
)

const assignRequiredMessage = "ENTITY_ID and PICK_LIST_ID are required"

// Handlers contains handlers for the fulfillment gateway routes
type Handlers struct {
	service *application.FulfillmentService
	logger  *logging.Logger
}

// NewHandlers creates a new Handlers
func NewHandlers(service *application.FulfillmentService, logger *logging.Logger) *Handlers {
	middleware.InitValidator()
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the /api routes, including the legacy names the
// dashboard still calls
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/get-picklists", h.ListPickLists)
		api.GET("/pick-lists", h.ListPickLists)
		api.GET("/get-picklist-lines", h.ListLines)
		api.GET("/pick-list-lines", h.ListLines)
		api.GET("/update-picklist-lines", h.MarkShipmentShipped)
		api.PUT("/assign-picklist", h.AssignPickList)
		api.GET("/check-label-print-status", h.SyncInfo)
		api.GET("/sync-info", h.SyncInfo)
	}
}

type listQuery struct {
	Status   string `form:"status" binding:"omitempty,list_status"`
	EntityID string `form:"entityId" binding:"omitempty,entity_id"`
}

// ListPickLists handles GET /api/pick-lists
func (h *Handlers) ListPickLists(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		msg := domain.ErrInvalidStatus.Error()
		if fieldMsg, ok := middleware.ValidationErrorFormatter(err)["entityId"]; ok {
			msg = "entityId " + fieldMsg
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	lists, err := h.service.ListPickLists(c.Request.Context(), application.ListPickListsQuery{
		Status:   q.Status,
		EntityID: q.EntityID,
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeValidationError) {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidStatus.Error()})
			return
		}
		responder.RespondWithError(err)
		return
	}

	if lists == nil {
		lists = []*domain.PickList{}
	}
	c.JSON(http.StatusOK, lists)
}

type linesQuery struct {
	PickListID *int64 `form:"PICK_LIST_ID" binding:"required"`
}

// ListLines handles GET /api/pick-list-lines
func (h *Handlers) ListLines(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	if c.Query("PICK_LIST_ID") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PICK_LIST_ID is required"})
		return
	}

	var q linesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PICK_LIST_ID must be a number"})
		return
	}

	lines, err := h.service.GetLines(c.Request.Context(), application.GetLinesQuery{PickListID: *q.PickListID})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, lines)
}

type updateQuery struct {
	ShipmentID string `form:"SHIPMENT_ID" binding:"required,shipment_id"`
}

// MarkShipmentShipped handles GET /api/update-picklist-lines
func (h *Handlers) MarkShipmentShipped(c *gin.Context) {
	var q updateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		msg := "SHIPMENT_ID is required"
		if c.Query("SHIPMENT_ID") != "" {
			msg = "SHIPMENT_ID " + firstValidationMessage(err, "is invalid")
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
		return
	}

	middleware.AddSpanAttributes(c, map[string]string{
		"shipment.id": q.ShipmentID,
	})

	res, err := h.service.MarkShipmentShipped(c.Request.Context(), application.MarkShipmentShippedCommand{
		ShipmentID: q.ShipmentID,
	})
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.CodeShipmentNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"success":    false,
				"error":      appErr.Message,
				"shipmentId": q.ShipmentID,
			})
			return
		}

		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Failed to update pick list lines", "shipmentId", q.ShipmentID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error":      "Failed to update pick list lines",
			"shipmentId": q.ShipmentID,
			"details":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, res)
}

type assignBody struct {
	EntityID   string `json:"ENTITY_ID" binding:"required,entity_id"`
	PickListID int64  `json:"PICK_LIST_ID" binding:"required"`
}

// AssignPickList handles PUT /api/assign-picklist
func (h *Handlers) AssignPickList(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": assignRequiredMessage})
		return
	}

	res, err := h.service.AssignPickList(c.Request.Context(), application.AssignPickListCommand{
		EntityID:   body.EntityID,
		PickListID: body.PickListID,
	})
	if err != nil {
		appErr, ok := errors.AsAppError(err)
		switch {
		case ok && appErr.Code == errors.CodeValidationError:
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
		case ok && appErr.Code == errors.CodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Pick list not found"})
		default:
			responder.RespondWithError(err)
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

// SyncInfo handles GET /api/sync-info
func (h *Handlers) SyncInfo(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	rows, err := h.service.LatestSync(c.Request.Context())
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func firstValidationMessage(err error, fallback string) string {
	for _, msg := range middleware.ValidationErrorFormatter(err) {
		return msg
	}
	return fallback
}
