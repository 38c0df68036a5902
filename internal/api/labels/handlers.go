// Package labels serves the print gateway HTTP API
package labels

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mrhamza01/prlabel/internal/printing"
	apperrors "github.com/Mrhamza01/prlabel/pkg/errors"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
)

const shipmentRequiredMessage = "shipmentId is required"

// Handlers contains handlers for the print gateway routes
type Handlers struct {
	service *printing.Service
	logger  *logging.Logger
}

// NewHandlers creates a new Handlers
func NewHandlers(service *printing.Service, logger *logging.Logger) *Handlers {
	middleware.InitValidator()
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the print routes
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/printers", h.Printers)
	router.GET("/printers/default", h.DefaultPrinter)
	router.POST("/print", h.Print)
	router.POST("/generate-and-print", h.GenerateAndPrint)
}

// Printers handles GET /printers
func (h *Handlers) Printers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"printers": h.service.Printers(c.Request.Context())})
}

// DefaultPrinter handles GET /printers/default
func (h *Handlers) DefaultPrinter(c *gin.Context) {
	printer, err := h.service.DefaultPrinter(c.Request.Context())
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Default printer error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch default printer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"defaultPrinter": printer})
}

type printBody struct {
	ShipmentID string `json:"shipmentId" form:"shipmentId" binding:"omitempty,shipment_id"`
}

// Print handles POST /print with a {shipmentId} body
func (h *Handlers) Print(c *gin.Context) {
	var body printBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, body.ShipmentID, err)
		return
	}

	h.runJob(c, body.ShipmentID, h.service.PrintExisting)
}

type generateQuery struct {
	ShipmentID string `form:"shipmentId" binding:"omitempty,shipment_id"`
}

// GenerateAndPrint handles POST /generate-and-print?shipmentId=
func (h *Handlers) GenerateAndPrint(c *gin.Context) {
	var q generateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, c.Query("shipmentId"), err)
		return
	}

	h.runJob(c, q.ShipmentID, h.service.GenerateAndPrint)
}

func (h *Handlers) runJob(c *gin.Context, shipmentID string, job func(context.Context, string) (*printing.Result, error)) {
	if shipmentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": shipmentRequiredMessage})
		return
	}

	middleware.AddSpanAttributes(c, map[string]string{
		"shipment.id": shipmentID,
	})

	res, err := job(c.Request.Context(), shipmentID)
	if err != nil {
		resp := gin.H{
			"success":    false,
			"error":      err.Error(),
			"shipmentId": shipmentID,
		}
		if appErr, ok := apperrors.AsAppError(err); ok {
			resp["error"] = appErr.Message
			resp["code"] = appErr.Code
		}
		h.logger.WithContext(c.Request.Context()).WithError(err).Error("Print error", "shipmentId", shipmentID)
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    printing.SuccessMessage,
		"shipmentId": res.ShipmentID,
		"printer":    res.Printer,
	})
}

func (h *Handlers) badRequest(c *gin.Context, shipmentID string, err error) {
	msg := shipmentRequiredMessage
	if fieldMsg, ok := middleware.ValidationErrorFormatter(err)["shipmentId"]; ok {
		msg = "shipmentId " + fieldMsg
	}
	resp := gin.H{"success": false, "error": msg}
	if shipmentID != "" {
		resp["shipmentId"] = shipmentID
	}
	c.JSON(http.StatusBadRequest, resp)
}
