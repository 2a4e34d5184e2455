// Package api - Pharmacy and inventory handlers
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// CreateInventoryItemRequest adds a stock item
type CreateInventoryItemRequest struct {
	ClinicID     uuid.UUID                 `json:"clinic_id" binding:"required"`
	MedicationID *uuid.UUID                `json:"medication_id"`
	Name         string                    `json:"name" binding:"required"`
	Category     string                    `json:"category"`
	Quantity     int                       `json:"quantity"`
	ReorderPoint int                       `json:"reorder_point"`
	Unit         string                    `json:"unit"`
	CostPrice    float64                   `json:"cost_price"`
	SalePrice    float64                   `json:"sale_price"`
	LotNumber    string                    `json:"lot_number"`
	ExpiryDate   *time.Time                `json:"expiry_date"`
	Controlled   bool                      `json:"controlled"`
	Schedule     models.ControlledSchedule `json:"schedule"`
	Location     string                    `json:"location"`
	Notes        string                    `json:"notes"`
}

// StockAdjustmentRequest applies a receive or dispense delta
type StockAdjustmentRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// CreateMedicationRequest adds a drug definition
type CreateMedicationRequest struct {
	Name        string `json:"name" binding:"required"`
	GenericName string `json:"generic_name"`
	Form        string `json:"form"`
	Strength    string `json:"strength"`
}

// ListInventory returns stock, filterable by clinic, category and alerts
// GET /api/inventory?low_stock=true&expiring=true
func (h *Handler) ListInventory(c *gin.Context) {
	filter := store.InventoryFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		LowStock: c.Query("low_stock") == "true",
		Expiring: c.Query("expiring") == "true",
	}
	if cl := c.Query("clinic_id"); cl != "" {
		clinicID, err := uuid.Parse(cl)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clinic_id"})
			return
		}
		filter.ClinicID = &clinicID
	}

	items, err := h.store.FindInventory(tenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// CreateInventoryItem adds a stock item
// POST /api/inventory
func (h *Handler) CreateInventoryItem(c *gin.Context) {
	var req CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	item, err := h.store.CreateInventoryItem(models.InventoryItem{
		TenantID:     tenantID(c),
		ClinicID:     req.ClinicID,
		MedicationID: req.MedicationID,
		Name:         req.Name,
		Category:     req.Category,
		Quantity:     req.Quantity,
		ReorderPoint: req.ReorderPoint,
		Unit:         req.Unit,
		CostPrice:    req.CostPrice,
		SalePrice:    req.SalePrice,
		LotNumber:    req.LotNumber,
		ExpiryDate:   req.ExpiryDate,
		Controlled:   req.Controlled,
		Schedule:     req.Schedule,
		Location:     req.Location,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetInventoryItem returns a single stock item
// GET /api/inventory/:id
func (h *Handler) GetInventoryItem(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	item, err := h.store.FindInventoryItemByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateInventoryItem applies a partial update to a stock item. The
// quantity moves only through stock adjustments.
// PUT /api/inventory/:id
func (h *Handler) UpdateInventoryItem(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.InventoryUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	item, err := h.store.UpdateInventoryItem(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// AdjustStock receives or dispenses stock
// POST /api/inventory/:id/adjust
func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	item, err := h.store.AdjustStock(tenantID(c), id, req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteInventoryItem soft-deletes a stock item
// DELETE /api/inventory/:id
func (h *Handler) DeleteInventoryItem(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteInventoryItem(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "inventory item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "inventory item deleted"})
}

// ListMedications returns the practice's drug definitions
// GET /api/medications
func (h *Handler) ListMedications(c *gin.Context) {
	meds, err := h.store.FindMedications(tenantID(c), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"medications": meds, "total": len(meds)})
}

// CreateMedication adds a drug definition
// POST /api/medications
func (h *Handler) CreateMedication(c *gin.Context) {
	var req CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	med, err := h.store.CreateMedication(models.Medication{
		TenantID:    tenantID(c),
		Name:        req.Name,
		GenericName: req.GenericName,
		Form:        req.Form,
		Strength:    req.Strength,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, med)
}
