// Package api - Billing handlers (invoices and payments)
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// InvoiceItemRequest is one invoice line
type InvoiceItemRequest struct {
	Description string  `json:"description" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	UnitPrice   float64 `json:"unit_price" binding:"min=0"`
}

// CreateInvoiceRequest creates a bill. Totals are computed server-side
// from the items.
type CreateInvoiceRequest struct {
	ClinicID uuid.UUID            `json:"clinic_id" binding:"required"`
	VisitID  *uuid.UUID           `json:"visit_id"`
	OwnerID  *uuid.UUID           `json:"owner_id"`
	DueDate  *time.Time           `json:"due_date"`
	Tax      float64              `json:"tax"`
	Discount float64              `json:"discount"`
	Notes    string               `json:"notes"`
	Items    []InvoiceItemRequest `json:"items" binding:"required,min=1"`
}

// PaymentRequest records a payment against an invoice
type PaymentRequest struct {
	Amount float64              `json:"amount" binding:"required"`
	Method models.PaymentMethod `json:"method" binding:"required"`
}

// ListInvoices returns the practice's invoices
// GET /api/invoices?status=pending
func (h *Handler) ListInvoices(c *gin.Context) {
	var filter store.InvoiceFilter
	if s := c.Query("status"); s != "" {
		status := models.InvoiceStatus(s)
		filter.Status = &status
	}
	if p := c.Query("payment_status"); p != "" {
		ps := models.PaymentStatus(p)
		filter.PaymentStatus = &ps
	}
	if o := c.Query("owner_id"); o != "" {
		ownerID, err := uuid.Parse(o)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
			return
		}
		filter.OwnerID = &ownerID
	}

	invoices, err := h.store.FindInvoices(tenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "total": len(invoices)})
}

// CreateInvoice creates a bill
// POST /api/invoices
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	items := make([]models.InvoiceItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = models.InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	invoice, err := h.store.CreateInvoice(models.Invoice{
		TenantID: tenantID(c),
		ClinicID: req.ClinicID,
		VisitID:  req.VisitID,
		OwnerID:  req.OwnerID,
		DueDate:  req.DueDate,
		Tax:      req.Tax,
		Discount: req.Discount,
		Notes:    req.Notes,
		Items:    items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// GetInvoice returns a single invoice with items and payments
// GET /api/invoices/:id
func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	invoice, err := h.store.FindInvoiceByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// AddPayment records a payment against an invoice
// POST /api/invoices/:id/payments
func (h *Handler) AddPayment(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	invoice, err := h.store.AddPayment(tenantID(c), id, models.Payment{
		Amount: req.Amount,
		Method: req.Method,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// DeleteInvoice soft-deletes an invoice
// DELETE /api/invoices/:id
func (h *Handler) DeleteInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteInvoice(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invoice deleted"})
}
