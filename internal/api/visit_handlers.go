// Package api - Appointment handlers
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/metrics"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// CreateVisitRequest schedules an appointment
type CreateVisitRequest struct {
	ClinicID    uuid.UUID        `json:"clinic_id" binding:"required"`
	PetID       uuid.UUID        `json:"pet_id" binding:"required"`
	VetID       *uuid.UUID       `json:"vet_id"`
	VisitType   models.VisitType `json:"visit_type" binding:"required"`
	ScheduledAt time.Time        `json:"scheduled_at" binding:"required"`
	Reason      string           `json:"reason"`
}

// TransitionRequest moves a visit to a new lifecycle status
type TransitionRequest struct {
	Status models.VisitStatus `json:"status" binding:"required"`
}

// ListVisits returns appointments, filterable by day, status, clinic and vet
// GET /api/visits?date=2024-09-10&status=scheduled
func (h *Handler) ListVisits(c *gin.Context) {
	var filter store.VisitFilter
	if d := c.Query("date"); d != "" {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		filter.Date = &date
	}
	if s := c.Query("status"); s != "" {
		status := models.VisitStatus(s)
		filter.Status = &status
	}
	if cl := c.Query("clinic_id"); cl != "" {
		clinicID, err := uuid.Parse(cl)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clinic_id"})
			return
		}
		filter.ClinicID = &clinicID
	}
	if v := c.Query("vet_id"); v != "" {
		vetID, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vet_id"})
			return
		}
		filter.VetID = &vetID
	}

	visits, err := h.store.FindVisits(tenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": visits, "total": len(visits)})
}

// CreateVisit schedules an appointment
// POST /api/visits
func (h *Handler) CreateVisit(c *gin.Context) {
	var req CreateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	visit, err := h.store.CreateVisit(models.Visit{
		TenantID:    tenantID(c),
		ClinicID:    req.ClinicID,
		PetID:       req.PetID,
		VetID:       req.VetID,
		VisitType:   req.VisitType,
		ScheduledAt: req.ScheduledAt,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, visit)
}

// GetVisit returns a single appointment with pet, owner and vet embedded
// GET /api/visits/:id
func (h *Handler) GetVisit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	visit, err := h.store.FindVisitByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// UpdateVisit applies a partial update to the clinical fields
// PUT /api/visits/:id
func (h *Handler) UpdateVisit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.VisitUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	visit, err := h.store.UpdateVisit(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// TransitionVisit moves a visit through its lifecycle
// POST /api/visits/:id/transition
func (h *Handler) TransitionVisit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	visit, err := h.store.TransitionVisit(tenantID(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.RecordVisitTransition(string(req.Status))
	c.JSON(http.StatusOK, visit)
}

// DeleteVisit soft-deletes an appointment
// DELETE /api/visits/:id
func (h *Handler) DeleteVisit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteVisit(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "visit not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "visit deleted"})
}
