// Package api - Client and patient record handlers
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// =============================================================================
// OWNERS
// =============================================================================

// CreateOwnerRequest registers a client
type CreateOwnerRequest struct {
	FirstName        string                  `json:"first_name"`
	LastName         string                  `json:"last_name"`
	Email            string                  `json:"email"`
	Phone            string                  `json:"phone"`
	AddressLine1     string                  `json:"address_line1"`
	City             string                  `json:"city"`
	PostalCode       string                  `json:"postal_code"`
	EmergencyContact models.EmergencyContact `json:"emergency_contact"`
	Notes            string                  `json:"notes"`
}

// ListOwners returns the practice's clients
// GET /api/owners
func (h *Handler) ListOwners(c *gin.Context) {
	owners, err := h.store.FindOwners(tenantID(c), store.OwnerFilter{Search: c.Query("search")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owners": owners, "total": len(owners)})
}

// CreateOwner registers a client
// POST /api/owners
func (h *Handler) CreateOwner(c *gin.Context) {
	var req CreateOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	owner, err := h.store.CreateOwner(models.Owner{
		TenantID:         tenantID(c),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		AddressLine1:     req.AddressLine1,
		City:             req.City,
		PostalCode:       req.PostalCode,
		EmergencyContact: req.EmergencyContact,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, owner)
}

// GetOwner returns a single client
// GET /api/owners/:id
func (h *Handler) GetOwner(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	owner, err := h.store.FindOwnerByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

// UpdateOwner applies a partial update to a client
// PUT /api/owners/:id
func (h *Handler) UpdateOwner(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.OwnerUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	owner, err := h.store.UpdateOwner(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

// DeleteOwner soft-deletes a client
// DELETE /api/owners/:id
func (h *Handler) DeleteOwner(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteOwner(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "owner not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "owner deleted"})
}

// =============================================================================
// PETS
// =============================================================================

// CreatePetRequest registers a patient
type CreatePetRequest struct {
	OwnerID           uuid.UUID  `json:"owner_id" binding:"required"`
	Name              string     `json:"name" binding:"required"`
	Species           string     `json:"species" binding:"required"`
	Breed             string     `json:"breed"`
	Gender            string     `json:"gender"`
	Neutered          bool       `json:"neutered"`
	DateOfBirth       *time.Time `json:"date_of_birth"`
	MicrochipID       string     `json:"microchip_id"`
	WeightKg          float64    `json:"weight_kg"`
	Allergies         []string   `json:"allergies"`
	ChronicConditions []string   `json:"chronic_conditions"`
	Notes             string     `json:"notes"`
}

// ListPets returns the practice's patients with owners embedded
// GET /api/pets
func (h *Handler) ListPets(c *gin.Context) {
	filter := store.PetFilter{Search: c.Query("search")}
	if o := c.Query("owner_id"); o != "" {
		ownerID, err := uuid.Parse(o)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
			return
		}
		filter.OwnerID = &ownerID
	}
	pets, err := h.store.FindPets(tenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pets": pets, "total": len(pets)})
}

// CreatePet registers a patient
// POST /api/pets
func (h *Handler) CreatePet(c *gin.Context) {
	var req CreatePetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	pet, err := h.store.CreatePet(models.Pet{
		TenantID:          tenantID(c),
		OwnerID:           req.OwnerID,
		Name:              req.Name,
		Species:           req.Species,
		Breed:             req.Breed,
		Gender:            req.Gender,
		Neutered:          req.Neutered,
		DateOfBirth:       req.DateOfBirth,
		MicrochipID:       req.MicrochipID,
		WeightKg:          req.WeightKg,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		Notes:             req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pet)
}

// GetPet returns a single patient with its owner embedded
// GET /api/pets/:id
func (h *Handler) GetPet(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	pet, err := h.store.FindPetByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pet)
}

// UpdatePet applies a partial update to a patient
// PUT /api/pets/:id
func (h *Handler) UpdatePet(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.PetUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	pet, err := h.store.UpdatePet(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pet)
}

// DeletePet soft-deletes a patient
// DELETE /api/pets/:id
func (h *Handler) DeletePet(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeletePet(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pet deleted"})
}
