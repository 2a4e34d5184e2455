// Package api - Practice administration handlers (tenants, clinics, staff)
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/auth"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// =============================================================================
// TENANTS
// =============================================================================

// CreateTenantRequest registers a new practice
type CreateTenantRequest struct {
	Slug     string       `json:"slug" binding:"required"`
	Name     string       `json:"name" binding:"required"`
	Domain   string       `json:"domain"`
	Settings models.JSONB `json:"settings"`
}

// ListTenants returns all active practices
// GET /admin/tenants
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.store.FindTenants()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "total": len(tenants)})
}

// CreateTenant registers a new practice
// POST /admin/tenants
func (h *Handler) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	tenant, err := h.store.CreateTenant(models.Tenant{
		Slug:     req.Slug,
		Name:     req.Name,
		Domain:   req.Domain,
		Settings: req.Settings,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

// GetTenant returns a single practice
// GET /admin/tenants/:id
func (h *Handler) GetTenant(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	tenant, err := h.store.FindTenantByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// UpdateTenant applies a partial update to a practice
// PUT /admin/tenants/:id
func (h *Handler) UpdateTenant(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.TenantUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tenant, err := h.store.UpdateTenant(id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// DeleteTenant soft-deletes a practice
// DELETE /admin/tenants/:id
func (h *Handler) DeleteTenant(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteTenant(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tenant deleted"})
}

// =============================================================================
// CLINICS
// =============================================================================

// CreateClinicRequest adds a location to the caller's practice
type CreateClinicRequest struct {
	Name         string       `json:"name" binding:"required"`
	AddressLine1 string       `json:"address_line1"`
	AddressLine2 string       `json:"address_line2"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	PostalCode   string       `json:"postal_code"`
	Country      string       `json:"country"`
	Phone        string       `json:"phone"`
	Email        string       `json:"email"`
	Timezone     string       `json:"timezone"`
	Hours        models.JSONB `json:"hours"`
}

// ListClinics returns the practice's locations
// GET /api/clinics
func (h *Handler) ListClinics(c *gin.Context) {
	clinics, err := h.store.FindClinics(tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clinics": clinics, "total": len(clinics)})
}

// CreateClinic adds a location
// POST /api/clinics
func (h *Handler) CreateClinic(c *gin.Context) {
	var req CreateClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	clinic, err := h.store.CreateClinic(models.Clinic{
		TenantID:     tenantID(c),
		Name:         req.Name,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		Phone:        req.Phone,
		Email:        req.Email,
		Timezone:     req.Timezone,
		Hours:        req.Hours,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clinic)
}

// GetClinic returns a single location
// GET /api/clinics/:id
func (h *Handler) GetClinic(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	clinic, err := h.store.FindClinicByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clinic)
}

// UpdateClinic applies a partial update to a location
// PUT /api/clinics/:id
func (h *Handler) UpdateClinic(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.ClinicUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	clinic, err := h.store.UpdateClinic(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clinic)
}

// DeleteClinic soft-deletes a location
// DELETE /api/clinics/:id
func (h *Handler) DeleteClinic(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteClinic(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "clinic not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "clinic deleted"})
}

// =============================================================================
// STAFF
// =============================================================================

// CreateUserRequest adds a staff member to the caller's practice
type CreateUserRequest struct {
	ClinicID  *uuid.UUID  `json:"clinic_id"`
	Email     string      `json:"email" binding:"required,email"`
	Password  string      `json:"password" binding:"required,min=8"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	Role      models.Role `json:"role" binding:"required"`
}

// ListUsers returns the practice's staff
// GET /api/users
func (h *Handler) ListUsers(c *gin.Context) {
	filter := store.UserFilter{Search: c.Query("search")}
	if r := c.Query("role"); r != "" {
		role := models.Role(r)
		filter.Role = &role
	}
	users, err := h.store.FindUsers(tenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// CreateUser adds a staff member
// POST /api/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	// Platform operators are provisioned out of band, never by practice staff
	if req.Role == models.RoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "role cannot be assigned"})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.store.CreateUser(models.User{
		TenantID:     tenantID(c),
		ClinicID:     req.ClinicID,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// GetUser returns a single staff member
// GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	user, err := h.store.FindUserByID(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser applies a partial update to a staff member
// PUT /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var patch store.UserUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if patch.Role != nil && *patch.Role == models.RoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "role cannot be assigned"})
		return
	}
	// Passwords change only through the dedicated endpoint
	patch.PasswordHash = nil
	user, err := h.store.UpdateUser(tenantID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser soft-deletes a staff member
// DELETE /api/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteUser(tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
