// Package store - GORM-backed store implementation.
// Production data access against PostgreSQL or MySQL. Mirrors the rules the
// in-memory store enforces: tenant scoping on every query, soft deletes via
// is_active, typed errors, and relation loads that fail loudly on dangling
// references.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
)

// Gorm is the database-backed Store implementation
type Gorm struct {
	db           *gorm.DB
	now          Clock
	expiryWindow time.Duration
}

// GormOption configures a Gorm store
type GormOption func(*Gorm)

// WithGormClock overrides the store clock
func WithGormClock(c Clock) GormOption {
	return func(g *Gorm) { g.now = c }
}

// WithGormExpiryWindow overrides the expiring-soon look-ahead window
func WithGormExpiryWindow(d time.Duration) GormOption {
	return func(g *Gorm) { g.expiryWindow = d }
}

// NewGorm wraps a connected gorm.DB as a Store
func NewGorm(db *gorm.DB, opts ...GormOption) *Gorm {
	g := &Gorm{
		db:           db,
		now:          time.Now,
		expiryWindow: DefaultExpiryWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Store = (*Gorm)(nil)

// scoped returns a query restricted to one tenant's active rows
func (g *Gorm) scoped(tenantID uuid.UUID) *gorm.DB {
	return g.db.Where("tenant_id = ? AND is_active = ?", tenantID, true)
}

// searchClause builds a portable case-insensitive substring match across
// the given columns
func searchClause(term string, columns ...string) (string, []interface{}) {
	pattern := "%" + strings.ToLower(term) + "%"
	conditions := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		conditions[i] = fmt.Sprintf("LOWER(%s) LIKE ?", col)
		args[i] = pattern
	}
	return "(" + strings.Join(conditions, " OR ") + ")", args
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError(resource)
	}
	return apperrors.NewInternalError(err)
}

// =============================================================================
// TENANTS
// =============================================================================

func (g *Gorm) CreateTenant(t models.Tenant) (*models.Tenant, error) {
	if t.Slug == "" {
		return nil, apperrors.NewValidationError("slug", "slug is required")
	}
	if t.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	var count int64
	if err := g.db.Model(&models.Tenant{}).Where("slug = ?", t.Slug).Count(&count).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if count > 0 {
		return nil, apperrors.NewConflictError("tenant")
	}

	t.ID = uuid.New()
	t.IsActive = true
	if err := g.db.Create(&t).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &t, nil
}

func (g *Gorm) FindTenants() ([]models.Tenant, error) {
	tenants := []models.Tenant{}
	if err := g.db.Where("is_active = ?", true).Order("created_at").Find(&tenants).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tenants, nil
}

func (g *Gorm) FindTenantByID(id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	if err := g.db.Where("id = ? AND is_active = ?", id, true).First(&t).Error; err != nil {
		return nil, notFoundOr(err, "tenant")
	}
	return &t, nil
}

func (g *Gorm) FindTenantBySlug(slug string) (*models.Tenant, error) {
	var t models.Tenant
	if err := g.db.Where("slug = ? AND is_active = ?", slug, true).First(&t).Error; err != nil {
		return nil, notFoundOr(err, "tenant")
	}
	return &t, nil
}

func (g *Gorm) UpdateTenant(id uuid.UUID, patch TenantUpdate) (*models.Tenant, error) {
	t, err := g.FindTenantByID(id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Domain != nil {
		updates["domain"] = *patch.Domain
	}
	if patch.Settings != nil {
		updates["settings"] = patch.Settings
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if len(updates) > 0 {
		if err := g.db.Model(t).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return t, nil
}

func (g *Gorm) DeleteTenant(id uuid.UUID) (bool, error) {
	res := g.db.Model(&models.Tenant{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, apperrors.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// =============================================================================
// CLINICS
// =============================================================================

func (g *Gorm) CreateClinic(c models.Clinic) (*models.Clinic, error) {
	if _, err := g.FindTenantByID(c.TenantID); err != nil {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if c.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.ID = uuid.New()
	c.IsActive = true
	if err := g.db.Create(&c).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &c, nil
}

func (g *Gorm) FindClinics(tenantID uuid.UUID) ([]models.Clinic, error) {
	clinics := []models.Clinic{}
	if err := g.scoped(tenantID).Order("created_at").Find(&clinics).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return clinics, nil
}

func (g *Gorm) FindClinicByID(tenantID, id uuid.UUID) (*models.Clinic, error) {
	var c models.Clinic
	if err := g.scoped(tenantID).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFoundOr(err, "clinic")
	}
	return &c, nil
}

func (g *Gorm) UpdateClinic(tenantID, id uuid.UUID, patch ClinicUpdate) (*models.Clinic, error) {
	c, err := g.FindClinicByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.AddressLine1 != nil {
		updates["address_line1"] = *patch.AddressLine1
	}
	if patch.AddressLine2 != nil {
		updates["address_line2"] = *patch.AddressLine2
	}
	if patch.City != nil {
		updates["city"] = *patch.City
	}
	if patch.State != nil {
		updates["state"] = *patch.State
	}
	if patch.PostalCode != nil {
		updates["postal_code"] = *patch.PostalCode
	}
	if patch.Country != nil {
		updates["country"] = *patch.Country
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Timezone != nil {
		updates["timezone"] = *patch.Timezone
	}
	if patch.Hours != nil {
		updates["hours"] = patch.Hours
	}
	if len(updates) > 0 {
		if err := g.db.Model(c).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return c, nil
}

func (g *Gorm) DeleteClinic(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.Clinic{}, tenantID, id)
}

// softDelete flips is_active on a tenant-scoped row
func (g *Gorm) softDelete(model interface{}, tenantID, id uuid.UUID) (bool, error) {
	res := g.db.Model(model).
		Where("id = ? AND tenant_id = ? AND is_active = ?", id, tenantID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, apperrors.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// =============================================================================
// USERS
// =============================================================================

func (g *Gorm) CreateUser(u models.User) (*models.User, error) {
	if _, err := g.FindTenantByID(u.TenantID); err != nil {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if u.Email == "" {
		return nil, apperrors.NewValidationError("email", "email is required")
	}
	if !models.ValidRole(u.Role) {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", u.Role))
	}
	if u.ClinicID != nil {
		if _, err := g.FindClinicByID(u.TenantID, *u.ClinicID); err != nil {
			return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
		}
	}
	var count int64
	if err := g.scoped(u.TenantID).Model(&models.User{}).
		Where("LOWER(email) = ?", strings.ToLower(u.Email)).
		Count(&count).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if count > 0 {
		return nil, apperrors.NewConflictError("user")
	}

	u.ID = uuid.New()
	u.IsActive = true
	if err := g.db.Create(&u).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &u, nil
}

func (g *Gorm) FindUsers(tenantID uuid.UUID, filter UserFilter) ([]models.User, error) {
	query := g.scoped(tenantID).Model(&models.User{})
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Search != "" {
		clause, args := searchClause(filter.Search, "first_name", "last_name", "email", "phone")
		query = query.Where(clause, args...)
	}
	users := []models.User{}
	if err := query.Order("created_at").Find(&users).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

func (g *Gorm) FindUserByID(tenantID, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := g.scoped(tenantID).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &u, nil
}

func (g *Gorm) FindUserByEmail(tenantID uuid.UUID, email string) (*models.User, error) {
	var u models.User
	if err := g.scoped(tenantID).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&u).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &u, nil
}

func (g *Gorm) UpdateUser(tenantID, id uuid.UUID, patch UserUpdate) (*models.User, error) {
	u, err := g.FindUserByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.ClinicID != nil {
		if _, err := g.FindClinicByID(tenantID, *patch.ClinicID); err != nil {
			return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
		}
		updates["clinic_id"] = *patch.ClinicID
	}
	if patch.FirstName != nil {
		updates["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		updates["last_name"] = *patch.LastName
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Role != nil {
		if !models.ValidRole(*patch.Role) {
			return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", *patch.Role))
		}
		updates["role"] = *patch.Role
	}
	if patch.PasswordHash != nil {
		updates["password_hash"] = *patch.PasswordHash
	}
	if len(updates) > 0 {
		if err := g.db.Model(u).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return u, nil
}

func (g *Gorm) DeleteUser(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.User{}, tenantID, id)
}

func (g *Gorm) TouchLastLogin(tenantID, id uuid.UUID) error {
	res := g.db.Model(&models.User{}).
		Where("id = ? AND tenant_id = ? AND is_active = ?", id, tenantID, true).
		Update("last_login_at", g.now())
	if res.Error != nil {
		return apperrors.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}

// =============================================================================
// OWNERS
// =============================================================================

func (g *Gorm) CreateOwner(o models.Owner) (*models.Owner, error) {
	if _, err := g.FindTenantByID(o.TenantID); err != nil {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if o.FirstName == "" && o.LastName == "" {
		return nil, apperrors.NewValidationError("last_name", "a name is required")
	}
	o.ID = uuid.New()
	o.IsActive = true
	if err := g.db.Create(&o).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &o, nil
}

func (g *Gorm) FindOwners(tenantID uuid.UUID, filter OwnerFilter) ([]models.Owner, error) {
	query := g.scoped(tenantID).Model(&models.Owner{})
	if filter.Search != "" {
		clause, args := searchClause(filter.Search, "first_name", "last_name", "email", "phone")
		query = query.Where(clause, args...)
	}
	owners := []models.Owner{}
	if err := query.Order("created_at").Find(&owners).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return owners, nil
}

func (g *Gorm) FindOwnerByID(tenantID, id uuid.UUID) (*models.Owner, error) {
	var o models.Owner
	if err := g.scoped(tenantID).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, notFoundOr(err, "owner")
	}
	return &o, nil
}

func (g *Gorm) UpdateOwner(tenantID, id uuid.UUID, patch OwnerUpdate) (*models.Owner, error) {
	o, err := g.FindOwnerByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.FirstName != nil {
		updates["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		updates["last_name"] = *patch.LastName
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.AddressLine1 != nil {
		updates["address_line1"] = *patch.AddressLine1
	}
	if patch.City != nil {
		updates["city"] = *patch.City
	}
	if patch.PostalCode != nil {
		updates["postal_code"] = *patch.PostalCode
	}
	if patch.EmergencyContact != nil {
		updates["emergency_name"] = patch.EmergencyContact.Name
		updates["emergency_phone"] = patch.EmergencyContact.Phone
		updates["emergency_relation"] = patch.EmergencyContact.Relation
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if len(updates) > 0 {
		if err := g.db.Model(o).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return g.FindOwnerByID(tenantID, id)
}

func (g *Gorm) DeleteOwner(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.Owner{}, tenantID, id)
}

// =============================================================================
// PETS
// =============================================================================

func (g *Gorm) CreatePet(p models.Pet) (*models.Pet, error) {
	if _, err := g.FindOwnerByID(p.TenantID, p.OwnerID); err != nil {
		return nil, apperrors.NewValidationError("owner_id", "owner does not exist")
	}
	if p.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if p.Species == "" {
		return nil, apperrors.NewValidationError("species", "species is required")
	}
	p.ID = uuid.New()
	p.Owner = nil
	p.IsActive = true
	if err := g.db.Create(&p).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return g.FindPetByID(p.TenantID, p.ID)
}

func (g *Gorm) FindPets(tenantID uuid.UUID, filter PetFilter) ([]models.Pet, error) {
	query := g.scoped(tenantID).Model(&models.Pet{}).Preload("Owner")
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Search != "" {
		clause, args := searchClause(filter.Search, "name", "species", "breed", "microchip_id")
		query = query.Where(clause, args...)
	}
	pets := []models.Pet{}
	if err := query.Order("created_at").Find(&pets).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range pets {
		if pets[i].Owner == nil {
			return nil, apperrors.NewInternalError(
				fmt.Errorf("pet %s references missing owner %s", pets[i].ID, pets[i].OwnerID))
		}
	}
	return pets, nil
}

func (g *Gorm) FindPetByID(tenantID, id uuid.UUID) (*models.Pet, error) {
	var p models.Pet
	if err := g.scoped(tenantID).Preload("Owner").Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFoundOr(err, "pet")
	}
	if p.Owner == nil {
		return nil, apperrors.NewInternalError(
			fmt.Errorf("pet %s references missing owner %s", p.ID, p.OwnerID))
	}
	return &p, nil
}

func (g *Gorm) UpdatePet(tenantID, id uuid.UUID, patch PetUpdate) (*models.Pet, error) {
	p, err := g.FindPetByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Species != nil {
		updates["species"] = *patch.Species
	}
	if patch.Breed != nil {
		updates["breed"] = *patch.Breed
	}
	if patch.Gender != nil {
		updates["gender"] = *patch.Gender
	}
	if patch.Neutered != nil {
		updates["neutered"] = *patch.Neutered
	}
	if patch.DateOfBirth != nil {
		updates["date_of_birth"] = *patch.DateOfBirth
	}
	if patch.MicrochipID != nil {
		updates["microchip_id"] = *patch.MicrochipID
	}
	if patch.WeightKg != nil {
		updates["weight_kg"] = *patch.WeightKg
	}
	if patch.Allergies != nil {
		updates["allergies"] = pq.StringArray(patch.Allergies)
	}
	if patch.ChronicConditions != nil {
		updates["chronic_conditions"] = pq.StringArray(patch.ChronicConditions)
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if len(updates) > 0 {
		if err := g.db.Model(p).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return g.FindPetByID(tenantID, id)
}

func (g *Gorm) DeletePet(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.Pet{}, tenantID, id)
}

// =============================================================================
// VISITS
// =============================================================================

func (g *Gorm) CreateVisit(v models.Visit) (*models.Visit, error) {
	if _, err := g.FindClinicByID(v.TenantID, v.ClinicID); err != nil {
		return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
	}
	if _, err := g.FindPetByID(v.TenantID, v.PetID); err != nil {
		return nil, apperrors.NewValidationError("pet_id", "pet does not exist")
	}
	if v.VetID != nil {
		if _, err := g.FindUserByID(v.TenantID, *v.VetID); err != nil {
			return nil, apperrors.NewValidationError("vet_id", "staff member does not exist")
		}
	}
	if v.VisitType == "" {
		return nil, apperrors.NewValidationError("visit_type", "visit type is required")
	}
	if v.ScheduledAt.IsZero() {
		return nil, apperrors.NewValidationError("scheduled_at", "scheduled time is required")
	}

	v.ID = uuid.New()
	v.Status = models.VisitScheduled
	v.Pet = nil
	v.Vet = nil
	v.Clinic = nil
	v.IsActive = true
	if err := g.db.Create(&v).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return g.FindVisitByID(v.TenantID, v.ID)
}

func (g *Gorm) FindVisits(tenantID uuid.UUID, filter VisitFilter) ([]models.Visit, error) {
	query := g.scoped(tenantID).Model(&models.Visit{}).
		Preload("Pet").Preload("Pet.Owner").Preload("Vet")
	if filter.Date != nil {
		start := startOfDay(*filter.Date)
		query = query.Where("scheduled_at >= ? AND scheduled_at < ?", start, start.Add(24*time.Hour))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ClinicID != nil {
		query = query.Where("clinic_id = ?", *filter.ClinicID)
	}
	if filter.VetID != nil {
		query = query.Where("vet_id = ?", *filter.VetID)
	}
	visits := []models.Visit{}
	if err := query.Order("scheduled_at").Find(&visits).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range visits {
		if err := checkVisitRelations(&visits[i]); err != nil {
			return nil, err
		}
	}
	return visits, nil
}

func (g *Gorm) FindVisitByID(tenantID, id uuid.UUID) (*models.Visit, error) {
	var v models.Visit
	if err := g.scoped(tenantID).
		Preload("Pet").Preload("Pet.Owner").Preload("Vet").
		Where("id = ?", id).First(&v).Error; err != nil {
		return nil, notFoundOr(err, "visit")
	}
	if err := checkVisitRelations(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// checkVisitRelations verifies preloaded relations resolved. A missing
// pet or vet row means the database is corrupt and is reported, never
// silently returned as nil.
func checkVisitRelations(v *models.Visit) error {
	if v.Pet == nil {
		return apperrors.NewInternalError(
			fmt.Errorf("visit %s references missing pet %s", v.ID, v.PetID))
	}
	if v.Pet.Owner == nil {
		return apperrors.NewInternalError(
			fmt.Errorf("pet %s references missing owner %s", v.Pet.ID, v.Pet.OwnerID))
	}
	if v.VetID != nil && v.Vet == nil {
		return apperrors.NewInternalError(
			fmt.Errorf("visit %s references missing staff member %s", v.ID, *v.VetID))
	}
	return nil
}

func (g *Gorm) UpdateVisit(tenantID, id uuid.UUID, patch VisitUpdate) (*models.Visit, error) {
	if _, err := g.FindVisitByID(tenantID, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.VetID != nil {
		if _, err := g.FindUserByID(tenantID, *patch.VetID); err != nil {
			return nil, apperrors.NewValidationError("vet_id", "staff member does not exist")
		}
		updates["vet_id"] = *patch.VetID
	}
	if patch.VisitType != nil {
		updates["visit_type"] = *patch.VisitType
	}
	if patch.ScheduledAt != nil {
		updates["scheduled_at"] = *patch.ScheduledAt
	}
	if patch.Reason != nil {
		updates["reason"] = *patch.Reason
	}
	if patch.Symptoms != nil {
		updates["symptoms"] = *patch.Symptoms
	}
	if patch.Diagnosis != nil {
		updates["diagnosis"] = *patch.Diagnosis
	}
	if patch.Treatment != nil {
		updates["treatment"] = *patch.Treatment
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.FollowUpNeeded != nil {
		updates["follow_up_needed"] = *patch.FollowUpNeeded
	}
	if patch.FollowUpDate != nil {
		updates["follow_up_date"] = *patch.FollowUpDate
	}
	if len(updates) > 0 {
		if err := g.db.Model(&models.Visit{}).
			Where("id = ? AND tenant_id = ?", id, tenantID).
			Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return g.FindVisitByID(tenantID, id)
}

func (g *Gorm) TransitionVisit(tenantID, id uuid.UUID, to models.VisitStatus) (*models.Visit, error) {
	v, err := g.FindVisitByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	if !models.ValidVisitStatus(to) {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if !models.CanTransition(v.Status, to) {
		return nil, apperrors.NewValidationError("status",
			fmt.Sprintf("cannot transition visit from %s to %s", v.Status, to))
	}

	now := g.now()
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.VisitCheckedIn:
		updates["checked_in_at"] = now
	case models.VisitInProgress:
		updates["started_at"] = now
	case models.VisitCompleted:
		updates["completed_at"] = now
	}
	// Guard against a concurrent transition between the read and the write
	res := g.db.Model(&models.Visit{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, v.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, apperrors.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NewConflictError("visit")
	}
	return g.FindVisitByID(tenantID, id)
}

func (g *Gorm) DeleteVisit(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.Visit{}, tenantID, id)
}

// =============================================================================
// INVOICES
// =============================================================================

func (g *Gorm) CreateInvoice(inv models.Invoice) (*models.Invoice, error) {
	if _, err := g.FindClinicByID(inv.TenantID, inv.ClinicID); err != nil {
		return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
	}
	if inv.VisitID != nil {
		if _, err := g.FindVisitByID(inv.TenantID, *inv.VisitID); err != nil {
			return nil, apperrors.NewValidationError("visit_id", "visit does not exist")
		}
	}
	if inv.OwnerID != nil {
		if _, err := g.FindOwnerByID(inv.TenantID, *inv.OwnerID); err != nil {
			return nil, apperrors.NewValidationError("owner_id", "owner does not exist")
		}
	}
	if len(inv.Items) == 0 {
		return nil, apperrors.NewValidationError("items", "at least one line item is required")
	}
	for i := range inv.Items {
		if inv.Items[i].Description == "" {
			return nil, apperrors.NewValidationError("items", "line item description is required")
		}
		if inv.Items[i].Quantity < 1 {
			return nil, apperrors.NewValidationError("items", "line item quantity must be at least 1")
		}
		if inv.Items[i].UnitPrice < 0 {
			return nil, apperrors.NewValidationError("items", "line item unit price cannot be negative")
		}
	}
	if inv.Tax < 0 {
		return nil, apperrors.NewValidationError("tax", "tax cannot be negative")
	}
	if inv.Discount < 0 {
		return nil, apperrors.NewValidationError("discount", "discount cannot be negative")
	}

	inv.ID = uuid.New()
	inv.ComputeTotals()
	if inv.Total < 0 {
		return nil, apperrors.NewValidationError("discount", "discount exceeds invoice amount")
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = g.now()
	}
	if inv.Status == "" {
		inv.Status = models.InvoicePending
	}
	inv.PaymentStatus = models.PaymentUnpaid
	inv.PaidAmount = 0
	inv.Payments = nil
	for i := range inv.Items {
		inv.Items[i].ID = uuid.New()
		inv.Items[i].InvoiceID = inv.ID
	}

	err := g.db.Transaction(func(tx *gorm.DB) error {
		if inv.InvoiceNumber == "" {
			number, err := nextInvoiceNumber(tx, inv.TenantID)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = number
		} else {
			var count int64
			if err := tx.Model(&models.Invoice{}).
				Where("tenant_id = ? AND invoice_number = ?", inv.TenantID, inv.InvoiceNumber).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperrors.NewConflictError("invoice")
			}
		}
		return tx.Create(&inv).Error
	})
	if err != nil {
		var appErr apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewInternalError(err)
	}
	return g.FindInvoiceByID(inv.TenantID, inv.ID)
}

// nextInvoiceNumber allocates the next INV-NNNNNN number for a tenant
func nextInvoiceNumber(tx *gorm.DB, tenantID uuid.UUID) (string, error) {
	var count int64
	if err := tx.Model(&models.Invoice{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%06d", count+1), nil
}

func (g *Gorm) FindInvoices(tenantID uuid.UUID, filter InvoiceFilter) ([]models.Invoice, error) {
	query := g.scoped(tenantID).Model(&models.Invoice{}).
		Preload("Items").Preload("Payments")
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	invoices := []models.Invoice{}
	if err := query.Order("invoice_date").Find(&invoices).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return invoices, nil
}

func (g *Gorm) FindInvoiceByID(tenantID, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := g.scoped(tenantID).
		Preload("Items").Preload("Payments").
		Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFoundOr(err, "invoice")
	}
	return &inv, nil
}

func (g *Gorm) AddPayment(tenantID, invoiceID uuid.UUID, p models.Payment) (*models.Invoice, error) {
	inv, err := g.FindInvoiceByID(tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceCancelled || inv.Status == models.InvoiceRefunded {
		return nil, apperrors.NewValidationError("status",
			fmt.Sprintf("cannot record payment on a %s invoice", inv.Status))
	}
	if p.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount", "payment amount must be positive")
	}
	if p.Method == "" {
		return nil, apperrors.NewValidationError("method", "payment method is required")
	}

	now := g.now()
	p.ID = uuid.New()
	p.InvoiceID = inv.ID
	if p.Status == "" {
		p.Status = "completed"
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}

	inv.PaidAmount += p.Amount
	paymentStatus := inv.DerivePaymentStatus()
	updates := map[string]interface{}{
		"paid_amount":    inv.PaidAmount,
		"payment_status": paymentStatus,
	}
	if paymentStatus == models.PaymentPaid || paymentStatus == models.PaymentOverpaid {
		updates["status"] = models.InvoicePaid
	}

	err = g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invoice{}).
			Where("id = ? AND tenant_id = ?", inv.ID, tenantID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return g.FindInvoiceByID(tenantID, invoiceID)
}

func (g *Gorm) DeleteInvoice(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.Invoice{}, tenantID, id)
}

// =============================================================================
// INVENTORY
// =============================================================================

func (g *Gorm) CreateInventoryItem(item models.InventoryItem) (*models.InventoryItem, error) {
	if _, err := g.FindClinicByID(item.TenantID, item.ClinicID); err != nil {
		return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
	}
	if item.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if item.Quantity < 0 {
		return nil, apperrors.NewValidationError("quantity", "quantity cannot be negative")
	}
	if item.ReorderPoint < 0 {
		return nil, apperrors.NewValidationError("reorder_point", "reorder point cannot be negative")
	}
	if item.MedicationID != nil {
		var count int64
		if err := g.scoped(item.TenantID).Model(&models.Medication{}).
			Where("id = ?", *item.MedicationID).
			Count(&count).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if count == 0 {
			return nil, apperrors.NewValidationError("medication_id", "medication does not exist")
		}
	}
	if item.Controlled && item.Schedule == models.ScheduleNone {
		return nil, apperrors.NewValidationError("schedule", "controlled substances require a schedule")
	}

	item.ID = uuid.New()
	item.Medication = nil
	item.IsActive = true
	if err := g.db.Create(&item).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &item, nil
}

func (g *Gorm) FindInventory(tenantID uuid.UUID, filter InventoryFilter) ([]models.InventoryItem, error) {
	now := g.now()
	query := g.scoped(tenantID).Model(&models.InventoryItem{})
	if filter.ClinicID != nil {
		query = query.Where("clinic_id = ?", *filter.ClinicID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.LowStock {
		query = query.Where("quantity <= reorder_point")
	}
	if filter.Expiring {
		query = query.Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date < ?",
			now, now.Add(g.expiryWindow))
	}
	if filter.Search != "" {
		clause, args := searchClause(filter.Search, "name", "category", "lot_number")
		query = query.Where(clause, args...)
	}
	items := []models.InventoryItem{}
	if err := query.Order("created_at").Find(&items).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return items, nil
}

func (g *Gorm) FindInventoryItemByID(tenantID, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := g.scoped(tenantID).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFoundOr(err, "inventory item")
	}
	return &item, nil
}

func (g *Gorm) UpdateInventoryItem(tenantID, id uuid.UUID, patch InventoryUpdate) (*models.InventoryItem, error) {
	item, err := g.FindInventoryItemByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.ReorderPoint != nil {
		if *patch.ReorderPoint < 0 {
			return nil, apperrors.NewValidationError("reorder_point", "reorder point cannot be negative")
		}
		updates["reorder_point"] = *patch.ReorderPoint
	}
	if patch.Unit != nil {
		updates["unit"] = *patch.Unit
	}
	if patch.CostPrice != nil {
		updates["cost_price"] = *patch.CostPrice
	}
	if patch.SalePrice != nil {
		updates["sale_price"] = *patch.SalePrice
	}
	if patch.LotNumber != nil {
		updates["lot_number"] = *patch.LotNumber
	}
	if patch.ExpiryDate != nil {
		updates["expiry_date"] = *patch.ExpiryDate
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if len(updates) > 0 {
		if err := g.db.Model(item).Updates(updates).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return g.FindInventoryItemByID(tenantID, id)
}

func (g *Gorm) AdjustStock(tenantID, id uuid.UUID, delta int) (*models.InventoryItem, error) {
	item, err := g.FindInventoryItemByID(tenantID, id)
	if err != nil {
		return nil, err
	}
	if item.Quantity+delta < 0 {
		return nil, apperrors.NewValidationError("quantity",
			fmt.Sprintf("cannot dispense %d units, only %d on hand", -delta, item.Quantity))
	}
	// The quantity guard repeats in SQL so concurrent dispenses cannot
	// drive stock negative
	res := g.db.Model(&models.InventoryItem{}).
		Where("id = ? AND tenant_id = ? AND quantity + ? >= 0", id, tenantID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return nil, apperrors.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NewConflictError("inventory item")
	}
	return g.FindInventoryItemByID(tenantID, id)
}

func (g *Gorm) DeleteInventoryItem(tenantID, id uuid.UUID) (bool, error) {
	return g.softDelete(&models.InventoryItem{}, tenantID, id)
}

// =============================================================================
// MEDICATIONS
// =============================================================================

func (g *Gorm) CreateMedication(med models.Medication) (*models.Medication, error) {
	if _, err := g.FindTenantByID(med.TenantID); err != nil {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if med.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	med.ID = uuid.New()
	med.IsActive = true
	if err := g.db.Create(&med).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &med, nil
}

func (g *Gorm) FindMedications(tenantID uuid.UUID, search string) ([]models.Medication, error) {
	query := g.scoped(tenantID).Model(&models.Medication{})
	if search != "" {
		clause, args := searchClause(search, "name", "generic_name")
		query = query.Where(clause, args...)
	}
	meds := []models.Medication{}
	if err := query.Order("name").Find(&meds).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return meds, nil
}

// =============================================================================
// STATS
// =============================================================================

// DashboardStats aggregates the tenant summary with SQL counts
func (g *Gorm) DashboardStats(tenantID uuid.UUID) (*DashboardStats, error) {
	now := g.now()
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)
	stats := &DashboardStats{}

	type countQuery struct {
		dest  *int
		query *gorm.DB
	}
	counts := []countQuery{
		{&stats.TodayAppointments, g.scoped(tenantID).Model(&models.Visit{}).
			Where("scheduled_at >= ? AND scheduled_at < ?", dayStart, dayEnd)},
		{&stats.TodayCheckIns, g.scoped(tenantID).Model(&models.Visit{}).
			Where("scheduled_at >= ? AND scheduled_at < ? AND status = ?", dayStart, dayEnd, models.VisitCheckedIn)},
		{&stats.CompletedAppointments, g.scoped(tenantID).Model(&models.Visit{}).
			Where("scheduled_at >= ? AND scheduled_at < ? AND status = ?", dayStart, dayEnd, models.VisitCompleted)},
		{&stats.PendingInvoices, g.scoped(tenantID).Model(&models.Invoice{}).
			Where("status IN ?", []models.InvoiceStatus{models.InvoicePending, models.InvoiceOverdue})},
		{&stats.LowInventoryItems, g.scoped(tenantID).Model(&models.InventoryItem{}).
			Where("quantity <= reorder_point")},
		{&stats.ExpiringItems, g.scoped(tenantID).Model(&models.InventoryItem{}).
			Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date < ?", now, now.Add(g.expiryWindow))},
		{&stats.ActivePatients, g.scoped(tenantID).Model(&models.Pet{})},
		{&stats.ActiveOwners, g.scoped(tenantID).Model(&models.Owner{})},
	}
	for _, c := range counts {
		var n int64
		if err := c.query.Count(&n).Error; err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		*c.dest = int(n)
	}

	var revenue *float64
	if err := g.scoped(tenantID).Model(&models.Invoice{}).
		Where("payment_status = ? AND invoice_date >= ? AND invoice_date < ?",
			models.PaymentPaid, dayStart, dayEnd).
		Select("SUM(total)").Scan(&revenue).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if revenue != nil {
		stats.RevenueToday = *revenue
	}

	return stats, nil
}

// startOfDay truncates t to midnight in its own location
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
