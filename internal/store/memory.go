// Package store - In-memory store implementation.
// Used by tests and demo mode. A single RWMutex guards every collection so
// concurrent request handlers cannot lose updates; collections are plain
// slices in insertion order.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
)

// Memory is the in-memory Store implementation
type Memory struct {
	mu           sync.RWMutex
	now          Clock
	expiryWindow time.Duration

	tenants     []models.Tenant
	clinics     []models.Clinic
	users       []models.User
	owners      []models.Owner
	pets        []models.Pet
	visits      []models.Visit
	invoices    []models.Invoice
	items       []models.InventoryItem
	medications []models.Medication

	invoiceSeq map[uuid.UUID]int
}

// MemoryOption configures a Memory store
type MemoryOption func(*Memory)

// WithClock overrides the store clock. Tests freeze time with this.
func WithClock(c Clock) MemoryOption {
	return func(m *Memory) { m.now = c }
}

// WithExpiryWindow overrides the expiring-soon look-ahead window
func WithExpiryWindow(d time.Duration) MemoryOption {
	return func(m *Memory) { m.expiryWindow = d }
}

// NewMemory creates an empty in-memory store
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:          time.Now,
		expiryWindow: DefaultExpiryWindow,
		invoiceSeq:   make(map[uuid.UUID]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

// =============================================================================
// TENANTS
// =============================================================================

// CreateTenant adds a tenant. Slug must be unique across all tenants.
func (m *Memory) CreateTenant(t models.Tenant) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Slug == "" {
		return nil, apperrors.NewValidationError("slug", "slug is required")
	}
	if t.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	for i := range m.tenants {
		if m.tenants[i].Slug == t.Slug {
			return nil, apperrors.NewConflictError("tenant")
		}
	}

	t.ID = uuid.New()
	t.IsActive = true
	t.CreatedAt = m.now()
	t.UpdatedAt = t.CreatedAt
	m.tenants = append(m.tenants, t)
	out := t
	return &out, nil
}

// FindTenants returns all active tenants
func (m *Memory) FindTenants() ([]models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Tenant{}
	for i := range m.tenants {
		if m.tenants[i].IsActive {
			out = append(out, m.tenants[i])
		}
	}
	return out, nil
}

// FindTenantByID returns the active tenant with the given id
func (m *Memory) FindTenantByID(id uuid.UUID) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenantByID(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("tenant")
	}
	out := *t
	return &out, nil
}

// FindTenantBySlug returns the active tenant with the given slug
func (m *Memory) FindTenantBySlug(slug string) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.tenants {
		if m.tenants[i].IsActive && m.tenants[i].Slug == slug {
			out := m.tenants[i]
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError("tenant")
}

// UpdateTenant merges the patch onto an existing tenant
func (m *Memory) UpdateTenant(id uuid.UUID, patch TenantUpdate) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenantByID(id)
	if !ok {
		return nil, apperrors.NewNotFoundError("tenant")
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Domain != nil {
		t.Domain = *patch.Domain
	}
	if patch.Settings != nil {
		t.Settings = patch.Settings
	}
	if patch.IsActive != nil {
		t.IsActive = *patch.IsActive
	}
	t.UpdatedAt = m.now()
	out := *t
	return &out, nil
}

// DeleteTenant soft-deletes a tenant
func (m *Memory) DeleteTenant(id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenantByID(id)
	if !ok {
		return false, nil
	}
	t.IsActive = false
	t.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) tenantByID(id uuid.UUID) (*models.Tenant, bool) {
	for i := range m.tenants {
		if m.tenants[i].ID == id && m.tenants[i].IsActive {
			return &m.tenants[i], true
		}
	}
	return nil, false
}

// =============================================================================
// CLINICS
// =============================================================================

// CreateClinic adds a clinic to an existing tenant
func (m *Memory) CreateClinic(c models.Clinic) (*models.Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenantByID(c.TenantID); !ok {
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
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.clinics = append(m.clinics, c)
	out := c
	return &out, nil
}

// FindClinics returns the tenant's active clinics
func (m *Memory) FindClinics(tenantID uuid.UUID) ([]models.Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Clinic{}
	for i := range m.clinics {
		if m.clinics[i].TenantID == tenantID && m.clinics[i].IsActive {
			out = append(out, m.clinics[i])
		}
	}
	return out, nil
}

// FindClinicByID returns a single active clinic
func (m *Memory) FindClinicByID(tenantID, id uuid.UUID) (*models.Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clinicByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("clinic")
	}
	out := *c
	return &out, nil
}

// UpdateClinic merges the patch onto an existing clinic
func (m *Memory) UpdateClinic(tenantID, id uuid.UUID, patch ClinicUpdate) (*models.Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clinicByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("clinic")
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.AddressLine1 != nil {
		c.AddressLine1 = *patch.AddressLine1
	}
	if patch.AddressLine2 != nil {
		c.AddressLine2 = *patch.AddressLine2
	}
	if patch.City != nil {
		c.City = *patch.City
	}
	if patch.State != nil {
		c.State = *patch.State
	}
	if patch.PostalCode != nil {
		c.PostalCode = *patch.PostalCode
	}
	if patch.Country != nil {
		c.Country = *patch.Country
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.Timezone != nil {
		c.Timezone = *patch.Timezone
	}
	if patch.Hours != nil {
		c.Hours = patch.Hours
	}
	c.UpdatedAt = m.now()
	out := *c
	return &out, nil
}

// DeleteClinic soft-deletes a clinic
func (m *Memory) DeleteClinic(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clinicByID(tenantID, id)
	if !ok {
		return false, nil
	}
	c.IsActive = false
	c.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) clinicByID(tenantID, id uuid.UUID) (*models.Clinic, bool) {
	for i := range m.clinics {
		if m.clinics[i].ID == id && m.clinics[i].TenantID == tenantID && m.clinics[i].IsActive {
			return &m.clinics[i], true
		}
	}
	return nil, false
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser adds a staff member. Email must be unique within the tenant.
func (m *Memory) CreateUser(u models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenantByID(u.TenantID); !ok {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if u.Email == "" {
		return nil, apperrors.NewValidationError("email", "email is required")
	}
	if !models.ValidRole(u.Role) {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", u.Role))
	}
	if u.ClinicID != nil {
		if _, ok := m.clinicByID(u.TenantID, *u.ClinicID); !ok {
			return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
		}
	}
	for i := range m.users {
		if m.users[i].TenantID == u.TenantID && m.users[i].IsActive &&
			strings.EqualFold(m.users[i].Email, u.Email) {
			return nil, apperrors.NewConflictError("user")
		}
	}

	u.ID = uuid.New()
	u.IsActive = true
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.users = append(m.users, u)
	out := u
	return &out, nil
}

// FindUsers returns the tenant's active staff, optionally filtered
func (m *Memory) FindUsers(tenantID uuid.UUID, filter UserFilter) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.User{}
	for i := range m.users {
		u := &m.users[i]
		if u.TenantID != tenantID || !u.IsActive {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != "" && !matchesAny(filter.Search, u.FirstName, u.LastName, u.Email, u.Phone) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

// FindUserByID returns a single active user
func (m *Memory) FindUserByID(tenantID, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.userByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("user")
	}
	out := *u
	return &out, nil
}

// FindUserByEmail returns an active user by tenant-scoped email
func (m *Memory) FindUserByEmail(tenantID uuid.UUID, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.users {
		if m.users[i].TenantID == tenantID && m.users[i].IsActive &&
			strings.EqualFold(m.users[i].Email, email) {
			out := m.users[i]
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user")
}

// UpdateUser merges the patch onto an existing user
func (m *Memory) UpdateUser(tenantID, id uuid.UUID, patch UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.userByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("user")
	}
	if patch.ClinicID != nil {
		if _, ok := m.clinicByID(tenantID, *patch.ClinicID); !ok {
			return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
		}
		u.ClinicID = patch.ClinicID
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Role != nil {
		if !models.ValidRole(*patch.Role) {
			return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", *patch.Role))
		}
		u.Role = *patch.Role
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	u.UpdatedAt = m.now()
	out := *u
	return &out, nil
}

// DeleteUser soft-deletes a user
func (m *Memory) DeleteUser(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.userByID(tenantID, id)
	if !ok {
		return false, nil
	}
	u.IsActive = false
	u.UpdatedAt = m.now()
	return true, nil
}

// TouchLastLogin stamps the user's last login time
func (m *Memory) TouchLastLogin(tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.userByID(tenantID, id)
	if !ok {
		return apperrors.NewNotFoundError("user")
	}
	now := m.now()
	u.LastLoginAt = &now
	return nil
}

func (m *Memory) userByID(tenantID, id uuid.UUID) (*models.User, bool) {
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].TenantID == tenantID && m.users[i].IsActive {
			return &m.users[i], true
		}
	}
	return nil, false
}

// =============================================================================
// OWNERS
// =============================================================================

// CreateOwner adds a client
func (m *Memory) CreateOwner(o models.Owner) (*models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenantByID(o.TenantID); !ok {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if o.FirstName == "" && o.LastName == "" {
		return nil, apperrors.NewValidationError("last_name", "a name is required")
	}

	o.ID = uuid.New()
	o.IsActive = true
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.owners = append(m.owners, o)
	out := o
	return &out, nil
}

// FindOwners returns the tenant's active clients, optionally searched
func (m *Memory) FindOwners(tenantID uuid.UUID, filter OwnerFilter) ([]models.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Owner{}
	for i := range m.owners {
		o := &m.owners[i]
		if o.TenantID != tenantID || !o.IsActive {
			continue
		}
		if filter.Search != "" && !matchesAny(filter.Search, o.FirstName, o.LastName, o.Email, o.Phone) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

// FindOwnerByID returns a single active owner
func (m *Memory) FindOwnerByID(tenantID, id uuid.UUID) (*models.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.ownerByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("owner")
	}
	out := *o
	return &out, nil
}

// UpdateOwner merges the patch onto an existing owner
func (m *Memory) UpdateOwner(tenantID, id uuid.UUID, patch OwnerUpdate) (*models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.ownerByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("owner")
	}
	if patch.FirstName != nil {
		o.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		o.LastName = *patch.LastName
	}
	if patch.Email != nil {
		o.Email = *patch.Email
	}
	if patch.Phone != nil {
		o.Phone = *patch.Phone
	}
	if patch.AddressLine1 != nil {
		o.AddressLine1 = *patch.AddressLine1
	}
	if patch.City != nil {
		o.City = *patch.City
	}
	if patch.PostalCode != nil {
		o.PostalCode = *patch.PostalCode
	}
	if patch.EmergencyContact != nil {
		o.EmergencyContact = *patch.EmergencyContact
	}
	if patch.Notes != nil {
		o.Notes = *patch.Notes
	}
	o.UpdatedAt = m.now()
	out := *o
	return &out, nil
}

// DeleteOwner soft-deletes an owner
func (m *Memory) DeleteOwner(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.ownerByID(tenantID, id)
	if !ok {
		return false, nil
	}
	o.IsActive = false
	o.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) ownerByID(tenantID, id uuid.UUID) (*models.Owner, bool) {
	for i := range m.owners {
		if m.owners[i].ID == id && m.owners[i].TenantID == tenantID && m.owners[i].IsActive {
			return &m.owners[i], true
		}
	}
	return nil, false
}

// =============================================================================
// PETS
// =============================================================================

// CreatePet adds a patient. OwnerID must reference an active owner in the
// same tenant.
func (m *Memory) CreatePet(p models.Pet) (*models.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ownerByID(p.TenantID, p.OwnerID); !ok {
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
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.pets = append(m.pets, p)

	out := p
	if err := m.attachOwner(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindPets returns the tenant's active patients with owners embedded
func (m *Memory) FindPets(tenantID uuid.UUID, filter PetFilter) ([]models.Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Pet{}
	for i := range m.pets {
		p := &m.pets[i]
		if p.TenantID != tenantID || !p.IsActive {
			continue
		}
		if filter.OwnerID != nil && p.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Search != "" && !matchesAny(filter.Search, p.Name, p.Species, p.Breed, p.MicrochipID) {
			continue
		}
		pet := *p
		if err := m.attachOwner(&pet); err != nil {
			return nil, err
		}
		out = append(out, pet)
	}
	return out, nil
}

// FindPetByID returns a single active pet with its owner embedded
func (m *Memory) FindPetByID(tenantID, id uuid.UUID) (*models.Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.petByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("pet")
	}
	out := *p
	if err := m.attachOwner(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePet merges the patch onto an existing pet
func (m *Memory) UpdatePet(tenantID, id uuid.UUID, patch PetUpdate) (*models.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.petByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("pet")
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Species != nil {
		p.Species = *patch.Species
	}
	if patch.Breed != nil {
		p.Breed = *patch.Breed
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Neutered != nil {
		p.Neutered = *patch.Neutered
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = patch.DateOfBirth
	}
	if patch.MicrochipID != nil {
		p.MicrochipID = *patch.MicrochipID
	}
	if patch.WeightKg != nil {
		p.WeightKg = *patch.WeightKg
	}
	if patch.Allergies != nil {
		p.Allergies = append(p.Allergies[:0:0], patch.Allergies...)
	}
	if patch.ChronicConditions != nil {
		p.ChronicConditions = append(p.ChronicConditions[:0:0], patch.ChronicConditions...)
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	p.UpdatedAt = m.now()

	out := *p
	if err := m.attachOwner(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePet soft-deletes a pet
func (m *Memory) DeletePet(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.petByID(tenantID, id)
	if !ok {
		return false, nil
	}
	p.IsActive = false
	p.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) petByID(tenantID, id uuid.UUID) (*models.Pet, bool) {
	for i := range m.pets {
		if m.pets[i].ID == id && m.pets[i].TenantID == tenantID && m.pets[i].IsActive {
			return &m.pets[i], true
		}
	}
	return nil, false
}

// attachOwner embeds the pet's owner, including owners that were
// soft-deleted after the pet was created. A missing row means the store
// is corrupt and is reported loudly instead of returning a nil owner.
func (m *Memory) attachOwner(p *models.Pet) error {
	for i := range m.owners {
		if m.owners[i].ID == p.OwnerID && m.owners[i].TenantID == p.TenantID {
			owner := m.owners[i]
			p.Owner = &owner
			return nil
		}
	}
	return apperrors.NewInternalError(
		fmt.Errorf("pet %s references missing owner %s", p.ID, p.OwnerID))
}

// =============================================================================
// VISITS
// =============================================================================

// CreateVisit schedules an appointment. New visits always start in the
// scheduled state.
func (m *Memory) CreateVisit(v models.Visit) (*models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clinicByID(v.TenantID, v.ClinicID); !ok {
		return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
	}
	if _, ok := m.petByID(v.TenantID, v.PetID); !ok {
		return nil, apperrors.NewValidationError("pet_id", "pet does not exist")
	}
	if v.VetID != nil {
		if _, ok := m.userByID(v.TenantID, *v.VetID); !ok {
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
	v.CreatedAt = m.now()
	v.UpdatedAt = v.CreatedAt
	m.visits = append(m.visits, v)

	out := v
	if err := m.attachVisitRelations(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindVisits returns the tenant's active visits with pet, owner and vet
// embedded, optionally filtered by day, status, clinic or vet.
func (m *Memory) FindVisits(tenantID uuid.UUID, filter VisitFilter) ([]models.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Visit{}
	for i := range m.visits {
		v := &m.visits[i]
		if v.TenantID != tenantID || !v.IsActive {
			continue
		}
		if filter.Date != nil && !sameDay(v.ScheduledAt, *filter.Date) {
			continue
		}
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		if filter.ClinicID != nil && v.ClinicID != *filter.ClinicID {
			continue
		}
		if filter.VetID != nil && (v.VetID == nil || *v.VetID != *filter.VetID) {
			continue
		}
		visit := *v
		if err := m.attachVisitRelations(&visit); err != nil {
			return nil, err
		}
		out = append(out, visit)
	}
	return out, nil
}

// FindVisitByID returns a single active visit with relations embedded
func (m *Memory) FindVisitByID(tenantID, id uuid.UUID) (*models.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.visitByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("visit")
	}
	out := *v
	if err := m.attachVisitRelations(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateVisit merges clinical fields onto an existing visit. Status moves
// only through TransitionVisit.
func (m *Memory) UpdateVisit(tenantID, id uuid.UUID, patch VisitUpdate) (*models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("visit")
	}
	if patch.VetID != nil {
		if _, ok := m.userByID(tenantID, *patch.VetID); !ok {
			return nil, apperrors.NewValidationError("vet_id", "staff member does not exist")
		}
		v.VetID = patch.VetID
	}
	if patch.VisitType != nil {
		v.VisitType = *patch.VisitType
	}
	if patch.ScheduledAt != nil {
		v.ScheduledAt = *patch.ScheduledAt
	}
	if patch.Reason != nil {
		v.Reason = *patch.Reason
	}
	if patch.Symptoms != nil {
		v.Symptoms = *patch.Symptoms
	}
	if patch.Diagnosis != nil {
		v.Diagnosis = *patch.Diagnosis
	}
	if patch.Treatment != nil {
		v.Treatment = *patch.Treatment
	}
	if patch.Notes != nil {
		v.Notes = *patch.Notes
	}
	if patch.FollowUpNeeded != nil {
		v.FollowUpNeeded = *patch.FollowUpNeeded
	}
	if patch.FollowUpDate != nil {
		v.FollowUpDate = patch.FollowUpDate
	}
	v.UpdatedAt = m.now()

	out := *v
	if err := m.attachVisitRelations(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransitionVisit moves a visit through the status state machine and
// stamps the matching timestamp. Illegal transitions are rejected.
func (m *Memory) TransitionVisit(tenantID, id uuid.UUID, to models.VisitStatus) (*models.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("visit")
	}
	if !models.ValidVisitStatus(to) {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if !models.CanTransition(v.Status, to) {
		return nil, apperrors.NewValidationError("status",
			fmt.Sprintf("cannot transition visit from %s to %s", v.Status, to))
	}

	now := m.now()
	v.Status = to
	switch to {
	case models.VisitCheckedIn:
		v.CheckedInAt = &now
	case models.VisitInProgress:
		v.StartedAt = &now
	case models.VisitCompleted:
		v.CompletedAt = &now
	}
	v.UpdatedAt = now

	out := *v
	if err := m.attachVisitRelations(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteVisit soft-deletes a visit
func (m *Memory) DeleteVisit(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitByID(tenantID, id)
	if !ok {
		return false, nil
	}
	v.IsActive = false
	v.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) visitByID(tenantID, id uuid.UUID) (*models.Visit, bool) {
	for i := range m.visits {
		if m.visits[i].ID == id && m.visits[i].TenantID == tenantID && m.visits[i].IsActive {
			return &m.visits[i], true
		}
	}
	return nil, false
}

func (m *Memory) attachVisitRelations(v *models.Visit) error {
	for i := range m.pets {
		if m.pets[i].ID == v.PetID && m.pets[i].TenantID == v.TenantID {
			pet := m.pets[i]
			if err := m.attachOwner(&pet); err != nil {
				return err
			}
			v.Pet = &pet
			break
		}
	}
	if v.Pet == nil {
		return apperrors.NewInternalError(
			fmt.Errorf("visit %s references missing pet %s", v.ID, v.PetID))
	}
	if v.VetID != nil {
		for i := range m.users {
			if m.users[i].ID == *v.VetID && m.users[i].TenantID == v.TenantID {
				vet := m.users[i]
				v.Vet = &vet
				break
			}
		}
		if v.Vet == nil {
			return apperrors.NewInternalError(
				fmt.Errorf("visit %s references missing staff member %s", v.ID, *v.VetID))
		}
	}
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoice adds an invoice. Line totals and the invoice total are
// recomputed from the items; a caller-supplied total is never trusted.
func (m *Memory) CreateInvoice(inv models.Invoice) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clinicByID(inv.TenantID, inv.ClinicID); !ok {
		return nil, apperrors.NewValidationError("clinic_id", "clinic does not exist")
	}
	if inv.VisitID != nil {
		if _, ok := m.visitByID(inv.TenantID, *inv.VisitID); !ok {
			return nil, apperrors.NewValidationError("visit_id", "visit does not exist")
		}
	}
	if inv.OwnerID != nil {
		if _, ok := m.ownerByID(inv.TenantID, *inv.OwnerID); !ok {
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

	now := m.now()
	inv.ID = uuid.New()
	inv.ComputeTotals()
	if inv.Total < 0 {
		return nil, apperrors.NewValidationError("discount", "discount exceeds invoice amount")
	}
	if inv.InvoiceNumber == "" {
		m.invoiceSeq[inv.TenantID]++
		inv.InvoiceNumber = fmt.Sprintf("INV-%06d", m.invoiceSeq[inv.TenantID])
	} else {
		for i := range m.invoices {
			if m.invoices[i].TenantID == inv.TenantID && m.invoices[i].InvoiceNumber == inv.InvoiceNumber {
				return nil, apperrors.NewConflictError("invoice")
			}
		}
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
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
		inv.Items[i].CreatedAt = now
	}
	inv.IsActive = true
	inv.CreatedAt = now
	inv.UpdatedAt = now
	m.invoices = append(m.invoices, inv)

	out := cloneInvoice(&inv)
	return &out, nil
}

// FindInvoices returns the tenant's active invoices, optionally filtered
func (m *Memory) FindInvoices(tenantID uuid.UUID, filter InvoiceFilter) ([]models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Invoice{}
	for i := range m.invoices {
		inv := &m.invoices[i]
		if inv.TenantID != tenantID || !inv.IsActive {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.PaymentStatus != nil && inv.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		if filter.OwnerID != nil && (inv.OwnerID == nil || *inv.OwnerID != *filter.OwnerID) {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	return out, nil
}

// FindInvoiceByID returns a single active invoice with items and payments
func (m *Memory) FindInvoiceByID(tenantID, id uuid.UUID) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoiceByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("invoice")
	}
	out := cloneInvoice(inv)
	return &out, nil
}

// AddPayment records a payment and rederives the invoice's payment status.
// A fully settled invoice moves to the paid status.
func (m *Memory) AddPayment(tenantID, invoiceID uuid.UUID, p models.Payment) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoiceByID(tenantID, invoiceID)
	if !ok {
		return nil, apperrors.NewNotFoundError("invoice")
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

	now := m.now()
	p.ID = uuid.New()
	p.InvoiceID = inv.ID
	if p.Status == "" {
		p.Status = "completed"
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}
	p.CreatedAt = now

	inv.Payments = append(inv.Payments, p)
	inv.PaidAmount += p.Amount
	inv.PaymentStatus = inv.DerivePaymentStatus()
	if inv.PaymentStatus == models.PaymentPaid || inv.PaymentStatus == models.PaymentOverpaid {
		inv.Status = models.InvoicePaid
	}
	inv.UpdatedAt = now

	out := cloneInvoice(inv)
	return &out, nil
}

// DeleteInvoice soft-deletes an invoice
func (m *Memory) DeleteInvoice(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoiceByID(tenantID, id)
	if !ok {
		return false, nil
	}
	inv.IsActive = false
	inv.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) invoiceByID(tenantID, id uuid.UUID) (*models.Invoice, bool) {
	for i := range m.invoices {
		if m.invoices[i].ID == id && m.invoices[i].TenantID == tenantID && m.invoices[i].IsActive {
			return &m.invoices[i], true
		}
	}
	return nil, false
}

func cloneInvoice(inv *models.Invoice) models.Invoice {
	out := *inv
	out.Items = append([]models.InvoiceItem(nil), inv.Items...)
	out.Payments = append([]models.Payment(nil), inv.Payments...)
	return out
}

// =============================================================================
// INVENTORY
// =============================================================================

// CreateInventoryItem adds a stock item
func (m *Memory) CreateInventoryItem(item models.InventoryItem) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clinicByID(item.TenantID, item.ClinicID); !ok {
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
		if _, ok := m.medicationByID(item.TenantID, *item.MedicationID); !ok {
			return nil, apperrors.NewValidationError("medication_id", "medication does not exist")
		}
	}
	if item.Controlled && item.Schedule == models.ScheduleNone {
		return nil, apperrors.NewValidationError("schedule", "controlled substances require a schedule")
	}

	item.ID = uuid.New()
	item.Medication = nil
	item.IsActive = true
	item.CreatedAt = m.now()
	item.UpdatedAt = item.CreatedAt
	m.items = append(m.items, item)
	out := item
	return &out, nil
}

// FindInventory returns the tenant's active stock, optionally filtered
func (m *Memory) FindInventory(tenantID uuid.UUID, filter InventoryFilter) ([]models.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	out := []models.InventoryItem{}
	for i := range m.items {
		item := &m.items[i]
		if item.TenantID != tenantID || !item.IsActive {
			continue
		}
		if filter.ClinicID != nil && item.ClinicID != *filter.ClinicID {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.LowStock && !item.LowStock() {
			continue
		}
		if filter.Expiring && !item.ExpiringWithin(now, m.expiryWindow) {
			continue
		}
		if filter.Search != "" && !matchesAny(filter.Search, item.Name, item.Category, item.LotNumber) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

// FindInventoryItemByID returns a single active stock item
func (m *Memory) FindInventoryItemByID(tenantID, id uuid.UUID) (*models.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.itemByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("inventory item")
	}
	out := *item
	return &out, nil
}

// UpdateInventoryItem merges the patch onto an existing stock item
func (m *Memory) UpdateInventoryItem(tenantID, id uuid.UUID, patch InventoryUpdate) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.itemByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("inventory item")
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.ReorderPoint != nil {
		if *patch.ReorderPoint < 0 {
			return nil, apperrors.NewValidationError("reorder_point", "reorder point cannot be negative")
		}
		item.ReorderPoint = *patch.ReorderPoint
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.CostPrice != nil {
		item.CostPrice = *patch.CostPrice
	}
	if patch.SalePrice != nil {
		item.SalePrice = *patch.SalePrice
	}
	if patch.LotNumber != nil {
		item.LotNumber = *patch.LotNumber
	}
	if patch.ExpiryDate != nil {
		item.ExpiryDate = patch.ExpiryDate
	}
	if patch.Location != nil {
		item.Location = *patch.Location
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	item.UpdatedAt = m.now()
	out := *item
	return &out, nil
}

// AdjustStock applies a receive (positive) or dispense (negative) delta.
// Stock never goes negative.
func (m *Memory) AdjustStock(tenantID, id uuid.UUID, delta int) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.itemByID(tenantID, id)
	if !ok {
		return nil, apperrors.NewNotFoundError("inventory item")
	}
	if item.Quantity+delta < 0 {
		return nil, apperrors.NewValidationError("quantity",
			fmt.Sprintf("cannot dispense %d units, only %d on hand", -delta, item.Quantity))
	}
	item.Quantity += delta
	item.UpdatedAt = m.now()
	out := *item
	return &out, nil
}

// DeleteInventoryItem soft-deletes a stock item
func (m *Memory) DeleteInventoryItem(tenantID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.itemByID(tenantID, id)
	if !ok {
		return false, nil
	}
	item.IsActive = false
	item.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) itemByID(tenantID, id uuid.UUID) (*models.InventoryItem, bool) {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].TenantID == tenantID && m.items[i].IsActive {
			return &m.items[i], true
		}
	}
	return nil, false
}

// =============================================================================
// MEDICATIONS
// =============================================================================

// CreateMedication adds a drug definition
func (m *Memory) CreateMedication(med models.Medication) (*models.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenantByID(med.TenantID); !ok {
		return nil, apperrors.NewValidationError("tenant_id", "tenant does not exist")
	}
	if med.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}

	med.ID = uuid.New()
	med.IsActive = true
	med.CreatedAt = m.now()
	med.UpdatedAt = med.CreatedAt
	m.medications = append(m.medications, med)
	out := med
	return &out, nil
}

// FindMedications returns the tenant's active drug definitions
func (m *Memory) FindMedications(tenantID uuid.UUID, search string) ([]models.Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Medication{}
	for i := range m.medications {
		med := &m.medications[i]
		if med.TenantID != tenantID || !med.IsActive {
			continue
		}
		if search != "" && !matchesAny(search, med.Name, med.GenericName) {
			continue
		}
		out = append(out, *med)
	}
	return out, nil
}

func (m *Memory) medicationByID(tenantID, id uuid.UUID) (*models.Medication, bool) {
	for i := range m.medications {
		if m.medications[i].ID == id && m.medications[i].TenantID == tenantID && m.medications[i].IsActive {
			return &m.medications[i], true
		}
	}
	return nil, false
}

// =============================================================================
// STATS
// =============================================================================

// DashboardStats recomputes the tenant summary from scratch on every call
func (m *Memory) DashboardStats(tenantID uuid.UUID) (*DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := &DashboardStats{}

	for i := range m.visits {
		v := &m.visits[i]
		if v.TenantID != tenantID || !v.IsActive || !sameDay(v.ScheduledAt, now) {
			continue
		}
		stats.TodayAppointments++
		switch v.Status {
		case models.VisitCheckedIn:
			stats.TodayCheckIns++
		case models.VisitCompleted:
			stats.CompletedAppointments++
		}
	}

	for i := range m.invoices {
		inv := &m.invoices[i]
		if inv.TenantID != tenantID || !inv.IsActive {
			continue
		}
		if inv.Status == models.InvoicePending || inv.Status == models.InvoiceOverdue {
			stats.PendingInvoices++
		}
		if inv.PaymentStatus == models.PaymentPaid && sameDay(inv.InvoiceDate, now) {
			stats.RevenueToday += inv.Total
		}
	}

	for i := range m.items {
		item := &m.items[i]
		if item.TenantID != tenantID || !item.IsActive {
			continue
		}
		if item.LowStock() {
			stats.LowInventoryItems++
		}
		if item.ExpiringWithin(now, m.expiryWindow) {
			stats.ExpiringItems++
		}
	}

	for i := range m.pets {
		if m.pets[i].TenantID == tenantID && m.pets[i].IsActive {
			stats.ActivePatients++
		}
	}
	for i := range m.owners {
		if m.owners[i].TenantID == tenantID && m.owners[i].IsActive {
			stats.ActiveOwners++
		}
	}

	return stats, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// matchesAny reports whether term is a case-insensitive substring of any
// of the candidate fields
func matchesAny(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// sameDay reports whether t falls on the same calendar day as ref,
// evaluated in ref's location
func sameDay(t, ref time.Time) bool {
	t = t.In(ref.Location())
	ty, tm, td := t.Date()
	ry, rm, rd := ref.Date()
	return ty == ry && tm == rm && td == rd
}
