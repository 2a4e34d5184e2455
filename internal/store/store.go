// Package store provides tenant-scoped data access for Pawbase.
//
// Two implementations exist: Memory, a mutex-guarded in-memory store used
// by tests and demo mode, and Gorm, backed by a relational database. Both
// enforce the same rules: every query filters by tenant, soft-deleted rows
// are invisible to default queries, lookups return typed not-found errors
// rather than nil dereferences, and creates validate that relationship
// fields reference an existing active row in the same tenant.
package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/models"
)

// DefaultExpiryWindow is the look-ahead used to classify inventory as
// expiring soon when no window is configured.
const DefaultExpiryWindow = 30 * 24 * time.Hour

// Clock supplies the current time. Stats and timestamping go through it so
// date-boundary behavior is testable with frozen time.
type Clock func() time.Time

// =============================================================================
// FILTERS
// =============================================================================

// OwnerFilter narrows FindOwners. Search matches name, email and phone,
// case-insensitively.
type OwnerFilter struct {
	Search string
}

// PetFilter narrows FindPets
type PetFilter struct {
	Search  string
	OwnerID *uuid.UUID
}

// VisitFilter narrows FindVisits. Date restricts to visits scheduled on
// that calendar day (in the date's location).
type VisitFilter struct {
	Date     *time.Time
	Status   *models.VisitStatus
	ClinicID *uuid.UUID
	VetID    *uuid.UUID
}

// InvoiceFilter narrows FindInvoices
type InvoiceFilter struct {
	Status        *models.InvoiceStatus
	PaymentStatus *models.PaymentStatus
	OwnerID       *uuid.UUID
}

// InventoryFilter narrows FindInventory
type InventoryFilter struct {
	Search    string
	Category  string
	ClinicID  *uuid.UUID
	LowStock  bool
	Expiring  bool
}

// UserFilter narrows FindUsers
type UserFilter struct {
	Search string
	Role   *models.Role
}

// =============================================================================
// PARTIAL UPDATES
// =============================================================================

// OwnerUpdate carries the fields an update may merge onto an Owner. The
// update structs double as the PUT request bodies, so every field carries
// its snake_case json tag.
type OwnerUpdate struct {
	FirstName        *string                  `json:"first_name"`
	LastName         *string                  `json:"last_name"`
	Email            *string                  `json:"email"`
	Phone            *string                  `json:"phone"`
	AddressLine1     *string                  `json:"address_line1"`
	City             *string                  `json:"city"`
	PostalCode       *string                  `json:"postal_code"`
	EmergencyContact *models.EmergencyContact `json:"emergency_contact"`
	Notes            *string                  `json:"notes"`
}

// PetUpdate carries the fields an update may merge onto a Pet
type PetUpdate struct {
	Name              *string    `json:"name"`
	Species           *string    `json:"species"`
	Breed             *string    `json:"breed"`
	Gender            *string    `json:"gender"`
	Neutered          *bool      `json:"neutered"`
	DateOfBirth       *time.Time `json:"date_of_birth"`
	MicrochipID       *string    `json:"microchip_id"`
	WeightKg          *float64   `json:"weight_kg"`
	Allergies         []string   `json:"allergies"`
	ChronicConditions []string   `json:"chronic_conditions"`
	Notes             *string    `json:"notes"`
}

// VisitUpdate carries the mutable clinical fields of a Visit. Status is
// not here; it moves only through TransitionVisit.
type VisitUpdate struct {
	VetID          *uuid.UUID        `json:"vet_id"`
	VisitType      *models.VisitType `json:"visit_type"`
	ScheduledAt    *time.Time        `json:"scheduled_at"`
	Reason         *string           `json:"reason"`
	Symptoms       *string           `json:"symptoms"`
	Diagnosis      *string           `json:"diagnosis"`
	Treatment      *string           `json:"treatment"`
	Notes          *string           `json:"notes"`
	FollowUpNeeded *bool             `json:"follow_up_needed"`
	FollowUpDate   *time.Time        `json:"follow_up_date"`
}

// InventoryUpdate carries the fields an update may merge onto an
// InventoryItem. Quantity is absent; it moves only through AdjustStock.
type InventoryUpdate struct {
	Name         *string    `json:"name"`
	Category     *string    `json:"category"`
	ReorderPoint *int       `json:"reorder_point"`
	Unit         *string    `json:"unit"`
	CostPrice    *float64   `json:"cost_price"`
	SalePrice    *float64   `json:"sale_price"`
	LotNumber    *string    `json:"lot_number"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	Location     *string    `json:"location"`
	Notes        *string    `json:"notes"`
}

// UserUpdate carries the fields an update may merge onto a User.
// PasswordHash never binds from a request body; only the change-password
// flow sets it.
type UserUpdate struct {
	ClinicID     *uuid.UUID   `json:"clinic_id"`
	FirstName    *string      `json:"first_name"`
	LastName     *string      `json:"last_name"`
	Phone        *string      `json:"phone"`
	Role         *models.Role `json:"role"`
	PasswordHash *string      `json:"-"`
}

// ClinicUpdate carries the fields an update may merge onto a Clinic
type ClinicUpdate struct {
	Name         *string      `json:"name"`
	AddressLine1 *string      `json:"address_line1"`
	AddressLine2 *string      `json:"address_line2"`
	City         *string      `json:"city"`
	State        *string      `json:"state"`
	PostalCode   *string      `json:"postal_code"`
	Country      *string      `json:"country"`
	Phone        *string      `json:"phone"`
	Email        *string      `json:"email"`
	Timezone     *string      `json:"timezone"`
	Hours        models.JSONB `json:"hours"`
}

// TenantUpdate carries the fields an update may merge onto a Tenant
type TenantUpdate struct {
	Name     *string      `json:"name"`
	Domain   *string      `json:"domain"`
	Settings models.JSONB `json:"settings"`
	IsActive *bool        `json:"is_active"`
}

// =============================================================================
// STATS
// =============================================================================

// DashboardStats is the per-tenant summary recomputed on every call
type DashboardStats struct {
	TodayAppointments     int     `json:"today_appointments"`
	TodayCheckIns         int     `json:"today_check_ins"`
	CompletedAppointments int     `json:"completed_appointments"`
	PendingInvoices       int     `json:"pending_invoices"`
	RevenueToday          float64 `json:"revenue_today"`
	LowInventoryItems     int     `json:"low_inventory_items"`
	ExpiringItems         int     `json:"expiring_items"`
	ActivePatients        int     `json:"active_patients"`
	ActiveOwners          int     `json:"active_owners"`
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the tenant-scoped data access surface consumed by the API layer
type Store interface {
	// Tenants
	CreateTenant(t models.Tenant) (*models.Tenant, error)
	FindTenants() ([]models.Tenant, error)
	FindTenantByID(id uuid.UUID) (*models.Tenant, error)
	FindTenantBySlug(slug string) (*models.Tenant, error)
	UpdateTenant(id uuid.UUID, patch TenantUpdate) (*models.Tenant, error)
	DeleteTenant(id uuid.UUID) (bool, error)

	// Clinics
	CreateClinic(c models.Clinic) (*models.Clinic, error)
	FindClinics(tenantID uuid.UUID) ([]models.Clinic, error)
	FindClinicByID(tenantID, id uuid.UUID) (*models.Clinic, error)
	UpdateClinic(tenantID, id uuid.UUID, patch ClinicUpdate) (*models.Clinic, error)
	DeleteClinic(tenantID, id uuid.UUID) (bool, error)

	// Users
	CreateUser(u models.User) (*models.User, error)
	FindUsers(tenantID uuid.UUID, filter UserFilter) ([]models.User, error)
	FindUserByID(tenantID, id uuid.UUID) (*models.User, error)
	FindUserByEmail(tenantID uuid.UUID, email string) (*models.User, error)
	UpdateUser(tenantID, id uuid.UUID, patch UserUpdate) (*models.User, error)
	DeleteUser(tenantID, id uuid.UUID) (bool, error)
	TouchLastLogin(tenantID, id uuid.UUID) error

	// Owners
	CreateOwner(o models.Owner) (*models.Owner, error)
	FindOwners(tenantID uuid.UUID, filter OwnerFilter) ([]models.Owner, error)
	FindOwnerByID(tenantID, id uuid.UUID) (*models.Owner, error)
	UpdateOwner(tenantID, id uuid.UUID, patch OwnerUpdate) (*models.Owner, error)
	DeleteOwner(tenantID, id uuid.UUID) (bool, error)

	// Pets. Finders return pets with Owner populated; a dangling owner
	// reference is an internal error, never a nil dereference.
	CreatePet(p models.Pet) (*models.Pet, error)
	FindPets(tenantID uuid.UUID, filter PetFilter) ([]models.Pet, error)
	FindPetByID(tenantID, id uuid.UUID) (*models.Pet, error)
	UpdatePet(tenantID, id uuid.UUID, patch PetUpdate) (*models.Pet, error)
	DeletePet(tenantID, id uuid.UUID) (bool, error)

	// Visits. Finders return visits with Pet (and its Owner) and, when
	// assigned, Vet populated.
	CreateVisit(v models.Visit) (*models.Visit, error)
	FindVisits(tenantID uuid.UUID, filter VisitFilter) ([]models.Visit, error)
	FindVisitByID(tenantID, id uuid.UUID) (*models.Visit, error)
	UpdateVisit(tenantID, id uuid.UUID, patch VisitUpdate) (*models.Visit, error)
	TransitionVisit(tenantID, id uuid.UUID, to models.VisitStatus) (*models.Visit, error)
	DeleteVisit(tenantID, id uuid.UUID) (bool, error)

	// Invoices
	CreateInvoice(inv models.Invoice) (*models.Invoice, error)
	FindInvoices(tenantID uuid.UUID, filter InvoiceFilter) ([]models.Invoice, error)
	FindInvoiceByID(tenantID, id uuid.UUID) (*models.Invoice, error)
	AddPayment(tenantID, invoiceID uuid.UUID, p models.Payment) (*models.Invoice, error)
	DeleteInvoice(tenantID, id uuid.UUID) (bool, error)

	// Inventory
	CreateInventoryItem(item models.InventoryItem) (*models.InventoryItem, error)
	FindInventory(tenantID uuid.UUID, filter InventoryFilter) ([]models.InventoryItem, error)
	FindInventoryItemByID(tenantID, id uuid.UUID) (*models.InventoryItem, error)
	UpdateInventoryItem(tenantID, id uuid.UUID, patch InventoryUpdate) (*models.InventoryItem, error)
	AdjustStock(tenantID, id uuid.UUID, delta int) (*models.InventoryItem, error)
	DeleteInventoryItem(tenantID, id uuid.UUID) (bool, error)

	// Medications
	CreateMedication(m models.Medication) (*models.Medication, error)
	FindMedications(tenantID uuid.UUID, search string) ([]models.Medication, error)

	// Aggregation
	DashboardStats(tenantID uuid.UUID) (*DashboardStats, error)
}
