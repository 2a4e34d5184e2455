// Package models contains the Pawbase data structures.
// Every entity except Tenant carries a TenantID; tenant scoping is
// enforced in the store layer, never here.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// =============================================================================
// TENANCY MODELS
// =============================================================================

// Tenant represents a veterinary practice (the multi-tenant isolation boundary)
type Tenant struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null;size:50"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	Domain    string    `json:"domain" gorm:"size:255"`
	Settings  JSONB     `json:"settings" gorm:"type:jsonb;default:'{}'"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Clinics []Clinic `json:"clinics,omitempty" gorm:"foreignKey:TenantID"`
	Users   []User   `json:"users,omitempty" gorm:"foreignKey:TenantID"`
}

// Clinic represents a physical location of a practice
type Clinic struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID     uuid.UUID `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Name         string    `json:"name" gorm:"not null;size:255"`
	AddressLine1 string    `json:"address_line1" gorm:"size:255"`
	AddressLine2 string    `json:"address_line2" gorm:"size:255"`
	City         string    `json:"city" gorm:"size:100"`
	State        string    `json:"state" gorm:"size:100"`
	PostalCode   string    `json:"postal_code" gorm:"size:20"`
	Country      string    `json:"country" gorm:"size:100"`
	Phone        string    `json:"phone" gorm:"size:30"`
	Email        string    `json:"email" gorm:"size:255"`
	Timezone     string    `json:"timezone" gorm:"size:50;default:'UTC'"`
	// Operating hours and exam-room capacity, keyed by weekday
	Hours    JSONB `json:"hours" gorm:"type:jsonb;default:'{}'"`
	IsActive bool  `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// =============================================================================
// STAFF MODELS
// =============================================================================

// Role enumerates the staff roles in a practice. RoleSuperAdmin is the
// platform operator: it alone may touch the tenant lifecycle, and it is
// never assignable through the practice-scoped staff endpoints.
type Role string

const (
	RoleVeterinarian Role = "veterinarian"
	RoleReceptionist Role = "receptionist"
	RoleVetTech      Role = "vet_tech"
	RolePharmacist   Role = "pharmacist"
	RoleManager      Role = "manager"
	RoleAdmin        Role = "admin"
	RoleOwner        Role = "owner"
	RoleSuperAdmin   Role = "super_admin"
)

// ValidRole reports whether r is a known staff role
func ValidRole(r Role) bool {
	switch r {
	case RoleVeterinarian, RoleReceptionist, RoleVetTech,
		RolePharmacist, RoleManager, RoleAdmin, RoleOwner,
		RoleSuperAdmin:
		return true
	}
	return false
}

// User represents a staff member. Email is unique within a tenant.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID     uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ClinicID     *uuid.UUID `json:"clinic_id" gorm:"type:uuid;index"`
	Email        string     `json:"email" gorm:"not null;size:255;uniqueIndex:idx_users_tenant_email,composite:tenant_id"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	Phone        string     `json:"phone" gorm:"size:30"`
	Role         Role       `json:"role" gorm:"size:30;not null"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Clinic *Clinic `json:"clinic,omitempty" gorm:"foreignKey:ClinicID"`
}

// FullName returns the display name of a user
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// =============================================================================
// CLIENT & PATIENT MODELS
// =============================================================================

// EmergencyContact is embedded into Owner
type EmergencyContact struct {
	Name     string `json:"name" gorm:"column:emergency_name;size:255"`
	Phone    string `json:"phone" gorm:"column:emergency_phone;size:30"`
	Relation string `json:"relation" gorm:"column:emergency_relation;size:50"`
}

// Owner represents a client (pet owner) of the practice
type Owner struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID         uuid.UUID        `json:"tenant_id" gorm:"type:uuid;index;not null"`
	FirstName        string           `json:"first_name" gorm:"size:100;not null"`
	LastName         string           `json:"last_name" gorm:"size:100;not null"`
	Email            string           `json:"email" gorm:"size:255"`
	Phone            string           `json:"phone" gorm:"size:30"`
	AddressLine1     string           `json:"address_line1" gorm:"size:255"`
	City             string           `json:"city" gorm:"size:100"`
	PostalCode       string           `json:"postal_code" gorm:"size:20"`
	EmergencyContact EmergencyContact `json:"emergency_contact" gorm:"embedded"`
	Notes            string           `json:"notes"`
	IsActive         bool             `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Relations
	Pets []Pet `json:"pets,omitempty" gorm:"foreignKey:OwnerID"`
}

// FullName returns the display name of an owner
func (o *Owner) FullName() string {
	if o.FirstName == "" {
		return o.LastName
	}
	if o.LastName == "" {
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}

// Pet represents a patient. OwnerID must reference an active Owner in the
// same tenant; the store rejects creates that violate this.
type Pet struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID          uuid.UUID      `json:"tenant_id" gorm:"type:uuid;index;not null"`
	OwnerID           uuid.UUID      `json:"owner_id" gorm:"type:uuid;index;not null"`
	Name              string         `json:"name" gorm:"size:100;not null"`
	Species           string         `json:"species" gorm:"size:50;not null"`
	Breed             string         `json:"breed" gorm:"size:100"`
	Gender            string         `json:"gender" gorm:"size:10"`
	Neutered          bool           `json:"neutered" gorm:"default:false"`
	DateOfBirth       *time.Time     `json:"date_of_birth"`
	MicrochipID       string         `json:"microchip_id" gorm:"size:50"`
	WeightKg          float64        `json:"weight_kg" gorm:"type:decimal(6,2)"`
	Allergies         pq.StringArray `json:"allergies" gorm:"type:text[]"`
	ChronicConditions pq.StringArray `json:"chronic_conditions" gorm:"type:text[]"`
	Notes             string         `json:"notes"`
	IsActive          bool           `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Relations
	Owner *Owner `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
