// Package models - Pharmacy and inventory
package models

import (
	"time"

	"github.com/google/uuid"
)

// Medication is a reusable drug definition shared by inventory items
type Medication struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;index;not null"`

	Name        string `json:"name" gorm:"not null;size:255"`
	GenericName string `json:"generic_name" gorm:"size:255"`
	Form        string `json:"form" gorm:"size:50"`
	Strength    string `json:"strength" gorm:"size:50"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ControlledSchedule classifies controlled substances (DEA schedule)
type ControlledSchedule string

const (
	ScheduleNone ControlledSchedule = ""
	ScheduleII   ControlledSchedule = "II"
	ScheduleIII  ControlledSchedule = "III"
	ScheduleIV   ControlledSchedule = "IV"
	ScheduleV    ControlledSchedule = "V"
)

// InventoryItem tracks stock of a product or medication at a clinic.
// An item is low-stock iff Quantity <= ReorderPoint.
type InventoryItem struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID     uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ClinicID     uuid.UUID  `json:"clinic_id" gorm:"type:uuid;index;not null"`
	MedicationID *uuid.UUID `json:"medication_id" gorm:"type:uuid;index"`

	Name     string `json:"name" gorm:"not null;size:255"`
	Category string `json:"category" gorm:"size:50"`

	Quantity     int    `json:"quantity" gorm:"not null;default:0"`
	ReorderPoint int    `json:"reorder_point" gorm:"not null;default:0"`
	Unit         string `json:"unit" gorm:"size:30"`

	CostPrice float64 `json:"cost_price" gorm:"type:decimal(10,2)"`
	SalePrice float64 `json:"sale_price" gorm:"type:decimal(10,2)"`

	LotNumber  string     `json:"lot_number" gorm:"size:50"`
	ExpiryDate *time.Time `json:"expiry_date" gorm:"index"`

	Controlled bool               `json:"controlled" gorm:"default:false"`
	Schedule   ControlledSchedule `json:"schedule" gorm:"size:5"`

	Location string `json:"location" gorm:"size:100"`
	Notes    string `json:"notes"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Medication *Medication `json:"medication,omitempty" gorm:"foreignKey:MedicationID"`
}

// LowStock reports whether the item has hit its reorder point
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderPoint
}

// ExpiringWithin reports whether the item expires inside the look-ahead
// window from now. Items without an expiry date never expire.
func (i *InventoryItem) ExpiringWithin(now time.Time, window time.Duration) bool {
	if i.ExpiryDate == nil {
		return false
	}
	return !i.ExpiryDate.Before(now) && i.ExpiryDate.Before(now.Add(window))
}
