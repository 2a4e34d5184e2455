// Package models - Invoices, line items and payments
package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enumerates invoice lifecycle states
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceRefunded  InvoiceStatus = "refunded"
)

// PaymentStatus tracks how much of an invoice has been settled
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentOverpaid      PaymentStatus = "overpaid"
	PaymentRefunded      PaymentStatus = "refunded"
)

// Invoice represents a bill for a tenant's clinic, optionally tied to a
// visit and/or owner. Total must equal Subtotal + Tax - Discount.
type Invoice struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	TenantID uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ClinicID uuid.UUID  `json:"clinic_id" gorm:"type:uuid;index;not null"`
	VisitID  *uuid.UUID `json:"visit_id" gorm:"type:uuid;index"`
	OwnerID  *uuid.UUID `json:"owner_id" gorm:"type:uuid;index"`

	InvoiceNumber string    `json:"invoice_number" gorm:"not null;size:30;uniqueIndex:idx_invoices_tenant_number,composite:tenant_id"`
	InvoiceDate   time.Time `json:"invoice_date" gorm:"index;not null"`
	DueDate       *time.Time `json:"due_date"`

	Subtotal float64 `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	Tax      float64 `json:"tax" gorm:"type:decimal(10,2);default:0"`
	Discount float64 `json:"discount" gorm:"type:decimal(10,2);default:0"`
	Total    float64 `json:"total" gorm:"type:decimal(10,2);not null"`

	Status        InvoiceStatus `json:"status" gorm:"size:20;not null;default:'pending'"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"size:20;not null;default:'unpaid'"`
	PaidAmount    float64       `json:"paid_amount" gorm:"type:decimal(10,2);default:0"`
	Notes         string        `json:"notes"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Items    []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID"`
	Payments []Payment     `json:"payments,omitempty" gorm:"foreignKey:InvoiceID"`
	Owner    *Owner        `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Visit    *Visit        `json:"visit,omitempty" gorm:"foreignKey:VisitID"`
}

// ComputeTotals recalculates Subtotal from line items and Total from the
// additive invariant. Line totals are refreshed as quantity * unit price.
func (inv *Invoice) ComputeTotals() {
	subtotal := 0.0
	for i := range inv.Items {
		inv.Items[i].LineTotal = float64(inv.Items[i].Quantity) * inv.Items[i].UnitPrice
		subtotal += inv.Items[i].LineTotal
	}
	inv.Subtotal = subtotal
	inv.Total = inv.Subtotal + inv.Tax - inv.Discount
}

// moneyEpsilon is half a cent. Repeated fractional payments accumulate
// float64 error, so monetary comparisons work within this tolerance.
const moneyEpsilon = 0.005

// DerivePaymentStatus maps PaidAmount against Total. Refunded is sticky:
// once an invoice is refunded, payments no longer change its status.
// Amounts within half a cent of the total count as settled.
func (inv *Invoice) DerivePaymentStatus() PaymentStatus {
	if inv.PaymentStatus == PaymentRefunded {
		return PaymentRefunded
	}
	diff := inv.PaidAmount - inv.Total
	switch {
	case inv.PaidAmount <= 0:
		return PaymentUnpaid
	case diff < -moneyEpsilon:
		return PaymentPartiallyPaid
	case diff > moneyEpsilon:
		return PaymentOverpaid
	default:
		return PaymentPaid
	}
}

// InvoiceItem is a single invoice line
type InvoiceItem struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	InvoiceID uuid.UUID `json:"invoice_id" gorm:"type:uuid;index;not null"`

	Description string  `json:"description" gorm:"not null;size:255"`
	Quantity    int     `json:"quantity" gorm:"default:1"`
	UnitPrice   float64 `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	LineTotal   float64 `json:"line_total" gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time `json:"created_at"`
}

// PaymentMethod enumerates how a payment was made
type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentTransfer  PaymentMethod = "transfer"
	PaymentInsurance PaymentMethod = "insurance"
)

// Payment records a single payment against an invoice
type Payment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	InvoiceID uuid.UUID `json:"invoice_id" gorm:"type:uuid;index;not null"`

	Amount float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Method PaymentMethod `json:"method" gorm:"size:20;not null"`
	Status string        `json:"status" gorm:"size:20;default:'completed'"`
	PaidAt time.Time     `json:"paid_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}
