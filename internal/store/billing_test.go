package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
)

func TestInvoiceTotalsAreRecomputed(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	// Caller-supplied totals are overwritten from the line items
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID,
		ClinicID: clinic.ID,
		Subtotal: 1,
		Total:    1,
		Tax:      10,
		Discount: 5,
		Items: []models.InvoiceItem{
			{Description: "Dental cleaning", Quantity: 1, UnitPrice: 120},
			{Description: "Extraction", Quantity: 3, UnitPrice: 40},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 240.0, inv.Subtotal)
	assert.Equal(t, 245.0, inv.Total)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, 120.0, inv.Items[0].LineTotal)
	assert.Equal(t, 120.0, inv.Items[1].LineTotal)
	assert.Equal(t, inv.Subtotal+inv.Tax-inv.Discount, inv.Total)
}

func TestInvoiceValidation(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	cases := []struct {
		name  string
		inv   models.Invoice
		field string
	}{
		{"no items", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID}, "items"},
		{"zero quantity", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID,
			Items: []models.InvoiceItem{{Description: "Exam", Quantity: 0, UnitPrice: 10}}}, "items"},
		{"negative price", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID,
			Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: -10}}}, "items"},
		{"blank description", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID,
			Items: []models.InvoiceItem{{Quantity: 1, UnitPrice: 10}}}, "items"},
		{"negative tax", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID, Tax: -1,
			Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 10}}}, "tax"},
		{"discount exceeds amount", models.Invoice{TenantID: tenant.ID, ClinicID: clinic.ID, Discount: 50,
			Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 10}}}, "discount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateInvoice(tc.inv)
			var valErr *apperrors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tc.field, valErr.Field)
		})
	}
}

func TestInvoiceNumbersArePerTenantSequences(t *testing.T) {
	s, tenantA, clinicA := newTestStore(t)
	tenantB, err := s.CreateTenant(models.Tenant{Slug: "city-vets", Name: "City Vets"})
	require.NoError(t, err)
	clinicB, err := s.CreateClinic(models.Clinic{TenantID: tenantB.ID, Name: "Downtown"})
	require.NoError(t, err)

	mk := func(tenantID, clinicID uuid.UUID) string {
		inv, err := s.CreateInvoice(models.Invoice{
			TenantID: tenantID, ClinicID: clinicID,
			Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 40}},
		})
		require.NoError(t, err)
		return inv.InvoiceNumber
	}

	assert.Equal(t, "INV-000001", mk(tenantA.ID, clinicA.ID))
	assert.Equal(t, "INV-000002", mk(tenantA.ID, clinicA.ID))
	assert.Equal(t, "INV-000001", mk(tenantB.ID, clinicB.ID))
}

func TestPaymentLifecycle(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Surgery", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, inv.PaymentStatus)

	inv, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 200, Method: models.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartiallyPaid, inv.PaymentStatus)
	assert.Equal(t, models.InvoicePending, inv.Status)
	assert.Equal(t, 200.0, inv.PaidAmount)

	inv, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 300, Method: models.PaymentCard})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, inv.PaymentStatus)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	require.Len(t, inv.Payments, 2)
	assert.Equal(t, frozenNow, inv.Payments[0].PaidAt)
}

func TestOverpaymentIsFlagged(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 60}},
	})
	require.NoError(t, err)

	inv, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 80, Method: models.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentOverpaid, inv.PaymentStatus)
	assert.Equal(t, models.InvoicePaid, inv.Status)
}

func TestPaymentRejectedOnCancelledInvoice(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Status:   models.InvoiceCancelled,
		Items:    []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 60}},
	})
	require.NoError(t, err)

	_, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 60, Method: models.PaymentCash})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "status", valErr.Field)
}

func TestPaymentValidation(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 60}},
	})
	require.NoError(t, err)

	_, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 0, Method: models.PaymentCash})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "amount", valErr.Field)

	_, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 10})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "method", valErr.Field)
}

func TestExplicitInvoiceNumberConflicts(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	_, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID, InvoiceNumber: "INV-2024-001",
		Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 40}},
	})
	require.NoError(t, err)

	_, err = s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID, InvoiceNumber: "INV-2024-001",
		Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 40}},
	})
	var conflict *apperrors.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestFractionalPaymentsSettleExactly(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Boarding", Quantity: 1, UnitPrice: 99.3}},
	})
	require.NoError(t, err)

	// Three payments of 33.10 accumulate to 99.30000000000001 in float64;
	// the invoice must still settle as paid, not hang at partially_paid.
	for i := 0; i < 3; i++ {
		inv, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 33.1, Method: models.PaymentCash})
		require.NoError(t, err)
	}
	assert.Equal(t, models.PaymentPaid, inv.PaymentStatus)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.InDelta(t, 99.3, inv.PaidAmount, 0.005)
}
