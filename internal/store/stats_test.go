package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawbase/clinic/internal/models"
)

func createPaidInvoice(t *testing.T, s *Memory, tenantID, clinicID uuid.UUID, date time.Time, amount float64) {
	t.Helper()
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID:    tenantID,
		ClinicID:    clinicID,
		InvoiceDate: date,
		Items:       []models.InvoiceItem{{Description: "Service", Quantity: 1, UnitPrice: amount}},
	})
	require.NoError(t, err)
	_, err = s.AddPayment(tenantID, inv.ID, models.Payment{Amount: amount, Method: models.PaymentCash})
	require.NoError(t, err)
}

func TestRevenueTodayDateBoundary(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	// Frozen clock is 2024-09-10T12:00:00Z. Only same-calendar-day paid
	// invoices count, regardless of how close to midnight they fall.
	createPaidInvoice(t, s, tenant.ID, clinic.ID,
		time.Date(2024, 9, 10, 23, 59, 59, 0, time.UTC), 100)
	createPaidInvoice(t, s, tenant.ID, clinic.ID,
		time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), 50)
	createPaidInvoice(t, s, tenant.ID, clinic.ID,
		time.Date(2024, 9, 11, 0, 0, 1, 0, time.UTC), 999)
	createPaidInvoice(t, s, tenant.ID, clinic.ID,
		time.Date(2024, 9, 9, 23, 59, 59, 0, time.UTC), 999)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stats.RevenueToday)
}

func TestRevenueExcludesUnpaidAndPartial(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	// Unpaid invoice dated today
	_, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Exam", Quantity: 1, UnitPrice: 80}},
	})
	require.NoError(t, err)

	// Partially paid invoice dated today
	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Items: []models.InvoiceItem{{Description: "Surgery", Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	_, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 200, Method: models.PaymentCard})
	require.NoError(t, err)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.RevenueToday)
	assert.Equal(t, 2, stats.PendingInvoices)
}

func TestTodayAppointmentCounts(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "Maria", "Garcia")
	pet := createPet(t, s, tenant.ID, owner.ID, "Luna")

	mkVisit := func(at time.Time) *models.Visit {
		v, err := s.CreateVisit(models.Visit{
			TenantID: tenant.ID, ClinicID: clinic.ID, PetID: pet.ID,
			VisitType: models.VisitCheckup, ScheduledAt: at,
		})
		require.NoError(t, err)
		return v
	}

	today1 := mkVisit(frozenNow.Add(-3 * time.Hour))
	mkVisit(frozenNow.Add(4 * time.Hour))
	mkVisit(frozenNow.Add(24 * time.Hour))  // tomorrow
	mkVisit(frozenNow.Add(-24 * time.Hour)) // yesterday

	_, err := s.TransitionVisit(tenant.ID, today1.ID, models.VisitCheckedIn)
	require.NoError(t, err)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TodayAppointments)
	assert.Equal(t, 1, stats.TodayCheckIns)
	assert.Equal(t, 0, stats.CompletedAppointments)
}

func TestStatsReflectStockAdjustment(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	item, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Amoxicillin 250mg", Quantity: 5, ReorderPoint: 20,
	})
	require.NoError(t, err)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LowInventoryItems)

	// Receiving stock above the reorder point clears the flag
	item, err = s.AdjustStock(tenant.ID, item.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 25, item.Quantity)

	stats, err = s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.LowInventoryItems)
}

func TestStatsAreTenantScoped(t *testing.T) {
	s, tenantA, clinicA := newTestStore(t)
	tenantB, err := s.CreateTenant(models.Tenant{Slug: "city-vets", Name: "City Vets"})
	require.NoError(t, err)

	createOwner(t, s, tenantA.ID, "John", "Smith")
	createPaidInvoice(t, s, tenantA.ID, clinicA.ID, frozenNow, 75)

	stats, err := s.DashboardStats(tenantB.ID)
	require.NoError(t, err)
	assert.Equal(t, &DashboardStats{}, stats)
}

func TestStatsIgnoreSoftDeletedRows(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "John", "Smith")
	pet := createPet(t, s, tenant.ID, owner.ID, "Max")

	item, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Gauze", Quantity: 1, ReorderPoint: 10,
	})
	require.NoError(t, err)

	_, err = s.DeletePet(tenant.ID, pet.ID)
	require.NoError(t, err)
	_, err = s.DeleteInventoryItem(tenant.ID, item.ID)
	require.NoError(t, err)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActivePatients)
	assert.Equal(t, 1, stats.ActiveOwners)
	assert.Equal(t, 0, stats.LowInventoryItems)
}
