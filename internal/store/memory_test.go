package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
)

// frozenNow is midday so same-day boundary tests can move in both directions
var frozenNow = time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)

func frozenClock() time.Time { return frozenNow }

func newTestStore(t *testing.T) (*Memory, *models.Tenant, *models.Clinic) {
	t.Helper()
	s := NewMemory(WithClock(frozenClock))
	tenant, err := s.CreateTenant(models.Tenant{Slug: "happy-paws", Name: "Happy Paws Veterinary"})
	require.NoError(t, err)
	clinic, err := s.CreateClinic(models.Clinic{TenantID: tenant.ID, Name: "Main Street Clinic"})
	require.NoError(t, err)
	return s, tenant, clinic
}

func createOwner(t *testing.T, s *Memory, tenantID uuid.UUID, first, last string) *models.Owner {
	t.Helper()
	o, err := s.CreateOwner(models.Owner{
		TenantID:  tenantID,
		FirstName: first,
		LastName:  last,
		Email:     first + "." + last + "@example.com",
		Phone:     "555-0100",
	})
	require.NoError(t, err)
	return o
}

func createPet(t *testing.T, s *Memory, tenantID, ownerID uuid.UUID, name string) *models.Pet {
	t.Helper()
	p, err := s.CreatePet(models.Pet{
		TenantID: tenantID,
		OwnerID:  ownerID,
		Name:     name,
		Species:  "dog",
	})
	require.NoError(t, err)
	return p
}

func TestCreateThenFindOwner(t *testing.T) {
	s, tenant, _ := newTestStore(t)

	created := createOwner(t, s, tenant.ID, "John", "Smith")
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, frozenNow, created.CreatedAt)

	found, err := s.FindOwnerByID(tenant.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.FirstName, found.FirstName)
	assert.Equal(t, created.LastName, found.LastName)
	assert.Equal(t, created.Email, found.Email)
	assert.Equal(t, created.ID, found.ID)
}

func TestSoftDeleteHidesFromAllReads(t *testing.T) {
	s, tenant, _ := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "John", "Smith")

	deleted, err := s.DeleteOwner(tenant.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.FindOwnerByID(tenant.ID, owner.ID)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)

	owners, err := s.FindOwners(tenant.ID, OwnerFilter{})
	require.NoError(t, err)
	assert.Empty(t, owners)

	// Deleting again reports nothing to delete
	deleted, err = s.DeleteOwner(tenant.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCrossTenantIsolation(t *testing.T) {
	s, tenantA, _ := newTestStore(t)
	tenantB, err := s.CreateTenant(models.Tenant{Slug: "city-vets", Name: "City Vets"})
	require.NoError(t, err)

	owner := createOwner(t, s, tenantA.ID, "John", "Smith")

	// Another tenant's id behaves exactly like a nonexistent id
	_, err = s.FindOwnerByID(tenantB.ID, owner.ID)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)

	owners, err := s.FindOwners(tenantB.ID, OwnerFilter{})
	require.NoError(t, err)
	assert.Empty(t, owners)

	deleted, err := s.DeleteOwner(tenantB.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// And the row is untouched for its own tenant
	_, err = s.FindOwnerByID(tenantA.ID, owner.ID)
	assert.NoError(t, err)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	s, tenant, _ := newTestStore(t)
	createOwner(t, s, tenant.ID, "John", "Smith")
	createOwner(t, s, tenant.ID, "Maria", "Garcia")

	for _, term := range []string{"smith", "SMITH", "sMiTh", "mit"} {
		owners, err := s.FindOwners(tenant.ID, OwnerFilter{Search: term})
		require.NoError(t, err)
		require.Len(t, owners, 1, "term %q", term)
		assert.Equal(t, "Smith", owners[0].LastName)
	}

	owners, err := s.FindOwners(tenant.ID, OwnerFilter{Search: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestCreatePetRejectsMissingOwner(t *testing.T) {
	s, tenant, _ := newTestStore(t)

	_, err := s.CreatePet(models.Pet{
		TenantID: tenant.ID,
		OwnerID:  uuid.New(),
		Name:     "Max",
		Species:  "dog",
	})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "owner_id", valErr.Field)
}

func TestCreatePetRejectsOtherTenantOwner(t *testing.T) {
	s, tenantA, _ := newTestStore(t)
	tenantB, err := s.CreateTenant(models.Tenant{Slug: "city-vets", Name: "City Vets"})
	require.NoError(t, err)
	ownerA := createOwner(t, s, tenantA.ID, "John", "Smith")

	_, err = s.CreatePet(models.Pet{
		TenantID: tenantB.ID,
		OwnerID:  ownerA.ID,
		Name:     "Max",
		Species:  "dog",
	})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "owner_id", valErr.Field)
}

func TestPetReadsEmbedOwner(t *testing.T) {
	s, tenant, _ := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "John", "Smith")
	pet := createPet(t, s, tenant.ID, owner.ID, "Max")

	found, err := s.FindPetByID(tenant.ID, pet.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Owner)
	assert.Equal(t, "John Smith", found.Owner.FullName())

	// Owner stays embedded even after soft deletion, so historical
	// records keep their context
	_, err = s.DeleteOwner(tenant.ID, owner.ID)
	require.NoError(t, err)
	found, err = s.FindPetByID(tenant.ID, pet.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Owner)
	assert.False(t, found.Owner.IsActive)
}

func TestPartialUpdateLeavesOtherFieldsAlone(t *testing.T) {
	s, tenant, _ := newTestStore(t)
	owner := createOwner(t, s, tenant.ID, "John", "Smith")

	newPhone := "555-0199"
	updated, err := s.UpdateOwner(tenant.ID, owner.ID, OwnerUpdate{Phone: &newPhone})
	require.NoError(t, err)
	assert.Equal(t, "555-0199", updated.Phone)
	assert.Equal(t, "John", updated.FirstName)
	assert.Equal(t, "Smith", updated.LastName)
	assert.Equal(t, owner.Email, updated.Email)
}

func TestUserEmailUniquePerTenant(t *testing.T) {
	s, tenant, _ := newTestStore(t)
	tenantB, err := s.CreateTenant(models.Tenant{Slug: "city-vets", Name: "City Vets"})
	require.NoError(t, err)

	_, err = s.CreateUser(models.User{TenantID: tenant.ID, Email: "vet@example.com", Role: models.RoleVeterinarian})
	require.NoError(t, err)

	_, err = s.CreateUser(models.User{TenantID: tenant.ID, Email: "VET@example.com", Role: models.RoleReceptionist})
	var conflict *apperrors.ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Same email in another tenant is fine
	_, err = s.CreateUser(models.User{TenantID: tenantB.ID, Email: "vet@example.com", Role: models.RoleVeterinarian})
	assert.NoError(t, err)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	s, tenant, _ := newTestStore(t)

	_, err := s.CreateUser(models.User{TenantID: tenant.ID, Email: "x@example.com", Role: "janitor"})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "role", valErr.Field)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	s, tenant, clinic := newTestStore(t)
	item, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID,
		ClinicID: clinic.ID,
		Name:     "Carprofen 75mg",
		Quantity: 10,
	})
	require.NoError(t, err)

	item, err = s.AdjustStock(tenant.ID, item.ID, -4)
	require.NoError(t, err)
	assert.Equal(t, 6, item.Quantity)

	_, err = s.AdjustStock(tenant.ID, item.ID, -7)
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "quantity", valErr.Field)

	// Failed adjustment leaves the quantity untouched
	item, err = s.FindInventoryItemByID(tenant.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, item.Quantity)

	item, err = s.AdjustStock(tenant.ID, item.ID, -6)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
}

func TestLowStockBoundary(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	atPoint, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Gauze", Quantity: 20, ReorderPoint: 20,
	})
	require.NoError(t, err)
	_, err = s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Syringes", Quantity: 21, ReorderPoint: 20,
	})
	require.NoError(t, err)

	low, err := s.FindInventory(tenant.ID, InventoryFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, atPoint.ID, low[0].ID)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LowInventoryItems)
}

func TestExpiryWindowBoundary(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	inside := frozenNow.Add(29 * 24 * time.Hour)
	outside := frozenNow.Add(31 * 24 * time.Hour)
	past := frozenNow.Add(-24 * time.Hour)

	mk := func(name string, expiry *time.Time) {
		_, err := s.CreateInventoryItem(models.InventoryItem{
			TenantID: tenant.ID, ClinicID: clinic.ID,
			Name: name, Quantity: 50, ReorderPoint: 5, ExpiryDate: expiry,
		})
		require.NoError(t, err)
	}
	mk("Expiring soon", &inside)
	mk("Expiring later", &outside)
	mk("Already expired", &past)
	mk("No expiry", nil)

	expiring, err := s.FindInventory(tenant.ID, InventoryFilter{Expiring: true})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Expiring soon", expiring[0].Name)
}

func TestConfigurableExpiryWindow(t *testing.T) {
	s := NewMemory(WithClock(frozenClock), WithExpiryWindow(90*24*time.Hour))
	tenant, err := s.CreateTenant(models.Tenant{Slug: "happy-paws", Name: "Happy Paws"})
	require.NoError(t, err)
	clinic, err := s.CreateClinic(models.Clinic{TenantID: tenant.ID, Name: "Main"})
	require.NoError(t, err)

	expiry := frozenNow.Add(60 * 24 * time.Hour)
	_, err = s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Vaccine", Quantity: 10, ExpiryDate: &expiry,
	})
	require.NoError(t, err)

	expiring, err := s.FindInventory(tenant.ID, InventoryFilter{Expiring: true})
	require.NoError(t, err)
	assert.Len(t, expiring, 1)
}

func TestControlledSubstanceRequiresSchedule(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	_, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Ketamine", Quantity: 5, Controlled: true,
	})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "schedule", valErr.Field)

	_, err = s.CreateInventoryItem(models.InventoryItem{
		TenantID: tenant.ID, ClinicID: clinic.ID,
		Name: "Ketamine", Quantity: 5, Controlled: true, Schedule: models.ScheduleIII,
	})
	assert.NoError(t, err)
}

func TestEndToEndVisitDay(t *testing.T) {
	s, tenant, clinic := newTestStore(t)

	vet, err := s.CreateUser(models.User{
		TenantID: tenant.ID, Email: "dr.patel@example.com",
		FirstName: "Asha", LastName: "Patel", Role: models.RoleVeterinarian,
	})
	require.NoError(t, err)

	owner := createOwner(t, s, tenant.ID, "John", "Smith")
	pet := createPet(t, s, tenant.ID, owner.ID, "Max")

	visit, err := s.CreateVisit(models.Visit{
		TenantID:    tenant.ID,
		ClinicID:    clinic.ID,
		PetID:       pet.ID,
		VetID:       &vet.ID,
		VisitType:   models.VisitCheckup,
		ScheduledAt: frozenNow.Add(2 * time.Hour),
		Reason:      "annual checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VisitScheduled, visit.Status)
	require.NotNil(t, visit.Pet)
	require.NotNil(t, visit.Pet.Owner)
	assert.Equal(t, "John Smith", visit.Pet.Owner.FullName())
	require.NotNil(t, visit.Vet)
	assert.Equal(t, "Asha Patel", visit.Vet.FullName())

	visit, err = s.TransitionVisit(tenant.ID, visit.ID, models.VisitCheckedIn)
	require.NoError(t, err)
	require.NotNil(t, visit.CheckedInAt)
	visit, err = s.TransitionVisit(tenant.ID, visit.ID, models.VisitInProgress)
	require.NoError(t, err)
	visit, err = s.TransitionVisit(tenant.ID, visit.ID, models.VisitCompleted)
	require.NoError(t, err)
	require.NotNil(t, visit.CompletedAt)

	inv, err := s.CreateInvoice(models.Invoice{
		TenantID: tenant.ID,
		ClinicID: clinic.ID,
		VisitID:  &visit.ID,
		OwnerID:  &owner.ID,
		Tax:      8.0,
		Items: []models.InvoiceItem{
			{Description: "Checkup", Quantity: 1, UnitPrice: 60},
			{Description: "Rabies vaccine", Quantity: 2, UnitPrice: 20},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, inv.Subtotal)
	assert.Equal(t, 108.0, inv.Total)
	assert.Equal(t, "INV-000001", inv.InvoiceNumber)

	inv, err = s.AddPayment(tenant.ID, inv.ID, models.Payment{Amount: 108, Method: models.PaymentCard})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, inv.PaymentStatus)
	assert.Equal(t, models.InvoicePaid, inv.Status)

	stats, err := s.DashboardStats(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TodayAppointments)
	assert.Equal(t, 1, stats.CompletedAppointments)
	assert.Equal(t, 0, stats.PendingInvoices)
	assert.Equal(t, 108.0, stats.RevenueToday)
	assert.Equal(t, 1, stats.ActivePatients)
	assert.Equal(t, 1, stats.ActiveOwners)
}

func TestEmptyListsAreNotNil(t *testing.T) {
	s, tenant, _ := newTestStore(t)

	// List endpoints must encode empty results as [] rather than null
	owners, err := s.FindOwners(tenant.ID, OwnerFilter{})
	require.NoError(t, err)
	assert.NotNil(t, owners)

	pets, err := s.FindPets(tenant.ID, PetFilter{})
	require.NoError(t, err)
	assert.NotNil(t, pets)

	visits, err := s.FindVisits(tenant.ID, VisitFilter{})
	require.NoError(t, err)
	assert.NotNil(t, visits)

	invoices, err := s.FindInvoices(tenant.ID, InvoiceFilter{})
	require.NoError(t, err)
	assert.NotNil(t, invoices)

	items, err := s.FindInventory(tenant.ID, InventoryFilter{})
	require.NoError(t, err)
	assert.NotNil(t, items)

	meds, err := s.FindMedications(tenant.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, meds)

	users, err := s.FindUsers(tenant.ID, UserFilter{})
	require.NoError(t, err)
	assert.NotNil(t, users)
}
