package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pawbase/clinic/internal/models"
)

func TestManagementRolesSeeEverything(t *testing.T) {
	for _, role := range []models.Role{models.RoleManager, models.RoleAdmin, models.RoleOwner, models.RoleSuperAdmin} {
		assert.ElementsMatch(t, allWidgets, WidgetsFor(role), "role %s", role)
	}
}

func TestClinicalRolesDoNotSeeRevenue(t *testing.T) {
	for _, role := range []models.Role{models.RoleVeterinarian, models.RoleVetTech, models.RoleReceptionist} {
		assert.False(t, CanViewWidget(role, WidgetRevenue), "role %s", role)
	}
	assert.True(t, CanViewWidget(models.RoleManager, WidgetRevenue))
}

func TestPharmacistSeesOnlyInventory(t *testing.T) {
	assert.Equal(t, []Widget{WidgetInventoryAlerts}, WidgetsFor(models.RolePharmacist))
}

func TestUnknownRoleSeesNothing(t *testing.T) {
	assert.Empty(t, WidgetsFor("janitor"))
	assert.False(t, CanViewWidget("janitor", WidgetAppointments))
}

func TestWidgetsForReturnsCopy(t *testing.T) {
	widgets := WidgetsFor(models.RoleManager)
	widgets[0] = "tampered"
	assert.Equal(t, WidgetAppointments, WidgetsFor(models.RoleManager)[0])
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cure-pa55word")
	assert.NoError(t, err)
	assert.True(t, CheckPassword("s3cure-pa55word", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
