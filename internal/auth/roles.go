// Package auth - Role-based dashboard widget visibility.
// Visibility is a declarative table keyed by role, so adding a widget or a
// role is a one-line change instead of a conditional scattered across
// handlers.
package auth

import "github.com/pawbase/clinic/internal/models"

// Widget identifies a dashboard panel
type Widget string

const (
	WidgetAppointments    Widget = "appointments"
	WidgetCheckIns        Widget = "check_ins"
	WidgetRevenue         Widget = "revenue"
	WidgetPendingInvoices Widget = "pending_invoices"
	WidgetInventoryAlerts Widget = "inventory_alerts"
	WidgetPatients        Widget = "patients"
)

// allWidgets is the full panel set, in display order
var allWidgets = []Widget{
	WidgetAppointments,
	WidgetCheckIns,
	WidgetRevenue,
	WidgetPendingInvoices,
	WidgetInventoryAlerts,
	WidgetPatients,
}

// roleWidgets maps each staff role to the widgets it may see. Managers,
// admins and practice owners see everything.
var roleWidgets = map[models.Role][]Widget{
	models.RoleVeterinarian: {WidgetAppointments, WidgetCheckIns, WidgetPatients},
	models.RoleVetTech:      {WidgetAppointments, WidgetCheckIns, WidgetPatients},
	models.RoleReceptionist: {WidgetAppointments, WidgetCheckIns, WidgetPendingInvoices, WidgetPatients},
	models.RolePharmacist:   {WidgetInventoryAlerts},
	models.RoleManager:      allWidgets,
	models.RoleAdmin:        allWidgets,
	models.RoleOwner:        allWidgets,
	models.RoleSuperAdmin:   allWidgets,
}

// WidgetsFor returns the dashboard widgets visible to a role. Unknown
// roles see nothing.
func WidgetsFor(role models.Role) []Widget {
	widgets := roleWidgets[role]
	out := make([]Widget, len(widgets))
	copy(out, widgets)
	return out
}

// CanViewWidget reports whether a role may see a widget
func CanViewWidget(role models.Role, w Widget) bool {
	for _, widget := range roleWidgets[role] {
		if widget == w {
			return true
		}
	}
	return false
}
