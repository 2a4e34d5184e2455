// Package api - Dashboard handler
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawbase/clinic/internal/auth"
	"github.com/pawbase/clinic/internal/models"
)

// Dashboard returns the tenant summary, filtered down to the widgets the
// caller's role may see
// GET /api/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	role := c.MustGet("role").(models.Role)

	stats, err := h.store.DashboardStats(tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	widgets := gin.H{}
	if auth.CanViewWidget(role, auth.WidgetAppointments) {
		widgets[string(auth.WidgetAppointments)] = gin.H{
			"today":     stats.TodayAppointments,
			"completed": stats.CompletedAppointments,
		}
	}
	if auth.CanViewWidget(role, auth.WidgetCheckIns) {
		widgets[string(auth.WidgetCheckIns)] = gin.H{
			"today": stats.TodayCheckIns,
		}
	}
	if auth.CanViewWidget(role, auth.WidgetRevenue) {
		widgets[string(auth.WidgetRevenue)] = gin.H{
			"today": stats.RevenueToday,
		}
	}
	if auth.CanViewWidget(role, auth.WidgetPendingInvoices) {
		widgets[string(auth.WidgetPendingInvoices)] = gin.H{
			"count": stats.PendingInvoices,
		}
	}
	if auth.CanViewWidget(role, auth.WidgetInventoryAlerts) {
		widgets[string(auth.WidgetInventoryAlerts)] = gin.H{
			"low_stock": stats.LowInventoryItems,
			"expiring":  stats.ExpiringItems,
		}
	}
	if auth.CanViewWidget(role, auth.WidgetPatients) {
		widgets[string(auth.WidgetPatients)] = gin.H{
			"active_patients": stats.ActivePatients,
			"active_owners":   stats.ActiveOwners,
		}
	}

	c.JSON(http.StatusOK, gin.H{"widgets": widgets})
}
