// Package api - Router setup
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pawbase/clinic/internal/config"
	"github.com/pawbase/clinic/internal/logger"
	"github.com/pawbase/clinic/internal/metrics"
	"github.com/pawbase/clinic/internal/models"
)

// management is the role set allowed to administer clinics, staff and tenants
var management = []models.Role{models.RoleManager, models.RoleAdmin, models.RoleOwner}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, authHandler *AuthHandler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware())
	r.Use(metrics.Middleware())

	// When credentials are used, specific origins must be provided (not *)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	// Unauthenticated endpoints
	r.GET("/api/health", handler.Health)
	r.GET("/metrics", metrics.Handler())

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
	}

	authProtected := r.Group("/auth")
	authProtected.Use(handler.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.Me)
		authProtected.POST("/change-password", authHandler.ChangePassword)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// ==========================================================================
	// PLATFORM ADMIN - Tenant lifecycle, platform operators only. Practice
	// admins administer their own practice under /api, never other tenants.
	// ==========================================================================
	admin := r.Group("/admin")
	admin.Use(handler.AuthMiddleware())
	admin.Use(handler.RequireRole(models.RoleSuperAdmin))
	{
		admin.GET("/tenants", handler.ListTenants)
		admin.POST("/tenants", handler.CreateTenant)
		admin.GET("/tenants/:id", handler.GetTenant)
		admin.PUT("/tenants/:id", handler.UpdateTenant)
		admin.DELETE("/tenants/:id", handler.DeleteTenant)
	}

	// ==========================================================================
	// PRACTICE API - Tenant-scoped, authenticated
	// ==========================================================================
	api := r.Group("/api")
	api.Use(handler.AuthMiddleware())
	{
		api.GET("/dashboard", handler.Dashboard)

		// Clinic and staff management
		mgmt := api.Group("")
		mgmt.Use(handler.RequireRole(management...))
		{
			mgmt.POST("/clinics", handler.CreateClinic)
			mgmt.PUT("/clinics/:id", handler.UpdateClinic)
			mgmt.DELETE("/clinics/:id", handler.DeleteClinic)

			mgmt.POST("/users", handler.CreateUser)
			mgmt.PUT("/users/:id", handler.UpdateUser)
			mgmt.DELETE("/users/:id", handler.DeleteUser)
		}
		api.GET("/clinics", handler.ListClinics)
		api.GET("/clinics/:id", handler.GetClinic)
		api.GET("/users", handler.ListUsers)
		api.GET("/users/:id", handler.GetUser)

		// Clients and patients
		api.GET("/owners", handler.ListOwners)
		api.POST("/owners", handler.CreateOwner)
		api.GET("/owners/:id", handler.GetOwner)
		api.PUT("/owners/:id", handler.UpdateOwner)
		api.DELETE("/owners/:id", handler.DeleteOwner)

		api.GET("/pets", handler.ListPets)
		api.POST("/pets", handler.CreatePet)
		api.GET("/pets/:id", handler.GetPet)
		api.PUT("/pets/:id", handler.UpdatePet)
		api.DELETE("/pets/:id", handler.DeletePet)

		// Appointments
		api.GET("/visits", handler.ListVisits)
		api.POST("/visits", handler.CreateVisit)
		api.GET("/visits/:id", handler.GetVisit)
		api.PUT("/visits/:id", handler.UpdateVisit)
		api.POST("/visits/:id/transition", handler.TransitionVisit)
		api.DELETE("/visits/:id", handler.DeleteVisit)

		// Billing
		api.GET("/invoices", handler.ListInvoices)
		api.POST("/invoices", handler.CreateInvoice)
		api.GET("/invoices/:id", handler.GetInvoice)
		api.POST("/invoices/:id/payments", handler.AddPayment)
		api.DELETE("/invoices/:id", handler.DeleteInvoice)

		// Pharmacy and inventory
		api.GET("/inventory", handler.ListInventory)
		api.POST("/inventory", handler.CreateInventoryItem)
		api.GET("/inventory/:id", handler.GetInventoryItem)
		api.PUT("/inventory/:id", handler.UpdateInventoryItem)
		api.POST("/inventory/:id/adjust", handler.AdjustStock)
		api.DELETE("/inventory/:id", handler.DeleteInventoryItem)

		api.GET("/medications", handler.ListMedications)
		api.POST("/medications", handler.CreateMedication)
	}

	return r
}
