// Pawbase - Veterinary practice management backend
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawbase/clinic/internal/api"
	"github.com/pawbase/clinic/internal/auth"
	"github.com/pawbase/clinic/internal/config"
	"github.com/pawbase/clinic/internal/database"
	"github.com/pawbase/clinic/internal/logger"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

var Version = "1.0.0"

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	if len(os.Args) > 1 {
		runCLI(cfg)
		return
	}
	startServer(cfg, openStore(cfg))
}

func startServer(cfg *config.Config, s store.Store) {
	log := zap.L()
	log.Info("starting pawbase", zap.String("version", Version))

	jwtService := auth.NewJWTService(cfg.Auth)
	handler := api.NewHandler(s, jwtService)
	authHandler := api.NewAuthHandler(s, jwtService)
	router := api.SetupRouter(cfg, handler, authHandler)

	log.Info("server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

// openStore connects the configured backend. DB_DRIVER=memory runs fully
// in-process for demos and local development.
func openStore(cfg *config.Config) store.Store {
	if cfg.DB.Driver == "memory" {
		zap.L().Warn("running with in-memory store, data will not persist")
		return store.NewMemory(store.WithExpiryWindow(cfg.Stats.ExpiryWindow))
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		zap.L().Fatal("database connection failed", zap.Error(err))
	}
	if err := database.RunMigrations(db); err != nil {
		zap.L().Fatal("migration failed", zap.Error(err))
	}
	return store.NewGorm(db, store.WithGormExpiryWindow(cfg.Stats.ExpiryWindow))
}

// =============================================================================
// CLI
// =============================================================================

func runCLI(cfg *config.Config) {
	switch os.Args[1] {
	case "serve":
		startServer(cfg, openStore(cfg))
	case "demo":
		s := store.NewMemory(store.WithExpiryWindow(cfg.Stats.ExpiryWindow))
		if err := seed(s); err != nil {
			zap.L().Fatal("seed failed", zap.Error(err))
		}
		startServer(cfg, s)
	case "migrate":
		db, err := database.Connect(cfg.DB)
		if err != nil {
			zap.L().Fatal("database connection failed", zap.Error(err))
		}
		if err := database.RunMigrations(db); err != nil {
			zap.L().Fatal("migration failed", zap.Error(err))
		}
		fmt.Println("Migrations complete")
	case "seed":
		if err := seed(openStore(cfg)); err != nil {
			zap.L().Fatal("seed failed", zap.Error(err))
		}
		fmt.Println("Seed complete")
	case "tenant":
		runTenantCmd(cfg)
	case "user":
		runUserCmd(cfg)
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: pawbase <command>
Commands:
  serve                          Start server
  demo                           Start server with seeded in-memory data
  migrate                        Run migrations
  seed                           Load demo data into the configured store
  tenant list                    List practices
  tenant create --slug= --name=  Register a practice
  user list --tenant=            List staff of a practice
  user create --tenant= --email= --password= --role= Create a staff member`)
}

func runTenantCmd(cfg *config.Config) {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	s := openStore(cfg)
	switch os.Args[2] {
	case "list":
		tenants, err := s.FindTenants()
		if err != nil {
			zap.L().Fatal("failed to list tenants", zap.Error(err))
		}
		for _, t := range tenants {
			fmt.Printf("%s - %s\n", t.Slug, t.Name)
		}
	case "create":
		slug, name := getFlag("--slug"), getFlag("--name")
		if slug == "" || name == "" {
			printUsage()
			return
		}
		if _, err := s.CreateTenant(models.Tenant{Slug: slug, Name: name}); err != nil {
			zap.L().Fatal("failed to create tenant", zap.Error(err))
		}
		fmt.Printf("Practice created: %s\n", slug)
	case "delete":
		slug := getFlag("--slug")
		if slug == "" {
			printUsage()
			return
		}
		tenant, err := s.FindTenantBySlug(slug)
		if err != nil {
			zap.L().Fatal("practice not found", zap.String("slug", slug))
		}
		if _, err := s.DeleteTenant(tenant.ID); err != nil {
			zap.L().Fatal("failed to delete tenant", zap.Error(err))
		}
		fmt.Printf("Practice deleted: %s\n", slug)
	default:
		printUsage()
	}
}

func runUserCmd(cfg *config.Config) {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	s := openStore(cfg)
	tenantSlug := getFlag("--tenant")
	if tenantSlug == "" {
		printUsage()
		return
	}
	tenant, err := s.FindTenantBySlug(tenantSlug)
	if err != nil {
		zap.L().Fatal("practice not found", zap.String("slug", tenantSlug))
	}

	switch os.Args[2] {
	case "list":
		users, err := s.FindUsers(tenant.ID, store.UserFilter{})
		if err != nil {
			zap.L().Fatal("failed to list users", zap.Error(err))
		}
		for _, u := range users {
			fmt.Printf("%s <%s> (%s)\n", u.FullName(), u.Email, u.Role)
		}
	case "create":
		email, password := getFlag("--email"), getFlag("--password")
		role := models.Role(getFlag("--role"))
		if email == "" || password == "" {
			printUsage()
			return
		}
		if role == "" {
			role = models.RoleAdmin
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			zap.L().Fatal("failed to hash password", zap.Error(err))
		}
		if _, err := s.CreateUser(models.User{
			TenantID:     tenant.ID,
			Email:        email,
			PasswordHash: hash,
			FirstName:    getFlag("--first"),
			LastName:     getFlag("--last"),
			Role:         role,
		}); err != nil {
			zap.L().Fatal("failed to create user", zap.Error(err))
		}
		fmt.Printf("Staff member created: %s\n", email)
	default:
		printUsage()
	}
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
			return arg[len(prefix):]
		}
	}
	return ""
}

// =============================================================================
// DEMO DATA
// =============================================================================

// seed loads a small demo practice: one clinic, three staff members, two
// clients with pets, a scheduled visit and some pharmacy stock.
func seed(s store.Store) error {
	tenant, err := s.CreateTenant(models.Tenant{Slug: "happy-paws", Name: "Happy Paws Veterinary"})
	if err != nil {
		return err
	}
	clinic, err := s.CreateClinic(models.Clinic{
		TenantID: tenant.ID,
		Name:     "Main Street Clinic",
		City:     "Springfield",
		Timezone: "America/New_York",
	})
	if err != nil {
		return err
	}

	staff := []struct {
		email, first, last, password string
		role                         models.Role
	}{
		{"admin@happypaws.example", "Pat", "Reyes", "admin-pass-123", models.RoleAdmin},
		{"dr.patel@happypaws.example", "Asha", "Patel", "vet-pass-123", models.RoleVeterinarian},
		{"frontdesk@happypaws.example", "Sam", "Okafor", "desk-pass-123", models.RoleReceptionist},
	}
	var vet *models.User
	for _, m := range staff {
		hash, err := auth.HashPassword(m.password)
		if err != nil {
			return err
		}
		u, err := s.CreateUser(models.User{
			TenantID:     tenant.ID,
			ClinicID:     &clinic.ID,
			Email:        m.email,
			PasswordHash: hash,
			FirstName:    m.first,
			LastName:     m.last,
			Role:         m.role,
		})
		if err != nil {
			return err
		}
		if m.role == models.RoleVeterinarian {
			vet = u
		}
	}

	owner, err := s.CreateOwner(models.Owner{
		TenantID:  tenant.ID,
		FirstName: "John",
		LastName:  "Smith",
		Email:     "john.smith@example.com",
		Phone:     "555-0100",
	})
	if err != nil {
		return err
	}
	pet, err := s.CreatePet(models.Pet{
		TenantID: tenant.ID,
		OwnerID:  owner.ID,
		Name:     "Max",
		Species:  "dog",
		Breed:    "Labrador Retriever",
		WeightKg: 29.5,
		Allergies: []string{
			"penicillin",
		},
	})
	if err != nil {
		return err
	}

	owner2, err := s.CreateOwner(models.Owner{
		TenantID:  tenant.ID,
		FirstName: "Maria",
		LastName:  "Garcia",
		Email:     "maria.garcia@example.com",
		Phone:     "555-0101",
	})
	if err != nil {
		return err
	}
	if _, err := s.CreatePet(models.Pet{
		TenantID: tenant.ID,
		OwnerID:  owner2.ID,
		Name:     "Luna",
		Species:  "cat",
		Breed:    "Domestic Shorthair",
		WeightKg: 4.2,
	}); err != nil {
		return err
	}

	if _, err := s.CreateVisit(models.Visit{
		TenantID:    tenant.ID,
		ClinicID:    clinic.ID,
		PetID:       pet.ID,
		VetID:       vetID(vet),
		VisitType:   models.VisitCheckup,
		ScheduledAt: time.Now().Add(2 * time.Hour),
		Reason:      "annual checkup",
	}); err != nil {
		return err
	}

	med, err := s.CreateMedication(models.Medication{
		TenantID:    tenant.ID,
		Name:        "Carprofen",
		GenericName: "carprofen",
		Form:        "tablet",
		Strength:    "75mg",
	})
	if err != nil {
		return err
	}
	expiry := time.Now().Add(20 * 24 * time.Hour)
	if _, err := s.CreateInventoryItem(models.InventoryItem{
		TenantID:     tenant.ID,
		ClinicID:     clinic.ID,
		MedicationID: &med.ID,
		Name:         "Carprofen 75mg",
		Category:     "medication",
		Quantity:     12,
		ReorderPoint: 20,
		Unit:         "tablet",
		ExpiryDate:   &expiry,
	}); err != nil {
		return err
	}

	zap.L().Info("demo data loaded",
		zap.String("tenant", tenant.Slug),
		zap.String("admin", "admin@happypaws.example"))
	return nil
}

func vetID(u *models.User) *uuid.UUID {
	if u == nil {
		return nil
	}
	return &u.ID
}
