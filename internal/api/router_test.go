package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawbase/clinic/internal/auth"
	"github.com/pawbase/clinic/internal/config"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

type testServer struct {
	router *gin.Engine
	store  store.Store
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth: config.AuthConfig{
			JWTSecret:     "router-test-secret-0123456789abcdef",
			AccessExpiry:  time.Hour,
			RefreshExpiry: 24 * time.Hour,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	s := store.NewMemory()
	jwt := auth.NewJWTService(cfg.Auth)
	return &testServer{
		router: SetupRouter(cfg, NewHandler(s, jwt), NewAuthHandler(s, jwt)),
		store:  s,
		jwt:    jwt,
	}
}

func (ts *testServer) createPractice(t *testing.T, slug, name string) *models.Tenant {
	t.Helper()
	tenant, err := ts.store.CreateTenant(models.Tenant{Slug: slug, Name: name})
	require.NoError(t, err)
	return tenant
}

// tokenFor creates a staff member in the given practice and returns a
// bearer token for them.
func (ts *testServer) tokenFor(t *testing.T, tenantID uuid.UUID, role models.Role, email string) string {
	t.Helper()
	hash, err := auth.HashPassword("a-long-password")
	require.NoError(t, err)
	user, err := ts.store.CreateUser(models.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "Staff",
		Role:         role,
	})
	require.NoError(t, err)
	tokens, err := ts.jwt.GenerateTokenPair(user)
	require.NoError(t, err)
	return tokens.AccessToken
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestTenantLifecycleRequiresPlatformOperator(t *testing.T) {
	ts := newTestServer(t)
	mine := ts.createPractice(t, "happy-paws", "Happy Paws")
	victim := ts.createPractice(t, "rival-vets", "Rival Vets")
	adminToken := ts.tokenFor(t, mine.ID, models.RoleAdmin, "admin@happypaws.example")

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/admin/tenants", nil},
		{http.MethodGet, "/admin/tenants/" + victim.ID.String(), nil},
		{http.MethodPut, "/admin/tenants/" + victim.ID.String(), gin.H{"name": "Hijacked"}},
		{http.MethodDelete, "/admin/tenants/" + victim.ID.String(), nil},
		{http.MethodPost, "/admin/tenants", gin.H{"slug": "squatted", "name": "Squatted"}},
	} {
		rec := ts.do(t, tc.method, tc.path, adminToken, tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}

	// The victim practice is untouched
	got, err := ts.store.FindTenantByID(victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rival Vets", got.Name)
	assert.True(t, got.IsActive)
}

func TestSelfSignupCannotReachTenantAdmin(t *testing.T) {
	ts := newTestServer(t)
	victim := ts.createPractice(t, "rival-vets", "Rival Vets")

	rec := ts.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"tenant_slug": "fly-by-night",
		"tenant_name": "Fly By Night Vets",
		"email":       "boss@flybynight.example",
		"password":    "a-long-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var signup struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signup))
	require.NotEmpty(t, signup.Tokens.AccessToken)

	rec = ts.do(t, http.MethodDelete, "/admin/tenants/"+victim.ID.String(), signup.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	got, err := ts.store.FindTenantByID(victim.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestPlatformOperatorManagesTenants(t *testing.T) {
	ts := newTestServer(t)
	platform := ts.createPractice(t, "pawbase-hq", "Pawbase HQ")
	practice := ts.createPractice(t, "happy-paws", "Happy Paws")
	operatorToken := ts.tokenFor(t, platform.ID, models.RoleSuperAdmin, "ops@pawbase.example")

	rec := ts.do(t, http.MethodGet, "/admin/tenants", operatorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, "/admin/tenants/"+practice.ID.String(), operatorToken, gin.H{"name": "Happy Paws Group"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/admin/tenants/"+practice.ID.String(), operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := ts.store.FindTenantByID(practice.ID)
	assert.Error(t, err)
}

func TestStaffEndpointsCannotAssignPlatformRole(t *testing.T) {
	ts := newTestServer(t)
	practice := ts.createPractice(t, "happy-paws", "Happy Paws")
	adminToken := ts.tokenFor(t, practice.ID, models.RoleAdmin, "admin@happypaws.example")

	rec := ts.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"email":    "sneaky@happypaws.example",
		"password": "a-long-password",
		"role":     "super_admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err := ts.store.FindUserByEmail(practice.ID, "sneaky@happypaws.example")
	assert.Error(t, err)

	tech, err := ts.store.CreateUser(models.User{
		TenantID:     practice.ID,
		Email:        "tech@happypaws.example",
		PasswordHash: "x",
		Role:         models.RoleVetTech,
	})
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPut, "/api/users/"+tech.ID.String(), adminToken, gin.H{"role": "super_admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	got, err := ts.store.FindUserByID(practice.ID, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVetTech, got.Role)
}

func TestUpdateBindsSnakeCaseFields(t *testing.T) {
	ts := newTestServer(t)
	practice := ts.createPractice(t, "happy-paws", "Happy Paws")
	token := ts.tokenFor(t, practice.ID, models.RoleReceptionist, "desk@happypaws.example")

	owner, err := ts.store.CreateOwner(models.Owner{
		TenantID:  practice.ID,
		FirstName: "John",
		LastName:  "Smith",
		Phone:     "555-0100",
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPut, "/api/owners/"+owner.ID.String(), token, gin.H{
		"first_name": "Jonathan",
		"phone":      "555-0199",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := ts.store.FindOwnerByID(practice.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jonathan", got.FirstName, "multi-word json keys must bind")
	assert.Equal(t, "555-0199", got.Phone)
	assert.Equal(t, "Smith", got.LastName, "untouched fields keep their values")
}

func TestInventoryUpdateBindsReorderPoint(t *testing.T) {
	ts := newTestServer(t)
	practice := ts.createPractice(t, "happy-paws", "Happy Paws")
	clinic, err := ts.store.CreateClinic(models.Clinic{TenantID: practice.ID, Name: "Main"})
	require.NoError(t, err)
	token := ts.tokenFor(t, practice.ID, models.RolePharmacist, "pharm@happypaws.example")

	item, err := ts.store.CreateInventoryItem(models.InventoryItem{
		TenantID:     practice.ID,
		ClinicID:     clinic.ID,
		Name:         "Gauze Rolls",
		Category:     "supply",
		Quantity:     40,
		ReorderPoint: 10,
		Unit:         "roll",
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPut, "/api/inventory/"+item.ID.String(), token, gin.H{
		"reorder_point": 25,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := ts.store.FindInventoryItemByID(practice.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.ReorderPoint)
	assert.Equal(t, 40, got.Quantity, "quantity only moves through stock adjustments")
}
