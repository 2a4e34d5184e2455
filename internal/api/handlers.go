// Package api contains the HTTP API handlers for Pawbase
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawbase/clinic/internal/auth"
	apperrors "github.com/pawbase/clinic/internal/errors"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// Handler carries shared dependencies for the API handlers
type Handler struct {
	store store.Store
	jwt   *auth.JWTService
}

// NewHandler creates a new API handler
func NewHandler(s store.Store, jwt *auth.JWTService) *Handler {
	return &Handler{store: s, jwt: jwt}
}

// respondError maps an error to its HTTP status and JSON body
func respondError(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

// parseIDParam parses the :id path parameter as a UUID
func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// tenantID returns the tenant extracted by AuthMiddleware
func tenantID(c *gin.Context) uuid.UUID {
	return c.MustGet("tenant_id").(uuid.UUID)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// AuthMiddleware validates the bearer token and stores the caller's
// identity on the request context. Tenant scoping for every downstream
// handler comes from the token, never from client-supplied headers.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// The user may have been deactivated since the token was issued
		user, err := h.store.FindUserByID(claims.TenantID, claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
			c.Abort()
			return
		}

		c.Set("tenant_id", user.TenantID)
		c.Set("user_id", user.ID)
		c.Set("role", user.Role)
		c.Next()
	}
}

// RequireRole restricts a route group to the given roles
func (h *Handler) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.MustGet("role").(models.Role)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health returns service liveness
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pawbase",
	})
}
