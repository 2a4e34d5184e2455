// Package api - Authentication handlers
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawbase/clinic/internal/auth"
	"github.com/pawbase/clinic/internal/metrics"
	"github.com/pawbase/clinic/internal/models"
	"github.com/pawbase/clinic/internal/store"
)

// LoginRateLimiter implements rate limiting for login attempts
type LoginRateLimiter struct {
	attempts map[string]*loginAttempt
	mu       sync.RWMutex
}

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// NewLoginRateLimiter creates a new rate limiter
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts: make(map[string]*loginAttempt),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if a login attempt is allowed. 5 attempts per 5-minute
// window, then a 15-minute block.
func (rl *LoginRateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, 4, 0
	}

	if attempt.blockedAt != nil {
		blockDuration := 15 * time.Minute
		if now.Sub(*attempt.blockedAt) < blockDuration {
			remaining := blockDuration - now.Sub(*attempt.blockedAt)
			return false, 0, remaining
		}
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, 4, 0
	}

	if now.Sub(attempt.firstTry) > 5*time.Minute {
		attempt.count = 1
		attempt.firstTry = now
		return true, 4, 0
	}

	attempt.count++
	if attempt.count > 5 {
		attempt.blockedAt = &now
		return false, 0, 15 * time.Minute
	}
	return true, 5 - attempt.count, 0
}

// Reset clears the attempts for a key on successful login
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// cleanup removes stale entries periodically
func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, attempt := range rl.attempts {
			if now.Sub(attempt.firstTry) > 30*time.Minute {
				delete(rl.attempts, key)
			}
		}
		rl.mu.Unlock()
	}
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	store       store.Store
	jwt         *auth.JWTService
	rateLimiter *LoginRateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(s store.Store, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		store:       s,
		jwt:         jwt,
		rateLimiter: NewLoginRateLimiter(),
	}
}

// LoginRequest represents login credentials. The practice is identified
// by its slug so staff never handle tenant UUIDs.
type LoginRequest struct {
	Tenant   string `json:"tenant" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest carries a self-service practice signup: the practice
// itself plus its first admin account.
type RegisterRequest struct {
	TenantSlug string `json:"tenant_slug" binding:"required"`
	TenantName string `json:"tenant_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest carries a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// Login authenticates a staff member and returns tokens
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	rateLimitKey := c.ClientIP() + ":" + req.Email
	allowed, remaining, retryAfter := h.rateLimiter.Allow(rateLimitKey)
	if !allowed {
		c.Header("Retry-After", retryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.Seconds(),
		})
		return
	}

	tenant, err := h.store.FindTenantBySlug(req.Tenant)
	if err != nil {
		// Do not reveal whether the practice exists
		metrics.RecordLogin("failure")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	user, err := h.store.FindUserByEmail(tenant.ID, req.Email)
	if err != nil {
		metrics.RecordLogin("failure")
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		metrics.RecordLogin("failure")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid credentials",
			"attempts_remaining": remaining,
		})
		return
	}

	h.rateLimiter.Reset(rateLimitKey)
	metrics.RecordLogin("success")
	if err := h.store.TouchLastLogin(tenant.ID, user.ID); err != nil {
		respondError(c, err)
		return
	}

	tokens, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens":  tokens,
		"user":    user,
		"widgets": auth.WidgetsFor(user.Role),
	})
}

// Register creates a new practice with its first admin account and logs
// the admin in
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	tenant, err := h.store.CreateTenant(models.Tenant{
		Slug: req.TenantSlug,
		Name: req.TenantName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.store.CreateUser(models.User{
		TenantID:     tenant.ID,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		// Do not leave a practice without any staff account behind.
		if _, delErr := h.store.DeleteTenant(tenant.ID); delErr != nil {
			respondError(c, delErr)
			return
		}
		respondError(c, err)
		return
	}

	tokens, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant":  tenant,
		"user":    user,
		"tokens":  tokens,
		"widgets": auth.WidgetsFor(user.Role),
	})
}

// RefreshToken exchanges a refresh token for a new token pair
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	claims, err := h.jwt.ValidateToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	user, err := h.store.FindUserByID(claims.TenantID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
		return
	}

	tokens, err := h.jwt.RefreshAccessToken(req.RefreshToken, user)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Me returns the authenticated staff member
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.store.FindUserByID(tenantID(c), c.MustGet("user_id").(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"widgets": auth.WidgetsFor(user.Role),
	})
}

// ChangePassword updates the caller's password
// POST /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	user, err := h.store.FindUserByID(tenantID(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.store.UpdateUser(tenantID(c), userID, store.UserUpdate{PasswordHash: &hash}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// Logout acknowledges a logout. Tokens are stateless, the client discards
// them; short access expiries bound the remaining validity.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
