package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"voicegate/internal/admission"
	"voicegate/internal/auth"
	"voicegate/internal/config"
	"voicegate/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth *auth.Manager
	Gate *admission.Gate

	Verifier config.VerifierConfig
	Calls    config.CallsConfig
}

// ClientConfig exposes the non-secret settings a client needs before it can
// start a call: whether bot verification is enforced, the site key that mints
// verification tokens, and the call policy. Never include the secret key here.
func (h Handlers) ClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"verification_required":     h.Verifier.SecretKey != "",
		"verifier_site_key":         h.Verifier.SiteKey,
		"max_calls_per_day":         h.Calls.MaxCallsPerDay,
		"max_call_duration_seconds": h.Calls.MaxCallDurationSeconds,
	})
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a demo-only endpoint. Real systems must validate credentials
// against an identity provider.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Email == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, email required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Email)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// Me echoes the resolved identity.
func (h Handlers) Me(c *gin.Context) {
	id, err := auth.IdentityFromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "email": id.Email})
}

// --- Calls ---

type startCallRequest struct {
	VerificationToken string `json:"verification_token"`
}

// StartCall runs the admission gate for one call-start request and maps
// each admission failure to its status code. Internal detail is logged,
// never returned to the caller.
func (h Handlers) StartCall(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Gate == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "gate not configured"})
		return
	}

	id, err := auth.IdentityFromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	// The body is optional; an absent verification token is only an error
	// when the gate enforces bot verification.
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Gate.StartCall(c.Request.Context(), id, req.VerificationToken)
	if err != nil {
		switch {
		case errors.Is(err, admission.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		case errors.Is(err, admission.ErrTokenRequired):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "verification token required"})
		case errors.Is(err, admission.ErrBotCheckFailed):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		case errors.Is(err, admission.ErrQuotaExceeded):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Daily call limit reached"})
		case errors.Is(err, admission.ErrSpendLimitReached):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Demo paused: spending limit reached",
				"code":  "SPEND_LIMIT",
			})
		default:
			log.Error("call admission failed", "user_id", id.UserID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start call"})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

// Quota reports today's usage for the authenticated user.
func (h Handlers) Quota(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Gate == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "gate not configured"})
		return
	}

	id, err := auth.IdentityFromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	q, err := h.Gate.Quota(c.Request.Context(), id)
	if err != nil {
		log.Error("quota lookup failed", "user_id", id.UserID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quota lookup failed"})
		return
	}
	c.JSON(http.StatusOK, q)
}
