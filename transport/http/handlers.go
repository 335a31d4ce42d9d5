package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/empower-grid/gridauth"
)

// AuthHandlers contains the HTTP handlers for the auth endpoints.
type AuthHandlers struct {
	engine *gridauth.Engine
	logger *zap.Logger
}

// NewAuthHandlers creates handlers backed by the given engine.
func NewAuthHandlers(engine *gridauth.Engine, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		engine: engine,
		logger: logger,
	}
}

// Challenge issues a single-use login challenge. The wallet address is
// optional: when present the challenge is bound to it, when absent any wallet
// may answer.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address"`
	}

	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "malformed request body")
		return
	}

	ch, err := h.engine.IssueChallenge(requestContext(c), req.WalletAddress)
	if err != nil {
		h.logger.Info("challenge rejected",
			zap.String("code", gridauth.Code(err)))
		if err == gridauth.ErrMalformedAddress {
			badRequest(c, "malformed wallet address")
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      ch.Nonce,
		"message":    ch.Message,
		"expires_at": ch.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Login exchanges a signed challenge for a token pair.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Nonce         string `json:"nonce" binding:"required"`
		Encoding      string `json:"encoding"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "wallet_address, signature, message and nonce are required")
		return
	}

	result, err := h.engine.Login(requestContext(c), gridauth.LoginRequest{
		WalletAddress: req.WalletAddress,
		Signature:     req.Signature,
		Message:       req.Message,
		Nonce:         req.Nonce,
		Encoding:      req.Encoding,
	})
	if err != nil {
		h.logger.Info("login rejected",
			zap.String("code", gridauth.Code(err)))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(result.Tokens.ExpiresIn.Seconds()),
		"expires_at":    result.Tokens.ExpiresAt.UTC().Format(time.RFC3339),
		"user": gin.H{
			"id":             result.User.ID,
			"wallet_address": result.User.WalletAddress,
			"username":       result.User.Username,
			"role":           result.User.Role,
		},
	})
}

// Refresh rotates a token pair.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}

	result, err := h.engine.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		h.logger.Info("refresh rejected",
			zap.String("code", gridauth.Code(err)))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(result.ExpiresIn.Seconds()),
	})
}

// Logout destroys the session behind the bearer token. Either token of the
// pair is accepted. Idempotent: a token with no backing session still returns
// 204.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		abortWithError(c, gridauth.ErrUnauthorized)
		return
	}

	if err := h.engine.Logout(requestContext(c), token); err != nil {
		h.logger.Warn("logout failed",
			zap.String("code", gridauth.Code(err)))
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RateLimitStatus reports the caller's window usage across all operation
// classes without consuming quota.
func (h *AuthHandlers) RateLimitStatus(c *gin.Context) {
	identifier := identifierFor(c)

	statuses, err := h.engine.RateLimitStatus(requestContext(c), identifier)
	if err != nil {
		abortWithError(c, err)
		return
	}

	body := gin.H{}
	for class, res := range statuses {
		entry := gin.H{
			"limit":     res.Limit,
			"remaining": res.Remaining,
			"current":   res.Current,
			"reset":     res.ResetTime.Unix(),
		}
		if res.Limit <= 0 {
			entry["limit"] = nil
			entry["remaining"] = nil
		}
		body[string(class)] = entry
	}

	c.JSON(http.StatusOK, body)
}

// Me returns the authenticated principal attached by the middleware.
func (h *AuthHandlers) Me(c *gin.Context) {
	res, ok := authResultFrom(c)
	if !ok {
		abortWithError(c, gridauth.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":        res.UserID,
		"wallet_address": res.WalletAddress,
		"username":       res.Username,
		"role":           res.Role,
		"session_id":     res.SessionID,
		"expires_at":     res.ExpiresAt.Unix(),
		"needs_refresh":  res.Refresh.NeedsRefresh,
	})
}

// Healthz checks Redis reachability.
func (h *AuthHandlers) Healthz(c *gin.Context) {
	latency, err := h.engine.Ping(requestContext(c))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"redis_ms":   latency.Milliseconds(),
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	})
}
