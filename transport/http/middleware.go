package http

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/empower-grid/gridauth"
)

const authResultKey = "gridauth/result"

func authResultFrom(c *gin.Context) (*gridauth.AuthResult, bool) {
	v, ok := c.Get(authResultKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*gridauth.AuthResult)
	return res, ok
}

// requestContext attaches the request's client IP and user agent so engine
// audit events carry them.
func requestContext(c *gin.Context) context.Context {
	ctx := gridauth.WithClientIP(c.Request.Context(), c.ClientIP())
	return gridauth.WithUserAgent(ctx, c.Request.UserAgent())
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	return auth[7:], true
}

// AuthMiddleware validates the bearer access token and attaches the
// principal to the gin context.
func AuthMiddleware(engine *gridauth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, gridauth.ErrUnauthorized)
			return
		}

		res, err := engine.ValidateAccess(requestContext(c), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(authResultKey, res)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the principal when a valid bearer token is
// presented and passes anonymous requests through untouched. Invalid tokens
// are treated as anonymous rather than rejected.
func OptionalAuthMiddleware(engine *gridauth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if res, err := engine.ValidateAccess(requestContext(c), token); err == nil {
				c.Set(authResultKey, res)
			}
		}
		c.Next()
	}
}

// RateLimitMiddleware enforces the sliding-window quota for the request's
// operation class. Window state is reported via X-RateLimit headers on every
// response; exhausted windows answer 429 with Retry-After.
func RateLimitMiddleware(engine *gridauth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := gridauth.ClassifyOperation(c.Request.Method, c.Request.URL.Path)
		identifier := identifierFor(c)

		res, err := engine.CheckOperation(requestContext(c), identifier, class)
		if err != nil {
			if errors.Is(err, gridauth.ErrRateLimited) {
				setRateHeaders(c, res)
				retry := int(res.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				c.Header("Retry-After", strconv.Itoa(retry))
				abortWithError(c, gridauth.ErrRateLimited)
				return
			}
			// Fail closed: an outage must not disable quotas.
			abortWithError(c, gridauth.ErrStoreUnavailable)
			return
		}

		setRateHeaders(c, res)
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func identifierFor(c *gin.Context) string {
	if res, ok := authResultFrom(c); ok {
		return gridauth.ResolveIdentifier(res.UserID, res.WalletAddress, "")
	}
	return gridauth.ResolveIdentifier("", "", c.ClientIP())
}

func setRateHeaders(c *gin.Context, res gridauth.RateLimitResult) {
	if res.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
}

