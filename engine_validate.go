package gridauth

import (
	"context"
	"time"

	"github.com/empower-grid/gridauth/jwt"
)

// AuthResult is the authenticated principal attached to a request after
// validation succeeds.
type AuthResult struct {
	UserID        string
	WalletAddress string
	Role          string
	Username      string
	SessionID     string
	ExpiresAt     time.Time
	// Refresh tells the client whether it should rotate soon.
	Refresh RefreshStatus
}

// ValidateAccess checks an access token end to end: signature and claims,
// blacklist, and that the backing session is live and still holds this exact
// token. A token that verifies cryptographically but was rotated out or
// revoked is rejected.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	claims, err := e.jwtManager.Verify(tokenStr, jwt.TypeAccess)
	if err != nil {
		return nil, mapJWTErr(err)
	}

	blacklisted, err := e.sessions.IsBlacklisted(ctx, tokenStr)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if blacklisted {
		e.metricInc(MetricBlacklistedTokenUse)
		e.emitAudit(ctx, auditEventTokenRevokedUse, false, claims.UID, claims.Wallet, claims.SID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	valid, err := e.sessions.IsValid(ctx, tokenStr)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if !valid {
		return nil, ErrTokenRevoked
	}

	result := &AuthResult{
		UserID:        claims.UID,
		WalletAddress: claims.Wallet,
		Role:          claims.Role,
		Username:      claims.Username,
		SessionID:     claims.SID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	if status, err := e.jwtManager.RefreshStatus(tokenStr); err == nil {
		result.Refresh = status
	}

	return result, nil
}
