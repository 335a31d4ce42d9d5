package gridauth

import (
	"context"
	"errors"

	"github.com/empower-grid/gridauth/jwt"
)

// Logout destroys the session the token belongs to and blacklists the
// session's current token pair for the remainder of its natural lifetime.
// Either half of the pair works. Logout is idempotent: a second call with the
// same token, or a token whose session is already gone, succeeds without
// effect — but the presented token is still blacklisted so it cannot be
// replayed against a recreated session.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	existed, err := e.sessions.DeleteByToken(ctx, token)
	if err != nil {
		return ErrStoreUnavailable
	}

	if existed {
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventLogoutSession, true, "", "", "", nil, nil)
		return nil
	}

	// No backing session. If the token itself is still verifiable, pin it to
	// the blacklist until its own expiry.
	claims, verr := e.verifyEitherType(token)
	if verr != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := e.sessions.Blacklist(ctx, token, claims.ExpiresAt.Time); err != nil {
		return ErrStoreUnavailable
	}

	e.emitAudit(ctx, auditEventLogoutSession, true, claims.UID, claims.Wallet, claims.SID, nil, func() map[string]string {
		return map[string]string{
			"orphan_token": "true",
		}
	})
	return nil
}

func (e *Engine) verifyEitherType(token string) (*jwt.Claims, error) {
	claims, err := e.jwtManager.Verify(token, jwt.TypeAccess)
	if err == nil {
		return claims, nil
	}
	if errors.Is(err, jwt.ErrWrongTokenType) {
		return e.jwtManager.Verify(token, jwt.TypeRefresh)
	}
	return nil, err
}
