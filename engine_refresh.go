package gridauth

import (
	"context"
	"errors"
	"time"

	"github.com/empower-grid/gridauth/internal"
	"github.com/empower-grid/gridauth/jwt"
	"github.com/empower-grid/gridauth/session"
)

// Refresh exchanges a valid refresh token for a new token pair. Rotation is
// atomic: the presented token is compared against the session's current
// refresh hash and the swap, reindex and old-pair blacklisting commit as one
// unit. Presenting a previously rotated-out refresh token is treated as
// reuse and revokes nothing further, but is reported distinctly.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Verify(refreshToken, jwt.TypeRefresh)
	if err != nil {
		mapped := mapJWTErr(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", mapped, nil)
		return nil, mapped
	}

	blacklisted, err := e.sessions.IsBlacklisted(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrStoreUnavailable
	}
	if blacklisted {
		e.metricInc(MetricBlacklistedTokenUse)
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuse, false, claims.UID, claims.Wallet, claims.SID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	current, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, claims.Wallet, claims.SID, ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		}
		return nil, ErrStoreUnavailable
	}

	pair, err := e.jwtManager.IssuePair(claims.UID, claims.Wallet, claims.Role, claims.SID, claims.Username)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	next := *current
	next.AccessHash = internal.HashTokenHex(pair.AccessToken)
	next.RefreshHash = internal.HashTokenHex(pair.RefreshToken)
	next.AccessExpiresAt = pair.ExpiresAt.UnixMilli()
	next.IPAddress = clientIPFromContext(ctx)
	next.UserAgent = userAgentFromContext(ctx)

	if err := e.sessions.Rotate(ctx, current, refreshToken, &next); err != nil {
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			// The token verified but is not the session's current one: it
			// was rotated out already. Classic reuse signature.
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuse, false, claims.UID, claims.Wallet, claims.SID, ErrTokenRevoked, nil)
			return nil, ErrTokenRevoked
		case errors.Is(err, session.ErrExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrSessionNotFound
		default:
			return nil, ErrStoreUnavailable
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UID, claims.Wallet, claims.SID, nil, nil)

	return &RefreshResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		ExpiresIn:    time.Until(pair.ExpiresAt),
	}, nil
}

// AccessRefreshStatus reports whether the access token is close enough to
// expiry that the client should refresh now. It inspects the token only; no
// session state is touched.
func (e *Engine) AccessRefreshStatus(accessToken string) (RefreshStatus, error) {
	if e == nil {
		return RefreshStatus{}, ErrEngineNotReady
	}
	status, err := e.jwtManager.RefreshStatus(accessToken)
	if err != nil {
		return RefreshStatus{}, mapJWTErr(err)
	}
	return status, nil
}

func mapJWTErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrWrongTokenType):
		return ErrTokenInvalid
	default:
		return ErrTokenInvalid
	}
}
