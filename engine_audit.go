package gridauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventChallengeIssued    = "challenge_issued"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventChallengeReplay    = "challenge_replay"
	auditEventIdentityRegistered = "identity_registered"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshReuse       = "refresh_reuse_detected"
	auditEventLogoutSession      = "logout_session"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventTokenRevokedUse    = "revoked_token_use"
)

// AuditErrorCode is the stable machine-readable failure label carried in
// audit events. It is deliberately coarser than the engine's error set.
type AuditErrorCode string

const (
	auditErrUnauthorized         AuditErrorCode = "unauthorized"
	auditErrInvalidSignature     AuditErrorCode = "invalid_signature"
	auditErrMalformedAddress     AuditErrorCode = "malformed_address"
	auditErrChallengeNotFound    AuditErrorCode = "challenge_not_found"
	auditErrChallengeExpired     AuditErrorCode = "challenge_expired"
	auditErrChallengeAlreadyUsed AuditErrorCode = "challenge_already_used"
	auditErrNonceMismatch        AuditErrorCode = "nonce_mismatch"
	auditErrRegistrationFailed   AuditErrorCode = "registration_failed"
	auditErrTokenExpired         AuditErrorCode = "token_expired"
	auditErrTokenInvalid         AuditErrorCode = "token_invalid"
	auditErrTokenRevoked         AuditErrorCode = "token_revoked"
	auditErrSessionNotFound      AuditErrorCode = "session_not_found"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	wallet string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Wallet:    wallet,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	identifier string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", "", ErrRateLimited, func() map[string]string {
		base := map[string]string{
			"scope":      scope,
			"identifier": identifier,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidSignature):
		return auditErrInvalidSignature
	case errors.Is(err, ErrMalformedAddress):
		return auditErrMalformedAddress
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrExpiredChallenge):
		return auditErrChallengeExpired
	case errors.Is(err, ErrChallengeAlreadyUsed):
		return auditErrChallengeAlreadyUsed
	case errors.Is(err, ErrMessageNonceMismatch):
		return auditErrNonceMismatch
	case errors.Is(err, ErrRegistrationFailed):
		return auditErrRegistrationFailed
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
