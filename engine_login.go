package gridauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/empower-grid/gridauth/challenge"
	"github.com/empower-grid/gridauth/internal"
	"github.com/empower-grid/gridauth/session"
	"github.com/empower-grid/gridauth/wallet"
)

// Login runs the signed-challenge login flow. Checks always run in the same
// order regardless of which one fails first: nonce state, signature, message
// nonce binding, then the single-use consume. The nonce is burned only after
// everything before it passed, so a failed signature does not cost the client
// its challenge.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.challenges == nil || e.sessions == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	addr, err := wallet.ParseAddress(req.WalletAddress)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrMalformedAddress, "malformed_address")
		return nil, ErrMalformedAddress
	}

	ch, err := e.challenges.Validate(ctx, req.Nonce)
	if err != nil {
		err = mapChallengeErr(err)
		if errors.Is(err, ErrChallengeAlreadyUsed) {
			e.metricInc(MetricChallengeReplay)
		}
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, err, "challenge_rejected")
		return nil, err
	}

	// A nonce issued for one wallet must not authenticate another.
	if ch.Wallet != "" && ch.Wallet != addr.String() {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrChallengeNotFound, "wallet_binding_mismatch")
		return nil, ErrChallengeNotFound
	}

	if err := wallet.Verify(req.Message, req.Signature, addr, wallet.MessageEncoding(req.Encoding)); err != nil {
		e.metricInc(MetricSignatureRejected)
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrInvalidSignature, "signature_rejected")
		return nil, ErrInvalidSignature
	}

	if !strings.Contains(req.Message, req.Nonce) {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrMessageNonceMismatch, "nonce_not_in_message")
		return nil, ErrMessageNonceMismatch
	}

	if err := e.challenges.Consume(ctx, req.Nonce); err != nil {
		err = mapChallengeErr(err)
		if errors.Is(err, ErrChallengeAlreadyUsed) {
			// Lost the consume race: a concurrent login with the same
			// signed challenge made it through first.
			e.metricInc(MetricChallengeReplay)
			e.emitAudit(ctx, auditEventChallengeReplay, false, "", req.WalletAddress, "", err, nil)
		}
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, err, "challenge_consume_failed")
		return nil, err
	}

	user, registered, err := e.resolveIdentity(ctx, addr.String())
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrRegistrationFailed, "identity_resolution_failed")
		return nil, ErrRegistrationFailed
	}
	if registered {
		e.metricInc(MetricIdentityRegistered)
		e.emitAudit(ctx, auditEventIdentityRegistered, true, user.ID, user.WalletAddress, "", nil, nil)
	}
	if user.Role == "" {
		user.Role = e.config.Identity.DefaultRole
	}

	sid := uuid.NewString()
	pair, err := e.jwtManager.IssuePair(user.ID, user.WalletAddress, user.Role, sid, user.Username)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, err, "token_issue_failed")
		return nil, err
	}

	// The session record lives to the absolute cap; rotation preserves the
	// remaining lifetime, and each refresh token's own exp bounds a single hop.
	now := time.Now()
	sess := &session.Session{
		ID:              sid,
		UserID:          user.ID,
		WalletAddress:   user.WalletAddress,
		Role:            user.Role,
		AccessHash:      internal.HashTokenHex(pair.AccessToken),
		RefreshHash:     internal.HashTokenHex(pair.RefreshToken),
		IPAddress:       clientIPFromContext(ctx),
		UserAgent:       userAgentFromContext(ctx),
		CreatedAt:       now.UnixMilli(),
		ExpiresAt:       now.Add(e.config.Session.AbsoluteSessionLifetime).UnixMilli(),
		AccessExpiresAt: pair.ExpiresAt.UnixMilli(),
	}

	if err := e.sessions.Create(ctx, sess); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitLoginFailure(ctx, req.WalletAddress, ErrStoreUnavailable, "session_creation_failed")
		return nil, ErrStoreUnavailable
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.WalletAddress, sid, nil, nil)

	return &LoginResult{
		Tokens:    pair,
		User:      user,
		SessionID: sid,
	}, nil
}

func (e *Engine) resolveIdentity(ctx context.Context, walletAddress string) (Identity, bool, error) {
	if !e.config.Identity.AutoRegister {
		user, err := e.identities.GetByWallet(ctx, walletAddress)
		return user, false, err
	}

	// Probe first so we can tell a fresh registration apart from a returning
	// wallet. The provider's get-or-create stays the authority either way.
	_, probeErr := e.identities.GetByWallet(ctx, walletAddress)
	user, err := e.identities.GetOrCreateByWallet(ctx, walletAddress)
	if err != nil {
		return Identity{}, false, err
	}
	return user, probeErr != nil, nil
}

func (e *Engine) emitLoginFailure(ctx context.Context, walletAddress string, err error, reason string) {
	e.emitAudit(ctx, auditEventLoginFailure, false, "", walletAddress, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}

func mapChallengeErr(err error) error {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return ErrChallengeNotFound
	case errors.Is(err, challenge.ErrExpired):
		return ErrExpiredChallenge
	case errors.Is(err, challenge.ErrAlreadyUsed):
		return ErrChallengeAlreadyUsed
	case errors.Is(err, challenge.ErrRedisUnavailable):
		return ErrStoreUnavailable
	default:
		return err
	}
}
