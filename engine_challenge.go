package gridauth

import (
	"context"
	"errors"

	"github.com/empower-grid/gridauth/challenge"
	"github.com/empower-grid/gridauth/internal"
	"github.com/empower-grid/gridauth/wallet"
)

// Challenge is an issued login challenge. The client signs Message with the
// wallet's private key and submits it back within the challenge TTL.
type Challenge = challenge.Challenge

// IssueChallenge creates a single-use nonce challenge. A non-empty wallet
// address binds the challenge to that wallet and must be well-formed; an empty
// address issues an unbound challenge any wallet may answer. The wallet does
// not have to be registered yet.
func (e *Engine) IssueChallenge(ctx context.Context, walletAddress string) (*Challenge, error) {
	if e == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}

	if walletAddress != "" {
		if _, err := wallet.ParseAddress(walletAddress); err != nil {
			return nil, ErrMalformedAddress
		}
	}

	ch, err := e.challenges.Issue(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, challenge.ErrRedisUnavailable) {
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeIssued, true, "", walletAddress, "", nil, func() map[string]string {
		return map[string]string{
			"nonce": internal.TruncateSecret(ch.Nonce),
		}
	})

	return ch, nil
}
