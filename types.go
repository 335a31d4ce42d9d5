package gridauth

import (
	"context"
	"time"

	"github.com/empower-grid/gridauth/internal/rate"
	"github.com/empower-grid/gridauth/jwt"
)

// Identity is the minimal projection of a user needed for authorization
// decisions. It is created lazily on first successful login.
type Identity struct {
	ID            string
	WalletAddress string
	Username      string
	Role          string
	Reputation    int64
	Verified      bool
	CreatedAt     time.Time
}

// IdentityProvider is the interface callers implement to integrate gridauth
// with their user database. GetOrCreateByWallet must be get-or-create: first
// login for an unknown wallet registers a minimal identity with the default
// role and zero reputation.
type IdentityProvider interface {
	GetOrCreateByWallet(ctx context.Context, walletAddress string) (Identity, error)
	GetByWallet(ctx context.Context, walletAddress string) (Identity, error)
}

// TokenPair is the access/refresh pair returned by login and refresh.
type TokenPair = jwt.TokenPair

// RefreshStatus reports whether a token should be silently refreshed.
type RefreshStatus = jwt.RefreshStatus

// LoginResult is returned by [Engine.Login]: the fresh token pair plus the
// resolved identity and backing session ID.
type LoginResult struct {
	Tokens    TokenPair
	User      Identity
	SessionID string
}

// LoginRequest carries one signed-challenge submission.
type LoginRequest struct {
	WalletAddress string
	Signature     string
	Message       string
	Nonce         string
	// Encoding declares how the wallet provider presented the signed payload.
	// Empty means raw UTF-8 bytes.
	Encoding string
}

// RefreshResult is returned by [Engine.Refresh]. Every refresh rotates the
// whole pair, so RefreshToken always carries the new refresh token.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ExpiresIn    time.Duration
}

// OperationClass is the rate-limit bucket a request falls into.
type OperationClass = rate.Class

// Operation classes, tracked independently per identifier.
const (
	OperationFunding = rate.ClassFunding
	OperationWrite   = rate.ClassWrite
	OperationRead    = rate.ClassRead
)

// RateLimitResult is the outcome of a quota check for one operation class.
type RateLimitResult = rate.Result

// ClassifyOperation buckets a request by HTTP method and path. Business
// handlers may classify their own endpoints instead and call
// [Engine.CheckOperation] directly.
func ClassifyOperation(method, path string) OperationClass {
	return rate.Classify(method, path)
}
