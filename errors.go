package gridauth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no valid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidSignature is returned when signature verification fails for a
	// login attempt.
	ErrInvalidSignature = errors.New("invalid wallet signature")
	// ErrMalformedAddress is returned when a wallet address does not decode to
	// an ed25519 public key.
	ErrMalformedAddress = errors.New("malformed wallet address")
	// ErrExpiredChallenge is returned when a challenge nonce exists but its TTL
	// has elapsed.
	ErrExpiredChallenge = errors.New("challenge expired")
	// ErrChallengeNotFound is returned when a challenge nonce is unknown.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeAlreadyUsed is returned when a challenge nonce was already
	// consumed by an earlier login.
	ErrChallengeAlreadyUsed = errors.New("challenge already used")
	// ErrMessageNonceMismatch is returned when the signed message does not
	// contain the challenge nonce.
	ErrMessageNonceMismatch = errors.New("message does not contain challenge nonce")
	// ErrRegistrationFailed is returned when the identity provider cannot
	// resolve or create an identity for a verified wallet.
	ErrRegistrationFailed = errors.New("identity registration failed")
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned when a token is malformed or its signature
	// does not verify.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when a token has been blacklisted before its
	// natural expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionNotFound is returned when no session backs the presented token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRateLimited is returned when the sliding-window quota for the
	// operation class is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrStoreUnavailable is returned when Redis cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Builder.Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Code maps an engine error to its machine-readable wire code. Unknown errors
// map to UNKNOWN_ERROR so internal detail never reaches the caller.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrMalformedAddress):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrExpiredChallenge):
		return "EXPIRED_CHALLENGE"
	case errors.Is(err, ErrChallengeNotFound):
		return "CHALLENGE_NOT_FOUND"
	case errors.Is(err, ErrChallengeAlreadyUsed):
		return "CHALLENGE_ALREADY_USED"
	case errors.Is(err, ErrMessageNonceMismatch):
		return "MESSAGE_NONCE_MISMATCH"
	case errors.Is(err, ErrRegistrationFailed):
		return "REGISTRATION_FAILED"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenRevoked), errors.Is(err, ErrSessionNotFound):
		return "TOKEN_REVOKED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenInvalid):
		return "UNAUTHORIZED"
	default:
		return "UNKNOWN_ERROR"
	}
}
