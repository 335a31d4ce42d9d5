package session

import "time"

// Session is the stored record backing an authenticated wallet. It is mutated
// only by rotation (token pair swap) and destroyed on logout or expiry.
type Session struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet"`
	Role          string `json:"role,omitempty"`

	// AccessHash and RefreshHash are sha256 hex digests of the current token
	// pair. Raw tokens are never stored.
	AccessHash  string `json:"access_hash"`
	RefreshHash string `json:"refresh_hash"`

	IPAddress string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	CreatedAt       int64 `json:"created_at"`
	ExpiresAt       int64 `json:"expires_at"`        // session + refresh token expiry, unix ms
	AccessExpiresAt int64 `json:"access_expires_at"` // current access token expiry, unix ms
}

// Expired reports whether the session has passed its natural expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAt
}
