package gridauth

import (
	"errors"
	"time"
)

// Config defines the tunable behavior of an [Engine].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	Challenge ChallengeConfig
	JWT       JWTConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Identity  IdentityConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls nonce challenge issuance and replay retention.
type ChallengeConfig struct {
	// TTL is how long an issued nonce stays consumable.
	TTL time.Duration
	// Prefix is the Redis key namespace for challenge records.
	Prefix string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing, verification and rotation thresholds.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RefreshThreshold is the fraction of AccessTTL remaining below which
	// clients are told to rotate. Must be in (0, 1).
	RefreshThreshold float64
	SigningMethod    string // "ed25519" (default), "hs256" optional
	PrivateKey       []byte
	PublicKey        []byte
	Issuer           string
	Audience         string
	Leeway           time.Duration
	KeyID            string
	// VerifyKeys holds additional public keys by kid, for key rotation.
	VerifyKeys map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session persistence and token blacklisting.
type SessionConfig struct {
	// RedisPrefix namespaces every session, index and blacklist key.
	RedisPrefix string
	// AbsoluteSessionLifetime caps a session's life regardless of refreshes.
	AbsoluteSessionLifetime time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sets the sliding-window quota per operation class.
// A zero Limit means the class is unbounded.
type RateLimitConfig struct {
	Enabled bool
	// Prefix is the Redis key namespace for rate windows.
	Prefix string
	// FundingLimit is the hourly quota for funding operations.
	FundingLimit int
	// WriteLimit is the hourly quota for general state-changing operations.
	WriteLimit int
	// ReadLimit is the hourly quota for read operations. Zero means none.
	ReadLimit int
	// Window is the sliding window length shared by all classes.
	Window time.Duration
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig controls first-login identity provisioning.
type IdentityConfig struct {
	// AutoRegister creates an identity on first successful login instead of
	// rejecting unknown wallets.
	AutoRegister bool
	// DefaultRole is assigned when the identity provider returns an
	// identity without a role.
	DefaultRole string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking login paths when the
	// buffer is saturated.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics recorder.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			TTL:    5 * time.Minute,
			Prefix: "ch",
		},
		JWT: JWTConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			RefreshThreshold: 0.2,
			SigningMethod:    "ed25519",
			Leeway:           30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:             "sg",
			AbsoluteSessionLifetime: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			Prefix:       "rl",
			FundingLimit: 20,
			WriteLimit:   100,
			ReadLimit:    0,
			Window:       time.Hour,
		},
		Identity: IdentityConfig{
			AutoRegister: true,
			DefaultRole:  "participant",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if len(cfg.JWT.VerifyKeys) > 0 {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot safely run
// with. It is called by the builder before any component is wired.
func (c *Config) Validate() error {
	// Challenge
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.Prefix == "" {
		return errors.New("Challenge Prefix must not be empty")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be < RefreshTTL")
	}
	if c.JWT.RefreshThreshold <= 0 || c.JWT.RefreshThreshold >= 1 {
		return errors.New("JWT RefreshThreshold must be in (0, 1)")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	if c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be <= 2m")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.AbsoluteSessionLifetime < c.JWT.RefreshTTL {
		return errors.New("Session AbsoluteSessionLifetime must be >= JWT RefreshTTL")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.Prefix == "" {
			return errors.New("RateLimit Prefix must not be empty")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.FundingLimit < 0 || c.RateLimit.WriteLimit < 0 || c.RateLimit.ReadLimit < 0 {
			return errors.New("RateLimit limits must be >= 0")
		}
	}

	// Identity
	if c.Identity.AutoRegister && c.Identity.DefaultRole == "" {
		return errors.New("Identity DefaultRole must not be empty when AutoRegister is true")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
