package gridauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func validTestConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	return cfg
}

func TestDefaultConfigIsValidWithKeys(t *testing.T) {
	cfg := validTestConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with keys must validate: %v", err)
	}

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL %s", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL %s", cfg.JWT.RefreshTTL)
	}
	if cfg.JWT.RefreshThreshold != 0.2 {
		t.Fatalf("unexpected refresh threshold %v", cfg.JWT.RefreshThreshold)
	}
	if cfg.Challenge.TTL != 5*time.Minute {
		t.Fatalf("unexpected challenge TTL %s", cfg.Challenge.TTL)
	}
	if cfg.RateLimit.FundingLimit != 20 || cfg.RateLimit.WriteLimit != 100 || cfg.RateLimit.ReadLimit != 0 {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Window != time.Hour {
		t.Fatalf("unexpected window %s", cfg.RateLimit.Window)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero challenge ttl", func(c *Config) { c.Challenge.TTL = 0 }},
		{"empty challenge prefix", func(c *Config) { c.Challenge.Prefix = "" }},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"access ttl >= refresh ttl", func(c *Config) { c.JWT.AccessTTL = c.JWT.RefreshTTL }},
		{"threshold zero", func(c *Config) { c.JWT.RefreshThreshold = 0 }},
		{"threshold one", func(c *Config) { c.JWT.RefreshThreshold = 1 }},
		{"unknown signing method", func(c *Config) { c.JWT.SigningMethod = "rs256" }},
		{"ed25519 without private key", func(c *Config) { c.JWT.PrivateKey = nil }},
		{"ed25519 without public key", func(c *Config) { c.JWT.PublicKey = nil }},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.JWT.Leeway = 5 * time.Minute }},
		{"empty session prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"session lifetime below refresh ttl", func(c *Config) { c.Session.AbsoluteSessionLifetime = time.Hour }},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimit.WriteLimit = -1 }},
		{"empty rate prefix", func(c *Config) { c.RateLimit.Prefix = "" }},
		{"auto register without role", func(c *Config) { c.Identity.DefaultRole = "" }},
		{"audit enabled without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": append([]byte(nil), cfg.JWT.PublicKey...)}

	clone := cloneConfig(cfg)

	cfg.JWT.PrivateKey[0] ^= 0xFF
	cfg.JWT.VerifyKeys["k1"][0] ^= 0xFF

	if clone.JWT.PrivateKey[0] == cfg.JWT.PrivateKey[0] {
		t.Fatal("private key was shared, not cloned")
	}
	if clone.JWT.VerifyKeys["k1"][0] == cfg.JWT.VerifyKeys["k1"][0] {
		t.Fatal("verify key map was shared, not cloned")
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("build without redis and identities must fail")
	}
	if _, err := New().WithIdentityProvider(newMapIdentityProvider()).Build(); err == nil {
		t.Fatal("build without redis must fail")
	}
}
