package gridauth

import (
	"errors"

	"github.com/empower-grid/gridauth/challenge"
	"github.com/empower-grid/gridauth/internal/rate"
	"github.com/empower-grid/gridauth/jwt"
	"github.com/empower-grid/gridauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from a Config, a Redis client and the
// caller-supplied identity provider. A Builder is single-use.
type Builder struct {
	config Config
	redis  *redis.Client

	identities IdentityProvider
	auditSink  AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is cloned, so
// later mutation of cfg by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing challenges, sessions and rate
// windows.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider sets the identity lookup used during login.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identities = p
	return b
}

// WithAuditSink sets the destination for audit events. Events are delivered
// asynchronously by the engine's dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics recorder.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles validate-latency histogram recording.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component into a ready
// Engine. It returns an error rather than a partially wired engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity provider required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		RefreshThreshold: cfg.JWT.RefreshThreshold,
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:       cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:        cloneBytes(cfg.JWT.PublicKey),
		Issuer:           cfg.JWT.Issuer,
		Audience:         cfg.JWT.Audience,
		Leeway:           cfg.JWT.Leeway,
		KeyID:            cfg.JWT.KeyID,
		VerifyKeys:       cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		jwtManager: jm,
		challenges: challenge.NewStore(b.redis, cfg.Challenge.Prefix, cfg.Challenge.TTL),
		sessions:   session.NewStore(b.redis, cfg.Session.RedisPrefix),
		identities: b.identities,
	}

	if cfg.RateLimit.Enabled {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix: cfg.RateLimit.Prefix,
			Funding: rate.Policy{
				Limit:  cfg.RateLimit.FundingLimit,
				Window: cfg.RateLimit.Window,
			},
			Write: rate.Policy{
				Limit:  cfg.RateLimit.WriteLimit,
				Window: cfg.RateLimit.Window,
			},
			Read: rate.Policy{
				Limit:  cfg.RateLimit.ReadLimit,
				Window: cfg.RateLimit.Window,
			},
		})
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
