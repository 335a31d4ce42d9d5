package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/empower-grid/gridauth"
	"github.com/empower-grid/gridauth/adapters/events"
	"github.com/empower-grid/gridauth/identity"
	transport "github.com/empower-grid/gridauth/transport/http"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	redisURL := envOr("REDIS_URL", "redis://localhost:6379/0")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Fatal("parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)

	cfg := buildConfig(logger)

	builder := gridauth.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithIdentityProvider(identity.NewMemoryProvider())

	if envOr("AUDIT_ENABLED", "true") == "true" {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("create audit publisher", zap.Error(err))
		}
		builder = builder.WithAuditSink(events.NewWatermillSinkWithTopic(
			publisher,
			envOr("AUDIT_TOPIC", events.DefaultTopic),
		))
	}

	engine, err := builder.Build()
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	defer engine.Close()

	router := transport.SetupRouter(engine, logger)

	addr := envOr("LISTEN_ADDR", ":9000")
	logger.Info("starting gridauth", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildConfig(logger *zap.Logger) gridauth.Config {
	cfg := gridauth.Config{
		Challenge: gridauth.ChallengeConfig{
			TTL:    envDuration("CHALLENGE_TTL", 5*time.Minute),
			Prefix: "ch",
		},
		JWT: gridauth.JWTConfig{
			AccessTTL:        envDuration("ACCESS_TTL", 15*time.Minute),
			RefreshTTL:       envDuration("REFRESH_TTL", 7*24*time.Hour),
			RefreshThreshold: 0.2,
			SigningMethod:    "ed25519",
			Issuer:           envOr("JWT_ISSUER", "gridauth"),
			Leeway:           30 * time.Second,
		},
		Session: gridauth.SessionConfig{
			RedisPrefix:             "sg",
			AbsoluteSessionLifetime: envDuration("REFRESH_TTL", 7*24*time.Hour),
		},
		RateLimit: gridauth.RateLimitConfig{
			Enabled:      envOr("RATE_LIMIT_ENABLED", "true") == "true",
			Prefix:       "rl",
			FundingLimit: 20,
			WriteLimit:   100,
			ReadLimit:    0,
			Window:       time.Hour,
		},
		Identity: gridauth.IdentityConfig{
			AutoRegister: true,
			DefaultRole:  "participant",
		},
		Audit: gridauth.AuditConfig{
			Enabled:    envOr("AUDIT_ENABLED", "true") == "true",
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: gridauth.MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}

	priv := os.Getenv("JWT_PRIVATE_KEY")
	pub := os.Getenv("JWT_PUBLIC_KEY")
	if priv != "" && pub != "" {
		privRaw, err := base64.StdEncoding.DecodeString(priv)
		if err != nil {
			logger.Fatal("decode JWT_PRIVATE_KEY", zap.Error(err))
		}
		pubRaw, err := base64.StdEncoding.DecodeString(pub)
		if err != nil {
			logger.Fatal("decode JWT_PUBLIC_KEY", zap.Error(err))
		}
		cfg.JWT.PrivateKey = privRaw
		cfg.JWT.PublicKey = pubRaw
		return cfg
	}

	// No keys configured: generate an ephemeral pair. Tokens will not survive
	// a restart, which is fine for development and fatal for production, so
	// be loud about it.
	logger.Warn("JWT_PRIVATE_KEY not set, generating ephemeral signing keys")
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		logger.Fatal("generate signing keys", zap.Error(err))
	}
	cfg.JWT.PrivateKey = privKey
	cfg.JWT.PublicKey = pubKey
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
