package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/empower-grid/gridauth/internal"
)

var (
	// ErrNotFound is returned for nonces this store never issued or whose
	// tombstone has been swept.
	ErrNotFound = errors.New("challenge not found")
	// ErrExpired is returned when an unconsumed challenge's TTL has elapsed;
	// consumption takes precedence, so an expired consumed nonce reports
	// ErrAlreadyUsed.
	ErrExpired = errors.New("challenge expired")
	// ErrAlreadyUsed is returned when the nonce was consumed by an earlier login.
	ErrAlreadyUsed = errors.New("challenge already used")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// DefaultTTL bounds how long a challenge stays signable.
const DefaultTTL = 5 * time.Minute

const messageTemplate = "EmpowerGrid wants you to sign in.\n\nWallet: %s\nNonce: %s\nIssued At: %s"

// Challenge is an issued login challenge. Message embeds Nonce verbatim; the
// login flow rejects any signed payload that does not contain it.
type Challenge struct {
	Nonce     string
	Message   string
	Wallet    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type record struct {
	Wallet    string `json:"wallet,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Consumed  bool   `json:"consumed"`
}

const (
	consumeStatusNotFound    int64 = 0
	consumeStatusExpired     int64 = 1
	consumeStatusAlreadyUsed int64 = 2
	consumeStatusConsumed    int64 = 3
)

// consumeLua flips the consumed flag exactly once. Expiry is judged from the
// stored timestamp, not the Redis TTL, because records outlive their logical
// lifetime as tombstones.
var consumeLua = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end

local rec = cjson.decode(raw)
if rec.consumed then
  return 2
end

local now = tonumber(ARGV[1])
if rec.expires_at <= now then
  return 1
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return 1
end

rec.consumed = true
redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
return 3
`)

// DefaultPrefix is the key namespace used when NewStore is given an empty
// prefix.
const DefaultPrefix = "ch"

// Store is a Redis-backed challenge store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a challenge [Store]. An empty prefix falls back to
// [DefaultPrefix]; ttl <= 0 falls back to [DefaultTTL].
func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix + ":",
		ttl:    ttl,
	}
}

func (s *Store) key(nonce string) string {
	return s.prefix + nonce
}

// Issue creates a new challenge, optionally bound to a wallet address the
// client announced up front. The record is retained for twice the logical TTL
// so consumed and freshly expired nonces remain distinguishable from unknown
// ones.
func (s *Store) Issue(ctx context.Context, wallet string) (*Challenge, error) {
	nonce, err := internal.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	rec := record{
		Wallet:    wallet,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	if err := s.redis.Set(ctx, s.key(nonce), data, 2*s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return &Challenge{
		Nonce:     nonce,
		Message:   fmt.Sprintf(messageTemplate, wallet, nonce, now.UTC().Format(time.RFC3339)),
		Wallet:    wallet,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate is the read-only pre-check: it reports the nonce state without
// mutating it. A nil error means the nonce is currently consumable; the
// returned challenge carries the wallet the nonce was issued for.
func (s *Store) Validate(ctx context.Context, nonce string) (*Challenge, error) {
	if !internal.ValidNonce(nonce) {
		return nil, ErrNotFound
	}

	raw, err := s.redis.Get(ctx, s.key(nonce)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, ErrNotFound
	}

	ch := &Challenge{
		Nonce:     nonce,
		Wallet:    rec.Wallet,
		IssuedAt:  time.UnixMilli(rec.IssuedAt),
		ExpiresAt: time.UnixMilli(rec.ExpiresAt),
	}

	if rec.Consumed {
		return ch, ErrAlreadyUsed
	}
	if time.Now().UnixMilli() >= rec.ExpiresAt {
		return ch, ErrExpired
	}

	return ch, nil
}

// Consume atomically transitions the nonce from unconsumed to consumed.
// Exactly one of N concurrent callers succeeds; the rest get [ErrAlreadyUsed].
func (s *Store) Consume(ctx context.Context, nonce string) error {
	if !internal.ValidNonce(nonce) {
		return ErrNotFound
	}

	status, err := consumeLua.Run(ctx, s.redis, []string{s.key(nonce)}, time.Now().UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case consumeStatusConsumed:
		return nil
	case consumeStatusAlreadyUsed:
		return ErrAlreadyUsed
	case consumeStatusExpired:
		return ErrExpired
	case consumeStatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unknown consume script status %d", ErrRedisUnavailable, status)
	}
}
