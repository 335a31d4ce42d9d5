package session

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
	// ErrNotFound is returned when no session backs the given token or ID.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the rotation target session has expired.
	ErrExpired = errors.New("session expired")
	// ErrRefreshHashMismatch is returned when the provided refresh token is not
	// the session's current one. Callers treat this as token reuse.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// DefaultPrefix is the key namespace used when NewStore is given an empty
// prefix. A prefix "sg" yields keys sg:<sid>, sgt:<hash>, sgr:<sid>, sgb:<hash>.
const DefaultPrefix = "sg"

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateLua is the rotation commit point. It verifies the provided refresh
// hash against the CAS cell, then in the same atomic unit swaps the stored
// blob, reindexes the new token pair, and blacklists the old pair for the
// remainder of its natural lifetime.
var rotateLua = redis.NewScript(`
local rt_key = KEYS[1]
local sess_key = KEYS[2]
local old_access_idx = KEYS[3]
local old_refresh_idx = KEYS[4]
local new_access_idx = KEYS[5]
local new_refresh_idx = KEYS[6]
local old_access_bl = KEYS[7]
local old_refresh_bl = KEYS[8]

local provided = ARGV[1]
local next_hash = ARGV[2]
local blob = ARGV[3]
local sid = ARGV[4]
local access_bl_ttl = tonumber(ARGV[5])
local refresh_bl_ttl = tonumber(ARGV[6])

local current = redis.call("GET", rt_key)
if not current then
  return 0
end
if current ~= provided then
  return 2
end

local ttl = redis.call("PTTL", sess_key)
if ttl <= 0 then
  redis.call("DEL", rt_key, old_access_idx, old_refresh_idx)
  return 1
end

redis.call("SET", rt_key, next_hash, "PX", ttl)
redis.call("SET", sess_key, blob, "PX", ttl)
redis.call("DEL", old_access_idx, old_refresh_idx)
redis.call("SET", new_access_idx, sid, "PX", ttl)
redis.call("SET", new_refresh_idx, sid, "PX", ttl)
if access_bl_ttl > 0 then
  redis.call("SET", old_access_bl, "1", "PX", access_bl_ttl)
end
if refresh_bl_ttl > 0 then
  redis.call("SET", old_refresh_bl, "1", "PX", refresh_bl_ttl)
end
return 3
`)

// deleteLua tears down a session located by token index and blacklists both
// tokens of its current pair. Key composition from the sid follows the stored
// prefixes passed in ARGV.
var deleteLua = redis.NewScript(`
local sid = redis.call("GET", KEYS[1])
if not sid then
  return 0
end

local sess_prefix = ARGV[1]
local refresh_prefix = ARGV[2]
local token_prefix = ARGV[3]
local bl_prefix = ARGV[4]
local now = tonumber(ARGV[5])

local sess_key = sess_prefix .. sid
local raw = redis.call("GET", sess_key)
if raw then
  local sess = cjson.decode(raw)
  if sess.access_hash then
    if sess.access_expires_at and sess.access_expires_at > now then
      redis.call("SET", bl_prefix .. sess.access_hash, "1", "PX", sess.access_expires_at - now)
    end
    redis.call("DEL", token_prefix .. sess.access_hash)
  end
  if sess.refresh_hash then
    if sess.expires_at and sess.expires_at > now then
      redis.call("SET", bl_prefix .. sess.refresh_hash, "1", "PX", sess.expires_at - now)
    end
    redis.call("DEL", token_prefix .. sess.refresh_hash)
  end
end

redis.call("DEL", sess_key, refresh_prefix .. sid)
return 1
`)

// Store is a Redis-backed session store.
type Store struct {
	redis redis.UniversalClient

	sessionPrefix   string
	tokenPrefix     string
	refreshPrefix   string
	blacklistPrefix string
}

// NewStore creates a session [Store] backed by the given Redis client. prefix
// namespaces every key the store writes; empty falls back to [DefaultPrefix].
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:           redisClient,
		sessionPrefix:   prefix + ":",
		tokenPrefix:     prefix + "t:",
		refreshPrefix:   prefix + "r:",
		blacklistPrefix: prefix + "b:",
	}
}

func (s *Store) sessionKey(sid string) string    { return s.sessionPrefix + sid }
func (s *Store) tokenKey(hash string) string     { return s.tokenPrefix + hash }
func (s *Store) refreshKey(sid string) string    { return s.refreshPrefix + sid }
func (s *Store) blacklistKey(hash string) string { return s.blacklistPrefix + hash }

// Create persists a new session and indexes both tokens of its pair. The TTL
// is derived from the session's expiry.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	ttl := time.Until(time.UnixMilli(sess.ExpiresAt))
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		pipe.Set(ctx, s.refreshKey(sess.ID), sess.RefreshHash, ttl)
		pipe.Set(ctx, s.tokenKey(sess.AccessHash), sess.ID, ttl)
		pipe.Set(ctx, s.tokenKey(sess.RefreshHash), sess.ID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// GetByToken resolves a raw token (access or refresh) to its session.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	sid, err := s.redis.Get(ctx, s.tokenKey(internal.HashTokenHex(token))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.Get(ctx, sid)
}

// Get fetches a session by ID.
func (s *Store) Get(ctx context.Context, sid string) (*Session, error) {
	raw, err := s.redis.Get(ctx, s.sessionKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: corrupt session blob", ErrRedisUnavailable)
	}
	if sess.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return &sess, nil
}

// IsBlacklisted reports whether the token was revoked before natural expiry.
func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.blacklistKey(internal.HashTokenHex(token))).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// IsValid reports whether a token maps to a live session, is the session's
// current token, and is not blacklisted.
func (s *Store) IsValid(ctx context.Context, token string) (bool, error) {
	blacklisted, err := s.IsBlacklisted(ctx, token)
	if err != nil {
		return false, err
	}
	if blacklisted {
		return false, nil
	}

	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	hash := internal.HashTokenHex(token)
	return hash == sess.AccessHash || hash == sess.RefreshHash, nil
}

// Rotate atomically swaps the session's token pair. providedRefresh must be
// the raw refresh token currently stored; next is the updated session carrying
// the new pair's hashes. On success the old pair is blacklisted in the same
// atomic unit — no reader ever observes both refresh tokens valid.
func (s *Store) Rotate(ctx context.Context, current *Session, providedRefresh string, next *Session) error {
	blob, err := json.Marshal(next)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	accessBlTTL := current.AccessExpiresAt - now
	refreshBlTTL := current.ExpiresAt - now

	status, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{
			s.refreshKey(current.ID),
			s.sessionKey(current.ID),
			s.tokenKey(current.AccessHash),
			s.tokenKey(current.RefreshHash),
			s.tokenKey(next.AccessHash),
			s.tokenKey(next.RefreshHash),
			s.blacklistKey(current.AccessHash),
			s.blacklistKey(current.RefreshHash),
		},
		internal.HashTokenHex(providedRefresh),
		next.RefreshHash,
		blob,
		next.ID,
		accessBlTTL,
		refreshBlTTL,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusMismatch:
		return ErrRefreshHashMismatch
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, status)
	}
}

// DeleteByToken destroys the session the token belongs to and blacklists the
// session's current token pair. Returns false when the token maps to no
// session, which makes double logout a no-op rather than an error.
func (s *Store) DeleteByToken(ctx context.Context, token string) (bool, error) {
	existed, err := deleteLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(internal.HashTokenHex(token))},
		s.sessionPrefix,
		s.refreshPrefix,
		s.tokenPrefix,
		s.blacklistPrefix,
		time.Now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return existed == 1, nil
}

// Blacklist marks a single raw token revoked until its natural expiry. Used
// for logout of tokens whose session is already gone.
func (s *Store) Blacklist(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.blacklistKey(internal.HashTokenHex(token)), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
