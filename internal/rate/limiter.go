package rate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Class is the operation class a request falls into. Windows are tracked
// independently per (identifier, class) pair.
type Class string

const (
	// ClassFunding covers deposit, funding, and verification endpoints.
	ClassFunding Class = "funding"
	// ClassWrite covers all other mutating requests.
	ClassWrite Class = "write"
	// ClassRead covers everything else.
	ClassRead Class = "read"
)

// Policy is the per-class quota: at most Limit requests per sliding Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Config holds the per-class policies. A class whose Limit is 0 is unbounded:
// checks always pass and nothing is recorded for it.
type Config struct {
	// Prefix namespaces all window keys. Empty falls back to "rl".
	Prefix  string
	Funding Policy
	Write   Policy
	Read    Policy
}

// Result is the outcome of a window check.
type Result struct {
	Allowed    bool
	Class      Class
	Limit      int
	Remaining  int
	Current    int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter enforces per-identifier sliding-window quotas using Redis sorted
// sets. All mutation happens inside a Lua script, so concurrent checks on the
// same key cannot jointly exceed the limit.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// checkWindowScript prunes timestamps outside the trailing window, then either
// appends the current request (under limit) or reports the earliest retained
// timestamp so the caller can derive the reset time. Prune, count, and append
// run as one atomic unit.
const checkWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  local reset = now + window
  if oldest[2] then
    reset = tonumber(oldest[2]) + window
  end
  return {0, count, reset}
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window)
return {1, count + 1, now + window}
`

var checkWindowLua = redis.NewScript(checkWindowScript)

// statusWindowScript is the read-only variant: prune and count, never append.
const statusWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local reset = now + window
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {count, reset}
`

var statusWindowLua = redis.NewScript(statusWindowScript)

func (l *Limiter) windowKey(identifier string, class Class) string {
	return l.config.Prefix + ":" + string(class) + ":" + identifier
}

func (l *Limiter) policy(class Class) Policy {
	switch class {
	case ClassFunding:
		return l.config.Funding
	case ClassWrite:
		return l.config.Write
	default:
		return l.config.Read
	}
}

// Check records the current request against the identifier's window for the
// class and reports whether it is allowed. The timestamp is appended only when
// the request is admitted; rejected requests do not shrink the window further.
func (l *Limiter) Check(ctx context.Context, identifier string, class Class) (Result, error) {
	pol := l.policy(class)
	now := time.Now()

	if pol.Limit <= 0 {
		return unboundedResult(class, now, pol.Window), nil
	}

	raw, err := checkWindowLua.Run(
		ctx,
		l.redis,
		[]string{l.windowKey(identifier, class)},
		now.UnixMilli(),
		pol.Window.Milliseconds(),
		pol.Limit,
		fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, err := int64Reply(raw, 3)
	if err != nil {
		return Result{}, err
	}

	allowed := parts[0] == 1
	current := int(parts[1])
	reset := time.UnixMilli(parts[2])

	res := Result{
		Allowed:   allowed,
		Class:     class,
		Limit:     pol.Limit,
		Current:   current,
		ResetTime: reset,
	}
	if allowed {
		res.Remaining = pol.Limit - current
		if res.Remaining < 0 {
			res.Remaining = 0
		}
		return res, nil
	}

	res.Remaining = 0
	res.RetryAfter = time.Until(reset)
	if res.RetryAfter < time.Second {
		res.RetryAfter = time.Second
	}
	return res, nil
}

// Status reports current window usage for the identifier and class without
// counting a request.
func (l *Limiter) Status(ctx context.Context, identifier string, class Class) (Result, error) {
	pol := l.policy(class)
	now := time.Now()

	if pol.Limit <= 0 {
		return unboundedResult(class, now, pol.Window), nil
	}

	raw, err := statusWindowLua.Run(
		ctx,
		l.redis,
		[]string{l.windowKey(identifier, class)},
		now.UnixMilli(),
		pol.Window.Milliseconds(),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, err := int64Reply(raw, 2)
	if err != nil {
		return Result{}, err
	}

	current := int(parts[0])
	remaining := pol.Limit - current
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   current < pol.Limit,
		Class:     class,
		Limit:     pol.Limit,
		Current:   current,
		Remaining: remaining,
		ResetTime: time.UnixMilli(parts[1]),
	}, nil
}

// int64Reply validates the shape of a Lua script reply: exactly want
// elements, all integers. Anything else is treated as a transport fault.
func int64Reply(raw interface{}, want int) ([]int64, error) {
	parts, ok := raw.([]interface{})
	if !ok || len(parts) != want {
		return nil, fmt.Errorf("%w: invalid window script response", ErrRedisUnavailable)
	}
	out := make([]int64, want)
	for i, p := range parts {
		n, ok := p.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: invalid window script response", ErrRedisUnavailable)
		}
		out[i] = n
	}
	return out, nil
}

func unboundedResult(class Class, now time.Time, window time.Duration) Result {
	return Result{
		Allowed:   true,
		Class:     class,
		Limit:     0,
		Remaining: -1,
		ResetTime: now.Add(window),
	}
}

// fundingPaths marks endpoint substrings that move or verify funds. Kept
// deliberately broad: misclassifying a funding route as write would multiply
// its quota by five.
var fundingPaths = []string{"deposit", "funding", "fund", "verify", "release"}

// Classify buckets a request by method and path. Funding endpoints are
// matched first, then any mutating method maps to write, everything else to
// read.
func Classify(method, path string) Class {
	lower := strings.ToLower(path)
	for _, fragment := range fundingPaths {
		if strings.Contains(lower, fragment) {
			return ClassFunding
		}
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return ClassWrite
	default:
		return ClassRead
	}
}
