package rate

import "errors"

var (
	// ErrRateLimited is returned when the sliding window for a key is full.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
