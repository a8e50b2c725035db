package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter exceeds its limit for the
	// current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport errors.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
