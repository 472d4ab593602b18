package sessionstore

import (
	"strings"
	"time"
)

// NewStore creates a redis-backed store when configured, otherwise
// in-memory.
func NewStore(redisURL string, ttl time.Duration) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewInMemoryStore(ttl), nil
	}
	return NewRedisStore(redisURL, ttl)
}
