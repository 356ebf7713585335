package cache

import (
	"time"
)

// CacheService is the key/value store backing the crawlers' rate-limit block
type CacheService interface {
	// Get retrieves a value, returning an error on a miss
	Get(key string) ([]byte, error)

	// Set stores a value with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value
	Delete(key string) error
}
