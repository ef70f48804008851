package repository

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get and TTL for missing keys.
var ErrKeyNotFound = errors.New("key not found")

var errNonPositiveTTL = errors.New("kv: ttl must be positive")

// NoExpiry is the TTL reported for keys stored without an expiry.
const NoExpiry time.Duration = -1

// KV is the key/value protocol behind the revocation store.
type KV interface {
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent stores the key only when it does not exist yet and reports
	// whether this call wrote it.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	Ping(ctx context.Context) error
}
