package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented expiring key/value backend. A zero ttl means the
// entry never expires.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}
