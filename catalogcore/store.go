package catalogcore

import (
	"context"
	"time"
)

// Store is the persisted key-value contract the trending snapshot lives in.
//
// A ttl <= 0 passed to Set means the store's configured default; a store whose
// default is also <= 0 keeps the value until it is overwritten or deleted.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Stamped is a stored value with the times it was written and expires.
// A zero ExpiresAt never expires.
type Stamped struct {
	Value     []byte
	WrittenAt time.Time
	ExpiresAt time.Time
}

// StampedReader is implemented by stores that record when each value was
// written. Expired values miss like they do for Get.
type StampedReader interface {
	GetStamped(ctx context.Context, key string) (Stamped, bool, error)
}
