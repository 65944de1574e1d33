package catalog

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

// newMemoryStore keeps entries in process. A zero defaultTTL keeps entries
// until they are overwritten or deleted.
func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if defaultTTL < 0 {
		defaultTTL = 0
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanup
	}
	return &memoryStore{
		cache:      gocache.New(gocache.NoExpiration, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, cloneBytes(value), s.entryTTL(ttl))
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *memoryStore) entryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func cloneBytes(body []byte) []byte {
	if body == nil {
		return nil
	}
	clone := make([]byte, len(body))
	copy(clone, body)
	return clone
}

// expiresAt resolves an entry deadline. The zero time means the entry never
// expires.
func expiresAt(ttl, defaultTTL time.Duration) time.Time {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
