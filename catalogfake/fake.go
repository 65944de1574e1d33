// Package catalogfake provides an in-memory Store that counts calls and can
// be told to fail, for testing code built on catalog.
package catalogfake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goforj/catalog"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// ErrInjected is returned by operations failed through FailGet or FailSet
// when no explicit error is given.
var ErrInjected = errors.New("catalogfake: injected failure")

// Fake is a deterministic in-memory store plus assertion helpers.
type Fake struct {
	store  *countingStore
	counts map[Op]map[string]int
	mu     sync.Mutex
}

// New creates a Fake backed by the memory driver.
func New() *Fake {
	f := &Fake{counts: make(map[Op]map[string]int)}
	f.store = &countingStore{inner: catalog.NewMemoryStore(context.Background()), fake: f}
	return f
}

// Store returns the store to inject into code under test.
func (f *Fake) Store() catalog.Store { return f.store }

// Seed writes value under key without recording the call.
func (f *Fake) Seed(t *testing.T, key string, value []byte) {
	t.Helper()
	if err := f.store.inner.Set(context.Background(), key, value, 0); err != nil {
		t.Fatalf("seed %q: %v", key, err)
	}
}

// Peek reads key without recording the call.
func (f *Fake) Peek(key string) ([]byte, bool) {
	body, ok, err := f.store.inner.Get(context.Background(), key)
	if err != nil {
		return nil, false
	}
	return body, ok
}

// FailGet makes every Get return err (ErrInjected when nil). Pass the
// returned func to restore normal behavior.
func (f *Fake) FailGet(err error) (restore func()) {
	return f.fail(OpGet, err)
}

// FailSet makes every Set return err (ErrInjected when nil).
func (f *Fake) FailSet(err error) (restore func()) {
	return f.fail(OpSet, err)
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
	f.store.failures = nil
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

func (f *Fake) record(op Op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
	return f.store.failures[op]
}

func (f *Fake) fail(op Op, err error) func() {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	if f.store.failures == nil {
		f.store.failures = make(map[Op]error)
	}
	f.store.failures[op] = err
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.store.failures, op)
		f.mu.Unlock()
	}
}

// countingStore wraps a Store to record calls. failures is guarded by fake.mu.
type countingStore struct {
	inner    catalog.Store
	fake     *Fake
	failures map[Op]error
}

func (s *countingStore) Driver() catalog.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.fake.record(OpGet, key); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.fake.record(OpSet, key); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	if err := s.fake.record(OpDelete, key); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}
