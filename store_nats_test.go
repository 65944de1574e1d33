package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goforj/catalog/catalogtest"
	"github.com/nats-io/nats.go"
)

type stubNATSKeyValue struct {
	mu      sync.Mutex
	rev     uint64
	entries map[string]*stubNATSKeyValueEntry

	getErr error
	putErr error
}

func newStubNATSKeyValue() *stubNATSKeyValue {
	return &stubNATSKeyValue{entries: make(map[string]*stubNATSKeyValueEntry)}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op == nats.KeyValueDelete || entry.op == nats.KeyValuePurge {
		return nil, nats.ErrKeyDeleted
	}
	return entry.clone(), nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{key: key, value: cloneBytes(value), revision: s.rev, op: nats.KeyValuePut, created: time.Now()}
	return s.rev, nil
}

func (s *stubNATSKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nats.ErrKeyNotFound
	}
	entry.op = nats.KeyValueDelete
	return nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return cloneBytes(e.value)
	}
	return nil
}

type stubNATSKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
	op       nats.KeyValueOp
	created  time.Time
}

func (e *stubNATSKeyValueEntry) clone() *stubNATSKeyValueEntry {
	cp := *e
	cp.value = cloneBytes(e.value)
	return &cp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return "catalog" }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return cloneBytes(e.value) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return 0 }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

func TestNATSStoreContract(t *testing.T) {
	catalogtest.RunStoreContract(t, newNATSStore(newStubNATSKeyValue(), 0, "", false), catalogtest.Options{})
}

func TestNATSStoreBucketTTLContract(t *testing.T) {
	catalogtest.RunStoreContract(t, newNATSStore(newStubNATSKeyValue(), 0, "", true), catalogtest.Options{SkipTTL: true})
}

func TestNATSStoreNilKeyValue(t *testing.T) {
	store := newNATSStore(nil, 0, "", false)
	if _, _, err := store.Get(context.Background(), "k"); !errors.Is(err, errNATSUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if err := store.Set(context.Background(), "k", nil, 0); !errors.Is(err, errNATSUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestNATSStoreKeyEncodingAndWrapping(t *testing.T) {
	kv := newStubNATSKeyValue()
	store := newNATSStore(kv, 0, "mobile app", false).(*natsStore)
	if err := store.Set(context.Background(), "trending movies", []byte("[]"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	key := store.subject("trending movies")
	if strings.ContainsAny(key, " :/") {
		t.Fatalf("expected nats-safe key, got %q", key)
	}
	snap, wrapped, err := decodeNATSSnapshot(kv.raw(key))
	if err != nil || !wrapped {
		t.Fatalf("expected wrapped snapshot, wrapped=%v err=%v", wrapped, err)
	}
	if snap.ExpiresAt != 0 || snap.WrittenAt == 0 || string(snap.Body) != "[]" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestNATSStoreReadsRawValues(t *testing.T) {
	kv := newStubNATSKeyValue()
	store := newNATSStore(kv, 0, "", false).(*natsStore)
	if _, err := kv.Put(store.subject("k"), []byte(`[{"title":"A"}]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, ok, err := store.Get(context.Background(), "k")
	if err != nil || !ok || string(body) != `[{"title":"A"}]` {
		t.Fatalf("expected raw passthrough, ok=%v err=%v body=%s", ok, err, body)
	}
}

func TestNATSStoreDeleteMissingIsNoop(t *testing.T) {
	store := newNATSStore(newStubNATSKeyValue(), 0, "", false)
	if err := store.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNATSStoreStampedRead(t *testing.T) {
	before := time.Now().Add(-time.Second)
	for _, bucketTTL := range []bool{false, true} {
		store := newNATSStore(newStubNATSKeyValue(), 0, "", bucketTTL)
		if err := store.Set(context.Background(), "k", []byte("v"), 0); err != nil {
			t.Fatalf("set: %v", err)
		}
		st, ok, err := store.(StampedReader).GetStamped(context.Background(), "k")
		if err != nil || !ok {
			t.Fatalf("bucketTTL=%v: expected hit, ok=%v err=%v", bucketTTL, ok, err)
		}
		if string(st.Value) != "v" || st.WrittenAt.Before(before) || !st.ExpiresAt.IsZero() {
			t.Fatalf("bucketTTL=%v: unexpected stamp %+v", bucketTTL, st)
		}
	}
}

func TestNATSStorePurgesExpiredSnapshot(t *testing.T) {
	kv := newStubNATSKeyValue()
	store := newNATSStore(kv, 0, "", false).(*natsStore)
	body, _ := json.Marshal(natsSnapshot{
		Marker:    natsSnapshotMarker,
		Body:      []byte("old"),
		WrittenAt: time.Now().Add(-time.Hour).UnixMilli(),
		ExpiresAt: time.Now().Add(-time.Minute).UnixMilli(),
	})
	if _, err := kv.Put(store.subject("k"), body); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := store.Get(context.Background(), "k"); err != nil || ok {
		t.Fatalf("expected expired miss, ok=%v err=%v", ok, err)
	}
	if kv.raw(store.subject("k")) != nil {
		t.Fatalf("expected expired snapshot purged")
	}
}
