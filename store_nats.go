package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
}

var errNATSUnavailable = errors.New("nats snapshot key-value unavailable")

const natsSnapshotMarker = "snapshot/v1"

// natsSnapshot wraps a value with its write time and expiry, since KV
// buckets only expire whole buckets. Times are unix milliseconds.
type natsSnapshot struct {
	Marker    string `json:"catalog"`
	Body      []byte `json:"body"`
	WrittenAt int64  `json:"written_at"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// natsStore keeps snapshots in a JetStream key-value bucket. With
// bucketTTL set values are stored raw and expiry is left to the bucket;
// write times then come from the entry itself.
type natsStore struct {
	kv         NATSKeyValue
	defaultTTL time.Duration
	prefix     string
	bucketTTL  bool
}

func newNATSStore(kv NATSKeyValue, defaultTTL time.Duration, prefix string, bucketTTL bool) Store {
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &natsStore{
		kv:         kv,
		defaultTTL: defaultTTL,
		prefix:     prefix,
		bucketTTL:  bucketTTL,
	}
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	st, ok, err := s.GetStamped(ctx, key)
	return st.Value, ok, err
}

// GetStamped implements StampedReader. Values written by other tools
// without an envelope are returned as they are.
func (s *natsStore) GetStamped(_ context.Context, key string) (Stamped, bool, error) {
	if s.kv == nil {
		return Stamped{}, false, errNATSUnavailable
	}
	subject := s.subject(key)
	entry, err := s.kv.Get(subject)
	if isNATSMiss(err) {
		return Stamped{}, false, nil
	}
	if err != nil {
		return Stamped{}, false, err
	}
	if op := entry.Operation(); op == nats.KeyValueDelete || op == nats.KeyValuePurge {
		return Stamped{}, false, nil
	}

	raw := Stamped{Value: cloneBytes(entry.Value()), WrittenAt: entry.Created()}
	if s.bucketTTL {
		return raw, true, nil
	}
	snap, wrapped, err := decodeNATSSnapshot(entry.Value())
	if err != nil {
		return Stamped{}, false, err
	}
	if !wrapped {
		return raw, true, nil
	}
	st := stampFromMillis(snap.Body, snap.WrittenAt, snap.ExpiresAt)
	if stampExpired(st, time.Now()) {
		_ = s.kv.Purge(subject)
		return Stamped{}, false, nil
	}
	return st, true, nil
}

func (s *natsStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	body := cloneBytes(value)
	if !s.bucketTTL {
		var err error
		body, err = json.Marshal(natsSnapshot{
			Marker:    natsSnapshotMarker,
			Body:      value,
			WrittenAt: time.Now().UnixMilli(),
			ExpiresAt: unixMilli(expiresAt(ttl, s.defaultTTL)),
		})
		if err != nil {
			return fmt.Errorf("encode nats snapshot: %w", err)
		}
	}
	_, err := s.kv.Put(s.subject(key), body)
	return err
}

func (s *natsStore) Delete(_ context.Context, key string) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	if err := s.kv.Delete(s.subject(key)); err != nil && !isNATSMiss(err) {
		return err
	}
	return nil
}

// subject builds a bucket key from prefix and key. KV keys allow a
// restricted charset, so both parts are base64url encoded.
func (s *natsStore) subject(key string) string {
	return "p." + natsKeyPart(s.prefix) + ".k." + natsKeyPart(key)
}

func decodeNATSSnapshot(body []byte) (natsSnapshot, bool, error) {
	var snap natsSnapshot
	if len(body) == 0 || body[0] != '{' {
		return snap, false, nil
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return natsSnapshot{}, false, fmt.Errorf("decode nats snapshot: %w", err)
	}
	if snap.Marker != natsSnapshotMarker {
		return natsSnapshot{}, false, nil
	}
	return snap, true, nil
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func natsKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
