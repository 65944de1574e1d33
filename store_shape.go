package catalog

import (
	"context"
	"time"
)

// shapingStore enforces data shaping concerns (compression, size limits)
// transparently on top of any concrete Store implementation.
type shapingStore struct {
	inner Store
	codec CompressionCodec
	max   int
}

func newShapingStore(inner Store, codec CompressionCodec, max int) Store {
	if (codec == CompressionNone || codec == "") && max <= 0 {
		return inner
	}
	return &shapingStore{inner: inner, codec: codec, max: max}
}

func (s *shapingStore) Driver() Driver { return s.inner.Driver() }

func (s *shapingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	decoded, err := decodeValue(body)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func (s *shapingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeValue(s.codec, s.max, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, encoded, ttl)
}

func (s *shapingStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// GetStamped decodes the value read from the inner store. Write times are
// left zero when the inner store does not record them.
func (s *shapingStore) GetStamped(ctx context.Context, key string) (Stamped, bool, error) {
	sr, ok := s.inner.(StampedReader)
	if !ok {
		body, found, err := s.Get(ctx, key)
		return Stamped{Value: body}, found, err
	}
	st, found, err := sr.GetStamped(ctx, key)
	if err != nil || !found {
		return Stamped{}, found, err
	}
	if st.Value, err = decodeValue(st.Value); err != nil {
		return Stamped{}, false, err
	}
	return st, true, nil
}
