package catalog

import (
	"errors"
	"fmt"
)

// ErrNoProducer is returned when a resource is fetched without a producer.
var ErrNoProducer = errors.New("catalog: resource has no producer")

// NetworkError reports a failed request to a remote source. StatusCode is
// zero when the request never produced a response.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog: GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("catalog: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a payload that failed validation. Source names where
// the payload came from: a URL for network bodies or a storage key for
// snapshots.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("catalog: decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StorageReadError reports a snapshot that could not be read or decoded.
// It is logged and treated as a miss; it never reaches State.Err.
type StorageReadError struct {
	Key string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("catalog: read snapshot %q: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError reports a snapshot that could not be persisted.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("catalog: write snapshot %q: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
