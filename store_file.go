package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

var fileRecordMagic = []byte("CFR1")

const (
	fileLockName    = ".lock"
	fileLockTimeout = 100 * time.Millisecond
	fileLockRetry   = 10 * time.Millisecond
)

// fileStore keeps one file per key. Writes go through a temp file and a
// rename under a directory-wide flock so concurrent processes never observe
// a partially written snapshot.
type fileStore struct {
	dir        string
	defaultTTL time.Duration
}

func newFileStore(dir string, defaultTTL time.Duration) Store {
	if dir == "" {
		dir = defaultFileDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	return &fileStore{
		dir:        dir,
		defaultTTL: defaultTTL,
	}
}

func (s *fileStore) Driver() Driver {
	return DriverFile
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	expires, value, err := decodeFileRecord(data)
	if err != nil {
		return nil, false, err
	}
	if expires > 0 && time.Now().UnixNano() > expires {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *fileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if deadline := expiresAt(ttl, s.defaultTTL); !deadline.IsZero() {
		expires = deadline.UnixNano()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := createTempFile(s.dir, "snapshot-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	var header [12]byte
	copy(header[:4], fileRecordMagic)
	binary.BigEndian.PutUint64(header[4:], uint64(expires))

	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// lock takes the directory lock. It fails open when another process holds
// the lock past fileLockTimeout; rename keeps each write atomic regardless.
func (s *fileStore) lock(ctx context.Context) (func(), error) {
	fl := flock.New(filepath.Join(s.dir, fileLockName))
	lockCtx, cancel := context.WithTimeout(ctx, fileLockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, fileLockRetry)
	if err != nil {
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return func() {}, nil
		}
		return nil, fmt.Errorf("lock snapshot dir: %w", err)
	}
	if !locked {
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name+".snapshot")
}

func decodeFileRecord(data []byte) (int64, []byte, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], fileRecordMagic) {
		return 0, nil, errors.New("catalog: unrecognized snapshot file record")
	}
	expires := int64(binary.BigEndian.Uint64(data[4:12]))
	return expires, data[12:], nil
}
