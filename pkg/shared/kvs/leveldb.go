package kvs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lverrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore persists values on disk. Each value is stored as
// [8 bytes big-endian expiry unix nanos, 0 = never][value].
type LevelDBStore struct {
	prefix string
	db     *leveldb.DB
	wo     *opt.WriteOptions

	mu     sync.RWMutex
	closed bool

	stop chan struct{}
	done chan struct{}
}

// NewLevelDBStore opens (or creates) a LevelDB store.
func NewLevelDBStore(prefix string, cfg LevelDBConfig) (*LevelDBStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		dbPath = filepath.Join(cacheDir, "devproxy", sanitizeDirName(prefix))
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: failed to create directory: %w", err)
	}

	db, err := leveldb.OpenFile(dbPath, &opt.Options{Compression: opt.SnappyCompression})
	if err != nil {
		var corrupted *lverrors.ErrCorrupted
		if errors.As(err, &corrupted) {
			db, err = leveldb.RecoverFile(dbPath, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("kvs/leveldb: failed to open database at %s: %w", dbPath, err)
		}
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	l := &LevelDBStore{
		prefix: prefix,
		db:     db,
		wo:     &opt.WriteOptions{Sync: cfg.SyncWrites},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.sweepLoop(interval)
	return l, nil
}

func sanitizeDirName(name string) string {
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func encodeValue(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	encoded := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(encoded[:8], uint64(expiresAt))
	copy(encoded[8:], value)
	return encoded
}

// decodeValue returns the payload and whether it has expired.
func decodeValue(encoded []byte, now time.Time) ([]byte, bool, error) {
	if len(encoded) < 8 {
		return nil, false, errors.New("kvs/leveldb: invalid encoded value (too short)")
	}
	expiresAt := int64(binary.BigEndian.Uint64(encoded[:8]))
	if expiresAt > 0 && now.UnixNano() > expiresAt {
		return nil, true, nil
	}
	return encoded[8:], false, nil
}

func (l *LevelDBStore) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Get retrieves a value by key.
func (l *LevelDBStore) Get(_ context.Context, key string) ([]byte, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}

	encoded, err := l.db.Get([]byte(l.prefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvs/leveldb: get failed: %w", err)
	}

	value, expired, err := decodeValue(encoded, time.Now())
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrNotFound
	}
	return value, nil
}

// Set stores a value with optional TTL.
func (l *LevelDBStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if l.isClosed() {
		return ErrClosed
	}
	if err := l.db.Put([]byte(l.prefix+key), encodeValue(value, ttl), l.wo); err != nil {
		return fmt.Errorf("kvs/leveldb: set failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (l *LevelDBStore) Delete(_ context.Context, key string) error {
	if l.isClosed() {
		return ErrClosed
	}
	if err := l.db.Delete([]byte(l.prefix+key), l.wo); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("kvs/leveldb: delete failed: %w", err)
	}
	return nil
}

// List returns live keys with the given prefix. LevelDB iterates in key order.
func (l *LevelDBStore) List(_ context.Context, keyPrefix string) ([]string, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}

	iter := l.db.NewIterator(util.BytesPrefix([]byte(l.prefix+keyPrefix)), nil)
	defer iter.Release()

	now := time.Now()
	keys := make([]string, 0)
	for iter.Next() {
		if _, expired, err := decodeValue(iter.Value(), now); err != nil || expired {
			continue
		}
		keys = append(keys, strings.TrimPrefix(string(iter.Key()), l.prefix))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: iteration failed: %w", err)
	}
	return keys, nil
}

// Close stops the sweeper and closes the database.
func (l *LevelDBStore) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stop)
	<-l.done

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("kvs/leveldb: close failed: %w", err)
	}
	return nil
}

func (l *LevelDBStore) sweepLoop(interval time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep deletes expired keys under the store prefix in one batch.
func (l *LevelDBStore) sweep() {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(l.prefix)), nil)
	defer iter.Release()

	now := time.Now()
	batch := new(leveldb.Batch)
	for iter.Next() {
		if _, expired, err := decodeValue(iter.Value(), now); err == nil && expired {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	if batch.Len() > 0 {
		_ = l.db.Write(batch, l.wo)
	}
}
