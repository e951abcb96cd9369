// Package kvs provides a small key-value store abstraction with TTL support,
// backed by memory, LevelDB or Redis.
package kvs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is a key-value store with per-key TTL.
// All implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A ttl <= 0 means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// List returns the live keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources. Later operations return ErrClosed.
	Close() error
}

var (
	// ErrNotFound is returned when a key is not found or has expired.
	ErrNotFound = errors.New("kvs: key not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("kvs: store is closed")
)

// Config selects and configures a store backend.
type Config struct {
	// Type is "memory" (default), "leveldb" or "redis".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Namespace isolates keys: a key prefix for memory and Redis,
	// a directory suffix for LevelDB.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	Memory  MemoryConfig  `yaml:"memory,omitempty" json:"memory,omitempty"`
	LevelDB LevelDBConfig `yaml:"leveldb,omitempty" json:"leveldb,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// CleanupInterval is how often expired keys are swept. Default: 1 minute.
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty" json:"cleanup_interval,omitempty"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the database directory. Empty means the user cache directory.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `yaml:"sync_writes,omitempty" json:"sync_writes,omitempty"`

	// CleanupInterval is how often expired keys are swept. Default: 5 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty" json:"cleanup_interval,omitempty"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize int    `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
}

// Validate checks the backend type and its required settings.
func (c Config) Validate() error {
	switch c.Type {
	case "", "memory", "leveldb":
		return nil
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("kvs: redis.addr is required for the redis store")
		}
		return nil
	default:
		return fmt.Errorf("kvs: unsupported store type: %s", c.Type)
	}
}

// New creates a store for cfg.
func New(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "leveldb":
		return NewLevelDBStore(cfg.Namespace, cfg.LevelDB)
	case "redis":
		return NewRedisStore(cfg.Namespace, cfg.Redis)
	default:
		return NewMemoryStore(cfg.Namespace, cfg.Memory), nil
	}
}
