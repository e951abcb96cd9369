package kvs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore keeps values in a map and sweeps expired keys in the background.
// Data is lost when the process exits.
type MemoryStore struct {
	prefix string

	mu     sync.RWMutex
	items  map[string]*memoryItem
	closed bool

	stop chan struct{}
	done chan struct{}
}

// NewMemoryStore creates a memory store and starts its sweeper.
func NewMemoryStore(prefix string, cfg MemoryConfig) *MemoryStore {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	m := &MemoryStore{
		prefix: prefix,
		items:  make(map[string]*memoryItem),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.sweepLoop(interval)
	return m
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	item, ok := m.items[m.prefix+key]
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a value with optional TTL.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	item := &memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	m.items[m.prefix+key] = item
	return nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.items, m.prefix+key)
	return nil
}

// List returns live keys with the given prefix, sorted.
func (m *MemoryStore) List(_ context.Context, keyPrefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	full := m.prefix + keyPrefix
	now := time.Now()
	keys := make([]string, 0)
	for key, item := range m.items {
		if !strings.HasPrefix(key, full) || item.expired(now) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(key, m.prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close stops the sweeper and drops all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.items = nil
	m.mu.Unlock()

	close(m.stop)
	<-m.done
	return nil
}

func (m *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, item := range m.items {
		if item.expired(now) {
			delete(m.items, key)
		}
	}
}
