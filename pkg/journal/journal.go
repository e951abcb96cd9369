// Package journal keeps a short history of forwarded requests in a kvs.Store.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	proxy "github.com/codegene/devproxy/pkg/proxy/core"
	"github.com/codegene/devproxy/pkg/shared/kvs"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

const keyPrefix = "req:"

// Entry is one forwarded request
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Rule       string    `json:"rule"`
	Target     string    `json:"target"`
	Status     int       `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// Options configures a Journal
type Options struct {
	// TTL is how long an entry is kept. Zero keeps entries until trimmed.
	TTL time.Duration

	// Limit caps the number of entries. Zero means unlimited.
	Limit int
}

// Journal records entries newest-last under time-ordered keys
type Journal struct {
	store  kvs.Store
	opts   Options
	logger logging.Logger

	// serializes trimming so concurrent writers do not delete twice
	mu sync.Mutex
}

// New creates a Journal writing to store. The Journal owns store.
func New(store kvs.Store, opts Options, logger logging.Logger) *Journal {
	if logger == nil {
		logger = logging.NewSimpleLogger("journal", logging.LevelInfo, true)
	}
	return &Journal{store: store, opts: opts, logger: logger}
}

// entryKey sorts lexically in time order; the id breaks ties
func entryKey(e Entry) string {
	return fmt.Sprintf("%s%020d:%s", keyPrefix, e.Time.UnixNano(), e.ID)
}

// Record stores e, filling ID and Time when empty
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Time = e.Time.UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	if err := j.store.Set(ctx, entryKey(e), data, j.opts.TTL); err != nil {
		return fmt.Errorf("failed to store journal entry: %w", err)
	}

	if j.opts.Limit > 0 {
		return j.trim(ctx)
	}
	return nil
}

func (j *Journal) trim(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	keys, err := j.store.List(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list journal entries: %w", err)
	}

	excess := len(keys) - j.opts.Limit
	for i := 0; i < excess; i++ {
		if err := j.store.Delete(ctx, keys[i]); err != nil {
			return fmt.Errorf("failed to trim journal: %w", err)
		}
	}
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	keys, err := j.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if n > 0 && len(entries) >= n {
			break
		}

		data, err := j.store.Get(ctx, keys[i])
		if errors.Is(err, kvs.ErrNotFound) {
			// expired or trimmed since List
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read journal entry: %w", err)
		}

		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			j.logger.Warn("Skipping corrupt journal entry", "key", keys[i], "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Observe records a forwarded exchange. Unmatched requests are not recorded.
func (j *Journal) Observe(ctx context.Context, ex proxy.Exchange) {
	if !ex.Matched {
		return
	}

	e := Entry{
		Time:       time.Now().Add(-ex.Duration),
		Method:     ex.Method,
		Path:       ex.Path,
		Rule:       ex.Rule,
		Target:     ex.Target,
		Status:     ex.Status,
		DurationMS: float64(ex.Duration) / float64(time.Millisecond),
	}
	if ex.Err != nil {
		e.Error = ex.Err.Error()
	}

	if err := j.Record(ctx, e); err != nil {
		j.logger.Warn("Failed to record request", "path", ex.Path, "error", err)
	}
}

// Close closes the underlying store
func (j *Journal) Close() error {
	return j.store.Close()
}
