package journal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proxy "github.com/codegene/devproxy/pkg/proxy/core"
	"github.com/codegene/devproxy/pkg/shared/kvs"
	"github.com/codegene/devproxy/pkg/shared/logging"
)

func newMemoryJournal(t *testing.T, opts Options) *Journal {
	t.Helper()
	j := New(kvs.NewMemoryStore("journal", kvs.MemoryConfig{}), opts, logging.NewTestLogger())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := newMemoryJournal(t, Options{})

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(ctx, Entry{
			Time:   base.Add(time.Duration(i) * time.Second),
			Method: http.MethodGet,
			Path:   fmt.Sprintf("/api/%d", i),
			Rule:   "/api",
			Target: "http://sso-api.codegene.xyz",
			Status: http.StatusOK,
		}))
	}

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/api/2", got[0].Path)
	assert.Equal(t, "/api/1", got[1].Path)
	assert.Equal(t, "/api/0", got[2].Path)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
	}

	got, err = j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/api/2", got[0].Path)
}

func TestJournal_Limit(t *testing.T) {
	ctx := context.Background()
	j := newMemoryJournal(t, Options{Limit: 3})

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Entry{Time: base.Add(time.Duration(i) * time.Millisecond), Path: fmt.Sprintf("/files/%d", i)}))
	}

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/files/4", got[0].Path)
	assert.Equal(t, "/files/2", got[2].Path)
}

func TestJournal_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := kvs.NewRedisStore("journal", kvs.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)

	j := New(store, Options{TTL: time.Minute}, logging.NewTestLogger())
	t.Cleanup(func() { _ = j.Close() })

	require.NoError(t, j.Record(ctx, Entry{Path: "/swagger/index.html"}))

	got, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	mr.FastForward(2 * time.Minute)

	got, err = j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournal_LevelDB(t *testing.T) {
	ctx := context.Background()
	store, err := kvs.NewLevelDBStore("journal", kvs.LevelDBConfig{Path: t.TempDir()})
	require.NoError(t, err)

	j := New(store, Options{Limit: 10}, logging.NewTestLogger())
	t.Cleanup(func() { _ = j.Close() })

	require.NoError(t, j.Record(ctx, Entry{Path: "/cas/validate", Status: http.StatusBadGateway, Error: "connection refused"}))

	got, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/cas/validate", got[0].Path)
	assert.Equal(t, "connection refused", got[0].Error)
}

func TestJournal_Observe(t *testing.T) {
	ctx := context.Background()
	j := newMemoryJournal(t, Options{})

	j.Observe(ctx, proxy.Exchange{Method: http.MethodGet, Path: "/static/app.js", Status: http.StatusNotFound})
	j.Observe(ctx, proxy.Exchange{
		Method:   http.MethodPost,
		Path:     "/api/login",
		Rule:     "/api",
		Target:   "http://sso-api.codegene.xyz",
		Status:   http.StatusBadGateway,
		Duration: 1500 * time.Microsecond,
		Err:      errors.New("dial tcp: connection refused"),
		Matched:  true,
	})

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[0]
	assert.Equal(t, http.MethodPost, e.Method)
	assert.Equal(t, "/api/login", e.Path)
	assert.Equal(t, "/api", e.Rule)
	assert.Equal(t, "http://sso-api.codegene.xyz", e.Target)
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.InDelta(t, 1.5, e.DurationMS, 0.001)
	assert.Equal(t, "dial tcp: connection refused", e.Error)
}

func TestJournal_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	j := newMemoryJournal(t, Options{Limit: 50})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				assert.NoError(t, j.Record(ctx, Entry{Path: fmt.Sprintf("/api/%d/%d", i, k)}))
			}
		}(i)
	}
	wg.Wait()

	got, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 50)
}

func TestJournal_ClosedStore(t *testing.T) {
	j := New(kvs.NewMemoryStore("journal", kvs.MemoryConfig{}), Options{}, logging.NewTestLogger())
	require.NoError(t, j.Close())

	err := j.Record(context.Background(), Entry{Path: "/api"})
	assert.ErrorIs(t, err, kvs.ErrClosed)

	_, err = j.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, kvs.ErrClosed)
}
