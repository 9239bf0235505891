package explorer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncvisor/syncvisor/pkg/logger"
)

// countingSource tracks how many times the remote authority is queried.
type countingSource struct {
	height int64
	err    error
	calls  int
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Query(ctx context.Context, currency Currency) (int64, error) {
	s.calls++
	return s.height, s.err
}

func newTestCache(t *testing.T, source *countingSource) *FileCache {
	t.Helper()
	return NewFileCache(source, t.TempDir(), 300*time.Second, logger.NewTestLogger())
}

func TestFileCache_FirstGetRefreshes(t *testing.T) {
	source := &countingSource{height: 900000}
	cache := newTestCache(t, source)
	currency := Currency{Handle: "btc"}

	height, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)
	assert.Equal(t, int64(900000), height)
	assert.Equal(t, 1, source.calls)

	// The decimal value is persisted.
	data, err := os.ReadFile(cache.path(currency))
	require.NoError(t, err)
	assert.Equal(t, "900000", string(data))
}

func TestFileCache_WithinTTLDoesNotRequery(t *testing.T) {
	source := &countingSource{height: 900000}
	cache := newTestCache(t, source)
	currency := Currency{Handle: "btc"}

	first, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)

	// The source now reports a different height, but within the TTL the
	// cached value is returned unchanged without a second query.
	source.height = 900050
	second, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestFileCache_ExpiredTTLRequeriesOnce(t *testing.T) {
	source := &countingSource{height: 900000}
	cache := newTestCache(t, source)
	currency := Currency{Handle: "btc"}

	_, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)

	// Age the backing file past the TTL.
	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(cache.path(currency), stale, stale))

	source.height = 900100
	height, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)
	assert.Equal(t, int64(900100), height)
	assert.Equal(t, 2, source.calls)
}

func TestFileCache_ZeroTTLRefreshesEveryCall(t *testing.T) {
	// ttl zero is a valid always-refresh setting, not a request for a
	// default lifetime.
	source := &countingSource{height: 900000}
	cache := NewFileCache(source, t.TempDir(), 0, logger.NewTestLogger())
	currency := Currency{Handle: "btc"}

	_, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)

	source.height = 900001
	height, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)
	assert.Equal(t, int64(900001), height)
	assert.Equal(t, 2, source.calls)
}

func TestFileCache_EmptyFileTreatedAsStale(t *testing.T) {
	source := &countingSource{height: 12345}
	cache := newTestCache(t, source)
	currency := Currency{Handle: "btc"}

	require.NoError(t, os.WriteFile(cache.path(currency), nil, 0o644))

	height, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), height)
	assert.Equal(t, 1, source.calls)
}

func TestFileCache_CorruptFileTreatedAsStale(t *testing.T) {
	source := &countingSource{height: 12345}
	cache := newTestCache(t, source)
	currency := Currency{Handle: "btc"}

	require.NoError(t, os.WriteFile(cache.path(currency), []byte("garbage"), 0o644))

	height, err := cache.Get(context.Background(), currency)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), height)
	assert.Equal(t, 1, source.calls)
}

func TestFileCache_SourceErrorPropagates(t *testing.T) {
	source := &countingSource{err: errors.New("explorer down")}
	cache := newTestCache(t, source)

	_, err := cache.Get(context.Background(), Currency{Handle: "btc"})
	assert.Error(t, err)
}

func TestFileCache_KeyedByExplorerAndHandle(t *testing.T) {
	source := &countingSource{height: 1}
	cache := newTestCache(t, source)

	btc := cache.path(Currency{Handle: "btc"})
	ltc := cache.path(Currency{Handle: "ltc"})
	assert.NotEqual(t, btc, ltc)
	assert.Contains(t, btc, "counting")
	assert.Contains(t, btc, "btc")
}
