package explorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncvisor/syncvisor/pkg/logger"
)

// FileCache is a TTL-bounded, file-persisted view of a remote height.
// Cache files are advisory: they only bound query frequency and can be
// regenerated at any time.
type FileCache struct {
	source HeightSource
	dir    string
	ttl    time.Duration
	logger *logger.Logger

	now func() time.Time
}

// NewFileCache creates a cache over source. dir defaults to the system
// temp directory when empty; the ttl is used as configured, so a zero
// ttl refreshes on every call.
func NewFileCache(source HeightSource, dir string, ttl time.Duration, log *logger.Logger) *FileCache {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileCache{
		source: source,
		dir:    dir,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// path returns the backing file for a currency, keyed by explorer name and
// currency handle.
func (fc *FileCache) path(currency Currency) string {
	return filepath.Join(fc.dir, fmt.Sprintf("syncvisor_%s_%s.height", fc.source.Name(), currency.Handle))
}

// Get returns the cached remote height, refreshing through the source when
// the backing file is absent, empty, unreadable, or older than the TTL.
// Exactly one staleness decision is made per call.
func (fc *FileCache) Get(ctx context.Context, currency Currency) (int64, error) {
	path := fc.path(currency)

	if height, ok := fc.readFresh(path); ok {
		fc.logger.Debug("remote height served from cache",
			zap.String("currency", currency.Handle),
			zap.Int64("height", height))
		return height, nil
	}

	return fc.refresh(ctx, currency, path)
}

// readFresh returns the cached value when the backing file is present,
// non-empty, parsable, and within the TTL.
func (fc *FileCache) readFresh(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return 0, false
	}
	if fc.ttl <= 0 || fc.now().Sub(info.ModTime()) > fc.ttl {
		return 0, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		// A corrupt cache file is treated as stale and rewritten.
		return 0, false
	}
	return height, true
}

// refresh queries the source once and persists the decimal result.
func (fc *FileCache) refresh(ctx context.Context, currency Currency, path string) (int64, error) {
	height, err := fc.source.Query(ctx, currency)
	if err != nil {
		return 0, fmt.Errorf("remote height query failed: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.FormatInt(height, 10)), 0o644); err != nil {
		return 0, fmt.Errorf("failed to persist height cache: %w", err)
	}

	fc.logger.Info("remote height refreshed",
		zap.String("explorer", fc.source.Name()),
		zap.String("currency", currency.Handle),
		zap.Int64("height", height))
	return height, nil
}
