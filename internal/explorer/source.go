package explorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/syncvisor/syncvisor/pkg/logger"
)

// Currency is the immutable identity used to namespace remote lookups.
type Currency struct {
	Handle string
}

// HeightSource is the capability "fetch the current chain height for a
// currency from a remote authority". Implementations do no caching of
// their own; FileCache layers that on top.
type HeightSource interface {
	// Name identifies the backing explorer, used to key cache files.
	Name() string

	// Query performs the possibly slow remote lookup.
	Query(ctx context.Context, currency Currency) (int64, error)
}

// handlePlaceholder is substituted with the currency handle in URL templates.
const handlePlaceholder = "{handle}"

// Built-in explorer URL templates. Each endpoint answers with the chain tip
// height as a plain decimal body.
var builtinTemplates = map[string]string{
	"chainz":      "https://chainz.cryptoid.info/" + handlePlaceholder + "/api.dws?q=getblockcount",
	"blockstream": "https://blockstream.info/api/blocks/tip/height",
}

const defaultQueryTimeout = 30 * time.Second

// HTTPSource queries an explorer's plain-text height endpoint over HTTP,
// with transparent retries on transient failures.
type HTTPSource struct {
	name        string
	urlTemplate string
	client      *retryablehttp.Client
	logger      *logger.Logger
}

// NewHTTPSource creates a source named name that substitutes the currency
// handle into urlTemplate for each query.
func NewHTTPSource(name, urlTemplate string, log *logger.Logger) *HTTPSource {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = defaultQueryTimeout
	client.Logger = nil

	return &HTTPSource{
		name:        name,
		urlTemplate: urlTemplate,
		client:      client,
		logger:      log,
	}
}

// ForName returns a source for a built-in explorer name, or a custom source
// when urlTemplate is non-empty.
func ForName(name, urlTemplate string, log *logger.Logger) (*HTTPSource, error) {
	if urlTemplate != "" {
		return NewHTTPSource(name, urlTemplate, log), nil
	}
	template, ok := builtinTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown explorer %q and no explorer URL given", name)
	}
	return NewHTTPSource(name, template, log), nil
}

// Name implements HeightSource.
func (s *HTTPSource) Name() string {
	return s.name
}

// Query implements HeightSource.
func (s *HTTPSource) Query(ctx context.Context, currency Currency) (int64, error) {
	url := strings.ReplaceAll(s.urlTemplate, handlePlaceholder, currency.Handle)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build explorer request: %w", err)
	}

	s.logger.Debug("querying explorer height",
		zap.String("explorer", s.name),
		zap.String("currency", currency.Handle))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("explorer %s request failed: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("explorer %s returned status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, fmt.Errorf("failed to read explorer response: %w", err)
	}

	raw := strings.TrimSpace(string(body))
	height, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("explorer %s returned non-decimal height %q", s.name, raw)
	}
	return height, nil
}
