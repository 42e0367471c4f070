// Package datasource fetches paginated peering records from a ranked list of
// API mirrors, with retry, failover, and a compressed local cache fallback.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autonet/pkg/errdefs"
	"autonet/pkg/retry"
)

const userAgent = "autonet"

// DefaultPageSize bounds one page request against the upstream API.
const DefaultPageSize = 1000

// Client iterates mirrors in rank order. Side effects are limited to network
// calls and cache writes; a Client holds no mutable shared state.
type Client struct {
	Mirrors []string
	HTTP    *http.Client
	Policy  retry.Policy
	Clock   retry.Clock
	Cache   *Cache
	APIKey  string

	log *zap.Logger
}

// New builds a client over the ranked mirror list. cache may be nil to
// disable the fallback.
func New(mirrors []string, cache *Cache, log *zap.Logger) *Client {
	return &Client{
		Mirrors: mirrors,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Policy:  retry.DefaultPolicy(),
		Clock:   retry.RealClock{},
		Cache:   cache,
		log:     log,
	}
}

// Fetch returns all records of a resource, paginating with pageSize. Each
// page request runs under the retry policy; exhausting retries advances to
// the next mirror. When every mirror fails the freshest cache entry within
// its maximum age is returned instead; otherwise the fetch fails with an
// ingestion error. A fully successful fetch is persisted to cache.
func (c *Client) Fetch(ctx context.Context, resource string, pageSize int) ([]json.RawMessage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var lastErr error
	for _, mirror := range c.Mirrors {
		records, err := c.fetchFromMirror(ctx, mirror, resource, pageSize)
		if err != nil {
			c.log.Warn("mirror failed",
				zap.String("mirror", mirror),
				zap.String("resource", resource),
				zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if c.Cache != nil {
			if cerr := c.Cache.Write(resource, records); cerr != nil {
				c.log.Warn("cache write failed", zap.String("resource", resource), zap.Error(cerr))
			}
		}
		return records, nil
	}

	if c.Cache != nil {
		records, age, cerr := c.Cache.Read(resource)
		if cerr == nil {
			c.log.Warn("all mirrors failed, using cached data",
				zap.String("resource", resource),
				zap.Duration("age", age))
			return records, nil
		}
		c.log.Warn("cache fallback unavailable", zap.String("resource", resource), zap.Error(cerr))
	}
	return nil, fmt.Errorf("resource %s: all mirrors failed and no valid cache: %w: %v", resource, errdefs.ErrIngestion, lastErr)
}

func (c *Client) fetchFromMirror(ctx context.Context, mirror, resource string, pageSize int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for page := 0; ; page++ {
		url := fmt.Sprintf("%s/%s?limit=%d&skip=%d", mirror, resource, pageSize, page*pageSize)
		var items []json.RawMessage
		err := c.Policy.Do(ctx, c.Clock, func() error {
			var err error
			items, err = c.fetchPage(ctx, url)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < pageSize {
			return out, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Api-Key "+c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %s", url, resp.Status)
	}
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return body.Data, nil
}

// Document downloads a single non-paginated document, such as the peering
// manifest, under the same retry policy.
func (c *Client) Document(ctx context.Context, url string) (string, error) {
	var text string
	err := c.Policy.Do(ctx, c.Clock, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("get %s: status %s", url, resp.Status)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		text = string(raw)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("document %s: %w: %v", url, errdefs.ErrIngestion, err)
	}
	return text, nil
}
