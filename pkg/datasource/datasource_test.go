package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autonet/pkg/errdefs"
	"autonet/pkg/retry"
)

type nopClock struct{ now time.Time }

func (c nopClock) Now() time.Time                                 { return c.now }
func (c nopClock) Sleep(_ context.Context, _ time.Duration) error { return nil }

func newTestClient(mirrors []string, cache *Cache) *Client {
	c := New(mirrors, cache, zap.NewNop())
	c.Policy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Factor: 1}
	c.Clock = nopClock{}
	return c
}

func pageHandler(t *testing.T, records []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		skip := 0
		fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit)
		fmt.Sscanf(r.URL.Query().Get("skip"), "%d", &skip)
		require.Greater(t, limit, 0)
		end := skip + limit
		if end > len(records) {
			end = len(records)
		}
		page := []string{}
		if skip < len(records) {
			page = records[skip:end]
		}
		items := make([]json.RawMessage, len(page))
		for i, rec := range page {
			items[i] = json.RawMessage(rec)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": items})
	}
}

func TestFetchPaginates(t *testing.T) {
	records := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		records = append(records, fmt.Sprintf(`{"asn":%d}`, i+1))
	}
	srv := httptest.NewServer(pageHandler(t, records))
	defer srv.Close()

	c := newTestClient([]string{srv.URL}, nil)
	got, err := c.Fetch(context.Background(), "netixlan", 2)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestFetchFailsOverToNextMirror(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(pageHandler(t, []string{`{"asn":64512}`}))
	defer good.Close()

	c := newTestClient([]string{bad.URL, good.URL}, nil)
	got, err := c.Fetch(context.Background(), "net", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFetchFallsBackToFreshCache(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	cache := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, cache.Write("net", []json.RawMessage{json.RawMessage(`{"asn":64512}`)}))

	c := newTestClient([]string{bad.URL}, cache)
	got, err := c.Fetch(context.Background(), "net", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFetchStaleCacheIsIngestionError(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	dir := t.TempDir()
	cache := NewCache(dir, time.Minute)
	require.NoError(t, cache.Write("net", []json.RawMessage{json.RawMessage(`{"asn":1}`)}))
	// Age the entry past MaxAge.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(cache.path("net"), old, old))

	c := newTestClient([]string{bad.URL}, cache)
	_, err := c.Fetch(context.Background(), "net", 10)
	assert.ErrorIs(t, err, errdefs.ErrIngestion)
}

func TestFetchSuccessPersistsCache(t *testing.T) {
	srv := httptest.NewServer(pageHandler(t, []string{`{"asn":1}`, `{"asn":2}`}))
	defer srv.Close()

	cache := NewCache(t.TempDir(), time.Hour)
	c := newTestClient([]string{srv.URL}, cache)
	_, err := c.Fetch(context.Background(), "netixlan", 10)
	require.NoError(t, err)

	got, _, err := cache.Read("netixlan")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSessionsGroupsByASN(t *testing.T) {
	srv := httptest.NewServer(pageHandler(t, []string{
		`{"asn":64512,"ipaddr4":"203.0.113.10","ipaddr6":"2001:db8::10"}`,
		`{"asn":64512,"ipaddr4":"203.0.113.11"}`,
		`{"asn":64513,"ipaddr6":"2001:db8::13"}`,
	}))
	defer srv.Close()

	c := newTestClient([]string{srv.URL}, nil)
	sessions, err := c.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.10", "2001:db8::10", "203.0.113.11"}, sessions[64512])
	assert.Equal(t, []string{"2001:db8::13"}, sessions[64513])
}

func TestMaxPrefixesHeadroomAndFloor(t *testing.T) {
	srv := httptest.NewServer(pageHandler(t, []string{
		`{"asn":64512,"info_prefixes4":1000,"info_prefixes6":50}`,
	}))
	defer srv.Close()

	c := newTestClient([]string{srv.URL}, nil)
	limits, err := c.MaxPrefixes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1100, limits["AS64512"][4], "published limit gets 10%% headroom")
	assert.Equal(t, 100, limits["AS64512"][6], "low published limit is floored")
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, cache.Write("net", []json.RawMessage{json.RawMessage(`{}`)}))
	require.NoError(t, cache.Invalidate("net"))
	_, _, err := cache.Read("net")
	assert.Error(t, err)
	assert.NoError(t, cache.Invalidate("net"), "double invalidation is fine")
}
