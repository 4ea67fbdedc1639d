package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/fingerprint"
	"github.com/FranksOps/pairscan/internal/metrics"
	"github.com/FranksOps/pairscan/pkg/proxy"
	"github.com/FranksOps/pairscan/pkg/useragent"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, m *metrics.Metrics, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     baseURL,
		Timeout:     timeout,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"TestBrowser/1.0"}, useragent.ModeFixed),
		Metrics:     m,
	})
	require.NoError(t, err)
	return c
}

func TestSearch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "DOGE CAT", r.URL.Query().Get("q"))
		assert.Equal(t, "TestBrowser/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json, text/plain, */*", r.Header.Get("Accept"))
		assert.Equal(t, DefaultReferer, r.Header.Get("Referer"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"solana","pairAddress":"A","liquidity":{"usd":1200}},
			{"chainId":"bsc","pairAddress":"B"}
		]}`))
	}))
	defer ts.Close()

	m := metrics.New()
	c := newTestClient(t, ts.URL, m, 5*time.Second)

	pairs, err := c.Search(context.Background(), "DOGE CAT")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "A", pairs[0].PairAddress.Or(""))
	assert.Equal(t, "DOGE CAT", pairs[1].Term)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("DOGE CAT", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PairsFetched.WithLabelValues("DOGE CAT")))
}

func TestSearch_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}` + strings.Repeat(" pad", 400)))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil, 5*time.Second)
	_, err := c.Search(context.Background(), "PEPE")

	var te *dex.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "PEPE", te.Term)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.True(t, strings.HasPrefix(te.Body, `{"error":"rate limited"}`))
	assert.LessOrEqual(t, len(te.Body), maxErrorBody+3)
	assert.Empty(t, te.Challenge)
}

func TestSearch_Challenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<title>Just a moment...</title>"))
	}))
	defer ts.Close()

	m := metrics.New()
	c := newTestClient(t, ts.URL, m, 5*time.Second)
	_, err := c.Search(context.Background(), "SOL")

	var te *dex.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Cloudflare", te.Challenge)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Challenges.WithLabelValues("Cloudflare")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("SOL", "http_403")))
}

func TestSearch_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0"}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil, 5*time.Second)
	_, err := c.Search(context.Background(), "AI")

	var me *dex.MalformedResponseError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, "AI", me.Term)
}

func TestSearch_TimeoutMidBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"pairs":[`))
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil, 50*time.Millisecond)
	_, err := c.Search(context.Background(), "SOL")

	var te *dex.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Zero(t, te.StatusCode, "a failed body read is not an http failure")

	var timeout interface{ Timeout() bool }
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.True(t, timeout.Timeout())
}

func TestSearch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"pairs":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, nil, 10*time.Millisecond)
	_, err := c.Search(context.Background(), "TRUMP")

	var te *dex.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Fingerprint: "netscape"})
	assert.Error(t, err)

	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, "https://api.dexscreener.com/latest/dex/search", c.target.String())
}

// forwardProxy answers proxied requests itself instead of forwarding them.
func forwardProxy(t *testing.T, status int, body string, hosts *[]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hosts = append(*hosts, r.URL.Host)
		if status == http.StatusForbidden {
			w.Header().Set("Server", "cloudflare")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func proxiedClient(t *testing.T, pool *proxy.Pool) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     "http://api.dexscreener.test",
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Proxies:     pool,
	})
	require.NoError(t, err)
	return c
}

func TestSearch_ThroughProxy(t *testing.T) {
	var hosts []string
	px := forwardProxy(t, http.StatusOK, `{"pairs":[{"chainId":"solana","pairAddress":"P1"}]}`, &hosts)

	pool := proxy.NewPool(proxy.Config{})
	require.NoError(t, pool.Add(px.URL))

	pairs, err := proxiedClient(t, pool).Search(context.Background(), "SOL")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, []string{"api.dexscreener.test"}, hosts)
	assert.Equal(t, 1, pool.Snapshot()[0].Successes)
}

func TestSearch_ChallengedProxyIsBenched(t *testing.T) {
	var hosts []string
	px := forwardProxy(t, http.StatusForbidden, "<title>Just a moment...</title>", &hosts)

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Hour})
	require.NoError(t, pool.Add(px.URL))
	c := proxiedClient(t, pool)

	_, err := c.Search(context.Background(), "SOL")
	var te *dex.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "Cloudflare", te.Challenge)
	assert.Equal(t, 1, pool.Snapshot()[0].Failures)

	_, err = c.Search(context.Background(), "SOL")
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.ErrorIs(t, te.Err, proxy.ErrExhausted)
	assert.Len(t, hosts, 1, "benched proxy must not be used")
}
