// Package search queries the DexScreener pair-search endpoint.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/bypass"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/fingerprint"
	"github.com/FranksOps/pairscan/internal/metrics"
	"github.com/FranksOps/pairscan/pkg/httpclient"
	"github.com/FranksOps/pairscan/pkg/proxy"
	"github.com/FranksOps/pairscan/pkg/ratelimit"
	"github.com/FranksOps/pairscan/pkg/useragent"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultReferer = "https://dexscreener.com/"

	searchPath = "/latest/dex/search"

	// maxBody caps how much of a response is read; search pages are well below it.
	maxBody = 16 << 20
	// maxErrorBody caps how much of a non-2xx body is kept for reporting.
	maxErrorBody = 512
)

// Config configures a search Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Fingerprint fingerprint.Profile
	UAPool      *useragent.Pool
	Limiter     *ratelimit.Limiter
	// Proxies rotates requests across proxies when non-empty. A proxy is
	// charged a failure for transport errors and bot challenges.
	Proxies   *proxy.Pool
	Referer   string
	Detectors []bypass.Detector
	Metrics   *metrics.Metrics
	Logger    logrus.FieldLogger
}

// Client performs one search request per call with browser-like headers.
type Client struct {
	cfg    Config
	client *httpclient.Client
	target *url.URL
}

// NewClient validates cfg and builds the underlying HTTP client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.ModeFixed)
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	target, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + searchPath)
	if err != nil {
		return nil, fmt.Errorf("search: invalid base url %q: %w", cfg.BaseURL, err)
	}

	var proxyFunc fingerprint.ProxyFunc
	if cfg.Proxies.Len() > 0 {
		proxyFunc = fingerprint.ContextProxy
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("search: failed to setup transport: %w", err)
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json, text/plain, */*")
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("Referer", cfg.Referer)

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Headers:   headers,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("search: failed to create client: %w", err)
	}

	return &Client{cfg: cfg, client: client, target: target}, nil
}

// Search returns the pairs matching term. Failures are returned as
// *dex.TransportError or *dex.MalformedResponseError.
func (c *Client) Search(ctx context.Context, term string) ([]dex.Pair, error) {
	log := c.cfg.Logger.WithField("term", term)

	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return nil, &dex.TransportError{Term: term, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	via, err := c.acquireProxy()
	if err != nil {
		c.cfg.Metrics.RecordSearch(term, "transport", 0, 0)
		return nil, &dex.TransportError{Term: term, Err: err}
	}
	if via != nil {
		ctx = fingerprint.WithProxy(ctx, via)
		log = log.WithField("proxy", via.Host)
	}

	u := *c.target
	u.RawQuery = url.Values{"q": {term}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &dex.TransportError{Term: term, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UAPool.Pick())

	start := time.Now()
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		c.cfg.Metrics.RecordSearch(term, "transport", time.Since(start), 0)
		c.settleProxy(via, false, log)
		return nil, &dex.TransportError{Term: term, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		c.cfg.Metrics.RecordSearch(term, "transport", time.Since(start), 0)
		c.settleProxy(via, false, log)
		return nil, &dex.TransportError{Term: term, Err: fmt.Errorf("failed to read body after http %d: %w", resp.StatusCode, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		challenge, _ := bypass.Analyze(bypass.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
		}, c.cfg.Detectors)
		c.cfg.Metrics.RecordSearch(term, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start), 0)
		c.cfg.Metrics.RecordChallenge(challenge)
		c.settleProxy(via, challenge == "", log)

		return nil, &dex.TransportError{
			Term:       term,
			StatusCode: resp.StatusCode,
			Body:       truncate(body, maxErrorBody),
			Challenge:  challenge,
		}
	}

	c.settleProxy(via, true, log)

	pairs, err := dex.DecodeSearchResponse(term, body)
	if err != nil {
		c.cfg.Metrics.RecordSearch(term, "malformed", time.Since(start), 0)
		return nil, err
	}

	c.cfg.Metrics.RecordSearch(term, "ok", time.Since(start), len(pairs))
	log.WithFields(logrus.Fields{
		"pairs":    len(pairs),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("search completed")

	return pairs, nil
}

func (c *Client) acquireProxy() (*url.URL, error) {
	if c.cfg.Proxies.Len() == 0 {
		return nil, nil
	}
	return c.cfg.Proxies.Acquire()
}

func (c *Client) settleProxy(via *url.URL, ok bool, log logrus.FieldLogger) {
	if via == nil {
		return
	}
	mark := c.cfg.Proxies.MarkFailure
	if ok {
		mark = c.cfg.Proxies.MarkSuccess
	}
	if err := mark(via); err != nil {
		log.WithError(err).Warn("proxy bookkeeping failed")
	}
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
