// Package proxy rotates outbound search requests across a set of HTTP
// proxies, benching endpoints that keep failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

// ErrExhausted is returned by Acquire when every endpoint is cooling down.
var ErrExhausted = errors.New("proxy: no healthy proxy available")

// Endpoint is a proxy and its health counters.
type Endpoint struct {
	URL       *url.URL
	Failures  int
	Successes int
	LastUsed  time.Time
	BenchedAt time.Time
	Until     time.Time
}

func (e *Endpoint) benched(now time.Time) bool {
	return !e.Until.IsZero() && now.Before(e.Until)
}

// Config tunes the pool. Zero values take the defaults.
type Config struct {
	// MaxFailures is the net failure count that benches an endpoint.
	MaxFailures int
	// Cooldown is how long a benched endpoint is skipped.
	Cooldown time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Pool hands out endpoints round-robin. Safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	next      int
	cfg       Config
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pool{cfg: cfg}
}

// ParseURL accepts host:port or a full URL; a missing scheme means http.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("proxy: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy: %q has no host", raw)
	}
	return u, nil
}

// Add parses and appends endpoints. Duplicates are ignored.
func (p *Pool) Add(raw ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range raw {
		u, err := ParseURL(r)
		if err != nil {
			return err
		}
		if p.find(u) != nil {
			continue
		}
		p.endpoints = append(p.endpoints, &Endpoint{URL: u})
	}
	return nil
}

// LoadFile adds one endpoint per line, skipping blanks and # comments.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("proxy: reading %s: %w", path, err)
	}
	return p.Add(lines...)
}

// Len reports the number of endpoints, benched or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Acquire returns the next endpoint that is not cooling down. An endpoint
// whose cooldown has lapsed comes back with its failures cleared.
func (p *Pool) Acquire() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	if n == 0 {
		return nil, ErrExhausted
	}

	now := p.cfg.Now()
	for i := 0; i < n; i++ {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % n

		if !e.Until.IsZero() && !e.benched(now) {
			e.Until = time.Time{}
			e.Failures = 0
		}
		if e.benched(now) {
			continue
		}
		e.LastUsed = now
		return e.URL, nil
	}
	return nil, ErrExhausted
}

// MarkSuccess credits u, paying down one failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(u)
	if err != nil {
		return err
	}
	e.Successes++
	if e.Failures > 0 {
		e.Failures--
	}
	return nil
}

// MarkFailure charges u and benches it once MaxFailures is reached.
func (p *Pool) MarkFailure(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(u)
	if err != nil {
		return err
	}
	e.Failures++
	if e.Failures >= p.cfg.MaxFailures && !e.benched(p.cfg.Now()) {
		e.BenchedAt = p.cfg.Now()
		e.Until = e.BenchedAt.Add(p.cfg.Cooldown)
	}
	return nil
}

// Snapshot copies the endpoint states.
func (p *Pool) Snapshot() []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Endpoint, len(p.endpoints))
	for i, e := range p.endpoints {
		out[i] = *e
	}
	return out
}

func (p *Pool) lookup(u *url.URL) (*Endpoint, error) {
	if u == nil {
		return nil, errors.New("proxy: nil url")
	}
	e := p.find(u)
	if e == nil {
		return nil, fmt.Errorf("proxy: %s is not in the pool", u.Redacted())
	}
	return e, nil
}

// find must be called with mu held.
func (p *Pool) find(u *url.URL) *Endpoint {
	target := u.String()
	for _, e := range p.endpoints {
		if e.URL.String() == target {
			return e
		}
	}
	return nil
}
