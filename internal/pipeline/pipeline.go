// Package pipeline runs a scan: fetch every term, normalize, filter and rank.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/candidate"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDelay   = time.Second
	DefaultTimeout = 10 * time.Second
)

// SearchFunc returns the pairs matching one search term.
type SearchFunc func(ctx context.Context, term string) ([]dex.Pair, error)

// FetchMode selects how terms are fetched.
type FetchMode string

const (
	FetchParallel   FetchMode = "parallel"
	FetchSequential FetchMode = "sequential"
)

// ParseFetchMode accepts "parallel" or "sequential".
func ParseFetchMode(s string) (FetchMode, error) {
	m := FetchMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case FetchParallel, FetchSequential:
		return m, nil
	}
	return "", fmt.Errorf("pipeline: %w: unknown fetch mode %q", candidate.ErrInvalidPolicy, s)
}

// FetchConfig controls the fetch stage.
type FetchConfig struct {
	Mode FetchMode
	// Delay separates consecutive requests in sequential mode.
	Delay time.Duration
	// Concurrency bounds in-flight requests in parallel mode. 0 is unbounded.
	Concurrency int
	// Timeout bounds each search call. 0 means DefaultTimeout.
	Timeout time.Duration
}

// Config describes one scan.
type Config struct {
	Terms  []string
	Filter candidate.FilterPolicy
	Rank   candidate.RankPolicy
	Fetch  FetchConfig
	// PerTermLimit keeps only the first N pairs of each response when > 0.
	PerTermLimit int
}

// Validate rejects configurations that must not reach the network.
func (c Config) Validate() error {
	if len(c.Terms) == 0 {
		return fmt.Errorf("pipeline: %w: no search terms", candidate.ErrInvalidPolicy)
	}
	for i, t := range c.Terms {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("pipeline: %w: term %d is blank", candidate.ErrInvalidPolicy, i)
		}
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Rank.Validate(); err != nil {
		return err
	}
	if _, err := ParseFetchMode(string(c.Fetch.Mode)); err != nil {
		return err
	}
	switch {
	case c.Fetch.Delay < 0:
		return fmt.Errorf("pipeline: %w: delay must be >= 0, got %s", candidate.ErrInvalidPolicy, c.Fetch.Delay)
	case c.Fetch.Timeout < 0:
		return fmt.Errorf("pipeline: %w: timeout must be >= 0, got %s", candidate.ErrInvalidPolicy, c.Fetch.Timeout)
	case c.Fetch.Concurrency < 0:
		return fmt.Errorf("pipeline: %w: concurrency must be >= 0, got %d", candidate.ErrInvalidPolicy, c.Fetch.Concurrency)
	case c.PerTermLimit < 0:
		return fmt.Errorf("pipeline: %w: per-term limit must be >= 0, got %d", candidate.ErrInvalidPolicy, c.PerTermLimit)
	}
	return nil
}

// Failure kinds recorded for terms that could not be fetched.
const (
	KindHTTP      = "http"
	KindChallenge = "challenge"
	KindTimeout   = "timeout"
	KindTransport = "transport"
	KindMalformed = "malformed"
)

// FetchFailure records why one term contributed no pairs.
type FetchFailure struct {
	Term       string `json:"term"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Body       string `json:"body,omitempty"`
	Challenge  string `json:"challenge,omitempty"`
}

// Stats counts records through each stage.
type Stats struct {
	TermsQueried int `json:"termsQueried"`
	TermsFailed  int `json:"termsFailed"`
	PairsFetched int `json:"pairsFetched"`
	// PairsAdmitted is PairsFetched after the per-term limit.
	PairsAdmitted int `json:"pairsAdmitted"`
	AfterChain    int `json:"afterChain"`
	AfterDedupe   int `json:"afterDedupe"`
	AfterFilter   int `json:"afterFilter"`
	Emitted       int `json:"emitted"`
}

// Result is the outcome of a scan.
type Result struct {
	ScanID     uuid.UUID
	Now        time.Time
	Candidates []dex.Pair
	Failures   []FetchFailure
	Stats      Stats
	Rejections candidate.Rejections
}

// AllFetchesFailed reports whether no term could be fetched.
func (r *Result) AllFetchesFailed() bool {
	return r.Stats.TermsQueried > 0 && r.Stats.TermsFailed == r.Stats.TermsQueried
}

// NoData reports whether the scan saw no pairs at all, as opposed to seeing
// pairs that all failed the policy.
func (r *Result) NoData() bool {
	return r.Stats.PairsFetched == 0
}

// Outcome classifies the scan as "candidates", "no_match" or "no_data".
func (r *Result) Outcome() string {
	switch {
	case len(r.Candidates) > 0:
		return "candidates"
	case r.NoData():
		return "no_data"
	default:
		return "no_match"
	}
}

// Pipeline wires a search function to the candidate stages.
type Pipeline struct {
	Search  SearchFunc
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	// Clock supplies the scan's reference time. Defaults to time.Now.
	Clock func() time.Time
}

// Run validates cfg, fetches every term and returns the ranked candidates.
// Per-term failures are recorded in the result; only an invalid config or a
// cancelled ctx return an error.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Result, error) {
	if p.Search == nil {
		return nil, errors.New("pipeline: search function is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := p.logger()
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock()
	}

	res := &Result{ScanID: uuid.New(), Now: now}
	log = log.WithField("scan_id", res.ScanID.String())

	slots := p.fetch(ctx, cfg)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: scan aborted: %w", err)
	}

	var raw []dex.Pair
	for i, s := range slots {
		term := cfg.Terms[i]
		if s.err != nil {
			f := classify(term, s.err)
			res.Failures = append(res.Failures, f)
			log.WithFields(logrus.Fields{
				"term":   term,
				"kind":   f.Kind,
				"status": f.StatusCode,
			}).Warnf("search failed: %v", s.err)
			continue
		}
		res.Stats.PairsFetched += len(s.pairs)
		pairs := s.pairs
		if cfg.PerTermLimit > 0 && len(pairs) > cfg.PerTermLimit {
			pairs = pairs[:cfg.PerTermLimit]
		}
		raw = append(raw, pairs...)
	}
	res.Stats.TermsQueried = len(cfg.Terms)
	res.Stats.TermsFailed = len(res.Failures)

	var st Stats
	res.Candidates, st, res.Rejections = Process(raw, cfg, now)
	res.Stats.PairsAdmitted = st.PairsAdmitted
	res.Stats.AfterChain = st.AfterChain
	res.Stats.AfterDedupe = st.AfterDedupe
	res.Stats.AfterFilter = st.AfterFilter
	res.Stats.Emitted = st.Emitted

	p.Metrics.RecordStage("fetched", res.Stats.PairsFetched)
	p.Metrics.RecordStage("chain", res.Stats.AfterChain)
	p.Metrics.RecordStage("dedupe", res.Stats.AfterDedupe)
	p.Metrics.RecordStage("filter", res.Stats.AfterFilter)
	p.Metrics.RecordStage("rank", res.Stats.Emitted)
	p.Metrics.RecordScan(res.Outcome())

	log.WithFields(logrus.Fields{
		"fetched": res.Stats.PairsFetched,
		"chain":   res.Stats.AfterChain,
		"dedupe":  res.Stats.AfterDedupe,
		"filter":  res.Stats.AfterFilter,
		"emitted": res.Stats.Emitted,
		"failed":  res.Stats.TermsFailed,
	}).Debug("scan stages complete")

	return res, nil
}

// Process runs the synchronous stages over already-fetched pairs:
// chain filter, dedupe, policy filter, rank.
func Process(pairs []dex.Pair, cfg Config, now time.Time) ([]dex.Pair, Stats, candidate.Rejections) {
	var st Stats
	st.PairsAdmitted = len(pairs)

	onChain := candidate.MatchChain(pairs, cfg.Filter.Chain)
	st.AfterChain = len(onChain)

	unique := candidate.Dedupe(onChain)
	st.AfterDedupe = len(unique)

	kept, rejected := candidate.Filter(unique, cfg.Filter, now)
	st.AfterFilter = len(kept)

	ranked := candidate.Rank(kept, cfg.Rank)
	st.Emitted = len(ranked)

	return ranked, st, rejected
}

type slot struct {
	pairs []dex.Pair
	err   error
}

// fetch returns one slot per term, in term order, whatever the mode.
func (p *Pipeline) fetch(ctx context.Context, cfg Config) []slot {
	timeout := cfg.Fetch.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	slots := make([]slot, len(cfg.Terms))

	if cfg.Fetch.Mode == FetchSequential {
		for i, term := range cfg.Terms {
			if i > 0 && cfg.Fetch.Delay > 0 {
				t := time.NewTimer(cfg.Fetch.Delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return slots
				case <-t.C:
				}
			}
			slots[i] = p.fetchOne(ctx, term, timeout)
		}
		return slots
	}

	// Goroutines never return an error, so one failure cannot cancel the rest.
	var g errgroup.Group
	if cfg.Fetch.Concurrency > 0 {
		g.SetLimit(cfg.Fetch.Concurrency)
	}
	for i, term := range cfg.Terms {
		g.Go(func() error {
			slots[i] = p.fetchOne(ctx, term, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (p *Pipeline) fetchOne(ctx context.Context, term string, timeout time.Duration) slot {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pairs, err := p.Search(ctx, term)
	if err != nil {
		return slot{err: err}
	}
	return slot{pairs: pairs}
}

func classify(term string, err error) FetchFailure {
	f := FetchFailure{Term: term, Kind: KindTransport, Message: err.Error()}

	var malformed *dex.MalformedResponseError
	if errors.As(err, &malformed) {
		f.Kind = KindMalformed
		return f
	}

	var timeout interface{ Timeout() bool }
	timedOut := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout())

	var te *dex.TransportError
	if errors.As(err, &te) {
		f.StatusCode = te.StatusCode
		f.Body = te.Body
		f.Challenge = te.Challenge
		switch {
		case te.Challenge != "":
			f.Kind = KindChallenge
			return f
		case timedOut:
			f.Kind = KindTimeout
			return f
		case te.StatusCode != 0:
			f.Kind = KindHTTP
			return f
		}
	}

	if timedOut {
		f.Kind = KindTimeout
	}
	return f
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.New()
	}
	return p.Logger
}
