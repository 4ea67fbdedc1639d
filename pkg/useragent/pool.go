package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
)

// DefaultPool holds current desktop browser User-Agents. The first entry is
// the one used when rotation is disabled.
var DefaultPool = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// Mode selects how Pick chooses the next User-Agent.
type Mode string

const (
	ModeFixed      Mode = "fixed"
	ModeSequential Mode = "sequential"
	ModeRandom     Mode = "random"
)

// ParseMode accepts "fixed", "sequential" or "random"; empty means fixed.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFixed, nil
	case ModeFixed, ModeSequential, ModeRandom:
		return m, nil
	}
	return "", fmt.Errorf("useragent: unknown mode %q", s)
}

// Pool is a set of User-Agents plus a selection mode.
type Pool struct {
	uas     []string
	mode    Mode
	counter atomic.Uint64
}

// NewPool creates a pool. An empty slice falls back to DefaultPool and an
// empty mode to ModeFixed.
func NewPool(uas []string, mode Mode) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	if mode == "" {
		mode = ModeFixed
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas:  copied,
		mode: mode,
	}
}

// Pick returns a User-Agent according to the pool's mode. It is safe for
// concurrent use.
func (p *Pool) Pick() string {
	switch p.mode {
	case ModeSequential:
		return p.GetSequential()
	case ModeRandom:
		return p.GetRandom()
	}
	return p.uas[0]
}

// GetSequential returns the next User-Agent in round-robin order.
func (p *Pool) GetSequential() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// GetRandom returns a random User-Agent using crypto/rand.
func (p *Pool) GetRandom() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.GetSequential()
	}
	return p.uas[n.Int64()]
}

// Len reports the pool size.
func (p *Pool) Len() int {
	return len(p.uas)
}
