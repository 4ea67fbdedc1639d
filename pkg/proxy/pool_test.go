package proxy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPool_RoundRobin(t *testing.T) {
	pool := NewPool(Config{})
	if err := pool.Add("127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050", "127.0.0.1:8080"); err != nil {
		t.Fatalf("unexpected error adding proxies: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected duplicate to be ignored, got %d endpoints", pool.Len())
	}

	want := []string{
		"http://127.0.0.1:8080",
		"http://127.0.0.1:8081",
		"socks5://127.0.0.1:9050",
		"http://127.0.0.1:8080",
	}
	for i, w := range want {
		u, err := pool.Acquire()
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if u.String() != w {
			t.Errorf("acquire %d: expected %s, got %s", i, w, u)
		}
	}
}

func TestPool_EmptyIsExhausted(t *testing.T) {
	pool := NewPool(Config{})
	if _, err := pool.Acquire(); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	var nilPool *Pool
	if nilPool.Len() != 0 {
		t.Error("nil pool should report zero endpoints")
	}
}

func TestPool_BenchAndRevive(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Minute, Now: clock.Now})
	if err := pool.Add("10.0.0.1:3128", "10.0.0.2:3128"); err != nil {
		t.Fatal(err)
	}

	bad, _ := pool.Acquire()
	for i := 0; i < 2; i++ {
		if err := pool.MarkFailure(bad); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 3; i++ {
		u, err := pool.Acquire()
		if err != nil {
			t.Fatal(err)
		}
		if u.String() == bad.String() {
			t.Fatalf("benched proxy %s was handed out", bad)
		}
	}

	good, _ := pool.Acquire()
	_ = pool.MarkFailure(good)
	_ = pool.MarkFailure(good)
	if _, err := pool.Acquire(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted with every proxy benched, got %v", err)
	}

	clock.Advance(time.Minute + time.Second)
	u, err := pool.Acquire()
	if err != nil {
		t.Fatalf("expected revival after cooldown, got %v", err)
	}
	for _, e := range pool.Snapshot() {
		if e.URL.String() == u.String() && e.Failures != 0 {
			t.Errorf("revived proxy kept %d failures", e.Failures)
		}
	}
}

func TestPool_SuccessPaysDownFailures(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2})
	_ = pool.Add("10.0.0.1:3128")
	u, _ := pool.Acquire()

	_ = pool.MarkFailure(u)
	_ = pool.MarkSuccess(u)
	_ = pool.MarkFailure(u)

	if _, err := pool.Acquire(); err != nil {
		t.Errorf("proxy should still be healthy, got %v", err)
	}
	snap := pool.Snapshot()
	if snap[0].Successes != 1 || snap[0].Failures != 1 {
		t.Errorf("unexpected counters: %+v", snap[0])
	}
}

func TestPool_MarkUnknown(t *testing.T) {
	pool := NewPool(Config{})
	if err := pool.MarkSuccess(nil); err == nil {
		t.Error("expected error for nil url")
	}
	u, _ := ParseURL("10.9.9.9:1")
	if err := pool.MarkFailure(u); err == nil {
		t.Error("expected error for proxy outside the pool")
	}
}

func TestParseURL(t *testing.T) {
	if _, err := ParseURL("  "); err == nil {
		t.Error("expected error for blank url")
	}
	if _, err := ParseURL("http://"); err == nil {
		t.Error("expected error for url without host")
	}
	u, err := ParseURL("user:pw@proxy.local:8080")
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "http" || u.Host != "proxy.local:8080" {
		t.Errorf("unexpected parse: %s", u.Redacted())
	}
}

func TestPool_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# residential\n127.0.0.1:8080\n\n  http://127.0.0.1:8081  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{})
	if err := pool.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 proxies, got %d", pool.Len())
	}
	if err := pool.LoadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
