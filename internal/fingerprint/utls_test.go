package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestTransport_Profiles(t *testing.T) {
	profiles := []Profile{
		ProfileChrome,
		ProfileFirefox,
		ProfileSafari,
		ProfileGo,
		ProfileRandom,
	}

	for _, p := range profiles {
		t.Run(string(p), func(t *testing.T) {
			rt, err := Transport(p, nil)
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			tr, ok := rt.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", rt)
			}

			if p == ProfileGo {
				if tr.DialTLSContext != nil {
					t.Errorf("go profile should use the standard TLS dialer")
				}
				return
			}
			if tr.DialTLSContext == nil {
				t.Errorf("expected uTLS dialer for profile %s", p)
			}
			if tr.ForceAttemptHTTP2 {
				t.Errorf("uTLS transports must not force HTTP/2")
			}
		})
	}
}

func TestTransport_PlainHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// Plain HTTP never reaches the TLS dialer, so any profile must work.
	rt, err := Transport(ProfileChrome, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := (&http.Client{Transport: rt}).Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", resp.StatusCode)
	}
}

func TestTransport_ContextProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://127.0.0.1:3128")
	rt, err := Transport(ProfileGo, ContextProxy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := rt.(*http.Transport)

	const target = "https://api.dexscreener.com/latest/dex/search?q=SOL"
	req, _ := http.NewRequestWithContext(WithProxy(context.Background(), proxyURL), http.MethodGet, target, nil)
	got, err := tr.Proxy(req)
	if err != nil {
		t.Fatalf("unexpected proxy error: %v", err)
	}
	if got == nil || got.String() != proxyURL.String() {
		t.Errorf("expected proxy %s, got %v", proxyURL, got)
	}

	direct, _ := http.NewRequest(http.MethodGet, target, nil)
	if got, _ := tr.Proxy(direct); got != nil {
		t.Errorf("expected direct connection without a pinned proxy, got %s", got)
	}
}

func TestTransport_NilProxyIgnoresEnvironment(t *testing.T) {
	rt, err := Transport(ProfileChrome, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.(*http.Transport).Proxy != nil {
		t.Error("expected no proxy func")
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("unknown_browser"), nil)
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
	if err.Error() != `fingerprint: unknown profile "unknown_browser"` {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	cases := map[string]Profile{"": ProfileGo, "Chrome": ProfileChrome, "go": ProfileGo, " random ": ProfileRandom}
	for in, want := range cases {
		got, err := ParseProfile(in)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseProfile("netscape"); err == nil {
		t.Errorf("expected error for unknown profile")
	}
}
