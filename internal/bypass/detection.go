// Package bypass recognizes bot-protection challenge pages, so a blocked
// search can be reported as "challenged" instead of as a generic HTTP error.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the subset of an HTTP response the detectors inspect.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Detector examines a response to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
// Cloudflare comes first since it fronts the DexScreener API.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs res through detectors in order and returns the first vendor
// that matched.
func Analyze(res Response, detectors []Detector) (string, bool) {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return "", false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source, true
		}
	}
	return "", false
}

func header(res Response, key string) string {
	if res.Headers == nil {
		return ""
	}
	return strings.ToLower(res.Headers.Get(key))
}

func bodyContains(res Response, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(res.Body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectCloudflare looks for Cloudflare challenge/block and rate-limit signatures.
func detectCloudflare(res Response) (bool, string) {
	switch res.StatusCode {
	case http.StatusForbidden, http.StatusServiceUnavailable, http.StatusTooManyRequests:
	default:
		return false, ""
	}

	if strings.Contains(header(res, "Server"), "cloudflare") || header(res, "Cf-Mitigated") == "challenge" {
		return true, "Cloudflare"
	}
	if bodyContains(res,
		"cf-browser-verification",
		"cf-turnstile",
		"challenge-platform",
		"Just a moment...",
		"Attention Required! | Cloudflare",
	) {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(header(res, "Server"), "akamai") {
		return true, "Akamai"
	}
	if bodyContains(res, "Reference #") && bodyContains(res, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(header(res, "Server"), "datadome") ||
		header(res, "X-DataDome") != "" || header(res, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyContains(res, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(res, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyContains(res, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
