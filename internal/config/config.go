// Package config resolves scan settings from defaults, a preset, an optional
// config file, PAIRSCAN_* environment variables and command-line flags, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/candidate"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/fingerprint"
	"github.com/FranksOps/pairscan/internal/pipeline"
	"github.com/FranksOps/pairscan/internal/preset"
	"github.com/FranksOps/pairscan/internal/report"
	"github.com/FranksOps/pairscan/internal/search"
	"github.com/FranksOps/pairscan/pkg/proxy"
	"github.com/FranksOps/pairscan/pkg/useragent"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PAIRSCAN_FETCH_MODE.
const EnvPrefix = "PAIRSCAN"

// Off clears a threshold the preset sets.
const Off = "off"

// Configuration keys. Nested keys map to env vars with "." replaced by "_".
const (
	KeyPreset = "preset"
	KeyTerms  = "terms"
	KeyChain  = "chain"

	KeyMaxAge           = "filter.max_age"
	KeyMinLiquidity     = "filter.min_liquidity_usd"
	KeyMinVolume        = "filter.min_volume_24h_usd"
	KeyMinPriceChange1h = "filter.min_price_change_1h_pct"
	KeyMaxFDV           = "filter.max_fdv_usd"
	KeyMinFDV           = "filter.min_fdv_usd"

	KeyRankKey = "rank.key"
	KeyRankCap = "rank.cap"

	KeyFetchMode    = "fetch.mode"
	KeyFetchDelay   = "fetch.delay"
	KeyConcurrency  = "fetch.concurrency"
	KeyTimeout      = "fetch.timeout"
	KeyPerTermLimit = "fetch.per_term_limit"

	KeyBaseURL     = "http.base_url"
	KeyFingerprint = "http.fingerprint"
	KeyUserAgents  = "http.user_agents"
	KeyUAMode      = "http.ua_mode"
	KeyProxies     = "http.proxies"
	KeyProxyFile   = "http.proxy_file"
	KeyRPS         = "http.rps"
	KeyJitter      = "http.jitter"
	KeyReferer     = "http.referer"

	KeyOutput      = "output"
	KeySummary     = "summary"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
	KeyMetricsAddr = "metrics.addr"
)

// flagKeys maps each flag to the key it overrides.
var flagKeys = map[string]string{
	"preset":         KeyPreset,
	"terms":          KeyTerms,
	"chain":          KeyChain,
	"max-age":        KeyMaxAge,
	"min-liquidity":  KeyMinLiquidity,
	"min-volume":     KeyMinVolume,
	"min-change-1h":  KeyMinPriceChange1h,
	"max-fdv":        KeyMaxFDV,
	"min-fdv":        KeyMinFDV,
	"rank":           KeyRankKey,
	"cap":            KeyRankCap,
	"mode":           KeyFetchMode,
	"delay":          KeyFetchDelay,
	"concurrency":    KeyConcurrency,
	"timeout":        KeyTimeout,
	"per-term-limit": KeyPerTermLimit,
	"base-url":       KeyBaseURL,
	"fingerprint":    KeyFingerprint,
	"user-agent":     KeyUserAgents,
	"ua-mode":        KeyUAMode,
	"proxy":          KeyProxies,
	"proxy-file":     KeyProxyFile,
	"rps":            KeyRPS,
	"jitter":         KeyJitter,
	"output":         KeyOutput,
	"summary":        KeySummary,
	"log-level":      KeyLogLevel,
	"log-format":     KeyLogFormat,
	"metrics-addr":   KeyMetricsAddr,
}

// RegisterFlags adds every scan flag to flags. Flag defaults are informational;
// only flags the user changes override the preset.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("preset", "p", preset.Default, "named scan to run (see `pairscan presets`)")
	flags.StringSlice("terms", nil, "search terms, comma separated")
	flags.String("chain", "", "chain id pairs must be on")

	flags.String("max-age", "", `maximum pair age, e.g. 24h, or "off"`)
	flags.String("min-liquidity", "", `liquidity must exceed this USD value, or "off"`)
	flags.String("min-volume", "", `24h volume must exceed this USD value, or "off"`)
	flags.String("min-change-1h", "", `1h price change must exceed this percent, or "off"`)
	flags.String("max-fdv", "", `FDV must be below this USD value, or "off"`)
	flags.String("min-fdv", "", `FDV must exceed this USD value, or "off"`)

	flags.String("rank", "", "sort key: created, volume24h, priceChange1h, none")
	flags.Int("cap", 0, "maximum candidates to print")

	flags.String("mode", "", "fetch mode: parallel or sequential")
	flags.Duration("delay", 0, "pause between sequential requests")
	flags.Int("concurrency", 0, "parallel request limit, 0 for unbounded")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.Int("per-term-limit", 0, "keep only the first N pairs per term, 0 for all")

	flags.String("base-url", search.DefaultBaseURL, "search API base URL")
	flags.String("fingerprint", string(fingerprint.ProfileGo), "TLS fingerprint: go, chrome, firefox, safari, edge, ios, randomized")
	flags.StringArray("user-agent", nil, "User-Agent strings to rotate through")
	flags.String("ua-mode", string(useragent.ModeFixed), "User-Agent selection: fixed, sequential, random")
	flags.StringSlice("proxy", nil, "proxy URLs to rotate through, repeatable or comma separated")
	flags.String("proxy-file", "", "file with one proxy URL per line")
	flags.Float64("rps", 0, "maximum requests per second, 0 for unpaced")
	flags.Float64("jitter", 0, "extra random delay as a fraction of the request interval")

	flags.StringP("output", "o", string(report.OutputText), "candidate output: text, json, ndjson, csv")
	flags.String("summary", "text", "scan summary on stderr: text, json, none")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

// New returns a viper instance bound to flags and the environment, reading
// configFile when it is non-empty.
func New(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Keys without a preset value.
	v.SetDefault(KeyPreset, preset.Default)
	v.SetDefault(KeyBaseURL, search.DefaultBaseURL)
	v.SetDefault(KeyFingerprint, string(fingerprint.ProfileGo))
	v.SetDefault(KeyUAMode, string(useragent.ModeFixed))
	v.SetDefault(KeyReferer, search.DefaultReferer)
	v.SetDefault(KeyOutput, string(report.OutputText))
	v.SetDefault(KeySummary, "text")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	return v, nil
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// HTTP configures the search client.
type HTTP struct {
	BaseURL     string
	Fingerprint fingerprint.Profile
	UserAgents  []string
	UAMode      useragent.Mode
	Proxies     []string
	ProxyFile   string
	RPS         float64
	Jitter      float64
	Referer     string
}

// Settings is the fully resolved configuration of one scan.
type Settings struct {
	Preset      preset.Preset
	Output      report.Output
	Summary     string
	LogLevel    logrus.Level
	LogFormat   string
	MetricsAddr string
	HTTP        HTTP
}

// Load resolves settings from v. Pipeline overrides are applied on top of the
// selected preset and the result is validated.
func Load(v *viper.Viper) (*Settings, error) {
	p, err := preset.Lookup(v.GetString(KeyPreset))
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(v, &p.Pipeline); err != nil {
		return nil, err
	}
	if err := p.Pipeline.Validate(); err != nil {
		return nil, err
	}

	s := &Settings{
		Preset:      p,
		MetricsAddr: strings.TrimSpace(v.GetString(KeyMetricsAddr)),
		LogFormat:   strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}

	if s.Output, err = report.ParseOutput(v.GetString(KeyOutput)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	switch s.Summary = strings.ToLower(strings.TrimSpace(v.GetString(KeySummary))); s.Summary {
	case "text", "json", "none":
	default:
		return nil, fmt.Errorf("config: unknown summary format %q", s.Summary)
	}
	if s.LogLevel, err = logrus.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return nil, fmt.Errorf("config: unknown log format %q", s.LogFormat)
	}

	if s.HTTP, err = loadHTTP(v); err != nil {
		return nil, err
	}
	return s, nil
}

func loadHTTP(v *viper.Viper) (HTTP, error) {
	h := HTTP{
		BaseURL:    strings.TrimSpace(v.GetString(KeyBaseURL)),
		UserAgents: splitList(v.GetStringSlice(KeyUserAgents), false),
		Proxies:    splitList(v.GetStringSlice(KeyProxies), true),
		ProxyFile:  strings.TrimSpace(v.GetString(KeyProxyFile)),
		RPS:        v.GetFloat64(KeyRPS),
		Jitter:     v.GetFloat64(KeyJitter),
		Referer:    strings.TrimSpace(v.GetString(KeyReferer)),
	}

	var err error
	if h.Fingerprint, err = fingerprint.ParseProfile(v.GetString(KeyFingerprint)); err != nil {
		return HTTP{}, fmt.Errorf("config: %w", err)
	}
	if h.UAMode, err = useragent.ParseMode(v.GetString(KeyUAMode)); err != nil {
		return HTTP{}, fmt.Errorf("config: %w", err)
	}
	for _, raw := range h.Proxies {
		if _, err := proxy.ParseURL(raw); err != nil {
			return HTTP{}, fmt.Errorf("config: %w", err)
		}
	}
	if h.RPS < 0 {
		return HTTP{}, fmt.Errorf("config: rps must be >= 0, got %v", h.RPS)
	}
	if h.Jitter < 0 {
		return HTTP{}, fmt.Errorf("config: jitter must be >= 0, got %v", h.Jitter)
	}
	return h, nil
}

// ProxyPool builds the rotation pool from the configured proxies and proxy
// file. It returns nil when neither is set.
func (h HTTP) ProxyPool() (*proxy.Pool, error) {
	if len(h.Proxies) == 0 && h.ProxyFile == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(h.Proxies...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if h.ProxyFile != "" {
		if err := pool.LoadFile(h.ProxyFile); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return pool, nil
}

func applyOverrides(v *viper.Viper, c *pipeline.Config) error {
	if v.IsSet(KeyTerms) {
		c.Terms = splitList(v.GetStringSlice(KeyTerms), true)
	}
	if v.IsSet(KeyChain) {
		c.Filter.Chain = strings.TrimSpace(v.GetString(KeyChain))
	}

	var err error
	if c.Filter.MaxAge, err = optDuration(v, KeyMaxAge, c.Filter.MaxAge); err != nil {
		return err
	}
	floats := []struct {
		key string
		dst *dex.Optional[float64]
	}{
		{KeyMinLiquidity, &c.Filter.MinLiquidityUSD},
		{KeyMinVolume, &c.Filter.MinVolume24hUSD},
		{KeyMinPriceChange1h, &c.Filter.MinPriceChange1hPct},
		{KeyMaxFDV, &c.Filter.MaxFDVUSD},
		{KeyMinFDV, &c.Filter.MinFDVUSD},
	}
	for _, f := range floats {
		if *f.dst, err = optFloat(v, f.key, *f.dst); err != nil {
			return err
		}
	}

	if v.IsSet(KeyRankKey) {
		if c.Rank.Key, err = candidate.ParseRankKey(v.GetString(KeyRankKey)); err != nil {
			return err
		}
	}
	if v.IsSet(KeyRankCap) {
		c.Rank.Cap = v.GetInt(KeyRankCap)
	}

	if v.IsSet(KeyFetchMode) {
		if c.Fetch.Mode, err = pipeline.ParseFetchMode(v.GetString(KeyFetchMode)); err != nil {
			return err
		}
	}
	if v.IsSet(KeyFetchDelay) {
		c.Fetch.Delay = v.GetDuration(KeyFetchDelay)
	}
	if v.IsSet(KeyConcurrency) {
		c.Fetch.Concurrency = v.GetInt(KeyConcurrency)
	}
	if v.IsSet(KeyTimeout) {
		c.Fetch.Timeout = v.GetDuration(KeyTimeout)
	}
	if v.IsSet(KeyPerTermLimit) {
		c.PerTermLimit = v.GetInt(KeyPerTermLimit)
	}
	return nil
}

func optFloat(v *viper.Viper, key string, cur dex.Optional[float64]) (dex.Optional[float64], error) {
	if !v.IsSet(key) {
		return cur, nil
	}
	s := strings.TrimSpace(v.GetString(key))
	if strings.EqualFold(s, Off) {
		return dex.None[float64](), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return cur, fmt.Errorf("config: %w: %s: %q is not a number", candidate.ErrInvalidPolicy, key, s)
	}
	return dex.Some(f), nil
}

func optDuration(v *viper.Viper, key string, cur dex.Optional[time.Duration]) (dex.Optional[time.Duration], error) {
	if !v.IsSet(key) {
		return cur, nil
	}
	s := strings.TrimSpace(v.GetString(key))
	if strings.EqualFold(s, Off) {
		return dex.None[time.Duration](), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return cur, fmt.Errorf("config: %w: %s: %q is not a duration", candidate.ErrInvalidPolicy, key, s)
	}
	return dex.Some(d), nil
}

// splitList flattens comma-separated entries and drops blanks. Env values
// arrive as a single string that viper splits on whitespace only.
func splitList(in []string, commas bool) []string {
	var out []string
	for _, s := range in {
		parts := []string{s}
		if commas {
			parts = strings.Split(s, ",")
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
