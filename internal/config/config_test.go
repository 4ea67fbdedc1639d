package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/pairscan/internal/candidate"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/fingerprint"
	"github.com/FranksOps/pairscan/internal/pipeline"
	"github.com/FranksOps/pairscan/internal/preset"
	"github.com/FranksOps/pairscan/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, configFile string, args ...string) (*Settings, error) {
	t.Helper()
	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))

	v, err := New(flags, configFile)
	require.NoError(t, err)
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	s, err := load(t, "")
	require.NoError(t, err)

	want, err := preset.Lookup(preset.Default)
	require.NoError(t, err)
	assert.Equal(t, want.Name, s.Preset.Name)
	assert.Equal(t, want.Pipeline, s.Preset.Pipeline)

	assert.Equal(t, report.OutputText, s.Output)
	assert.Equal(t, "text", s.Summary)
	assert.Equal(t, logrus.InfoLevel, s.LogLevel)
	assert.Equal(t, fingerprint.ProfileGo, s.HTTP.Fingerprint)
	assert.Equal(t, "https://api.dexscreener.com", s.HTTP.BaseURL)
	assert.Empty(t, s.MetricsAddr)
}

func TestLoad_FlagsOverridePresetKeysOnly(t *testing.T) {
	s, err := load(t, "",
		"--preset", "deep",
		"--terms", "WIF, BONK",
		"--min-liquidity", "750",
		"--max-age", "off",
		"--cap", "3",
		"--output", "csv",
	)
	require.NoError(t, err)

	c := s.Preset.Pipeline
	assert.Equal(t, "deep", s.Preset.Name)
	assert.Equal(t, []string{"WIF", "BONK"}, c.Terms)
	assert.Equal(t, dex.Some(750.0), c.Filter.MinLiquidityUSD)
	assert.False(t, c.Filter.MaxAge.Present())
	assert.Equal(t, 3, c.Rank.Cap)
	assert.Equal(t, candidate.RankByCreated, c.Rank.Key, "untouched keys keep the preset value")
	assert.Equal(t, dex.Some(1000.0), c.Filter.MinVolume24hUSD)
	assert.Equal(t, pipeline.FetchSequential, c.Fetch.Mode)
	assert.Equal(t, time.Second, c.Fetch.Delay)
	assert.Equal(t, report.OutputCSV, s.Output)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PAIRSCAN_PRESET", "fresh-dogs")
	t.Setenv("PAIRSCAN_FILTER_MIN_VOLUME_24H_USD", "2500")
	t.Setenv("PAIRSCAN_TERMS", "SOL,PUMP")
	t.Setenv("PAIRSCAN_FETCH_DELAY", "250ms")

	s, err := load(t, "")
	require.NoError(t, err)

	c := s.Preset.Pipeline
	assert.Equal(t, "fresh-dogs", s.Preset.Name)
	assert.Equal(t, dex.Some(2500.0), c.Filter.MinVolume24hUSD)
	assert.Equal(t, []string{"SOL", "PUMP"}, c.Terms)
	assert.Equal(t, 250*time.Millisecond, c.Fetch.Delay)
	assert.Equal(t, dex.Some(500_000.0), c.Filter.MaxFDVUSD)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("PAIRSCAN_RANK_CAP", "4")

	s, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Preset.Pipeline.Rank.Cap)

	s, err = load(t, "", "--cap", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Preset.Pipeline.Rank.Cap)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
preset: alpha
filter:
  min_liquidity_usd: 20000
fetch:
  mode: sequential
  delay: 250ms
http:
  user_agents:
    - "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)"
  rps: 2
log:
  level: debug
`), 0o644))

	s, err := load(t, path)
	require.NoError(t, err)

	c := s.Preset.Pipeline
	assert.Equal(t, "alpha", s.Preset.Name)
	assert.Equal(t, dex.Some(20000.0), c.Filter.MinLiquidityUSD)
	assert.Equal(t, pipeline.FetchSequential, c.Fetch.Mode)
	assert.Equal(t, 250*time.Millisecond, c.Fetch.Delay)
	assert.Equal(t, 60, c.PerTermLimit)
	assert.Len(t, s.HTTP.UserAgents, 1)
	assert.Equal(t, 2.0, s.HTTP.RPS)
	assert.Equal(t, logrus.DebugLevel, s.LogLevel)

	// env sits between file and flags
	t.Setenv("PAIRSCAN_FILTER_MIN_LIQUIDITY_USD", "30000")
	s, err = load(t, path)
	require.NoError(t, err)
	assert.Equal(t, dex.Some(30000.0), s.Preset.Pipeline.Filter.MinLiquidityUSD)

	s, err = load(t, path, "--min-liquidity", "40000")
	require.NoError(t, err)
	assert.Equal(t, dex.Some(40000.0), s.Preset.Pipeline.Filter.MinLiquidityUSD)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(nil, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_UserAgentWithCommas(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)"
	s, err := load(t, "", "--user-agent", ua, "--ua-mode", "random")
	require.NoError(t, err)
	assert.Equal(t, []string{ua}, s.HTTP.UserAgents)
	assert.EqualValues(t, "random", s.HTTP.UAMode)
}

func TestLoad_ProxyPool(t *testing.T) {
	s, err := load(t, "")
	require.NoError(t, err)
	pool, err := s.HTTP.ProxyPool()
	require.NoError(t, err)
	assert.Nil(t, pool)

	file := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(file, []byte("# dc\n10.0.0.3:3128\n"), 0o644))

	s, err = load(t, "", "--proxy", "10.0.0.1:3128,10.0.0.2:3128", "--proxy-file", file)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:3128", "10.0.0.2:3128"}, s.HTTP.Proxies)

	pool, err = s.HTTP.ProxyPool()
	require.NoError(t, err)
	assert.Equal(t, 3, pool.Len())

	s.HTTP.ProxyFile = filepath.Join(t.TempDir(), "absent.txt")
	_, err = s.HTTP.ProxyPool()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		args   []string
		policy bool
	}{
		{"unknown rank", []string{"--rank", "marketCap"}, true},
		{"bad duration", []string{"--max-age", "two days"}, true},
		{"bad number", []string{"--min-volume", "lots"}, true},
		{"negative threshold", []string{"--min-liquidity", "-5"}, true},
		{"fdv bounds cross", []string{"--preset", "fresh-dogs", "--min-fdv", "600000"}, true},
		{"negative cap", []string{"--cap", "-1"}, true},
		{"zero max age", []string{"--max-age", "0s"}, true},
		{"unknown mode", []string{"--mode", "burst"}, true},
		{"empty chain", []string{"--chain", " "}, true},
		{"unknown output", []string{"--output", "xml"}, false},
		{"unknown summary", []string{"--summary", "yaml"}, false},
		{"unknown fingerprint", []string{"--fingerprint", "netscape"}, false},
		{"negative rps", []string{"--rps", "-1"}, false},
		{"proxy without host", []string{"--proxy", "http://"}, false},
		{"bad log level", []string{"--log-level", "loud"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, "", tc.args...)
			require.Error(t, err)
			if tc.policy {
				assert.True(t, errors.Is(err, candidate.ErrInvalidPolicy), "%v", err)
			}
		})
	}

	_, err := load(t, "", "--preset", "moonshot")
	assert.True(t, errors.Is(err, preset.ErrUnknownPreset))
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAIRSCAN_DOTENV_PROBE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PAIRSCAN_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("PAIRSCAN_DOTENV_PROBE"))
}
