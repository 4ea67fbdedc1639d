package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/pairscan/internal/config"
	"github.com/FranksOps/pairscan/internal/metrics"
	"github.com/FranksOps/pairscan/internal/pipeline"
	"github.com/FranksOps/pairscan/internal/report"
	"github.com/FranksOps/pairscan/internal/search"
	"github.com/FranksOps/pairscan/pkg/ratelimit"
	"github.com/FranksOps/pairscan/pkg/useragent"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan and print the candidates",
		Long: `Run a scan and print the candidates.

Settings come from the selected preset, then the --config file, then
PAIRSCAN_* environment variables, then flags. Only values that are set
explicitly replace the preset's. A threshold set to "off" is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runScan(cmd *cobra.Command, opts *rootOptions) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}
	v, err := config.New(cmd.Flags(), opts.configFile)
	if err != nil {
		return err
	}
	settings, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := newLogger(opts.stderr, settings.LogLevel, settings.LogFormat)
	m := metrics.New()

	if settings.MetricsAddr != "" {
		srv := metrics.Start(settings.MetricsAddr, m, func(err error) {
			logger.WithError(err).Error("metrics server failed")
		})
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.WithError(err).Warn("metrics server shutdown")
			}
		}()
		logger.WithField("addr", settings.MetricsAddr).Info("serving metrics")
	}

	proxies, err := settings.HTTP.ProxyPool()
	if err != nil {
		return err
	}

	p := settings.Preset
	client, err := search.NewClient(search.Config{
		BaseURL:     settings.HTTP.BaseURL,
		Timeout:     p.Pipeline.Fetch.Timeout,
		Fingerprint: settings.HTTP.Fingerprint,
		UAPool:      useragent.NewPool(settings.HTTP.UserAgents, settings.HTTP.UAMode),
		Limiter:     ratelimit.NewLimiter(settings.HTTP.RPS, settings.HTTP.Jitter),
		Proxies:     proxies,
		Referer:     settings.HTTP.Referer,
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"preset":  p.Name,
		"terms":   len(p.Pipeline.Terms),
		"mode":    p.Pipeline.Fetch.Mode,
		"proxies": proxies.Len(),
	}).Info("starting scan")

	pl := &pipeline.Pipeline{Search: client.Search, Logger: logger, Metrics: m}
	res, err := pl.Run(ctx, p.Pipeline)
	if err != nil {
		return err
	}

	if err := report.Render(opts.stdout, settings.Output, res.Candidates, p.Presentation, res.Now); err != nil {
		return err
	}

	summary := report.GenerateSummary(p.Name, res)
	switch settings.Summary {
	case "text":
		fmt.Fprintln(opts.stderr)
		err = report.WriteText(opts.stderr, summary)
	case "json":
		err = report.WriteJSON(opts.stderr, summary)
	}
	return err
}
