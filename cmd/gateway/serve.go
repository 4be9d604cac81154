package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/mcp-gateway/internal/config"
	"github.com/golovatskygroup/mcp-gateway/internal/figma"
	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/httpx"
	"github.com/golovatskygroup/mcp-gateway/internal/journal"
	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
	"github.com/golovatskygroup/mcp-gateway/internal/server"
	"github.com/golovatskygroup/mcp-gateway/internal/youtrack"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

// backend builds one service from a validated config.
type backend struct {
	serverName string
	require    func(*config.Config) error
	build      func(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) gateway.Service
}

var youtrackBackend = backend{
	serverName: "youtrack",
	require:    (*config.Config).RequireYouTrack,
	build: func(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) gateway.Service {
		return youtrack.New(youtrack.Options{
			URL:   cfg.YouTrack.URL,
			Token: cfg.YouTrack.Token,
			HTTPClient: httpx.NewClient(cfg.CallTimeout, httpx.Config{
				Service: youtrack.ServiceName, Metrics: m, Logger: logger,
			}),
			RateLimitRPS: cfg.RateLimitRPS,
			Logger:       logger,
		}).Gateway()
	},
}

var figmaBackend = backend{
	serverName: "figma-screenshot",
	require:    (*config.Config).RequireFigma,
	build: func(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) gateway.Service {
		return figma.New(figma.Options{
			APIBase:       cfg.Figma.APIBase,
			Token:         cfg.Figma.Token,
			DownloadLimit: cfg.Figma.DownloadLimit,
			HTTPClient: httpx.NewClient(cfg.CallTimeout, httpx.Config{
				Service: figma.ServiceName, Metrics: m, Logger: logger,
			}),
			RateLimitRPS: cfg.RateLimitRPS,
			Logger:       logger,
			Metrics:      m,
		}).Gateway()
	},
}

func newYouTrackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "youtrack",
		Short: "Serve the YouTrack issue tools over stdio",
		Long:  "Serve the YouTrack issue tools over stdio. Requires YOUTRACK_URL and YOUTRACK_TOKEN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts, youtrackBackend)
		},
	}
}

func newFigmaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "figma",
		Short: "Serve the Figma screenshot tool over stdio",
		Long:  "Serve the Figma screenshot tool over stdio. Requires FIGMA_TOKEN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts, figmaBackend)
		},
	}
}

func serve(cmd *cobra.Command, opts *rootOptions, b backend) error {
	cfg, err := opts.load(cmd, os.Getenv)
	if err != nil {
		return err
	}
	if err := b.require(cfg); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gwOpts := gateway.Options{Timeout: cfg.CallTimeout, Logger: logger, Metrics: m}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Warn("close journal", "error", err)
			}
		}()
		gwOpts.Journal = j
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	svc := b.build(cfg, logger, m)
	dispatcher := gateway.New(svc, gwOpts)
	srv := server.New(
		mcp.NewTransport(cmd.InOrStdin(), cmd.OutOrStdout()),
		dispatcher,
		server.Options{Name: b.serverName, Logger: logger},
	)
	return srv.Run(ctx)
}

