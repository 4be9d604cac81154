package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/mcp-gateway/internal/config"
)

type rootOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string
	journalPath string
	callTimeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Expose YouTrack and Figma as MCP tools over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(cmd)
	cmd.AddCommand(newYouTrackCommand(opts))
	cmd.AddCommand(newFigmaCommand(opts))
	cmd.AddCommand(newToolsCommand())

	return cmd
}

func (o *rootOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&o.journalPath, "journal", "", "record tool executions in this SQLite file")
	f.DurationVar(&o.callTimeout, "call-timeout", 0, "per-call timeout (0 keeps the configured default)")
}

// load resolves file and environment settings, then applies explicit flags.
func (o *rootOptions) load(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(o.configPath, getenv)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("journal") {
		cfg.JournalPath = o.journalPath
	}
	if flags.Changed("call-timeout") && o.callTimeout > 0 {
		cfg.CallTimeout = o.callTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
