package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
)

const (
	DefaultFigmaAPIBase  = "https://api.figma.com/v1"
	DefaultCallTimeout   = 60 * time.Second
	DefaultDownloadLimit = 50 << 20
)

// Config is the process-wide, read-only gateway configuration.
type Config struct {
	YouTrack YouTrackConfig `yaml:"youtrack"`
	Figma    FigmaConfig    `yaml:"figma"`

	LogLevel    string        `yaml:"log_level"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	JournalPath string        `yaml:"journal_path"`
	MetricsAddr string        `yaml:"metrics_addr"`
	// RateLimitRPS paces upstream requests per service; 0 disables pacing.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

type YouTrackConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type FigmaConfig struct {
	APIBase       string `yaml:"api_base"`
	Token         string `yaml:"token"`
	DownloadLimit int64  `yaml:"download_limit_bytes"`
}

// Load reads the optional YAML file at path, then applies environment overrides.
// getenv is usually os.Getenv; tests pass a map lookup.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, toolerr.Wrap(toolerr.KindConfiguration, err, "reading config %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, toolerr.Wrap(toolerr.KindConfiguration, err, "parsing config %s: %v", path, err)
		}
	}

	if err := cfg.mergeEnv(getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.YouTrack.URL, "YOUTRACK_URL")
	setString(&c.YouTrack.Token, "YOUTRACK_TOKEN")
	setString(&c.Figma.Token, "FIGMA_TOKEN")
	setString(&c.Figma.APIBase, "FIGMA_API_BASE")
	setString(&c.LogLevel, "MCP_GATEWAY_LOG_LEVEL")
	setString(&c.JournalPath, "MCP_GATEWAY_JOURNAL_PATH")
	setString(&c.MetricsAddr, "MCP_GATEWAY_METRICS_ADDR")

	if v := strings.TrimSpace(getenv("MCP_GATEWAY_CALL_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return toolerr.Configuration("MCP_GATEWAY_CALL_TIMEOUT_SECONDS must be a non-negative integer, got %q", v)
		}
		c.CallTimeout = time.Duration(n) * time.Second
	}
	if v := strings.TrimSpace(getenv("MCP_GATEWAY_RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return toolerr.Configuration("MCP_GATEWAY_RATE_LIMIT_RPS must be a non-negative number, got %q", v)
		}
		c.RateLimitRPS = f
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.YouTrack.URL = strings.TrimRight(c.YouTrack.URL, "/")
	if c.Figma.APIBase == "" {
		c.Figma.APIBase = DefaultFigmaAPIBase
	}
	c.Figma.APIBase = strings.TrimRight(c.Figma.APIBase, "/")
	if c.Figma.DownloadLimit <= 0 {
		c.Figma.DownloadLimit = DefaultDownloadLimit
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// RequireYouTrack fails when the issue-tracker credentials are incomplete.
func (c *Config) RequireYouTrack() error {
	var missing []string
	if c.YouTrack.URL == "" {
		missing = append(missing, "YOUTRACK_URL")
	}
	if c.YouTrack.Token == "" {
		missing = append(missing, "YOUTRACK_TOKEN")
	}
	if len(missing) > 0 {
		return toolerr.Configuration("%s environment variable(s) required", strings.Join(missing, " and "))
	}
	return nil
}

// RequireFigma fails when the design-tool token is missing.
func (c *Config) RequireFigma() error {
	if c.Figma.Token == "" {
		return toolerr.Configuration("FIGMA_TOKEN environment variable is required. Generate a Personal Access Token at: https://www.figma.com/developers/api#access-tokens")
	}
	return nil
}

// Validate checks fields whose values, rather than presence, can be wrong.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return toolerr.Configuration("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if c.CallTimeout < 0 {
		return toolerr.Configuration("call_timeout must not be negative")
	}
	return nil
}
