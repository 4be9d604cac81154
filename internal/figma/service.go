// Package figma exposes node screenshots from the Figma REST API as a gateway tool.
package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golovatskygroup/mcp-gateway/internal/catalog"
	"github.com/golovatskygroup/mcp-gateway/internal/config"
	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/internal/upstream"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

const ServiceName = "figma"

// Upstream status texts.
var statusMessages = upstream.StatusMessages{
	Permission: "Access denied. Either your token is invalid or you don't have access to this file. " +
		"Check your token at: https://www.figma.com/developers/api#access-tokens",
	NotFound:  "File or node not found. Please verify the URL and ensure the file is shared with you.",
	RateLimit: "Rate limit exceeded. Please wait a moment before trying again.",
}

var validScales = []float64{0.5, 1, 2}

var screenshotEntry = catalog.Entry{
	Tool: mcp.Tool{
		Name: "figma_screenshot",
		Description: "Capture a screenshot of a Figma design from its URL. Returns the image as base64 that can be visually analyzed. " +
			"Supports file, design, proto, and board URLs. The URL must include a node-id parameter.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The Figma URL to capture. Must include node-id parameter. Example: https://www.figma.com/design/ABC123/Project?node-id=1-42"},
				"scale": {"type": "number", "description": "Image scale factor (0.5, 1, or 2). Default is 1. Use 0.5 for smaller images, 2 for higher resolution.", "enum": [0.5, 1, 2]}
			},
			"required": ["url"]
		}`),
	},
	// scale is checked by the handler, which falls back to 1.
	ValidationSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string"}
		},
		"required": ["url"]
	}`),
}

// Catalog returns the design-tool catalog. It needs no credentials.
func Catalog() *catalog.Catalog {
	return catalog.New(screenshotEntry)
}

type Options struct {
	// APIBase defaults to https://api.figma.com/v1.
	APIBase       string
	Token         string
	DownloadLimit int64

	HTTPClient   *http.Client
	RateLimitRPS float64
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

type Service struct {
	fetcher *Fetcher
}

func New(opts Options) *Service {
	base := opts.APIBase
	if base == "" {
		base = config.DefaultFigmaAPIBase
	}
	client := upstream.New(upstream.Options{
		Service:      "Figma",
		BaseURL:      base,
		Auth:         upstream.TokenHeader("X-Figma-Token", opts.Token),
		Messages:     statusMessages,
		HTTPClient:   opts.HTTPClient,
		RateLimitRPS: opts.RateLimitRPS,
		Logger:       opts.Logger,
	})
	return &Service{fetcher: NewFetcher(client, opts.DownloadLimit, opts.Logger, opts.Metrics)}
}

func (s *Service) Gateway() gateway.Service {
	return gateway.Service{
		Name:    ServiceName,
		Catalog: Catalog(),
		Handlers: map[string]gateway.Handler{
			"figma_screenshot": s.screenshot,
		},
	}
}

// effectiveScale returns the requested scale when it is one of 0.5, 1 or 2
// and 1 for anything else, including non-numbers.
func effectiveScale(raw json.RawMessage) float64 {
	var v float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 1
	}
	for _, s := range validScales {
		if v == s {
			return v
		}
	}
	return 1
}

type screenshotMeta struct {
	FileKey         string  `json:"fileKey"`
	NodeID          string  `json:"nodeId"`
	Scale           float64 `json:"scale"`
	EstimatedSizeMB string  `json:"estimatedSizeMB"`
}

func (s *Service) screenshot(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		URL   string          `json:"url"`
		Scale json.RawMessage `json:"scale"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, toolerr.Validation("Invalid input: %v", err)
	}
	if strings.TrimSpace(in.URL) == "" {
		return nil, toolerr.Validation("url is required")
	}

	loc, err := ParseLocator(in.URL)
	if err != nil {
		return nil, err
	}
	asset, err := s.fetcher.Fetch(ctx, loc, effectiveScale(in.Scale))
	if err != nil {
		return nil, err
	}

	meta, err := gateway.JSONText(screenshotMeta{
		FileKey:         asset.FileKey,
		NodeID:          asset.NodeID,
		Scale:           asset.Scale,
		EstimatedSizeMB: fmt.Sprintf("%.2f", asset.EstimatedSizeMB),
	})
	if err != nil {
		return nil, err
	}
	return gateway.Result{Content: []mcp.ContentBlock{
		mcp.ImageContent(asset.Data, asset.MimeType),
		meta,
	}}, nil
}
