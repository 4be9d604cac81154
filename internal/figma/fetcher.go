package figma

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/golovatskygroup/mcp-gateway/internal/httpx"
	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/internal/upstream"
)

const (
	// MaxSizeMB is the estimated decoded size above which a render is retried smaller.
	MaxSizeMB = 1.0
	// MinScale is the smallest scale the fetcher will request.
	MinScale = 0.5

	pngMimeType = "image/png"
)

// Asset is a rendered node, base64-encoded.
type Asset struct {
	Data            string
	MimeType        string
	FileKey         string
	NodeID          string
	Scale           float64
	EstimatedSizeMB float64
}

// Fetcher renders nodes through the images endpoint and downloads the result.
type Fetcher struct {
	client        *upstream.Client
	downloadLimit int64
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewFetcher(client *upstream.Client, downloadLimit int64, logger *slog.Logger, m *metrics.Metrics) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{client: client, downloadLimit: downloadLimit, logger: logger, metrics: m}
}

type imagesResponse struct {
	Err    any                `json:"err"`
	Images map[string]*string `json:"images"`
}

// apiError reports the err field when it is set to a truthy value.
func (r imagesResponse) apiError() (any, bool) {
	switch v := r.Err.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case bool:
		return v, v
	case float64:
		return v, v != 0
	default:
		return v, true
	}
}

// Fetch renders loc at scale. While the result is over MaxSizeMB, or over the
// download limit, and the scale is above MinScale it re-renders at
// max(MinScale, scale/2). The last render is returned even when still over
// MaxSizeMB.
func (f *Fetcher) Fetch(ctx context.Context, loc Locator, scale float64) (*Asset, error) {
	for {
		asset, err := f.render(ctx, loc, scale)
		var size string
		switch {
		case err == nil && (asset.EstimatedSizeMB <= MaxSizeMB || scale <= MinScale):
			return asset, nil
		case err == nil:
			size = fmt.Sprintf("%.2f", asset.EstimatedSizeMB)
		case scale > MinScale && httpx.IsResponseTooLarge(err):
			size = fmt.Sprintf(">%.2f", float64(f.downloadLimit)/(1024*1024))
		default:
			return nil, err
		}

		next := max(MinScale, scale/2)
		f.logger.Info("image too large, retrying at lower scale",
			"file_key", loc.FileKey, "node_id", loc.NodeID,
			"size_mb", size, "scale", scale, "next_scale", next)
		f.metrics.ObserveRescale()
		scale = next
	}
}

func (f *Fetcher) render(ctx context.Context, loc Locator, scale float64) (*Asset, error) {
	q := url.Values{}
	q.Set("ids", loc.NodeID)
	q.Set("format", "png")
	q.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))

	var resp imagesResponse
	err := f.client.Call(ctx, upstream.Request{
		Path:  "/images/" + url.PathEscape(loc.FileKey),
		Query: q,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if apiErr, ok := resp.apiError(); ok {
		return nil, toolerr.NotFound("Figma API error: %v", apiErr)
	}

	imageURL := resp.Images[loc.NodeID]
	if imageURL == nil || *imageURL == "" {
		return nil, toolerr.NotFound("No image generated for node %s. The node might be empty or invalid.", loc.NodeID)
	}

	raw, err := f.client.Download(ctx, *imageURL, f.downloadLimit)
	if err != nil {
		return nil, err
	}
	data := base64.StdEncoding.EncodeToString(raw)

	return &Asset{
		Data:            data,
		MimeType:        pngMimeType,
		FileKey:         loc.FileKey,
		NodeID:          loc.NodeID,
		Scale:           scale,
		EstimatedSizeMB: EstimateSizeMB(len(data)),
	}, nil
}

// EstimateSizeMB approximates the decoded size of a base64 payload.
func EstimateSizeMB(encodedLen int) float64 {
	return float64(encodedLen) * 3 / 4 / (1024 * 1024)
}
