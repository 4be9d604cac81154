package figma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/metrics"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Locator
		wantErr string
	}{
		{"design", "https://www.figma.com/design/ABC123/Project?node-id=1-42", Locator{"ABC123", "1:42"}, ""},
		{"file", "https://www.figma.com/file/Key9/Name?node-id=12-3&t=x", Locator{"Key9", "12:3"}, ""},
		{"proto", "https://figma.com/proto/P1/x?node-id=0-1", Locator{"P1", "0:1"}, ""},
		{"board", "https://www.figma.com/board/B2/x?node-id=4-5-6", Locator{"B2", "4:5:6"}, ""},
		{"api form kept", "https://www.figma.com/design/ABC/x?node-id=1%3A2", Locator{"ABC", "1:2"}, ""},
		{"not figma", "https://example.com/design/ABC/x?node-id=1-2", Locator{}, "Invalid Figma URL"},
		{"unsupported kind", "https://www.figma.com/community/ABC?node-id=1-2", Locator{}, "Invalid Figma URL"},
		{"no node", "https://www.figma.com/design/ABC/Project", Locator{}, "Missing node-id in URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocator(tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, toolerr.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveScale(t *testing.T) {
	tests := map[string]float64{
		``:        1,
		`0.5`:     0.5,
		`1`:       1,
		`2`:       2,
		`3`:       1,
		`0.25`:    1,
		`-2`:      1,
		`"2"`:     1,
		`"large"`: 1,
		`null`:    1,
		`true`:    1,
	}
	for in, want := range tests {
		assert.Equal(t, want, effectiveScale(json.RawMessage(in)), "scale %q", in)
	}
}

func TestEstimateSizeMB(t *testing.T) {
	assert.InDelta(t, 1.0, EstimateSizeMB(4*(1<<20)/3), 0.0001)
	assert.Equal(t, 0.0, EstimateSizeMB(0))
}

// fakeFigma renders a node whose downloaded size depends on the requested scale.
type fakeFigma struct {
	srv *httptest.Server

	mu     sync.Mutex
	scales []string
	sizes  map[string]int
	apiErr string
	noURL  bool
	dlCode int

	// errValue is sent as the err field of an otherwise successful response.
	errValue any
}

func newFakeFigma(t *testing.T, sizes map[string]int, opts ...func(*fakeFigma)) *fakeFigma {
	t.Helper()
	f := &fakeFigma{sizes: sizes, dlCode: http.StatusOK}
	for _, o := range opts {
		o(f)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "figtok", r.Header.Get("X-Figma-Token"))
		assert.Equal(t, "/v1/images/ABC123", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "png", q.Get("format"))
		assert.Equal(t, "1:42", q.Get("ids"))

		f.mu.Lock()
		f.scales = append(f.scales, q.Get("scale"))
		f.mu.Unlock()

		resp := map[string]any{"err": f.errValue, "images": map[string]any{"1:42": "http://" + r.Host + "/render?scale=" + q.Get("scale")}}
		if f.apiErr != "" {
			resp = map[string]any{"err": f.apiErr, "images": map[string]any{}}
		}
		if f.noURL {
			resp = map[string]any{"err": nil, "images": map[string]any{"1:42": nil}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Figma-Token"))
		if f.dlCode != http.StatusOK {
			w.WriteHeader(f.dlCode)
			return
		}
		n := f.sizes[r.URL.Query().Get("scale")]
		_, _ = w.Write([]byte(strings.Repeat("x", n)))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFigma) service(m *metrics.Metrics) *Service {
	return New(Options{APIBase: f.srv.URL + "/v1", Token: "figtok", DownloadLimit: 16 << 20, Metrics: m})
}

func (f *fakeFigma) requestedScales() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scales...)
}

const mb = 1 << 20

var loc = Locator{FileKey: "ABC123", NodeID: "1:42"}

func TestFetchStepsDownUntilMinScale(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"2": 3 * mb, "1": 2 * mb, "0.5": mb + mb/2})
	m := metrics.New()

	asset, err := f.service(m).fetcher.Fetch(context.Background(), loc, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "1", "0.5"}, f.requestedScales())
	assert.Equal(t, 0.5, asset.Scale)
	assert.Greater(t, asset.EstimatedSizeMB, MaxSizeMB, "oversized result at the floor is returned anyway")
	assert.Equal(t, "image/png", asset.MimeType)

	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP gateway_screenshot_rescales_total Screenshot renders discarded for exceeding the size limit.
# TYPE gateway_screenshot_rescales_total counter
gateway_screenshot_rescales_total 2
`), "gateway_screenshot_rescales_total"))
}

func TestFetchStopsWhenSmallEnough(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"2": 2 * mb, "1": mb / 2})

	asset, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, f.requestedScales())
	assert.Equal(t, 1.0, asset.Scale)
}

func TestFetchNeverRetriesAtMinScale(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"0.5": 4 * mb})

	asset, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.5"}, f.requestedScales())
	assert.Equal(t, 0.5, asset.Scale)
}

func TestFetchErrors(t *testing.T) {
	t.Run("api err field", func(t *testing.T) {
		f := newFakeFigma(t, nil, func(f *fakeFigma) { f.apiErr = "Invalid node" })
		_, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 1)
		assert.ErrorIs(t, err, toolerr.ErrNotFound)
		assert.EqualError(t, err, "Figma API error: Invalid node")
	})
	t.Run("no image url", func(t *testing.T) {
		f := newFakeFigma(t, nil, func(f *fakeFigma) { f.noURL = true })
		_, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 1)
		assert.ErrorIs(t, err, toolerr.ErrNotFound)
		assert.EqualError(t, err, "No image generated for node 1:42. The node might be empty or invalid.")
	})
	t.Run("download failure", func(t *testing.T) {
		f := newFakeFigma(t, nil, func(f *fakeFigma) { f.dlCode = http.StatusForbidden })
		_, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 1)
		assert.ErrorIs(t, err, toolerr.ErrDownload)
		assert.EqualError(t, err, "Failed to download image: 403")
	})
}

func TestFetchStepsDownPastDownloadLimit(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"2": 3 * mb, "1": mb / 2})
	m := metrics.New()
	svc := New(Options{APIBase: f.srv.URL + "/v1", Token: "figtok", DownloadLimit: 2 * mb, Metrics: m})

	asset, err := svc.fetcher.Fetch(context.Background(), loc, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, f.requestedScales())
	assert.Equal(t, 1.0, asset.Scale)

	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP gateway_screenshot_rescales_total Screenshot renders discarded for exceeding the size limit.
# TYPE gateway_screenshot_rescales_total counter
gateway_screenshot_rescales_total 1
`), "gateway_screenshot_rescales_total"))
}

func TestFetchDownloadLimitAtMinScale(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"1": 3 * mb, "0.5": 3 * mb})
	svc := New(Options{APIBase: f.srv.URL + "/v1", Token: "figtok", DownloadLimit: 2 * mb})

	_, err := svc.fetcher.Fetch(context.Background(), loc, 1)
	assert.ErrorIs(t, err, toolerr.ErrDownload)
	assert.ErrorContains(t, err, "exceeded limit of 2097152 bytes")
	assert.Equal(t, []string{"1", "0.5"}, f.requestedScales())
}

func TestFetchIgnoresFalsyErrField(t *testing.T) {
	for _, v := range []any{false, 0.0, ""} {
		f := newFakeFigma(t, map[string]int{"1": 30}, func(f *fakeFigma) { f.errValue = v })
		asset, err := f.service(nil).fetcher.Fetch(context.Background(), loc, 1)
		require.NoError(t, err, "err field %v", v)
		assert.Equal(t, 1.0, asset.Scale)
	}
}

func TestScreenshotStatusMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusForbidden, "Error: Access denied. Either your token is invalid or you don't have access to this file. Check your token at: https://www.figma.com/developers/api#access-tokens"},
		{http.StatusNotFound, "Error: File or node not found. Please verify the URL and ensure the file is shared with you."},
		{http.StatusTooManyRequests, "Error: Rate limit exceeded. Please wait a moment before trying again."},
		{http.StatusBadGateway, "Error: Figma API error (502): upstream down"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream down"))
			}))
			t.Cleanup(srv.Close)

			svc := New(Options{APIBase: srv.URL, Token: "t"})
			d := gateway.New(svc.Gateway(), gateway.Options{Timeout: 5 * time.Second})
			res := d.Dispatch(context.Background(), mcp.CallToolParams{
				Name:      "figma_screenshot",
				Arguments: json.RawMessage(`{"url":"https://www.figma.com/design/ABC123/P?node-id=1-42"}`),
			})
			assert.True(t, res.IsError)
			assert.Equal(t, tt.want, res.Content[0].Text)
		})
	}
}

func TestScreenshotTool(t *testing.T) {
	f := newFakeFigma(t, map[string]int{"1": 300})
	d := gateway.New(f.service(nil).Gateway(), gateway.Options{Timeout: 5 * time.Second})

	for _, args := range []string{
		`{"url":"https://www.figma.com/design/ABC123/P?node-id=1-42"}`,
		`{"url":"https://www.figma.com/design/ABC123/P?node-id=1-42","scale":7}`,
		`{"url":"https://www.figma.com/design/ABC123/P?node-id=1-42","scale":"huge"}`,
	} {
		res := d.Dispatch(context.Background(), mcp.CallToolParams{Name: "figma_screenshot", Arguments: json.RawMessage(args)})
		require.False(t, res.IsError, "%s: %+v", args, res.Content)
		require.Len(t, res.Content, 2)

		assert.Equal(t, "image", res.Content[0].Type)
		assert.Equal(t, "image/png", res.Content[0].MimeType)
		assert.Equal(t, 400, len(res.Content[0].Data))

		assert.Equal(t, "text", res.Content[1].Type)
		assert.JSONEq(t, `{"fileKey":"ABC123","nodeId":"1:42","scale":1,"estimatedSizeMB":"0.00"}`, res.Content[1].Text)
		assert.Contains(t, res.Content[1].Text, "\n  \"fileKey\"")
	}
	assert.Equal(t, []string{"1", "1", "1"}, f.requestedScales())
}

func TestScreenshotRequiresURL(t *testing.T) {
	d := gateway.New(New(Options{Token: "t"}).Gateway(), gateway.Options{})

	res := d.Dispatch(context.Background(), mcp.CallToolParams{Name: "figma_screenshot", Arguments: json.RawMessage(`{"scale":1}`)})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "invalid arguments for figma_screenshot")

	res = d.Dispatch(context.Background(), mcp.CallToolParams{Name: "figma_screenshot", Arguments: json.RawMessage(`{"url":"https://www.figma.com/design/ABC"}`)})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: Missing node-id in URL. Please select a specific frame or element in Figma and copy its URL.", res.Content[0].Text)
}

func TestCatalogAdvertisesScaleEnum(t *testing.T) {
	tools := Catalog().List()
	require.Len(t, tools, 1)
	var schema struct {
		Properties struct {
			Scale struct {
				Enum []float64 `json:"enum"`
			} `json:"scale"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(tools[0].InputSchema, &schema))
	assert.Equal(t, []float64{0.5, 1, 2}, schema.Properties.Scale.Enum)
	assert.Equal(t, []string{"url"}, schema.Required)
}
