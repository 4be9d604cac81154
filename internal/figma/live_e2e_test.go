//go:build e2e

package figma

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/testutil"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

func TestLiveScreenshot(t *testing.T) {
	env := testutil.RequireEnv(t, "FIGMA_TOKEN", "FIGMA_E2E_URL")

	d := gateway.New(New(Options{Token: env["FIGMA_TOKEN"]}).Gateway(), gateway.Options{Timeout: 60 * time.Second})
	args, _ := json.Marshal(map[string]any{"url": env["FIGMA_E2E_URL"], "scale": 2})

	res := d.Dispatch(context.Background(), mcp.CallToolParams{Name: "figma_screenshot", Arguments: args})
	require.False(t, res.IsError, res.Content[0].Text)
	require.Len(t, res.Content, 2)
	assert.Equal(t, "image", res.Content[0].Type)
	assert.NotEmpty(t, res.Content[0].Data)

	var meta struct {
		Scale float64 `json:"scale"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content[1].Text), &meta))
	assert.Contains(t, []float64{0.5, 1, 2}, meta.Scale)
}
