//go:build e2e

package youtrack

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/testutil"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

func TestLiveReadOnlyTools(t *testing.T) {
	env := testutil.RequireEnv(t, "YOUTRACK_URL", "YOUTRACK_TOKEN")

	svc := New(Options{URL: env["YOUTRACK_URL"], Token: env["YOUTRACK_TOKEN"]})
	d := gateway.New(svc.Gateway(), gateway.Options{Timeout: 30 * time.Second})
	ctx := context.Background()

	res := d.Dispatch(ctx, mcp.CallToolParams{Name: "get_projects"})
	require.False(t, res.IsError, res.Content[0].Text)
	var projects []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &projects))

	res = d.Dispatch(ctx, mcp.CallToolParams{Name: "search_issues", Arguments: json.RawMessage(`{"query":"#Unresolved","top":3}`)})
	require.False(t, res.IsError, res.Content[0].Text)
	var issues []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &issues))
	assert.LessOrEqual(t, len(issues), 3)

	issueID := os.Getenv("YOUTRACK_E2E_ISSUE")
	if issueID == "" {
		return
	}
	args, _ := json.Marshal(map[string]string{"issueId": issueID})
	for _, name := range []string{"get_issue", "get_issue_comments", "get_issue_activities", "get_issue_attachments"} {
		res = d.Dispatch(ctx, mcp.CallToolParams{Name: name, Arguments: args})
		assert.False(t, res.IsError, "%s: %s", name, res.Content[0].Text)
	}
}
