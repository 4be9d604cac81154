package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

func testCatalog() *Catalog {
	return New(
		Entry{Tool: mcp.Tool{
			Name:        "get_issue",
			Description: "Get an issue",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"issueId":{"type":"string"}},"required":["issueId"]}`),
		}},
		Entry{Tool: mcp.Tool{
			Name:        "get_projects",
			Description: "List projects",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}},
		Entry{
			Tool: mcp.Tool{
				Name:        "shot",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"scale":{"type":"number","enum":[0.5,1,2]}},"required":["url"]}`),
			},
			ValidationSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`),
		},
	)
}

func TestListPreservesOrder(t *testing.T) {
	c := testCatalog()
	tools := c.List()
	require.Len(t, tools, 3)
	assert.Equal(t, "get_issue", tools[0].Name)
	assert.Equal(t, "get_projects", tools[1].Name)
	assert.Equal(t, "shot", tools[2].Name)
	assert.Contains(t, string(tools[2].InputSchema), "enum", "advertised schema is untouched")
}

func TestLookupIsExact(t *testing.T) {
	c := testCatalog()
	_, ok := c.Lookup("get_issue")
	assert.True(t, ok)
	_, ok = c.Lookup("GET_ISSUE")
	assert.False(t, ok)
	_, ok = c.Lookup("frobnicate")
	assert.False(t, ok)
}

func TestNewPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		New(Entry{Tool: mcp.Tool{Name: "a"}}, Entry{Tool: mcp.Tool{Name: "a"}})
	})
}

func TestValidate(t *testing.T) {
	c := testCatalog()

	require.NoError(t, c.Validate("get_issue", json.RawMessage(`{"issueId":"ABC-1"}`)))
	require.NoError(t, c.Validate("get_projects", nil))
	require.NoError(t, c.Validate("get_projects", json.RawMessage(`null`)))

	err := c.Validate("get_issue", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrValidation)
	assert.Contains(t, err.Error(), "invalid arguments for get_issue at /")
	assert.Contains(t, err.Error(), "issueId")

	err = c.Validate("get_issue", json.RawMessage(`{"issueId":7}`))
	assert.ErrorIs(t, err, toolerr.ErrValidation)
	assert.Contains(t, err.Error(), "/issueId")

	err = c.Validate("get_issue", json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, toolerr.ErrValidation)

	assert.ErrorIs(t, c.Validate("nope", nil), toolerr.ErrUnknownTool)
}

func TestValidateUsesOverrideSchema(t *testing.T) {
	c := testCatalog()
	assert.NoError(t, c.Validate("shot", json.RawMessage(`{"url":"u","scale":3}`)))
	assert.NoError(t, c.Validate("shot", json.RawMessage(`{"url":"u","scale":"big"}`)))
	assert.ErrorIs(t, c.Validate("shot", json.RawMessage(`{"scale":1}`)), toolerr.ErrValidation)
}

func TestSuggest(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, "get_issue", c.Suggest("get_isue")[0])
	assert.Contains(t, c.Suggest("projects"), "get_projects")
	assert.Empty(t, c.Suggest("frobnicate"))
	assert.Empty(t, c.Suggest(""))
}
