package figma

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
)

var fileURLPattern = regexp.MustCompile(`figma\.com/(file|design|proto|board)/([a-zA-Z0-9]+)`)

// Locator addresses one node inside a design file.
type Locator struct {
	FileKey string
	NodeID  string
}

// ParseLocator accepts file, design, proto and board links. The node-id
// query parameter is required; its URL form (1-42) becomes the API form (1:42).
func ParseLocator(raw string) (Locator, error) {
	m := fileURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return Locator{}, toolerr.Validation("Invalid Figma URL. Expected format: https://www.figma.com/(file|design|proto|board)/FILE_KEY/...")
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Locator{}, toolerr.Validation("Invalid Figma URL: %v", err)
	}
	nodeID := u.Query().Get("node-id")
	if nodeID == "" {
		return Locator{}, toolerr.Validation("Missing node-id in URL. Please select a specific frame or element in Figma and copy its URL.")
	}

	return Locator{
		FileKey: m[2],
		NodeID:  strings.ReplaceAll(nodeID, "-", ":"),
	}, nil
}
