// Package catalog holds the fixed set of tools a service advertises and
// validates call arguments against their input schemas.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

// Entry is one catalog tool. ValidationSchema, when set, is used for argument
// checks instead of the advertised InputSchema.
type Entry struct {
	Tool             mcp.Tool
	ValidationSchema json.RawMessage
}

// Catalog is read-only after New.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New builds a catalog in declaration order. Duplicate names panic.
func New(entries ...Entry) *Catalog {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := c.index[e.Tool.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate tool name %q", e.Tool.Name))
		}
		c.index[e.Tool.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c
}

// List returns the advertised descriptors.
func (c *Catalog) List() []mcp.Tool {
	out := make([]mcp.Tool, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Tool
	}
	return out
}

// Lookup is an exact, case-sensitive match.
func (c *Catalog) Lookup(name string) (mcp.Tool, bool) {
	i, ok := c.index[name]
	if !ok {
		return mcp.Tool{}, false
	}
	return c.entries[i].Tool, true
}

// Validate checks args against the tool's schema. Empty or null args count as {}.
func (c *Catalog) Validate(name string, args json.RawMessage) error {
	i, ok := c.index[name]
	if !ok {
		return toolerr.UnknownTool(name)
	}
	e := c.entries[i]
	schema := e.ValidationSchema
	if len(schema) == 0 {
		schema = e.Tool.InputSchema
	}
	if len(schema) == 0 {
		return nil
	}

	var doc any = map[string]any{}
	if trimmed := strings.TrimSpace(string(args)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(args, &doc); err != nil {
			return toolerr.Validation("invalid arguments for %s: %v", name, err)
		}
	}
	return validateArgs(name, schema, doc)
}

// Suggest returns up to three catalog names close to name, best first.
func (c *Catalog) Suggest(name string) []string {
	if name == "" {
		return nil
	}
	type scored struct {
		name string
		dist int
	}
	var hits []scored
	seen := map[string]struct{}{}
	for _, r := range fuzzy.RankFindNormalizedFold(name, c.names()) {
		hits = append(hits, scored{r.Target, r.Distance})
		seen[r.Target] = struct{}{}
	}
	for _, e := range c.entries {
		n := e.Tool.Name
		if _, ok := seen[n]; ok {
			continue
		}
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(n)); d <= 3 {
			hits = append(hits, scored{n, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]string, 0, 3)
	for _, h := range hits {
		if len(out) == 3 {
			break
		}
		out = append(out, h.name)
	}
	return out
}

func (c *Catalog) names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Tool.Name
	}
	return out
}

var schemaCache sync.Map // key -> *jsonschema.Schema

func schemaCacheKey(toolName string, schema json.RawMessage) string {
	sum := sha256.Sum256(schema)
	return toolName + ":" + hex.EncodeToString(sum[:])
}

func compileSchema(toolName string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := schemaCacheKey(toolName, schema)
	if v, ok := schemaCache.Load(key); ok {
		return v.(*jsonschema.Schema), nil
	}
	s, err := jsonschema.CompileString(toolName+".json", string(schema))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, s)
	return s, nil
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}

func validateArgs(toolName string, schema json.RawMessage, args any) error {
	s, err := compileSchema(toolName, schema)
	if err != nil {
		return fmt.Errorf("invalid inputSchema for %s: %w", toolName, err)
	}
	err = s.Validate(args)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return toolerr.Validation("invalid arguments for %s: %v", toolName, err)
	}
	leaf := firstLeafValidationError(ve)
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	msg := leaf.Message
	if msg == "" {
		msg = leaf.Error()
	}
	return toolerr.Validation("invalid arguments for %s at %s: %s", toolName, loc, msg)
}
