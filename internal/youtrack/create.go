package youtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/normalize"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/internal/upstream"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

const (
	singleEnumField  = "SingleEnumIssueCustomField"
	multiEnumField   = "MultiEnumIssueCustomField"
	singleUserField  = "SingleUserIssueCustomField"
	singleOwnedField = "SingleOwnedIssueCustomField"
)

type createIssueInput struct {
	Project      string          `json:"project"`
	Summary      string          `json:"summary"`
	Description  string          `json:"description"`
	Type         string          `json:"type"`
	Priority     string          `json:"priority"`
	Assignee     string          `json:"assignee"`
	Tags         []string        `json:"tags"`
	CustomFields json.RawMessage `json:"customFields"`
}

type issueDraft struct {
	Project      projectRef         `json:"project"`
	Summary      string             `json:"summary"`
	Description  string             `json:"description,omitempty"`
	CustomFields []customFieldValue `json:"customFields,omitempty"`
}

type projectRef struct {
	ShortName string `json:"shortName"`
}

type customFieldValue struct {
	Name  string `json:"name"`
	Type  string `json:"$type"`
	Value any    `json:"value"`
}

type nameValue struct {
	Name any `json:"name"`
}

type loginValue struct {
	Login any `json:"login"`
}

func (s *Service) createIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var in createIssueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Project) == "" {
		return nil, toolerr.Validation("project is required")
	}
	if strings.TrimSpace(in.Summary) == "" {
		return nil, toolerr.Validation("summary is required")
	}

	draft, err := buildDraft(in)
	if err != nil {
		return nil, err
	}

	var created normalize.IssueDoc
	err = s.client.Call(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/issues",
		Fields: createdIssueFields,
		Body:   draft,
	}, &created)
	if err != nil {
		return nil, err
	}

	issue := normalize.NewIssue(created)
	warnings := s.attachTags(ctx, issue.ID, in.Tags)
	if len(warnings) == 0 {
		return issue, nil
	}

	body, err := gateway.JSONText(issue)
	if err != nil {
		return nil, err
	}
	return gateway.Result{Content: []mcp.ContentBlock{
		body,
		mcp.TextContent(strings.Join(warnings, "\n")),
	}}, nil
}

func buildDraft(in createIssueInput) (issueDraft, error) {
	d := issueDraft{
		Project:     projectRef{ShortName: in.Project},
		Summary:     in.Summary,
		Description: in.Description,
	}
	if in.Type != "" {
		d.CustomFields = append(d.CustomFields, customFieldValue{Name: "Type", Type: singleEnumField, Value: nameValue{in.Type}})
	}
	if in.Priority != "" {
		d.CustomFields = append(d.CustomFields, customFieldValue{Name: "Priority", Type: singleEnumField, Value: nameValue{in.Priority}})
	}
	if in.Assignee != "" {
		d.CustomFields = append(d.CustomFields, customFieldValue{Name: "Assignee", Type: singleUserField, Value: loginValue{in.Assignee}})
	}

	extra, err := orderedObject(in.CustomFields)
	if err != nil {
		return issueDraft{}, toolerr.Validation("customFields must be an object: %v", err)
	}
	for _, kv := range extra {
		if cf, ok := inferCustomField(kv.key, kv.value); ok {
			d.CustomFields = append(d.CustomFields, cf)
		}
	}
	return d, nil
}

// inferCustomField picks the field $type from the value shape: arrays are
// multi-enum, objects with a login are users, objects with a name are owned
// values, anything else is a single enum named by its string form. Null
// values are skipped.
func inferCustomField(name string, v any) (customFieldValue, bool) {
	switch t := v.(type) {
	case nil:
		return customFieldValue{}, false
	case []any:
		values := make([]nameValue, len(t))
		for i, e := range t {
			values[i] = nameValue{e}
		}
		return customFieldValue{Name: name, Type: multiEnumField, Value: values}, true
	case map[string]any:
		if login := t["login"]; truthy(login) {
			return customFieldValue{Name: name, Type: singleUserField, Value: loginValue{login}}, true
		}
		if n := t["name"]; truthy(n) {
			return customFieldValue{Name: name, Type: singleOwnedField, Value: nameValue{n}}, true
		}
	}
	return customFieldValue{Name: name, Type: singleEnumField, Value: nameValue{stringify(v)}}, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

type keyValue struct {
	key   string
	value any
}

// orderedObject decodes a JSON object keeping key order. Empty or null
// input yields no pairs.
func orderedObject(raw json.RawMessage) ([]keyValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}
	var out []keyValue
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, keyValue{key: key, value: v})
	}
	return out, nil
}

// attachTags adds each tag to the issue. Failures never fail the call; they
// come back as warning lines in tag order.
func (s *Service) attachTags(ctx context.Context, issueID string, tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	failures := make([]string, len(tags))

	var g errgroup.Group
	g.SetLimit(s.tagConcurrency)
	for i, tag := range tags {
		g.Go(func() error {
			err := s.client.Call(ctx, upstream.Request{
				Method: http.MethodPost,
				Path:   "/issues/" + url.PathEscape(issueID) + "/tags",
				Fields: tagFields,
				Body:   nameValue{tag},
			}, nil)
			if err != nil {
				s.logger.Warn("could not add tag", "issue", issueID, "tag", tag, "error", err)
				failures[i] = fmt.Sprintf("Warning: Could not add tag %q: %v", tag, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for _, f := range failures {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
