// Package youtrack exposes the YouTrack REST API as gateway tools.
package youtrack

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golovatskygroup/mcp-gateway/internal/gateway"
	"github.com/golovatskygroup/mcp-gateway/internal/normalize"
	"github.com/golovatskygroup/mcp-gateway/internal/toolerr"
	"github.com/golovatskygroup/mcp-gateway/internal/upstream"
)

const (
	ServiceName = "youtrack"

	defaultTop = 10
	maxTop     = 100

	defaultTagConcurrency = 4

	apiPath = "/api"
)

type Options struct {
	// URL is the instance root, e.g. https://example.youtrack.cloud.
	URL   string
	Token string

	HTTPClient   *http.Client
	RateLimitRPS float64
	Logger       *slog.Logger
	// TagConcurrency bounds parallel tag attachment in create_issue.
	TagConcurrency int
}

type Service struct {
	client         *upstream.Client
	logger         *slog.Logger
	tagConcurrency int
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	site := strings.TrimRight(opts.URL, "/")
	tc := opts.TagConcurrency
	if tc <= 0 {
		tc = defaultTagConcurrency
	}
	return &Service{
		client: upstream.New(upstream.Options{
			Service:      "YouTrack",
			BaseURL:      site + apiPath,
			Auth:         upstream.Bearer(opts.Token),
			HTTPClient:   opts.HTTPClient,
			RateLimitRPS: opts.RateLimitRPS,
			Logger:       logger,
		}),
		logger:         logger,
		tagConcurrency: tc,
	}
}

// siteURL is the instance root that attachment links are relative to.
func (s *Service) siteURL() string {
	return strings.TrimSuffix(s.client.BaseURL(), apiPath)
}

// Gateway binds the catalog to this service's handlers.
func (s *Service) Gateway() gateway.Service {
	return gateway.Service{
		Name:    ServiceName,
		Catalog: Catalog(),
		Handlers: map[string]gateway.Handler{
			"get_issue":               s.getIssue,
			"get_issue_comments":      s.getIssueComments,
			"get_issue_activities":    s.getIssueActivities,
			"search_issues":           s.searchIssues,
			"get_projects":            s.getProjects,
			"get_issue_attachments":   s.getIssueAttachments,
			"create_issue":            s.createIssue,
			"get_issue_fields_schema": s.getIssueFieldsSchema,
			"find_projects":           s.findProjects,
		},
	}
}

type issueInput struct {
	IssueID string `json:"issueId"`
}

func (in issueInput) path(suffix string) (string, error) {
	id := strings.TrimSpace(in.IssueID)
	if id == "" {
		return "", toolerr.Validation("issueId is required")
	}
	return "/issues/" + url.PathEscape(id) + suffix, nil
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return toolerr.Validation("Invalid input: %v", err)
	}
	return nil
}

func (s *Service) getIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		issueInput
		Fields string `json:"fields"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	path, err := in.path("")
	if err != nil {
		return nil, err
	}
	fields := upstream.Raw(in.Fields)
	if fields == nil {
		fields = issueFields
	}

	var doc normalize.IssueDoc
	if err := s.client.Call(ctx, upstream.Request{Path: path, Fields: fields}, &doc); err != nil {
		return nil, err
	}
	return normalize.NewIssue(doc), nil
}

func (s *Service) getIssueComments(ctx context.Context, args json.RawMessage) (any, error) {
	var in issueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	path, err := in.path("/comments")
	if err != nil {
		return nil, err
	}

	var docs []normalize.CommentDoc
	if err := s.client.Call(ctx, upstream.Request{Path: path, Fields: commentFields}, &docs); err != nil {
		return nil, err
	}
	return normalize.NewComments(docs), nil
}

func (s *Service) getIssueActivities(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		issueInput
		Categories string `json:"categories"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	path, err := in.path("/activities")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if c := strings.TrimSpace(in.Categories); c != "" {
		q.Set("categories", c)
	}

	var docs []normalize.ActivityDoc
	if err := s.client.Call(ctx, upstream.Request{Path: path, Query: q, Fields: activityFields}, &docs); err != nil {
		return nil, err
	}
	return normalize.NewActivities(docs), nil
}

// pageBounds applies the search paging defaults: top falls back to 10 when
// absent or below 1 and is capped at 100; negative skips become 0.
func pageBounds(top, skip *float64) (int, int) {
	t := defaultTop
	if top != nil && *top >= 1 {
		t = int(math.Min(math.Floor(*top), maxTop))
	}
	k := 0
	if skip != nil && *skip > 0 {
		k = int(math.Floor(*skip))
	}
	return t, k
}

func (s *Service) searchIssues(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query string   `json:"query"`
		Top   *float64 `json:"top"`
		Skip  *float64 `json:"skip"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	top, skip := pageBounds(in.Top, in.Skip)

	q := url.Values{}
	q.Set("query", in.Query)
	q.Set("$top", strconv.Itoa(top))
	q.Set("$skip", strconv.Itoa(skip))

	var docs []normalize.IssueDoc
	if err := s.client.Call(ctx, upstream.Request{Path: "/issues", Query: q, Fields: searchFields}, &docs); err != nil {
		return nil, err
	}
	return normalize.NewIssues(docs), nil
}

func (s *Service) listProjects(ctx context.Context) ([]normalize.ProjectDoc, error) {
	var docs []normalize.ProjectDoc
	if err := s.client.Call(ctx, upstream.Request{Path: "/admin/projects", Fields: projectFields}, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Service) getProjects(ctx context.Context, _ json.RawMessage) (any, error) {
	docs, err := s.listProjects(ctx)
	if err != nil {
		return nil, err
	}
	return normalize.NewProjects(docs), nil
}

func (s *Service) getIssueAttachments(ctx context.Context, args json.RawMessage) (any, error) {
	var in issueInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	path, err := in.path("/attachments")
	if err != nil {
		return nil, err
	}

	var docs []normalize.AttachmentDoc
	if err := s.client.Call(ctx, upstream.Request{Path: path, Fields: attachmentFields}, &docs); err != nil {
		return nil, err
	}
	return normalize.NewAttachments(s.siteURL(), docs), nil
}

func (s *Service) getIssueFieldsSchema(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Project string `json:"project"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	project := strings.TrimSpace(in.Project)
	if project == "" {
		return nil, toolerr.Validation("project is required")
	}

	q := url.Values{}
	q.Set("query", project)
	var matches []normalize.ProjectDoc
	if err := s.client.Call(ctx, upstream.Request{Path: "/admin/projects", Query: q, Fields: projectRefFields}, &matches); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, toolerr.NotFound("Project %q not found", in.Project)
	}
	p := pickProject(matches, project)

	var cfs []normalize.ProjectCustomFieldDoc
	path := "/admin/projects/" + url.PathEscape(p.ID) + "/customFields"
	if err := s.client.Call(ctx, upstream.Request{Path: path, Fields: projectCustomFieldFields}, &cfs); err != nil {
		return nil, err
	}
	return normalize.NewFieldsSchema(p, cfs), nil
}

// pickProject prefers an exact short-name match over the first query hit.
func pickProject(matches []normalize.ProjectDoc, shortName string) normalize.ProjectDoc {
	for _, m := range matches {
		if strings.EqualFold(m.ShortName, shortName) {
			return m
		}
	}
	return matches[0]
}

func (s *Service) findProjects(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query           string `json:"query"`
		IncludeArchived bool   `json:"includeArchived"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	docs, err := s.listProjects(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(in.Query))
	out := make([]normalize.Project, 0, len(docs))
	for _, d := range docs {
		if d.Archived && !in.IncludeArchived {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Name), query) &&
			!strings.Contains(strings.ToLower(d.ShortName), query) {
			continue
		}
		out = append(out, normalize.NewProject(d))
	}
	return out, nil
}
