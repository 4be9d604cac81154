package youtrack

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-gateway/internal/catalog"
	"github.com/golovatskygroup/mcp-gateway/pkg/mcp"
)

const issueIDProperty = `"issueId": {"type": "string", "description": "The issue ID (e.g., 'PROJECT-123')"}`

var toolEntries = []catalog.Entry{
	{Tool: mcp.Tool{
		Name:        "get_issue",
		Description: "Retrieve a YouTrack issue by its ID. Returns issue details including summary, description, state, assignee, and custom fields.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				` + issueIDProperty + `,
				"fields": {"type": "string", "description": "Comma-separated list of fields to return. Default: id,idReadable,summary,description,state,assignee,reporter,created,updated,resolved,priority,type,tags,customFields"}
			},
			"required": ["issueId"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "get_issue_comments",
		Description: "Retrieve all comments for a YouTrack issue.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				` + issueIDProperty + `
			},
			"required": ["issueId"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "get_issue_activities",
		Description: "Retrieve the activity history for a YouTrack issue. Shows changes like status updates, assignments, comments, etc.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				` + issueIDProperty + `,
				"categories": {"type": "string", "description": "Comma-separated activity categories to filter. Options: CommentsCategory, AttachmentsCategory, CustomFieldCategory, DescriptionCategory, IssueCreatedCategory, IssueResolvedCategory, LinksCategory, ProjectCategory, SprintCategory, SummaryCategory, TagsCategory, VotersCategory, WorkItemCategory"}
			},
			"required": ["issueId"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "search_issues",
		Description: "Search for YouTrack issues using a query. Uses YouTrack query syntax.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "YouTrack search query (e.g., 'project: MyProject state: Open', 'assignee: me', '#unresolved')"},
				"top": {"type": "number", "description": "Maximum number of issues to return (default: 10, max: 100)"},
				"skip": {"type": "number", "description": "Number of issues to skip for pagination (default: 0)"}
			},
			"required": ["query"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "get_projects",
		Description: "List all accessible YouTrack projects.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"required": []
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "get_issue_attachments",
		Description: "Retrieve all attachments for a YouTrack issue. Returns attachment details including name, URL, size, and mime type.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				` + issueIDProperty + `
			},
			"required": ["issueId"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "create_issue",
		Description: "Create a new YouTrack issue in a specified project. Returns the created issue details including its ID.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "The project short name where the issue will be created (e.g., 'VASCO', 'PROJECT')"},
				"summary": {"type": "string", "description": "The issue title/summary"},
				"description": {"type": "string", "description": "The issue description (supports markdown)"},
				"type": {"type": "string", "description": "The issue type (e.g., 'Bug', 'Feature', 'Task'). Must match available types in the project."},
				"priority": {"type": "string", "description": "The issue priority (e.g., 'Critical', 'Major', 'Normal', 'Minor'). Must match available priorities in the project."},
				"assignee": {"type": "string", "description": "The login of the user to assign the issue to"},
				"tags": {"type": "array", "items": {"type": "string"}, "description": "List of tag names to add to the issue"},
				"customFields": {"type": "object", "description": "Additional custom fields as key-value pairs. Use get_issue_fields_schema to discover available fields."}
			},
			"required": ["project", "summary"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "get_issue_fields_schema",
		Description: "Get the schema of available fields for a project. Returns all custom fields with their types and possible values (enums, users, teams, etc.). Use this before creating an issue to know what fields are available.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "The project short name (e.g., 'VASCO', 'PROJECT')"}
			},
			"required": ["project"]
		}`),
	}},
	{Tool: mcp.Tool{
		Name:        "find_projects",
		Description: "Search for YouTrack projects by name or short name. Returns matching projects with their details.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query to filter projects by name or short name"},
				"includeArchived": {"type": "boolean", "description": "Include archived projects in results (default: false)"}
			},
			"required": []
		}`),
	}},
}

// Catalog returns the issue-tracker tool catalog. It needs no credentials.
func Catalog() *catalog.Catalog {
	return catalog.New(toolEntries...)
}
