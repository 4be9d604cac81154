package youtrack

import "github.com/golovatskygroup/mcp-gateway/internal/upstream"

var (
	referenceValue = upstream.Nested("value", "name", "text", "login", "fullName")

	searchFields = upstream.Names("id", "idReadable", "summary", "description", "created", "updated").With(
		upstream.Nested("reporter", "login", "fullName"),
		upstream.Nested("assignee", "login", "fullName"),
		upstream.Nested("state", "name"),
		upstream.Nested("priority", "name"),
		upstream.Nested("type", "name"),
	)

	issueFields = upstream.Names("id", "idReadable", "summary", "description", "created", "updated", "resolved").With(
		upstream.Nested("reporter", "login", "fullName"),
		upstream.Nested("assignee", "login", "fullName"),
		upstream.Nested("state", "name"),
		upstream.Nested("priority", "name"),
		upstream.Nested("type", "name"),
		upstream.Nested("tags", "name"),
		upstream.NestedFields("customFields", upstream.Names("name").With(referenceValue)),
	)

	createdIssueFields = upstream.Names("id", "idReadable", "summary", "description", "created").With(
		upstream.Nested("reporter", "login", "fullName"),
		upstream.Nested("assignee", "login", "fullName"),
		upstream.Nested("state", "name"),
		upstream.Nested("priority", "name"),
		upstream.Nested("type", "name"),
		upstream.NestedFields("customFields", upstream.Names("name").With(referenceValue)),
	)

	commentFields = upstream.Names("id", "text", "created", "updated").With(
		upstream.Nested("author", "login", "fullName"),
		upstream.Field{Name: "deleted"},
	)

	activityFields = upstream.Names("id", "timestamp").With(
		upstream.Nested("author", "login", "fullName"),
		upstream.Nested("category", "id"),
		upstream.Nested("target", "id", "text", "name"),
		upstream.Nested("field", "name"),
		upstream.Nested("added", "name", "text", "login", "fullName"),
		upstream.Nested("removed", "name", "text", "login", "fullName"),
	)

	projectFields = upstream.Names("id", "name", "shortName", "description", "archived").With(
		upstream.Nested("leader", "login", "fullName"),
	)

	projectRefFields = upstream.Names("id", "shortName", "name")

	attachmentFields = upstream.Names("id", "name", "url", "size", "mimeType", "extension", "thumbnailURL", "metaData", "created").With(
		upstream.Nested("author", "login", "fullName"),
	)

	projectCustomFieldFields = upstream.Names("id").With(
		upstream.NestedFields("field", upstream.Names("id", "name").With(upstream.Nested("fieldType", "id", "presentation"))),
		upstream.Field{Name: "canBeEmpty"},
		upstream.Field{Name: "emptyFieldText"},
		upstream.NestedFields("bundle", upstream.Names("id").With(
			upstream.NestedFields("values", upstream.Names("id", "name", "description", "login", "fullName").With(
				upstream.Nested("color", "id", "background", "foreground"),
			)),
		)),
	)

	tagFields = upstream.Names("id", "name")
)
