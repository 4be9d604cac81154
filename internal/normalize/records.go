package normalize

// Upstream documents. Only the projected fields are declared.

type IssueDoc struct {
	ID           string           `json:"id"`
	IDReadable   string           `json:"idReadable"`
	Summary      string           `json:"summary"`
	Description  *string          `json:"description"`
	Created      int64            `json:"created"`
	Updated      int64            `json:"updated"`
	Resolved     int64            `json:"resolved"`
	Reporter     *UserRef         `json:"reporter"`
	Assignee     *UserRef         `json:"assignee"`
	State        *NamedRef        `json:"state"`
	Priority     *NamedRef        `json:"priority"`
	Type         *NamedRef        `json:"type"`
	Tags         []NamedRef       `json:"tags"`
	CustomFields []CustomFieldDoc `json:"customFields"`
}

type CustomFieldDoc struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type CommentDoc struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Created int64    `json:"created"`
	Updated int64    `json:"updated"`
	Author  *UserRef `json:"author"`
	Deleted bool     `json:"deleted"`
}

type ActivityDoc struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Author    *UserRef `json:"author"`
	Category  *struct {
		ID string `json:"id"`
	} `json:"category"`
	Target *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		Name string `json:"name"`
	} `json:"target"`
	Field   *NamedRef `json:"field"`
	Added   any       `json:"added"`
	Removed any       `json:"removed"`
}

type AttachmentDoc struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnailURL"`
	Size         int64    `json:"size"`
	MimeType     *string  `json:"mimeType"`
	Extension    string   `json:"extension"`
	MetaData     any      `json:"metaData"`
	Created      int64    `json:"created"`
	Author       *UserRef `json:"author"`
}

type ProjectDoc struct {
	ID          string   `json:"id"`
	ShortName   string   `json:"shortName"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Archived    bool     `json:"archived"`
	Leader      *UserRef `json:"leader"`
}

type ProjectCustomFieldDoc struct {
	ID    string `json:"id"`
	Field *struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		FieldType *struct {
			ID           string `json:"id"`
			Presentation string `json:"presentation"`
		} `json:"fieldType"`
	} `json:"field"`
	CanBeEmpty     bool    `json:"canBeEmpty"`
	EmptyFieldText *string `json:"emptyFieldText"`
	Bundle         *struct {
		ID     string          `json:"id"`
		Values []BundleValueDoc `json:"values"`
	} `json:"bundle"`
}

type BundleValueDoc struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Login       string `json:"login"`
	FullName    string `json:"fullName"`
}

// Records.

type Issue struct {
	ID           string         `json:"id"`
	Summary      string         `json:"summary"`
	Description  *string        `json:"description"`
	State        *string        `json:"state"`
	Priority     *string        `json:"priority"`
	Type         *string        `json:"type"`
	Reporter     *string        `json:"reporter"`
	Assignee     *string        `json:"assignee"`
	Created      *string        `json:"created"`
	Updated      *string        `json:"updated"`
	Resolved     *string        `json:"resolved"`
	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

type Comment struct {
	ID      string  `json:"id"`
	Author  string  `json:"author"`
	Created *string `json:"created"`
	Updated *string `json:"updated"`
	Text    string  `json:"text"`
}

type Activity struct {
	ID        string  `json:"id"`
	Timestamp *string `json:"timestamp"`
	Author    string  `json:"author"`
	Category  string  `json:"category,omitempty"`
	Field     string  `json:"field,omitempty"`
	Added     any     `json:"added"`
	Removed   any     `json:"removed"`
	Target    string  `json:"target,omitempty"`
}

type Attachment struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	ThumbnailURL *string `json:"thumbnailURL"`
	Size         int64   `json:"size"`
	MimeType     *string `json:"mimeType"`
	Extension    string  `json:"extension,omitempty"`
	MetaData     any     `json:"metaData,omitempty"`
	Created      *string `json:"created"`
	Author       *string `json:"author"`
}

type Project struct {
	ID          string  `json:"id"`
	ShortName   string  `json:"shortName"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Archived    bool    `json:"archived"`
	Leader      *string `json:"leader"`
}

type ProjectRef struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	Name      string `json:"name"`
}

// FieldsSchema describes the custom fields an issue in a project can carry.
type FieldsSchema struct {
	Project ProjectRef    `json:"project"`
	Fields  []FieldSchema `json:"fields"`
}

type FieldSchema struct {
	Name      string       `json:"name,omitempty"`
	Type      string       `json:"type"`
	Required  bool         `json:"required"`
	EmptyText *string      `json:"emptyText,omitempty"`
	Values    []FieldValue `json:"values,omitempty"`
}

type FieldValue struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Login       string `json:"login,omitempty"`
	FullName    string `json:"fullName,omitempty"`
}

// Conversions.

func NewIssue(d IssueDoc) Issue {
	id := d.IDReadable
	if id == "" {
		id = d.ID
	}
	out := Issue{
		ID:          id,
		Summary:     d.Summary,
		Description: d.Description,
		State:       refName(d.State),
		Priority:    refName(d.Priority),
		Type:        refName(d.Type),
		Reporter:    DisplayName(d.Reporter),
		Assignee:    DisplayName(d.Assignee),
		Created:     Timestamp(d.Created),
		Updated:     Timestamp(d.Updated),
		Resolved:    Timestamp(d.Resolved),
		Tags:        make([]string, 0, len(d.Tags)),
	}
	for _, t := range d.Tags {
		out.Tags = append(out.Tags, t.Name)
	}
	if len(d.CustomFields) > 0 {
		out.CustomFields = make(map[string]any, len(d.CustomFields))
		for _, f := range d.CustomFields {
			out.CustomFields[f.Name] = Collapse(f.Value)
		}
	}
	return out
}

func NewIssues(docs []IssueDoc) []Issue {
	out := make([]Issue, 0, len(docs))
	for _, d := range docs {
		out = append(out, NewIssue(d))
	}
	return out
}

// NewComments drops deleted comments.
func NewComments(docs []CommentDoc) []Comment {
	out := make([]Comment, 0, len(docs))
	for _, d := range docs {
		if d.Deleted {
			continue
		}
		out = append(out, Comment{
			ID:      d.ID,
			Author:  displayNameOr(d.Author, "Unknown"),
			Created: Timestamp(d.Created),
			Updated: Timestamp(d.Updated),
			Text:    d.Text,
		})
	}
	return out
}

func NewActivities(docs []ActivityDoc) []Activity {
	out := make([]Activity, 0, len(docs))
	for _, d := range docs {
		a := Activity{
			ID:        d.ID,
			Timestamp: Timestamp(d.Timestamp),
			Author:    displayNameOr(d.Author, "System"),
			Added:     Collapse(d.Added),
			Removed:   Collapse(d.Removed),
		}
		if d.Category != nil {
			a.Category = d.Category.ID
		}
		if d.Field != nil {
			a.Field = d.Field.Name
		}
		if d.Target != nil {
			a.Target = d.Target.Text
			if a.Target == "" {
				a.Target = d.Target.Name
			}
		}
		out = append(out, a)
	}
	return out
}

// NewAttachments makes attachment links absolute against baseURL.
func NewAttachments(baseURL string, docs []AttachmentDoc) []Attachment {
	out := make([]Attachment, 0, len(docs))
	for _, d := range docs {
		a := Attachment{
			ID:        d.ID,
			Name:      d.Name,
			URL:       baseURL + d.URL,
			Size:      d.Size,
			MimeType:  d.MimeType,
			Extension: d.Extension,
			MetaData:  d.MetaData,
			Created:   Timestamp(d.Created),
			Author:    DisplayName(d.Author),
		}
		if d.ThumbnailURL != "" {
			thumb := baseURL + d.ThumbnailURL
			a.ThumbnailURL = &thumb
		}
		out = append(out, a)
	}
	return out
}

func NewProject(d ProjectDoc) Project {
	return Project{
		ID:          d.ID,
		ShortName:   d.ShortName,
		Name:        d.Name,
		Description: d.Description,
		Archived:    d.Archived,
		Leader:      DisplayName(d.Leader),
	}
}

func NewProjects(docs []ProjectDoc) []Project {
	out := make([]Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, NewProject(d))
	}
	return out
}

func NewFieldsSchema(project ProjectDoc, docs []ProjectCustomFieldDoc) FieldsSchema {
	out := FieldsSchema{
		Project: ProjectRef{ID: project.ID, ShortName: project.ShortName, Name: project.Name},
		Fields:  make([]FieldSchema, 0, len(docs)),
	}
	for _, d := range docs {
		fs := FieldSchema{
			Required:  !d.CanBeEmpty,
			EmptyText: d.EmptyFieldText,
		}
		if d.Field != nil {
			fs.Name = d.Field.Name
			if ft := d.Field.FieldType; ft != nil {
				fs.Type = ft.Presentation
				if fs.Type == "" {
					fs.Type = ft.ID
				}
			}
		}
		if d.Bundle != nil {
			for _, v := range d.Bundle.Values {
				fs.Values = append(fs.Values, FieldValue{
					Name:        v.Name,
					Description: v.Description,
					Login:       v.Login,
					FullName:    v.FullName,
				})
			}
		}
		out.Fields = append(out.Fields, fs)
	}
	return out
}
