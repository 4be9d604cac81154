package upstream

import "strings"

// Field is one entry of a field projection; Sub lists nested fields.
type Field struct {
	Name string
	Sub  Fields
}

// Fields is a projection descriptor rendered in the `a,b(c,d)` syntax the
// issue tracker expects in its `fields` query parameter.
type Fields []Field

// Names builds a flat projection.
func Names(names ...string) Fields {
	out := make(Fields, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n})
	}
	return out
}

// Nested returns a field with sub-fields, e.g. Nested("author", "login", "fullName").
func Nested(name string, sub ...string) Field {
	return Field{Name: name, Sub: Names(sub...)}
}

// NestedFields is Nested for sub-projections that nest further.
func NestedFields(name string, sub Fields) Field {
	return Field{Name: name, Sub: sub}
}

// Raw wraps a caller-supplied projection string verbatim.
func Raw(spec string) Fields {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	return Fields{{Name: spec}}
}

// With returns a copy of f with extra fields appended.
func (f Fields) With(extra ...Field) Fields {
	out := make(Fields, 0, len(f)+len(extra))
	out = append(out, f...)
	return append(out, extra...)
}

func (f Fields) String() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

func (f Fields) render(sb *strings.Builder) {
	for i, field := range f {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(field.Name)
		if len(field.Sub) > 0 {
			sb.WriteByte('(')
			field.Sub.render(sb)
			sb.WriteByte(')')
		}
	}
}
