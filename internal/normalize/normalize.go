// Package normalize reshapes issue-tracker payloads into flat records.
//
// Nested references (users, enum options, tags) collapse to one display
// string; epoch-millisecond timestamps become ISO-8601 UTC strings.
package normalize

import (
	"time"
)

// isoMillis is the timestamp layout used in every record.
const isoMillis = "2006-01-02T15:04:05.000Z"

// collapseKeys is the display precedence for reference objects.
var collapseKeys = []string{"fullName", "name", "login", "text"}

// Collapse reduces a reference value to its display string. Lists collapse
// element-wise; objects without any display key and scalars pass through.
func Collapse(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Collapse(e)
		}
		return out
	case map[string]any:
		for _, k := range collapseKeys {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
		return t
	default:
		return v
	}
}

// UserRef is a user reference as returned with `(login,fullName)` projections.
type UserRef struct {
	Login    string `json:"login"`
	FullName string `json:"fullName"`
}

// DisplayName prefers the full name, then the login. Nil when neither is set.
func DisplayName(u *UserRef) *string {
	if u == nil {
		return nil
	}
	if u.FullName != "" {
		return &u.FullName
	}
	if u.Login != "" {
		return &u.Login
	}
	return nil
}

func displayNameOr(u *UserRef, fallback string) string {
	if s := DisplayName(u); s != nil {
		return *s
	}
	return fallback
}

// Timestamp renders epoch milliseconds; zero means absent.
func Timestamp(ms int64) *string {
	if ms == 0 {
		return nil
	}
	s := time.UnixMilli(ms).UTC().Format(isoMillis)
	return &s
}

// NamedRef is an enum-like reference carrying only a name.
type NamedRef struct {
	Name string `json:"name"`
}

func refName(r *NamedRef) *string {
	if r == nil || r.Name == "" {
		return nil
	}
	return &r.Name
}
