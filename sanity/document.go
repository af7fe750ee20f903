package sanity

import (
	"encoding/json"
	"strings"
	"time"
)

// Document is an untyped content document. Fields vary by document type and
// are passed through to templates as-is.
type Document map[string]any

// Get walks a dotted path ("category.slug.current") through nested objects.
func (d Document) Get(path string) any {
	var cur any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[key]
		case Document:
			cur = m[key]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// String returns the string at path, or "".
func (d Document) String(path string) string {
	switch v := d.Get(path).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Strings returns the string elements of the array at path.
func (d Document) Strings(path string) []string {
	arr, ok := d.Get(path).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Bool returns the boolean at path; anything else is false.
func (d Document) Bool(path string) bool {
	b, _ := d.Get(path).(bool)
	return b
}

// Map returns the object at path as a Document, or nil.
func (d Document) Map(path string) Document {
	switch v := d.Get(path).(type) {
	case map[string]any:
		return Document(v)
	case Document:
		return v
	default:
		return nil
	}
}

// Docs returns the object elements of the array at path.
func (d Document) Docs(path string) []Document {
	arr, ok := d.Get(path).([]any)
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// Time parses the RFC 3339 timestamp at path.
func (d Document) Time(path string) (time.Time, bool) {
	s := d.String(path)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse("2006-01-02", s); err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// ID returns the document id.
func (d Document) ID() string { return d.String("_id") }

// Type returns the document type.
func (d Document) Type() string { return d.String("_type") }

// Slug returns slug.current.
func (d Document) Slug() string { return d.String("slug.current") }
