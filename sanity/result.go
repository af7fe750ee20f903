package sanity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result is the "result" member of a query response. A query may yield a
// sequence, a single document, a scalar, or nothing at all.
type Result struct {
	raw   json.RawMessage
	value any
}

// NewResult decodes raw into a Result. Empty input and JSON null both yield
// an empty result.
func NewResult(raw []byte) (Result, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Result{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	return Result{raw: append(json.RawMessage(nil), raw...), value: v}, nil
}

// Raw returns the undecoded JSON, or nil for an absent result.
func (r Result) Raw() json.RawMessage {
	return r.raw
}

// Value returns the decoded value.
func (r Result) Value() any {
	return r.value
}

// Empty reports whether the result is absent, null or an empty sequence.
func (r Result) Empty() bool {
	switch v := r.value.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// Items returns the result as a sequence of documents. A single document
// becomes a one-element sequence; non-object elements are skipped.
func (r Result) Items() []Document {
	switch v := r.value.(type) {
	case []any:
		docs := make([]Document, 0, len(v))
		for _, el := range v {
			if m, ok := el.(map[string]any); ok {
				docs = append(docs, Document(m))
			}
		}
		return docs
	case map[string]any:
		return []Document{Document(v)}
	default:
		return []Document{}
	}
}

// Item returns the single document the result stands for: the object itself,
// or the first element of a sequence. ok is false when there is none.
func (r Result) Item() (Document, bool) {
	switch v := r.value.(type) {
	case map[string]any:
		return Document(v), true
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		m, ok := v[0].(map[string]any)
		return Document(m), ok
	default:
		return nil, false
	}
}

// Decode unmarshals the raw result into v.
func (r Result) Decode(v any) error {
	if len(r.raw) == 0 {
		return nil
	}
	return json.Unmarshal(r.raw, v)
}
