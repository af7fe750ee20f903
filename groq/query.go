// Package groq builds GROQ queries for the Sanity query API.
//
// Untrusted values never become part of the query text. They are bound as
// named parameters ($slug, $id, ...) and sent next to the query, JSON encoded,
// which is how the API expects parameterised queries.
package groq

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	reParamName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reParamRef  = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ErrInvalidQuery is returned by Validate and Values for malformed queries.
var ErrInvalidQuery = errors.New("groq: invalid query")

// Query is a GROQ expression plus the parameters it references.
type Query struct {
	Text   string
	Params map[string]any
}

// New returns a query with no bound parameters.
func New(text string) Query {
	return Query{Text: text}
}

// With returns a copy of q with name bound to value.
func (q Query) With(name string, value any) Query {
	params := make(map[string]any, len(q.Params)+1)
	for k, v := range q.Params {
		params[k] = v
	}
	params[name] = value
	return Query{Text: q.Text, Params: params}
}

// String returns the query text.
func (q Query) String() string {
	return q.Text
}

// Validate checks that the text is non-empty, that every parameter name is a
// legal identifier and that every $name referenced by the text is bound.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	for name := range q.Params {
		if !reParamName.MatchString(name) {
			return fmt.Errorf("%w: bad parameter name %q", ErrInvalidQuery, name)
		}
	}
	for _, name := range q.Referenced() {
		if _, ok := q.Params[name]; !ok {
			return fmt.Errorf("%w: parameter $%s is not bound", ErrInvalidQuery, name)
		}
	}
	return nil
}

// Referenced returns the sorted, deduplicated parameter names used in the text.
func (q Query) Referenced() []string {
	seen := make(map[string]struct{})
	for _, m := range reParamRef.FindAllStringSubmatch(q.Text, -1) {
		seen[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Values encodes q as request parameters: "query" holds the text and each
// bound parameter is sent as "$name" with a JSON encoded value.
func (q Query) Values() (url.Values, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("query", q.Text)
	for name, value := range q.Params {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: encode $%s: %v", ErrInvalidQuery, name, err)
		}
		v.Set("$"+name, string(b))
	}
	return v, nil
}

// Literal renders a trusted string as a GROQ string literal.
func Literal(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
