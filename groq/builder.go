package groq

import (
	"strconv"
	"strings"
)

// Builder assembles a filter/order/slice/projection pipeline over all
// documents (`*[...]`). Filters are joined with &&.
type Builder struct {
	filters    []string
	params     map[string]any
	order      []string
	slice      string
	projection string
}

// Select starts a builder filtered to documents of the given type.
func Select(docType string) *Builder {
	b := &Builder{params: make(map[string]any)}
	return b.Where("_type == " + Literal(docType))
}

// Where appends a trusted filter expression.
func (b *Builder) Where(expr string) *Builder {
	b.filters = append(b.filters, expr)
	return b
}

// Eq appends `field == $param` and binds value to param.
func (b *Builder) Eq(field, param string, value any) *Builder {
	b.params[param] = value
	return b.Where(field + " == $" + param)
}

// Bind binds value to $name without adding a filter.
func (b *Builder) Bind(name string, value any) *Builder {
	b.params[name] = value
	return b
}

// Order sets the ordering expressions, e.g. "publishedAt desc".
func (b *Builder) Order(exprs ...string) *Builder {
	b.order = exprs
	return b
}

// First selects the first matching document.
func (b *Builder) First() *Builder {
	b.slice = "[0]"
	return b
}

// Slice selects the documents in [start, end).
func (b *Builder) Slice(start, end int) *Builder {
	b.slice = "[" + strconv.Itoa(start) + "..." + strconv.Itoa(end) + "]"
	return b
}

// Project sets the projection, including its braces.
func (b *Builder) Project(p string) *Builder {
	b.projection = p
	return b
}

// Query renders the pipeline.
func (b *Builder) Query() Query {
	var sb strings.Builder
	sb.WriteString("*[")
	sb.WriteString(strings.Join(b.filters, " && "))
	sb.WriteString("]")
	if len(b.order) > 0 {
		sb.WriteString(" | order(")
		sb.WriteString(strings.Join(b.order, ", "))
		sb.WriteString(")")
		if b.slice != "" {
			sb.WriteString(" ")
		}
	}
	sb.WriteString(b.slice)
	if b.projection != "" {
		sb.WriteString(b.projection)
	}

	q := Query{Text: sb.String()}
	if len(b.params) > 0 {
		q.Params = make(map[string]any, len(b.params))
		for k, v := range b.params {
			q.Params[k] = v
		}
	}
	return q
}
