// Package portabletext renders Sanity block content (Portable Text) as HTML,
// exposed as a templ component.
package portabletext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Options customises rendering of embedded objects.
type Options struct {
	// ImageURL returns the src for an image block. Blocks it maps to "" are
	// skipped. A nil ImageURL skips all images.
	ImageURL func(image map[string]any) string
}

var decorators = map[string][2]string{
	"strong":         {"<strong>", "</strong>"},
	"em":             {"<em>", "</em>"},
	"code":           {"<code>", "</code>"},
	"underline":      {"<u>", "</u>"},
	"strike-through": {"<s>", "</s>"},
}

var blockTags = map[string]string{
	"normal":     "p",
	"h1":         "h1",
	"h2":         "h2",
	"h3":         "h3",
	"h4":         "h4",
	"h5":         "h5",
	"h6":         "h6",
	"blockquote": "blockquote",
}

// Component returns a templ.Component that renders blocks as HTML.
func Component(blocks any, opts Options) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, blocks, opts)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

type openList struct {
	tag    string
	liOpen bool
}

// Render writes the HTML representation of blocks to buf. blocks is the
// decoded JSON array of a block content field; anything else renders nothing.
func Render(buf *bytes.Buffer, blocks any, opts Options) {
	imageCount := 0
	var lists []openList

	closeTop := func() {
		top := lists[len(lists)-1]
		if top.liOpen {
			buf.WriteString("</li>")
		}
		buf.WriteString("</" + top.tag + ">")
		lists = lists[:len(lists)-1]
	}
	flushLists := func() {
		for len(lists) > 0 {
			closeTop()
		}
	}

	for _, block := range asMaps(blocks) {
		typ, _ := block["_type"].(string)

		if typ == "block" {
			if item, _ := block["listItem"].(string); item != "" {
				tag := "ul"
				if item == "number" {
					tag = "ol"
				}
				level := intValue(block["level"], 1)
				for len(lists) > level {
					closeTop()
				}
				if len(lists) == level && lists[len(lists)-1].tag != tag {
					closeTop()
				}
				for len(lists) < level {
					buf.WriteString("<" + tag + ">")
					lists = append(lists, openList{tag: tag})
				}
				top := &lists[len(lists)-1]
				if top.liOpen {
					buf.WriteString("</li>")
				}
				buf.WriteString("<li>")
				writeChildren(buf, block)
				top.liOpen = true
				continue
			}
		}

		flushLists()

		switch typ {
		case "block":
			style, _ := block["style"].(string)
			tag, ok := blockTags[style]
			if !ok {
				tag = "p"
			}
			if tag == "p" && blockText(block) == "" {
				continue
			}
			buf.WriteString("<" + tag + ">")
			writeChildren(buf, block)
			buf.WriteString("</" + tag + ">")
		case "image":
			if opts.ImageURL == nil {
				continue
			}
			src := SafeURL(opts.ImageURL(block))
			if src == "" {
				continue
			}
			imageCount++
			loadAttr := `loading="lazy"`
			if imageCount == 1 {
				loadAttr = `fetchpriority="high"`
			}
			alt, _ := block["alt"].(string)
			buf.WriteString(`<figure><img ` + loadAttr + ` src="` + src + `" alt="` + html.EscapeString(alt) + `" decoding="async"/>`)
			if caption, _ := block["caption"].(string); caption != "" {
				buf.WriteString("<figcaption>" + html.EscapeString(caption) + "</figcaption>")
			}
			buf.WriteString("</figure>")
		case "code":
			code, _ := block["code"].(string)
			lang, _ := block["language"].(string)
			if lang != "" {
				escapedLang := html.EscapeString(lang)
				buf.WriteString("<div class=\"code-block-wrapper\"><span class=\"code-lang code-lang-" + escapedLang + "\">" + escapedLang + "</span>")
				buf.WriteString("<pre class=\"code-block\"><code class=\"language-" + escapedLang + "\">")
			} else {
				buf.WriteString("<pre class=\"code-block\"><code>")
			}
			buf.WriteString(html.EscapeString(code))
			buf.WriteString("</code></pre>")
			if lang != "" {
				buf.WriteString("</div>")
			}
		case "hr":
			buf.WriteString("<hr/>")
		}
	}
	flushLists()
}

// PlainText returns the concatenated span text of blocks, paragraphs
// separated by blank lines.
func PlainText(blocks any) string {
	var parts []string
	for _, block := range asMaps(blocks) {
		if t, _ := block["_type"].(string); t != "block" {
			continue
		}
		if s := blockText(block); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func writeChildren(buf *bytes.Buffer, block map[string]any) {
	defs := make(map[string]map[string]any)
	for _, def := range asMaps(block["markDefs"]) {
		if key, _ := def["_key"].(string); key != "" {
			defs[key] = def
		}
	}
	for _, child := range asMaps(block["children"]) {
		text, _ := child["text"].(string)
		out := strings.ReplaceAll(html.EscapeString(text), "\n", "<br/>")
		marks, _ := child["marks"].([]any)
		for i := len(marks) - 1; i >= 0; i-- {
			mark, _ := marks[i].(string)
			if d, ok := decorators[mark]; ok {
				out = d[0] + out + d[1]
				continue
			}
			def, ok := defs[mark]
			if !ok {
				continue
			}
			if t, _ := def["_type"].(string); t == "link" {
				raw, _ := def["href"].(string)
				href := SafeURL(raw)
				if href == "" {
					continue
				}
				attrs := ""
				if blank, _ := def["blank"].(bool); blank {
					attrs = ` target="_blank" rel="noopener noreferrer"`
				}
				out = `<a href="` + href + `"` + attrs + `>` + out + `</a>`
			}
		}
		buf.WriteString(out)
	}
}

func blockText(block map[string]any) string {
	var sb strings.Builder
	for _, child := range asMaps(block["children"]) {
		text, _ := child["text"].(string)
		sb.WriteString(text)
	}
	return strings.TrimSpace(sb.String())
}

func asMaps(v any) []map[string]any {
	switch arr := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(arr))
		for _, el := range arr {
			if m, ok := el.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case []map[string]any:
		return arr
	default:
		return nil
	}
}

func intValue(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		if n >= 1 {
			return int(n)
		}
	case int:
		if n >= 1 {
			return n
		}
	case interface{ String() string }:
		if i, err := strconv.Atoi(n.String()); err == nil && i >= 1 {
			return i
		}
	}
	return fallback
}

// SafeURL validates and escapes a URL for use in an HTML attribute. Only
// relative, http(s), mailto and tel URLs survive.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		if strings.HasPrefix(val, "//") {
			return ""
		}
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
