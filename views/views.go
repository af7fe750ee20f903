// Package views is the default look of a sanitypress site: html/template
// pages embedded in the binary and exposed as templ components.
//
// Sites that want their own markup pass their own sanitypress.ViewFuncs
// instead; this package is only one implementation of it.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/sanitypress"
	"github.com/eringen/sanitypress/portabletext"
	"github.com/eringen/sanitypress/sanity"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"postURL":     sanitypress.PostPath,
	"categoryURL": sanitypress.CategoryPath,
	"tagURL":      sanitypress.TagPath,
	"authorURL":   sanitypress.AuthorPath,
	"formatDate":  sanitypress.FormatDate,
	"imageURL":    sanity.ImageURL,
	"mediaURL":    MediaURL,
	"pageURL":     PageURL,
	"jsonLD":      func(s string) template.JS { return template.JS(s) },
	"doc":         func(v any) sanity.Document { return toDocument(v) },
	"body":        Body,
}

// pages maps a page file to its parsed template set. Every full page runs
// layout.html, which calls the page's "content" block.
var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{
		"home.html", "category.html", "author.html", "post.html", "search.html",
		"moderator.html", "login.html", "notfound.html", "unavailable.html", "error.html",
	} {
		pages[name] = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/comments.html", "templates/"+name))
	}
	pages["comments.html"] = template.Must(template.New("comments.html").Funcs(funcs).ParseFS(templateFS,
		"templates/partials.html", "templates/comments.html"))
}

func page(name string, data any) templ.Component {
	t, ok := pages[name]
	if !ok {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			return fmt.Errorf("views: unknown page %q", name)
		})
	}
	return templ.FromGoHTML(t, data)
}

// Default returns the built-in page set.
func Default() sanitypress.ViewFuncs {
	return sanitypress.ViewFuncs{
		Home:     func(p sanitypress.ListingPage) templ.Component { return page("home.html", p) },
		Tag:      func(p sanitypress.ListingPage) templ.Component { return page("home.html", p) },
		Category: func(p sanitypress.CategoryPage) templ.Component { return page("category.html", p) },
		Author:   func(p sanitypress.AuthorPage) templ.Component { return page("author.html", p) },
		Post:     func(p sanitypress.PostPage) templ.Component { return page("post.html", p) },
		Search:   func(p sanitypress.SearchPage) templ.Component { return page("search.html", p) },
		Comments: func(p sanitypress.CommentsPage) templ.Component { return page("comments.html", p) },
		ModeratorLogin: func(meta sanitypress.PageMeta, showError bool) templ.Component {
			return page("login.html", struct {
				Meta      sanitypress.PageMeta
				ShowError bool
			}{meta, showError})
		},
		Moderator:   func(p sanitypress.ModeratorPage) templ.Component { return page("moderator.html", p) },
		NotFound:    func(meta sanitypress.PageMeta) templ.Component { return page("notfound.html", metaOnly{meta}) },
		Unavailable: func(meta sanitypress.PageMeta) templ.Component { return page("unavailable.html", metaOnly{meta}) },
		ServerError: func(meta sanitypress.PageMeta) templ.Component { return page("error.html", metaOnly{meta}) },
	}
}

type metaOnly struct {
	Meta sanitypress.PageMeta
}

// Body renders a post's block content for the endpoint the page came from.
func Body(endpoint sanity.Endpoint, blocks any) (template.HTML, error) {
	return templ.ToGoHTML(context.Background(), portabletext.Component(blocks, portabletext.Options{
		ImageURL: func(img map[string]any) string {
			return sanity.ImageURL(endpoint, img, 1200)
		},
	}))
}

// MediaURL points at the site's own resized copy of an image field, or ""
// when the field has no usable asset.
func MediaURL(image any, width int) string {
	ref := sanity.ImageAssetRef(image)
	if _, err := sanity.ParseImageRef(ref); err != nil {
		return ""
	}
	return "/media/" + url.PathEscape(ref) + "/?w=" + strconv.Itoa(width)
}

// PageURL sets ?page=n on the current path, keeping other query parameters.
func PageURL(current string, n int) string {
	u, err := url.Parse(current)
	if err != nil {
		return "?page=" + strconv.Itoa(n)
	}
	q := u.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	if s := u.RequestURI(); !strings.HasPrefix(s, "//") {
		return s
	}
	return "/"
}

func toDocument(v any) sanity.Document {
	switch d := v.(type) {
	case sanity.Document:
		return d
	case map[string]any:
		return sanity.Document(d)
	}
	return nil
}
