package sanitypress

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/sanitypress/sanity"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	segs := make([]string, len(pathSegments))
	for i, s := range pathSegments {
		segs[i] = strings.Trim(s, "/")
	}
	u.Path = path.Join(u.Path, path.Join(segs...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PathEscape escapes a string for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// PostPath returns the site path of a post: /<category>/<slug>/ when both
// slugs are known, else /post/<id>/.
func PostPath(post sanity.Document) string {
	cat := post.String("category.slug.current")
	slug := post.Slug()
	if cat != "" && slug != "" {
		return "/" + url.PathEscape(cat) + "/" + url.PathEscape(slug) + "/"
	}
	return "/post/" + url.PathEscape(post.ID()) + "/"
}

// CategoryPath returns the site path of a category document.
func CategoryPath(category sanity.Document) string {
	return "/" + url.PathEscape(category.Slug()) + "/"
}

// AuthorPath returns the site path of an author document.
func AuthorPath(author sanity.Document) string {
	return "/author/" + url.PathEscape(author.Slug()) + "/"
}

// TagPath returns the site path listing posts with tag.
func TagPath(tag string) string {
	return "/tag/" + url.PathEscape(tag) + "/"
}

// FormatDate renders an ISO timestamp or date as "January 2, 2006", or ""
// when it cannot be parsed.
func FormatDate(s string) string {
	t, ok := parseDate(s)
	if !ok {
		return ""
	}
	return t.Format("January 2, 2006")
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewPagination describes page of total items split into pages of size.
// Page numbers start at 1 and are clamped to the available range.
func NewPagination(total, page, size int) Pagination {
	if size <= 0 {
		size = 1
	}
	pages := (total + size - 1) / size
	if page < 1 {
		page = 1
	}
	if last := max(pages, 1); page > last {
		page = last
	}
	return Pagination{CurrentPage: page, PageSize: size, TotalPages: pages, TotalItems: total}
}

// Offset returns the index of the first item on the page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.PageSize
}

// Paginate returns the requested page of items.
func Paginate[T any](items []T, page, size int) ([]T, Pagination) {
	p := NewPagination(len(items), page, size)
	start := p.Offset()
	if start >= len(items) {
		return []T{}, p
	}
	end := min(start+p.PageSize, len(items))
	return items[start:end], p
}

// positiveInt parses s as a positive integer, falling back to def.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
		"potentialAction": map[string]string{
			"@type":       "SearchAction",
			"target":      BuildURL(cfg.URL, "search") + "?q={query}",
			"query-input": "required name=query",
		},
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return marshalJSONLD(data)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post sanity.Document, cfg SiteConfig) string {
	postURL := strings.TrimSuffix(cfg.URL, "/") + PostPath(post)
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    post.String("title"),
		"description": post.String("excerpt"),
		"url":         postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if published := post.String("publishedAt"); published != "" {
		data["datePublished"] = published
	}
	if updated := post.String("_updatedAt"); updated != "" {
		data["dateModified"] = updated
	}
	if img := sanity.ImageURL(cfg.Sanity, post.Get("hero"), 1200); img != "" {
		data["image"] = img
	}
	if name := post.String("author.name"); name != "" {
		person := map[string]string{"@type": "Person", "name": name}
		if post.String("author.slug.current") != "" {
			person["url"] = strings.TrimSuffix(cfg.URL, "/") + AuthorPath(post.Map("author"))
		}
		data["author"] = person
	} else if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if tags := post.Strings("tags"); len(tags) > 0 {
		data["keywords"] = strings.Join(tags, ", ")
	}
	return marshalJSONLD(data)
}

func marshalJSONLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
