package sanitypress

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/eringen/sanitypress/sanity"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func lastMod(d sanity.Document) string {
	if t, ok := d.Time("_updatedAt"); ok {
		return t.UTC().Format("2006-01-02")
	}
	return ""
}

func (a *App) buildSitemap(categories, posts []sanity.Document) sitemapURLSet {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, cat := range categories {
		if cat.Slug() == "" {
			continue
		}
		urls = append(urls, sitemapURL{Loc: base + CategoryPath(cat), LastMod: lastMod(cat)})
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{Loc: base + PostPath(p), LastMod: lastMod(p)})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, categories, posts []sanity.Document) error {
	return writeXML(c, "application/xml; charset=utf-8", a.buildSitemap(categories, posts))
}
