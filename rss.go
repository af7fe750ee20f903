package sanitypress

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/sanitypress/sanity"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        rssGUID  `xml:"guid"`
	Categories  []string `xml:"category"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

func (a *App) buildFeed(posts []sanity.Document) rssXML {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	var newest time.Time
	for _, p := range posts {
		pubDate := ""
		if t, ok := p.Time("publishedAt"); ok {
			pubDate = t.Format(time.RFC1123Z)
			if t.After(newest) {
				newest = t
			}
		}
		postURL := base + PostPath(p)
		items = append(items, rssItem{
			Title:       p.String("title"),
			Link:        postURL,
			Description: p.String("excerpt"),
			PubDate:     pubDate,
			GUID:        rssGUID{Value: postURL, IsPermaLink: true},
			Categories:  p.Strings("tags"),
		})
	}
	ch := rssChannel{
		Title:       a.Config.Name,
		Link:        BuildURL(base),
		Description: a.Config.Description,
		Language:    "en",
		AtomLink:    atomLink{Href: base + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
		Items:       items,
	}
	if !newest.IsZero() {
		ch.LastBuildDate = newest.Format(time.RFC1123Z)
	}
	return rssXML{Version: "2.0", Atom: "http://www.w3.org/2005/Atom", Channel: ch}
}

func (a *App) renderRSS(c echo.Context, posts []sanity.Document) error {
	return writeXML(c, "application/rss+xml; charset=utf-8", a.buildFeed(posts))
}

// writeXML encodes v into memory first so an encoding failure still reaches
// the error handler.
func writeXML(c echo.Context, contentType string, v any) error {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, append([]byte(xml.Header), out...))
}
