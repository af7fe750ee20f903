package sanitypress

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress/groq"
	"github.com/eringen/sanitypress/sanity"
)

const maxPageSize = 50

// fetch runs q for the current request, switching to drafts while preview
// mode is on.
func (a *App) fetch(c echo.Context, q groq.Query) (sanity.Result, error) {
	var opts []sanity.FetchOption
	if a.IsPreview(c) {
		opts = append(opts,
			sanity.WithPerspective(sanity.PerspectiveDrafts),
			sanity.WithToken(a.Config.ReadToken),
		)
	}
	return a.Content.Fetch(c.Request().Context(), q, opts...)
}

// pageMeta fills the site-wide fields of PageMeta. path is the canonical
// site path of the page.
func (a *App) pageMeta(c echo.Context, title, description, path string) PageMeta {
	if description == "" {
		description = a.Config.Description
	}
	return PageMeta{
		SiteName:    a.Config.Name,
		SiteURL:     a.Config.URL,
		Title:       title,
		Description: description,
		URL:         a.Config.URL + path,
		OGType:      "website",
		JSONLD:      WebsiteJsonLD(a.Config),
		Endpoint:    a.Config.Sanity,
		Preview:     a.IsPreview(c),
		CSRFToken:   CsrfToken(c),
	}
}

// pathParam returns a route parameter with percent-escapes decoded. Echo
// matches on the raw path, and so returns escaped values, only when the
// request carries escapes it would not produce itself.
func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (a *App) pageSize(c echo.Context) int {
	n := positiveInt(c.QueryParam("pageSize"), a.Config.PageSize)
	return min(n, maxPageSize)
}

// handleHome lists posts newest first. A featured post leads the first page
// outside the list, and the list gives up one slot for it on every page.
func (a *App) handleHome(c echo.Context) error {
	featuredRes, err := a.fetch(c, groq.FeaturedPost())
	if err != nil {
		return err
	}
	res, err := a.fetch(c, groq.ListPosts())
	if err != nil {
		return err
	}

	items := res.Items()
	size := a.pageSize(c)
	featured, ok := featuredRes.Item()
	if ok && featured.ID() != "" {
		rest := make([]sanity.Document, 0, len(items))
		for _, d := range items {
			if d.ID() != featured.ID() {
				rest = append(rest, d)
			}
		}
		items = rest
		size = max(size-1, 1)
	} else {
		featured = nil
	}

	posts, p := Paginate(items, positiveInt(c.QueryParam("page"), 1), size)
	page := ListingPage{
		Meta:       a.pageMeta(c, a.Config.Name, "", "/"),
		Posts:      posts,
		Pagination: p,
	}
	if p.CurrentPage == 1 {
		page.Featured = featured
	}
	return Render(c, a.Views.Home(page))
}

func (a *App) handleTag(c echo.Context) error {
	tag := strings.TrimSpace(pathParam(c, "tag"))
	if tag == "" {
		return echo.ErrNotFound
	}
	res, err := a.fetch(c, groq.PostsByTag(tag))
	if err != nil {
		return err
	}
	posts, p := Paginate(res.Items(), positiveInt(c.QueryParam("page"), 1), a.pageSize(c))
	return Render(c, a.Views.Tag(ListingPage{
		Meta:       a.pageMeta(c, "#"+tag+" | "+a.Config.Name, "", TagPath(tag)),
		Posts:      posts,
		Pagination: p,
		Tag:        tag,
	}))
}

func (a *App) handleAuthor(c echo.Context) error {
	res, err := a.fetch(c, groq.AuthorBySlug(pathParam(c, "author")))
	if err != nil {
		return err
	}
	author, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}
	postsRes, err := a.fetch(c, groq.PostsByAuthor(author.ID()))
	if err != nil {
		return err
	}
	posts, p := Paginate(postsRes.Items(), positiveInt(c.QueryParam("page"), 1), a.pageSize(c))

	name := author.String("name")
	meta := a.pageMeta(c, name+" | "+a.Config.Name, "Articles by "+name, AuthorPath(author))
	meta.OGType = "profile"
	meta.Image = sanity.ImageURL(a.Config.Sanity, author.Get("image"), 1200)
	return Render(c, a.Views.Author(AuthorPage{
		Meta:       meta,
		Author:     author,
		Posts:      posts,
		Pagination: p,
	}))
}

func (a *App) handleCategory(c echo.Context) error {
	res, err := a.fetch(c, groq.CategoryBySlug(pathParam(c, "category")))
	if err != nil {
		return err
	}
	category, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}
	return Render(c, a.Views.Category(CategoryPage{
		Meta:     a.pageMeta(c, category.String("name")+" | "+a.Config.Name, category.String("description"), CategoryPath(category)),
		Category: category,
		Posts:    category.Docs("posts"),
	}))
}

func (a *App) handlePost(c echo.Context) error {
	res, err := a.fetch(c, groq.PostBySlugs(pathParam(c, "category"), pathParam(c, "slug")))
	if err != nil {
		return err
	}
	post, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}
	return a.renderPost(c, post)
}

func (a *App) handlePostByID(c echo.Context) error {
	res, err := a.fetch(c, groq.PostByID(pathParam(c, "id")))
	if err != nil {
		return err
	}
	post, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}
	return a.renderPost(c, post)
}

func (a *App) renderPost(c echo.Context, post sanity.Document) error {
	meta := a.pageMeta(c, post.String("title")+" | "+a.Config.Name, post.String("excerpt"), PostPath(post))
	meta.OGType = "article"
	meta.JSONLD = BlogPostingJsonLD(post, a.Config)
	meta.Image = sanity.ImageURL(a.Config.Sanity, post.Get("hero"), 1200)

	page := PostPage{Meta: meta, Post: post}
	if a.Comments != nil {
		comments, err := a.commentsPage(c, post.ID(), !post.Bool("disableComments"), 1)
		if err != nil {
			return err
		}
		page.Comments = &comments
	}
	return Render(c, a.Views.Post(page))
}

func (a *App) handleSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	page := SearchPage{
		Meta:  a.pageMeta(c, "Search | "+a.Config.Name, "", "/search/"),
		Query: q,
		Posts: []sanity.Document{},
	}
	if groq.SearchTerm(q) != "" {
		res, err := a.fetch(c, groq.SearchPosts(q))
		if err != nil {
			return err
		}
		page.Posts = res.Items()
	}
	return Render(c, a.Views.Search(page))
}

func (a *App) handleSitemap(c echo.Context) error {
	res, err := a.fetch(c, groq.SitemapEntries())
	if err != nil {
		return err
	}
	entries, _ := res.Item()
	return a.renderSitemap(c, entries.Docs("categories"), entries.Docs("posts"))
}

func (a *App) handleFeed(c echo.Context) error {
	res, err := a.fetch(c, groq.FeedPosts(a.Config.FeedSize))
	if err != nil {
		return err
	}
	return a.renderRSS(c, res.Items())
}

func (a *App) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

// handleRobots serves the site's own robots.txt when it has one.
func (a *App) handleRobots(c echo.Context) error {
	own := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(own); err == nil {
		return c.File(own)
	}
	body := "User-agent: *\nAllow: /\nDisallow: /moderator/\nDisallow: /preview/\nDisallow: /comments/\n\nSitemap: " +
		a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var fe *sanity.FetchError
	if errors.As(err, &fe) {
		a.Logger.Warn("content unavailable",
			zap.String("uri", c.Request().RequestURI),
			zap.Stringer("kind", fe.Kind),
			zap.Int("status", fe.StatusCode),
			zap.Error(err),
		)
		if rerr := RenderStatus(c, http.StatusBadGateway, a.Views.Unavailable(a.pageMeta(c, "Unavailable | "+a.Config.Name, "", c.Request().URL.Path))); rerr != nil {
			_ = c.String(http.StatusBadGateway, "Content is temporarily unavailable.")
		}
		return
	}

	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		if rerr := RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.pageMeta(c, "Not found | "+a.Config.Name, "", c.Request().URL.Path))); rerr != nil {
			_ = c.String(http.StatusNotFound, "Not found")
		}
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		if rerr := RenderStatus(c, code, a.Views.ServerError(a.pageMeta(c, "Error | "+a.Config.Name, "", c.Request().URL.Path))); rerr != nil {
			_ = c.String(code, http.StatusText(code))
		}
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
