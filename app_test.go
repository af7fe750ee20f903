package sanitypress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress/sanity"
)

// apiCall is one request received by the mock content API.
type apiCall struct {
	Path   string
	Query  url.Values
	Header http.Header
}

func (c apiCall) text() string { return c.Query.Get("query") }

// mockAPI imitates the query API. respond maps a query to a status and body;
// the default answers from fixtures.
type mockAPI struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []apiCall
	respond func(q string) (int, string)
}

func newMockAPI(t *testing.T, respond func(q string) (int, string)) *mockAPI {
	t.Helper()
	m := &mockAPI{respond: respond}
	if m.respond == nil {
		m.respond = fixtureResponse
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.calls = append(m.calls, apiCall{Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()})
		m.mu.Unlock()
		code, body := m.respond(r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		io.WriteString(w, body)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockAPI) last(t *testing.T) apiCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("content API was not called")
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockAPI) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func fixturePost(i int) map[string]any {
	return map[string]any{
		"_id":         fmt.Sprintf("p%d", i),
		"_type":       "post",
		"title":       fmt.Sprintf("Post %d", i),
		"slug":        map[string]any{"current": fmt.Sprintf("post-%d", i)},
		"category":    map[string]any{"name": "Travel", "slug": map[string]any{"current": "travel"}},
		"publishedAt": fmt.Sprintf("2024-03-%02dT10:00:00Z", i%28+1),
		"_updatedAt":  "2024-04-01T00:00:00Z",
		"excerpt":     "Excerpt",
		"tags":        []any{"italy"},
	}
}

func fixturePosts(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = fixturePost(i + 1)
	}
	return out
}

func result(v any) string {
	b, err := json.Marshal(map[string]any{"result": v})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// fixtureResponse answers every query the site issues with canned content.
func fixtureResponse(q string) (int, string) {
	switch {
	case strings.Contains(q, "disableComments"):
		p := fixturePost(1)
		p["disableComments"] = false
		return http.StatusOK, result(p)
	case strings.Contains(q, `_type == "category"`) && strings.Contains(q, "$slug"):
		return http.StatusOK, result(map[string]any{
			"_id":   "c1",
			"name":  "Travel",
			"slug":  map[string]any{"current": "travel"},
			"posts": fixturePosts(2),
		})
	case strings.Contains(q, "category->slug.current == $category"), strings.Contains(q, "_id == $id"):
		return http.StatusOK, result(fixturePost(1))
	case strings.Contains(q, "featuredPost"):
		return http.StatusOK, result(nil)
	case strings.Contains(q, `_type == "author"`):
		return http.StatusOK, result(map[string]any{
			"_id":  "a1",
			"name": "Ada",
			"slug": map[string]any{"current": "ada"},
			"bio":  "Writes about trains.",
		})
	case strings.Contains(q, "author._ref == $authorId"):
		return http.StatusOK, result(fixturePosts(2))
	case strings.Contains(q, "_id in $ids"):
		return http.StatusOK, result(fixturePosts(1))
	case strings.Contains(q, `"categories":`):
		return http.StatusOK, result(map[string]any{
			"categories": []any{map[string]any{"slug": map[string]any{"current": "travel"}, "_updatedAt": "2024-02-01T00:00:00Z"}},
			"posts":      fixturePosts(2),
		})
	default:
		return http.StatusOK, result(fixturePosts(3))
	}
}

func docTitles(docs []sanity.Document) string {
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.String("title")
	}
	return strings.Join(titles, ",")
}

func text(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	})
}

// stubViews renders a one-line summary of each page so tests can assert on
// what the handlers passed in.
func stubViews() ViewFuncs {
	listing := func(kind string) func(ListingPage) templ.Component {
		return func(p ListingPage) templ.Component {
			return text("%s posts=%d page=%d/%d titles=%s tag=%s featured=%s preview=%t",
				kind, len(p.Posts), p.Pagination.CurrentPage, p.Pagination.TotalPages, docTitles(p.Posts), p.Tag,
				p.Featured.String("title"), p.Meta.Preview)
		}
	}
	return ViewFuncs{
		Home: listing("home"),
		Tag:  listing("tag"),
		Category: func(p CategoryPage) templ.Component {
			return text("category name=%s posts=%d", p.Category.String("name"), len(p.Posts))
		},
		Post: func(p PostPage) templ.Component {
			comments := -1
			if p.Comments != nil {
				comments = len(p.Comments.Comments)
			}
			return text("post title=%s comments=%d og=%s", p.Post.String("title"), comments, p.Meta.OGType)
		},
		Author: func(p AuthorPage) templ.Component {
			return text("author name=%s posts=%d page=%d/%d og=%s", p.Author.String("name"), len(p.Posts),
				p.Pagination.CurrentPage, p.Pagination.TotalPages, p.Meta.OGType)
		},
		Search: func(p SearchPage) templ.Component {
			return text("search q=%s posts=%d", p.Query, len(p.Posts))
		},
		Comments: func(p CommentsPage) templ.Component {
			authors := make([]string, len(p.Comments))
			for i, c := range p.Comments {
				authors[i] = c.Author
			}
			return text("comments n=%d authors=%s open=%t msg=%s", p.Pagination.TotalItems, strings.Join(authors, ","), p.Open, p.Message)
		},
		ModeratorLogin: func(meta PageMeta, showError bool) templ.Component {
			return text("login error=%t", showError)
		},
		Moderator: func(p ModeratorPage) templ.Component {
			items := make([]string, len(p.Queue))
			for i, it := range p.Queue {
				items[i] = it.Comment.Author + "@" + it.PostTitle
			}
			return text("moderator queue=%s pending=%d msg=%s", strings.Join(items, ","), p.Pending, p.Message)
		},
		NotFound:    func(meta PageMeta) templ.Component { return text("not found") },
		Unavailable: func(meta PageMeta) templ.Component { return text("unavailable") },
		ServerError: func(meta PageMeta) templ.Component { return text("server error") },
	}
}

func testConfig() SiteConfig {
	return SiteConfig{
		Name:   "Test Blog",
		URL:    "http://example.com",
		Sanity: sanity.Endpoint{ProjectID: "test123", Dataset: "production"},
	}
}

func newTestApp(t *testing.T, api *mockAPI, cfg SiteConfig, opts ...Option) *App {
	t.Helper()
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(t.TempDir(), "comments.db")
	}
	opts = append([]Option{
		WithLogger(zap.NewNop()),
		WithContentBaseURL(api.URL),
		WithStaticDir(t.TempDir()),
	}, opts...)
	app := New(cfg, stubViews(), opts...)
	if err := app.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

// testClient drives an App in-process and keeps cookies between requests.
type testClient struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, app *App) *testClient {
	return &testClient{t: t, app: app, cookies: map[string]*http.Cookie{}}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *testClient) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

// post submits form with the CSRF token the site issued to this client.
func (c *testClient) post(target string, form url.Values) *httptest.ResponseRecorder {
	if _, ok := c.cookies["_csrf"]; !ok && c.app.Comments != nil {
		c.get("/moderator/")
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ck, ok := c.cookies["_csrf"]; ok {
		req.Header.Set("X-CSRF-Token", ck.Value)
	}
	return c.do(req)
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("body %q does not contain %q", rec.Body.String(), want)
	}
}
