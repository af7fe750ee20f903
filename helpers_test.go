package sanitypress

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/eringen/sanitypress/sanity"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"http://example.com", nil, "http://example.com/"},
		{"http://example.com/", []string{"search"}, "http://example.com/search/"},
		{"http://example.com/blog", []string{"/travel/", "rome"}, "http://example.com/blog/travel/rome/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %q) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestPostPath(t *testing.T) {
	full := sanity.Document(fixturePost(1))
	if got := PostPath(full); got != "/travel/post-1/" {
		t.Errorf("PostPath = %q", got)
	}

	orphan := sanity.Document{"_id": "abc", "slug": map[string]any{"current": "lonely"}}
	if got := PostPath(orphan); got != "/post/abc/" {
		t.Errorf("PostPath without category = %q", got)
	}

	spaced := sanity.Document{
		"_id":      "x",
		"slug":     map[string]any{"current": "a b"},
		"category": map[string]any{"slug": map[string]any{"current": "c/d"}},
	}
	if got := PostPath(spaced); got != "/c%2Fd/a%20b/" {
		t.Errorf("PostPath escaping = %q", got)
	}

	if got := TagPath("new york"); got != "/tag/new%20york/" {
		t.Errorf("TagPath = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-05T10:00:00Z", "March 5, 2024"},
		{"2024-03-05T10:00:00.123Z", "March 5, 2024"},
		{"2024-03-05", "March 5, 2024"},
		{"yesterday", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	tests := []struct {
		page, size int
		want       []int
		current    int
		pages      int
	}{
		{1, 3, []int{1, 2, 3}, 1, 3},
		{3, 3, []int{7}, 3, 3},
		{9, 3, []int{7}, 3, 3},
		{0, 3, []int{1, 2, 3}, 1, 3},
		{1, 10, items, 1, 1},
	}
	for _, tt := range tests {
		got, p := Paginate(items, tt.page, tt.size)
		if len(got) != len(tt.want) || got[0] != tt.want[0] {
			t.Errorf("Paginate(page %d, size %d) = %v, want %v", tt.page, tt.size, got, tt.want)
		}
		if p.CurrentPage != tt.current || p.TotalPages != tt.pages || p.TotalItems != len(items) {
			t.Errorf("pagination = %+v", p)
		}
	}

	empty, p := Paginate([]int(nil), 2, 5)
	if len(empty) != 0 || p.TotalPages != 0 || p.CurrentPage != 1 {
		t.Errorf("empty = %v %+v", empty, p)
	}
}

func TestPaginationNavigation(t *testing.T) {
	p := NewPagination(25, 2, 10)
	if !p.HasPrev() || !p.HasNext() || p.PrevPage() != 1 || p.NextPage() != 3 || p.Offset() != 10 {
		t.Errorf("middle page = %+v", p)
	}
	last := NewPagination(25, 3, 10)
	if last.HasNext() {
		t.Error("last page should not have a next page")
	}
}

func TestPositiveInt(t *testing.T) {
	for in, want := range map[string]int{"3": 3, "0": 7, "-2": 7, "x": 7, "": 7} {
		if got := positiveInt(in, 7); got != want {
			t.Errorf("positiveInt(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := testConfig()
	cfg.Author = "Ada"
	post := sanity.Document(fixturePost(2))
	post["hero"] = map[string]any{"asset": map[string]any{"_ref": "image-abc-800x600-jpg"}}

	var got map[string]any
	if err := json.Unmarshal([]byte(BlogPostingJsonLD(post, cfg)), &got); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if got["@type"] != "BlogPosting" || got["headline"] != "Post 2" {
		t.Errorf("JSON-LD = %v", got)
	}
	if got["url"] != "http://example.com/travel/post-2/" {
		t.Errorf("url = %v", got["url"])
	}
	if img, _ := got["image"].(string); !strings.HasPrefix(img, "https://cdn.sanity.io/images/test123/production/abc-800x600.jpg") {
		t.Errorf("image = %v", got["image"])
	}
	if got["keywords"] != "italy" {
		t.Errorf("keywords = %v", got["keywords"])
	}
}

func TestWebsiteJsonLD(t *testing.T) {
	var got map[string]any
	if err := json.Unmarshal([]byte(WebsiteJsonLD(testConfig())), &got); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if got["url"] != "http://example.com/" || got["name"] != "Test Blog" {
		t.Errorf("JSON-LD = %v", got)
	}
	action, _ := got["potentialAction"].(map[string]any)
	if action["target"] != "http://example.com/search/?q={query}" {
		t.Errorf("search target = %v", action["target"])
	}
}

func TestBuildFeed(t *testing.T) {
	app := &App{Config: testConfig()}
	posts := []sanity.Document{fixturePost(1), fixturePost(3), {"_id": "draft", "title": "Undated"}}

	feed := app.buildFeed(posts)
	if len(feed.Channel.Items) != 3 {
		t.Fatalf("items = %d", len(feed.Channel.Items))
	}
	first := feed.Channel.Items[0]
	if first.Link != "http://example.com/travel/post-1/" || !first.GUID.IsPermaLink || first.PubDate == "" {
		t.Errorf("first item = %+v", first)
	}
	if feed.Channel.Items[2].PubDate != "" {
		t.Errorf("undated post has pubDate %q", feed.Channel.Items[2].PubDate)
	}
	if !strings.HasPrefix(feed.Channel.LastBuildDate, "Mon, 04 Mar 2024") {
		t.Errorf("lastBuildDate = %q", feed.Channel.LastBuildDate)
	}
}

func TestBuildSitemapSkipsCategoriesWithoutSlug(t *testing.T) {
	app := &App{Config: testConfig()}
	cats := []sanity.Document{{"name": "No slug"}, {"slug": map[string]any{"current": "food"}}}

	set := app.buildSitemap(cats, nil)
	if len(set.URLs) != 2 || set.URLs[1].Loc != "http://example.com/food/" {
		t.Errorf("urls = %+v", set.URLs)
	}
	if set.URLs[1].LastMod != "" {
		t.Errorf("lastmod without _updatedAt = %q", set.URLs[1].LastMod)
	}
}
