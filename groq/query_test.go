package groq

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPostsSelectsPosts(t *testing.T) {
	q := ListPosts()

	assert.True(t, strings.HasPrefix(q.Text, `*[_type == "post"]`), q.Text)
	assert.Contains(t, q.Text, "category->{name, slug}")
	assert.Empty(t, q.Params)
	require.NoError(t, q.Validate())
}

func TestCategoryBySlug(t *testing.T) {
	q := CategoryBySlug("travel")

	assert.Contains(t, q.Text, `_type == "category" && slug.current == $slug`)
	assert.Contains(t, q.Text, `[0]`)
	assert.Contains(t, q.Text, `"posts": *[_type == "post" && category._ref == ^._id && !unlisted]`)
	assert.Equal(t, "travel", q.Params["slug"])
	require.NoError(t, q.Validate())
}

func TestPostBySlugs(t *testing.T) {
	q := PostBySlugs("travel", "rome")

	assert.Contains(t, q.Text, `category->slug.current == $category`)
	assert.Contains(t, q.Text, `slug.current == $slug`)
	assert.Equal(t, "travel", q.Params["category"])
	assert.Equal(t, "rome", q.Params["slug"])
	require.NoError(t, q.Validate())
}

func TestPostByID(t *testing.T) {
	q := PostByID("abc-123")

	assert.Contains(t, q.Text, `_type == "post" && _id == $id`)
	assert.Equal(t, "abc-123", q.Params["id"])
}

func TestUntrustedInputNeverReachesText(t *testing.T) {
	hostile := `x"] || true || _id == "`
	queries := []Query{
		CategoryBySlug(hostile),
		PostBySlugs(hostile, hostile),
		PostByID(hostile),
		PostsByTag(hostile),
		SearchPosts(hostile),
		AuthorBySlug(hostile),
		PostsByAuthor(hostile),
	}
	for _, q := range queries {
		assert.NotContains(t, q.Text, hostile)
		assert.NotContains(t, q.Text, "|| true ||")
	}
}

func TestValuesEncodesParamsAsJSON(t *testing.T) {
	q := PostBySlugs("travel", `ro"me`)

	v, err := q.Values()
	require.NoError(t, err)

	assert.Equal(t, q.Text, v.Get("query"))
	assert.Equal(t, `"travel"`, v.Get("$category"))

	var slug string
	require.NoError(t, json.Unmarshal([]byte(v.Get("$slug")), &slug))
	assert.Equal(t, `ro"me`, slug)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"plain", New(`*[_type == "post"]`), false},
		{"bound", New(`*[_id == $id]`).With("id", "a"), false},
		{"empty", New("  "), true},
		{"unbound", New(`*[_id == $id]`), true},
		{"bad name", New(`*`).With("1x", "a"), true},
		{"bad name with dash", New(`*`).With("a-b", "a"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := New(`*[_id == $id]`).With("id", "a")
	other := base.With("id", "b")

	assert.Equal(t, "a", base.Params["id"])
	assert.Equal(t, "b", other.Params["id"])
}

func TestReferenced(t *testing.T) {
	q := New(`*[a == $b && c == $a && d == $b]`)
	assert.Equal(t, []string{"a", "b"}, q.Referenced())
}

func TestBuilder(t *testing.T) {
	q := Select("post").
		Eq("slug.current", "slug", "x").
		Order("publishedAt desc").
		Slice(0, 10).
		Project("{title}").
		Query()

	assert.Equal(t, `*[_type == "post" && slug.current == $slug] | order(publishedAt desc) [0...10]{title}`, q.Text)
	assert.Equal(t, map[string]any{"slug": "x"}, q.Params)
}

func TestSearchTerm(t *testing.T) {
	assert.Equal(t, "*golang*", SearchTerm("  #golang "))
	assert.Equal(t, "", SearchTerm("##"))
}

func TestFeedPostsDefaultsLimit(t *testing.T) {
	assert.Contains(t, FeedPosts(0).Text, "[0...20]")
	assert.Contains(t, FeedPosts(5).Text, "[0...5]")
}

func TestPostTitlesBindsIDs(t *testing.T) {
	q := PostTitles(nil)
	v, err := q.Values()
	require.NoError(t, err)
	assert.Equal(t, "[]", v.Get("$ids"))
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, `"post"`, Literal("post"))
	assert.Equal(t, `"a\"b"`, Literal(`a"b`))
}

func TestCommentSettings(t *testing.T) {
	q := CommentSettings("post-1")
	require.NoError(t, q.Validate())
	assert.Contains(t, q.Text, "_id == $id")
	assert.Contains(t, q.Text, "disableComments")
	assert.Equal(t, "post-1", q.Params["id"])
}

func TestListingQueriesSkipUnlistedPosts(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"list", ListPosts()},
		{"category", CategoryBySlug("travel")},
		{"tag", PostsByTag("go")},
		{"search", SearchPosts("go")},
		{"feed", FeedPosts(10)},
		{"sitemap", SitemapEntries()},
		{"author", PostsByAuthor("author-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.q.Text, "!unlisted")
			require.NoError(t, tt.q.Validate())
		})
	}
}

func TestDirectPostLookupsIncludeUnlisted(t *testing.T) {
	for _, q := range []Query{PostBySlugs("travel", "rome"), PostByID("p1"), CommentSettings("p1")} {
		assert.NotContains(t, q.Text, "unlisted")
	}
}

func TestPostProjectionDereferencesAuthor(t *testing.T) {
	assert.Contains(t, PostBySlugs("travel", "rome").Text, `"author": author->{name, slug}`)
}

func TestAuthorQueries(t *testing.T) {
	author := AuthorBySlug("ada")
	require.NoError(t, author.Validate())
	assert.Contains(t, author.Text, `_type == "author" && slug.current == $slug`)
	assert.Equal(t, "ada", author.Params["slug"])

	posts := PostsByAuthor("author-1")
	require.NoError(t, posts.Validate())
	assert.Contains(t, posts.Text, `author._ref == $authorId`)
	assert.Equal(t, "author-1", posts.Params["authorId"])
}

func TestFeaturedPost(t *testing.T) {
	q := FeaturedPost()
	require.NoError(t, q.Validate())
	assert.True(t, strings.HasPrefix(q.Text, `*[_type == "featuredPost"]`), q.Text)
	assert.Contains(t, q.Text, "[-1]")
	assert.True(t, strings.HasSuffix(q.Text, ".post"), q.Text)
	assert.Empty(t, q.Params)
}
