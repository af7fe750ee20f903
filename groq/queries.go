package groq

import "strings"

// Document types the site reads.
const (
	TypePost         = "post"
	TypeCategory     = "category"
	TypeAuthor       = "author"
	TypeFeaturedPost = "featuredPost"
)

const (
	categoryRef = `category->{name, slug}`
	authorRef   = `"author": author->{name, slug}`

	// listed excludes posts that are only reachable by direct link.
	listed = "!unlisted"

	// cardProjection carries what listing cards display.
	cardProjection = `{_id, title, subtitle, slug, publishedAt, tags, ` + categoryRef + `, hero, heroAlt, excerpt}`

	postProjection = `{..., ` + categoryRef + `, ` + authorRef + `, "related": relatedPosts[]->{_id, title, slug, hero, heroAlt, excerpt, ` + categoryRef + `}}`

	newestFirst = "coalesce(publishedAt, _createdAt) desc"
)

// ListPosts selects every post for the listing page.
func ListPosts() Query {
	return Select(TypePost).
		Where(listed).
		Order(newestFirst).
		Project(cardProjection).
		Query()
}

// CategoryBySlug selects the first category whose slug matches, together with
// the posts that reference it.
func CategoryBySlug(slug string) Query {
	return Select(TypeCategory).
		Eq("slug.current", "slug", slug).
		First().
		Project(`{_id, name, slug, description, "posts": *[_type == ` + Literal(TypePost) + ` && category._ref == ^._id && ` + listed + `] | order(` + newestFirst + `) ` + cardProjection + `}`).
		Query()
}

// PostBySlugs selects the first post whose dereferenced category slug and own
// slug both match.
func PostBySlugs(categorySlug, slug string) Query {
	return Select(TypePost).
		Eq("category->slug.current", "category", categorySlug).
		Eq("slug.current", "slug", slug).
		First().
		Project(postProjection).
		Query()
}

// PostByID selects a post by document id.
func PostByID(id string) Query {
	return Select(TypePost).
		Eq("_id", "id", id).
		First().
		Project(postProjection).
		Query()
}

// PostsByTag selects posts carrying tag.
func PostsByTag(tag string) Query {
	return Select(TypePost).
		Bind("tag", tag).
		Where("$tag in tags").
		Where(listed).
		Order(newestFirst).
		Project(cardProjection).
		Query()
}

// SearchPosts matches term against titles, excerpts and body text. Hash signs
// are stripped so "#go" finds posts about go.
func SearchPosts(term string) Query {
	return Select(TypePost).
		Bind("term", SearchTerm(term)).
		Where("(title match $term || excerpt match $term || pt::text(body) match $term || count(tags[@ match $term]) > 0)").
		Where(listed).
		Order(newestFirst).
		Project(cardProjection).
		Query()
}

// SearchTerm normalises user input into a wildcard match pattern.
func SearchTerm(term string) string {
	term = strings.TrimSpace(strings.ReplaceAll(term, "#", ""))
	if term == "" {
		return ""
	}
	return "*" + term + "*"
}

// FeedPosts selects the newest published posts for the RSS feed.
func FeedPosts(limit int) Query {
	if limit <= 0 {
		limit = 20
	}
	return Select(TypePost).
		Where("defined(publishedAt)").
		Where(listed).
		Order("publishedAt desc").
		Slice(0, limit).
		Project(`{_id, title, subtitle, slug, publishedAt, excerpt, tags, ` + categoryRef + `}`).
		Query()
}

// SitemapEntries selects every category and post with its last update time.
// The result is a single object with "categories" and "posts" members.
func SitemapEntries() Query {
	return New(`{"categories": *[_type == ` + Literal(TypeCategory) + `]{slug, _updatedAt}, ` +
		`"posts": *[_type == ` + Literal(TypePost) + ` && ` + listed + `]{slug, _updatedAt, ` + categoryRef + `}}`)
}

// FeaturedPost selects the post referenced by the newest featuredPost
// document, or null when there is none.
func FeaturedPost() Query {
	return New(`*[_type == ` + Literal(TypeFeaturedPost) + `] | order(_createdAt asc) [-1]{"post": post->` + cardProjection + `}.post`)
}

// AuthorBySlug selects the first author whose slug matches.
func AuthorBySlug(slug string) Query {
	return Select(TypeAuthor).
		Eq("slug.current", "slug", slug).
		First().
		Project(`{_id, name, slug, image, bio}`).
		Query()
}

// PostsByAuthor selects the listed posts written by the author document id.
func PostsByAuthor(authorID string) Query {
	return Select(TypePost).
		Eq("author._ref", "authorId", authorID).
		Where(listed).
		Order(newestFirst).
		Project(cardProjection).
		Query()
}

// PostTitles selects titles and slugs for the given post ids.
func PostTitles(ids []string) Query {
	if ids == nil {
		ids = []string{}
	}
	return Select(TypePost).
		Bind("ids", ids).
		Where("_id in $ids").
		Project(`{_id, title, slug, ` + categoryRef + `}`).
		Query()
}

// CommentSettings selects whether a post exists and accepts comments.
func CommentSettings(postID string) Query {
	return Select(TypePost).
		Eq("_id", "id", postID).
		First().
		Project(`{_id, title, slug, disableComments, ` + categoryRef + `}`).
		Query()
}
