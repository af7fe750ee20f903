package sanitypress

import (
	"time"

	"github.com/eringen/sanitypress/sanity"
)

// PageMeta carries per-page OpenGraph/SEO metadata and site-wide values into
// the <head> template.
type PageMeta struct {
	SiteName    string
	SiteURL     string
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
	Image       string

	// Endpoint lets templates build image URLs against the right project.
	Endpoint  sanity.Endpoint
	Preview   bool
	CSRFToken string
}

// Pagination describes one page of a longer list.
type Pagination struct {
	CurrentPage int
	PageSize    int
	TotalPages  int
	TotalItems  int
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.CurrentPage < p.TotalPages }

// PrevPage returns the previous page number.
func (p Pagination) PrevPage() int { return p.CurrentPage - 1 }

// NextPage returns the following page number.
func (p Pagination) NextPage() int { return p.CurrentPage + 1 }

// ListingPage is the home page and the tag page.
type ListingPage struct {
	Meta       PageMeta
	Posts      []sanity.Document
	Pagination Pagination
	Tag        string

	// Featured is pinned above Posts on the first home page.
	Featured sanity.Document
}

// CategoryPage is a category with the posts that reference it.
type CategoryPage struct {
	Meta     PageMeta
	Category sanity.Document
	Posts    []sanity.Document
}

// AuthorPage is an author profile with a page of their posts.
type AuthorPage struct {
	Meta       PageMeta
	Author     sanity.Document
	Posts      []sanity.Document
	Pagination Pagination
}

// PostPage is a single post, with its first page of comments.
type PostPage struct {
	Meta     PageMeta
	Post     sanity.Document
	Comments *CommentsPage
}

// SearchPage lists posts matching a search query.
type SearchPage struct {
	Meta  PageMeta
	Query string
	Posts []sanity.Document
}

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// Comment is a reader comment on a post, stored in SQLite.
type Comment struct {
	ID        string
	PostID    string
	ParentID  string
	Author    string
	Content   string
	Status    CommentStatus
	CreatedAt time.Time
}

// CommentsPage is the comment thread of one post.
type CommentsPage struct {
	PostID     string
	Comments   []Comment
	Pagination Pagination
	Open       bool // accepting new comments
	Message    string
	CSRFToken  string
}

// ModerationItem is a comment awaiting a moderator decision.
type ModerationItem struct {
	Comment   Comment
	PostTitle string
	PostURL   string
}

// ModeratorPage is the moderation dashboard.
type ModeratorPage struct {
	Meta    PageMeta
	Queue   []ModerationItem
	Pending int
	Message string
}
