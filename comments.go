package sanitypress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress/groq"
)

const (
	commentsPageSize = 15
	maxAuthorLen     = 60
	maxCommentLen    = 5000
)

// ErrInvalidComment is wrapped by every ValidateComment failure.
var ErrInvalidComment = errors.New("invalid comment")

// CommentInput is a comment as submitted by a reader.
type CommentInput struct {
	Author   string
	Content  string
	ParentID string
}

// ValidateComment trims and checks a submission. The returned error wraps
// ErrInvalidComment and reads well as a message to the reader.
func ValidateComment(in CommentInput) (CommentInput, error) {
	in.Author = strings.Join(strings.Fields(in.Author), " ")
	in.Content = NormalizeCommentText(in.Content)
	in.ParentID = strings.TrimSpace(in.ParentID)

	switch n := utf8.RuneCountInString(in.Author); {
	case n == 0:
		return in, fmt.Errorf("%w: name is required", ErrInvalidComment)
	case n > maxAuthorLen:
		return in, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidComment, maxAuthorLen)
	}
	switch n := utf8.RuneCountInString(in.Content); {
	case n == 0:
		return in, fmt.Errorf("%w: comment is empty", ErrInvalidComment)
	case n > maxCommentLen:
		return in, fmt.Errorf("%w: comment must be at most %d characters", ErrInvalidComment, maxCommentLen)
	}
	return in, nil
}

func (a *App) commentsPage(c echo.Context, postID string, open bool, page int) (CommentsPage, error) {
	total, err := a.Comments.CountApproved(postID)
	if err != nil {
		return CommentsPage{}, err
	}
	p := NewPagination(total, page, commentsPageSize)
	comments, _, err := a.Comments.ListApproved(postID, p.PageSize, p.Offset())
	if err != nil {
		return CommentsPage{}, err
	}
	return CommentsPage{
		PostID:     postID,
		Comments:   comments,
		Pagination: p,
		Open:       open,
		CSRFToken:  CsrfToken(c),
	}, nil
}

func (a *App) handleCommentsList(c echo.Context) error {
	postID := c.Param("postID")
	res, err := a.fetch(c, groq.CommentSettings(postID))
	if err != nil {
		return err
	}
	post, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}
	page, err := a.commentsPage(c, postID, !post.Bool("disableComments"), positiveInt(c.QueryParam("page"), 1))
	if err != nil {
		return err
	}
	return Render(c, a.Views.Comments(page))
}

func (a *App) handleCommentCreate(c echo.Context) error {
	postID := c.Param("postID")
	if !a.commentLimiter.Allow(c.RealIP()) {
		a.Metrics.CommentSubmitted("limited")
		return c.String(http.StatusTooManyRequests, "Too many comments. Try again later.")
	}

	res, err := a.fetch(c, groq.CommentSettings(postID))
	if err != nil {
		return err
	}
	post, ok := res.Item()
	if !ok {
		return echo.ErrNotFound
	}

	reply := func(code int, msg string) error {
		page, err := a.commentsPage(c, postID, !post.Bool("disableComments"), 1)
		if err != nil {
			return err
		}
		page.Message = msg
		return RenderStatus(c, code, a.Views.Comments(page))
	}

	if post.Bool("disableComments") {
		a.Metrics.CommentSubmitted("closed")
		return reply(http.StatusForbidden, "Comments are closed for this post.")
	}

	in, err := ValidateComment(CommentInput{
		Author:   c.FormValue("author"),
		Content:  c.FormValue("content"),
		ParentID: c.FormValue("parentId"),
	})
	if err != nil {
		a.Metrics.CommentSubmitted("invalid")
		return reply(http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), ErrInvalidComment.Error()+": "))
	}
	if in.ParentID != "" {
		parent, err := a.Comments.GetComment(in.ParentID)
		if err != nil || parent.PostID != postID || parent.Status != CommentApproved {
			a.Metrics.CommentSubmitted("invalid")
			return reply(http.StatusUnprocessableEntity, "The comment you replied to is not available.")
		}
	}

	comment, err := a.Comments.AddComment(Comment{
		PostID:   postID,
		ParentID: in.ParentID,
		Author:   in.Author,
		Content:  in.Content,
	})
	if err != nil {
		return err
	}
	a.Metrics.CommentSubmitted("accepted")
	a.Logger.Info("comment submitted",
		zap.String("comment_id", comment.ID),
		zap.String("post_id", postID),
	)
	return reply(http.StatusCreated, "Thanks! Your comment is awaiting moderation.")
}
