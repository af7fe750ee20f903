package sanitypress

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress/groq"
	"github.com/eringen/sanitypress/sanity"
)

func (a *App) handleModerator(c echo.Context) error {
	if !IsModerator(c) {
		return Render(c, a.Views.ModeratorLogin(a.moderatorMeta(c), false))
	}
	return a.renderModeratorDashboard(c, moderationMessages[c.QueryParam("msg")])
}

// handlePendingCount reports the size of the moderation queue for
// dashboards that poll it.
func (a *App) handlePendingCount(c echo.Context) error {
	if !IsModerator(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "moderator login required")
	}
	n, err := a.Comments.CountPending()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

func (a *App) handleModeratorLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.ModeratorPassword)) == 1 {
		if err := setSessionFlag(c, moderatorKey, true); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/moderator/")
	}
	a.loginLimiter.Record(ip)
	a.Logger.Warn("moderator login failed", zap.String("ip", ip))
	return RenderStatus(c, http.StatusUnauthorized, a.Views.ModeratorLogin(a.moderatorMeta(c), true))
}

func handleModeratorLogout(c echo.Context) error {
	if err := setSessionFlag(c, moderatorKey, false); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/moderator/")
}

func (a *App) handleModeratorAction(c echo.Context) error {
	if !IsModerator(c) {
		return c.Redirect(http.StatusSeeOther, "/moderator/")
	}
	id := c.Param("id")
	action := c.Param("action")
	var err error
	switch action {
	case "approve":
		err = a.Comments.SetStatus(id, CommentApproved)
	case "reject":
		err = a.Comments.SetStatus(id, CommentRejected)
	case "delete":
		err = a.Comments.DeleteComment(id)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown moderation action")
	}
	if errors.Is(err, ErrCommentNotFound) {
		return c.Redirect(http.StatusSeeOther, "/moderator/?msg=missing")
	}
	if err != nil {
		return err
	}
	a.Logger.Info("comment moderated", zap.String("comment_id", id), zap.String("action", action))
	return c.Redirect(http.StatusSeeOther, "/moderator/?msg="+action)
}

// moderationMessages maps the msg query of the dashboard redirect to the
// notice shown. Unknown keys show nothing.
var moderationMessages = map[string]string{
	"approve": "Comment approved.",
	"reject":  "Comment rejected.",
	"delete":  "Comment deleted.",
	"missing": "That comment no longer exists.",
}

func (a *App) moderatorMeta(c echo.Context) PageMeta {
	return a.pageMeta(c, "Moderation | "+a.Config.Name, "", "/moderator/")
}

func (a *App) renderModeratorDashboard(c echo.Context, msg string) error {
	comments, err := a.Comments.ListForModeration()
	if err != nil {
		return err
	}
	pending, err := a.Comments.CountPending()
	if err != nil {
		return err
	}
	queue := make([]ModerationItem, len(comments))
	for i, cm := range comments {
		queue[i] = ModerationItem{Comment: cm, PostTitle: cm.PostID}
	}
	a.attachPostTitles(c, queue)
	return Render(c, a.Views.Moderator(ModeratorPage{
		Meta:    a.moderatorMeta(c),
		Queue:   queue,
		Pending: pending,
		Message: msg,
	}))
}

// attachPostTitles looks up the posts the queued comments belong to. The
// queue stays usable with bare post ids when the content API is down.
func (a *App) attachPostTitles(c echo.Context, queue []ModerationItem) {
	if len(queue) == 0 {
		return
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range queue {
		if _, ok := seen[item.Comment.PostID]; !ok {
			seen[item.Comment.PostID] = struct{}{}
			ids = append(ids, item.Comment.PostID)
		}
	}
	res, err := a.Content.Fetch(c.Request().Context(), groq.PostTitles(ids))
	if err != nil {
		a.Logger.Warn("moderation queue without post titles", zap.Error(err))
		return
	}
	posts := make(map[string]sanity.Document)
	for _, p := range res.Items() {
		posts[p.ID()] = p
	}
	for i := range queue {
		if p, ok := posts[queue[i].Comment.PostID]; ok {
			queue[i].PostTitle = p.String("title")
			queue[i].PostURL = PostPath(p)
		}
	}
}
