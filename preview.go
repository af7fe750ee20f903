package sanitypress

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handlePreviewEnable turns on draft mode for this browser when the shared
// preview secret matches.
func (a *App) handlePreviewEnable(c echo.Context) error {
	ip := c.RealIP()
	if !a.previewLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many attempts. Try again later.")
	}
	secret := c.QueryParam("secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.PreviewSecret)) != 1 {
		a.previewLimiter.Record(ip)
		a.Logger.Warn("preview secret rejected", zap.String("ip", ip))
		return c.String(http.StatusUnauthorized, "Invalid preview secret")
	}
	if err := setSessionFlag(c, previewKey, true); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, localRedirect(c.QueryParam("redirect")))
}

func (a *App) handlePreviewDisable(c echo.Context) error {
	if err := setSessionFlag(c, previewKey, false); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, localRedirect(c.QueryParam("redirect")))
}

// localRedirect returns target if it is a path on this site, else "/".
func localRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n") {
		return "/"
	}
	return target
}
