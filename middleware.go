package sanitypress

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	sessionName  = "sanitypress_session"
	moderatorKey = "moderator"
	previewKey   = "preview"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	log := a.Logger.Named("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				log.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(a.Metrics.Middleware())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/public/") || strings.HasPrefix(p, "/media/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https://cdn.sanity.io data:; font-src 'self'; connect-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	if a.Config.SessionSecret != "" {
		e.Use(session.Middleware(a.newSessionStore()))
	}

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			if p == "/metrics" || p == "/healthz" || strings.HasPrefix(p, "/media/") {
				return true
			}
			// Safe requests only need a token on pages that render a form,
			// so every other page stays free of Set-Cookie and cacheable.
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead:
				return !a.issuesCSRFToken(c)
			}
			return false
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			return isFilePath(c.Request().URL.Path)
		},
	}))

	e.Use(a.cacheControlMiddleware)
}

// isFilePath reports paths that are served without the trailing-slash form.
func isFilePath(p string) bool {
	return strings.HasPrefix(p, "/public") ||
		p == "/sitemap.xml" || p == "/feed.xml" || p == "/robots.txt" ||
		p == "/favicon.svg" || p == "/metrics" || p == "/healthz"
}

// issuesCSRFToken reports routes whose pages embed a form token.
func (a *App) issuesCSRFToken(c echo.Context) bool {
	if a.Comments == nil {
		return false
	}
	switch route := c.Path(); route {
	case "/:category/:slug/", "/post/:id/", "/comments/:postID/":
		return true
	default:
		return strings.HasPrefix(route, "/moderator/")
	}
}

func (a *App) cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		// Anything carrying a cookie is specific to one visitor.
		c.Response().Before(func() {
			if len(h.Values("Set-Cookie")) > 0 {
				h.Set("Cache-Control", "private, no-store")
			}
		})
		switch {
		case strings.HasPrefix(path, "/public/"):
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasPrefix(path, "/media/"):
			h.Set("Cache-Control", "public, max-age=604800")
		case strings.HasPrefix(path, "/moderator"),
			strings.HasPrefix(path, "/preview"),
			strings.HasPrefix(path, "/comments"),
			path == "/metrics", path == "/healthz",
			a.IsPreview(c):
			h.Set("Cache-Control", "no-store")
		case a.issuesCSRFToken(c):
			h.Set("Cache-Control", "private, no-store")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			h.Set("Cache-Control", "public, max-age=3600")
		default:
			// Content changes in the CMS without a deploy.
			h.Set("Cache-Control", "public, max-age=60")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

func sessionFlag(c echo.Context, key string) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	v, ok := sess.Values[key].(bool)
	return ok && v
}

func setSessionFlag(c echo.Context, key string, on bool) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	if on {
		sess.Values[key] = true
	} else {
		delete(sess.Values, key)
	}
	return sess.Save(c.Request(), c.Response())
}

// IsModerator checks if the current session is authenticated for moderation.
func IsModerator(c echo.Context) bool {
	return sessionFlag(c, moderatorKey)
}

// IsPreview reports whether the request should see draft content.
func (a *App) IsPreview(c echo.Context) bool {
	return a.Config.PreviewSecret != "" && sessionFlag(c, previewKey)
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
