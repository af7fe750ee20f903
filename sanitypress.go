// Package sanitypress is a server-rendered blog front end built with Go, Echo
// and templ, reading all of its content from the Sanity query API.
//
// Users provide their own templ components via the ViewFuncs struct, and
// sanitypress handles routing, content queries, draft previews, comments,
// feeds and sitemaps.
package sanitypress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/sanitypress/sanity"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	Home           func(page ListingPage) templ.Component
	Tag            func(page ListingPage) templ.Component
	Category       func(page CategoryPage) templ.Component
	Author         func(page AuthorPage) templ.Component
	Post           func(page PostPage) templ.Component
	Search         func(page SearchPage) templ.Component
	Comments       func(page CommentsPage) templ.Component // fragment, swapped by htmx
	ModeratorLogin func(meta PageMeta, showError bool) templ.Component
	Moderator      func(page ModeratorPage) templ.Component
	NotFound       func(meta PageMeta) templ.Component
	Unavailable    func(meta PageMeta) templ.Component // content API failed
	ServerError    func(meta PageMeta) templ.Component
}

// App is the central sanitypress application. It wires together the content
// client, the comment store, handlers, middleware and user-provided templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Content  *sanity.Client
	Comments *CommentStore // nil unless comments are enabled
	Views    ViewFuncs
	Logger   *zap.Logger
	Metrics  *Metrics

	previewLimiter *Limiter
	loginLimiter   *Limiter
	commentLimiter *Limiter

	customRoutes   []func(*App)
	staticDir      string
	httpClient     *http.Client
	contentBaseURL string
	imageBaseURL   string
	ready          bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:       cfg,
		Echo:         e,
		Views:        views,
		staticDir:    "public",
		imageBaseURL: sanity.ImageCDN,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup validates the configuration, connects the content client and the
// comment store, and registers middleware and routes. Start calls it; tests
// call it directly and drive a.Echo with httptest.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	if a.Logger == nil {
		logger, err := NewLogger(a.Config.LogLevel, a.Config.LogDevelopment)
		if err != nil {
			return fmt.Errorf("sanitypress: %w", err)
		}
		a.Logger = logger
	}
	if a.httpClient == nil {
		a.httpClient = sanity.NewHTTPClient(a.Config.FetchTimeout)
	}
	a.Metrics = NewMetrics()

	client, err := sanity.NewClient(sanity.Config{
		Endpoint:   a.Config.Sanity,
		BaseURL:    a.contentBaseURL,
		HTTPClient: a.httpClient,
		Logger:     a.Logger.Named("sanity"),
		Observe:    a.Metrics.ObserveFetch,
	})
	if err != nil {
		return fmt.Errorf("sanitypress: init content client: %w", err)
	}
	a.Content = client

	if a.Config.CommentsEnabled {
		store, err := NewCommentStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("sanitypress: init comment store: %w", err)
		}
		a.Comments = store
		a.commentLimiter = NewLimiter(5, 10*time.Minute)
		a.loginLimiter = NewLimiter(5, time.Minute)
	}
	if a.Config.PreviewSecret != "" {
		a.previewLimiter = NewLimiter(10, time.Minute)
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.ready = true
	a.Logger.Info("site configured",
		zap.String("project", a.Config.Sanity.ProjectID),
		zap.String("dataset", a.Config.Sanity.Dataset),
		zap.String("api_version", a.Config.Sanity.Version()),
		zap.Bool("cdn", a.Config.Sanity.UseCDN),
		zap.Bool("comments", a.Config.CommentsEnabled),
		zap.Bool("preview", a.Config.PreviewSecret != ""),
	)
	return nil
}

// Start runs Setup and serves HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Logger.Info("listening", zap.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", a.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/post/:id/", a.handlePostByID)
	e.GET("/tag/:tag/", a.handleTag)
	e.GET("/author/:author/", a.handleAuthor)
	e.GET("/search/", a.handleSearch)
	e.GET("/media/:asset/", a.handleMedia)

	if a.Config.PreviewSecret != "" {
		e.GET("/preview/enable/", a.handlePreviewEnable)
		e.GET("/preview/disable/", a.handlePreviewDisable)
	}

	if a.Comments != nil {
		e.GET("/comments/:postID/", a.handleCommentsList)
		e.POST("/comments/:postID/", a.handleCommentCreate)

		e.GET("/moderator/", a.handleModerator)
		e.GET("/moderator/pending/", a.handlePendingCount)
		e.POST("/moderator/login/", a.handleModeratorLogin)
		e.POST("/moderator/logout/", handleModeratorLogout)
		e.POST("/moderator/comments/:id/:action/", a.handleModeratorAction)
	}

	// Static prefixes above win over these parameter routes in echo's router.
	e.GET("/:category/", a.handleCategory)
	e.GET("/:category/:slug/", a.handlePost)
}

// Close releases the comment store and limiter goroutines. Call this when
// the app is shutting down.
func (a *App) Close() error {
	for _, l := range []*Limiter{a.previewLimiter, a.loginLimiter, a.commentLimiter} {
		if l != nil {
			l.Stop()
		}
	}
	var err error
	if a.Comments != nil {
		err = a.Comments.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return err
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "sanitypress: required environment variable %s is not set\n", key)
		os.Exit(1)
	}
	return v
}
