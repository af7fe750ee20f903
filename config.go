package sanitypress

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/sanitypress/sanity"
)

// SiteConfig holds all configuration for a sanitypress site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD

	Addr string `yaml:"addr"` // Listen address (default ":3000")

	Sanity        sanity.Endpoint `yaml:"sanity"`
	ReadToken     string          `yaml:"read_token"`     // Token for draft previews
	PreviewSecret string          `yaml:"preview_secret"` // Enables /preview/enable/ when set
	FetchTimeout  time.Duration   `yaml:"fetch_timeout"`  // Content API timeout (default 10s)
	PageSize      int             `yaml:"page_size"`      // Listing page size (default 9)
	FeedSize      int             `yaml:"feed_size"`      // RSS items (default 20)

	CommentsEnabled   bool   `yaml:"comments_enabled"`
	DatabasePath      string `yaml:"database_path"`      // SQLite path (default "data/comments.db")
	ModeratorPassword string `yaml:"moderator_password"` // Required with comments
	SessionSecret     string `yaml:"session_secret"`     // Required with comments or previews
	CookieSecure      bool   `yaml:"cookie_secure"`      // Set true for HTTPS

	LogLevel       string `yaml:"log_level"`       // debug, info, warn, error (default info)
	LogDevelopment bool   `yaml:"log_development"` // Console output instead of JSON
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Sanity.APIVersion == "" {
		c.Sanity.APIVersion = sanity.DefaultAPIVersion
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = sanity.DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = 9
	}
	if c.FeedSize <= 0 {
		c.FeedSize = 20
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/comments.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports configuration that would make the site misbehave at
// request time.
func (c *SiteConfig) Validate() error {
	if err := c.Sanity.Validate(); err != nil {
		return fmt.Errorf("sanitypress: %w", err)
	}
	if c.CommentsEnabled && c.ModeratorPassword == "" {
		return errors.New("sanitypress: ModeratorPassword is required when comments are enabled")
	}
	if (c.CommentsEnabled || c.PreviewSecret != "") && c.SessionSecret == "" {
		return errors.New("sanitypress: SessionSecret is required for comments and previews")
	}
	if c.PreviewSecret != "" && c.ReadToken == "" {
		return errors.New("sanitypress: ReadToken is required for previews")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the logger built from LogLevel.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithHTTPClient sets the client used for the content API and image fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithContentBaseURL points the content client at another host, such as a
// local mock of the query API.
func WithContentBaseURL(base string) Option {
	return func(a *App) {
		a.contentBaseURL = base
	}
}

// WithImageBaseURL replaces the image CDN host used by /media/.
func WithImageBaseURL(base string) Option {
	return func(a *App) {
		a.imageBaseURL = base
	}
}

// LoadConfig builds a SiteConfig from, in increasing priority: the YAML file
// at path (optional), .env files and the process environment.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := loadEnvFiles(); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// Variables already in the environment are never overwritten.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *SiteConfig) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("SITE_NAME", &cfg.Name)
	str("SITE_URL", &cfg.URL)
	str("SITE_DESCRIPTION", &cfg.Description)
	str("SITE_AUTHOR", &cfg.Author)
	str("ADDR", &cfg.Addr)
	str("SANITY_PROJECT_ID", &cfg.Sanity.ProjectID)
	str("SANITY_DATASET", &cfg.Sanity.Dataset)
	str("SANITY_API_VERSION", &cfg.Sanity.APIVersion)
	str("SANITY_READ_TOKEN", &cfg.ReadToken)
	str("SANITY_PREVIEW_SECRET", &cfg.PreviewSecret)
	str("DATABASE_PATH", &cfg.DatabasePath)
	str("MODERATOR_PASSWORD", &cfg.ModeratorPassword)
	str("SESSION_SECRET", &cfg.SessionSecret)
	str("LOG_LEVEL", &cfg.LogLevel)

	for _, fn := range []func() error{
		func() error { return boolean("SANITY_USE_CDN", &cfg.Sanity.UseCDN) },
		func() error { return boolean("COMMENTS_ENABLED", &cfg.CommentsEnabled) },
		func() error { return boolean("COOKIE_SECURE", &cfg.CookieSecure) },
		func() error { return boolean("LOG_DEVELOPMENT", &cfg.LogDevelopment) },
		func() error { return integer("PAGE_SIZE", &cfg.PageSize) },
		func() error { return integer("FEED_SIZE", &cfg.FeedSize) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
		cfg.FetchTimeout = d
	}
	return nil
}
