// Package sanity is a read-only client for the Sanity query API.
//
// A Client issues exactly one GET per Fetch. It does not retry and does not
// cache. Every failure comes back as a *FetchError so callers can tell an
// unreachable or failing API apart from a query that matched nothing.
package sanity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/sanitypress/groq"
)

const (
	maxBodyBytes  = 32 << 20
	maxLoggedBody = 512
	userAgent     = "sanitypress/1"
)

// Perspectives accepted by the query API.
const (
	PerspectivePublished = "published"
	PerspectiveRaw       = "raw"
	// PerspectiveDrafts overlays draft documents on published ones.
	PerspectiveDrafts = "previewDrafts"
)

// Stats describes one completed fetch.
type Stats struct {
	Query      string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Config configures a Client.
type Config struct {
	Endpoint Endpoint
	// BaseURL replaces https://<project>.api.sanity.io when set.
	BaseURL    string
	HTTPClient *http.Client
	// Timeout is used when HTTPClient is nil.
	Timeout time.Duration
	Logger  *zap.Logger
	// Observe, if set, is called after every fetch.
	Observe func(Stats)
}

// Client fetches query results for one endpoint.
type Client struct {
	endpoint Endpoint
	baseURL  string
	http     *http.Client
	log      *zap.Logger
	observe  func(Stats)
}

// NewClient validates the endpoint and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(cfg.Timeout)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		baseURL:  cfg.BaseURL,
		http:     hc,
		log:      log.With(zap.String("project", cfg.Endpoint.ProjectID), zap.String("dataset", cfg.Endpoint.Dataset)),
		observe:  cfg.Observe,
	}, nil
}

// Endpoint returns the endpoint the client queries.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type fetchOptions struct {
	perspective string
	token       string
}

// FetchOption adjusts a single fetch.
type FetchOption func(*fetchOptions)

// WithPerspective selects which document versions the query sees.
func WithPerspective(p string) FetchOption {
	return func(o *fetchOptions) { o.perspective = p }
}

// WithToken authenticates the request. Drafts are only visible with a token.
func WithToken(token string) FetchOption {
	return func(o *fetchOptions) { o.token = token }
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error"`
}

// Fetch runs q and returns its result. A 200 response without a "result"
// member is an empty result, not an error.
func (c *Client) Fetch(ctx context.Context, q groq.Query, opts ...FetchOption) (Result, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	params, err := q.Values()
	if err != nil {
		return Result{}, err
	}
	if o.perspective != "" {
		params.Set("perspective", o.perspective)
	}

	u := c.endpoint.QueryURL(c.baseURL, c.endpoint.UseCDN && o.token == "") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	start := time.Now()
	res, status, err := c.do(req)
	if c.observe != nil {
		c.observe(Stats{Query: q.Text, StatusCode: status, Duration: time.Since(start), Err: err})
	}
	return res, err
}

func (c *Client) do(req *http.Request) (Result, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("content api request failed", zap.Error(err))
		return Result{}, 0, &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.log.Error("content api body read failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return Result{}, resp.StatusCode, &FetchError{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{Kind: KindStatus, StatusCode: resp.StatusCode, Body: truncate(string(body), maxLoggedBody)}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			fe.Description = er.Error.Description
		}
		c.log.Warn("content api returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", fe.Body),
		)
		return Result{}, resp.StatusCode, fe
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		c.log.Error("content api returned invalid json", zap.Error(err))
		return Result{}, resp.StatusCode, &FetchError{Kind: KindDecode, StatusCode: resp.StatusCode, Body: truncate(string(body), maxLoggedBody), Err: err}
	}
	result, err := NewResult(qr.Result)
	if err != nil {
		return Result{}, resp.StatusCode, &FetchError{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return result, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
