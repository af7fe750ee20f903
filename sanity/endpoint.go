package sanity

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultAPIVersion is the dated API version queries are written against.
const DefaultAPIVersion = "2021-10-21"

var (
	reProjectID  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	reDataset    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	reAPIVersion = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|1|X)$`)
)

// ErrInvalidEndpoint is returned when the project id, dataset or API version
// cannot form a valid request URL.
var ErrInvalidEndpoint = errors.New("sanity: invalid endpoint")

// Endpoint identifies which content store instance to query.
type Endpoint struct {
	ProjectID  string `yaml:"project_id"`
	Dataset    string `yaml:"dataset"`
	APIVersion string `yaml:"api_version"`
	UseCDN     bool   `yaml:"use_cdn"`
}

// Validate reports whether e can address the query API.
func (e Endpoint) Validate() error {
	if !reProjectID.MatchString(e.ProjectID) {
		return fmt.Errorf("%w: project id %q", ErrInvalidEndpoint, e.ProjectID)
	}
	if !reDataset.MatchString(e.Dataset) {
		return fmt.Errorf("%w: dataset %q", ErrInvalidEndpoint, e.Dataset)
	}
	if !reAPIVersion.MatchString(e.Version()) {
		return fmt.Errorf("%w: api version %q", ErrInvalidEndpoint, e.APIVersion)
	}
	return nil
}

// Version returns the API version, defaulting to DefaultAPIVersion.
func (e Endpoint) Version() string {
	if e.APIVersion == "" {
		return DefaultAPIVersion
	}
	return strings.TrimPrefix(e.APIVersion, "v")
}

// Host returns the API host for the project. The CDN host serves cached,
// published content only.
func (e Endpoint) Host(cdn bool) string {
	if cdn {
		return e.ProjectID + ".apicdn.sanity.io"
	}
	return e.ProjectID + ".api.sanity.io"
}

// QueryURL returns the query endpoint URL. A non-empty base replaces the
// scheme and host, which tests and proxies use.
func (e Endpoint) QueryURL(base string, cdn bool) string {
	p := "/v" + e.Version() + "/data/query/" + url.PathEscape(e.Dataset)
	if base != "" {
		return strings.TrimRight(base, "/") + p
	}
	return "https://" + e.Host(cdn) + p
}
