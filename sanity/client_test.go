package sanity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/sanitypress/groq"
)

var testEndpoint = Endpoint{ProjectID: "abc123", Dataset: "production"}

type recordedRequest struct {
	path   string
	query  map[string]string
	header http.Header
}

func newMockAPI(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := make(map[string]string)
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		mu.Lock()
		reqs = append(reqs, recordedRequest{path: r.URL.Path, query: q, header: r.Header.Clone()})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: testEndpoint, BaseURL: baseURL})
	require.NoError(t, err)
	return c
}

func TestFetchListingTargetsEndpoint(t *testing.T) {
	srv, reqs := newMockAPI(t, http.StatusOK, `{"result":[{"_id":"a","title":"A"},{"_id":"b","title":"B"}]}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Fetch(context.Background(), groq.ListPosts())
	require.NoError(t, err)

	items := res.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].String("title"))

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/v2021-10-21/data/query/production", got.path)
	assert.Contains(t, got.query["query"], `_type == "post"`)
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestFetchSendsBoundParams(t *testing.T) {
	srv, reqs := newMockAPI(t, http.StatusOK, `{"result":null}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Fetch(context.Background(), groq.PostBySlugs("travel", "rome"))
	require.NoError(t, err)

	_, ok := res.Item()
	assert.False(t, ok)
	assert.True(t, res.Empty())

	got := (*reqs)[0]
	assert.Equal(t, `"travel"`, got.query["$category"])
	assert.Equal(t, `"rome"`, got.query["$slug"])
}

func TestFetchEmptyResultIsNotAnError(t *testing.T) {
	srv, _ := newMockAPI(t, http.StatusOK, `{"result":[]}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Fetch(context.Background(), groq.ListPosts())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Items())
	assert.Len(t, res.Items(), 0)
}

func TestFetchMissingResultIsEmpty(t *testing.T) {
	srv, _ := newMockAPI(t, http.StatusOK, `{"ms":3,"query":"*"}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Fetch(context.Background(), groq.ListPosts())
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Len(t, res.Items(), 0)
}

func TestFetchStatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv, _ := newMockAPI(t, status, `{"error":{"description":"boom","type":"httpError"}}`)
		c := newTestClient(t, srv.URL)

		_, err := c.Fetch(context.Background(), groq.ListPosts())
		require.Error(t, err)

		var fe *FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, KindStatus, fe.Kind)
		assert.Equal(t, status, fe.StatusCode)
		assert.Equal(t, "boom", fe.Description)
		assert.True(t, IsStatus(err, status))
	}
}

func TestFetchDecodeError(t *testing.T) {
	srv, _ := newMockAPI(t, http.StatusOK, `<html>not json</html>`)
	c := newTestClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), groq.ListPosts())
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Fetch(context.Background(), groq.ListPosts())
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestFetchIsDeterministic(t *testing.T) {
	srv, _ := newMockAPI(t, http.StatusOK, `{"result":[{"_id":"a","n":1.5,"tags":["x","y"]}]}`)
	c := newTestClient(t, srv.URL)

	first, err := c.Fetch(context.Background(), groq.ListPosts())
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), groq.ListPosts())
	require.NoError(t, err)

	assert.Equal(t, first.Items(), second.Items())
	assert.JSONEq(t, string(first.Raw()), string(second.Raw()))
}

func TestFetchPreviewOptions(t *testing.T) {
	srv, reqs := newMockAPI(t, http.StatusOK, `{"result":[]}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), groq.ListPosts(), WithPerspective(PerspectiveDrafts), WithToken("sk-secret"))
	require.NoError(t, err)

	got := (*reqs)[0]
	assert.Equal(t, "previewDrafts", got.query["perspective"])
	assert.Equal(t, "Bearer sk-secret", got.header.Get("Authorization"))
}

func TestFetchObserve(t *testing.T) {
	srv, _ := newMockAPI(t, http.StatusInternalServerError, `{}`)
	var stats []Stats
	c, err := NewClient(Config{
		Endpoint: testEndpoint,
		BaseURL:  srv.URL,
		Observe:  func(s Stats) { stats = append(stats, s) },
	})
	require.NoError(t, err)

	_, _ = c.Fetch(context.Background(), groq.ListPosts())
	require.Len(t, stats, 1)
	assert.Equal(t, http.StatusInternalServerError, stats[0].StatusCode)
	assert.Error(t, stats[0].Err)
}

func TestFetchRejectsUnboundQuery(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.Fetch(context.Background(), groq.New(`*[_id == $id]`))
	assert.ErrorIs(t, err, groq.ErrInvalidQuery)
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: Endpoint{Dataset: "production"}})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = NewClient(Config{Endpoint: Endpoint{ProjectID: "abc"}})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestClientSharesHTTPClient(t *testing.T) {
	hc := &http.Client{}
	c, err := NewClient(Config{Endpoint: testEndpoint, HTTPClient: hc})
	require.NoError(t, err)
	assert.Same(t, hc, c.HTTPClient())

	assert.NotNil(t, newTestClient(t, "").HTTPClient())
}
