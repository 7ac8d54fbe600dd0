package issue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"civicconnect_backend/internal/config"
	platformes "civicconnect_backend/internal/platform/elasticsearch"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeCluster answers Elasticsearch requests from a route table keyed by "METHOD /path".
type fakeCluster struct {
	mu       sync.Mutex
	routes   map[string]func(w http.ResponseWriter)
	requests []recordedRequest
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		fmt.Fprint(w, `{"version":{"number":"8.18.0"},"tagline":"You Know, for Search"}`)
		return
	}
	if handler, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		handler(w)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"error":"no route"}`)
}

func (f *fakeCluster) find(method, path string) (recordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			return r, true
		}
	}
	return recordedRequest{}, false
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func newTestIndex(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*ESSearchIndex, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{routes: routes}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := platformes.NewClient(&config.Config{ElasticsearchURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)

	index, ok := NewSearchIndex(client, zap.NewNop()).(*ESSearchIndex)
	require.True(t, ok)
	return index, cluster
}

func TestNewSearchIndex_DisabledWithoutCluster(t *testing.T) {
	client, err := platformes.NewClient(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, client)

	index := NewSearchIndex(client, zap.NewNop())

	assert.NoError(t, index.IndexIssue(context.Background(), &Issue{}))
	assert.NoError(t, index.DeleteIssue(context.Background(), uuid.New()))
	_, err = index.Search(context.Background(), "pothole", 10)
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestESSearchIndex_Search(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	index, cluster := newTestIndex(t, map[string]func(w http.ResponseWriter){
		"POST /issues/_search": respond(http.StatusOK, fmt.Sprintf(
			`{"hits":{"hits":[{"_id":"%s"},{"_id":"not-a-uuid"},{"_id":"%s"}]}}`, first, second)),
	})

	ids, err := index.Search(context.Background(), "broken light", 5)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
	req, ok := cluster.find(http.MethodPost, "/issues/_search")
	require.True(t, ok)
	assert.Contains(t, req.Body, `"multi_match"`)
	assert.Contains(t, req.Body, `"broken light"`)
	assert.Contains(t, req.Body, `"size":5`)
}

func TestESSearchIndex_SearchErrorStatus(t *testing.T) {
	index, _ := newTestIndex(t, map[string]func(w http.ResponseWriter){
		"POST /issues/_search": respond(http.StatusBadRequest, `{"error":"parse"}`),
	})

	_, err := index.Search(context.Background(), "x", 5)
	assert.Error(t, err)
}

func TestESSearchIndex_IndexAndDelete(t *testing.T) {
	issue := &Issue{Title: "Pothole", Category: CategoryRoads, Status: StatusPending, Priority: PriorityHigh, Latitude: 47.6, Longitude: -122.3}
	issue.ID = uuid.New()
	missing := uuid.New()

	index, cluster := newTestIndex(t, map[string]func(w http.ResponseWriter){
		"PUT /issues/_doc/" + issue.ID.String():    respond(http.StatusCreated, `{"result":"created"}`),
		"DELETE /issues/_doc/" + missing.String():  respond(http.StatusNotFound, `{"result":"not_found"}`),
		"DELETE /issues/_doc/" + issue.ID.String(): respond(http.StatusOK, `{"result":"deleted"}`),
	})

	require.NoError(t, index.IndexIssue(context.Background(), issue))
	req, ok := cluster.find(http.MethodPut, "/issues/_doc/"+issue.ID.String())
	require.True(t, ok)
	assert.Contains(t, req.Body, `"location":{"lat":47.6,"lon":-122.3}`)
	assert.Contains(t, req.Body, `"category":"roads"`)

	assert.NoError(t, index.DeleteIssue(context.Background(), issue.ID))
	assert.NoError(t, index.DeleteIssue(context.Background(), missing))
}

func TestESSearchIndex_EnsureIndex(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		index, cluster := newTestIndex(t, map[string]func(w http.ResponseWriter){
			"PUT /issues": respond(http.StatusOK, `{"acknowledged":true}`),
		})

		require.NoError(t, index.EnsureIndex(context.Background()))
		req, ok := cluster.find(http.MethodPut, "/issues")
		require.True(t, ok)
		assert.Contains(t, req.Body, `"geo_point"`)
	})

	t.Run("existing index is left alone", func(t *testing.T) {
		index, cluster := newTestIndex(t, map[string]func(w http.ResponseWriter){
			"HEAD /issues": respond(http.StatusOK, ""),
		})

		require.NoError(t, index.EnsureIndex(context.Background()))
		_, created := cluster.find(http.MethodPut, "/issues")
		assert.False(t, created)
	})
}

func TestESSearchIndex_BulkIndex(t *testing.T) {
	issues := make([]Issue, 3)
	for i := range issues {
		issues[i].ID = uuid.New()
		issues[i].Title = fmt.Sprintf("Issue %d", i)
	}
	bulkBody := fmt.Sprintf(`{"errors":true,"items":[
		{"index":{"_id":"%s","status":201}},
		{"index":{"_id":"%s","status":400,"error":{"type":"mapper_parsing_exception"}}},
		{"index":{"_id":"%s","status":201}}]}`, issues[0].ID, issues[1].ID, issues[2].ID)

	index, cluster := newTestIndex(t, map[string]func(w http.ResponseWriter){
		"POST /_bulk": respond(http.StatusOK, bulkBody),
	})

	result, err := index.BulkIndex(context.Background(), issues, "wait_for")

	require.NoError(t, err)
	assert.Equal(t, BulkResult{Synced: 2, Failed: 1}, result)
	req, ok := cluster.find(http.MethodPost, "/_bulk")
	require.True(t, ok)
	assert.Contains(t, req.Query, "refresh=wait_for")
	assert.Equal(t, 6, strings.Count(req.Body, "\n"))
}

func TestESSearchIndex_BulkIndexEmptyBatch(t *testing.T) {
	index, cluster := newTestIndex(t, nil)

	result, err := index.BulkIndex(context.Background(), nil, "false")

	require.NoError(t, err)
	assert.Equal(t, BulkResult{}, result)
	_, sent := cluster.find(http.MethodPost, "/_bulk")
	assert.False(t, sent)
}
