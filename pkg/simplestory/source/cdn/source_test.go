package cdn_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/cache"
	"github.com/tendant/simple-story/pkg/simplestory/source/cdn"
)

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last() *http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func newAPI(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v2/cdn/stories/blog/a":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"story": map[string]interface{}{
					"uuid":      "a-uuid",
					"full_slug": "blog/a",
					"content":   map[string]interface{}{"component": "post", "_uid": "a"},
				},
			})
		case r.URL.Path == "/v2/cdn/stories":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"stories": []interface{}{
					map[string]interface{}{"full_slug": "blog/a"},
					map[string]interface{}{"full_slug": "blog/b"},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/v2/cdn/stories/"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestSource_GetStory(t *testing.T) {
	srv, rec := newAPI(t)
	src := cdn.New("secret", cdn.WithBaseURL(srv.URL+"/v2/"))
	ctx := context.Background()

	story, err := src.GetStory(ctx, "/blog/a", simplestory.StoryParams{Version: "published", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, "blog/a", story["full_slug"])

	q := rec.last().URL.Query()
	assert.Equal(t, "secret", q.Get("token"))
	assert.Equal(t, "published", q.Get("version"))
	assert.Equal(t, "de", q.Get("language"))

	_, err = src.GetStory(ctx, "missing", simplestory.StoryParams{})
	assert.ErrorIs(t, err, simplestory.ErrStoryNotFound)
}

func TestSource_ListStories(t *testing.T) {
	srv, rec := newAPI(t)
	src := cdn.New("secret", cdn.WithBaseURL(srv.URL+"/v2"))

	stories, err := src.ListStories(context.Background(), simplestory.StoriesParams{StartsWith: "blog/", PerPage: 25})
	require.NoError(t, err)
	assert.Len(t, stories, 2)

	q := rec.last().URL.Query()
	assert.Equal(t, "blog/", q.Get("starts_with"))
	assert.Equal(t, "25", q.Get("per_page"))
}

func TestSource_TaggedCache(t *testing.T) {
	srv, rec := newAPI(t)
	c := cache.NewTagged[[]byte](0, 0)
	src := cdn.New("secret", cdn.WithBaseURL(srv.URL+"/v2"), cdn.WithCache(c))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := src.GetStory(ctx, "blog/a", simplestory.StoryParams{Version: "published"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, rec.count())

	// Draft requests are never cached
	for i := 0; i < 2; i++ {
		_, err := src.GetStory(ctx, "blog/a", simplestory.StoryParams{Version: "draft"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, rec.count())

	// Invalidating the page tag evicts the cached response
	require.NoError(t, c.Invalidate(ctx, "blog/a"))
	_, err := src.GetStory(ctx, "blog/a", simplestory.StoryParams{Version: "published"})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.count())
}
