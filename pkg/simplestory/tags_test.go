package simplestory_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
)

func TestPageTags(t *testing.T) {
	tests := []struct {
		name  string
		story simplestory.Node
		want  []string
	}{
		{
			name: "single path",
			story: simplestory.Node{
				"uuid":      "u1",
				"full_slug": "blog/a",
				"content":   simplestory.Node{"component": "post"},
			},
			want: []string{"u1", "type:post", "blog/a", "blog.index"},
		},
		{
			name: "explicit path and translations",
			story: simplestory.Node{
				"uuid":      "u2",
				"full_slug": "blog/b",
				"path":      "news/b/",
				"content":   simplestory.Node{"component": "post"},
				"translated_slugs": []interface{}{
					simplestory.Node{"path": "de/news/b", "lang": "de"},
					simplestory.Node{"path": "news/b/", "lang": "en"},
				},
			},
			want: []string{"u2", "type:post", "news/b", "news.index", "de/news/b", "de/news.index"},
		},
		{
			name: "no content type",
			story: simplestory.Node{
				"uuid":      "u3",
				"full_slug": "about",
			},
			want: []string{"u3", "about", ".index"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplestory.PageTags(tt.story))
		})
	}
}

func TestTagSet_SharedIndex(t *testing.T) {
	a := simplestory.Node{"uuid": "ua", "full_slug": "blog/a", "content": simplestory.Node{"component": "post"}}
	b := simplestory.Node{"uuid": "ub", "full_slug": "blog/b", "content": simplestory.Node{"component": "post"}}

	tags := simplestory.SortedTags(simplestory.TagSet(a, b))
	assert.Equal(t, []string{"blog.index", "blog/a", "blog/b", "type:post", "ua", "ub"}, tags)
}

func TestRequestTags(t *testing.T) {
	u, err := url.Parse("https://api.example.com/v2/cdn/stories/blog/a?content_type=post&by_slugs=blog/*,about")
	require.NoError(t, err)

	assert.Equal(t, []string{"blog/a", "type:post", "blog.index", "about"}, simplestory.RequestTags(u))

	u, err = url.Parse("https://api.example.com/v2/cdn/links")
	require.NoError(t, err)
	assert.Empty(t, simplestory.RequestTags(u))
}
