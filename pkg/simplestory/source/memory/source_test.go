package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/source/memory"
)

func story(slug, component string) simplestory.Node {
	return simplestory.Node{
		"uuid":      "uuid-" + slug,
		"name":      slug,
		"full_slug": slug,
		"content":   simplestory.Node{"component": component, "_uid": "root-" + slug},
	}
}

func TestSource_GetStory(t *testing.T) {
	ctx := context.Background()
	src := memory.New(story("blog/a", "post"))

	got, err := src.GetStory(ctx, "/blog/a", simplestory.StoryParams{})
	require.NoError(t, err)
	assert.Equal(t, "blog/a", got["full_slug"])

	// Mutating the result does not change the stored story
	got["full_slug"] = "changed"
	again, err := src.GetStory(ctx, "blog/a", simplestory.StoryParams{})
	require.NoError(t, err)
	assert.Equal(t, "blog/a", again["full_slug"])

	_, err = src.GetStory(ctx, "missing", simplestory.StoryParams{})
	assert.ErrorIs(t, err, simplestory.ErrStoryNotFound)
}

func TestSource_ListStories(t *testing.T) {
	ctx := context.Background()
	src := memory.New(
		story("blog/b", "post"),
		story("blog/a", "post"),
		story("blog/index", "overview"),
		story("about", "page"),
	)

	tests := []struct {
		name   string
		params simplestory.StoriesParams
		want   []string
	}{
		{
			name:   "starts with folder",
			params: simplestory.StoriesParams{StartsWith: "blog/"},
			want:   []string{"blog/a", "blog/b", "blog/index"},
		},
		{
			name:   "content type",
			params: simplestory.StoriesParams{ContentType: "post"},
			want:   []string{"blog/a", "blog/b"},
		},
		{
			name:   "by slugs with wildcard",
			params: simplestory.StoriesParams{BySlugs: []string{"about", "blog/a*"}},
			want:   []string{"about", "blog/a"},
		},
		{
			name:   "paginated",
			params: simplestory.StoriesParams{Page: 2, PerPage: 2},
			want:   []string{"blog/b", "blog/index"},
		},
		{
			name:   "no match",
			params: simplestory.StoriesParams{StartsWith: "news/"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stories, err := src.ListStories(ctx, tt.params)
			require.NoError(t, err)
			slugs := make([]string, 0, len(stories))
			for _, s := range stories {
				slugs = append(slugs, s["full_slug"].(string))
			}
			assert.Equal(t, tt.want, slugs)
		})
	}
}

func TestSource_Delete(t *testing.T) {
	src := memory.New(story("about", "page"))
	src.Delete("about")

	_, err := src.GetStory(context.Background(), "about", simplestory.StoryParams{})
	assert.ErrorIs(t, err, simplestory.ErrStoryNotFound)
}

func TestSource_Put(t *testing.T) {
	ctx := context.Background()
	src := memory.New()

	s := story("news/x", "post")
	require.NoError(t, src.Put(ctx, s))
	s["name"] = "mutated"

	got, err := src.GetStory(ctx, "news/x", simplestory.StoryParams{})
	require.NoError(t, err)
	assert.Equal(t, "news/x", got["name"])

	err = src.Put(ctx, simplestory.Node{"name": "no slug"})
	assert.ErrorIs(t, err, simplestory.ErrInvalidPayload)
}
