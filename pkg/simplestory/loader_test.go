package simplestory_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/source/memory"
)

func newTestSource() *memory.Source {
	return memory.New(
		simplestory.Node{
			"uuid":      "home-uuid",
			"full_slug": "home",
			"content": simplestory.Node{
				"component": "page",
				"_uid":      "root",
				"body": []interface{}{
					simplestory.Node{"component": "latest_posts", "_uid": "lp"},
				},
			},
		},
		simplestory.Node{
			"uuid":      "a-uuid",
			"full_slug": "blog/a",
			"content":   simplestory.Node{"component": "post", "_uid": "a"},
		},
		simplestory.Node{
			"uuid":      "b-uuid",
			"full_slug": "blog/b",
			"content":   simplestory.Node{"component": "post", "_uid": "b"},
		},
	)
}

func TestLoaderCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplestory.Option
		expectError bool
	}{
		{
			name:        "no source should fail",
			options:     []simplestory.Option{},
			expectError: true,
		},
		{
			name:        "with source should succeed",
			options:     []simplestory.Option{simplestory.WithSource(newTestSource())},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := simplestory.New(tt.options...)
			if tt.expectError {
				assert.ErrorIs(t, err, simplestory.ErrSourceRequired)
				assert.Nil(t, loader)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, loader)
			}
		})
	}
}

func TestLoader_GetStory(t *testing.T) {
	ctx := context.Background()
	latestPosts := func(ctx context.Context, b simplestory.Node, rc *simplestory.ResolverContext, ancestors []interface{}) (simplestory.Node, error) {
		stories, err := rc.GetStories(ctx, simplestory.StoriesParams{StartsWith: "blog/"})
		if err != nil {
			return nil, err
		}
		posts := make([]interface{}, 0, len(stories))
		for _, s := range stories {
			posts = append(posts, s[simplestory.FieldPublicURL])
		}
		return simplestory.Node{"posts": posts}, nil
	}

	loader, err := simplestory.New(
		simplestory.WithSource(newTestSource()),
		simplestory.WithPrefix("/en"),
		simplestory.WithPreviewParams(url.Values{"_storyblok": []string{"1"}}),
		simplestory.WithResolvers(simplestory.Registry{"latest_posts": latestPosts}),
	)
	require.NoError(t, err)

	story, err := loader.GetStory(ctx, "home", simplestory.StoryParams{})
	require.NoError(t, err)

	assert.Equal(t, "/en/home?_storyblok=1", story[simplestory.FieldPublicURL])
	assert.Equal(t, "/en", story[simplestory.FieldPublicURLPrefix])
	assert.Equal(t, "_storyblok=1", story[simplestory.FieldPreviewParams])

	resolved := story[simplestory.FieldResolvedData].(simplestory.Node)
	require.Contains(t, resolved, "lp")
	assert.Equal(t,
		[]interface{}{"/en/blog/a?_storyblok=1", "/en/blog/b?_storyblok=1"},
		resolved["lp"].(simplestory.Node)["posts"])

	block := story["content"].(simplestory.Node)["body"].([]interface{})[0].(simplestory.Node)
	assert.Len(t, block["posts"], 2)
}

func TestLoader_GetStoryNotFound(t *testing.T) {
	loader, err := simplestory.New(simplestory.WithSource(newTestSource()))
	require.NoError(t, err)

	_, err = loader.GetStory(context.Background(), "missing", simplestory.StoryParams{})
	assert.ErrorIs(t, err, simplestory.ErrStoryNotFound)
}

func TestLoader_ForLanguage(t *testing.T) {
	loader, err := simplestory.New(
		simplestory.WithSource(newTestSource()),
		simplestory.WithDefaultLanguage("en"),
	)
	require.NoError(t, err)

	assert.Equal(t, "", loader.ForLanguage("en").Prefix())
	assert.Equal(t, "de", loader.ForLanguage("de").Prefix())
	assert.Same(t, loader, loader.ForLanguage(""))

	stories, err := loader.ForLanguage("de").GetStories(context.Background(), simplestory.StoriesParams{StartsWith: "blog/"})
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "/de/blog/a", stories[0][simplestory.FieldPublicURL])
}

func TestLoader_ContextValues(t *testing.T) {
	resolvers := simplestory.Registry{
		"latest_posts": func(ctx context.Context, b simplestory.Node, rc *simplestory.ResolverContext, ancestors []interface{}) (simplestory.Node, error) {
			return simplestory.Node{"site": rc.Value("site")}, nil
		},
	}
	loader, err := simplestory.New(
		simplestory.WithSource(newTestSource()),
		simplestory.WithResolvers(resolvers),
		simplestory.WithContextValues(map[string]interface{}{"site": "blog.example"}),
	)
	require.NoError(t, err)

	story, err := loader.GetStory(context.Background(), "home", simplestory.StoryParams{})
	require.NoError(t, err)
	resolved := story[simplestory.FieldResolvedData].(simplestory.Node)
	assert.Equal(t, "blog.example", resolved["lp"].(simplestory.Node)["site"])
}

func TestLoader_Tags(t *testing.T) {
	loader, err := simplestory.New(simplestory.WithSource(newTestSource()))
	require.NoError(t, err)

	tags, err := loader.Tags(context.Background(), "blog/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-uuid", "type:post", "blog/a", "blog.index"}, tags)
}
