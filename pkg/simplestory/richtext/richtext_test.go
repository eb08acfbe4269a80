package richtext_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/richtext"
)

type N = simplestory.Node

func text(s string) N {
	return N{"type": "text", "text": s}
}

func image(src string) N {
	return N{"type": "image", "attrs": N{"src": src}}
}

func paragraph(children ...interface{}) N {
	if children == nil {
		children = []interface{}{}
	}
	return N{"type": "paragraph", "content": children}
}

func blok(component string) N {
	return N{"type": "blok", "attrs": N{"body": []interface{}{N{"component": component, "_uid": component + "-1"}}}}
}

func doc(children ...interface{}) N {
	return N{"type": "doc", "content": children}
}

func TestHoistImages(t *testing.T) {
	tests := []struct {
		name string
		in   N
		want N
	}{
		{
			name: "image between text",
			in:   doc(paragraph(text("A"), image("x.png"), text("B"))),
			want: doc(paragraph(text("A")), image("x.png"), paragraph(text("B"))),
		},
		{
			name: "trailing image leaves empty paragraph",
			in:   doc(paragraph(text("A"), image("x.png"))),
			want: doc(paragraph(text("A")), image("x.png"), paragraph()),
		},
		{
			name: "paragraph without images unchanged",
			in:   doc(paragraph(text("A"), text("B")), N{"type": "heading", "content": []interface{}{text("H")}}),
			want: doc(paragraph(text("A"), text("B")), N{"type": "heading", "content": []interface{}{text("H")}}),
		},
		{
			name: "nested paragraphs are not touched",
			in:   doc(N{"type": "blockquote", "content": []interface{}{paragraph(text("A"), image("x.png"))}}),
			want: doc(N{"type": "blockquote", "content": []interface{}{paragraph(text("A"), image("x.png"))}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, richtext.HoistImages(tt.in))
		})
	}
}

func TestHoistImages_KeepsParagraphAttrs(t *testing.T) {
	p := paragraph(text("A"), image("x.png"), text("B"))
	p["attrs"] = N{"textAlign": "center"}

	out := richtext.HoistImages(doc(p))

	content := out["content"].([]interface{})
	require.Len(t, content, 3)
	assert.Equal(t, N{"textAlign": "center"}, content[0].(N)["attrs"])
	assert.Equal(t, N{"textAlign": "center"}, content[2].(N)["attrs"])
	// Input is not mutated
	assert.Len(t, p["content"], 3)
}

func TestInlineComponents(t *testing.T) {
	tests := []struct {
		name string
		in   N
		want N
	}{
		{
			name: "inline blok joins surrounding paragraphs",
			in:   doc(paragraph(text("A")), blok("inline_link"), paragraph(text("B"))),
			want: doc(paragraph(text("A"), blok("inline_link"), text("B"))),
		},
		{
			name: "inline blok at end",
			in:   doc(paragraph(text("A")), blok("InlineIcon")),
			want: doc(paragraph(text("A"), blok("InlineIcon"))),
		},
		{
			name: "inline blok without preceding paragraph",
			in:   doc(blok("inline_link"), paragraph(text("B"))),
			want: doc(blok("inline_link"), paragraph(text("B"))),
		},
		{
			name: "non matching blok stays a sibling",
			in:   doc(paragraph(text("A")), blok("gallery"), paragraph(text("B"))),
			want: doc(paragraph(text("A")), blok("gallery"), paragraph(text("B"))),
		},
		{
			name: "consecutive inline bloks",
			in:   doc(paragraph(text("A")), blok("inline_a"), blok("inline_b"), paragraph(text("B"))),
			want: doc(paragraph(text("A"), blok("inline_a"), blok("inline_b"), text("B"))),
		},
		{
			name: "bullet list items",
			in: doc(N{"type": "bullet_list", "content": []interface{}{
				N{"type": "list_item", "content": []interface{}{paragraph(text("A")), blok("inline_link"), paragraph(text("B"))}},
			}}),
			want: doc(N{"type": "bullet_list", "content": []interface{}{
				N{"type": "list_item", "content": []interface{}{paragraph(text("A"), blok("inline_link"), text("B"))}},
			}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, richtext.InlineComponents(tt.in, richtext.DefaultInlinePattern))
		})
	}
}

func TestInlineComponents_DoesNotMutateInput(t *testing.T) {
	first := paragraph(text("A"))
	in := doc(first, blok("inline_link"), paragraph(text("B")))

	richtext.InlineComponents(in, richtext.DefaultInlinePattern)

	assert.Equal(t, paragraph(text("A")), first)
	assert.Len(t, in["content"], 3)
}

func TestApply(t *testing.T) {
	in := doc(paragraph(text("A"), image("x.png"), text("B")), blok("cta_inline"), paragraph(text("C")))

	out := richtext.Apply(in, richtext.Options{
		HoistImages: true,
		Inline:      richtext.DefaultInlinePattern,
	})

	assert.Equal(t, doc(
		paragraph(text("A")),
		image("x.png"),
		paragraph(text("B"), blok("cta_inline"), text("C")),
	), out)
}

func TestApply_Matchers(t *testing.T) {
	in := doc(paragraph(text("A")), blok("inline_link"), paragraph(text("B")))

	t.Run("disabled", func(t *testing.T) {
		assert.Equal(t, in, richtext.Apply(in, richtext.Options{}))
	})

	t.Run("custom regexp", func(t *testing.T) {
		out := richtext.Apply(in, richtext.Options{Inline: regexp.MustCompile(`^link$`)})
		assert.Len(t, out["content"], 3)
	})

	t.Run("glob", func(t *testing.T) {
		m, err := richtext.Glob("inline_*")
		require.NoError(t, err)
		out := richtext.Apply(in, richtext.Options{Inline: m})
		assert.Len(t, out["content"], 1)
	})

	t.Run("transform", func(t *testing.T) {
		out := richtext.Apply(in, richtext.Options{Transform: func(d simplestory.Node) simplestory.Node {
			return N{"type": "doc", "content": []interface{}{}}
		}})
		assert.Empty(t, out["content"])
	})

	t.Run("invalid glob", func(t *testing.T) {
		_, err := richtext.Glob("[")
		assert.Error(t, err)
	})
}
