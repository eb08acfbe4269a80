package simplestory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-story/pkg/simplestory"
)

func TestExtract(t *testing.T) {
	content := simplestory.Node{
		"component": "page",
		"_uid":      "root",
		"headline":  "Welcome",
		"image":     simplestory.Node{"fieldtype": "asset", "filename": "https://a.example.com/hero.jpg"},
		"body": []interface{}{
			simplestory.Node{
				"component":   "teaser",
				"_uid":        "t1",
				"description": "A short teaser.",
			},
			simplestory.Node{
				"component": "text",
				"_uid":      "t2",
				"text": simplestory.Node{
					"type": "doc",
					"content": []interface{}{
						simplestory.Node{
							"type":    "heading",
							"content": []interface{}{simplestory.Node{"type": "text", "text": "Section"}},
						},
						simplestory.Node{
							"type": "paragraph",
							"content": []interface{}{
								simplestory.Node{"type": "text", "text": "Body copy."},
								simplestory.Node{"type": "image", "attrs": simplestory.Node{"src": "https://a.example.com/inline.png", "alt": "inline"}},
							},
						},
					},
				},
			},
		},
	}

	excerpt := simplestory.Extract(content)

	assert.Equal(t, []string{"Section", "Welcome"}, excerpt.Headlines)
	assert.Equal(t, []string{"A short teaser.", "Section", "Body copy."}, excerpt.Text)
	if assert.Len(t, excerpt.Images, 2) {
		assert.Equal(t, "https://a.example.com/inline.png", excerpt.Images[0]["filename"])
		assert.Equal(t, "inline", excerpt.Images[0]["alt"])
		assert.Equal(t, "https://a.example.com/hero.jpg", excerpt.Images[1]["filename"])
	}

	assert.Equal(t, len("Section")+len("Welcome")+len("A short teaser.")+len("Section")+len("Body copy."), simplestory.CharCount(content))
}

func TestFullSentences(t *testing.T) {
	tests := []struct {
		name     string
		text     []string
		maxChars int
		want     string
	}{
		{name: "complete sentences kept", text: []string{"One. Two!"}, maxChars: 100, want: "One. Two!"},
		{name: "incomplete tail dropped", text: []string{"One. Two is cut"}, maxChars: 100, want: "One."},
		{name: "truncation then drop", text: []string{"First sentence. Second sentence."}, maxChars: 20, want: "First sentence."},
		{name: "no marker kept", text: []string{"no marker here"}, maxChars: 100, want: "no marker here"},
		{name: "joined by newline", text: []string{"A.", "B?"}, maxChars: 100, want: "A.\nB?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplestory.FullSentences(tt.text, tt.maxChars))
		})
	}
}
