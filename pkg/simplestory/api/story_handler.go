package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-story/pkg/simplestory"
)

const maxStoriesPerPage = 100

// TagsResponse is the response body for a story's cache tags
type TagsResponse struct {
	Slug string   `json:"slug"`
	Tags []string `json:"tags"`
}

// StoriesResponse is the response body for a story listing
type StoriesResponse struct {
	Stories []simplestory.Node `json:"stories"`
}

// StoryResponse wraps a resolved story
type StoryResponse struct {
	Story simplestory.Node `json:"story"`
}

// ExcerptResponse is the response body for a story excerpt
type ExcerptResponse struct {
	Slug      string             `json:"slug"`
	Headlines []string           `json:"headlines"`
	Text      string             `json:"text"`
	Images    []simplestory.Node `json:"images"`
	CharCount int                `json:"char_count"`
}

// StoryHandler handles HTTP requests for stories
type StoryHandler struct {
	loader  *simplestory.Loader
	webhook http.Handler
}

// NewStoryHandler creates a new story handler. A nil webhook handler leaves
// POST /webhook unrouted.
func NewStoryHandler(loader *simplestory.Loader, webhook http.Handler) *StoryHandler {
	return &StoryHandler{
		loader:  loader,
		webhook: webhook,
	}
}

// Routes returns the routes for stories
func (h *StoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stories", h.ListStories)
	r.Get("/stories/*", h.GetStory)
	r.Get("/tags/*", h.GetTags)
	r.Get("/excerpt/*", h.GetExcerpt)

	if h.webhook != nil {
		r.Method(http.MethodPost, "/webhook", h.webhook)
	}

	return r
}

// forRequest picks the loader for the lang query parameter
func (h *StoryHandler) forRequest(r *http.Request) *simplestory.Loader {
	return h.loader.ForLanguage(r.URL.Query().Get("lang"))
}

func storyParams(r *http.Request) simplestory.StoryParams {
	q := r.URL.Query()
	p := simplestory.StoryParams{
		Version:      q.Get("version"),
		FallbackLang: q.Get("fallback_lang"),
		ResolveLinks: q.Get("resolve_links"),
		FromRelease:  q.Get("from_release"),
	}
	if rel := q.Get("resolve_relations"); rel != "" {
		p.ResolveRelations = strings.Split(rel, ",")
	}
	return p
}

// GetStory returns the resolved story for the wildcard slug
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "*")
	if slug == "" {
		http.Error(w, "Missing slug", http.StatusBadRequest)
		return
	}

	story, err := h.forRequest(r).GetStory(r.Context(), slug, storyParams(r))
	if err != nil {
		writeError(w, "Failed to get story", slug, err)
		return
	}

	slog.Info("Story resolved", "slug", slug)
	render.JSON(w, r, StoryResponse{Story: story})
}

// ListStories returns the stories matching the query filters
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := simplestory.StoriesParams{
		StoryParams: storyParams(r),
		StartsWith:  q.Get("starts_with"),
		ContentType: q.Get("content_type"),
		SearchTerm:  q.Get("search_term"),
		SortBy:      q.Get("sort_by"),
	}
	if bySlugs := q.Get("by_slugs"); bySlugs != "" {
		params.BySlugs = strings.Split(bySlugs, ",")
	}

	var err error
	if params.Page, err = intParam(q.Get("page")); err != nil {
		http.Error(w, "Invalid page", http.StatusBadRequest)
		return
	}
	if params.PerPage, err = intParam(q.Get("per_page")); err != nil || params.PerPage > maxStoriesPerPage {
		http.Error(w, "Invalid per_page", http.StatusBadRequest)
		return
	}

	stories, err := h.forRequest(r).GetStories(r.Context(), params)
	if err != nil {
		writeError(w, "Failed to list stories", params.StartsWith, err)
		return
	}

	render.JSON(w, r, StoriesResponse{Stories: stories})
}

// GetTags returns the cache tags of a story
func (h *StoryHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "*")
	tags, err := h.forRequest(r).Tags(r.Context(), slug)
	if err != nil {
		writeError(w, "Failed to get tags", slug, err)
		return
	}
	render.JSON(w, r, TagsResponse{Slug: slug, Tags: tags})
}

// GetExcerpt returns the headlines, leading sentences and images of a story
func (h *StoryHandler) GetExcerpt(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "*")
	maxChars, err := intParam(r.URL.Query().Get("max_chars"))
	if err != nil {
		http.Error(w, "Invalid max_chars", http.StatusBadRequest)
		return
	}
	if maxChars == 0 {
		maxChars = simplestory.DefaultExcerptChars
	}

	story, err := h.forRequest(r).GetStory(r.Context(), slug, storyParams(r))
	if err != nil {
		writeError(w, "Failed to get story", slug, err)
		return
	}

	excerpt := simplestory.Extract(story["content"])
	resp := ExcerptResponse{
		Slug:      slug,
		Headlines: excerpt.Headlines,
		Text:      simplestory.FullSentences(excerpt.Text, maxChars),
		Images:    excerpt.Images,
		CharCount: simplestory.CharCount(story["content"]),
	}
	render.JSON(w, r, resp)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}

func writeError(w http.ResponseWriter, msg, slug string, err error) {
	if errors.Is(err, simplestory.ErrStoryNotFound) {
		slog.Warn(msg, "slug", slug, "err", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error(msg, "slug", slug, "err", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}
