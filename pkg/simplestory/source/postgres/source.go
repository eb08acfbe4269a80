package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// Schema creates the stories table.
const Schema = `
CREATE TABLE IF NOT EXISTS stories (
	uuid         UUID NOT NULL,
	full_slug    TEXT NOT NULL,
	lang         TEXT NOT NULL DEFAULT 'default',
	content_type TEXT NOT NULL DEFAULT '',
	data         JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (full_slug, lang)
);
CREATE INDEX IF NOT EXISTS stories_content_type_idx ON stories (content_type);
CREATE INDEX IF NOT EXISTS stories_uuid_idx ON stories (uuid);`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Source implements simplestory.StorySource using PostgreSQL
type Source struct {
	db DBTX
}

// New creates a new PostgreSQL story source
func New(db DBTX) *Source {
	return &Source{db: db}
}

// NewWithPool creates a new PostgreSQL story source with connection pool
func NewWithPool(pool *pgxpool.Pool) *Source {
	return &Source{db: pool}
}

// Migrate creates the stories table if it does not exist
func (s *Source) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return s.handlePostgresError("migrate", "", err)
	}
	return nil
}

func (s *Source) handlePostgresError(op, slug string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			err = fmt.Errorf("table does not exist - database migration required")
		default:
			err = fmt.Errorf("database error: %s (code: %s)", pgErr.Message, pgErr.Code)
		}
	}
	return &simplestory.SourceError{Source: "postgres", Slug: slug, Op: op, Err: err}
}

// Put inserts or replaces a story. The story must carry a full_slug; a
// missing uuid is generated.
func (s *Source) Put(ctx context.Context, story simplestory.Node) error {
	slug, _ := story["full_slug"].(string)
	if slug == "" {
		return &simplestory.ValidationError{Field: "full_slug", Err: simplestory.ErrInvalidPayload}
	}
	id, _ := story["uuid"].(string)
	if id == "" {
		id = uuid.NewString()
		story["uuid"] = id
	}
	lang, _ := story["lang"].(string)
	if lang == "" {
		lang = simplestory.DefaultLanguageKeyword
	}
	data, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("encode story %s: %w", slug, err)
	}

	query := `
		INSERT INTO stories (uuid, full_slug, lang, content_type, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (full_slug, lang) DO UPDATE SET
			uuid = EXCLUDED.uuid, content_type = EXCLUDED.content_type,
			data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.Exec(ctx, query, id, slug, lang, simplestory.ContentType(story), data); err != nil {
		return s.handlePostgresError("put", slug, err)
	}
	return nil
}

// GetStory returns the story for slug in the requested language, falling
// back to the fallback language and then to the default language.
func (s *Source) GetStory(ctx context.Context, slug string, params simplestory.StoryParams) (simplestory.Node, error) {
	slug = simplestory.StripStartingSlash(slug)
	query := `
		SELECT data, uuid::text, full_slug, lang FROM stories
		WHERE full_slug = $1 AND lang = ANY($2)
		ORDER BY array_position($2, lang)
		LIMIT 1`

	row := s.db.QueryRow(ctx, query, slug, languages(params))
	story, err := scanStory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplestory.ErrStoryNotFound
		}
		return nil, s.handlePostgresError("get", slug, err)
	}
	return story, nil
}

// ListStories returns the stories matching params ordered by full slug
func (s *Source) ListStories(ctx context.Context, params simplestory.StoriesParams) ([]simplestory.Node, error) {
	query, args := listQuery(params)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, s.handlePostgresError("list", params.StartsWith, err)
	}
	defer rows.Close()

	stories := []simplestory.Node{}
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, s.handlePostgresError("list", params.StartsWith, err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("list", params.StartsWith, err)
	}
	return stories, nil
}

func languages(params simplestory.StoryParams) []string {
	langs := make([]string, 0, 3)
	for _, l := range []string{params.Language, params.FallbackLang, simplestory.DefaultLanguageKeyword} {
		if l == "" {
			continue
		}
		dup := false
		for _, existing := range langs {
			dup = dup || existing == l
		}
		if !dup {
			langs = append(langs, l)
		}
	}
	return langs
}

// listQuery builds the filtered listing query for params
func listQuery(params simplestory.StoriesParams) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	lang := params.Language
	if lang == "" {
		lang = simplestory.DefaultLanguageKeyword
	}
	where = append(where, "lang = "+arg(lang))
	if params.StartsWith != "" {
		where = append(where, "full_slug LIKE "+arg(escapeLike(params.StartsWith)+"%"))
	}
	if params.ContentType != "" {
		where = append(where, "content_type = "+arg(params.ContentType))
	}
	if params.SearchTerm != "" {
		where = append(where, "data->>'name' ILIKE "+arg("%"+escapeLike(params.SearchTerm)+"%"))
	}
	if len(params.BySlugs) > 0 {
		var alts []string
		for _, slug := range params.BySlugs {
			if prefix, ok := strings.CutSuffix(slug, "*"); ok {
				alts = append(alts, "full_slug LIKE "+arg(escapeLike(prefix)+"%"))
			} else {
				alts = append(alts, "full_slug = "+arg(slug))
			}
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}

	query := "SELECT data, uuid::text, full_slug, lang FROM stories WHERE " +
		strings.Join(where, " AND ") + " ORDER BY full_slug"
	if params.PerPage > 0 {
		page := params.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT " + arg(params.PerPage) + " OFFSET " + arg((page-1)*params.PerPage)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanStory(row pgx.Row) (simplestory.Node, error) {
	var (
		data               []byte
		id, fullSlug, lang string
	)
	if err := row.Scan(&data, &id, &fullSlug, &lang); err != nil {
		return nil, err
	}
	story := simplestory.Node{}
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", fullSlug, err)
	}
	story["uuid"] = id
	story["full_slug"] = fullSlug
	if _, ok := story["lang"]; !ok {
		story["lang"] = lang
	}
	return story, nil
}

var _ simplestory.StoryWriter = (*Source)(nil)
