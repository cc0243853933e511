package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/pulpit/pkg/bible"
)

var (
	_ bible.Store    = (*Store)(nil)
	_ bible.Searcher = (*Store)(nil)
)

const defaultDimensions = 384

// Option configures a [Store].
type Option func(*Store)

// WithDimensions sets the embedding column width used on first migration.
// Default: 384 (all-MiniLM-L6-v2).
func WithDimensions(d int) Option {
	return func(s *Store) { s.dimensions = d }
}

// WithVersions fixes the translation order returned by [Store.All].
func WithVersions(versions ...string) Option {
	return func(s *Store) { s.versions = versions }
}

// WithDefaultVersion selects the translation served by lookups. Defaults to
// the first entry of [WithVersions], or "KJV".
func WithDefaultVersion(v string) Option {
	return func(s *Store) { s.defaultVersion = v }
}

// Store is a PostgreSQL-backed verse store. All methods are safe for
// concurrent use.
type Store struct {
	pool           *pgxpool.Pool
	dimensions     int
	versions       []string
	defaultVersion string
}

// NewStore creates a Store, establishes a connection pool to dsn, registers
// pgvector types on every connection, and runs [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{dimensions: defaultDimensions}
	for _, o := range opts {
		o(s)
	}
	if s.defaultVersion == "" {
		s.defaultVersion = "KJV"
		if len(s.versions) > 0 {
			s.defaultVersion = s.versions[0]
		}
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Type registration in AfterConnect fails on a fresh database, so the
	// extension is created over a one-off connection first.
	if err := ensureExtension(ctx, cfg.ConnConfig); err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, s.dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s.pool = pool
	return s, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity. Used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const verseColumns = `book, chapter, verse, text, version`

func collectVerses(rows pgx.Rows) ([]bible.Verse, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByPos[bible.Verse])
}

// Verses implements [bible.Store].
func (s *Store) Verses(ctx context.Context, book string, chapter, start, end int) ([]bible.Verse, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if start <= 0 {
		rows, err = s.pool.Query(ctx, `
			SELECT `+verseColumns+`
			FROM   verses
			WHERE  version = $1 AND lower(book) = lower($2) AND chapter = $3
			ORDER  BY verse`,
			s.defaultVersion, strings.TrimSpace(book), chapter)
	} else {
		if end < start {
			end = start
		}
		rows, err = s.pool.Query(ctx, `
			SELECT `+verseColumns+`
			FROM   verses
			WHERE  version = $1 AND lower(book) = lower($2) AND chapter = $3
			  AND  verse BETWEEN $4 AND $5
			ORDER  BY verse`,
			s.defaultVersion, strings.TrimSpace(book), chapter, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: query verses: %w", err)
	}
	verses, err := collectVerses(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan verses: %w", err)
	}
	return verses, nil
}

// Books implements [bible.Store].
func (s *Store) Books(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT book
		FROM   verses
		WHERE  version = $1
		GROUP  BY book, book_order
		ORDER  BY book_order`, s.defaultVersion)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query books: %w", err)
	}
	books, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan books: %w", err)
	}
	return books, nil
}

// Chapters implements [bible.Store].
func (s *Store) Chapters(ctx context.Context, book string) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT chapter
		FROM   verses
		WHERE  version = $1 AND lower(book) = lower($2)
		ORDER  BY chapter`, s.defaultVersion, strings.TrimSpace(book))
	if err != nil {
		return nil, fmt.Errorf("postgres store: query chapters: %w", err)
	}
	chapters, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan chapters: %w", err)
	}
	return chapters, nil
}

// All implements [bible.Store]. Translations follow [WithVersions]; any
// others sort after them by name.
func (s *Store) All(ctx context.Context) ([]bible.Verse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+verseColumns+`
		FROM   verses
		ORDER  BY array_position($1::text[], version) NULLS LAST, version,
		          book_order, chapter, verse`, s.versions)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query all verses: %w", err)
	}
	verses, err := collectVerses(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan all verses: %w", err)
	}
	return verses, nil
}

// Count implements [bible.Store].
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM verses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count verses: %w", err)
	}
	return n, nil
}

// Search implements [bible.Searcher] with the same scoring as
// [bible.KeywordSearch], evaluated in SQL.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]bible.Verse, error) {
	if limit <= 0 {
		limit = bible.DefaultSearchLimit
	}
	words := bible.Keywords(query)
	if len(words) == 0 {
		return nil, nil
	}

	args := []any{s.defaultVersion}
	terms := make([]string, len(words))
	for i, w := range words {
		args = append(args, "%"+escapeLike(w)+"%")
		terms[i] = fmt.Sprintf("(lower(text) LIKE $%d)::int", len(args))
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT book, chapter, verse, text, version
		FROM (
		    SELECT %s, book_order, %s AS score
		    FROM   verses
		    WHERE  version = $1
		) scored
		WHERE  score > 0
		ORDER  BY score DESC, book_order, chapter, verse
		LIMIT  $%d`, verseColumns, strings.Join(terms, " + "), len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: keyword search: %w", err)
	}
	verses, err := collectVerses(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan search results: %w", err)
	}
	return verses, nil
}

// escapeLike escapes LIKE metacharacters using the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Insert adds verses, ignoring any that already exist for the same
// translation and position.
func (s *Store) Insert(ctx context.Context, verses []bible.Verse) error {
	const q = `
		INSERT INTO verses (version, book, book_order, chapter, verse, text, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (version, book, chapter, verse) DO NOTHING`

	batch := &pgx.Batch{}
	for _, v := range verses {
		batch.Queue(q, v.Version, v.Book, bible.BookOrder(v.Book), v.Chapter, v.Verse, v.Text, v.Reference())
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store: insert verses: %w", err)
	}
	return nil
}

// SetEmbeddings stores one embedding per verse. verses and vectors must be
// parallel slices.
func (s *Store) SetEmbeddings(ctx context.Context, verses []bible.Verse, vectors [][]float32) error {
	if len(verses) != len(vectors) {
		return fmt.Errorf("postgres store: %d verses but %d embeddings", len(verses), len(vectors))
	}
	const q = `
		UPDATE verses SET embedding = $1
		WHERE  version = $2 AND book = $3 AND chapter = $4 AND verse = $5`

	batch := &pgx.Batch{}
	for i, v := range verses {
		batch.Queue(q, pgvector.NewVector(vectors[i]), v.Version, v.Book, v.Chapter, v.Verse)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store: set embeddings: %w", err)
	}
	return nil
}

// Nearest returns the k verses whose embeddings are closest to query by
// cosine distance, most similar first. Score is 1 − distance.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]bible.ScoredVerse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+verseColumns+`, 1 - (embedding <=> $1) AS score
		FROM   verses
		WHERE  embedding IS NOT NULL
		ORDER  BY embedding <=> $1, id
		LIMIT  $2`, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("postgres store: nearest: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bible.ScoredVerse, error) {
		var sv bible.ScoredVerse
		err := row.Scan(&sv.Book, &sv.Chapter, &sv.Verse, &sv.Text, &sv.Version, &sv.Score)
		return sv, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan nearest: %w", err)
	}
	return results, nil
}
