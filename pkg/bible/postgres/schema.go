// Package postgres provides a PostgreSQL-backed [bible.Store].
//
// Verses of every translation live in a single verses table. An optional
// pgvector column holds one embedding per verse so that Postgres can serve
// as the semantic backend instead of the in-memory matrix. The pgvector
// extension must be available in the target database; [Migrate] installs it
// via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn,
//	    postgres.WithDimensions(384),
//	    postgres.WithVersions("KJV", "WEB"),
//	)
//	if err != nil { … }
//	defer store.Close()
//
//	verses, _ := store.Verses(ctx, "John", 3, 16, 18)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlExtensions = `CREATE EXTENSION IF NOT EXISTS vector;`

// ddlVerses is rendered with the embedding dimension. reference is stored
// redundantly so that external tools can join on it.
const ddlVerses = `
CREATE TABLE IF NOT EXISTS verses (
    id          BIGSERIAL    PRIMARY KEY,
    version     TEXT         NOT NULL,
    book        TEXT         NOT NULL,
    book_order  INT          NOT NULL,
    chapter     INT          NOT NULL,
    verse       INT          NOT NULL,
    text        TEXT         NOT NULL,
    reference   TEXT         NOT NULL,
    embedding   vector(%d),
    UNIQUE (version, book, chapter, verse)
);

CREATE INDEX IF NOT EXISTS idx_verses_version_book_chapter
    ON verses (version, lower(book), chapter);

CREATE INDEX IF NOT EXISTS idx_verses_reference
    ON verses (reference);

CREATE INDEX IF NOT EXISTS idx_verses_embedding
    ON verses USING hnsw (embedding vector_cosine_ops);
`

func ensureExtension(ctx context.Context, cc *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cc.Copy())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, ddlExtensions); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	return nil
}

// Migrate creates the pgvector extension, the verses table, and its indexes
// if they do not already exist. It is idempotent. dimensions fixes the
// width of the embedding column on first creation; changing it later needs
// a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("postgres migrate: embedding dimensions must be positive, got %d", dimensions)
	}
	for _, stmt := range []string{ddlExtensions, fmt.Sprintf(ddlVerses, dimensions)} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
