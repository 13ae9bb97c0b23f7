package docstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polarline/hvacdesk/internal/platform/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations against dsn.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("docstore: open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("docstore: init migrate: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("docstore: migrate up: %w", err)
	}
	return nil
}

// Postgres keeps documents as JSONB rows in the documents table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validBody(doc.Body); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	const query = `INSERT INTO documents (collection, id, body)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO NOTHING
RETURNING id`
	var id string
	if err := p.pool.QueryRow(ctx, query, collection, doc.ID, string(doc.Body)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("docstore: insert %s/%s: %w", collection, doc.ID, err)
	}
	return id, nil
}

// Update locks the row, merges the patch and writes the result back.
func (p *Postgres) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var body []byte
		err := tx.QueryRow(ctx, `SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id).Scan(&body)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("docstore: lock %s/%s: %w", collection, id, err)
		}
		merged, err := mergeJSON(body, patch)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE documents SET body = $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`, collection, id, string(merged))
		if err != nil {
			return fmt.Errorf("docstore: update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	doc := Document{ID: id}
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`, collection, id).
		Scan(&body, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	doc.Body = body
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	query := `SELECT id, body, created_at, updated_at FROM documents WHERE collection = $1`
	args := []any{collection}
	if opts.OrderBy != "" {
		dir := "ASC NULLS FIRST"
		if opts.Descending {
			dir = "DESC NULLS LAST"
		}
		args = append(args, opts.OrderBy)
		query += fmt.Sprintf(" ORDER BY body -> $2::text %s, created_at", dir)
	} else {
		query += " ORDER BY created_at, id"
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var body []byte
		if err := rows.Scan(&doc.ID, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan %s: %w", collection, err)
		}
		doc.Body = body
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
