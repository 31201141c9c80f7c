package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/000001_init.up.sql
var initSchema string

// PostgresDocuments keeps each collection as one JSONB row.
type PostgresDocuments struct {
	Pool *pgxpool.Pool
}

func NewPostgresDocuments(ctx context.Context, dsn string) (*PostgresDocuments, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresDocuments{Pool: pool}, nil
}

func (d *PostgresDocuments) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, initSchema)
	return err
}

func (d *PostgresDocuments) Get(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := d.Pool.QueryRow(ctx, `SELECT body FROM relay_documents WHERE name = $1`, name).Scan(&body)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return body, nil
}

func (d *PostgresDocuments) Put(ctx context.Context, name string, body []byte) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO relay_documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		name, string(body))
	return err
}

func (d *PostgresDocuments) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.Pool.Ping(ctx)
}

func (d *PostgresDocuments) Close() error {
	if d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
