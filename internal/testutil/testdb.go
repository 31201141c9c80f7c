package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"relay-lounge/internal/config"
	"relay-lounge/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestPostgres returns documents in a throwaway schema. Skips when
// TEST_POSTGRES_DSN is unset.
func OpenTestPostgres(t *testing.T) *store.PostgresDocuments {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	ctx := context.Background()
	base, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(ctx, createSchemaSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}
	base.Close()

	docs, err := store.NewPostgresDocuments(ctx, withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := docs.EnsureSchema(ctx); err != nil {
		_ = docs.Close()
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		_ = docs.Close()
		base, err := pgxpool.New(context.Background(), dsn)
		if err == nil {
			if dropSchemaSQL, ddlErr := schemaDDL("DROP SCHEMA %s CASCADE", schema); ddlErr == nil {
				_, _ = base.Exec(context.Background(), dropSchemaSQL)
			}
			base.Close()
		}
	})
	return docs
}

// OpenTestRedis returns documents under a unique key prefix. Skips when
// TEST_REDIS_URL is unset.
func OpenTestRedis(t *testing.T) *store.RedisDocuments {
	t.Helper()
	cfg, err := config.LoadTestRedis()
	if err != nil {
		t.Skipf("skip test redis: %v", err)
	}
	prefix := fmt.Sprintf("test_%d:", time.Now().UnixNano())
	docs, err := store.NewRedisDocuments(context.Background(), cfg.TestRedisURL, prefix)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	return docs
}

// OpenFileStore returns a Store rooted in a per-test temp dir.
func OpenFileStore(t *testing.T) *store.Store {
	t.Helper()
	docs, err := store.NewFileDocuments(t.TempDir())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return store.New(docs)
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
