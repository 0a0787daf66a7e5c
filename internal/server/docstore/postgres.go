package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lakeadmin/internal/dbx"
	"github.com/dmitrijs2005/lakeadmin/internal/server/docstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore keeps documents in the documents table keyed by
// (collection, key). Bodies are jsonb, so whitespace and key order of a
// stored document are not preserved.
type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return backendError("ping", "documents", "", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := validate(collection, key); err != nil {
		return err
	}
	query :=
		`INSERT INTO documents (collection, key, body, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, key)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = now()`

	res, err := s.db.ExecContext(ctx, query, collection, key, string(doc))
	if err != nil {
		return backendError("put", collection, key, err)
	}
	if dbx.RowsAffected(res) == 0 {
		return backendError("put", collection, key, errors.New("no rows written"))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := validate(collection, key); err != nil {
		return nil, err
	}
	query :=
		`SELECT body FROM documents
		 WHERE collection = $1 AND key = $2`

	var body []byte
	err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(collection, key)
		}
		return nil, backendError("get", collection, key, err)
	}
	return body, nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	query :=
		`SELECT key FROM documents
		 WHERE collection = $1
		 ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, backendError("list", collection, "", err)
	}
	keys, err := dbx.ScanStrings(rows)
	if err != nil {
		return nil, backendError("list", collection, "", err)
	}
	return keys, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	if err := validate(collection, key); err != nil {
		return err
	}
	query :=
		`DELETE FROM documents
		 WHERE collection = $1 AND key = $2`

	if _, err := s.db.ExecContext(ctx, query, collection, key); err != nil {
		return backendError("delete", collection, key, err)
	}
	return nil
}
