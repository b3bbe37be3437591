package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Jabakyo/next-class/internal/database"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrations holds the goose migrations for the documents table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// lockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const lockNotAvailable = "55P03"

// Postgres keeps documents as JSONB rows in the documents table. Each Update
// is one SQL transaction holding a transaction-scoped advisory lock per
// document, so separate server instances are serialized by the database.
type Postgres struct {
	pool        *pgxpool.Pool
	psql        squirrel.StatementBuilderType
	lockTimeout time.Duration
}

type documentRow struct {
	Name string `db:"name"`
	Body []byte `db:"body"`
}

// NewPostgres returns a Postgres-backed Store. The pool is owned by the caller.
func NewPostgres(pool *pgxpool.Pool, lockTimeout time.Duration) *Postgres {
	return &Postgres{
		pool:        pool,
		psql:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		lockTimeout: lockTimeout,
	}
}

// MigrateUp applies pending migrations.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return Migrate(ctx, db, "up")
}

// Migrate runs a goose command (up, down, status, redo, version...) against
// the embedded documents-table migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	names = normalize(names)

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if p.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", p.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	for _, name := range names {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", name); err != nil {
			return mapLockError(name, err)
		}
	}

	docs, err := p.load(ctx, tx, names)
	if err != nil {
		return err
	}

	dtx := newDocTx(names, false, mapLoader(docs))
	if err := fn(dtx); err != nil {
		return err
	}

	now := time.Now()
	for _, name := range dtx.dirtyNames() {
		query, args, err := p.psql.Insert("documents").
			Columns("name", "body", "updated_at").
			Values(name, string(dtx.dirty[name]), now).
			Suffix("ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert document %q: %w", name, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) View(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	names = normalize(names)
	docs, err := p.load(ctx, p.pool, names)
	if err != nil {
		return err
	}
	return fn(newDocTx(names, true, mapLoader(docs)))
}

// Close is a no-op; the pool belongs to the caller.
func (p *Postgres) Close() error { return nil }

func (p *Postgres) load(ctx context.Context, db database.DBTX, names []string) (map[string][]byte, error) {
	docs := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return docs, nil
	}

	query, args, err := p.psql.Select("name", "body").
		From("documents").
		Where(squirrel.Eq{"name": names}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	for _, row := range rows {
		docs[row.Name] = row.Body
	}
	return docs, nil
}

func mapLoader(docs map[string][]byte) func(string) ([]byte, bool, error) {
	return func(name string) ([]byte, bool, error) {
		raw, ok := docs[name]
		return raw, ok, nil
	}
}

func mapLockError(name string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return lock.ErrTimeout.WithDetail("timed out waiting for document " + name).WithCause(err)
	}
	return fmt.Errorf("lock document %q: %w", name, err)
}
