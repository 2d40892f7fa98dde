// Package postgres implements the store.Store interface backed by PostgreSQL.
//
// All items live in one table keyed by (pk, sk) with a JSONB body. Every
// operation is a single statement touching a single row (or a read), so the
// backend offers exactly the guarantees of the store contract and no more.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/evreg/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool defaults. Registration traffic is short single-row statements, so a
// modest pool goes a long way.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
)

// Options tunes the connection pool. Zero values select the defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SkipMigrations leaves the schema alone, for databases managed elsewhere.
	SkipMigrations bool
}

// Store is a store.Store over one PostgreSQL items table.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New connects to databaseURL and brings the schema up to date.
func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(orDefault(opts.MaxOpenConns, DefaultMaxOpenConns))
	db.SetMaxIdleConns(orDefault(opts.MaxIdleConns, DefaultMaxIdleConns))
	db.SetConnMaxLifetime(orDefault(opts.ConnMaxLifetime, DefaultConnMaxLifetime))

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if !opts.SkipMigrations {
		if err := migrateUp(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an open handle. The caller owns the schema.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "evreg_schema_migrations"})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	return queryGetItem(ctx, s.db, key)
}

func (s *Store) PutItem(ctx context.Context, item store.Item, opts store.PutOptions) error {
	return queryPutItem(ctx, s.db, item, opts)
}

func (s *Store) ConditionalUpdate(ctx context.Context, key store.Key, upd store.CounterUpdate) error {
	return queryConditionalUpdate(ctx, s.db, key, upd)
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	return queryItems(ctx, s.db, in)
}

func (s *Store) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	return queryScan(ctx, s.db, in)
}
