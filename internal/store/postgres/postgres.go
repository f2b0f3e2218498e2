// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListRecords(ctx context.Context, baseID, table string, limit int) ([]*model.Record, error) {
	return queryListRecords(ctx, s.db, baseID, table, limit)
}

func (s *PostgresStore) GetRecord(ctx context.Context, baseID, table, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, baseID, table, id, false)
}

func (s *PostgresStore) CreateRecord(ctx context.Context, baseID, table string, rec *model.Record) error {
	return queryCreateRecord(ctx, s.db, baseID, table, rec)
}

// UpdateRecord reads the row under a lock, merges fields in Go so the key
// order survives, and writes it back in one transaction.
func (s *PostgresStore) UpdateRecord(ctx context.Context, baseID, table, id string, fields model.Fields) (*model.Record, error) {
	var out *model.Record
	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		rec, err := queryGetRecord(ctx, tx, baseID, table, id, true)
		if err != nil {
			return err
		}
		rec.Merge(fields)
		if err := queryWriteFields(ctx, tx, baseID, table, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

func (s *PostgresStore) ReplaceRecord(ctx context.Context, baseID, table string, rec *model.Record) (*model.Record, error) {
	return queryReplaceRecord(ctx, s.db, baseID, table, rec)
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, baseID, table, id string) error {
	return queryDeleteRecord(ctx, s.db, baseID, table, id)
}

// inTransaction begins a transaction, calls fn, and commits on success or
// rolls back on error.
func (s *PostgresStore) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
