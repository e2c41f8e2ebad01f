// Package store wraps the SQLite-backed cache database: schema migrations,
// instrumented connection setup, and the scoped-transaction primitive every
// cache package writes its find-then-fetch-then-save sequence through.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ethcache/fetcher/pkg/metrics"
	"github.com/ethcache/fetcher/pkg/store/db"
	"github.com/ethcache/fetcher/pkg/store/migrations"
)

// Store is a connection to the cache database plus its query layer.
type Store struct {
	Log     zerolog.Logger
	DB      *sql.DB
	Queries *db.Queries
}

// Open connects to the SQLite database at path, running every pending
// migration before returning. path is handed to the mattn/go-sqlite3 driver
// unchanged as its DSN: a plain filesystem path or a file: URI, with any
// SQLite pragmas (WAL, busy_timeout) as query-string parameters.
func Open(path string) (*Store, error) {
	attrs := append([]attribute.KeyValue{
		attribute.String("name", "web3cache"),
	}, metrics.BaseAttrs...)

	dbc, err := otelsql.Open("sqlite3", path, otelsql.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %s", err)
	}
	if err := otelsql.RegisterDBStatsMetrics(dbc, otelsql.WithAttributes(
		attribute.String("name", "web3cache"),
	)); err != nil {
		return nil, fmt.Errorf("registering dbstats: %s", err)
	}

	log := logger.With().Str("component", "web3cache-store").Logger()

	s := &Store{
		Log:     log,
		DB:      dbc,
		Queries: db.New(dbc),
	}
	if err := s.executeMigration(path); err != nil {
		return nil, fmt.Errorf("initializing db connection: %s", err)
	}
	return s, nil
}

// executeMigration runs every pending schema migration embedded in
// pkg/store/migrations. Unlike the go-bindata asset source this depends on
// embed.FS through golang-migrate's iofs driver: the migrations here are
// hand-written SQL files, not generated Go, so there is nothing for
// go-bindata to wrap.
func (s *Store) executeMigration(path string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating source driver: %s", err)
	}

	driver, err := sqlite3.WithInstance(s.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite3 driver: %s", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migration: %s", err)
	}
	defer func() {
		if _, err := m.Close(); err != nil {
			s.Log.Error().Err(err).Msg("closing db migration")
		}
	}()

	version, dirty, err := m.Version()
	s.Log.Info().
		Uint("dbVersion", version).
		Bool("dirty", dirty).
		Err(err).
		Msg("database migration executed")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migration up: %s", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("closing db: %s", err)
	}
	return nil
}

// WithinTx runs fn inside a SQL transaction scoped to the Store's database,
// committing on a nil return and rolling back otherwise. Every cache package
// that writes more than one row atomically (an event plus its covering
// index, for instance) goes through this instead of issuing writes directly
// against Store.Queries.
func (s *Store) WithinTx(ctx context.Context, fn func(txQueries *db.Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %s", err)
	}
	done := false
	defer func() {
		if !done {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.Log.Error().Err(rbErr).Msg("rolling back transaction")
			}
		}
	}()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %s", err)
	}
	done = true
	return nil
}

// Purge deletes every row in every cache table. It is for operators
// resetting a corrupted cache; nothing else in the module calls it.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.Queries.PurgeEvents(ctx); err != nil {
		return err
	}
	if err := s.Queries.PurgeEventIndices(ctx); err != nil {
		return err
	}
	if err := s.Queries.PurgeBlocks(ctx); err != nil {
		return err
	}
	if err := s.Queries.PurgeCalls(ctx); err != nil {
		return err
	}
	if err := s.Queries.PurgeBalances(ctx); err != nil {
		return err
	}
	if err := s.Queries.PurgeERC20Metas(ctx); err != nil {
		return err
	}
	return nil
}
