// Package store provides the Dolt-backed type database: the shipped
// analysis environment. It keeps the function table (the known-names
// oracle) and every type definition pushed into it, with Dolt's
// version control underneath for history and rollback of a run.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/dolthub/driver"

	"github.com/interruptlabs/header-query-bn/internal/parser"
	"github.com/interruptlabs/header-query-bn/internal/queries"
)

// Store manages the .hq/typedb/ Dolt database and implements
// env.Environment.
type Store struct {
	db      *sql.DB
	dbPath  string
	parser  *parser.Parser
	catalog *queries.Catalog
}

// Open opens or creates the store database under the given .hq
// directory. The Dolt repo lives in .hq/typedb/ and the schema is
// created on first open.
func Open(hqDir string) (*Store, error) {
	if err := os.MkdirAll(hqDir, 0755); err != nil {
		return nil, fmt.Errorf("create .hq directory: %w", err)
	}

	dbPath := filepath.Join(hqDir, "typedb")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("create dolt directory: %w", err)
	}

	// Connect without a database first so a fresh repo gets one.
	initDSN := fmt.Sprintf("file://%s?commitname=hq&commitemail=hq@local", dbPath)
	initDB, err := sql.Open("dolt", initDSN)
	if err != nil {
		return nil, fmt.Errorf("open dolt for init: %w", err)
	}
	if _, err := initDB.Exec("CREATE DATABASE IF NOT EXISTS headerq"); err != nil {
		initDB.Close()
		return nil, fmt.Errorf("create database: %w", err)
	}
	initDB.Close()

	dsn := fmt.Sprintf("file://%s?commitname=hq&commitemail=hq@local&database=headerq", dbPath)
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dolt db: %w", err)
	}

	catalog, err := queries.NewCatalog(parser.Language())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("compile queries: %w", err)
	}

	s := &Store{
		db:      db,
		dbPath:  dbPath,
		parser:  parser.New(),
		catalog: catalog,
	}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenDefault opens the store in the .hq directory under the current
// working directory.
func OpenDefault() (*Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return Open(filepath.Join(cwd, ".hq"))
}

// Close closes the database connection and releases parser resources.
func (s *Store) Close() error {
	if s.parser != nil {
		s.parser.Close()
		s.parser = nil
	}
	if s.catalog != nil {
		s.catalog.Close()
		s.catalog = nil
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the Dolt repo directory.
func (s *Store) Path() string {
	return s.dbPath
}

type txKey struct{}

// Transact runs fn inside one SQL transaction. All store operations fn
// performs through the returned context ride that transaction; an error
// from fn rolls everything back.
func (s *Store) Transact(ctx context.Context, fn func(context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the bare connection.
func (s *Store) conn(ctx context.Context) execer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}
