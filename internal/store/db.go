package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// dbOps is the query surface shared by *sqlx.DB and *sqlx.Tx, so every
// store method runs unchanged inside or outside a transaction.
type dbOps interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	Rebind(query string) string
}

type DB struct {
	dbOps
	root *sqlx.DB
	inTx bool
}

func NewSQLiteDB(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	store := &DB{dbOps: db, root: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// withPragmas attaches WAL and busy_timeout to the DSN so every pooled
// connection gets them, not only the first one.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)"
}

func (db *DB) Close() error {
	return db.root.Close()
}

// RunInTx runs fn against a transaction-scoped DB. The transaction is
// committed when fn returns nil and rolled back otherwise. Nested calls reuse
// the outer transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(txDB *DB) error) error {
	if db.inTx {
		return fn(db)
	}

	tx, err := db.root.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	txDB := &DB{
		dbOps: tx,
		root:  db.root,
		inTx:  true,
	}

	if err := fn(txDB); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
