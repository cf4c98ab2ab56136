package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// openSQLite opens the database file and wraps it with our sql adapter
func openSQLite(ctx context.Context, cfg SQLiteConfig) (TxRunner, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	busy := cfg.BusyTimeoutMs
	if busy <= 0 {
		busy = 5000
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, busy,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// One connection keeps sqlite's single-writer model honest; the adapter's
	// write mutex keeps our own hold times short and observable
	db.SetMaxOpenConns(1)

	a := &sqliteAdapter{db: db}
	if err := a.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return a, nil
}

// sqliteAdapter adapts database/sql to the store seams
type sqliteAdapter struct {
	db *sql.DB
	mu sync.Mutex // serializes writes; held around Exec and for the whole of a Tx, not for plain Query/QueryRow
}

func (a *sqliteAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *sqliteAdapter) Close() error { return a.db.Close() }

func (a *sqliteAdapter) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	a.mu.Lock()
	res, err := a.db.ExecContext(ctx, q, args...)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sqlTag{res: res}, nil
}

func (a *sqliteAdapter) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (a *sqliteAdapter) QueryRow(ctx context.Context, q string, args ...any) Row {
	return a.db.QueryRowContext(ctx, q, args...)
}

// Tx runs fn inside a transaction, committing on nil and rolling back otherwise
func (a *sqliteAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqliteTx exposes the same seams inside a transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Exec(ctx context.Context, q string, args ...any) (CommandTag, error) {
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return sqlTag{res: res}, nil
}

func (t *sqliteTx) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqliteTx) QueryRow(ctx context.Context, q string, args ...any) Row {
	return t.tx.QueryRowContext(ctx, q, args...)
}

// sqlTag adapts sql.Result to CommandTag
type sqlTag struct{ res sql.Result }

func (t sqlTag) String() string {
	n, _ := t.res.RowsAffected()
	return fmt.Sprintf("rows affected %d", n)
}

func (t sqlTag) RowsAffected() int64 {
	n, _ := t.res.RowsAffected()
	return n
}

// sqlRows adapts sql.Rows to the Rows seam
type sqlRows struct{ rows *sql.Rows }

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error             { return r.rows.Err() }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }

func (r *sqlRows) Columns() []string {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil
	}
	return cols
}
