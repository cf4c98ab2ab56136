// Package repo provides the sqlite and file persistence for harvest results
package repo

import (
	"context"
	"database/sql"
	"errors"

	perr "dpwharvest/internal/platform/errors"
	"dpwharvest/internal/platform/store"
)

// Records is the embedded-database record table, keyed by unit id with
// upsert semantics so re-attempts cannot corrupt
type Records struct {
	db store.TxRunner
}

// NewRecords constructs the records repo over an open database
func NewRecords(db store.TxRunner) *Records { return &Records{db: db} }

// EnsureSchema creates the records table when absent
func (r *Records) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS records (
			id   TEXT PRIMARY KEY,
			json TEXT NOT NULL
		)`)
	return perr.WrapIf(err, perr.ErrorCodeDB, "ensure records schema")
}

// Put upserts one record
func (r *Records) Put(ctx context.Context, id string, payload []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO records (id, json) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET json = excluded.json`,
		id, string(payload))
	return perr.WrapIf(err, perr.ErrorCodeDB, "put record")
}

// Get reads one record's payload; ok=false when absent
func (r *Records) Get(ctx context.Context, id string) ([]byte, bool, error) {
	var body string
	err := r.db.QueryRow(ctx, `SELECT json FROM records WHERE id = ?`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, perr.Wrapf(err, perr.ErrorCodeDB, "get record")
	}
	return []byte(body), true, nil
}

// Count returns the number of stored records
func (r *Records) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "count records")
	}
	return n, nil
}
