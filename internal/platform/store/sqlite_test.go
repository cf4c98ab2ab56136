package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		SQLite: SQLiteConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestOpenDisabledLeavesNilSeam(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.DB != nil {
		t.Fatalf("disabled backend must stay nil")
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard on empty store: %v", err)
	}
}

func TestExecQueryRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.DB.Exec(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	tag, err := s.DB.Exec(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("rows affected = %d", tag.RowsAffected())
	}

	var v string
	if err := s.DB.QueryRow(ctx, `SELECT v FROM kv WHERE k = ?`, "a").Scan(&v); err != nil {
		t.Fatalf("query row: %v", err)
	}
	if v != "1" {
		t.Fatalf("v = %q", v)
	}

	rows, err := s.DB.Query(ctx, `SELECT k, v FROM kv ORDER BY k`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	cols := rows.Columns()
	if len(cols) != 2 || cols[0] != "k" {
		t.Fatalf("columns = %v", cols)
	}
	n := 0
	for rows.Next() {
		var k, vv string
		if err := rows.Scan(&k, &vv); err != nil {
			t.Fatalf("scan: %v", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows err: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d", n)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.DB.Exec(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err := s.DB.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `INSERT INTO kv (k, v) VALUES ('x', '1')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx err = %v", err)
	}

	var n int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rollback failed, %d rows remain", n)
	}
}

func TestGuardPings(t *testing.T) {
	s := openTemp(t)
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard: %v", err)
	}
}
