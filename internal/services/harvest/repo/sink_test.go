package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dpwharvest/internal/platform/store"
	"dpwharvest/internal/platform/testkit"
	"dpwharvest/internal/services/harvest/domain"
)

func newTestSink(t *testing.T, opts ...SinkOption) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), store.Config{
		SQLite: store.SQLiteConfig{Enabled: true, Path: filepath.Join(dir, "records.db")},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	s, err := NewSink(context.Background(), st.DB, dir, 5000, opts...)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestPutRecordUpserts(t *testing.T) {
	s, _ := newTestSink(t)
	ctx := context.Background()

	if err := s.PutRecord(ctx, "22Z00087", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutRecord(ctx, "22Z00087", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("re-put: %v", err)
	}

	body, ok, err := s.Records().Get(ctx, "22Z00087")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(body) != `{"v":2}` {
		t.Fatalf("body = %s", body)
	}
	n, err := s.Records().Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d err=%v", n, err)
	}
}

func TestRecordFilesMirrorWhenEnabled(t *testing.T) {
	s, dir := newTestSink(t, WithRecordFiles())
	if err := s.PutRecord(context.Background(), "A/B", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	// path separators are sanitized out of file names
	raw := testkit.MustReadFile(t, filepath.Join(dir, "records", "A_B.json"))
	if raw != `{"x":1}` {
		t.Fatalf("file body = %q", raw)
	}
}

func TestPageDumpsAndResumeScan(t *testing.T) {
	s, dir := newTestSink(t, WithPageDumps())
	if err := s.WritePageDump("3", []byte(`{"page":3}`)); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pages", "dump-page-3-5000.json")); err != nil {
		t.Fatalf("dump file missing: %v", err)
	}

	pages, err := s.ExistingPages()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := pages["3"]; !ok || len(pages) != 1 {
		t.Fatalf("pages = %v", pages)
	}
}

func TestPageDumpsDisabledAreSilent(t *testing.T) {
	s, dir := newTestSink(t)
	if err := s.WritePageDump("3", []byte(`{}`)); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pages")); !os.IsNotExist(err) {
		t.Fatalf("pages dir should not exist")
	}
	pages, err := s.ExistingPages()
	if err != nil || len(pages) != 0 {
		t.Fatalf("pages = %v err = %v", pages, err)
	}
}

func TestRawDumpAndLedgerRouting(t *testing.T) {
	s, dir := newTestSink(t)

	if err := s.WriteRaw("21B00123", "status 500\nboom"); err != nil {
		t.Fatalf("raw: %v", err)
	}
	raw := testkit.MustReadFile(t, filepath.Join(dir, "raw", "21B00123_raw.txt"))
	testkit.MustContain(t, raw, "boom")

	_ = s.Append(domain.CategorySuccessful, "u1")
	_ = s.AppendTransport(domain.ClassReset, "u1")
	done, err := s.LoadSuccessful()
	if err != nil {
		t.Fatalf("load successful: %v", err)
	}
	if _, ok := done["u1"]; !ok {
		t.Fatalf("successful ledger lost u1")
	}
	if got := s.Ledgers().Counts()["error_reset"]; got != 1 {
		t.Fatalf("transport bucket = %d", got)
	}
}
