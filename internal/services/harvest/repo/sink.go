package repo

import (
	"context"

	"dpwharvest/internal/platform/store"
	"dpwharvest/internal/services/harvest/domain"
)

// Sink composes the embedded database, the ledgers and the optional file
// outputs into the single persistence surface workers write through
type Sink struct {
	records *Records
	ledgers *Ledgers
	files   *Files

	recordFiles bool
	pageDumps   bool
}

// SinkOption tunes a Sink
type SinkOption func(*Sink)

// WithRecordFiles enables the per-record file mode alongside the database
func WithRecordFiles() SinkOption {
	return func(s *Sink) { s.recordFiles = true }
}

// WithPageDumps enables per-page dump files (list stage)
func WithPageDumps() SinkOption {
	return func(s *Sink) { s.pageDumps = true }
}

// NewSink builds the sink over an open database and the output directory.
// pageLimit names the page dump files; pass the stage's limit even when
// dumps are disabled so resume scans stay consistent
func NewSink(ctx context.Context, db store.TxRunner, outDir string, pageLimit int, opts ...SinkOption) (*Sink, error) {
	led, err := NewLedgers(outDir)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		records: NewRecords(db),
		ledgers: led,
		files:   NewFiles(outDir, pageLimit),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.records.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// PutRecord upserts the record and mirrors it to a file when enabled
func (s *Sink) PutRecord(ctx context.Context, id string, payload []byte) error {
	if err := s.records.Put(ctx, id, payload); err != nil {
		return err
	}
	if s.recordFiles {
		return s.files.WriteRecord(id, payload)
	}
	return nil
}

// WritePageDump stores the raw page payload when dumps are enabled
func (s *Sink) WritePageDump(unit string, payload []byte) error {
	if !s.pageDumps {
		return nil
	}
	return s.files.WritePageDump(unit, payload)
}

// Append adds the unit to a terminal category ledger
func (s *Sink) Append(cat domain.Category, unit string) error {
	return s.ledgers.Append(string(cat), unit)
}

// AppendTransport adds the unit to a per-transport-class bucket
func (s *Sink) AppendTransport(class domain.TransportClass, unit string) error {
	return s.ledgers.Append("error_"+string(class), unit)
}

// WriteRaw dumps the offending body or exception text for the unit
func (s *Sink) WriteRaw(unit, text string) error {
	return s.files.WriteRaw(unit, text)
}

// LoadSuccessful reads the successful ledger for resume
func (s *Sink) LoadSuccessful() (map[string]struct{}, error) {
	return s.ledgers.Load(string(domain.CategorySuccessful))
}

// ExistingPages lists units that already have a page dump on disk
func (s *Sink) ExistingPages() (map[string]struct{}, error) {
	if !s.pageDumps {
		return map[string]struct{}{}, nil
	}
	return s.files.ExistingPages()
}

// Flush rewrites the JSON ledger variants
func (s *Sink) Flush() error { return s.ledgers.Flush() }

// Close releases ledger handles after a final flush
func (s *Sink) Close() error {
	if err := s.ledgers.Flush(); err != nil {
		return err
	}
	return s.ledgers.Close()
}

// Ledgers exposes the ledger view for summaries
func (s *Sink) Ledgers() *Ledgers { return s.ledgers }

// Records exposes the record table for verification tooling
func (s *Sink) Records() *Records { return s.records }
