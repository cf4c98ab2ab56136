package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/services/harvest/domain"
)

// SnapshotFile is the live progress artifact inside the output directory
const SnapshotFile = "progress_stats.json"

// snapshotEvery is how often the progress artifact is rewritten
const snapshotEvery = 10 * time.Second

// Progress periodically flushes a JSON snapshot of every counter to disk for
// observability. Crash recovery does not read it; the ledgers are
// authoritative
type Progress struct {
	path  string
	runID string
	stage string
	stats *Stats
	reg   domain.RegistryPort
	sink  domain.SinkPort
	log   logger.Logger
	now   func() time.Time

	// latest holds the last written snapshot for the status listener
	latest func([]byte)
}

// NewProgress builds the snapshotter writing into outDir
func NewProgress(outDir, runID, stage string, stats *Stats, reg domain.RegistryPort, sink domain.SinkPort) *Progress {
	return &Progress{
		path:  filepath.Join(outDir, SnapshotFile),
		runID: runID,
		stage: stage,
		stats: stats,
		reg:   reg,
		sink:  sink,
		log:   *logger.Named("progress"),
		now:   time.Now,
	}
}

// WithListener installs a hook receiving each written snapshot (status server)
func (p *Progress) WithListener(fn func([]byte)) *Progress {
	p.latest = fn
	return p
}

// Run flushes every 10 seconds until ctx is done, then flushes once more so
// the artifact reflects the final state
func (p *Progress) Run(ctx context.Context) {
	t := time.NewTicker(snapshotEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case <-t.C:
			p.flush()
		}
	}
}

// flush writes the snapshot, the JSON ledger variants and the fingerprint
// health file; failures are logged, never fatal
func (p *Progress) flush() {
	b, err := p.render()
	if err != nil {
		p.log.Error().Err(err).Msg("snapshot render failed")
		return
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		p.log.Error().Err(err).Msg("snapshot write failed")
		return
	}
	if err := os.Rename(tmp, p.path); err != nil {
		p.log.Error().Err(err).Msg("snapshot rename failed")
		return
	}
	if p.latest != nil {
		p.latest(b)
	}
	if err := p.sink.Flush(); err != nil {
		p.log.Error().Err(err).Msg("ledger flush failed")
	}
	if err := p.reg.PersistHealth(); err != nil {
		p.log.Error().Err(err).Msg("health persist failed")
	}
}

// render assembles the snapshot document
func (p *Progress) render() ([]byte, error) {
	snap := domain.Snapshot{
		RunID:        p.runID,
		Stage:        p.stage,
		Timestamp:    p.now().UTC(),
		Counters:     p.stats.Counters(),
		Fingerprints: p.reg.FingerprintHealth(),
		Proxies:      p.reg.ProxyHealth(),
		RateLimit:    p.reg.RateLimit(),
	}
	return json.MarshalIndent(snap, "", "  ")
}
