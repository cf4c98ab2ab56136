// Command dpwh-contracts fetches one detail document per contract ID
// discovered by the list stage. All knobs come from HARVEST_* env; besides
// HARVEST_BASE_URL and HARVEST_OUT_DIR, the mandatory input is the contract-ID file
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"dpwharvest/internal/adapters/input"
	"dpwharvest/internal/platform/config"
	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/platform/store"
	harvestmod "dpwharvest/internal/services/harvest/module"
	"dpwharvest/internal/services/harvest/service"
	"dpwharvest/internal/services/status"
)

func main() {
	l := logger.Get()

	root := config.New()
	opts := harvestmod.FromConfig(root, harvestmod.StageContracts)

	ids, err := input.ReadIDs(opts.InputPath)
	if err != nil {
		l.Fatal().Err(err).Str("input", opts.InputPath).Msg("cannot read contract ids")
	}
	if len(ids) == 0 {
		l.Fatal().Str("input", opts.InputPath).Msg("contract id input is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		SQLite: store.SQLiteConfig{
			Enabled: true,
			Path:    filepath.Join(opts.OutDir, root.Prefix("HARVEST_").MayString("DB_FILE", "records.db")),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() { _ = st.Close(context.Background()) }()

	deps := harvestmod.Deps{Cfg: root, DB: st.DB, Log: *l}
	hm, err := harvestmod.New(ctx, deps, opts)
	if err != nil {
		l.Fatal().Err(err).Msg("harvest wiring failed")
	}
	ports := hm.Ports()

	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	l.Info().Str("run_id", runID).Int("ids", len(ids)).Msg("detail sweep starting")

	progress := hm.WithProgress(runID)
	if opts.StatusAddr != "" {
		srv := status.New(opts.StatusAddr, ports.Prom)
		progress.WithListener(srv.SetSnapshot)
		go func() {
			if err := srv.Run(ctx); err != nil {
				l.Error().Err(err).Msg("status listener failed")
			}
		}()
	}

	progCtx, progCancel := context.WithCancel(context.Background())
	progDone := make(chan struct{})
	go func() {
		progress.Run(progCtx)
		close(progDone)
	}()

	totals, runErr := ports.Engine.Run(ctx, ids)

	progCancel()
	<-progDone
	if err := ports.Sink.Close(); err != nil {
		l.Error().Err(err).Msg("sink close failed")
	}

	service.WriteSummary(os.Stdout, totals, ports.Sink.Ledgers().Paths)

	if runErr != nil {
		l.Fatal().Err(runErr).Msg("sweep aborted")
	}
}
