// Command dpwh-pages sweeps the paginated project list of the transparency
// API into the record sink, resumably
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"dpwharvest/internal/platform/config"
	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/platform/store"
	harvestmod "dpwharvest/internal/services/harvest/module"
	"dpwharvest/internal/services/harvest/service"
	"dpwharvest/internal/services/status"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fStart   = flag.Int("start", 1, "first page to fetch")
		fEnd     = flag.Int("end", 0, "last page inclusive; 0 derives from HARVEST_TOTAL_RECORDS")
		fLimit   = flag.Int("limit", 5000, "page size, capped at 5000")
		fWorkers = flag.Int("workers", 0, "worker pool size; 0 keeps the env default")
		fOut     = flag.String("out", "", "output directory; overrides HARVEST_OUT_DIR")
		fStatus  = flag.String("status-addr", "", "status listener addr; overrides HARVEST_STATUS_ADDR")
		fQuiet   = flag.Bool("quiet", false, "suppress the terminal progress bar")
	)
	flag.Parse()

	l := logger.Get()

	// Surface flags through env so FromConfig stays the single source of knobs
	mustSetEnv("HARVEST_OUT_DIR", *fOut)
	mustSetEnv("HARVEST_STATUS_ADDR", *fStatus)
	if flag.CommandLine.Changed("limit") {
		mustSetEnv("HARVEST_PAGES_LIMIT", strconv.Itoa(*fLimit))
	}
	if *fWorkers > 0 {
		mustSetEnv("HARVEST_PAGES_WORKERS", strconv.Itoa(*fWorkers))
	}

	root := config.New()
	opts := harvestmod.FromConfig(root, harvestmod.StagePages)

	start, end := *fStart, *fEnd
	if end == 0 {
		total := root.Prefix("HARVEST_").MayInt("TOTAL_RECORDS", 0)
		if total <= 0 {
			l.Fatal().Msg("provide --end or HARVEST_TOTAL_RECORDS to derive it")
		}
		end = (total + opts.Limit - 1) / opts.Limit
	}
	if end < start {
		l.Fatal().Int("start", start).Int("end", end).Msg("--end before --start")
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

	units := service.PageUnits(start, end)
	eng := ports.Engine
	var bar *progressbar.ProgressBar
	if !*fQuiet {
		bar = progressbar.Default(int64(len(units)), "pages")
		eng.WithUnitDone(func() { _ = bar.Add(1) })
	}

	totals, runErr := eng.Run(ctx, units)

	progCancel()
	<-progDone
	if bar != nil {
		_ = bar.Finish()
	}
	if err := ports.Sink.Close(); err != nil {
		l.Error().Err(err).Msg("sink close failed")
	}

	service.WriteSummary(os.Stdout, totals, ports.Sink.Ledgers().Paths)

	if runErr != nil {
		l.Fatal().Err(runErr).Msg("sweep aborted")
	}
}
