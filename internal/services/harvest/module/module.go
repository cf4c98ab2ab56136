package module

import (
	"context"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"

	"dpwharvest/internal/adapters/origin"
	"dpwharvest/internal/adapters/proxylist"
	"dpwharvest/internal/platform/config"
	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/platform/store"
	"dpwharvest/internal/services/harvest/domain"
	"dpwharvest/internal/services/harvest/health"
	"dpwharvest/internal/services/harvest/metrics"
	"dpwharvest/internal/services/harvest/repo"
	"dpwharvest/internal/services/harvest/service"
)

// Deps are the shared platform collaborators a main hands in
type Deps struct {
	Cfg config.Conf
	DB  store.TxRunner
	Log logger.Logger
}

// Ports exposes what a main drives after wiring
type Ports struct {
	Runner   domain.RunnerPort
	Engine   *service.Service
	Progress *service.Progress
	Sink     *repo.Sink
	Registry *health.Registry
	Stats    *service.Stats
	Metrics  *metrics.Metrics
	Prom     *prometheus.Registry
}

// Module is the wired harvest engine for one stage
type Module struct {
	opts  Options
	ports Ports
}

// New wires adapters, registry, sink and engine for the given options
func New(ctx context.Context, deps Deps, opts Options) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var proxies []string
	if opts.UseProxies {
		proxies = proxylist.Load(proxylist.FreeFile, proxylist.PremiumFile)
	}

	reg, err := health.New(opts.OutDir, origin.Profiles(), proxies)
	if err != nil {
		return nil, err
	}

	fetch := origin.NewFetcher(origin.NewFactory(origin.WithTimeout(opts.Timeout)))

	var sinkOpts []repo.SinkOption
	if opts.RecordFiles {
		sinkOpts = append(sinkOpts, repo.WithRecordFiles())
	}
	if opts.PageDumps {
		sinkOpts = append(sinkOpts, repo.WithPageDumps())
	}
	sink, err := repo.NewSink(ctx, deps.DB, opts.OutDir, opts.Limit, sinkOpts...)
	if err != nil {
		return nil, err
	}

	stats := service.NewStats()
	prom := prometheus.NewRegistry()
	met := metrics.New(prom)

	svc := service.New(
		service.Config{
			Stage:      opts.Stage,
			Workers:    opts.Workers,
			MaxRetries: opts.MaxRetries,
			MinDelay:   opts.MinDelay,
			MaxDelay:   opts.MaxDelay,
			LinearStep: opts.LinearStep,
			UseProxies: opts.UseProxies,
		},
		fetch, reg, sink, stats, met,
		buildURL(opts),
	)

	m := &Module{opts: opts}
	m.ports = Ports{
		Runner:   svc,
		Engine:   svc,
		Sink:     sink,
		Registry: reg,
		Stats:    stats,
		Metrics:  met,
		Prom:     prom,
	}
	return m, nil
}

// WithProgress attaches a snapshotter stamped with runID
func (m *Module) WithProgress(runID string) *service.Progress {
	p := service.NewProgress(
		m.opts.OutDir, runID, m.opts.Stage,
		m.ports.Stats, m.ports.Registry, m.ports.Sink,
	)
	m.ports.Progress = p
	return p
}

// Name returns the module name
func (m *Module) Name() string { return "harvest" }

// Ports returns the module ports
func (m *Module) Ports() Ports { return m.ports }

// buildURL renders a unit into its request URL for the stage
func buildURL(o Options) func(string) string {
	base := o.BaseURL
	switch o.Stage {
	case StagePages:
		return func(unit string) string {
			return fmt.Sprintf("%s?page=%s&limit=%d", base, url.QueryEscape(unit), o.Limit)
		}
	default:
		return func(unit string) string {
			return base + "/" + url.PathEscape(unit)
		}
	}
}
