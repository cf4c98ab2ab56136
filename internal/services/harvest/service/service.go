package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	perr "dpwharvest/internal/platform/errors"
	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/services/harvest/domain"
	"dpwharvest/internal/services/harvest/metrics"
)

// Config holds the per-stage knobs
type Config struct {
	// Stage tags logs and snapshots: "pages" or "contracts"
	Stage string

	// Workers bounds in-flight requests; <=0 -> 1
	Workers int

	// MaxRetries is the attempt budget per unit; <=0 -> 1
	MaxRetries int

	// MinDelay/MaxDelay bound the jitter slept before every HTTP attempt
	MinDelay time.Duration
	MaxDelay time.Duration

	// LinearStep, when set, makes transient backoff attempt*LinearStep
	// (list stage); zero selects range-sampled backoff (detail stage)
	LinearStep time.Duration

	// UseProxies enables the attempt-indexed proxy policy (detail stage)
	UseProxies bool
}

// Service is the harvest engine for one stage
type Service struct {
	cfg   Config
	fetch domain.FetcherPort
	reg   domain.RegistryPort
	sink  domain.SinkPort
	stats *Stats
	met   *metrics.Metrics

	// buildURL renders a unit of work into its request URL
	buildURL func(unit string) string

	// onUnitDone, when set, is called after every terminal unit (progress bar)
	onUnitDone func()

	// seams for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	rmu sync.Mutex
	rnd *rand.Rand
}

// New constructs the engine. All collaborators are required except met and
// onUnitDone
func New(
	cfg Config,
	fetch domain.FetcherPort,
	reg domain.RegistryPort,
	sink domain.SinkPort,
	stats *Stats,
	met *metrics.Metrics,
	buildURL func(unit string) string,
) *Service {
	if fetch == nil || reg == nil || sink == nil || stats == nil || buildURL == nil {
		panic("harvest.Service requires fetch, registry, sink, stats and buildURL")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Service{
		cfg:      cfg,
		fetch:    fetch,
		reg:      reg,
		sink:     sink,
		stats:    stats,
		met:      met,
		buildURL: buildURL,
		now:      time.Now,
		sleep:    sleepCtx,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithUnitDone installs a per-unit completion hook
func (s *Service) WithUnitDone(fn func()) *Service {
	s.onUnitDone = fn
	return s
}

// Run sweeps the requested units: subtracts what already succeeded, fans the
// remainder out over the worker pool and reports totals. The only error it
// returns is process-fatal (empty fingerprint pool)
func (s *Service) Run(ctx context.Context, units []string) (domain.Totals, error) {
	done, err := s.sink.LoadSuccessful()
	if err != nil {
		return domain.Totals{}, err
	}
	pages, err := s.sink.ExistingPages()
	if err != nil {
		return domain.Totals{}, err
	}
	s.stats.SeedSuccess(done)

	pending := Pending(units, done, pages)
	skipped := int64(len(units) - len(pending))
	s.stats.Add(StatSkipped, skipped)
	if s.met != nil {
		s.met.Skipped.Add(float64(skipped))
		s.met.Pending.Set(float64(len(pending)))
	}
	logger.C(ctx).Info().
		Str("stage", s.cfg.Stage).
		Int("requested", len(units)).
		Int("pending", len(pending)).
		Int64("skipped", skipped).
		Msg("sweep planned")

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	feed := make(chan string)
	go func() {
		defer close(feed)
		for _, u := range pending {
			select {
			case feed <- u:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range s.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range feed {
				if s.met != nil {
					s.met.InFlight.Inc()
				}
				err := s.process(runCtx, unit)
				if s.met != nil {
					s.met.InFlight.Dec()
					s.met.Pending.Dec()
				}
				s.stats.Inc(StatTotal)
				if s.onUnitDone != nil {
					s.onUnitDone()
				}
				if err != nil {
					// fatal: stop the sweep, surface the cause
					cancel(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if cause := context.Cause(runCtx); cause != nil && cause != ctx.Err() {
		return s.totals(), cause
	}
	return s.totals(), nil
}

// process runs the retry loop for one unit. Recoverable conditions are
// absorbed here; the returned error is process-fatal only
func (s *Service) process(ctx context.Context, unit string) error {
	ctx = logger.WithUnit(ctx, unit)
	log := logger.C(ctx)

	if s.stats.HasSuccess(unit) {
		s.stats.Inc(StatSkipped)
		if s.met != nil {
			s.met.Skipped.Inc()
		}
		return nil
	}

	var (
		last        domain.Outcome
		blockedSeen bool
		otherFails  int
		fetches     int
	)

	for attempt := 1; attempt <= s.cfg.MaxRetries; {
		if err := ctx.Err(); err != nil {
			// interrupted; unit stays pending for the next run
			return nil
		}

		if err := s.sleep(ctx, s.jitter(s.cfg.MinDelay, s.cfg.MaxDelay)); err != nil {
			return nil
		}

		fp, err := s.reg.PickFingerprint()
		if err != nil {
			return err
		}
		proxy := s.chooseProxy(attempt)

		out := s.attempt(ctx, fp, proxy, unit)
		fetches++
		s.stats.Inc(StatAttempts)
		if s.met != nil {
			s.met.Attempts.Inc()
		}
		if fetches > 1 {
			s.stats.Inc(StatRetries)
			if s.met != nil {
				s.met.Retries.Inc()
			}
		}
		s.reg.ReportFingerprint(fp, out)
		s.reg.ReportProxy(proxy, out)
		last = out

		switch out.Kind {
		case domain.KindSuccess:
			return s.finishSuccess(ctx, unit, proxy, out)

		case domain.KindRateLimited:
			s.stats.Inc(StatRateLimited)
			otherFails++
			if proxy == "" {
				s.reg.MarkProxylessRateLimited()
			}
			wait := s.jitter(30*time.Second, 60*time.Second)
			if out.Status == 403 {
				wait = s.jitter(5*time.Second, 10*time.Second)
			}
			log.Warn().Int("status", out.Status).Int("attempt", attempt).Dur("sleep", wait).
				Str("profile", fp).Msg("rate limited, backing off")
			if err := s.sleep(ctx, wait); err != nil {
				return nil
			}
			attempt++

		case domain.KindBlocked:
			blockedSeen = true
			wait := s.jitter(2*time.Second, 5*time.Second)
			log.Warn().Int("attempt", attempt).Dur("sleep", wait).Str("profile", fp).
				Msg("interstitial block, retrying")
			if err := s.sleep(ctx, wait); err != nil {
				return nil
			}
			attempt++

		case domain.KindTimeout, domain.KindTransport:
			otherFails++
			if out.Kind == domain.KindTransport {
				_ = s.sink.AppendTransport(out.Transport, unit)
			}
			log.Warn().Int("attempt", attempt).Str("profile", fp).Str("proxy", proxy).
				Err(out.Err).Msg("transport failure, retrying")
			if err := s.sleep(ctx, s.transientBackoff(attempt)); err != nil {
				return nil
			}
			attempt++

		case domain.KindUnsupported:
			// a profile the runtime cannot emit burns no budget; blacklist
			// it and redraw
			if err := s.reg.BlacklistFingerprint(fp); err != nil {
				log.Error().Err(err).Str("profile", fp).Msg("blacklist write failed")
			}

		case domain.KindPermanent:
			otherFails++
			_ = s.sink.WriteRaw(unit, fmt.Sprintf("status %d\n%s", out.Status, out.Snippet))
			_ = s.sink.Append(domain.CategoryFailed, unit)
			s.stats.Inc(StatFail)
			if s.met != nil {
				s.met.Outcomes.WithLabelValues(string(domain.CategoryFailed)).Inc()
			}
			log.Error().Int("status", out.Status).Msg("permanent failure")
			return nil

		case domain.KindException:
			_ = s.sink.WriteRaw(unit, out.Err.Error())
			_ = s.sink.Append(domain.CategoryException, unit)
			s.stats.Inc(StatException)
			if s.met != nil {
				s.met.Outcomes.WithLabelValues(string(domain.CategoryException)).Inc()
			}
			log.Error().Err(out.Err).Msg("worker exception")
			return nil
		}
	}

	// budget exhausted without a terminal write
	if blockedSeen && otherFails == 0 {
		_ = s.sink.Append(domain.CategoryBlocked, unit)
		_ = s.sink.Append(domain.CategoryDropped, unit)
		s.stats.Inc(StatBlocked)
		s.stats.Inc(StatDropped)
		if s.met != nil {
			s.met.Outcomes.WithLabelValues(string(domain.CategoryBlocked)).Inc()
			s.met.Outcomes.WithLabelValues(string(domain.CategoryDropped)).Inc()
		}
		log.Error().Msg("unit blocked on every attempt, dropped")
		return nil
	}

	var tail string
	if last.Err != nil {
		tail = last.Err.Error()
	} else {
		tail = fmt.Sprintf("status %d after %d attempts", last.Status, s.cfg.MaxRetries)
	}
	_ = s.sink.WriteRaw(unit, tail)
	_ = s.sink.Append(domain.CategoryFailed, unit)
	s.stats.Inc(StatFail)
	if s.met != nil {
		s.met.Outcomes.WithLabelValues(string(domain.CategoryFailed)).Inc()
	}
	log.Error().Str("last", last.Kind.String()).Msg("retry budget exhausted")
	return nil
}

// finishSuccess persists the payload and settles the unit
func (s *Service) finishSuccess(ctx context.Context, unit, proxy string, out domain.Outcome) error {
	if err := s.sink.PutRecord(ctx, unit, out.Body); err != nil {
		// sink trouble is recorded as an exception, not retried: the
		// payload is in hand but the disk is not cooperating
		_ = s.sink.WriteRaw(unit, err.Error())
		_ = s.sink.Append(domain.CategoryException, unit)
		s.stats.Inc(StatException)
		if s.met != nil {
			s.met.Outcomes.WithLabelValues(string(domain.CategoryException)).Inc()
		}
		return nil
	}
	if err := s.sink.WritePageDump(unit, out.Body); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("page dump write failed")
	}
	_ = s.sink.Append(domain.CategorySuccessful, unit)
	s.stats.MarkSuccess(unit)
	s.stats.Inc(StatSuccess)
	if s.met != nil {
		s.met.Outcomes.WithLabelValues(string(domain.CategorySuccessful)).Inc()
	}
	if proxy == "" && s.reg.RateLimit().ProxylessRateLimited {
		s.reg.ClearProxylessRateLimited()
	}
	logger.C(ctx).Info().Int("bytes", len(out.Body)).Msg("unit harvested")
	return nil
}

// attempt issues one fetch, converting panics into exception outcomes so the
// loop stays a flat state machine
func (s *Service) attempt(ctx context.Context, fp, proxy, unit string) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Outcome{
				Kind: domain.KindException,
				Err:  perr.PanicErrf("worker panic: %v", r),
			}
		}
	}()
	return s.fetch.Fetch(ctx, fp, proxy, s.buildURL(unit))
}

// chooseProxy applies the attempt-indexed policy: early attempts go direct,
// later ones through a proxy, except while proxyless traffic is known to be
// throttled, when a proxy is used from the first attempt. No healthy proxy
// means falling back to direct
func (s *Service) chooseProxy(attempt int) string {
	if !s.cfg.UseProxies {
		return ""
	}
	rl := s.reg.RateLimit()
	throttled := rl.ProxylessRateLimited && s.now().Before(rl.NextRecheck)
	if attempt < 3 && !throttled {
		return ""
	}
	if p, ok := s.reg.PickProxy(); ok {
		return p
	}
	return ""
}

// transientBackoff picks the between-attempt sleep for timeouts and
// transport errors: linear per attempt when configured, range-sampled
// otherwise
func (s *Service) transientBackoff(attempt int) time.Duration {
	if s.cfg.LinearStep > 0 {
		return time.Duration(attempt) * s.cfg.LinearStep
	}
	return s.jitter(2*time.Second, 6*time.Second)
}

// jitter samples uniformly from [min, max); it returns min when max <= min
func (s *Service) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return min + time.Duration(s.rnd.Int63n(int64(max-min)))
}

// totals folds the counters into the end-of-run summary
func (s *Service) totals() domain.Totals {
	c := s.stats.Counters()
	return domain.Totals{
		Total:      int(c[StatTotal]),
		Successful: int(c[StatSuccess]),
		Failed:     int(c[StatFail]),
		Exception:  int(c[StatException]),
		Blocked:    int(c[StatBlocked]),
		Dropped:    int(c[StatDropped]),
		Skipped:    int(c[StatSkipped]),
	}
}

// sleepCtx sleeps for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
