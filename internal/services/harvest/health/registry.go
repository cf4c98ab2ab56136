// Package health tracks fingerprint and proxy fitness across attempts and
// runs, and owns the persistent TLS blacklist
package health

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	perr "dpwharvest/internal/platform/errors"
	"dpwharvest/internal/platform/logger"
	"dpwharvest/internal/services/harvest/domain"
)

// Persistence files, relative to the output directory
const (
	BlacklistFile = "never_success_tls.json"
	HealthFile    = "impersonate_health.json"
)

const (
	// proxies with more than proxyErrMax errors inside proxyErrWindow are
	// skipped by selection until the window drains
	proxyErrWindow = 30 * time.Second
	proxyErrMax    = 3

	// consecutive failures before a never-successful profile is demoted
	// for the remainder of the run
	defaultDemoteAfter = 5

	// how long the proxyless throttle stays armed before a recheck
	proxylessRecheck = 60 * time.Second
)

// ErrPoolEmpty is returned when every profile is blacklisted or demoted.
// Recovery is operator action: delete the blacklist file or upgrade the TLS
// library
var ErrPoolEmpty = perr.New(
	perr.ErrorCodeNotFound,
	"no active tls profiles remain; delete "+BlacklistFile+" or upgrade the tls library",
)

type fingerprint struct {
	domain.FingerprintHealth
	demoted bool
}

type proxy struct {
	domain.ProxyHealth
	recent []time.Time
}

// Registry is the single owner of fingerprint and proxy health. One mutex
// guards both maps and the rate-limit state; it is held only for counter
// updates, never across I/O
type Registry struct {
	mu        sync.Mutex
	dir       string
	fps       map[string]*fingerprint
	blacklist map[string]bool
	proxies   map[string]*proxy
	rl        domain.RateLimitState

	demoteAfter int
	now         func() time.Time
	rnd         *rand.Rand
	log         logger.Logger
}

// Option tunes a Registry
type Option func(*Registry)

// WithClock injects a clock, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSeed makes selection deterministic, for tests
func WithSeed(seed int64) Option {
	return func(r *Registry) { r.rnd = rand.New(rand.NewSource(seed)) }
}

// WithDemoteAfter overrides the demotion streak threshold
func WithDemoteAfter(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.demoteAfter = n
		}
	}
}

// New builds a Registry over the given profile labels and proxy URLs,
// loading the persistent blacklist and health counters from dir
func New(dir string, profileLabels, proxyURLs []string, opts ...Option) (*Registry, error) {
	r := &Registry{
		dir:         dir,
		fps:         make(map[string]*fingerprint, len(profileLabels)),
		blacklist:   map[string]bool{},
		proxies:     make(map[string]*proxy, len(proxyURLs)),
		demoteAfter: defaultDemoteAfter,
		now:         time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         *logger.Named("health"),
	}
	for _, o := range opts {
		o(r)
	}

	if err := r.loadBlacklist(); err != nil {
		return nil, err
	}
	saved, err := r.loadHealth()
	if err != nil {
		return nil, err
	}
	for _, label := range profileLabels {
		fp := &fingerprint{}
		if h, ok := saved[label]; ok {
			fp.FingerprintHealth = h
		}
		r.fps[label] = fp
	}
	for _, u := range proxyURLs {
		r.proxies[u] = &proxy{}
	}

	r.log.Info().
		Int("profiles", len(profileLabels)).
		Int("blacklisted", len(r.blacklist)).
		Int("proxies", len(proxyURLs)).
		Msg("registry ready")
	return r, nil
}

// RateLimit returns a copy of the proxyless throttle state
func (r *Registry) RateLimit() domain.RateLimitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rl
}

// MarkProxylessRateLimited arms the proxyless throttle
func (r *Registry) MarkProxylessRateLimited() {
	r.mu.Lock()
	r.rl.ProxylessRateLimited = true
	r.rl.NextRecheck = r.now().Add(proxylessRecheck)
	r.mu.Unlock()
}

// ClearProxylessRateLimited disarms the proxyless throttle
func (r *Registry) ClearProxylessRateLimited() {
	r.mu.Lock()
	r.rl = domain.RateLimitState{}
	r.mu.Unlock()
}

// loadBlacklist reads the persistent label list; a missing file is a fresh start
func (r *Registry) loadBlacklist() error {
	b, err := os.ReadFile(filepath.Join(r.dir, BlacklistFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "read blacklist")
	}
	var labels []string
	if err := json.Unmarshal(b, &labels); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "parse blacklist")
	}
	for _, l := range labels {
		r.blacklist[l] = true
	}
	return nil
}

// loadHealth reads persisted per-profile counters; missing file is fine
func (r *Registry) loadHealth() (map[string]domain.FingerprintHealth, error) {
	b, err := os.ReadFile(filepath.Join(r.dir, HealthFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "read fingerprint health")
	}
	out := map[string]domain.FingerprintHealth{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "parse fingerprint health")
	}
	return out, nil
}

// PersistHealth flushes per-profile counters to the health file
func (r *Registry) PersistHealth() error {
	r.mu.Lock()
	snap := make(map[string]domain.FingerprintHealth, len(r.fps))
	for label, fp := range r.fps {
		snap[label] = fp.FingerprintHealth
	}
	r.mu.Unlock()

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(r.dir, HealthFile), b)
}

// atomicWrite replaces path via a temp file so readers never see a torn write
func atomicWrite(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
