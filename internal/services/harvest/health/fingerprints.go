package health

import (
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"

	"dpwharvest/internal/services/harvest/domain"
)

// PickFingerprint draws uniformly from the active pool: every known label
// minus the persistent blacklist and this run's demotions
func (r *Registry) PickFingerprint() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]string, 0, len(r.fps))
	for label, fp := range r.fps {
		if r.blacklist[label] || fp.demoted {
			continue
		}
		active = append(active, label)
	}
	if len(active) == 0 {
		return "", ErrPoolEmpty
	}
	// sorted so the draw is stable under a seeded rng
	sort.Strings(active)
	return active[r.rnd.Intn(len(active))], nil
}

// ReportFingerprint folds an outcome into the label's counters and applies
// the demotion rule: a profile that never succeeded and keeps failing leaves
// the pool for the rest of the run (but not the persistent blacklist)
func (r *Registry) ReportFingerprint(label string, o domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.fps[label]
	if !ok {
		return
	}

	if o.Kind == domain.KindSuccess {
		fp.SuccessCount++
		fp.ConsecutiveFailures = 0
		fp.EverSucceeded = true
		return
	}

	fp.FailCount++
	fp.ConsecutiveFailures++
	switch o.Kind {
	case domain.KindBlocked:
		fp.Blocks++
	case domain.KindRateLimited:
		fp.RateLimited++
	case domain.KindTimeout:
		fp.Timeouts++
	case domain.KindException:
		fp.Exceptions++
	case domain.KindTransport:
		switch o.Transport {
		case domain.ClassConnect:
			fp.Connect++
		case domain.ClassHandshake:
			fp.Handshake++
		case domain.ClassReset:
			fp.Reset++
		}
	}

	if !fp.EverSucceeded && fp.ConsecutiveFailures >= r.demoteAfter && !fp.demoted {
		fp.demoted = true
		r.log.Warn().Str("profile", label).Int("streak", fp.ConsecutiveFailures).
			Msg("profile demoted for this run")
	}
}

// BlacklistFingerprint permanently excludes the label: it leaves the active
// pool now and is appended to the on-disk blacklist so later runs skip it too
func (r *Registry) BlacklistFingerprint(label string) error {
	r.mu.Lock()
	if r.blacklist[label] {
		r.mu.Unlock()
		return nil
	}
	r.blacklist[label] = true
	labels := make([]string, 0, len(r.blacklist))
	for l := range r.blacklist {
		labels = append(labels, l)
	}
	r.mu.Unlock()

	sort.Strings(labels)
	b, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return err
	}
	r.log.Warn().Str("profile", label).Msg("profile blacklisted")
	return atomicWrite(filepath.Join(r.dir, BlacklistFile), b)
}

// FingerprintHealth returns a copy of the per-profile counters
func (r *Registry) FingerprintHealth() map[string]domain.FingerprintHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.FingerprintHealth, len(r.fps))
	for label, fp := range r.fps {
		out[label] = fp.FingerprintHealth
	}
	return out
}

// Blacklisted reports whether the label is currently excluded
func (r *Registry) Blacklisted(label string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blacklist[label]
}
