package health

import (
	"sort"
	"time"

	"dpwharvest/internal/services/harvest/domain"
)

// PickProxy returns a healthy proxy URL, preferring proven ones. Selection
// skips: blacklisted proxies, never-successful proxies on a failure streak,
// and proxies with too many errors inside the rolling window. ok=false means
// the caller should go proxyless
func (r *Registry) PickProxy() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var proven, fresh []string
	for u, p := range r.proxies {
		if p.Blacklisted {
			continue
		}
		if p.ConsecutiveFailures >= 2 && p.SuccessCount == 0 {
			// streak with no redeeming success: blacklist in place
			p.Blacklisted = true
			continue
		}
		if r.pruneRecent(p, now) > proxyErrMax {
			continue
		}
		if p.SuccessCount > 0 {
			proven = append(proven, u)
		} else {
			fresh = append(fresh, u)
		}
	}

	pool := proven
	if len(pool) == 0 {
		pool = fresh
	}
	if len(pool) == 0 {
		return "", false
	}
	sort.Strings(pool)
	return pool[r.rnd.Intn(len(pool))], true
}

// ReportProxy folds an outcome into the proxy's counters. Connection-level
// transport failures blacklist the proxy immediately: a tunnel that cannot
// even be established is not worth a second attempt budget
func (r *Registry) ReportProxy(url string, o domain.Outcome) {
	if url == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxies[url]
	if !ok {
		return
	}

	if o.Kind == domain.KindSuccess {
		p.SuccessCount++
		p.ConsecutiveFailures = 0
		return
	}

	p.ConsecutiveFailures++
	p.recent = append(p.recent, r.now())
	r.pruneRecent(p, r.now())

	if o.Kind == domain.KindTransport {
		switch o.Transport {
		case domain.ClassConnect, domain.ClassHandshake, domain.ClassReset:
			p.Blacklisted = true
			r.log.Warn().Str("proxy", url).Str("class", string(o.Transport)).
				Msg("proxy blacklisted on connection failure")
		}
	}
	if p.ConsecutiveFailures >= 2 && p.SuccessCount == 0 {
		p.Blacklisted = true
	}
}

// pruneRecent drops error timestamps older than the window and returns the
// remaining count. Callers hold the registry mutex
func (r *Registry) pruneRecent(p *proxy, now time.Time) int {
	cutoff := now.Add(-proxyErrWindow)
	kept := p.recent[:0]
	for _, t := range p.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.recent = kept
	p.RecentErrors = len(kept)
	return len(kept)
}

// ProxyHealth returns a copy of the per-proxy counters
func (r *Registry) ProxyHealth() map[string]domain.ProxyHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make(map[string]domain.ProxyHealth, len(r.proxies))
	for u, p := range r.proxies {
		r.pruneRecent(p, now)
		out[u] = p.ProxyHealth
	}
	return out
}
