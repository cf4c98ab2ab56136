package domain

import "context"

// FetcherPort issues one HTTP attempt for a target URL under a chosen
// identity. proxyURL empty means direct. The returned Outcome is always
// well-formed; transport failures arrive classified, never as raised errors
type FetcherPort interface {
	Fetch(ctx context.Context, profile, proxyURL, target string) Outcome
}

// RegistryPort is the health registry view the worker consumes
type RegistryPort interface {
	// PickFingerprint draws uniformly from the active pool; the error is
	// process-fatal (empty pool)
	PickFingerprint() (string, error)

	// ReportFingerprint folds an outcome into the label's counters
	ReportFingerprint(label string, o Outcome)

	// BlacklistFingerprint permanently excludes the label and persists it
	BlacklistFingerprint(label string) error

	// PickProxy returns a healthy proxy, or ok=false when none qualifies
	PickProxy() (string, bool)

	// ReportProxy folds an outcome into the proxy's counters
	ReportProxy(url string, o Outcome)

	// RateLimit returns a copy of the proxyless throttle state
	RateLimit() RateLimitState

	// MarkProxylessRateLimited arms the proxyless throttle until recheck
	MarkProxylessRateLimited()

	// ClearProxylessRateLimited disarms the proxyless throttle
	ClearProxylessRateLimited()

	// FingerprintHealth returns a copy of the per-profile counters
	FingerprintHealth() map[string]FingerprintHealth

	// ProxyHealth returns a copy of the per-proxy counters
	ProxyHealth() map[string]ProxyHealth

	// PersistHealth flushes fingerprint counters to disk
	PersistHealth() error
}

// SinkPort is the persistence surface a worker writes through
type SinkPort interface {
	// PutRecord upserts one record; re-attempts cannot corrupt
	PutRecord(ctx context.Context, id string, payload []byte) error

	// WritePageDump stores the raw page payload when page dumps are enabled
	WritePageDump(unit string, payload []byte) error

	// Append adds the unit to a terminal category ledger
	Append(cat Category, unit string) error

	// AppendTransport adds the unit to a per-transport-class bucket
	AppendTransport(class TransportClass, unit string) error

	// WriteRaw dumps an offending body or exception text for the unit
	WriteRaw(unit, text string) error

	// LoadSuccessful reads the successful ledger for resume
	LoadSuccessful() (map[string]struct{}, error)

	// ExistingPages lists units that already have a page dump on disk
	ExistingPages() (map[string]struct{}, error)

	// Flush rewrites the JSON ledger variants
	Flush() error
}

// RunnerPort drives a full sweep over the given units
type RunnerPort interface {
	Run(ctx context.Context, units []string) (Totals, error)
}
