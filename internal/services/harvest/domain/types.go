// Package domain defines the harvest engine's types and ports
package domain

import (
	"time"

	"dpwharvest/internal/adapters/origin"
)

// Outcome re-exports the classifier's tagged result so services do not import
// the adapter directly
type Outcome = origin.Outcome

// OutcomeKind re-exports the outcome discriminator
type OutcomeKind = origin.OutcomeKind

// Outcome kinds
const (
	KindSuccess     = origin.KindSuccess
	KindRateLimited = origin.KindRateLimited
	KindBlocked     = origin.KindBlocked
	KindTransport   = origin.KindTransportError
	KindTimeout     = origin.KindTimeout
	KindUnsupported = origin.KindUnsupported
	KindPermanent   = origin.KindPermanent
	KindException   = origin.KindException
)

// TransportClass re-exports the transport failure bucket
type TransportClass = origin.TransportClass

// Transport failure classes
const (
	ClassConnect   = origin.ClassConnect
	ClassHandshake = origin.ClassHandshake
	ClassReset     = origin.ClassReset
	ClassOther     = origin.ClassOther
)

// Category names a terminal ledger every unit ends up in exactly once
type Category string

// Terminal ledger categories; Dropped is a diagnostic superset marker for
// units whose only observed outcome was a block
const (
	CategorySuccessful Category = "successful"
	CategoryFailed     Category = "failed"
	CategoryException  Category = "exception"
	CategoryBlocked    Category = "blocked"
	CategoryDropped    Category = "dropped"
)

// FingerprintHealth is the persistent per-profile counter set
type FingerprintHealth struct {
	SuccessCount        int  `json:"success_count"`
	FailCount           int  `json:"fail_count"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
	EverSucceeded       bool `json:"ever_succeeded"`

	Blocks      int `json:"block"`
	Exceptions  int `json:"exception"`
	Timeouts    int `json:"timeout"`
	RateLimited int `json:"rate_limited"`
	Connect     int `json:"error_connect"`
	Handshake   int `json:"error_handshake"`
	Reset       int `json:"error_reset"`
}

// ProxyHealth is the in-memory per-proxy counter set
type ProxyHealth struct {
	SuccessCount        int  `json:"success_count"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
	Blacklisted         bool `json:"blacklisted"`
	RecentErrors        int  `json:"recent_errors"`
}

// RateLimitState records whether proxyless traffic is currently throttled
type RateLimitState struct {
	ProxylessRateLimited bool      `json:"proxyless_rate_limited"`
	NextRecheck          time.Time `json:"next_recheck_time"`
}

// Snapshot is the periodic progress artifact flushed to disk and served by
// the status listener
type Snapshot struct {
	RunID        string                       `json:"run_id"`
	Stage        string                       `json:"stage"`
	Timestamp    time.Time                    `json:"timestamp"`
	Counters     map[string]int64             `json:"counters"`
	Fingerprints map[string]FingerprintHealth `json:"fingerprints"`
	Proxies      map[string]ProxyHealth       `json:"proxies"`
	RateLimit    RateLimitState               `json:"rate_limit"`
}

// Totals is the end-of-run summary per terminal category
type Totals struct {
	Total      int
	Successful int
	Failed     int
	Exception  int
	Blocked    int
	Dropped    int
	Skipped    int
}
