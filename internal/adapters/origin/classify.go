package origin

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// OutcomeKind discriminates what an attempt produced
type OutcomeKind uint8

// Outcome kinds, terminal-ness is decided by the retry loop, not here
const (
	// KindSuccess carries the payload bytes
	KindSuccess OutcomeKind = iota

	// KindRateLimited is an explicit origin/CDN throttle signal
	KindRateLimited

	// KindBlocked is an anti-bot interstitial without an explicit throttle status
	KindBlocked

	// KindTransportError is a network-layer failure below HTTP
	KindTransportError

	// KindTimeout is an attempt that exceeded its deadline
	KindTimeout

	// KindUnsupported means the runtime cannot emit the chosen ClientHello
	KindUnsupported

	// KindPermanent is an HTTP failure no retry will fix
	KindPermanent

	// KindException is a recovered worker panic; never produced by Classify
	KindException
)

// String names the kind for ledgers and logs
func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindBlocked:
		return "blocked"
	case KindTransportError:
		return "transport_error"
	case KindTimeout:
		return "timeout"
	case KindUnsupported:
		return "unsupported"
	case KindPermanent:
		return "permanent"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// TransportClass buckets network-layer failures the way the health registry
// tracks them
type TransportClass string

// The three tracked transport failure classes plus a catch-all
const (
	ClassNone      TransportClass = ""
	ClassConnect   TransportClass = "connect"
	ClassHandshake TransportClass = "handshake"
	ClassReset     TransportClass = "reset"
	ClassOther     TransportClass = "other"
)

// Outcome is the tagged result of a single HTTP attempt
type Outcome struct {
	Kind      OutcomeKind
	Status    int
	Body      []byte         // payload on success
	Snippet   string         // bounded leading part of the body for permanent failures
	Transport TransportClass // set for transport errors
	Err       error          // transport error text; nil for outcomes decided by HTTP status
}

// Interstitial markers the CDN substitutes for the real JSON
var blockMarkers = []string{
	"just a moment",
	"error code: 1015",
	"rate limited",
	"1015",
}

// unsupported-profile markers in transport error text
var unsupportedMarkers = []string{
	"not supported",
	"unsupported profile",
	"unknown clienthello",
}

// connection-failure markers (refused/unreachable/lookup)
var connectMarkers = []string{
	"connection refused",
	"no such host",
	"network is unreachable",
	"no route to host",
	"proxy connect",
}

// mid-stream failure markers
var resetMarkers = []string{
	"connection reset",
	"broken pipe",
	"unexpected eof",
	"server closed idle connection",
}

// timeout markers beyond net.Error
var timeoutMarkers = []string{
	"deadline exceeded",
	"timeout awaiting response",
	"i/o timeout",
	"handshake timeout",
}

// Classify maps a finished attempt to an Outcome. It is a pure function of
// its inputs: err text, HTTP status and body bytes. errText of a nil err must
// be passed as ""
func Classify(status int, body []byte, errText string) Outcome {
	if errText != "" {
		low := strings.ToLower(errText)
		switch {
		case containsAny(low, unsupportedMarkers):
			return Outcome{Kind: KindUnsupported, Err: textErr(errText)}
		case containsAny(low, connectMarkers):
			return Outcome{Kind: KindTransportError, Transport: ClassConnect, Err: textErr(errText)}
		case containsAny(low, timeoutMarkers):
			return Outcome{Kind: KindTimeout, Err: textErr(errText)}
		case strings.Contains(low, "tls") && strings.Contains(low, "handshake"):
			return Outcome{Kind: KindTransportError, Transport: ClassHandshake, Err: textErr(errText)}
		case containsAny(low, resetMarkers):
			return Outcome{Kind: KindTransportError, Transport: ClassReset, Err: textErr(errText)}
		default:
			return Outcome{Kind: KindTransportError, Transport: ClassOther, Err: textErr(errText)}
		}
	}

	lowBody := strings.ToLower(string(body))
	blocked := containsAny(lowBody, blockMarkers)

	switch {
	case status == 200 && !blocked && isJSONObject(body):
		return Outcome{Kind: KindSuccess, Status: status, Body: body}
	case status == 200:
		// interstitial HTML under 200, with or without a recognizable marker
		return Outcome{Kind: KindBlocked, Status: status}
	case status == 429:
		return Outcome{Kind: KindRateLimited, Status: status}
	case status == 403 && blocked:
		// CDN block dressed as forbidden; same throttle treatment as 429
		return Outcome{Kind: KindRateLimited, Status: status}
	case status == 403:
		return Outcome{Kind: KindBlocked, Status: status}
	default:
		return Outcome{Kind: KindPermanent, Status: status, Snippet: snippet(body)}
	}
}

// isJSONObject reports whether body is valid JSON whose top level is an object
func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// snippet keeps the first 2048 bytes of a body, trimmed and folded to one line
func snippet(body []byte) string {
	const limit = 2048
	s := string(body)
	if len(s) > limit {
		s = s[:limit]
	}
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, "\n", " ")
}

// textErr wraps a classifier input string back into an error value
type textErr string

func (e textErr) Error() string { return string(e) }
