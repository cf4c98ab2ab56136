// Package origin provides the TLS-impersonating HTTP client for the
// transparency API and the classification of its responses
package origin

import (
	"sort"

	utls "github.com/refraction-networking/utls"
)

// profile couples a stable label with the ClientHello preset it mimics and
// the User-Agent a real build of that browser would send
type profile struct {
	hello utls.ClientHelloID
	ua    string
}

// profiles is the closed enumeration of impersonation targets.
// Labels are stable: they appear in health files and the persistent blacklist
var profiles = map[string]profile{
	"chrome_120": {
		hello: utls.HelloChrome_120,
		ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	},
	"chrome_131": {
		hello: utls.HelloChrome_131,
		ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	},
	"firefox_105": {
		hello: utls.HelloFirefox_105,
		ua:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:105.0) Gecko/20100101 Firefox/105.0",
	},
	"firefox_120": {
		hello: utls.HelloFirefox_120,
		ua:    "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
	},
	"safari_16_0": {
		hello: utls.HelloSafari_16_0,
		ua: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
			"(KHTML, like Gecko) Version/16.0 Safari/605.1.15",
	},
	"edge_106": {
		hello: utls.HelloEdge_106,
		ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/106.0.0.0 Safari/537.36 Edg/106.0.1370.34",
	},
	"ios_14": {
		hello: utls.HelloIOS_14,
		ua: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 " +
			"(KHTML, like Gecko) Version/14.1.1 Mobile/15E148 Safari/604.1",
	},
}

// Profiles returns the sorted labels of every impersonation target the
// runtime knows about
func Profiles() []string {
	out := make([]string, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// userAgent returns the UA for a label, empty when unknown
func userAgent(label string) string { return profiles[label].ua }
