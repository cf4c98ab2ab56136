package origin

import (
	"math/rand"
	"net/http"
)

// Closed header pools; one value of each is drawn per request so consecutive
// requests from the same worker do not share an exact header shape
var (
	acceptLanguages = []string{
		"en-US,en;q=0.9",
		"en-PH,en;q=0.9,fil;q=0.8",
		"en-GB,en;q=0.9,en-US;q=0.8",
		"en-US,en;q=0.8,fil;q=0.6",
	}
	referers = []string{
		"https://www.dpwh.gov.ph/",
		"https://www.dpwh.gov.ph/dpwh/projects",
		"https://www.dpwh.gov.ph/dpwh/business/procurement",
	}
)

// identityHeaders builds the request header set for one attempt.
// Accept, Origin and the fetch-metadata trio stay constant; language and
// referer rotate; the UA follows the impersonated profile
func identityHeaders(profileLabel string, rnd *rand.Rand) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", acceptLanguages[rnd.Intn(len(acceptLanguages))])
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Referer", referers[rnd.Intn(len(referers))])
	h.Set("Origin", "https://www.dpwh.gov.ph")
	h.Set("Sec-Fetch-Site", "same-site")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Dest", "empty")
	if ua := userAgent(profileLabel); ua != "" {
		h.Set("User-Agent", ua)
	}
	return h
}
