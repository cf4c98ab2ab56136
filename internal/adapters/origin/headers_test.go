package origin

import (
	"math/rand"
	"testing"
)

func TestIdentityHeadersConstants(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	h := identityHeaders("chrome_120", rnd)

	if got := h.Get("Accept"); got != "application/json, text/plain, */*" {
		t.Fatalf("Accept = %q", got)
	}
	if got := h.Get("Accept-Encoding"); got != "gzip, deflate, br" {
		t.Fatalf("Accept-Encoding = %q", got)
	}
	if got := h.Get("Origin"); got == "" {
		t.Fatalf("Origin must be constant and set")
	}
	if h.Get("Sec-Fetch-Site") == "" || h.Get("Sec-Fetch-Mode") == "" || h.Get("Sec-Fetch-Dest") == "" {
		t.Fatalf("fetch-metadata headers must be set")
	}
}

func TestIdentityHeadersRotateWithinClosedSets(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	langs := map[string]bool{}
	refs := map[string]bool{}
	for range 100 {
		h := identityHeaders("firefox_120", rnd)
		langs[h.Get("Accept-Language")] = true
		refs[h.Get("Referer")] = true
	}
	for l := range langs {
		if !contains(acceptLanguages, l) {
			t.Fatalf("language %q outside the closed set", l)
		}
	}
	for r := range refs {
		if !contains(referers, r) {
			t.Fatalf("referer %q outside the closed set", r)
		}
	}
	if len(langs) < 2 || len(refs) < 2 {
		t.Fatalf("expected rotation across the sets, got %d langs %d referers", len(langs), len(refs))
	}
}

func TestUserAgentFollowsProfile(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, label := range Profiles() {
		h := identityHeaders(label, rnd)
		if h.Get("User-Agent") == "" {
			t.Fatalf("profile %s has no user agent", label)
		}
	}
}

func TestProfilesStableAndSorted(t *testing.T) {
	ps := Profiles()
	if len(ps) == 0 {
		t.Fatalf("profile enumeration is empty")
	}
	for i := 1; i < len(ps); i++ {
		if ps[i-1] >= ps[i] {
			t.Fatalf("profiles not sorted: %v", ps)
		}
	}
	for _, label := range ps {
		if profiles[label].ua == "" {
			t.Fatalf("profile %s lacks a user agent", label)
		}
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
