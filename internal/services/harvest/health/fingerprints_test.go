package health

import (
	"path/filepath"
	"testing"

	"dpwharvest/internal/platform/testkit"
	"dpwharvest/internal/services/harvest/domain"
)

func newRegistry(t *testing.T, dir string, labels []string, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithSeed(1)}, opts...)
	r, err := New(dir, labels, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestPickFingerprintCoversActivePool(t *testing.T) {
	r := newRegistry(t, t.TempDir(), []string{"a", "b", "c"})
	seen := map[string]bool{}
	for range 200 {
		label, err := r.PickFingerprint()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		seen[label] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all profiles drawn, saw %v", seen)
	}
}

func TestBlacklistExcludesAndPersists(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t, dir, []string{"a", "b"})

	if err := r.BlacklistFingerprint("b"); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	for range 100 {
		label, err := r.PickFingerprint()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if label == "b" {
			t.Fatalf("blacklisted profile selected")
		}
	}

	raw := testkit.MustReadFile(t, filepath.Join(dir, BlacklistFile))
	testkit.MustContain(t, raw, `"b"`)

	// a fresh registry over the same dir must load the exclusion
	r2 := newRegistry(t, dir, []string{"a", "b"})
	if !r2.Blacklisted("b") {
		t.Fatalf("blacklist not loaded across restarts")
	}
}

func TestAllBlacklistedIsPoolEmpty(t *testing.T) {
	r := newRegistry(t, t.TempDir(), []string{"only"})
	if err := r.BlacklistFingerprint("only"); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if _, err := r.PickFingerprint(); err != ErrPoolEmpty {
		t.Fatalf("err = %v, want ErrPoolEmpty", err)
	}
}

func TestReportFingerprintCounters(t *testing.T) {
	r := newRegistry(t, t.TempDir(), []string{"a"})

	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindBlocked})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindRateLimited})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindTimeout})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindTransport, Transport: domain.ClassConnect})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindTransport, Transport: domain.ClassHandshake})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindTransport, Transport: domain.ClassReset})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindSuccess})

	h := r.FingerprintHealth()["a"]
	if h.Blocks != 1 || h.RateLimited != 1 || h.Timeouts != 1 {
		t.Fatalf("outcome counters wrong: %+v", h)
	}
	if h.Connect != 1 || h.Handshake != 1 || h.Reset != 1 {
		t.Fatalf("transport counters wrong: %+v", h)
	}
	if h.FailCount != 6 || h.SuccessCount != 1 {
		t.Fatalf("totals wrong: %+v", h)
	}
	if h.ConsecutiveFailures != 0 || !h.EverSucceeded {
		t.Fatalf("success must reset the streak: %+v", h)
	}
}

func TestDemotionRemovesNeverSuccessfulStreaks(t *testing.T) {
	r := newRegistry(t, t.TempDir(), []string{"weak", "fine"}, WithDemoteAfter(3))

	for range 3 {
		r.ReportFingerprint("weak", domain.Outcome{Kind: domain.KindBlocked})
	}
	for range 100 {
		label, err := r.PickFingerprint()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if label == "weak" {
			t.Fatalf("demoted profile selected")
		}
	}

	// demotion is run-scoped, not persistent
	if r.Blacklisted("weak") {
		t.Fatalf("demotion must not blacklist")
	}
}

func TestEverSucceededResistsDemotion(t *testing.T) {
	r := newRegistry(t, t.TempDir(), []string{"proven"}, WithDemoteAfter(2))
	r.ReportFingerprint("proven", domain.Outcome{Kind: domain.KindSuccess})
	for range 10 {
		r.ReportFingerprint("proven", domain.Outcome{Kind: domain.KindBlocked})
	}
	if _, err := r.PickFingerprint(); err != nil {
		t.Fatalf("proven profile must stay in the pool: %v", err)
	}
}

func TestPersistHealthRoundTrips(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t, dir, []string{"a"})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindSuccess})
	r.ReportFingerprint("a", domain.Outcome{Kind: domain.KindBlocked})
	if err := r.PersistHealth(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	r2 := newRegistry(t, dir, []string{"a"})
	h := r2.FingerprintHealth()["a"]
	if h.SuccessCount != 1 || h.Blocks != 1 || !h.EverSucceeded {
		t.Fatalf("health not loaded: %+v", h)
	}
}
