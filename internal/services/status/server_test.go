package status

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"dpwharvest/internal/platform/testkit"
	"dpwharvest/internal/services/harvest/metrics"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	prom := prometheus.NewRegistry()
	m := metrics.New(prom)
	m.Attempts.Inc()

	s := New("127.0.0.1:0", prom)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/healthz")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	testkit.MustContain(t, body, `"ok"`)
}

func TestProgressServesLatestSnapshot(t *testing.T) {
	s, ts := newTestServer(t)

	code, _ := get(t, ts.URL+"/progress")
	if code != http.StatusNoContent {
		t.Fatalf("empty snapshot should 204, got %d", code)
	}

	s.SetSnapshot([]byte(`{"run_id":"r1"}`))
	code, body := get(t, ts.URL+"/progress")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	testkit.MustContain(t, body, "r1")
}

func TestMetricsExposesInstruments(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	testkit.MustContain(t, body, "dpwharvest_attempts_total")
}
